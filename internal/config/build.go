package config

import "runtime/debug"

// Set by release builds with
//
//	-ldflags "-X kvsdoorbell/internal/config.version=1.2.3"
//
// commit and buildTime may be left empty; they then come from the VCS stamp
// the go tool embeds in binaries built inside a checkout.
var (
	version   = "dev"
	commit    = ""
	buildTime = ""
)

// NewBuildInfo returns the version reported by /health on the console and
// logged at startup by every binary.
func NewBuildInfo() BuildInfo {
	bi, ok := debug.ReadBuildInfo()
	return buildInfoFrom(bi, ok)
}

func buildInfoFrom(bi *debug.BuildInfo, ok bool) BuildInfo {
	info := BuildInfo{Version: version, Commit: commit, BuildTime: buildTime}
	if ok && bi != nil {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info.Commit == "" {
					info.Commit = shortRevision(s.Value)
				}
			case "vcs.time":
				if info.BuildTime == "" {
					info.BuildTime = s.Value
				}
			case "vcs.modified":
				if s.Value == "true" && info.Commit != "" && commit == "" {
					info.Commit += "-dirty"
				}
			}
		}
	}
	if info.Commit == "" {
		info.Commit = "none"
	}
	if info.BuildTime == "" {
		info.BuildTime = "unknown"
	}
	return info
}

func shortRevision(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}

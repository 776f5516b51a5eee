// Package main is the entrypoint for the camera master: the process at the
// door that holds the MASTER role on the KVS signaling channel and answers
// the WebRTC offers Alexa viewers send through it.
//
// Startup:
//  1. Load MasterConfig (env, .env, SSM).
//  2. Build the endpoint resolver, WebSocket signaling client, pion peer
//     factory and IVF media source, and assemble a master.Session.
//  3. Run the session until SIGINT/SIGTERM. A connection the service drops
//     is reopened with exponential backoff.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kinesisvideo"

	"kvsdoorbell/internal/config"
	"kvsdoorbell/internal/master"
	"kvsdoorbell/internal/rtc"
	"kvsdoorbell/internal/signaling"
	"kvsdoorbell/internal/types"
)

// slogAdapter wraps *slog.Logger to implement the types.Logger interface.
type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *slogAdapter) With(args ...any) types.Logger {
	return &slogAdapter{logger: a.logger.With(args...)}
}

// session is the part of master.Session the run loop drives.
type session interface {
	Start(ctx context.Context) error
	Run(ctx context.Context) error
	Stop() error
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var provider config.SecretProvider
	if region := os.Getenv("AWS_REGION"); region != "" {
		provider = config.NewSSMProvider(region)
	}
	cfg, err := config.LoadMasterConfig(provider)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := &slogAdapter{logger: newLogger(cfg.LogLevel)}
	logger.Info("camera master starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"kvs_region", cfg.KVS.Region,
		"kvs_channel", cfg.KVS.ChannelName,
		"media_file", cfg.Media.File,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.KVS.Region))
	if err != nil {
		return fmt.Errorf("loading AWS config: %w", err)
	}
	if cfg.KVS.EndpointURL != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.KVS.EndpointURL)
	}

	s := newSession(cfg, awsCfg, logger)
	b := backoff{min: cfg.ReconnectMin, max: cfg.ReconnectMax}
	return runSession(ctx, s, b, logger)
}

// newSession wires signaling, peers and media into a master session.
func newSession(cfg *config.MasterConfig, awsCfg aws.Config, logger types.Logger) *master.Session {
	resolver := signaling.NewEndpointResolver(
		kinesisvideo.NewFromConfig(awsCfg),
		signaling.Channel{Name: cfg.KVS.ChannelName, ARN: cfg.KVS.ChannelARN},
	)
	sig := master.NewWSSignaling(resolver, awsCfg, logger)
	peers := rtc.NewPeerFactory(cfg.ICE.GatherTimeout, logger)
	media := rtc.NewIVFSource(cfg.Media.File, cfg.Media.Loop, logger)

	return master.NewSession(master.Config{
		Region:          cfg.KVS.Region,
		ExtraICEServers: extraICEServers(cfg.ICE),
	}, sig, peers, media, logger)
}

func extraICEServers(ice config.ICEConfig) []master.ICEServer {
	if len(ice.URLs) == 0 {
		return nil
	}
	return []master.ICEServer{{
		URLs:       ice.URLs,
		Username:   ice.Username,
		Credential: ice.Credential.Unmask(),
	}}
}

// runSession starts s and keeps it running until ctx is done. The first
// start must succeed; later failures are retried.
func runSession(ctx context.Context, s session, b backoff, logger types.Logger) error {
	if err := s.Start(ctx); err != nil {
		return fmt.Errorf("starting master: %w", err)
	}
	logger.Info("camera master running")

	attempt := 0
	for {
		err := s.Run(ctx)
		if stopErr := s.Stop(); stopErr != nil {
			logger.Warn("stopping master", "error", stopErr.Error())
		}

		switch {
		case ctx.Err() != nil:
			logger.Info("shutdown signal received")
			return nil
		case err != nil && !errors.Is(err, master.ErrSignalingLost):
			return err
		}

		// Reconnect until the connection comes back or ctx ends.
		for {
			wait := b.next(attempt)
			attempt++
			logger.Warn("signaling connection lost, reconnecting", "attempt", attempt, "wait", wait.String())

			select {
			case <-ctx.Done():
				logger.Info("shutdown signal received")
				return nil
			case <-time.After(wait):
			}

			if err := s.Start(ctx); err != nil {
				logger.Error("reconnect failed", "error", err.Error())
				continue
			}
			attempt = 0
			logger.Info("signaling connection restored")
			break
		}
	}
}

// backoff is exponential with full jitter in [min, min(max, min*2^attempt)].
type backoff struct {
	min, max time.Duration
	rand     func() float64
}

func (b backoff) next(attempt int) time.Duration {
	ceiling := b.min << min(attempt, 30)
	if ceiling <= 0 || ceiling > b.max {
		ceiling = b.max
	}
	if ceiling <= b.min {
		return b.min
	}
	r := rand.Float64
	if b.rand != nil {
		r = b.rand
	}
	return b.min + time.Duration(r()*float64(ceiling-b.min))
}

func newLogger(level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	}))
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var (
	_ types.Logger = (*slogAdapter)(nil)
	_ session      = (*master.Session)(nil)
)

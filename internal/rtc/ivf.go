package rtc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/ivfreader"

	"kvsdoorbell/internal/master"
	"kvsdoorbell/internal/types"
)

// Track and stream ids announced to viewers.
const (
	videoTrackID  = "video"
	videoStreamID = "doorbell"
)

// fallbackFrameDuration applies when the IVF header has no usable timebase.
const fallbackFrameDuration = 33 * time.Millisecond

type sampleWriter interface {
	WriteSample(s media.Sample) error
}

// IVFSource streams the frames of an IVF file as the master's local video
// track, paced by the file's timebase. Every connected peer receives the
// same frames.
type IVFSource struct {
	path   string
	loop   bool
	logger types.Logger

	open func(path string) (io.ReadCloser, error)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

var _ master.MediaSource = (*IVFSource)(nil)

// NewIVFSource returns a source for the IVF file at path. With loop set the
// file restarts at its end; otherwise the track goes silent.
func NewIVFSource(path string, loop bool, logger types.Logger) *IVFSource {
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &IVFSource{
		path:   path,
		loop:   loop,
		logger: logger.With("component", "media", "file", path),
		open: func(path string) (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
}

// Start opens the file and starts pacing frames into the returned track.
func (s *IVFSource) Start(ctx context.Context) ([]master.Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return nil, errors.New("media source already started")
	}
	if s.path == "" {
		return nil, errors.New("no media file configured")
	}

	f, reader, header, err := s.openIVF()
	if err != nil {
		return nil, err
	}
	mime, err := mimeType(header.FourCC)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	track, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: mime}, videoTrackID, videoStreamID)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("create video track: %w", err)
	}

	pumpCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.pump(pumpCtx, s.done, track, f, reader, frameDuration(header))

	s.logger.Info("streaming video file", "codec", mime, "width", int(header.Width), "height", int(header.Height))
	return []master.Track{track}, nil
}

// Stop ends the pump and waits for it. It is a no-op when not started.
func (s *IVFSource) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *IVFSource) openIVF() (io.ReadCloser, *ivfreader.IVFReader, *ivfreader.IVFFileHeader, error) {
	f, err := s.open(s.path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open media file: %w", err)
	}
	reader, header, err := ivfreader.NewWith(f)
	if err != nil {
		_ = f.Close()
		return nil, nil, nil, fmt.Errorf("read IVF header of %s: %w", s.path, err)
	}
	return f, reader, header, nil
}

// pump writes one frame per tick until ctx is cancelled or the file ends.
func (s *IVFSource) pump(ctx context.Context, done chan struct{}, w sampleWriter, f io.ReadCloser, reader *ivfreader.IVFReader, every time.Duration) {
	defer close(done)
	defer func() { _ = f.Close() }()

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		frame, _, err := reader.ParseNextFrame()
		if errors.Is(err, io.EOF) {
			if !s.loop {
				s.logger.Info("end of video file")
				return
			}
			_ = f.Close()
			nf, nr, _, err := s.openIVF()
			if err != nil {
				s.logger.Error("reopening video file", "error", err.Error())
				return
			}
			f, reader = nf, nr
			continue
		}
		if err != nil {
			s.logger.Error("reading video frame", "error", err.Error())
			return
		}

		if err := w.WriteSample(media.Sample{Data: frame, Duration: every}); err != nil {
			s.logger.Error("writing video sample", "error", err.Error())
			return
		}
	}
}

func mimeType(fourCC string) (string, error) {
	switch fourCC {
	case "VP80":
		return webrtc.MimeTypeVP8, nil
	case "VP90":
		return webrtc.MimeTypeVP9, nil
	default:
		return "", fmt.Errorf("unsupported IVF codec %q (want VP80 or VP90)", fourCC)
	}
}

func frameDuration(h *ivfreader.IVFFileHeader) time.Duration {
	if h.TimebaseNumerator == 0 || h.TimebaseDenominator == 0 {
		return fallbackFrameDuration
	}
	d := time.Duration(uint64(time.Second) * uint64(h.TimebaseNumerator) / uint64(h.TimebaseDenominator))
	if d <= 0 {
		return fallbackFrameDuration
	}
	return d
}

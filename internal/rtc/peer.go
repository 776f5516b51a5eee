// Package rtc backs the camera master with pion WebRTC: PeerFactory creates
// peer connections that answer viewer offers, and IVFSource streams a VP8 or
// VP9 file as the local video track.
package rtc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"

	"kvsdoorbell/internal/master"
	"kvsdoorbell/internal/types"
)

const defaultGatherTimeout = 10 * time.Second

// readBufferSize fits one RTP or RTCP packet at the usual MTU.
const readBufferSize = 1500

// PeerFactory creates pion peer connections for master.Session.
type PeerFactory struct {
	gatherTimeout time.Duration
	logger        types.Logger
}

var _ master.PeerFactory = (*PeerFactory)(nil)

// NewPeerFactory returns a factory whose peers report GatheringFailed when
// ICE gathering has not finished within gatherTimeout.
func NewPeerFactory(gatherTimeout time.Duration, logger types.Logger) *PeerFactory {
	if gatherTimeout <= 0 {
		gatherTimeout = defaultGatherTimeout
	}
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &PeerFactory{gatherTimeout: gatherTimeout, logger: logger.With("component", "rtc")}
}

// NewPeer creates a peer connection using iceServers.
func (f *PeerFactory) NewPeer(iceServers []master.ICEServer, emit func(master.Event)) (master.PeerConnection, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{ICEServers: toICEServers(iceServers)})
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}

	p := &peer{
		pc:            pc,
		emit:          emit,
		gatherTimeout: f.gatherTimeout,
		logger:        f.logger,
	}
	pc.OnICECandidate(p.onICECandidate)
	pc.OnTrack(p.onTrack)
	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		p.logger.Info("ICE connection state", "state", state.String())
	})
	return p, nil
}

func toICEServers(servers []master.ICEServer) []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(servers))
	for _, s := range servers {
		srv := webrtc.ICEServer{URLs: s.URLs}
		if s.Username != "" {
			srv.Username = s.Username
			srv.Credential = s.Credential
		}
		out = append(out, srv)
	}
	return out
}

type peer struct {
	pc            *webrtc.PeerConnection
	emit          func(master.Event)
	gatherTimeout time.Duration
	logger        types.Logger

	gathered atomic.Bool
	closed   atomic.Bool

	mu    sync.Mutex
	timer *time.Timer
}

// send drops events once the peer is closed, so pion callbacks that race
// with Close cannot block on a session that no longer reads them.
func (p *peer) send(ev master.Event) {
	if p.closed.Load() {
		return
	}
	p.emit(ev)
}

// onICECandidate is called with nil when gathering has finished.
func (p *peer) onICECandidate(c *webrtc.ICECandidate) {
	if c != nil {
		return
	}
	if p.gathered.Swap(true) {
		return
	}
	p.stopTimer()
	p.send(master.Event{Kind: master.EventGatheringState, Gathering: master.GatheringComplete})
}

func (p *peer) onGatherTimeout() {
	if p.gathered.Swap(true) {
		return
	}
	p.logger.Warn("ICE gathering timed out", "timeout", p.gatherTimeout.String())
	p.send(master.Event{Kind: master.EventGatheringState, Gathering: master.GatheringFailed})
}

func (p *peer) onTrack(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
	p.logger.Info("remote track", "kind", track.Kind().String(), "codec", track.Codec().MimeType)
	p.send(master.Event{Kind: master.EventRemoteTrack})

	// Unread remote media would back up the receive buffers.
	go func() {
		buf := make([]byte, readBufferSize)
		for {
			if _, _, err := track.Read(buf); err != nil {
				return
			}
		}
	}()
}

func (p *peer) AddTrack(track master.Track) error {
	local, ok := track.(webrtc.TrackLocal)
	if !ok {
		return fmt.Errorf("track %s is not a WebRTC local track", track.ID())
	}
	sender, err := p.pc.AddTrack(local)
	if err != nil {
		return err
	}

	// Reading RTCP lets NACK and receiver reports reach the interceptors.
	go func() {
		buf := make([]byte, readBufferSize)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()
	return nil
}

func (p *peer) SetRemoteDescription(sdp string) error {
	return p.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp})
}

// CreateAnswer sets the answer as local description, which starts ICE
// gathering. The session sends LocalDescription once gathering completes.
func (p *peer) CreateAnswer(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return err
	}

	// Reported before gathering starts so that it cannot follow completion.
	p.send(master.Event{Kind: master.EventGatheringState, Gathering: master.GatheringGathering})

	p.mu.Lock()
	p.timer = time.AfterFunc(p.gatherTimeout, p.onGatherTimeout)
	p.mu.Unlock()

	if err := p.pc.SetLocalDescription(answer); err != nil {
		p.stopTimer()
		return err
	}
	return nil
}

func (p *peer) LocalDescription() string {
	desc := p.pc.LocalDescription()
	if desc == nil {
		return ""
	}
	return desc.SDP
}

// AddICECandidate adds a trickled viewer candidate. Signaling does not carry
// the media line, and with BUNDLE every line shares one transport, so the
// candidate is attached to the first.
func (p *peer) AddICECandidate(candidate string) error {
	var first uint16
	return p.pc.AddICECandidate(webrtc.ICECandidateInit{Candidate: candidate, SDPMLineIndex: &first})
}

func (p *peer) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	p.stopTimer()
	if err := p.pc.Close(); err != nil && !errors.Is(err, webrtc.ErrConnectionClosed) {
		return err
	}
	return nil
}

func (p *peer) stopTimer() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
	}
}

package master

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"kvsdoorbell/internal/signaling"
	"kvsdoorbell/internal/types"
)

// peerEventBuffer bounds the gathering and track events waiting for Run.
const peerEventBuffer = 16

var (
	// ErrInvalidState is returned when an operation is not allowed in the
	// current state.
	ErrInvalidState = errors.New("master: invalid session state")
	// ErrSignalingLost is returned by Run when the service closed the
	// signaling connection. The caller may Stop and Start the session again.
	ErrSignalingLost = errors.New("master: signaling connection lost")
)

// Config configures a Session.
type Config struct {
	// Region selects the KVS STUN server.
	Region string
	// ExtraICEServers are appended after the STUN server.
	ExtraICEServers []ICEServer
}

// Session is the camera master for one signaling channel.
type Session struct {
	signaling  Signaling
	peers      PeerFactory
	media      MediaSource
	iceServers []ICEServer
	logger     types.Logger

	peerEvents chan Event

	mu       sync.Mutex
	state    State
	tracks   []Track
	peer     PeerConnection
	peerGen  uint64
	remoteID string
}

// NewSession creates an idle Session.
func NewSession(cfg Config, sig Signaling, peers PeerFactory, media MediaSource, logger types.Logger) *Session {
	if logger == nil {
		logger = types.NopLogger{}
	}
	ice := []ICEServer{{URLs: []string{signaling.STUNServer(cfg.Region)}}}
	ice = append(ice, cfg.ExtraICEServers...)

	return &Session{
		signaling:  sig,
		peers:      peers,
		media:      media,
		iceServers: ice,
		logger:     logger.With("component", "master"),
		peerEvents: make(chan Event, peerEventBuffer),
		state:      StateIdle,
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ICEServers returns the servers handed to each new peer.
func (s *Session) ICEServers() []ICEServer {
	return s.iceServers
}

// Start prepares local media and opens signaling. A camera that cannot be
// opened is logged and the session continues without local tracks.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle && s.state != StateClosed {
		return fmt.Errorf("%w: start from %s", ErrInvalidState, s.state)
	}

	tracks, err := s.media.Start(ctx)
	if err != nil {
		s.logger.Error("webcam streaming error", "error", err.Error())
		tracks = nil
	}
	s.tracks = tracks

	if err := s.signaling.Open(ctx); err != nil {
		if s.tracks != nil {
			s.media.Stop()
			s.tracks = nil
		}
		return fmt.Errorf("open signaling: %w", err)
	}

	s.state = StateOpen
	s.logger.Info("master started", "tracks", len(tracks))
	return nil
}

// Run consumes signaling and peer events until ctx is done, the signaling
// event stream ends (nil) or the connection drops (ErrSignalingLost).
// Handler failures are logged and do not stop the loop.
func (s *Session) Run(ctx context.Context) error {
	sigEvents := s.signaling.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-sigEvents:
			if !ok {
				s.logger.Info("signaling event stream ended")
				return nil
			}
			s.dispatch(ctx, ev)
			if ev.Kind == EventSignalingClosed {
				return ErrSignalingLost
			}
		case ev := <-s.peerEvents:
			s.dispatch(ctx, ev)
		}
	}
}

func (s *Session) dispatch(ctx context.Context, ev Event) {
	if err := s.handle(ctx, ev); err != nil {
		s.logger.Error("event handling failed", "event", int(ev.Kind), "error", err.Error())
	}
}

// handle applies one event to the session.
func (s *Session) handle(ctx context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Kind {
	case EventSignalingOpen:
		s.logger.Info("connected to signaling service")
		return nil

	case EventSignalingClosed:
		s.logger.Info("disconnected from signaling channel")
		return nil

	case EventSignalingError:
		s.logger.Error("signaling client error", "error", fmt.Sprint(ev.Err))
		return nil

	case EventOffer:
		return s.acceptOffer(ctx, ev)

	case EventRemoteCandidate:
		if s.peer == nil {
			return fmt.Errorf("%w: ICE candidate from %s without a peer", ErrInvalidState, ev.ClientID)
		}
		return s.peer.AddICECandidate(ev.Candidate)

	case EventGatheringState:
		if !s.fromCurrentPeer(ev) {
			return nil
		}
		return s.gatheringChanged(ctx, ev.Gathering)

	case EventRemoteTrack:
		if !s.fromCurrentPeer(ev) {
			return nil
		}
		s.logger.Info("received remote track", "client_id", s.remoteID)
		return nil

	default:
		return fmt.Errorf("unknown event kind %d", ev.Kind)
	}
}

// acceptOffer replaces any existing peer with a new one answering ev.
func (s *Session) acceptOffer(ctx context.Context, ev Event) error {
	if s.state != StateOpen && s.state != StateStreaming {
		return fmt.Errorf("%w: offer in %s", ErrInvalidState, s.state)
	}
	s.logger.Info("received SDP offer", "client_id", ev.ClientID)

	s.closePeer()

	s.peerGen++
	peer, err := s.peers.NewPeer(s.iceServers, s.emitter(s.peerGen))
	if err != nil {
		return fmt.Errorf("create peer: %w", err)
	}
	s.peer = peer
	s.remoteID = ev.ClientID
	s.state = StateOpen

	for _, track := range s.tracks {
		if err := peer.AddTrack(track); err != nil {
			s.closePeer()
			return fmt.Errorf("add track %s: %w", track.ID(), err)
		}
	}
	if err := peer.SetRemoteDescription(ev.SDP); err != nil {
		s.closePeer()
		return fmt.Errorf("set remote description: %w", err)
	}
	if err := peer.CreateAnswer(ctx); err != nil {
		s.closePeer()
		return fmt.Errorf("create answer: %w", err)
	}
	return nil
}

// emitter returns the event sink handed to the peer of generation gen.
func (s *Session) emitter(gen uint64) func(Event) {
	return func(ev Event) {
		ev.Peer = gen
		s.peerEvents <- ev
	}
}

// fromCurrentPeer reports whether ev was raised by the live peer. Callers
// hold mu.
func (s *Session) fromCurrentPeer(ev Event) bool {
	if s.peer != nil && ev.Peer == s.peerGen {
		return true
	}
	s.logger.Info("dropping event from replaced peer", "event", int(ev.Kind), "peer", ev.Peer)
	return false
}

// gatheringChanged sends the answer once gathering completes, or drops the
// peer when it fails.
func (s *Session) gatheringChanged(ctx context.Context, state GatheringState) error {
	s.logger.Info("ICE gathering state", "state", string(state))
	if s.peer == nil {
		return nil
	}

	switch state {
	case GatheringComplete:
		if err := s.signaling.SendAnswer(ctx, s.peer.LocalDescription(), s.remoteID); err != nil {
			return fmt.Errorf("send answer to %s: %w", s.remoteID, err)
		}
		s.state = StateStreaming
		s.logger.Info("sent SDP answer", "client_id", s.remoteID)
	case GatheringFailed:
		s.logger.Warn("failed to gather ICE candidates", "client_id", s.remoteID)
		s.closePeer()
		s.state = StateOpen
	}
	return nil
}

// closePeer releases the current peer, if any. Callers hold mu.
func (s *Session) closePeer() {
	if s.peer == nil {
		return
	}
	if err := s.peer.Close(); err != nil {
		s.logger.Warn("closing peer connection", "error", err.Error())
	}
	s.peer = nil
	s.remoteID = ""
}

// Stop closes signaling, the peer and local media. The Session keeps its
// collaborators and can be started again.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateIdle || s.state == StateClosed {
		return nil
	}

	var errs []error
	if err := s.signaling.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close signaling: %w", err))
	}
	s.closePeer()
	if s.tracks != nil {
		s.media.Stop()
		s.tracks = nil
	}

	s.state = StateClosed
	s.logger.Info("master stopped")
	return errors.Join(errs...)
}

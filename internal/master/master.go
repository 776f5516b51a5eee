// Package master runs the camera side of a doorbell video session. A Session
// owns the signaling connection, the local media and at most one peer
// connection, and moves through idle, open, streaming and closed as events
// arrive from signaling and from the peer.
//
// The WebRTC stack and the signaling transport are collaborators behind the
// Signaling, PeerFactory and MediaSource interfaces. WSSignaling implements
// Signaling over the KVS WebSocket API.
package master

import (
	"context"
)

// State is the lifecycle state of a Session.
type State int

const (
	// StateIdle: created, nothing acquired.
	StateIdle State = iota
	// StateOpen: media prepared and signaling connected, waiting for an offer.
	StateOpen
	// StateStreaming: an answer was sent and media flows to a viewer.
	StateStreaming
	// StateClosed: all resources released. Start may be called again.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpen:
		return "open"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// EventKind discriminates Event.
type EventKind int

const (
	EventSignalingOpen EventKind = iota + 1
	EventSignalingClosed
	EventSignalingError
	EventOffer
	EventRemoteCandidate
	EventGatheringState
	EventRemoteTrack
)

// GatheringState is the ICE gathering state reported by a peer.
type GatheringState string

const (
	GatheringNew       GatheringState = "new"
	GatheringGathering GatheringState = "gathering"
	GatheringComplete  GatheringState = "complete"
	GatheringFailed    GatheringState = "failed"
)

// Event is a single notification from signaling or from the peer
// connection. Only the fields relevant to Kind are set.
type Event struct {
	Kind      EventKind
	ClientID  string         // remote viewer (offer, candidate)
	SDP       string         // offer
	Candidate string         // remote ICE candidate
	Gathering GatheringState // gathering state change
	Err       error          // signaling error
	// Peer is the generation of the peer that raised a gathering or track
	// event. The session stamps it; events from replaced peers are dropped.
	Peer uint64
}

// ICEServer is a STUN or TURN server handed to new peers.
type ICEServer struct {
	URLs       []string
	Username   string
	Credential string
}

// Signaling is the master's connection to the signaling channel.
type Signaling interface {
	Open(ctx context.Context) error
	// Events reports a dropped connection as EventSignalingClosed. It may
	// stay open across Close and Open.
	Events() <-chan Event
	SendAnswer(ctx context.Context, sdp, clientID string) error
	Close() error
}

// Track is a local media track.
type Track interface {
	ID() string
}

// MediaSource captures local camera and microphone tracks.
type MediaSource interface {
	Start(ctx context.Context) ([]Track, error)
	Stop()
}

// PeerConnection is one WebRTC peer connection.
type PeerConnection interface {
	AddTrack(track Track) error
	SetRemoteDescription(sdp string) error
	// CreateAnswer creates the answer and sets it as local description,
	// which starts ICE gathering.
	CreateAnswer(ctx context.Context) error
	LocalDescription() string
	AddICECandidate(candidate string) error
	Close() error
}

// PeerFactory creates peer connections. The peer reports gathering state
// changes and remote tracks through emit, which may block until the session
// picks the event up.
type PeerFactory interface {
	NewPeer(iceServers []ICEServer, emit func(Event)) (PeerConnection, error)
}

package master

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/gorilla/websocket"

	"kvsdoorbell/internal/signaling"
	"kvsdoorbell/internal/types"
)

// Message types of the KVS signaling WebSocket API.
const (
	messageSDPOffer       = "SDP_OFFER"
	messageICECandidate   = "ICE_CANDIDATE"
	messageStatusResponse = "STATUS_RESPONSE"
	actionSDPAnswer       = "SDP_ANSWER"
)

const (
	signingService = "kinesisvideo"
	// sha256 of an empty body.
	emptyPayloadHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	presignExpiry    = 299 * time.Second
	wsEventBuffer    = 16
	wsWriteTimeout   = 5 * time.Second
)

type inboundMessage struct {
	MessageType    string          `json:"messageType"`
	MessagePayload string          `json:"messagePayload"`
	SenderClientID string          `json:"senderClientId"`
	StatusResponse *statusResponse `json:"statusResponse,omitempty"`
}

type statusResponse struct {
	CorrelationID string `json:"correlationId"`
	ErrorType     string `json:"errorType"`
	StatusCode    string `json:"statusCode"`
	Description   string `json:"description"`
}

type outboundMessage struct {
	Action            string `json:"action"`
	MessagePayload    string `json:"messagePayload"`
	RecipientClientID string `json:"recipientClientId,omitempty"`
}

type iceCandidate struct {
	Candidate     string `json:"candidate"`
	SDPMid        string `json:"sdpMid,omitempty"`
	SDPMLineIndex int    `json:"sdpMLineIndex"`
}

// WSSignaling is the master's connection to a KVS signaling channel over
// the WebSocket API. It can be opened again after Close. The Events channel
// lives as long as the WSSignaling and is never closed.
type WSSignaling struct {
	resolver *signaling.EndpointResolver
	creds    aws.CredentialsProvider
	region   string
	signer   *v4.Signer
	dialer   *websocket.Dialer
	clock    types.Clock
	logger   types.Logger

	events chan Event

	mu   sync.Mutex
	conn *websocket.Conn
	done chan struct{}

	writeMu sync.Mutex
}

var _ Signaling = (*WSSignaling)(nil)

// NewWSSignaling creates a master signaling client. Requests are signed
// with cfg's credentials for cfg.Region.
func NewWSSignaling(resolver *signaling.EndpointResolver, cfg aws.Config, logger types.Logger) *WSSignaling {
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &WSSignaling{
		resolver: resolver,
		creds:    cfg.Credentials,
		region:   cfg.Region,
		signer:   v4.NewSigner(),
		dialer:   websocket.DefaultDialer,
		clock:    types.RealClock{},
		logger:   logger.With("component", "signaling"),
		events:   make(chan Event, wsEventBuffer),
	}
}

// Events returns the stream of signaling events.
func (s *WSSignaling) Events() <-chan Event {
	return s.events
}

// Open resolves the channel's MASTER endpoint and connects to it.
func (s *WSSignaling) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return errors.New("signaling connection already open")
	}

	eps, err := s.resolver.Resolve(ctx, signaling.RoleMaster)
	if err != nil {
		return err
	}
	signed, err := s.presign(ctx, eps)
	if err != nil {
		return err
	}

	conn, resp, err := s.dialer.DialContext(ctx, signed, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("connect to signaling channel: %s: %w", resp.Status, err)
		}
		return fmt.Errorf("connect to signaling channel: %w", err)
	}

	s.conn = conn
	s.done = make(chan struct{})
	s.logger.Info("signaling connection opened", "channel_arn", eps.ChannelARN)

	go s.readLoop(conn, s.done)
	return nil
}

// presign returns the WSS endpoint with SigV4 query authentication.
func (s *WSSignaling) presign(ctx context.Context, eps *signaling.Endpoints) (string, error) {
	if s.creds == nil {
		return "", errors.New("no AWS credentials configured")
	}

	u, err := url.Parse(eps.WSS)
	if err != nil {
		return "", fmt.Errorf("parse signaling endpoint: %w", err)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	q := u.Query()
	q.Set("X-Amz-ChannelARN", eps.ChannelARN)
	q.Set("X-Amz-Expires", strconv.Itoa(int(presignExpiry/time.Second)))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("build signaling request: %w", err)
	}
	creds, err := s.creds.Retrieve(ctx)
	if err != nil {
		return "", fmt.Errorf("retrieve AWS credentials: %w", err)
	}

	signed, _, err := s.signer.PresignHTTP(ctx, creds, req, emptyPayloadHash, signingService, s.region, s.clock.Now())
	if err != nil {
		return "", fmt.Errorf("presign signaling endpoint: %w", err)
	}
	return signed, nil
}

func (s *WSSignaling) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer func() {
		s.emit(done, Event{Kind: EventSignalingClosed})

		s.mu.Lock()
		if s.conn == conn {
			s.conn = nil
			s.done = nil
		}
		s.mu.Unlock()
		_ = conn.Close()
	}()

	s.emit(done, Event{Kind: EventSignalingOpen})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-done:
				return
			default:
			}
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) || websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.emit(done, Event{Kind: EventSignalingError, Err: fmt.Errorf("signaling connection: %w", err)})
			}
			return
		}

		// The service sends empty frames as keep-alives.
		if len(bytes.TrimSpace(data)) == 0 {
			continue
		}

		ev, ok, err := decodeMessage(data)
		if err != nil {
			s.emit(done, Event{Kind: EventSignalingError, Err: err})
			continue
		}
		if ok {
			s.emit(done, ev)
		}
	}
}

// emit delivers ev unless the connection it belongs to was closed.
func (s *WSSignaling) emit(done chan struct{}, ev Event) {
	select {
	case <-done:
		return
	default:
	}
	select {
	case s.events <- ev:
	case <-done:
	}
}

// decodeMessage converts one signaling message into an Event. ok is false
// for messages the master does not act on.
func decodeMessage(data []byte) (ev Event, ok bool, err error) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return Event{}, false, fmt.Errorf("parse signaling message: %w", err)
	}

	switch msg.MessageType {
	case messageSDPOffer:
		sdp, err := signaling.DecodeOffer(msg.MessagePayload)
		if err != nil {
			return Event{}, false, fmt.Errorf("offer from %s: %w", msg.SenderClientID, err)
		}
		return Event{Kind: EventOffer, ClientID: msg.SenderClientID, SDP: sdp}, true, nil

	case messageICECandidate:
		raw, err := base64.StdEncoding.DecodeString(msg.MessagePayload)
		if err != nil {
			return Event{}, false, fmt.Errorf("decode ICE candidate from %s: %w", msg.SenderClientID, err)
		}
		var c iceCandidate
		if err := json.Unmarshal(raw, &c); err != nil {
			return Event{}, false, fmt.Errorf("parse ICE candidate from %s: %w", msg.SenderClientID, err)
		}
		return Event{Kind: EventRemoteCandidate, ClientID: msg.SenderClientID, Candidate: c.Candidate}, true, nil

	case messageStatusResponse:
		if st := msg.StatusResponse; st != nil && st.StatusCode != "" && st.StatusCode != "200" {
			return Event{}, false, fmt.Errorf("signaling status %s %s: %s", st.StatusCode, st.ErrorType, st.Description)
		}
		return Event{}, false, nil

	default:
		return Event{}, false, nil
	}
}

// SendAnswer sends an SDP answer to the viewer clientID.
func (s *WSSignaling) SendAnswer(ctx context.Context, sdp, clientID string) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return errors.New("signaling connection is not open")
	}

	deadline := time.Now().Add(wsWriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("send SDP answer: %w", err)
	}
	err := conn.WriteJSON(outboundMessage{
		Action:            actionSDPAnswer,
		MessagePayload:    signaling.EncodeAnswer(sdp),
		RecipientClientID: clientID,
	})
	if err != nil {
		return fmt.Errorf("send SDP answer: %w", err)
	}
	return nil
}

// Close ends the current connection. It is a no-op when not open.
func (s *WSSignaling) Close() error {
	s.mu.Lock()
	conn, done := s.conn, s.done
	s.conn, s.done = nil, nil
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	close(done)

	err := conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	if err != nil {
		s.logger.Warn("failed to send close message", "error", err.Error())
	}
	s.logger.Info("signaling connection closed")
	return conn.Close()
}

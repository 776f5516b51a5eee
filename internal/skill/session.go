package skill

import (
	"context"
	"fmt"

	"kvsdoorbell/internal/alexa"
	"kvsdoorbell/internal/types"
)

// OfferRelay sends an SDP offer to the camera and returns its SDP answer.
// Implementations own the timeout.
type OfferRelay interface {
	RelayOffer(ctx context.Context, offerSDP string) (string, error)
}

// SessionRelay answers Alexa.RTCSessionController directives. Sessions are
// not stored: each directive is a one-shot relay or echo.
type SessionRelay struct {
	builder *alexa.Builder
	relay   OfferRelay
	byName  map[string]Handler
}

// NewSessionRelay creates a SessionRelay.
func NewSessionRelay(builder *alexa.Builder, relay OfferRelay) *SessionRelay {
	s := &SessionRelay{builder: builder, relay: relay}
	s.byName = map[string]Handler{
		alexa.NameInitiateSessionWithOffer: s.initiate,
		alexa.NameSessionConnected:         s.echo(alexa.NameSessionConnected),
		alexa.NameSessionDisconnected:      s.echo(alexa.NameSessionDisconnected),
	}
	return s
}

// Handle selects the sub-handler by directive name. Unknown names are
// answered with INVALID_DIRECTIVE.
func (s *SessionRelay) Handle(ctx context.Context, d *alexa.Directive) (*alexa.Envelope, error) {
	h, ok := s.byName[d.Header.Name]
	if !ok {
		return s.builder.Error(alexa.ErrorTypeInvalidDirective,
			fmt.Sprintf("%s is NOT a directive handled by the Skill", d.Header.Name)), nil
	}
	return h(ctx, d)
}

func (s *SessionRelay) initiate(ctx context.Context, d *alexa.Directive) (*alexa.Envelope, error) {
	var payload alexa.RTCSessionPayload
	if err := d.DecodePayload(&payload); err != nil {
		return nil, types.NewAppError(types.ErrCodeInvalidDirective,
			fmt.Sprintf("Malformed session payload: %v", err), err)
	}
	if payload.Offer == nil || payload.Offer.Value == "" {
		return nil, types.NewAppError(types.ErrCodeInvalidDirective, "Missing key: payload.offer.value", nil)
	}

	logger := types.LoggerFromContext(ctx).With("session_id", payload.SessionID)
	logger.Info("relaying session offer", "offer_bytes", len(payload.Offer.Value))

	answer, err := s.relay.RelayOffer(types.WithLogger(ctx, logger), payload.Offer.Value)
	if err != nil {
		return nil, fmt.Errorf("relay offer for session %s: %w", payload.SessionID, err)
	}

	return s.builder.Build(alexa.NamespaceRTCSessionController, alexa.NameAnswerGeneratedForSession,
		alexa.WithCorrelationToken(d.CorrelationToken()),
		alexa.WithEndpoint(d.EndpointID(), d.Token()),
		alexa.WithPayload(alexa.AnswerPayload{
			Answer: alexa.SessionDescription{Format: alexa.SDPFormat, Value: answer},
		}),
	), nil
}

// echo returns a handler that mirrors the session id, correlation token and
// endpoint into a response named name.
func (s *SessionRelay) echo(name string) Handler {
	return func(ctx context.Context, d *alexa.Directive) (*alexa.Envelope, error) {
		var payload alexa.RTCSessionPayload
		if err := d.DecodePayload(&payload); err != nil {
			return nil, types.NewAppError(types.ErrCodeInvalidDirective,
				fmt.Sprintf("Malformed session payload: %v", err), err)
		}
		types.LoggerFromContext(ctx).Info("session state changed", "session_id", payload.SessionID, "state", name)

		return s.builder.Build(alexa.NamespaceRTCSessionController, name,
			alexa.WithCorrelationToken(d.CorrelationToken()),
			alexa.WithEndpoint(d.EndpointID(), d.Token()),
			alexa.WithPayload(alexa.SessionPayload{SessionID: payload.SessionID}),
		), nil
	}
}

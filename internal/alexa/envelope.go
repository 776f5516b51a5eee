package alexa

import (
	"errors"

	"github.com/google/uuid"

	"kvsdoorbell/internal/types"
)

// Envelope is an outbound event: a directive response, an error response or
// a proactive event sent to the Event Gateway.
type Envelope struct {
	Context *EventContext `json:"context,omitempty"`
	Event   Event         `json:"event"`
}

// EventContext carries reported properties. The doorbell reports none, so it
// serializes as an empty object.
type EventContext struct {
	Properties []any `json:"properties,omitempty"`
}

// Event is the body of an Envelope.
type Event struct {
	Header   Header    `json:"header"`
	Endpoint *Endpoint `json:"endpoint,omitempty"`
	Payload  any       `json:"payload"`
}

// Header is an outbound event header.
type Header struct {
	Namespace        string `json:"namespace"`
	Name             string `json:"name"`
	MessageID        string `json:"messageId"`
	CorrelationToken string `json:"correlationToken,omitempty"`
	PayloadVersion   string `json:"payloadVersion"`
}

// Endpoint identifies the appliance an event refers to.
type Endpoint struct {
	Scope      *Scope `json:"scope,omitempty"`
	EndpointID string `json:"endpointId"`
}

// Scope is a bearer token scope.
type Scope struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// ErrorPayload is the payload of an ErrorResponse event.
type ErrorPayload struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
}

// AnswerPayload is the payload of AnswerGeneratedForSession.
type AnswerPayload struct {
	Answer SessionDescription `json:"answer"`
}

// SessionPayload is the payload of SessionConnected and SessionDisconnected
// responses.
type SessionPayload struct {
	SessionID string `json:"sessionId"`
}

// IDGenerator produces event message ids.
type IDGenerator func() string

// Builder constructs envelopes with a unique messageId each.
type Builder struct {
	newID IDGenerator
}

// NewBuilder returns a Builder. A nil generator uses random UUIDs.
func NewBuilder(gen IDGenerator) *Builder {
	if gen == nil {
		gen = uuid.NewString
	}
	return &Builder{newID: gen}
}

// Option customizes an Envelope under construction.
type Option func(*Envelope)

// WithPayload sets the event payload. A nil payload leaves the empty object.
func WithPayload(payload any) Option {
	return func(e *Envelope) {
		if payload != nil {
			e.Event.Payload = payload
		}
	}
}

// WithCorrelationToken sets header.correlationToken. An empty token is
// omitted from the output.
func WithCorrelationToken(token string) Option {
	return func(e *Envelope) {
		e.Event.Header.CorrelationToken = token
	}
}

// WithEndpoint attaches event.endpoint. With an empty endpointID and token the
// endpoint is omitted entirely; an empty token omits only the scope.
func WithEndpoint(endpointID, token string) Option {
	return func(e *Envelope) {
		if endpointID == "" && token == "" {
			e.Event.Endpoint = nil
			return
		}
		ep := &Endpoint{EndpointID: endpointID}
		if token != "" {
			ep.Scope = &Scope{Type: ScopeTypeBearerToken, Token: token}
		}
		e.Event.Endpoint = ep
	}
}

// Build assembles an envelope for namespace and name.
func (b *Builder) Build(namespace, name string, opts ...Option) *Envelope {
	env := &Envelope{
		Context: &EventContext{},
		Event: Event{
			Header: Header{
				Namespace:      namespace,
				Name:           name,
				MessageID:      b.newID(),
				PayloadVersion: PayloadVersion,
			},
			Payload: map[string]any{},
		},
	}
	for _, opt := range opts {
		opt(env)
	}
	return env
}

// Error assembles an Alexa.ErrorResponse envelope.
func (b *Builder) Error(errType ErrorType, message string, opts ...Option) *Envelope {
	opts = append([]Option{WithPayload(ErrorPayload{Type: errType, Message: message})}, opts...)
	return b.Build(NamespaceAlexa, NameErrorResponse, opts...)
}

// ErrorFor converts a validation or classification error into the matching
// ErrorResponse. It reports false for errors that must not be answered with
// an envelope (upstream failures and unexpected errors).
func (b *Builder) ErrorFor(err error) (*Envelope, bool) {
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		return nil, false
	}
	switch appErr.Code {
	case types.ErrCodeInvalidDirective:
		return b.Error(ErrorTypeInvalidDirective, appErr.Message), true
	case types.ErrCodeUnsupportedVersion:
		return b.Error(ErrorTypeInternalError, appErr.Message), true
	default:
		return nil, false
	}
}

var defaultBuilder = NewBuilder(nil)

// NewEnvelope builds an envelope with a random messageId.
func NewEnvelope(namespace, name string, opts ...Option) *Envelope {
	return defaultBuilder.Build(namespace, name, opts...)
}

// NewErrorEnvelope builds an ErrorResponse with a random messageId.
func NewErrorEnvelope(errType ErrorType, message string) *Envelope {
	return defaultBuilder.Error(errType, message)
}

// ErrorEnvelopeFor is Builder.ErrorFor on the default builder.
func ErrorEnvelopeFor(err error) (*Envelope, bool) {
	return defaultBuilder.ErrorFor(err)
}

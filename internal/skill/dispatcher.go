// Package skill implements the Smart Home skill: it validates inbound
// directives, routes them by kind and builds the response envelopes.
package skill

import (
	"context"
	"fmt"

	"kvsdoorbell/internal/alexa"
	"kvsdoorbell/internal/config"
	"kvsdoorbell/internal/external"
	"kvsdoorbell/internal/metrics"
	"kvsdoorbell/internal/types"
)

// Handler answers one kind of directive. A returned error that is a
// validation AppError becomes an ErrorResponse; any other error propagates
// to the caller.
type Handler func(ctx context.Context, d *alexa.Directive) (*alexa.Envelope, error)

// Deps are the collaborators of a Dispatcher.
type Deps struct {
	Grants  external.GrantExchanger
	Relay   OfferRelay
	Device  config.DeviceConfig
	Builder *alexa.Builder           // optional; random message ids
	Metrics metrics.DirectiveMetrics // optional; no-op
	Clock   types.Clock              // optional; real clock
}

// Dispatcher routes directives to handlers through a table keyed by
// alexa.DirectiveKind. It holds no per-request state.
type Dispatcher struct {
	builder  *alexa.Builder
	handlers map[alexa.DirectiveKind]Handler
	metrics  metrics.DirectiveMetrics
	clock    types.Clock
}

// NewDispatcher wires the authorization, discovery and RTC session handlers.
func NewDispatcher(deps Deps) *Dispatcher {
	builder := deps.Builder
	if builder == nil {
		builder = alexa.NewBuilder(nil)
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.Nop{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = types.RealClock{}
	}

	auth := NewAuthorizationHandler(builder, deps.Grants)
	discovery := NewDiscoveryBuilder(builder, deps.Device)
	sessions := NewSessionRelay(builder, deps.Relay)

	return &Dispatcher{
		builder: builder,
		handlers: map[alexa.DirectiveKind]Handler{
			alexa.KindAcceptGrant:              auth.Handle,
			alexa.KindDiscover:                 discovery.Handle,
			alexa.KindInitiateSessionWithOffer: sessions.Handle,
			alexa.KindSessionConnected:         sessions.Handle,
			alexa.KindSessionDisconnected:      sessions.Handle,
		},
		metrics: m,
		clock:   clock,
	}
}

// Handle validates a raw request body and dispatches it. Validation and
// routing failures are answered with an ErrorResponse envelope; upstream
// failures are returned as errors.
func (d *Dispatcher) Handle(ctx context.Context, raw []byte) (*alexa.Envelope, error) {
	start := d.clock.Now()

	namespace := ""
	env, err := func() (*alexa.Envelope, error) {
		directive, err := alexa.Validate(raw)
		if err != nil {
			return d.reject(ctx, err)
		}
		namespace = directive.NormalizedNamespace()
		return d.Dispatch(ctx, directive)
	}()

	result := metrics.ResultSuccess
	switch {
	case err != nil:
		result = metrics.ResultFailed
	case env.Event.Header.Name == alexa.NameErrorResponse:
		result = metrics.ResultRejected
	}
	d.metrics.RecordDirective(ctx, metrics.NamespaceDimension(namespace), result, d.clock.Now().Sub(start))

	return env, err
}

// Dispatch routes a validated directive to its handler.
func (d *Dispatcher) Dispatch(ctx context.Context, directive *alexa.Directive) (*alexa.Envelope, error) {
	logger := types.LoggerFromContext(ctx).With(
		"directive_namespace", directive.Header.Namespace,
		"directive_name", directive.Header.Name,
	)
	ctx = types.WithLogger(ctx, logger)

	kind, err := alexa.Classify(directive)
	if err != nil {
		return d.reject(ctx, err)
	}

	handler, ok := d.handlers[kind]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected,
			fmt.Sprintf("no handler registered for %s", kind), nil)
	}

	env, err := handler(ctx, directive)
	if err != nil {
		if errEnv, ok := d.builder.ErrorFor(err); ok {
			logger.Warn("directive rejected", "error", err.Error())
			return errEnv, nil
		}
		return nil, err
	}
	return env, nil
}

func (d *Dispatcher) reject(ctx context.Context, err error) (*alexa.Envelope, error) {
	env, ok := d.builder.ErrorFor(err)
	if !ok {
		return nil, err
	}
	types.LoggerFromContext(ctx).Warn("directive rejected", "error", err.Error())
	return env, nil
}

package skill

import (
	"context"
	"fmt"

	"kvsdoorbell/internal/alexa"
	"kvsdoorbell/internal/external"
	"kvsdoorbell/internal/types"
)

// AuthorizationHandler answers Alexa.Authorization directives by exchanging
// the grant code with LWA.
type AuthorizationHandler struct {
	builder *alexa.Builder
	grants  external.GrantExchanger
}

// NewAuthorizationHandler creates an AuthorizationHandler.
func NewAuthorizationHandler(builder *alexa.Builder, grants external.GrantExchanger) *AuthorizationHandler {
	return &AuthorizationHandler{builder: builder, grants: grants}
}

// Handle exchanges payload.grant.code for tokens and returns
// AcceptGrant.Response. A failed exchange is returned as an error, not as an
// ErrorResponse.
func (h *AuthorizationHandler) Handle(ctx context.Context, d *alexa.Directive) (*alexa.Envelope, error) {
	var payload alexa.AcceptGrantPayload
	if err := d.DecodePayload(&payload); err != nil {
		return nil, types.NewAppError(types.ErrCodeInvalidDirective,
			fmt.Sprintf("Malformed AcceptGrant payload: %v", err), err)
	}
	if payload.Grant.Code == "" {
		return nil, types.NewAppError(types.ErrCodeInvalidDirective,
			"Missing key: payload.grant.code", nil)
	}

	tok, err := h.grants.ExchangeGrant(ctx, payload.Grant.Code)
	if err != nil {
		return nil, fmt.Errorf("accept grant: %w", err)
	}
	types.LoggerFromContext(ctx).Info("authorization grant accepted",
		"token_type", tok.TokenType,
		"expires_in", tok.ExpiresIn,
	)

	return h.builder.Build(alexa.NamespaceAuthorization, alexa.NameAcceptGrantResponse), nil
}

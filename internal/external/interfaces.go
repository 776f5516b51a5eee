package external

import "context"

// userAgent identifies the skill to Amazon endpoints.
const userAgent = "KVSDoorbell/1.0"

// GrantExchanger trades an authorization code for tokens.
type GrantExchanger interface {
	ExchangeGrant(ctx context.Context, code string) (*Token, error)
}

// TokenRefresher renews an access token from a refresh token.
type TokenRefresher interface {
	RefreshToken(ctx context.Context, req RefreshRequest) (*Token, error)
}

// EventSender delivers proactive doorbell events.
type EventSender interface {
	SendDoorbellPress(ctx context.Context, press DoorbellPress) (string, error)
}

// Compile-time assertions that concrete types satisfy their interfaces.
var (
	_ GrantExchanger = (*LWAClient)(nil)
	_ TokenRefresher = (*LWAClient)(nil)
	_ EventSender    = (*GatewayClient)(nil)
)

package external

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"kvsdoorbell/internal/types"
)

// DefaultLWATokenURL is the Login with Amazon token endpoint.
const DefaultLWATokenURL = "https://api.amazon.com/auth/o2/token"

const lwaUpstream = "lwa"

// Token is an LWA token response.
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// LWAConfig holds the skill's client credentials. TokenURL may be empty to use
// DefaultLWATokenURL.
type LWAConfig struct {
	ClientID     string
	ClientSecret types.SecretString
	TokenURL     string
}

// RefreshRequest carries the credentials for a refresh_token grant. They are
// supplied per call because the console renews tokens for whichever skill
// the operator pastes credentials for.
type RefreshRequest struct {
	RefreshToken string
	ClientID     string
	ClientSecret types.SecretString
}

// LWAClient exchanges authorization grants and refresh tokens with Login with
// Amazon.
type LWAClient struct {
	base     *BaseClient
	cfg      LWAConfig
	tokenURL string
}

// NewLWAClient creates an LWAClient over httpClient, whose Timeout bounds each
// exchange.
func NewLWAClient(httpClient *http.Client, cfg LWAConfig) *LWAClient {
	return NewLWAClientWithBase(
		NewBaseClient(httpClient, "lwa", DefaultBreakerSettings(), userAgent),
		cfg,
	)
}

// NewLWAClientWithBase creates an LWAClient with a pre-configured BaseClient.
func NewLWAClientWithBase(base *BaseClient, cfg LWAConfig) *LWAClient {
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultLWATokenURL
	}
	return &LWAClient{base: base, cfg: cfg, tokenURL: tokenURL}
}

// ExchangeGrant trades an AcceptGrant authorization code for access and
// refresh tokens using the skill's own client credentials.
func (c *LWAClient) ExchangeGrant(ctx context.Context, code string) (*Token, error) {
	params := url.Values{}
	params.Set("grant_type", "authorization_code")
	params.Set("code", code)
	params.Set("client_id", c.cfg.ClientID)
	params.Set("client_secret", c.cfg.ClientSecret.Unmask())

	return c.requestToken(ctx, "authorization_code", params)
}

// RefreshToken obtains a new access token from a refresh token.
func (c *LWAClient) RefreshToken(ctx context.Context, req RefreshRequest) (*Token, error) {
	if req.RefreshToken == "" || req.ClientID == "" || req.ClientSecret.IsZero() {
		return nil, types.NewAppError(
			types.ErrCodeValidationMissing,
			"refresh token, client id and client secret are required",
			nil,
		)
	}

	params := url.Values{}
	params.Set("grant_type", "refresh_token")
	params.Set("refresh_token", req.RefreshToken)
	params.Set("client_id", req.ClientID)
	params.Set("client_secret", req.ClientSecret.Unmask())

	return c.requestToken(ctx, "refresh_token", params)
}

func (c *LWAClient) requestToken(ctx context.Context, grantType string, params url.Values) (*Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to create LWA token request",
			err,
		)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(lwaUpstream, resp).WithDetails(map[string]any{"grant_type": grantType})
	}

	var tok Token
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamFailure,
			"failed to decode LWA token response",
			err,
		)
	}
	if tok.AccessToken == "" {
		return nil, types.NewAppError(
			types.ErrCodeAuthTokenInvalid,
			"LWA returned empty access token",
			nil,
		)
	}

	return &tok, nil
}

package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"kvsdoorbell/internal/alexa"
	"kvsdoorbell/internal/types"
)

const gatewayUpstream = "alexa-event-gateway"

// Region selects one of the regional Alexa Event Gateways. The zero value is
// not a valid region.
type Region string

const (
	RegionNA Region = "NA"
	RegionEU Region = "EU"
	RegionFE Region = "FE"
)

var gatewayURLs = map[Region]string{
	RegionNA: "https://api.amazonalexa.com/v3/events",
	RegionEU: "https://api.eu.amazonalexa.com/v3/events",
	RegionFE: "https://api.fe.amazonalexa.com/v3/events",
}

// Regions lists the supported regions in display order.
func Regions() []Region {
	return []Region{RegionNA, RegionEU, RegionFE}
}

// ParseRegion validates a region code. Anything but NA, EU or FE (case
// insensitive) fails with types.ErrCodeInvalidRegion.
func ParseRegion(s string) (Region, error) {
	r := Region(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := gatewayURLs[r]; !ok {
		return "", types.NewAppErrorWithDetails(
			types.ErrCodeInvalidRegion,
			"The selected region is not valid. Please select either NA - EU - FE.",
			nil,
			map[string]any{"region": s},
		)
	}
	return r, nil
}

// URL returns the gateway endpoint for r, or "" for an invalid region.
func (r Region) URL() string {
	return gatewayURLs[r]
}

// DoorbellPress identifies the appliance and the bearer token for one press.
type DoorbellPress struct {
	Region     Region
	Token      types.SecretString
	EndpointID string
}

// GatewayClient sends proactive events to the Alexa Event Gateway.
type GatewayClient struct {
	base    *BaseClient
	builder *alexa.Builder
	clock   types.Clock
	urlFor  func(Region) string
}

// GatewayOption configures a GatewayClient.
type GatewayOption func(*GatewayClient)

// WithGatewayURLs overrides the regional endpoints. Used to point the client
// at a local server.
func WithGatewayURLs(urls map[Region]string) GatewayOption {
	return func(c *GatewayClient) {
		c.urlFor = func(r Region) string { return urls[r] }
	}
}

// WithClock overrides the clock used for event timestamps.
func WithClock(clock types.Clock) GatewayOption {
	return func(c *GatewayClient) { c.clock = clock }
}

// WithEnvelopeBuilder overrides the envelope builder (message ids).
func WithEnvelopeBuilder(b *alexa.Builder) GatewayOption {
	return func(c *GatewayClient) { c.builder = b }
}

// NewGatewayClient creates a GatewayClient over httpClient.
func NewGatewayClient(httpClient *http.Client, opts ...GatewayOption) *GatewayClient {
	c := &GatewayClient{
		base:    NewBaseClient(httpClient, "alexa-gateway", DefaultBreakerSettings(), userAgent),
		builder: alexa.NewBuilder(nil),
		clock:   types.RealClock{},
		urlFor:  Region.URL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DoorbellPressEvent builds the DoorbellPress envelope for press at the given
// instant.
func (c *GatewayClient) DoorbellPressEvent(press DoorbellPress, at time.Time) *alexa.Envelope {
	return c.builder.Build(alexa.NamespaceDoorbellEventSource, alexa.NameDoorbellPress,
		alexa.WithEndpoint(press.EndpointID, press.Token.Unmask()),
		alexa.WithPayload(alexa.DoorbellPressPayload{
			Cause:     alexa.DoorbellPressCause{Type: alexa.CausePhysicalInteraction},
			Timestamp: at.UTC().Format(time.RFC3339Nano),
		}),
	)
}

// SendDoorbellPress posts a DoorbellPress event to the gateway of
// press.Region and returns the event's messageId. An invalid region fails
// with types.ErrCodeInvalidRegion before any request is made.
func (c *GatewayClient) SendDoorbellPress(ctx context.Context, press DoorbellPress) (string, error) {
	if _, err := ParseRegion(string(press.Region)); err != nil {
		return "", err
	}
	if press.Token.IsZero() || press.EndpointID == "" {
		return "", types.NewAppError(
			types.ErrCodeValidationMissing,
			"bearer token and endpoint id are required",
			nil,
		)
	}
	target := c.urlFor(press.Region)
	if target == "" {
		return "", types.NewAppErrorWithDetails(types.ErrCodeInvalidRegion,
			fmt.Sprintf("no gateway configured for region %s", press.Region), nil,
			map[string]any{"region": string(press.Region)})
	}

	env := c.DoorbellPressEvent(press, c.clock.Now())
	body, err := json.Marshal(env)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode DoorbellPress event", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create gateway request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+press.Token.Unmask())

	resp, err := c.base.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	// The gateway answers 202 Accepted; any 2xx counts as delivered.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", statusError(gatewayUpstream, resp).WithDetails(map[string]any{"region": string(press.Region)})
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	return env.Event.Header.MessageID, nil
}

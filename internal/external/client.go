// Package external is the boundary between the doorbell skill and the Amazon
// HTTP APIs it calls directly: Login with Amazon (LWA) and the Alexa Event
// Gateway. All outbound HTTP calls are routed through BaseClient, which adds
// circuit breaking, trace propagation and error mapping. Requests are never
// retried: Alexa gives the skill a few seconds per directive and a stale
// bearer token does not get better on a second attempt.
package external

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"kvsdoorbell/internal/types"
)

// BreakerSettings configures the circuit breaker guarding one upstream.
type BreakerSettings struct {
	// ConsecutiveFailures trips the breaker once exceeded.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before half-opening.
	OpenTimeout time.Duration
}

// DefaultBreakerSettings returns the settings used for LWA and the gateway.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		ConsecutiveFailures: 5,
		OpenTimeout:         30 * time.Second,
	}
}

// BaseClient wraps an *http.Client and a circuit breaker. Provider clients
// (LWA, Event Gateway) embed it to share the same failure handling.
type BaseClient struct {
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker[*http.Response]
	userAgent string
}

// NewBaseClient creates a BaseClient whose breaker is named after the
// upstream it protects.
func NewBaseClient(httpClient *http.Client, breakerName string, settings BreakerSettings, userAgent string) *BaseClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > settings.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})

	return &BaseClient{
		client:    httpClient,
		breaker:   cb,
		userAgent: userAgent,
	}
}

// Do executes the HTTP request with:
//  1. Trace ID injection (X-B3-TraceId from context)
//  2. User-Agent header injection
//  3. Circuit breaker wrapping (5xx and 429 count as failures)
//  4. Error mapping to types.AppError
//
// Any HTTP response, including 4xx and 5xx, is returned to the caller, who
// must close the body. Transport failures and an open breaker are returned as
// a types.AppError.
func (c *BaseClient) Do(req *http.Request) (*http.Response, error) {
	if traceID := types.GetRequestID(req.Context()); traceID != "" {
		req.Header.Set("X-B3-TraceId", traceID)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		r, doErr := c.client.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		if r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests {
			return r, fmt.Errorf("upstream returned %d", r.StatusCode)
		}
		return r, nil
	})
	if resp != nil {
		// The breaker has recorded the outcome; status handling is the caller's.
		return resp, nil
	}
	return nil, mapError(req, err)
}

// mapError translates transport-level failures into AppErrors.
func mapError(req *http.Request, err error) *types.AppError {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewAppError(
			types.ErrCodeUpstreamRateLimited,
			"circuit breaker is open; upstream service unavailable",
			err,
		)
	}
	return types.NewAppErrorWithDetails(
		types.ErrCodeUpstreamFailure,
		fmt.Sprintf("request to %s failed: %v", req.URL.Host, err),
		err,
		map[string]any{"host": req.URL.Host},
	)
}

// statusError converts a non-2xx response into an AppError. The body is read
// (and truncated for the message); a human-readable description is pulled
// from it when the upstream provides one.
func statusError(upstream string, resp *http.Response) *types.AppError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	code := types.ErrCodeUpstreamFailure
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		code = types.ErrCodeUpstreamRateLimited
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		code = types.ErrCodeAuthTokenInvalid
	}

	details := map[string]any{
		"upstream": upstream,
		"status":   resp.StatusCode,
	}
	if desc := descriptionFromBody(body); desc != "" {
		details[types.DetailDescription] = desc
	}

	return types.NewAppErrorWithDetails(
		code,
		fmt.Sprintf("%s returned %d: %s", upstream, resp.StatusCode, truncateBody(body)),
		nil,
		details,
	)
}

// upstreamErrorBody covers the two error body shapes Amazon returns: the
// Event Gateway wraps errors in an event payload, LWA uses OAuth2 fields.
type upstreamErrorBody struct {
	Payload struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"payload"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func descriptionFromBody(body []byte) string {
	var parsed upstreamErrorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	switch {
	case parsed.Payload.Description != "":
		return parsed.Payload.Description
	case parsed.ErrorDescription != "":
		return parsed.ErrorDescription
	default:
		return parsed.Error
	}
}

// truncateBody limits a response body for inclusion in error messages.
func truncateBody(body []byte) string {
	const maxLen = 200
	s := string(body)
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}

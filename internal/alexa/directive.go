package alexa

import (
	"encoding/json"
	"strings"
)

// Request is the top-level body Alexa sends to the skill.
type Request struct {
	Directive *Directive `json:"directive"`
}

// Directive is one inbound Smart Home request. It is immutable once
// validated and lives for a single request/response cycle.
type Directive struct {
	Header   DirectiveHeader    `json:"header"`
	Endpoint *DirectiveEndpoint `json:"endpoint,omitempty"`
	Payload  json.RawMessage    `json:"payload,omitempty"`
}

// DirectiveHeader carries routing and correlation data.
type DirectiveHeader struct {
	Namespace        string `json:"namespace"`
	Name             string `json:"name"`
	MessageID        string `json:"messageId,omitempty"`
	CorrelationToken string `json:"correlationToken,omitempty"`
	PayloadVersion   string `json:"payloadVersion"`
}

// DirectiveEndpoint identifies the target appliance and the caller's bearer
// token.
type DirectiveEndpoint struct {
	Scope      Scope             `json:"scope"`
	EndpointID string            `json:"endpointId"`
	Cookie     map[string]string `json:"cookie,omitempty"`
}

// NormalizedNamespace returns the lower-cased namespace. Routing is
// case-insensitive on the namespace.
func (d *Directive) NormalizedNamespace() string {
	return strings.ToLower(d.Header.Namespace)
}

// CorrelationToken returns the header correlation token, or "".
func (d *Directive) CorrelationToken() string {
	return d.Header.CorrelationToken
}

// EndpointID returns the target endpoint id, or "" when the directive has no
// endpoint.
func (d *Directive) EndpointID() string {
	if d.Endpoint == nil {
		return ""
	}
	return d.Endpoint.EndpointID
}

// Token returns the bearer token from the endpoint scope, or "".
func (d *Directive) Token() string {
	if d.Endpoint == nil {
		return ""
	}
	return d.Endpoint.Scope.Token
}

// DecodePayload unmarshals the raw payload into v. An absent payload decodes
// as an empty object.
func (d *Directive) DecodePayload(v any) error {
	if len(d.Payload) == 0 || string(d.Payload) == "null" {
		return nil
	}
	return json.Unmarshal(d.Payload, v)
}

// AcceptGrantPayload is the payload of Alexa.Authorization.AcceptGrant.
type AcceptGrantPayload struct {
	Grant struct {
		Type string `json:"type"`
		Code string `json:"code"`
	} `json:"grant"`
	Grantee struct {
		Type  string `json:"type"`
		Token string `json:"token"`
	} `json:"grantee"`
}

// SessionDescription is an SDP offer or answer as carried in RTC payloads.
type SessionDescription struct {
	Format string `json:"format"`
	Value  string `json:"value"`
}

// RTCSessionPayload is the payload of every Alexa.RTCSessionController
// directive. Offer is only present on InitiateSessionWithOffer.
type RTCSessionPayload struct {
	SessionID string              `json:"sessionId"`
	Offer     *SessionDescription `json:"offer,omitempty"`
}

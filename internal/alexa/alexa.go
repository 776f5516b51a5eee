// Package alexa models the Alexa Smart Home API v3 wire format used by the
// doorbell skill: inbound directives, outbound event envelopes, discovery
// capabilities and the proactive DoorbellPress event.
//
// The package is pure data plus validation; it performs no I/O.
package alexa

// PayloadVersion is the only Smart Home API version the skill accepts.
const PayloadVersion = "3"

// Interface namespaces.
const (
	NamespaceAlexa                = "Alexa"
	NamespaceAuthorization        = "Alexa.Authorization"
	NamespaceDiscovery            = "Alexa.Discovery"
	NamespaceRTCSessionController = "Alexa.RTCSessionController"
	NamespaceDoorbellEventSource  = "Alexa.DoorbellEventSource"
)

// Directive and event names.
const (
	NameAcceptGrant               = "AcceptGrant"
	NameAcceptGrantResponse       = "AcceptGrant.Response"
	NameDiscover                  = "Discover"
	NameDiscoverResponse          = "Discover.Response"
	NameInitiateSessionWithOffer  = "InitiateSessionWithOffer"
	NameAnswerGeneratedForSession = "AnswerGeneratedForSession"
	NameSessionConnected          = "SessionConnected"
	NameSessionDisconnected       = "SessionDisconnected"
	NameDoorbellPress             = "DoorbellPress"
	NameErrorResponse             = "ErrorResponse"
)

// ErrorType is the payload.type of an ErrorResponse event.
type ErrorType string

const (
	ErrorTypeInvalidDirective ErrorType = "INVALID_DIRECTIVE"
	ErrorTypeInternalError    ErrorType = "INTERNAL_ERROR"
)

// ScopeTypeBearerToken is the only endpoint scope type used by the skill.
const ScopeTypeBearerToken = "BearerToken"

// SDPFormat is the format tag of offer and answer session descriptions.
const SDPFormat = "SDP"

// Display categories exposed at discovery. The first one drives the icon in
// the Alexa app.
const (
	DisplayCategoryDoorbell = "DOORBELL"
	DisplayCategoryCamera   = "CAMERA"
)

package alexa

import (
	"bytes"
	"encoding/json"
	"fmt"

	"kvsdoorbell/internal/types"
)

// Validation messages returned to Alexa inside ErrorResponse events.
const (
	MsgMissingDirective   = "Missing key: directive, Is request a valid Alexa directive?"
	MsgUnsupportedVersion = "This skill only supports Smart Home API version 3"
)

// Validate parses a raw request body and checks that it is a Smart Home v3
// directive. Failures are *types.AppError with code
// types.ErrCodeInvalidDirective or types.ErrCodeUnsupportedVersion; use
// ErrorEnvelopeFor to turn them into the ErrorResponse Alexa expects.
func Validate(raw []byte) (*Directive, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, types.NewAppError(types.ErrCodeInvalidDirective, MsgMissingDirective, err)
	}

	body, ok := top["directive"]
	if !ok || len(body) == 0 || bytes.Equal(bytes.TrimSpace(body), []byte("null")) {
		return nil, types.NewAppError(types.ErrCodeInvalidDirective, MsgMissingDirective, nil)
	}

	// The version is checked on the raw JSON first so that a number or null
	// is reported as an unsupported version rather than a malformed header.
	var versioned struct {
		Header struct {
			PayloadVersion json.RawMessage `json:"payloadVersion"`
		} `json:"header"`
	}
	if err := json.Unmarshal(body, &versioned); err != nil {
		return nil, types.NewAppError(types.ErrCodeInvalidDirective,
			fmt.Sprintf("Malformed directive: %v", err), err)
	}
	if v := versioned.Header.PayloadVersion; !isPayloadVersion(v) {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeUnsupportedVersion, MsgUnsupportedVersion, nil,
			map[string]any{"payloadVersion": rawVersion(v)})
	}

	var d Directive
	if err := json.Unmarshal(body, &d); err != nil {
		return nil, types.NewAppError(types.ErrCodeInvalidDirective,
			fmt.Sprintf("Malformed directive: %v", err), err)
	}

	return &d, nil
}

func isPayloadVersion(raw json.RawMessage) bool {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return false
	}
	return s == PayloadVersion
}

// rawVersion renders the offending version for error details.
func rawVersion(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

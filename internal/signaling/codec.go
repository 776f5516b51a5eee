package signaling

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Message types carried in signaling payloads.
const (
	TypeOffer  = "offer"
	TypeAnswer = "answer"
)

// sdpMessage is the JSON body of an SDP signaling payload. On the wire it is
// base64 encoded.
type sdpMessage struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// EncodeOffer wraps an SDP offer for SendAlexaOfferToMaster.
func EncodeOffer(sdp string) string {
	return encode(TypeOffer, sdp)
}

// EncodeAnswer wraps an SDP answer as a master sends it back.
func EncodeAnswer(sdp string) string {
	return encode(TypeAnswer, sdp)
}

// DecodeAnswer unwraps the SDP answer returned by the master. An empty
// payload or an empty SDP is an error: Alexa cannot use a blank answer.
func DecodeAnswer(payload string) (string, error) {
	return decode(TypeAnswer, payload)
}

// DecodeOffer unwraps an SDP offer received by the master.
func DecodeOffer(payload string) (string, error) {
	return decode(TypeOffer, payload)
}

func encode(kind, sdp string) string {
	// Marshal of two strings cannot fail.
	raw, _ := json.Marshal(sdpMessage{Type: kind, SDP: sdp})
	return base64.StdEncoding.EncodeToString(raw)
}

func decode(kind, payload string) (string, error) {
	if payload == "" {
		return "", fmt.Errorf("empty %s payload", kind)
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("decode %s payload: %w", kind, err)
	}

	var msg sdpMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return "", fmt.Errorf("parse %s payload: %w", kind, err)
	}
	if msg.Type != "" && msg.Type != kind {
		return "", fmt.Errorf("expected %s, got %s", kind, msg.Type)
	}
	if msg.SDP == "" {
		return "", fmt.Errorf("%s payload carries no sdp", kind)
	}
	return msg.SDP, nil
}

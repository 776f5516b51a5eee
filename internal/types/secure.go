package types

import (
	"fmt"
	"log/slog"
)

const redactedPlaceholder = "***REDACTED***"

// SecretString holds an LWA client secret or a bearer token read from
// configuration. Every formatting path (fmt verbs, slog, encoding/json)
// yields a fixed placeholder; Unmask is the only way to the raw value and
// belongs where the value is written into an outbound request.
type SecretString string

var (
	_ fmt.Formatter  = SecretString("")
	_ slog.LogValuer = SecretString("")
)

func (s SecretString) String() string { return redactedPlaceholder }

// Format covers %q, %x and %#v, which would otherwise bypass String.
func (s SecretString) Format(f fmt.State, _ rune) {
	_, _ = f.Write([]byte(redactedPlaceholder))
}

// LogValue redacts the secret for slog handlers that do not use Stringer.
func (s SecretString) LogValue() slog.Value {
	return slog.StringValue(redactedPlaceholder)
}

// MarshalJSON emits the placeholder as a JSON string.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redactedPlaceholder + `"`), nil
}

// Unmask returns the raw value.
func (s SecretString) Unmask() string {
	return string(s)
}

// IsZero reports whether no secret was configured.
func (s SecretString) IsZero() bool {
	return s == ""
}

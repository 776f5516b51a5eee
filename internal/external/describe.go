package external

import (
	"errors"

	"kvsdoorbell/internal/types"
)

// Describe returns the best human-readable explanation of err: the upstream's
// description when one was returned, else the error message, else fallback.
func Describe(err error, fallback string) string {
	if err == nil {
		return fallback
	}

	var appErr *types.AppError
	if errors.As(err, &appErr) {
		if desc, ok := appErr.Details[types.DetailDescription].(string); ok && desc != "" {
			return desc
		}
		if appErr.Message != "" {
			return appErr.Message
		}
	}

	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallback
}

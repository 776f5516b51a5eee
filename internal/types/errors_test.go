package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

// TestAppErrorImplementsError verifies that *AppError satisfies the error interface.
func TestAppErrorImplementsError(t *testing.T) {
	var _ error = (*AppError)(nil)
}

func TestAppErrorErrorFormat(t *testing.T) {
	appErr := &AppError{
		Code:    ErrCodeInvalidRegion,
		Message: "region XX is not one of NA, EU, FE",
	}

	expected := "invalid_region: region XX is not one of NA, EU, FE"
	if appErr.Error() != expected {
		t.Errorf("Error() = %q, want %q", appErr.Error(), expected)
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	underlying := errors.New("connection reset by peer")
	appErr := NewAppError(ErrCodeUpstreamFailure, "token exchange failed", underlying)

	if appErr.Unwrap() != underlying {
		t.Errorf("Unwrap() returned unexpected error: got %v, want %v", appErr.Unwrap(), underlying)
	}
	if !errors.Is(appErr, underlying) {
		t.Error("errors.Is should find the underlying error")
	}
}

func TestAppErrorErrorsAs(t *testing.T) {
	appErr := NewAppError(ErrCodeInvalidDirective, "missing directive", nil)
	wrappedErr := fmt.Errorf("handler failed: %w", appErr)

	var extracted *AppError
	if !errors.As(wrappedErr, &extracted) {
		t.Fatal("errors.As failed to extract *AppError from wrapped error")
	}
	if extracted.Code != ErrCodeInvalidDirective {
		t.Errorf("extracted Code = %q, want %q", extracted.Code, ErrCodeInvalidDirective)
	}
}

func TestIsCode(t *testing.T) {
	wrapped := fmt.Errorf("dispatch: %w", NewAppError(ErrCodeUpstreamFailure, "boom", nil))

	if !IsCode(wrapped, ErrCodeUpstreamFailure) {
		t.Error("IsCode should match a wrapped AppError code")
	}
	if IsCode(wrapped, ErrCodeInvalidRegion) {
		t.Error("IsCode should not match a different code")
	}
	if IsCode(errors.New("plain"), ErrCodeUpstreamFailure) {
		t.Error("IsCode should not match a non-AppError")
	}
	if IsCode(nil, ErrCodeUpstreamFailure) {
		t.Error("IsCode should not match nil")
	}
}

func TestAppErrorWithDetails(t *testing.T) {
	original := NewAppErrorWithDetails(ErrCodeUpstreamFailure, "gateway rejected event", nil,
		map[string]any{"status": 401})

	enriched := original.WithDetails(map[string]any{"region": "EU"})

	if len(original.Details) != 1 {
		t.Errorf("original details mutated: %v", original.Details)
	}
	if enriched.Details["status"] != 401 || enriched.Details["region"] != "EU" {
		t.Errorf("unexpected merged details: %v", enriched.Details)
	}
	if enriched.Code != original.Code || enriched.Message != original.Message {
		t.Error("WithDetails must preserve code and message")
	}
}

func TestErrorCodeHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeInvalidDirective, http.StatusBadRequest},
		{ErrCodeUnsupportedVersion, http.StatusBadRequest},
		{ErrCodeInvalidRegion, http.StatusBadRequest},
		{ErrCodeValidationMissing, http.StatusBadRequest},
		{ErrCodeValidationMalformed, http.StatusBadRequest},
		{ErrCodeAuthTokenInvalid, http.StatusUnauthorized},
		{ErrCodeUpstreamRateLimited, http.StatusTooManyRequests},
		{ErrCodeUpstreamFailure, http.StatusBadGateway},
		{ErrCodeInternalUnexpected, http.StatusInternalServerError},
		{ErrorCode("something_else"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := tt.code.HTTPStatus(); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

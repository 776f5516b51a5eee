package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// mockSSMClient implements SSMClient and records every call.
type mockSSMClient struct {
	getParameterFn func(ctx context.Context, input *ssm.GetParameterInput) (*ssm.GetParameterOutput, error)
	putParameterFn func(ctx context.Context, input *ssm.PutParameterInput) (*ssm.PutParameterOutput, error)

	getCalls []*ssm.GetParameterInput
	putCalls []*ssm.PutParameterInput
}

func (m *mockSSMClient) GetParameter(ctx context.Context, params *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	m.getCalls = append(m.getCalls, params)
	if m.getParameterFn != nil {
		return m.getParameterFn(ctx, params)
	}
	return &ssm.GetParameterOutput{}, nil
}

func (m *mockSSMClient) PutParameter(ctx context.Context, params *ssm.PutParameterInput, _ ...func(*ssm.Options)) (*ssm.PutParameterOutput, error) {
	m.putCalls = append(m.putCalls, params)
	if m.putParameterFn != nil {
		return m.putParameterFn(ctx, params)
	}
	return &ssm.PutParameterOutput{Version: 1}, nil
}

// newMockSSMWithValues answers GetParameter from values keyed by full path.
func newMockSSMWithValues(values map[string]string) *mockSSMClient {
	return &mockSSMClient{
		getParameterFn: func(_ context.Context, input *ssm.GetParameterInput) (*ssm.GetParameterOutput, error) {
			path := aws.ToString(input.Name)
			val, ok := values[path]
			if !ok {
				return nil, &ssmtypes.ParameterNotFound{Message: aws.String("not found: " + path)}
			}
			return &ssm.GetParameterOutput{
				Parameter: &ssmtypes.Parameter{Name: aws.String(path), Value: aws.String(val)},
			}, nil
		},
	}
}

func newTestSSMManager(mock *mockSSMClient, env string, logs *bytes.Buffer) *SSMManager {
	if logs == nil {
		logs = &bytes.Buffer{}
	}
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return NewSSMManagerWithClient(mock, env, logger)
}

func TestSSMPath(t *testing.T) {
	tests := []struct {
		env      string
		key      string
		expected string
	}{
		{"dev", "lwa/client_id", "/dev/doorbell/lwa/client_id"},
		{"prod", "lwa/client_secret", "/prod/doorbell/lwa/client_secret"},
		{"staging", "kvs/channel_name", "/staging/doorbell/kvs/channel_name"},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			mgr := newTestSSMManager(&mockSSMClient{}, tt.env, nil)
			if got := mgr.SSMPath(tt.key); got != tt.expected {
				t.Errorf("SSMPath(%q) = %q, want %q", tt.key, got, tt.expected)
			}
		})
	}
}

func TestParameterExists(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		mock := newMockSSMWithValues(map[string]string{"/dev/doorbell/lwa/client_id": "x"})
		mgr := newTestSSMManager(mock, "dev", nil)

		exists, err := mgr.ParameterExists(context.Background(), "/dev/doorbell/lwa/client_id")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !exists {
			t.Error("expected parameter to exist")
		}
		if aws.ToBool(mock.getCalls[0].WithDecryption) {
			t.Error("existence probe must not request decryption")
		}
	})

	t.Run("not found", func(t *testing.T) {
		mgr := newTestSSMManager(newMockSSMWithValues(nil), "dev", nil)

		exists, err := mgr.ParameterExists(context.Background(), "/dev/doorbell/missing")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if exists {
			t.Error("expected parameter to be missing")
		}
	})

	t.Run("access denied", func(t *testing.T) {
		mock := &mockSSMClient{
			getParameterFn: func(context.Context, *ssm.GetParameterInput) (*ssm.GetParameterOutput, error) {
				return nil, errors.New("AccessDeniedException")
			},
		}
		mgr := newTestSSMManager(mock, "dev", nil)

		if _, err := mgr.ParameterExists(context.Background(), "/dev/doorbell/x"); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestPutSecret_DoesNotLogValue(t *testing.T) {
	var logs bytes.Buffer
	mock := &mockSSMClient{}
	mgr := newTestSSMManager(mock, "dev", &logs)

	secret := "amzn1.oa2-cs.v1.0123456789abcdef"
	if err := mgr.PutSecret(context.Background(), "/dev/doorbell/lwa/client_secret", secret, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(mock.putCalls) != 1 {
		t.Fatalf("expected 1 put call, got %d", len(mock.putCalls))
	}
	put := mock.putCalls[0]
	if put.Type != ssmtypes.ParameterTypeSecureString {
		t.Errorf("Type = %s, want SecureString", put.Type)
	}
	if aws.ToBool(put.Overwrite) {
		t.Error("Overwrite should be false")
	}
	if strings.Contains(logs.String(), secret) {
		t.Error("secret value leaked into logs")
	}
}

func TestPutString_Overwrites(t *testing.T) {
	var logs bytes.Buffer
	mock := &mockSSMClient{}
	mgr := newTestSSMManager(mock, "dev", &logs)

	if err := mgr.PutString(context.Background(), "/dev/doorbell/kvs/channel_name", "front-door"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	put := mock.putCalls[0]
	if put.Type != ssmtypes.ParameterTypeString || !aws.ToBool(put.Overwrite) {
		t.Errorf("unexpected put input: type=%s overwrite=%v", put.Type, aws.ToBool(put.Overwrite))
	}
	if !strings.Contains(logs.String(), "front-door") {
		t.Error("plain parameter value should be logged")
	}
}

func TestPutParameter_Errors(t *testing.T) {
	mgr := newTestSSMManager(&mockSSMClient{}, "dev", nil)

	if err := mgr.PutString(context.Background(), "", "v"); err == nil {
		t.Error("expected error for empty path")
	}
	if err := mgr.PutString(context.Background(), "/dev/doorbell/x", ""); err == nil {
		t.Error("expected error for empty value")
	}

	mock := &mockSSMClient{
		putParameterFn: func(context.Context, *ssm.PutParameterInput) (*ssm.PutParameterOutput, error) {
			return nil, &ssmtypes.ParameterAlreadyExists{Message: aws.String("exists")}
		},
	}
	mgr = newTestSSMManager(mock, "dev", nil)
	err := mgr.PutSecret(context.Background(), "/dev/doorbell/lwa/client_secret", "s", false)
	var alreadyExists *ssmtypes.ParameterAlreadyExists
	if !errors.As(err, &alreadyExists) {
		t.Errorf("expected ParameterAlreadyExists in chain, got %v", err)
	}
}

func TestGetParameterValue(t *testing.T) {
	mock := newMockSSMWithValues(map[string]string{"/dev/doorbell/device/endpoint_id": "front-door"})
	mgr := newTestSSMManager(mock, "dev", nil)

	got, err := mgr.GetParameterValue(context.Background(), "/dev/doorbell/device/endpoint_id", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "front-door" {
		t.Errorf("got %q, want front-door", got)
	}

	if _, err := mgr.GetParameterValue(context.Background(), "/dev/doorbell/missing", false); err == nil {
		t.Error("expected error for missing parameter")
	}
}

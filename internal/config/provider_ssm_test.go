package config

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSSMClient answers GetParameters from a fixed map and records batches.
type fakeSSMClient struct {
	values  map[string]string
	err     error
	batches [][]string
}

func (f *fakeSSMClient) GetParameters(_ context.Context, in *ssm.GetParametersInput, _ ...func(*ssm.Options)) (*ssm.GetParametersOutput, error) {
	f.batches = append(f.batches, in.Names)
	if f.err != nil {
		return nil, f.err
	}
	if in.WithDecryption == nil || !*in.WithDecryption {
		return nil, errors.New("decryption not requested")
	}

	out := &ssm.GetParametersOutput{}
	for _, name := range in.Names {
		if v, ok := f.values[name]; ok {
			out.Parameters = append(out.Parameters, ssmtypes.Parameter{Name: aws.String(name), Value: aws.String(v)})
		} else {
			out.InvalidParameters = append(out.InvalidParameters, name)
		}
	}
	return out, nil
}

func TestSSMProviderSatisfiesSecretProvider(t *testing.T) {
	var _ SecretProvider = (*SSMProvider)(nil)
}

func TestSSMProvider_EmptyKeys(t *testing.T) {
	client := &fakeSSMClient{}
	p := newSSMProviderWithClient("us-east-1", client)

	result, err := p.GetParametersBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, result)
	assert.Empty(t, result)
	assert.Empty(t, client.batches, "no SSM call is needed for zero keys")
}

func TestSSMProvider_BatchesOfTen(t *testing.T) {
	values := make(map[string]string)
	keys := make([]string, 0, 23)
	for i := 0; i < 23; i++ {
		k := fmt.Sprintf("/dev/doorbell/param_%02d", i)
		keys = append(keys, k)
		values[k] = fmt.Sprintf("v%d", i)
	}
	client := &fakeSSMClient{values: values}
	p := newSSMProviderWithClient("us-east-1", client)

	result, err := p.GetParametersBatch(context.Background(), keys)
	require.NoError(t, err)

	require.Len(t, client.batches, 3)
	assert.Len(t, client.batches[0], 10)
	assert.Len(t, client.batches[1], 10)
	assert.Len(t, client.batches[2], 3)
	assert.Equal(t, values, result)
}

func TestSSMProvider_InvalidParameters(t *testing.T) {
	client := &fakeSSMClient{values: map[string]string{"/dev/doorbell/lwa/client_id": "id"}}
	p := newSSMProviderWithClient("us-east-1", client)

	_, err := p.GetParametersBatch(context.Background(), []string{"/dev/doorbell/lwa/client_id", "/dev/doorbell/missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/dev/doorbell/missing")
}

func TestSSMProvider_ClientError(t *testing.T) {
	client := &fakeSSMClient{err: errors.New("AccessDeniedException")}
	p := newSSMProviderWithClient("us-east-1", client)

	_, err := p.GetParametersBatch(context.Background(), []string{"/dev/doorbell/lwa/client_secret"})
	require.Error(t, err)
	assert.ErrorContains(t, err, "AccessDeniedException")
}

func TestSSMProvider_CancelledContext(t *testing.T) {
	client := &fakeSSMClient{values: map[string]string{}}
	p := newSSMProviderWithClient("us-east-1", client)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.GetParametersBatch(ctx, []string{"/dev/doorbell/lwa/client_secret"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, client.batches)
}

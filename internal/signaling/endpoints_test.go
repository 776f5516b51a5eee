package signaling

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	kvtypes "github.com/aws/aws-sdk-go-v2/service/kinesisvideo/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kvsdoorbell/internal/types"
)

func TestEndpointResolver_ChannelARN(t *testing.T) {
	t.Run("configured ARN skips lookup", func(t *testing.T) {
		api := newFakeControlPlane()
		arn, err := NewEndpointResolver(api, Channel{Name: testChannelName, ARN: "arn:configured"}).ChannelARN(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "arn:configured", arn)
		assert.Zero(t, api.describeCalls)
	})

	t.Run("name is described", func(t *testing.T) {
		api := newFakeControlPlane()
		arn, err := NewEndpointResolver(api, Channel{Name: testChannelName}).ChannelARN(context.Background())
		require.NoError(t, err)
		assert.Equal(t, testChannelARN, arn)
		assert.Equal(t, 1, api.describeCalls)
	})

	t.Run("neither configured", func(t *testing.T) {
		_, err := NewEndpointResolver(newFakeControlPlane(), Channel{}).ChannelARN(context.Background())
		assert.True(t, types.IsCode(err, types.ErrCodeValidationMissing))
	})

	t.Run("describe fails", func(t *testing.T) {
		api := newFakeControlPlane()
		api.describeErr = &smithy.GenericAPIError{Code: "ResourceNotFoundException", Message: "The requested channel is not found"}

		_, err := NewEndpointResolver(api, Channel{Name: testChannelName}).ChannelARN(context.Background())

		var appErr *types.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, types.ErrCodeUpstreamFailure, appErr.Code)
		assert.Equal(t, "ResourceNotFoundException", appErr.Details["aws_error_code"])
		assert.Equal(t, "The requested channel is not found", appErr.Details[types.DetailDescription])
	})
}

func TestEndpointResolver_ResolveViewer(t *testing.T) {
	api := newFakeControlPlane()

	eps, err := NewEndpointResolver(api, Channel{ARN: testChannelARN}).Resolve(context.Background(), RoleViewer)
	require.NoError(t, err)

	assert.Equal(t, &Endpoints{ChannelARN: testChannelARN, HTTPS: testHTTPS, WSS: testWSS}, eps)
	require.NotNil(t, api.endpointInput)
	assert.Equal(t, testChannelARN, aws.ToString(api.endpointInput.ChannelARN))
	cfg := api.endpointInput.SingleMasterChannelEndpointConfiguration
	assert.Equal(t, kvtypes.ChannelRoleViewer, cfg.Role)
	assert.Equal(t, []kvtypes.ChannelProtocol{kvtypes.ChannelProtocolHttps}, cfg.Protocols)
}

func TestEndpointResolver_ResolveMaster(t *testing.T) {
	api := newFakeControlPlane()

	_, err := NewEndpointResolver(api, Channel{ARN: testChannelARN}).Resolve(context.Background(), RoleMaster)
	require.NoError(t, err)

	cfg := api.endpointInput.SingleMasterChannelEndpointConfiguration
	assert.Equal(t, kvtypes.ChannelRoleMaster, cfg.Role)
	assert.Equal(t, []kvtypes.ChannelProtocol{kvtypes.ChannelProtocolWss, kvtypes.ChannelProtocolHttps}, cfg.Protocols)
}

func TestEndpointResolver_MissingEndpoint(t *testing.T) {
	api := newFakeControlPlane()
	api.endpoints = []kvtypes.ResourceEndpointListItem{
		{Protocol: kvtypes.ChannelProtocolHttps, ResourceEndpoint: aws.String(testHTTPS)},
	}
	r := NewEndpointResolver(api, Channel{ARN: testChannelARN})

	_, err := r.Resolve(context.Background(), RoleViewer)
	require.NoError(t, err)

	_, err = r.Resolve(context.Background(), RoleMaster)
	assert.True(t, types.IsCode(err, types.ErrCodeUpstreamFailure))
}

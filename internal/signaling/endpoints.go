// Package signaling talks to the Kinesis Video Streams signaling service. The
// skill is a viewer: it resolves the channel endpoints and relays Alexa's SDP
// offer to the camera master, which answers over the same channel.
package signaling

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kinesisvideo"
	kvtypes "github.com/aws/aws-sdk-go-v2/service/kinesisvideo/types"
	"github.com/aws/smithy-go"

	"kvsdoorbell/internal/types"
)

// Role is the peer role on a single-master signaling channel.
type Role string

const (
	RoleViewer Role = Role(kvtypes.ChannelRoleViewer)
	RoleMaster Role = Role(kvtypes.ChannelRoleMaster)
)

// protocols returns the endpoint protocols a role needs. The viewer only
// calls the HTTPS API; the master also holds a WebSocket connection.
func (r Role) protocols() []kvtypes.ChannelProtocol {
	if r == RoleMaster {
		return []kvtypes.ChannelProtocol{kvtypes.ChannelProtocolWss, kvtypes.ChannelProtocolHttps}
	}
	return []kvtypes.ChannelProtocol{kvtypes.ChannelProtocolHttps}
}

// STUNServer returns the KVS STUN URL for region. TURN servers are not used:
// fetching them takes longer than the three seconds Alexa waits for an
// answer.
func STUNServer(region string) string {
	return fmt.Sprintf("stun:stun.kinesisvideo.%s.amazonaws.com:443", region)
}

// Endpoints are the resolved signaling endpoints of a channel.
type Endpoints struct {
	ChannelARN string
	HTTPS      string
	WSS        string
}

// ControlPlaneAPI is the subset of the Kinesis Video client used to resolve a
// channel.
type ControlPlaneAPI interface {
	DescribeSignalingChannel(ctx context.Context, params *kinesisvideo.DescribeSignalingChannelInput, optFns ...func(*kinesisvideo.Options)) (*kinesisvideo.DescribeSignalingChannelOutput, error)
	GetSignalingChannelEndpoint(ctx context.Context, params *kinesisvideo.GetSignalingChannelEndpointInput, optFns ...func(*kinesisvideo.Options)) (*kinesisvideo.GetSignalingChannelEndpointOutput, error)
}

// Channel identifies a signaling channel by name, ARN or both.
type Channel struct {
	Name string
	ARN  string
}

// EndpointResolver resolves the ARN and endpoints of a signaling channel.
type EndpointResolver struct {
	api     ControlPlaneAPI
	channel Channel
}

// NewEndpointResolver creates a resolver for channel.
func NewEndpointResolver(api ControlPlaneAPI, channel Channel) *EndpointResolver {
	return &EndpointResolver{api: api, channel: channel}
}

// ChannelARN returns the configured ARN, or looks it up by channel name.
func (r *EndpointResolver) ChannelARN(ctx context.Context) (string, error) {
	if r.channel.ARN != "" {
		return r.channel.ARN, nil
	}
	if r.channel.Name == "" {
		return "", types.NewAppError(types.ErrCodeValidationMissing, "signaling channel name or ARN is required", nil)
	}

	out, err := r.api.DescribeSignalingChannel(ctx, &kinesisvideo.DescribeSignalingChannelInput{
		ChannelName: aws.String(r.channel.Name),
	})
	if err != nil {
		return "", wrapAWSError("kinesisvideo", "DescribeSignalingChannel", err)
	}
	if out.ChannelInfo == nil || aws.ToString(out.ChannelInfo.ChannelARN) == "" {
		return "", types.NewAppErrorWithDetails(types.ErrCodeUpstreamFailure,
			fmt.Sprintf("signaling channel %s has no ARN", r.channel.Name), nil,
			map[string]any{"channel": r.channel.Name})
	}
	return aws.ToString(out.ChannelInfo.ChannelARN), nil
}

// Resolve returns the channel endpoints for role.
func (r *EndpointResolver) Resolve(ctx context.Context, role Role) (*Endpoints, error) {
	arn, err := r.ChannelARN(ctx)
	if err != nil {
		return nil, err
	}

	out, err := r.api.GetSignalingChannelEndpoint(ctx, &kinesisvideo.GetSignalingChannelEndpointInput{
		ChannelARN: aws.String(arn),
		SingleMasterChannelEndpointConfiguration: &kvtypes.SingleMasterChannelEndpointConfiguration{
			Protocols: role.protocols(),
			Role:      kvtypes.ChannelRole(role),
		},
	})
	if err != nil {
		return nil, wrapAWSError("kinesisvideo", "GetSignalingChannelEndpoint", err)
	}

	eps := &Endpoints{ChannelARN: arn}
	for _, item := range out.ResourceEndpointList {
		switch item.Protocol {
		case kvtypes.ChannelProtocolHttps:
			eps.HTTPS = aws.ToString(item.ResourceEndpoint)
		case kvtypes.ChannelProtocolWss:
			eps.WSS = aws.ToString(item.ResourceEndpoint)
		}
	}

	if eps.HTTPS == "" || (role == RoleMaster && eps.WSS == "") {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeUpstreamFailure,
			fmt.Sprintf("no %s endpoint returned for channel", role), nil,
			map[string]any{"channel_arn": arn, "role": string(role)})
	}
	return eps, nil
}

// wrapAWSError converts an SDK error into an upstream AppError, keeping the
// service's error message as the description.
func wrapAWSError(service, operation string, err error) error {
	details := map[string]any{"upstream": service, "operation": operation}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		details["aws_error_code"] = apiErr.ErrorCode()
		if msg := apiErr.ErrorMessage(); msg != "" {
			details[types.DetailDescription] = msg
		}
	}

	return types.NewAppErrorWithDetails(
		types.ErrCodeUpstreamFailure,
		fmt.Sprintf("%s %s failed: %v", service, operation, err),
		err,
		details,
	)
}

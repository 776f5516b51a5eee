package signaling

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kinesisvideosignaling"
	"github.com/google/uuid"

	"kvsdoorbell/internal/types"
)

// viewerClientPrefix prefixes the sender client id of each relayed offer.
const viewerClientPrefix = "viewer-"

// DataPlaneAPI is the subset of the signaling channel client used by the
// viewer.
type DataPlaneAPI interface {
	SendAlexaOfferToMaster(ctx context.Context, params *kinesisvideosignaling.SendAlexaOfferToMasterInput, optFns ...func(*kinesisvideosignaling.Options)) (*kinesisvideosignaling.SendAlexaOfferToMasterOutput, error)
}

// DataPlaneFactory builds a data-plane client bound to a channel's HTTPS
// endpoint.
type DataPlaneFactory func(httpsEndpoint string) DataPlaneAPI

// NewDataPlaneFactory returns a factory creating SDK clients from cfg.
func NewDataPlaneFactory(cfg aws.Config) DataPlaneFactory {
	return func(httpsEndpoint string) DataPlaneAPI {
		return kinesisvideosignaling.NewFromConfig(cfg, func(o *kinesisvideosignaling.Options) {
			o.BaseEndpoint = aws.String(httpsEndpoint)
		})
	}
}

// Viewer relays Alexa SDP offers to the camera master through the signaling
// channel.
type Viewer struct {
	resolver    *EndpointResolver
	dataPlane   DataPlaneFactory
	timeout     time.Duration
	newClientID func() string
}

// NewViewer creates a Viewer. A positive timeout bounds each relay from
// endpoint resolution to answer.
func NewViewer(resolver *EndpointResolver, dataPlane DataPlaneFactory, timeout time.Duration) *Viewer {
	return &Viewer{
		resolver:  resolver,
		dataPlane: dataPlane,
		timeout:   timeout,
		newClientID: func() string {
			return viewerClientPrefix + uuid.NewString()
		},
	}
}

// RelayOffer sends offerSDP to the master and waits for its SDP answer.
func (v *Viewer) RelayOffer(ctx context.Context, offerSDP string) (string, error) {
	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	eps, err := v.resolver.Resolve(ctx, RoleViewer)
	if err != nil {
		return "", err
	}

	clientID := v.newClientID()
	logger := types.LoggerFromContext(ctx).With("channel_arn", eps.ChannelARN, "sender_client_id", clientID)
	logger.Info("relaying SDP offer to master", "endpoint", eps.HTTPS)

	out, err := v.dataPlane(eps.HTTPS).SendAlexaOfferToMaster(ctx, &kinesisvideosignaling.SendAlexaOfferToMasterInput{
		ChannelARN:     aws.String(eps.ChannelARN),
		SenderClientId: aws.String(clientID),
		MessagePayload: aws.String(EncodeOffer(offerSDP)),
	})
	if err != nil {
		return "", wrapAWSError("kinesisvideosignaling", "SendAlexaOfferToMaster", err)
	}

	answer, err := DecodeAnswer(aws.ToString(out.Answer))
	if err != nil {
		return "", types.NewAppErrorWithDetails(types.ErrCodeUpstreamFailure,
			"master returned an unusable SDP answer", err,
			map[string]any{"upstream": "kinesisvideosignaling", "channel_arn": eps.ChannelARN})
	}
	logger.Info("received SDP answer from master", "answer_bytes", len(answer))
	return answer, nil
}

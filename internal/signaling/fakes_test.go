package signaling

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kinesisvideo"
	kvtypes "github.com/aws/aws-sdk-go-v2/service/kinesisvideo/types"
	"github.com/aws/aws-sdk-go-v2/service/kinesisvideosignaling"
)

const (
	testChannelName = "doorbell-channel"
	testChannelARN  = "arn:aws:kinesisvideo:eu-west-1:123456789012:channel/doorbell-channel/1600000000000"
	testHTTPS       = "https://r-abc.kinesisvideo.eu-west-1.amazonaws.com"
	testWSS         = "wss://m-abc.kinesisvideo.eu-west-1.amazonaws.com"
)

type fakeControlPlane struct {
	describeCalls int
	describeErr   error
	describeARN   string

	endpointInput *kinesisvideo.GetSignalingChannelEndpointInput
	endpointErr   error
	endpoints     []kvtypes.ResourceEndpointListItem
}

func newFakeControlPlane() *fakeControlPlane {
	return &fakeControlPlane{
		describeARN: testChannelARN,
		endpoints: []kvtypes.ResourceEndpointListItem{
			{Protocol: kvtypes.ChannelProtocolHttps, ResourceEndpoint: aws.String(testHTTPS)},
			{Protocol: kvtypes.ChannelProtocolWss, ResourceEndpoint: aws.String(testWSS)},
		},
	}
}

func (f *fakeControlPlane) DescribeSignalingChannel(_ context.Context, in *kinesisvideo.DescribeSignalingChannelInput, _ ...func(*kinesisvideo.Options)) (*kinesisvideo.DescribeSignalingChannelOutput, error) {
	f.describeCalls++
	if f.describeErr != nil {
		return nil, f.describeErr
	}
	return &kinesisvideo.DescribeSignalingChannelOutput{
		ChannelInfo: &kvtypes.ChannelInfo{
			ChannelName: in.ChannelName,
			ChannelARN:  aws.String(f.describeARN),
		},
	}, nil
}

func (f *fakeControlPlane) GetSignalingChannelEndpoint(_ context.Context, in *kinesisvideo.GetSignalingChannelEndpointInput, _ ...func(*kinesisvideo.Options)) (*kinesisvideo.GetSignalingChannelEndpointOutput, error) {
	f.endpointInput = in
	if f.endpointErr != nil {
		return nil, f.endpointErr
	}
	return &kinesisvideo.GetSignalingChannelEndpointOutput{ResourceEndpointList: f.endpoints}, nil
}

type fakeDataPlane struct {
	input  *kinesisvideosignaling.SendAlexaOfferToMasterInput
	answer string
	err    error
}

func (f *fakeDataPlane) SendAlexaOfferToMaster(_ context.Context, in *kinesisvideosignaling.SendAlexaOfferToMasterInput, _ ...func(*kinesisvideosignaling.Options)) (*kinesisvideosignaling.SendAlexaOfferToMasterOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &kinesisvideosignaling.SendAlexaOfferToMasterOutput{Answer: aws.String(f.answer)}, nil
}

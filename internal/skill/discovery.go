package skill

import (
	"context"

	"kvsdoorbell/internal/alexa"
	"kvsdoorbell/internal/config"
)

// DiscoveryBuilder produces the Discover.Response for the single doorbell
// appliance described by configuration.
type DiscoveryBuilder struct {
	builder *alexa.Builder
	device  config.DeviceConfig
}

// NewDiscoveryBuilder creates a DiscoveryBuilder.
func NewDiscoveryBuilder(builder *alexa.Builder, device config.DeviceConfig) *DiscoveryBuilder {
	return &DiscoveryBuilder{builder: builder, device: device}
}

// Endpoint returns the discovered appliance. DOORBELL comes first in the
// display categories so the Alexa app shows a doorbell icon.
func (b *DiscoveryBuilder) Endpoint() alexa.DiscoveryEndpoint {
	rtc := alexa.NewCapability(alexa.NamespaceRTCSessionController)
	rtc.Configuration = map[string]any{"isFullDuplexAudioSupported": true}

	doorbell := alexa.NewCapability(alexa.NamespaceDoorbellEventSource)
	doorbell.ProactivelyReported = true

	return alexa.DiscoveryEndpoint{
		EndpointID:        b.device.EndpointID,
		ManufacturerName:  b.device.ManufacturerName,
		FriendlyName:      b.device.FriendlyName,
		Description:       b.device.Description,
		DisplayCategories: []string{alexa.DisplayCategoryDoorbell, alexa.DisplayCategoryCamera},
		Capabilities: []alexa.Capability{
			alexa.NewCapability(alexa.NamespaceAlexa),
			rtc,
			doorbell,
		},
	}
}

// Build returns a Discover.Response envelope.
func (b *DiscoveryBuilder) Build() *alexa.Envelope {
	return b.builder.Build(alexa.NamespaceDiscovery, alexa.NameDiscoverResponse,
		alexa.WithPayload(alexa.DiscoveryPayload{
			Endpoints: []alexa.DiscoveryEndpoint{b.Endpoint()},
		}),
	)
}

// Handle adapts Build to the dispatcher's Handler signature. Discovery
// ignores the directive contents and never fails.
func (b *DiscoveryBuilder) Handle(context.Context, *alexa.Directive) (*alexa.Envelope, error) {
	return b.Build(), nil
}

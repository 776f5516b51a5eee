package skill

import (
	"context"
	"fmt"
	"sync"
	"time"

	"kvsdoorbell/internal/alexa"
	"kvsdoorbell/internal/config"
	"kvsdoorbell/internal/external"
	"kvsdoorbell/internal/metrics"
)

var testDevice = config.DeviceConfig{
	EndpointID:       "video-doorbell-001",
	FriendlyName:     "doorbell",
	Description:      "Appliance with Video and Doorbell announcement supported",
	ManufacturerName: "My DoorBell Inc.",
}

func sequenceBuilder() *alexa.Builder {
	var mu sync.Mutex
	n := 0
	return alexa.NewBuilder(func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("msg-%d", n)
	})
}

type fakeGrants struct {
	codes []string
	err   error
}

func (f *fakeGrants) ExchangeGrant(_ context.Context, code string) (*external.Token, error) {
	f.codes = append(f.codes, code)
	if f.err != nil {
		return nil, f.err
	}
	return &external.Token{AccessToken: "Atza|a", RefreshToken: "Atzr|r", TokenType: "bearer", ExpiresIn: 3600}, nil
}

type fakeRelay struct {
	offers []string
	answer string
	err    error
}

func (f *fakeRelay) RelayOffer(_ context.Context, offer string) (string, error) {
	f.offers = append(f.offers, offer)
	return f.answer, f.err
}

type recordedDirective struct {
	namespace string
	result    metrics.Result
}

type fakeMetrics struct {
	directives []recordedDirective
	latencies  []time.Duration
}

func (f *fakeMetrics) RecordDirective(_ context.Context, namespace string, result metrics.Result, d time.Duration) {
	f.directives = append(f.directives, recordedDirective{namespace, result})
	f.latencies = append(f.latencies, d)
}

package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kvsdoorbell/internal/config"
	"kvsdoorbell/internal/master"
	"kvsdoorbell/internal/types"
)

// fakeSession replays scripted Start and Run results. Once the script runs
// out, Run blocks until ctx is done.
type fakeSession struct {
	mu        sync.Mutex
	startErrs []error
	runErrs   []error
	starts    int
	stops     int
}

func (f *fakeSession) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if len(f.startErrs) == 0 {
		return nil
	}
	err := f.startErrs[0]
	f.startErrs = f.startErrs[1:]
	return err
}

func (f *fakeSession) Run(ctx context.Context) error {
	f.mu.Lock()
	if len(f.runErrs) > 0 {
		err := f.runErrs[0]
		f.runErrs = f.runErrs[1:]
		f.mu.Unlock()
		return err
	}
	f.mu.Unlock()
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeSession) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

func (f *fakeSession) counts() (starts, stops int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts, f.stops
}

var fastBackoff = backoff{min: time.Millisecond, max: 2 * time.Millisecond}

func runInBackground(ctx context.Context, s session) chan error {
	done := make(chan error, 1)
	go func() { done <- runSession(ctx, s, fastBackoff, types.NopLogger{}) }()
	return done
}

func waitResult(t *testing.T, done chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("runSession did not return")
		return nil
	}
}

func TestRunSession_ShutdownStopsSession(t *testing.T) {
	s := &fakeSession{}
	ctx, cancel := context.WithCancel(context.Background())
	done := runInBackground(ctx, s)

	require.Eventually(t, func() bool { starts, _ := s.counts(); return starts == 1 }, time.Second, time.Millisecond)
	cancel()

	assert.NoError(t, waitResult(t, done))
	starts, stops := s.counts()
	assert.Equal(t, 1, starts)
	assert.Equal(t, 1, stops)
}

func TestRunSession_ReconnectsAfterLostSignaling(t *testing.T) {
	s := &fakeSession{
		runErrs:   []error{master.ErrSignalingLost, master.ErrSignalingLost},
		startErrs: []error{nil, errors.New("503 Service Unavailable")},
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := runInBackground(ctx, s)

	// initial start, failed reconnect, two successful reconnects.
	require.Eventually(t, func() bool { starts, _ := s.counts(); return starts == 4 }, time.Second, time.Millisecond)
	cancel()

	assert.NoError(t, waitResult(t, done))
	_, stops := s.counts()
	assert.Equal(t, 3, stops)
}

func TestRunSession_FirstStartMustSucceed(t *testing.T) {
	s := &fakeSession{startErrs: []error{errors.New("channel not found")}}

	err := runSession(context.Background(), s, fastBackoff, types.NopLogger{})

	assert.ErrorContains(t, err, "starting master: channel not found")
	_, stops := s.counts()
	assert.Zero(t, stops)
}

func TestRunSession_UnexpectedRunError(t *testing.T) {
	boom := errors.New("boom")
	s := &fakeSession{runErrs: []error{boom}}

	err := runSession(context.Background(), s, fastBackoff, types.NopLogger{})

	assert.ErrorIs(t, err, boom)
	_, stops := s.counts()
	assert.Equal(t, 1, stops)
}

func TestBackoff(t *testing.T) {
	top := func() float64 { return 0.999999 }
	b := backoff{min: time.Second, max: 30 * time.Second, rand: top}

	assert.Equal(t, time.Second, b.next(0))
	assert.InDelta(t, float64(2*time.Second), float64(b.next(1)), float64(time.Millisecond))
	assert.InDelta(t, float64(8*time.Second), float64(b.next(3)), float64(time.Millisecond))
	assert.InDelta(t, float64(30*time.Second), float64(b.next(10)), float64(time.Millisecond))
	assert.InDelta(t, float64(30*time.Second), float64(b.next(1000)), float64(time.Millisecond))

	b.rand = func() float64 { return 0 }
	assert.Equal(t, time.Second, b.next(5))
}

func TestExtraICEServers(t *testing.T) {
	assert.Nil(t, extraICEServers(config.ICEConfig{}))

	got := extraICEServers(config.ICEConfig{
		URLs:       []string{"turn:turn.example.com:3478"},
		Username:   "doorbell",
		Credential: "turn-secret",
	})
	assert.Equal(t, []master.ICEServer{{
		URLs:       []string{"turn:turn.example.com:3478"},
		Username:   "doorbell",
		Credential: "turn-secret",
	}}, got)
}

func TestNewSession_WiresFromConfig(t *testing.T) {
	cfg := &config.MasterConfig{
		KVS: config.KVSConfig{Region: "eu-west-1", ChannelName: "front-door"},
		ICE: config.ICEConfig{URLs: []string{"turn:turn.example.com:3478"}, GatherTimeout: time.Second},
	}

	s := newSession(cfg, aws.Config{Region: "eu-west-1"}, types.NopLogger{})

	require.NotNil(t, s)
	assert.Equal(t, master.StateIdle, s.State())
	assert.Equal(t, []master.ICEServer{
		{URLs: []string{"stun:stun.kinesisvideo.eu-west-1.amazonaws.com:443"}},
		{URLs: []string{"turn:turn.example.com:3478"}},
	}, s.ICEServers())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", parseLevel("debug").String())
	assert.Equal(t, "INFO", parseLevel("verbose").String())
}

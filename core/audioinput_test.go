package session

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andrassy/viseme-core/core/audio"
)

func TestWithAudioInputConfiguresFacade(t *testing.T) {
	inputClient := &testAudioInputClient{}
	s := NewSession(WithAudioInput(inputClient))

	if !s.audioInput.IsConfigured() {
		t.Fatalf("expected audio input facade to be configured")
	}
	if s.audioInput.base != inputClient {
		t.Fatalf("expected facade client to match configured audio input")
	}
}

func TestAudioInputFacadeUsesCaptureEncodingInfoWhenUnset(t *testing.T) {
	facade := newAudioInput(nil, nil)

	if facade.IsConfigured() {
		t.Fatalf("expected unset facade to be unconfigured")
	}

	if got, want := facade.EncodingInfo(), audio.GetCaptureEncodingInfo(); got != want {
		t.Fatalf("expected capture encoding info %+v, got %+v", want, got)
	}
}

func TestAudioInputFacadeCaptureControlsForBasicInput(t *testing.T) {
	facade := newAudioInput(&testAudioInputClient{}, nil)

	if facade.SupportsCaptureControls() {
		t.Fatalf("expected basic input to not support capture controls")
	}

	if err := facade.StopCapture(); err != nil {
		t.Fatalf("expected stop capture noop to succeed, got %v", err)
	}
}

func TestAudioInputFacadeCaptureForwardsFrames(t *testing.T) {
	inputClient := &testStreamingAudioInputClient{}
	var callbackCalls atomic.Int32
	facade := newAudioInput(inputClient, func([]byte) {
		callbackCalls.Add(1)
	})

	if err := facade.Capture(context.Background()); err != nil {
		t.Fatalf("expected capture to start, got %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if callbackCalls.Load() == 2 && inputClient.streamCalls.Load() == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf(
		"expected 2 callback invocations and 1 stream call, got callback calls=%d stream calls=%d",
		callbackCalls.Load(),
		inputClient.streamCalls.Load(),
	)
}

func TestAudioInputFacadeGateDropsFrames(t *testing.T) {
	inputClient := &testStreamingAudioInputClient{}
	var callbackCalls atomic.Int32
	facade := newAudioInput(inputClient, func([]byte) {
		callbackCalls.Add(1)
	})

	var gateOpen atomic.Bool
	facade.SetCaptureGate(gateOpen.Load)

	if err := facade.Capture(context.Background()); err != nil {
		t.Fatalf("expected capture to start, got %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for inputClient.streamCalls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if calls := callbackCalls.Load(); calls != 0 {
		t.Fatalf("expected frames dropped while the gate is closed, got %d callbacks", calls)
	}
}

func TestAudioInputFacadeCloseIsIdempotent(t *testing.T) {
	inputClient := &testAudioInputClient{}
	facade := newAudioInput(inputClient, nil)

	if err := facade.Close(); err != nil {
		t.Fatalf("expected close to succeed, got %v", err)
	}
	if err := facade.Close(); err != nil {
		t.Fatalf("expected a repeated close to succeed, got %v", err)
	}
	if closes := inputClient.closeCalls.Load(); closes != 1 {
		t.Fatalf("expected the client closed once, got %d", closes)
	}

	if err := facade.Capture(context.Background()); err != nil {
		t.Fatalf("expected capture after close to be a no-op, got %v", err)
	}
	if facade.IsCapturing() {
		t.Fatal("expected no capture after close")
	}
}

type testAudioInputClient struct {
	closeCalls atomic.Int32
}

func (c *testAudioInputClient) EncodingInfo() audio.EncodingInfo {
	return audio.GetCaptureEncodingInfo()
}

func (c *testAudioInputClient) Stream(context.Context, func([]byte)) error {
	return nil
}

func (c *testAudioInputClient) Close() {
	c.closeCalls.Add(1)
}

type testStreamingAudioInputClient struct {
	testAudioInputClient
	streamCalls atomic.Int32
}

func (c *testStreamingAudioInputClient) Stream(_ context.Context, onAudio func([]byte)) error {
	c.streamCalls.Add(1)
	onAudio(make([]byte, 4))
	onAudio(make([]byte, 4))
	return nil
}

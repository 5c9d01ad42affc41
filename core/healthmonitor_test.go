package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/andrassy/viseme-core/core/speech"
)

type monitorHarness struct {
	monitor *healthMonitor
	state   *conversationState

	speechStub *speechClientStub
	avatarStub *avatarClientStub

	mu           sync.Mutex
	reconnecting []bool
	kicks        int

	fatal chan error
}

func newMonitorHarness(t *testing.T, policy ReconnectPolicy) *monitorHarness {
	t.Helper()

	h := &monitorHarness{
		speechStub: &speechClientStub{},
		avatarStub: &avatarClientStub{},
		fatal:      make(chan error, 1),
	}

	speechFacade := newSpeechEndpoint(h.speechStub)
	avatarFacade := newAvatarEndpoint(h.avatarStub)
	h.state = newConversationState(speechFacade)

	h.monitor = newHealthMonitor(speechFacade, avatarFacade, h.state, policy, healthMonitorCallbacks{
		onReconnectingChanged: func(isReconnecting bool) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.reconnecting = append(h.reconnecting, isReconnecting)
		},
		onFatal: func(err error) { h.fatal <- err },
		kickDispatch: func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.kicks++
		},
		sessionConfig: func() speech.SessionConfig {
			return speech.SessionConfig{Voice: "marin"}
		},
	})
	h.monitor.configure(context.Background())
	return h
}

func (h *monitorHarness) reconnectingTransitions() []bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]bool{}, h.reconnecting...)
}

func TestHealthMonitorPausesAndCapturesOnDisconnect(t *testing.T) {
	pauses := 0
	reconnectCalled := make(chan struct{}, 1)

	h := newMonitorHarness(t, ReconnectPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond})
	h.speechStub.pause = func(context.Context) error {
		pauses++
		return nil
	}
	h.avatarStub.reconnect = func(context.Context) error {
		reconnectCalled <- struct{}{}
		return nil
	}

	h.monitor.HandleDisconnected("stream closed")
	select {
	case <-reconnectCalled:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a reconnect attempt after the disconnect")
	}

	if pauses != 1 {
		t.Fatalf("expected the speech session paused once, got %d", pauses)
	}
	if !h.state.HasSnapshot() {
		t.Fatal("expected a conversation snapshot after the disconnect")
	}
	if h.monitor.ForwardingAllowed() {
		t.Fatal("expected forwarding blocked while disconnected")
	}

	// A second disconnect observation while recovery is in flight must not
	// pause or capture again.
	h.monitor.HandleDisconnected("stream closed again")
	if pauses != 1 {
		t.Fatalf("expected no second pause, got %d", pauses)
	}
}

func TestHealthMonitorRestoresOnReconnect(t *testing.T) {
	restoredConfigs := []speech.SessionConfig{}
	resumes := 0
	reconnectCalled := make(chan struct{}, 1)

	h := newMonitorHarness(t, ReconnectPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond})
	h.speechStub.updateSession = func(_ context.Context, config speech.SessionConfig) error {
		restoredConfigs = append(restoredConfigs, config)
		return nil
	}
	h.speechStub.resume = func(context.Context) error {
		resumes++
		return nil
	}
	h.avatarStub.reconnect = func(context.Context) error {
		reconnectCalled <- struct{}{}
		return nil
	}

	h.monitor.HandleDisconnected("stream closed")
	select {
	case <-reconnectCalled:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a reconnect attempt after the disconnect")
	}

	h.monitor.HandleConnected()

	if status := h.monitor.Status(); status != StatusConnected {
		t.Fatalf("expected connected status after recovery, got %v", status)
	}
	if !h.monitor.ForwardingAllowed() {
		t.Fatal("expected forwarding allowed after recovery")
	}
	if len(restoredConfigs) != 1 || restoredConfigs[0].Voice != "marin" {
		t.Fatalf("expected the captured config re-applied once, got %v", restoredConfigs)
	}
	if resumes != 1 {
		t.Fatalf("expected the speech session resumed once, got %d", resumes)
	}
	if h.state.HasSnapshot() {
		t.Fatal("expected the snapshot consumed by the restore")
	}
	h.mu.Lock()
	kicks := h.kicks
	h.mu.Unlock()
	if kicks != 1 {
		t.Fatalf("expected one dispatcher kick after recovery, got %d", kicks)
	}

	transitions := h.reconnectingTransitions()
	if len(transitions) != 2 || !transitions[0] || transitions[1] {
		t.Fatalf("expected reconnecting transitions [true false], got %v", transitions)
	}

	// Once recovered, a fresh connected signal changes nothing.
	h.monitor.HandleConnected()
	if resumes != 1 {
		t.Fatalf("expected no second resume, got %d", resumes)
	}
}

func TestHealthMonitorFailsAfterExhaustedRetries(t *testing.T) {
	attempts := 0
	var attemptsMu sync.Mutex

	h := newMonitorHarness(t, ReconnectPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond})
	h.avatarStub.reconnect = func(context.Context) error {
		attemptsMu.Lock()
		defer attemptsMu.Unlock()
		attempts++
		return errors.New("endpoint unreachable")
	}

	h.monitor.HandleDisconnected("stream closed")

	var fatalErr error
	select {
	case fatalErr = <-h.fatal:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a fatal error after exhausting reconnect attempts")
	}

	if !strings.Contains(fatalErr.Error(), "2 attempts") {
		t.Fatalf("expected the fatal error to report the attempt count, got %v", fatalErr)
	}
	attemptsMu.Lock()
	if attempts != 2 {
		t.Fatalf("expected 2 reconnect attempts, got %d", attempts)
	}
	attemptsMu.Unlock()

	if status := h.monitor.Status(); status != StatusFailed {
		t.Fatalf("expected failed status, got %v", status)
	}
	if h.monitor.ForwardingAllowed() {
		t.Fatal("expected forwarding blocked after failure")
	}

	transitions := h.reconnectingTransitions()
	if len(transitions) != 2 || !transitions[0] || transitions[1] {
		t.Fatalf("expected reconnecting transitions [true false], got %v", transitions)
	}

	// Failure is terminal: a late connected signal must not resurrect the
	// session.
	h.monitor.HandleConnected()
	if status := h.monitor.Status(); status != StatusFailed {
		t.Fatalf("expected failed status to be absorbing, got %v", status)
	}
}

func TestHealthMonitorIgnoresEventsAfterClose(t *testing.T) {
	pauses := 0

	h := newMonitorHarness(t, ReconnectPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond})
	h.speechStub.pause = func(context.Context) error {
		pauses++
		return nil
	}

	h.monitor.close()
	h.monitor.HandleDisconnected("stream closed")

	if pauses != 0 {
		t.Fatalf("expected a closed monitor to ignore disconnects, got %d pauses", pauses)
	}
	if h.monitor.ForwardingAllowed() {
		t.Fatal("expected forwarding blocked after close")
	}
}

func TestReconnectPolicyBackoffBounds(t *testing.T) {
	policy := ReconnectPolicy{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     400 * time.Millisecond,
		JitterFactor: 0.2,
	}

	for attempt := 0; attempt < 8; attempt++ {
		delay := policy.backoffDelay(attempt)
		if delay <= 0 {
			t.Fatalf("expected a positive delay at attempt %d, got %v", attempt, delay)
		}
		ceiling := time.Duration(float64(policy.MaxDelay) * (1 + policy.JitterFactor))
		if delay > ceiling {
			t.Fatalf("expected delay at attempt %d below %v, got %v", attempt, ceiling, delay)
		}
	}
}

func TestReconnectPolicyDefaults(t *testing.T) {
	policy := ReconnectPolicy{}.withDefaults()
	defaults := DefaultReconnectPolicy()

	if policy != defaults {
		t.Fatalf("expected zero values replaced by defaults %+v, got %+v", defaults, policy)
	}

	custom := ReconnectPolicy{MaxAttempts: 7}.withDefaults()
	if custom.MaxAttempts != 7 || custom.BaseDelay != defaults.BaseDelay {
		t.Fatalf("expected only missing fields defaulted, got %+v", custom)
	}
}

package session

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/andrassy/viseme-core/core/speech"
)

// ConnectionStatus is the authoritative view of the rendering endpoint's
// connection. Transitions are driven only by endpoint events and the
// reconnect sequence below.
type ConnectionStatus int32

const (
	StatusConnected ConnectionStatus = iota
	StatusDisconnected
	StatusReconnecting
	// StatusFailed is absorbing: once reconnection gives up the session is
	// torn down and no further automatic retry happens.
	StatusFailed
)

func (s ConnectionStatus) String() string {
	switch s {
	case StatusConnected:
		return "connected"
	case StatusDisconnected:
		return "disconnected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// ReconnectPolicy bounds the automatic reconnect sequence. Backoff grows
// exponentially from BaseDelay up to MaxDelay with JitterFactor spread.
type ReconnectPolicy struct {
	MaxAttempts  int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	JitterFactor float64
}

func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		MaxAttempts:  3,
		BaseDelay:    500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		JitterFactor: 0.2,
	}
}

func (p ReconnectPolicy) withDefaults() ReconnectPolicy {
	defaults := DefaultReconnectPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaults.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = defaults.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = defaults.MaxDelay
	}
	if p.JitterFactor <= 0 {
		p.JitterFactor = defaults.JitterFactor
	}
	return p
}

func (p ReconnectPolicy) backoffDelay(attempt int) time.Duration {
	delay := p.BaseDelay << min(attempt, 6)
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	jitter := float64(delay) * p.JitterFactor * (rand.Float64() - 0.5)
	return time.Duration(float64(delay) + jitter)
}

type healthMonitorCallbacks struct {
	// onReconnectingChanged drives the host's transient indicator.
	onReconnectingChanged func(reconnecting bool)
	// onFatal fires once when reconnection is exhausted; the controller
	// tears the session down in response.
	onFatal func(err error)
	// kickDispatch restarts queue draining after forwarding becomes allowed.
	kickDispatch func()
	// sessionConfig provides the live speech configuration for snapshots.
	sessionConfig func() speech.SessionConfig
}

// healthMonitor sequences pause/resume/reconnect between the two endpoints.
// The rendering and speech endpoints have independent network lifecycles;
// without this sequencing a transient rendering drop would desynchronize
// playback or silently lose the speech session's turn-taking state.
type healthMonitor struct {
	status atomic.Int32

	baseContext context.Context

	speech *speechEndpoint
	avatar *avatarEndpoint
	state  *conversationState

	policy    ReconnectPolicy
	callbacks healthMonitorCallbacks

	closed atomic.Bool

	disconnectsTotal atomic.Int64
	restoresTotal    atomic.Int64
}

func newHealthMonitor(
	speechFacade *speechEndpoint,
	avatarFacade *avatarEndpoint,
	state *conversationState,
	policy ReconnectPolicy,
	callbacks healthMonitorCallbacks,
) *healthMonitor {
	if callbacks.onReconnectingChanged == nil {
		callbacks.onReconnectingChanged = func(bool) {}
	}
	if callbacks.onFatal == nil {
		callbacks.onFatal = func(error) {}
	}
	if callbacks.kickDispatch == nil {
		callbacks.kickDispatch = func() {}
	}
	if callbacks.sessionConfig == nil {
		callbacks.sessionConfig = func() speech.SessionConfig { return speech.SessionConfig{} }
	}

	return &healthMonitor{
		baseContext: context.Background(),
		speech:      speechFacade,
		avatar:      avatarFacade,
		state:       state,
		policy:      policy.withDefaults(),
		callbacks:   callbacks,
	}
}

func (m *healthMonitor) configure(ctx context.Context) {
	if m == nil {
		return
	}
	m.baseContext = ctx
}

func (m *healthMonitor) Status() ConnectionStatus {
	return ConnectionStatus(m.status.Load())
}

// ForwardingAllowed gates the dispatcher: chunks flow only while the
// rendering endpoint is connected.
func (m *healthMonitor) ForwardingAllowed() bool {
	return m.Status() == StatusConnected && !m.closed.Load()
}

func (m *healthMonitor) close() {
	m.closed.Store(true)
}

// HandleDisconnected reacts to a rendering-endpoint drop: capture the
// conversation once, pause the speech session without discarding its
// buffered state, raise the reconnecting indicator, and start the bounded
// reconnect sequence. Duplicate drop events while already handling one are
// ignored.
func (m *healthMonitor) HandleDisconnected(reason string) {
	if m.closed.Load() {
		return
	}
	if !m.status.CompareAndSwap(int32(StatusConnected), int32(StatusDisconnected)) {
		return
	}
	m.disconnectsTotal.Add(1)

	ctx, span := tracer.Start(m.baseContext, "avatar disconnect recovery")
	span.SetAttributes(attribute.String("avatar.disconnect_reason", reason))

	m.state.Capture(m.callbacks.sessionConfig())

	if err := m.speech.Pause(ctx); err != nil {
		recordedErr := fmt.Errorf("failed to pause speech session: %w", err)
		span.RecordError(recordedErr)
	}

	m.callbacks.onReconnectingChanged(true)

	go func() {
		defer span.End()
		m.runReconnectSequence(ctx, span)
	}()
}

func (m *healthMonitor) runReconnectSequence(ctx context.Context, span trace.Span) {
	var lastErr error

	for attempt := 0; attempt < m.policy.MaxAttempts; attempt++ {
		if m.closed.Load() || ctx.Err() != nil {
			return
		}
		if !m.status.CompareAndSwap(int32(StatusDisconnected), int32(StatusReconnecting)) &&
			m.Status() != StatusReconnecting {
			// Someone else moved the machine on (stop, or an endpoint-side
			// reconnect); this sequence is obsolete.
			return
		}

		span.AddEvent("reconnect attempt", trace.WithAttributes(attribute.Int("avatar.reconnect_attempt", attempt+1)))

		if lastErr = m.avatar.Reconnect(ctx); lastErr == nil {
			// Success surfaces through the client's connected callback and
			// lands in HandleConnected; nothing more to do here.
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(m.policy.backoffDelay(attempt)):
		}
	}

	if m.closed.Load() {
		return
	}

	m.status.Store(int32(StatusFailed))
	recordedErr := fmt.Errorf("failed to reconnect to avatar endpoint after %d attempts: %w", m.policy.MaxAttempts, lastErr)
	span.RecordError(recordedErr)
	span.SetStatus(codes.Error, recordedErr.Error())
	m.callbacks.onReconnectingChanged(false)
	m.callbacks.onFatal(recordedErr)
}

// HandleConnected completes a reconnect cycle: restore the snapshot, resume
// the speech session, clear the indicator and restart dispatch. A connected
// event while already connected is a no-op.
func (m *healthMonitor) HandleConnected() {
	if m.closed.Load() {
		return
	}

	if !m.status.CompareAndSwap(int32(StatusReconnecting), int32(StatusConnected)) &&
		!m.status.CompareAndSwap(int32(StatusDisconnected), int32(StatusConnected)) {
		return
	}

	ctx, span := tracer.Start(m.baseContext, "avatar reconnect recovery")
	defer span.End()

	if err := m.state.Restore(ctx); err != nil {
		recordedErr := fmt.Errorf("failed to restore conversation state: %w", err)
		span.RecordError(recordedErr)
		span.SetStatus(codes.Error, recordedErr.Error())
	} else {
		m.restoresTotal.Add(1)
	}

	m.callbacks.onReconnectingChanged(false)
	m.callbacks.kickDispatch()
}

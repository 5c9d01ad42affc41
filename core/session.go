package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/andrassy/viseme-core/core/audio"
	"github.com/andrassy/viseme-core/core/events"
	"github.com/andrassy/viseme-core/core/speech"
)

// Session coordinates one live conversation between the speech-model
// endpoint and the avatar-rendering endpoint. It owns the microphone stream,
// both endpoint clients and the relay pipeline between them; no two sessions
// may share any of those.
type Session struct {
	lifecycle lifecycleState

	closeOnce  sync.Once
	closedOnce sync.Once
	terminated atomic.Bool

	baseContext context.Context
	cancel      context.CancelFunc

	// speech is the speech-endpoint facade used to normalize client wiring.
	speech speechEndpoint
	// avatar is the rendering-endpoint facade.
	avatar avatarEndpoint
	// audioInput is the input facade used to normalize capture behavior.
	audioInput audioInput

	queue    *chunkQueue
	dispatch *dispatcher
	monitor  *healthMonitor
	state    *conversationState

	startOptions    StartOptions
	queueCapacity   int
	reconnectPolicy ReconnectPolicy

	lastActivity atomic.Int64
}

func NewSession(opts ...SessionOption) *Session {
	s := &Session{
		baseContext:     context.Background(),
		cancel:          func() {},
		queueCapacity:   defaultQueueCapacity,
		reconnectPolicy: DefaultReconnectPolicy(),
	}

	s.speech = *newSpeechEndpoint(nil)
	s.avatar = *newAvatarEndpoint(nil)
	s.state = newConversationState(&s.speech)

	s.audioInput = *newAudioInput(nil, func(frame []byte) {
		if err := s.speech.AppendInputAudio(frame); err != nil {
			logger.Warn("failed to append input audio", "error", err)
		}
		s.touchActivity()
	})
	s.audioInput.SetCaptureGate(func() bool {
		return s.lifecycle.Load() == LifecycleActive && s.monitor.ForwardingAllowed()
	})
	s.audioInput.SetErrorHandler(func(err error) {
		s.reportError(fmt.Errorf("failed to start audio capture: %w", err))
	})

	for _, opt := range opts {
		opt(s)
	}

	s.queue = newChunkQueue(s.queueCapacity)
	s.dispatch = newDispatcher(s.queue,
		func(chunk Chunk) error { return s.avatar.SendAudioData(chunk) },
		func() bool { return s.forwardingAllowed() },
	)
	s.monitor = newHealthMonitor(&s.speech, &s.avatar, s.state, s.reconnectPolicy, healthMonitorCallbacks{
		onReconnectingChanged: func(reconnecting bool) {
			if s.startOptions.onReconnectingChanged != nil {
				s.startOptions.onReconnectingChanged(reconnecting)
			}
		},
		onFatal: func(err error) {
			s.reportError(err)
			s.Stop()
		},
		kickDispatch: func() { s.dispatch.Kick() },
		sessionConfig: func() speech.SessionConfig {
			return s.startOptions.SpeechConfig
		},
	})

	s.speech.SetEventEmitter(s.handleEvent)
	s.avatar.SetEventEmitter(s.handleEvent)

	return s
}

// Start initializes both endpoints, wires the relay pipeline and begins
// microphone capture. Repeated starts are rejected; an endpoint that fails
// to initialize reports the error and leaves the session unstarted, with no
// automatic retry.
func (s *Session) Start(ctx context.Context, opts ...StartOption) error {
	if s.terminated.Load() {
		return fmt.Errorf("session already closed")
	}
	if !s.lifecycle.Transition(LifecycleIdle, LifecycleStarting) {
		return fmt.Errorf("session already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	s.baseContext = ctx
	s.cancel = cancel

	ctx, span := tracer.Start(ctx, "start session")
	defer span.End()

	s.startOptions = StartOptions{}
	for _, opt := range opts {
		opt(&s.startOptions)
	}

	s.monitor.configure(s.baseContext)

	if err := s.avatar.Initialize(ctx, s.startOptions.AvatarConfig); err != nil {
		s.lifecycle.Store(LifecycleIdle)
		return s.recordStartFailure(span, err)
	}
	if err := s.avatar.Start(ctx); err != nil {
		s.lifecycle.Store(LifecycleIdle)
		return s.recordStartFailure(span, err)
	}

	if err := s.speech.Start(ctx, s.startOptions.SpeechConfig); err != nil {
		if closeErr := s.speech.Close(ctx); closeErr != nil {
			span.RecordError(closeErr)
		}
		if closeErr := s.avatar.Close(ctx); closeErr != nil {
			span.RecordError(closeErr)
		}
		s.lifecycle.Store(LifecycleIdle)
		return s.recordStartFailure(span, err)
	}

	// Stop may have arrived while an endpoint call was outstanding. Its
	// teardown pass already ran, so any connection opened after it must be
	// closed here before this start unwinds.
	if !s.lifecycle.Transition(LifecycleStarting, LifecycleActive) {
		if closeErr := s.speech.Close(ctx); closeErr != nil {
			span.RecordError(closeErr)
		}
		if closeErr := s.avatar.Close(ctx); closeErr != nil {
			span.RecordError(closeErr)
		}
		return fmt.Errorf("session stopped during start")
	}

	s.touchActivity()
	s.audioInput.Start(s.baseContext)

	go func() {
		<-s.baseContext.Done()
		s.Stop()
	}()
	go s.watchTimeouts(s.baseContext)

	if s.startOptions.onStarted != nil {
		s.startOptions.onStarted()
	}

	return nil
}

// Stop tears the session down: capture halts, both endpoint connections
// close and audio-processing resources are released. Safe to call multiple
// times and before a successful start; a stop during a pending endpoint
// await wins over the start completing.
func (s *Session) Stop() {
	s.closeOnce.Do(func() {
		s.terminated.Store(true)
		s.lifecycle.Store(LifecycleStopping)
		s.monitor.close()
		s.cancel()

		span := trace.SpanFromContext(s.baseContext)

		if err := s.audioInput.Close(); err != nil {
			recordedErr := fmt.Errorf("failed to close audio input: %w", err)
			span.RecordError(recordedErr)
			span.SetStatus(codes.Error, recordedErr.Error())
		}

		if err := s.speech.Close(s.baseContext); err != nil {
			recordedErr := fmt.Errorf("failed to close speech client: %w", err)
			span.RecordError(recordedErr)
			span.SetStatus(codes.Error, recordedErr.Error())
		}

		if err := s.avatar.Close(s.baseContext); err != nil {
			recordedErr := fmt.Errorf("failed to close avatar client: %w", err)
			span.RecordError(recordedErr)
			span.SetStatus(codes.Error, recordedErr.Error())
		}

		s.state.Discard()
		s.queue.Flush()
		s.lifecycle.Store(LifecycleIdle)

		s.closedOnce.Do(func() {
			if s.startOptions.onClosed != nil {
				s.startOptions.onClosed()
			}
		})
	})
}

func (s *Session) Lifecycle() Lifecycle {
	return s.lifecycle.Load()
}

func (s *Session) ConnectionStatus() ConnectionStatus {
	return s.monitor.Status()
}

func (s *Session) QueueDepth() int {
	return s.queue.Len()
}

func (s *Session) handleEvent(event events.Event) {
	switch typedEvent := event.(type) {
	case events.AssistantAudioDelta:
		s.handleAudioDelta(typedEvent)
	case events.Interrupted:
		s.handleInterruption(typedEvent)
	case events.AvatarDisconnected:
		s.monitor.HandleDisconnected(typedEvent.Reason)
	case events.AvatarConnected:
		s.monitor.HandleConnected()
	}

	newCallbackEventEmitter(s.startOptions)(event)
	s.touchActivity()
}

// handleAudioDelta is the inbound producer path: resample the delta to the
// render rate, queue it, and kick the dispatcher if it is idle.
func (s *Session) handleAudioDelta(event events.AssistantAudioDelta) {
	if s.lifecycle.Load() != LifecycleActive {
		return
	}

	samples := audio.Resample(event.Audio, audio.ModelSampleRate, audio.RenderSampleRate)
	if len(samples) == 0 {
		return
	}

	if dropped := s.queue.Enqueue(Chunk(samples)); dropped {
		logger.Warn("chunk queue overflowed, dropped oldest chunk",
			"dropped_total", s.queue.DroppedTotal())
	}
	s.dispatch.Kick()
}

// handleInterruption reacts to user barge-in: discard queued audio, clear
// what the rendering endpoint buffered, and cancel the in-flight response.
func (s *Session) handleInterruption(event events.Interrupted) {
	if s.lifecycle.Load() != LifecycleActive {
		return
	}

	flushed := s.queue.Flush()
	if flushed > 0 {
		logger.Debug("flushed queued chunks on interruption", "count", flushed)
	}

	if err := s.avatar.ClearBuffer(); err != nil {
		logger.Warn("failed to clear avatar buffer", "error", err)
	}

	if err := s.speech.CancelResponse(event.ResponseID); err != nil {
		logger.Warn("failed to cancel in-flight response", "error", err)
	}
}

func (s *Session) forwardingAllowed() bool {
	return s.lifecycle.Load() == LifecycleActive && s.monitor.ForwardingAllowed()
}

func (s *Session) reportError(err error) {
	if err == nil {
		return
	}

	span := trace.SpanFromContext(s.baseContext)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	if s.startOptions.onError != nil {
		s.startOptions.onError(err.Error())
	}
}

func (s *Session) recordStartFailure(span trace.Span, err error) error {
	recordedErr := fmt.Errorf("failed to start session: %w", err)
	span.RecordError(recordedErr)
	span.SetStatus(codes.Error, recordedErr.Error())
	return recordedErr
}

func (s *Session) touchActivity() {
	s.lastActivity.Store(time.Now().UnixNano())
}

// watchTimeouts enforces the configured session and idle limits. Both are
// optional; zero disables them.
func (s *Session) watchTimeouts(ctx context.Context) {
	sessionTimeout := s.startOptions.AvatarConfig.SessionTimeout
	idleTimeout := s.startOptions.AvatarConfig.IdleTimeout
	if sessionTimeout <= 0 && idleTimeout <= 0 {
		return
	}

	startedAt := time.Now()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.lifecycle.Load() != LifecycleActive {
				return
			}

			if sessionTimeout > 0 && time.Since(startedAt) >= sessionTimeout {
				s.reportError(fmt.Errorf("session timeout reached"))
				s.Stop()
				return
			}

			lastActivity := time.Unix(0, s.lastActivity.Load())
			if idleTimeout > 0 && time.Since(lastActivity) >= idleTimeout {
				s.reportError(fmt.Errorf("session idle timeout reached"))
				s.Stop()
				return
			}
		}
	}
}

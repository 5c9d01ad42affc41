package session

import (
	"context"
	"fmt"

	"github.com/andrassy/viseme-core/core/events"
	"github.com/andrassy/viseme-core/core/speech"
)

// speechEndpoint normalizes the configured speech client behind a nil-safe
// facade and translates its callbacks into events.
type speechEndpoint struct {
	// client stores the configured speech-model endpoint implementation.
	client SpeechClient

	emitEvent eventEmitter
}

func newSpeechEndpoint(client SpeechClient) *speechEndpoint {
	return &speechEndpoint{
		client:    client,
		emitEvent: noopEventEmitter,
	}
}

func (s *speechEndpoint) set(client SpeechClient) {
	if s != nil {
		s.client = client
	}
}

func (s *speechEndpoint) isConfigured() bool {
	return s != nil && s.client != nil
}

// Start connects the client and applies the session configuration. Endpoint
// callbacks are wired to event emission from here on.
func (s *speechEndpoint) Start(ctx context.Context, config speech.SessionConfig) error {
	if !s.isConfigured() {
		return nil
	}

	sessionOptions := []speech.SessionOption{
		speech.WithAudioDeltaCallback(s.invokeAudioDelta),
		speech.WithTranscriptDeltaCallback(s.invokeTranscriptDelta),
		speech.WithUserTranscriptCallback(s.invokeUserTranscript),
		speech.WithSpeechStoppedCallback(s.invokeSpeechStopped),
		speech.WithInterruptedCallback(s.invokeInterrupted),
		speech.WithErrorCallback(s.invokeError),
	}

	if err := s.client.Connect(ctx, sessionOptions...); err != nil {
		return fmt.Errorf("failed to connect to speech endpoint: %w", err)
	}

	if err := s.client.UpdateSession(ctx, config); err != nil {
		return fmt.Errorf("failed to configure speech session: %w", err)
	}

	return nil
}

func (s *speechEndpoint) AppendInputAudio(frame []byte) error {
	if !s.isConfigured() {
		return nil
	}
	return s.client.AppendInputAudio(frame)
}

func (s *speechEndpoint) UpdateSession(ctx context.Context, config speech.SessionConfig) error {
	if !s.isConfigured() {
		return nil
	}
	return s.client.UpdateSession(ctx, config)
}

func (s *speechEndpoint) CancelResponse(responseID string) error {
	if !s.isConfigured() {
		return nil
	}
	return s.client.CancelResponse(responseID)
}

func (s *speechEndpoint) Pause(ctx context.Context) error {
	if !s.isConfigured() {
		return nil
	}
	return s.client.Pause(ctx)
}

func (s *speechEndpoint) Resume(ctx context.Context) error {
	if !s.isConfigured() {
		return nil
	}
	return s.client.Resume(ctx)
}

func (s *speechEndpoint) ContextReference() string {
	if !s.isConfigured() {
		return ""
	}
	return s.client.ContextReference()
}

func (s *speechEndpoint) RestoreContext(ctx context.Context, contextReference string) error {
	if !s.isConfigured() {
		return nil
	}
	return s.client.RestoreContext(ctx, contextReference)
}

func (s *speechEndpoint) Close(ctx context.Context) error {
	if !s.isConfigured() {
		return nil
	}

	switch c := s.client.(type) {
	case interface{ Close(context.Context) error }:
		if err := c.Close(ctx); err != nil {
			return fmt.Errorf("failed to close speech client: %w", err)
		}
	case interface{ Close(context.Context) }:
		c.Close(ctx)
	case interface{ Close() error }:
		if err := c.Close(); err != nil {
			return fmt.Errorf("failed to close speech client: %w", err)
		}
	case interface{ Close() }:
		c.Close()
	}

	return nil
}

func (s *speechEndpoint) SetEventEmitter(emitEvent eventEmitter) {
	if s != nil {
		if emitEvent != nil {
			s.emitEvent = emitEvent
		} else {
			s.emitEvent = noopEventEmitter
		}
	}
}

func (s *speechEndpoint) invokeAudioDelta(itemID string, audio []float32) {
	s.emitEvent(events.NewAssistantAudioDelta(itemID, audio))
}

func (s *speechEndpoint) invokeTranscriptDelta(itemID, segment string) {
	s.emitEvent(events.NewAssistantTranscriptDelta(itemID, segment))
}

func (s *speechEndpoint) invokeUserTranscript(transcript string, isFinal bool) {
	s.emitEvent(events.NewUserTranscript(transcript, isFinal))
}

func (s *speechEndpoint) invokeSpeechStopped() {
	s.emitEvent(events.NewSpeechStopped())
}

func (s *speechEndpoint) invokeInterrupted(responseID string) {
	s.emitEvent(events.NewInterrupted(responseID))
}

func (s *speechEndpoint) invokeError(err error) {
	logger.Warn("speech endpoint error", "error", err)
}

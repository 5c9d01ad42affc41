package session

import (
	"context"

	"github.com/andrassy/viseme-core/core/avatar"
	"github.com/andrassy/viseme-core/core/speech"
)

type SessionOption func(*Session)

// SpeechClient is the surface consumed from the speech-model endpoint. The
// endpoint's wire protocol stays inside the client; the session only sees
// these calls and the callbacks configured on Connect.
type SpeechClient interface {
	Connect(ctx context.Context, opts ...speech.SessionOption) error
	UpdateSession(ctx context.Context, config speech.SessionConfig) error
	AppendInputAudio(frame []byte) error
	CancelResponse(responseID string) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	ContextReference() string
	RestoreContext(ctx context.Context, contextReference string) error
}

func WithSpeechClient(client SpeechClient) SessionOption {
	return func(s *Session) { s.speech.set(client) }
}

// AvatarClient is the surface consumed from the avatar-rendering endpoint.
type AvatarClient interface {
	Initialize(ctx context.Context, config avatar.Config) error
	Start(ctx context.Context, opts ...avatar.ConnectionOption) error
	Reconnect(ctx context.Context) error
	SendAudioData(chunk []int16) error
	ClearBuffer() error
}

func WithAvatarClient(client AvatarClient) SessionOption {
	return func(s *Session) { s.avatar.set(client) }
}

type AudioInput interface {
	audioInputBase
}

// AudioInputFine is implemented by capture backends that support explicit
// start/stop control beyond a single streaming call.
type AudioInputFine interface {
	StartCapture(ctx context.Context, onAudio func(audio []byte)) error
	StopCapture() error
}

func WithAudioInput(client AudioInput) SessionOption {
	return func(s *Session) { s.audioInput.Set(client) }
}

// WithChunkQueueCapacity overrides the pending-chunk bound. Oldest chunks
// are dropped on overflow.
func WithChunkQueueCapacity(capacity int) SessionOption {
	return func(s *Session) {
		if capacity > 0 {
			s.queueCapacity = capacity
		}
	}
}

func WithReconnectPolicy(policy ReconnectPolicy) SessionOption {
	return func(s *Session) { s.reconnectPolicy = policy }
}

type StartOptions struct {
	SpeechConfig speech.SessionConfig
	AvatarConfig avatar.Config

	onStarted             func()
	onClosed              func()
	onReconnectingChanged func(reconnecting bool)
	onError               func(message string)
	onUserTranscript      func(transcript string, isFinal bool)
	onAssistantTranscript func(segment string)
	onSpeechStopped       func()
	onInterrupted         func()
}

type StartOption func(*StartOptions)

func WithSpeechSessionConfig(config speech.SessionConfig) StartOption {
	return func(o *StartOptions) { o.SpeechConfig = config }
}

func WithAvatarConfig(config avatar.Config) StartOption {
	return func(o *StartOptions) { o.AvatarConfig = config }
}

func WithStartedCallback(callback func()) StartOption {
	return func(o *StartOptions) { o.onStarted = callback }
}

// WithClosedCallback registers the host's onClose notification. It fires
// exactly once per session, on any full teardown.
func WithClosedCallback(callback func()) StartOption {
	return func(o *StartOptions) { o.onClosed = callback }
}

// WithReconnectingCallback drives the host's transient reconnect indicator.
func WithReconnectingCallback(callback func(reconnecting bool)) StartOption {
	return func(o *StartOptions) { o.onReconnectingChanged = callback }
}

func WithErrorCallback(callback func(message string)) StartOption {
	return func(o *StartOptions) { o.onError = callback }
}

func WithUserTranscriptCallback(callback func(transcript string, isFinal bool)) StartOption {
	return func(o *StartOptions) { o.onUserTranscript = callback }
}

func WithAssistantTranscriptCallback(callback func(segment string)) StartOption {
	return func(o *StartOptions) { o.onAssistantTranscript = callback }
}

func WithSpeechStoppedCallback(callback func()) StartOption {
	return func(o *StartOptions) { o.onSpeechStopped = callback }
}

func WithInterruptedCallback(callback func()) StartOption {
	return func(o *StartOptions) { o.onInterrupted = callback }
}

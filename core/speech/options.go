package speech

// TurnDetection selects the endpoint's policy for deciding when the user
// finished a turn.
type TurnDetection string

const (
	TurnDetectionServerVAD TurnDetection = "server_vad"
	TurnDetectionNone      TurnDetection = "none"
)

// SessionConfig is the configuration applied to the speech endpoint when the
// session starts and re-applied after a context restore.
type SessionConfig struct {
	Voice              string
	Instructions       string
	TurnDetection      TurnDetection
	TranscriptionModel string
}

type SessionOptions struct {
	AudioDeltaCallback      func(itemID string, audio []float32)
	TranscriptDeltaCallback func(itemID string, segment string)
	UserTranscriptCallback  func(transcript string, isFinal bool)
	SpeechStoppedCallback   func()
	InterruptedCallback     func(responseID string)
	ErrorCallback           func(err error)
}

type SessionOption func(*SessionOptions)

func WithAudioDeltaCallback(callback func(itemID string, audio []float32)) SessionOption {
	return func(o *SessionOptions) {
		o.AudioDeltaCallback = callback
	}
}

func WithTranscriptDeltaCallback(callback func(itemID string, segment string)) SessionOption {
	return func(o *SessionOptions) {
		o.TranscriptDeltaCallback = callback
	}
}

func WithUserTranscriptCallback(callback func(transcript string, isFinal bool)) SessionOption {
	return func(o *SessionOptions) {
		o.UserTranscriptCallback = callback
	}
}

func WithSpeechStoppedCallback(callback func()) SessionOption {
	return func(o *SessionOptions) {
		o.SpeechStoppedCallback = callback
	}
}

func WithInterruptedCallback(callback func(responseID string)) SessionOption {
	return func(o *SessionOptions) {
		o.InterruptedCallback = callback
	}
}

func WithErrorCallback(callback func(err error)) SessionOption {
	return func(o *SessionOptions) {
		o.ErrorCallback = callback
	}
}

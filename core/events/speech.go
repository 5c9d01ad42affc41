package events

const (
	KindAssistantAudioDelta Kind = "assistant.audio.delta"
	KindSpeechStopped       Kind = "user.speech.stopped"
)

// AssistantAudioDelta carries one increment of synthesized speech from the
// speech endpoint. Samples are float in [-1, 1] at the model's native rate.
type AssistantAudioDelta struct {
	BaseEvent
	ItemID string
	Audio  []float32
}

func (e AssistantAudioDelta) String() string { return "assistant audio delta" }

func NewAssistantAudioDelta(itemID string, audio []float32) AssistantAudioDelta {
	return AssistantAudioDelta{
		BaseEvent: NewBaseEvent(KindAssistantAudioDelta),
		ItemID:    itemID,
		Audio:     audio,
	}
}

// SpeechStopped signals that the endpoint's turn detection decided the user
// finished speaking.
type SpeechStopped struct {
	BaseEvent
}

func (e SpeechStopped) String() string { return "speech stopped" }

func NewSpeechStopped() SpeechStopped {
	return SpeechStopped{BaseEvent: NewBaseEvent(KindSpeechStopped)}
}

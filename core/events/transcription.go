package events

const (
	KindUserTranscript           Kind = "user.transcript"
	KindAssistantTranscriptDelta Kind = "assistant.transcript.delta"
)

// UserTranscript carries a transcription of the user's speech. Interim
// transcripts may be superseded; a final one closes the utterance.
type UserTranscript struct {
	BaseEvent
	Transcript string
	IsFinal    bool
}

func (e UserTranscript) String() string { return e.Transcript }

func NewUserTranscript(transcript string, isFinal bool) UserTranscript {
	return UserTranscript{
		BaseEvent:  NewBaseEvent(KindUserTranscript),
		Transcript: transcript,
		IsFinal:    isFinal,
	}
}

// AssistantTranscriptDelta carries the text matching the assistant's
// synthesized speech, incrementally.
type AssistantTranscriptDelta struct {
	BaseEvent
	ItemID  string
	Segment string
}

func (e AssistantTranscriptDelta) String() string { return e.Segment }

func NewAssistantTranscriptDelta(itemID, segment string) AssistantTranscriptDelta {
	return AssistantTranscriptDelta{
		BaseEvent: NewBaseEvent(KindAssistantTranscriptDelta),
		ItemID:    itemID,
		Segment:   segment,
	}
}

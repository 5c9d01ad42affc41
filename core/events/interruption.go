package events

const KindInterrupted Kind = "conversation.interrupted"

// Interrupted signals a user barge-in. It is a control signal, not an error:
// queued outbound audio is discarded and the in-flight response, if any, is
// cancelled.
type Interrupted struct {
	BaseEvent
	ResponseID string
}

func (e Interrupted) String() string { return "interrupted" }

func NewInterrupted(responseID string) Interrupted {
	return Interrupted{
		BaseEvent:  NewBaseEvent(KindInterrupted),
		ResponseID: responseID,
	}
}

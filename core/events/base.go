package events

import "time"

type Kind string

type Event interface {
	Kind() Kind
	Timestamp() time.Time
}

type BaseEvent struct {
	kind      Kind
	timestamp time.Time
}

func NewBaseEvent(kind Kind) BaseEvent {
	return BaseEvent{kind: kind, timestamp: time.Now()}
}

func (b BaseEvent) Kind() Kind {
	return b.kind
}

func (b BaseEvent) Timestamp() time.Time {
	return b.timestamp
}

package events

const (
	KindAvatarConnected    Kind = "avatar.connected"
	KindAvatarDisconnected Kind = "avatar.disconnected"
)

// AvatarConnected signals that the rendering endpoint established (or
// re-established) its connection.
type AvatarConnected struct {
	BaseEvent
}

func (e AvatarConnected) String() string { return "avatar connected" }

func NewAvatarConnected() AvatarConnected {
	return AvatarConnected{BaseEvent: NewBaseEvent(KindAvatarConnected)}
}

// AvatarDisconnected signals that the rendering endpoint dropped. Reason is
// informational only; the health monitor reacts the same way regardless.
type AvatarDisconnected struct {
	BaseEvent
	Reason string
}

func (e AvatarDisconnected) String() string { return "avatar disconnected" }

func NewAvatarDisconnected(reason string) AvatarDisconnected {
	return AvatarDisconnected{
		BaseEvent: NewBaseEvent(KindAvatarDisconnected),
		Reason:    reason,
	}
}

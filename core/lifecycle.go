package session

import "sync/atomic"

// Lifecycle reports what phase a [Session] is in. Capture and dispatch only
// run while the session is active; every other phase gates them off.
type Lifecycle int32

const (
	LifecycleIdle Lifecycle = iota
	LifecycleStarting
	LifecycleActive
	LifecycleStopping
)

func (l Lifecycle) String() string {
	switch l {
	case LifecycleIdle:
		return "idle"
	case LifecycleStarting:
		return "starting"
	case LifecycleActive:
		return "active"
	case LifecycleStopping:
		return "stopping"
	}
	return "unknown"
}

// lifecycleState is the single authoritative lifecycle value. Only the
// session controller transitions it; everything else just reads.
type lifecycleState struct {
	value atomic.Int32
}

func (s *lifecycleState) Load() Lifecycle {
	return Lifecycle(s.value.Load())
}

func (s *lifecycleState) Transition(from, to Lifecycle) bool {
	return s.value.CompareAndSwap(int32(from), int32(to))
}

func (s *lifecycleState) Store(to Lifecycle) {
	s.value.Store(int32(to))
}

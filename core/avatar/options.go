package avatar

import "time"

// Config selects the rendered avatar and the endpoint's session limits. The
// avatar identity is an opaque string understood by the endpoint.
type Config struct {
	AvatarID       string
	SessionTimeout time.Duration
	IdleTimeout    time.Duration
}

type ConnectionOptions struct {
	ConnectedCallback    func()
	DisconnectedCallback func(reason string)
	ErrorCallback        func(err error)
}

type ConnectionOption func(*ConnectionOptions)

func WithConnectedCallback(callback func()) ConnectionOption {
	return func(o *ConnectionOptions) {
		o.ConnectedCallback = callback
	}
}

func WithDisconnectedCallback(callback func(reason string)) ConnectionOption {
	return func(o *ConnectionOptions) {
		o.DisconnectedCallback = callback
	}
}

func WithErrorCallback(callback func(err error)) ConnectionOption {
	return func(o *ConnectionOptions) {
		o.ErrorCallback = callback
	}
}

package session

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/andrassy/viseme-core/core/audio"
)

type audioInputBase interface {
	Stream(ctx context.Context, onAudio func(audio []byte)) error
	Close()
	EncodingInfo() audio.EncodingInfo
}

// audioInput normalizes microphone capture behavior behind a facade. The
// configured backend owns the exclusive microphone stream; this facade owns
// the capture gate and the idempotent stop semantics.
type audioInput struct {
	// base stores the configured input client used for streaming audio.
	base audioInputBase
	// fineCaptureControl is set when the input client supports explicit capture controls.
	fineCaptureControl AudioInputFine

	// connected reports whether a concrete input client is currently configured.
	connected atomic.Bool
	// isCapturing reports whether the input client is currently capturing audio.
	isCapturing atomic.Bool
	closed      atomic.Bool

	// allowCapture gates frame delivery; frames produced while it reports
	// false are dropped at this boundary.
	allowCapture func() bool
	// onInputAudio is called with each captured frame.
	onInputAudio func(frame []byte)
	// onError surfaces capture failures (typically microphone permission
	// denial) to the session controller.
	onError func(err error)
}

func newAudioInput(client audioInputBase, onInputAudio func(frame []byte)) *audioInput {
	if onInputAudio == nil {
		onInputAudio = func(frame []byte) {}
	}

	input := audioInput{
		onInputAudio: onInputAudio,
		allowCapture: func() bool { return true },
		onError:      func(error) {},
	}
	input.Set(client)
	return &input
}

func (a *audioInput) Set(client audioInputBase) {
	if a == nil {
		return
	}

	a.base = client
	a.fineCaptureControl = nil
	a.connected.Store(false)
	a.isCapturing.Store(false)

	if client == nil {
		return
	}

	a.connected.Store(true)
	if fine, ok := client.(AudioInputFine); ok {
		a.fineCaptureControl = fine
	}
}

func (a *audioInput) SetCaptureGate(allowCapture func() bool) {
	if a == nil || allowCapture == nil {
		return
	}
	a.allowCapture = allowCapture
}

func (a *audioInput) SetErrorHandler(onError func(err error)) {
	if a == nil || onError == nil {
		return
	}
	a.onError = onError
}

func (a *audioInput) IsConfigured() bool            { return a != nil && a.connected.Load() }
func (a *audioInput) SupportsCaptureControls() bool { return a != nil && a.fineCaptureControl != nil }
func (a *audioInput) IsCapturing() bool             { return a != nil && a.isCapturing.Load() }

func (a *audioInput) EncodingInfo() audio.EncodingInfo {
	if a == nil || a.base == nil {
		return audio.GetCaptureEncodingInfo()
	}
	return a.base.EncodingInfo()
}

// Start begins capture. A failure to acquire the microphone surfaces through
// the error handler and leaves the facade in a non-capturing state.
func (a *audioInput) Start(ctx context.Context) {
	if a.IsConfigured() {
		a.Capture(ctx)
	}
}

func (a *audioInput) Capture(ctx context.Context) error {
	if a == nil || a.closed.Load() {
		return nil
	}

	if !a.isCapturing.CompareAndSwap(false, true) {
		return nil
	}

	if a.SupportsCaptureControls() {
		go func() {
			if err := a.fineCaptureControl.StartCapture(ctx, a.onAudio); err != nil {
				a.isCapturing.Store(false)
				a.onError(err)
			}
		}()
		return nil
	}

	if a.base != nil {
		go func() {
			if err := a.base.Stream(ctx, a.onAudio); err != nil {
				a.isCapturing.Store(false)
				a.onError(err)
			}
		}()
		return nil
	}

	a.isCapturing.Store(false)
	return nil
}

func (a *audioInput) StopCapture() error {
	if a == nil || !a.SupportsCaptureControls() {
		return nil
	}

	if !a.isCapturing.Load() {
		return nil
	}

	if err := a.fineCaptureControl.StopCapture(); err != nil {
		return err
	}
	a.isCapturing.Store(false)
	return nil
}

// Close releases the microphone. Safe to call repeatedly and before capture
// ever started.
func (a *audioInput) Close() error {
	if a == nil || !a.closed.CompareAndSwap(false, true) {
		return nil
	}

	var errs error
	if a.base != nil && a.IsConfigured() {
		if a.fineCaptureControl != nil && a.isCapturing.Load() {
			if err := a.fineCaptureControl.StopCapture(); err != nil {
				errs = errors.Join(errs, err)
			}
		}

		a.base.Close()
	}
	a.isCapturing.Store(false)

	return errs
}

func (a *audioInput) onAudio(frame []byte) {
	if a.closed.Load() || !a.allowCapture() {
		return
	}

	a.onInputAudio(frame)
}

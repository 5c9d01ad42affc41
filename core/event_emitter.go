package session

import "github.com/andrassy/viseme-core/core/events"

type eventEmitter func(events.Event)

func noopEventEmitter(events.Event) {}

// newCallbackEventEmitter fans events out to the host's Start callbacks.
// Pipeline behavior (queueing, flushing, reconnect sequencing) happens before
// this emitter is reached; it only notifies.
func newCallbackEventEmitter(opts StartOptions) eventEmitter {
	return func(event events.Event) {
		switch typedEvent := event.(type) {
		case events.UserTranscript:
			if opts.onUserTranscript != nil {
				opts.onUserTranscript(typedEvent.Transcript, typedEvent.IsFinal)
			}
		case events.AssistantTranscriptDelta:
			if opts.onAssistantTranscript != nil {
				opts.onAssistantTranscript(typedEvent.Segment)
			}
		case events.SpeechStopped:
			if opts.onSpeechStopped != nil {
				opts.onSpeechStopped()
			}
		case events.Interrupted:
			if opts.onInterrupted != nil {
				opts.onInterrupted()
			}
		}
	}
}

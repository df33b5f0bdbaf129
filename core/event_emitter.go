package orchestration

import (
	"github.com/koscakluka/ema-voice/core/events"
	"github.com/koscakluka/ema-voice/core/speechtotext"
)

type eventEmitter func(events.Event)

func noopEventEmitter(events.Event) {}

func newCallbackEventEmitter(opts OrchestrateOptions) eventEmitter {
	return func(event events.Event) {
		switch typedEvent := event.(type) {
		case events.SessionStateChanged:
			if opts.onStateChanged != nil {
				opts.onStateChanged(State(typedEvent.From), State(typedEvent.To))
			}
		case events.WakePhraseDetected:
			if opts.onWakePhrase != nil {
				opts.onWakePhrase(typedEvent.Transcript)
			}
		case events.GoodbyePhraseDetected:
			if opts.onGoodbyePhrase != nil {
				opts.onGoodbyePhrase(typedEvent.Transcript)
			}
		case events.PermissionDenied:
			if opts.onPermissionDenied != nil {
				opts.onPermissionDenied(typedEvent.Message)
			}
		case events.UserTranscriptInterimUpdated:
			if opts.onInterimTranscription != nil {
				opts.onInterimTranscription(typedEvent.Transcript)
			}
		case events.UserTranscriptFinal:
			if opts.onTranscription != nil {
				opts.onTranscription(typedEvent.Transcript)
			}
		case events.AssistantResponseFinal:
			if opts.onResponse != nil {
				opts.onResponse(typedEvent.Response)
			}
		case events.AssistantSpeakingChanged:
			if opts.onSpeakingChanged != nil {
				opts.onSpeakingChanged(typedEvent.Speaking)
			}
		case events.RecognitionFailed:
			if opts.onRecognitionError != nil {
				opts.onRecognitionError(speechtotext.ErrorKind(typedEvent.ErrorKind), typedEvent.Err)
			}
		}

		if opts.onEvent != nil {
			opts.onEvent(event)
		}
	}
}

package orchestration

import (
	"context"
	"time"

	"github.com/koscakluka/ema-voice/core/audio"
	"github.com/koscakluka/ema-voice/core/events"
	"github.com/koscakluka/ema-voice/core/llms"
	"github.com/koscakluka/ema-voice/core/phrases"
	"github.com/koscakluka/ema-voice/core/speechtotext"
	"github.com/koscakluka/ema-voice/core/texttospeech"
)

type OrchestratorOption func(*Orchestrator)

type SpeechToText interface {
	Transcribe(ctx context.Context, opts ...speechtotext.TranscriptionOption) error
	SendAudio(audio []byte) error
	StopStream() error
	Close() error
}

func WithSpeechToTextClient(client SpeechToText) OrchestratorOption {
	return func(o *Orchestrator) { o.speechToText = client }
}

// AudioInput captures microphone audio for the speech-to-text client. Without
// one, audio has to be fed to the speech-to-text client directly.
type AudioInput interface {
	StartCapture(ctx context.Context, onAudio func(audio []byte)) error
	StopCapture() error
	EncodingInfo() audio.EncodingInfo
}

func WithAudioInput(client AudioInput) OrchestratorOption {
	return func(o *Orchestrator) { o.audioInput = client }
}

type TextToSpeech interface {
	Synthesize(ctx context.Context, text string, opts ...texttospeech.SynthesisOption) ([]byte, error)
}

func WithTextToSpeechClient(client TextToSpeech) OrchestratorOption {
	return func(o *Orchestrator) { o.textToSpeech = client }
}

// AudioOutput plays raw audio. Mark calls the callback once all audio sent
// before the mark has been played.
type AudioOutput interface {
	SendAudio(audio []byte) error
	ClearBuffer()
	Mark(mark string, callback func(string)) error
	EncodingInfo() audio.EncodingInfo
}

func WithAudioOutput(client AudioOutput) OrchestratorOption {
	return func(o *Orchestrator) { o.audioOutput = client }
}

type LLM interface {
	Complete(ctx context.Context, messages []llms.Message, opts ...llms.CompletionOption) (string, error)
}

func WithLLM(client LLM) OrchestratorOption {
	return func(o *Orchestrator) { o.llm = client }
}

// WithCompletionOptions sets options passed with every completion request,
// e.g. the system prompt.
func WithCompletionOptions(opts ...llms.CompletionOption) OrchestratorOption {
	return func(o *Orchestrator) { o.config.completionOptions = append(o.config.completionOptions, opts...) }
}

func WithCompletionTimeout(timeout time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if timeout > 0 {
			o.config.completionTimeout = timeout
		}
	}
}

func WithPhraseMatcher(matcher *phrases.Matcher) OrchestratorOption {
	return func(o *Orchestrator) {
		if matcher != nil {
			o.matcher = matcher
		}
	}
}

func WithRecognitionConfig(config RecognitionConfig) OrchestratorOption {
	return func(o *Orchestrator) { o.config.recognition = config }
}

// WithRestartDelay sets how long to wait before restarting recognition that
// ended on its own.
func WithRestartDelay(delay time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if delay >= 0 {
			o.config.restartDelay = delay
		}
	}
}

func WithGreeting(greeting string) OrchestratorOption {
	return func(o *Orchestrator) { o.config.greeting = greeting }
}

func WithFarewell(farewell string) OrchestratorOption {
	return func(o *Orchestrator) { o.config.farewell = farewell }
}

type OrchestrateOptions struct {
	onEvent func(events.Event)

	onStateChanged         func(from, to State)
	onInterimTranscription func(transcript string)
	onTranscription        func(transcript string)
	onWakePhrase           func(transcript string)
	onGoodbyePhrase        func(transcript string)
	onResponse             func(response string)
	onSpeakingChanged      func(isSpeaking bool)
	onPermissionDenied     func(message string)
	onRecognitionError     func(kind speechtotext.ErrorKind, err error)
}

type OrchestrateOption func(*OrchestrateOptions)

// WithEventCallback receives every typed session event.
func WithEventCallback(callback func(events.Event)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onEvent = callback }
}

func WithStateChangedCallback(callback func(from, to State)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onStateChanged = callback }
}

func WithInterimTranscriptionCallback(callback func(transcript string)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onInterimTranscription = callback }
}

func WithTranscriptionCallback(callback func(transcript string)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onTranscription = callback }
}

func WithWakePhraseCallback(callback func(transcript string)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onWakePhrase = callback }
}

func WithGoodbyePhraseCallback(callback func(transcript string)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onGoodbyePhrase = callback }
}

func WithResponseCallback(callback func(response string)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onResponse = callback }
}

func WithSpeakingChangedCallback(callback func(isSpeaking bool)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onSpeakingChanged = callback }
}

func WithPermissionDeniedCallback(callback func(message string)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onPermissionDenied = callback }
}

func WithRecognitionErrorCallback(callback func(kind speechtotext.ErrorKind, err error)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onRecognitionError = callback }
}

package speechtotext

import (
	"context"

	"github.com/koscakluka/ema-voice/core/audio"
)

// Recognizer is a streaming speech recognition service. A stream is opened by
// Transcribe and fed with SendAudio; results are delivered through the
// callbacks passed as options.
type Recognizer interface {
	Transcribe(ctx context.Context, opts ...TranscriptionOption) error
	SendAudio(audio []byte) error
	// StopStream asks the service to finalize pending audio and close the
	// stream. The stream ended callback fires once the service has closed it.
	StopStream() error
	// Close drops the stream immediately. No callbacks are fired afterwards.
	Close() error
}

type TranscriptionOptions struct {
	// Continuous keeps the stream open across utterances. When false the
	// stream is closed after the first final result.
	Continuous     bool
	InterimResults bool
	Language       string

	ResultCallback        func(transcript string, isFinal bool)
	SpeechStartedCallback func()
	StreamEndedCallback   func()
	ErrorCallback         func(err error)

	EncodingInfo audio.EncodingInfo
}

type TranscriptionOption func(*TranscriptionOptions)

func WithContinuous(continuous bool) TranscriptionOption {
	return func(o *TranscriptionOptions) { o.Continuous = continuous }
}

func WithInterimResults(interimResults bool) TranscriptionOption {
	return func(o *TranscriptionOptions) { o.InterimResults = interimResults }
}

func WithLanguage(language string) TranscriptionOption {
	return func(o *TranscriptionOptions) { o.Language = language }
}

// WithResultCallback sets the callback for transcripts. Interim transcripts
// contain everything recognized in the current utterance so far.
func WithResultCallback(callback func(transcript string, isFinal bool)) TranscriptionOption {
	return func(o *TranscriptionOptions) { o.ResultCallback = callback }
}

func WithSpeechStartedCallback(callback func()) TranscriptionOption {
	return func(o *TranscriptionOptions) { o.SpeechStartedCallback = callback }
}

func WithStreamEndedCallback(callback func()) TranscriptionOption {
	return func(o *TranscriptionOptions) { o.StreamEndedCallback = callback }
}

func WithErrorCallback(callback func(err error)) TranscriptionOption {
	return func(o *TranscriptionOptions) { o.ErrorCallback = callback }
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		if encodingInfo.IsZero() {
			return
		}
		o.EncodingInfo = encodingInfo
	}
}

package texttospeech

import (
	"context"
	"errors"

	"github.com/koscakluka/ema-voice/core/audio"
)

// ErrSynthesis wraps every failure reported by a speech synthesis service.
var ErrSynthesis = errors.New("speech synthesis failed")

// Synthesizer turns text into raw audio. The returned audio uses the
// encoding requested through WithEncodingInfo, or the synthesizer's default.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, opts ...SynthesisOption) ([]byte, error)
}

type SynthesisOptions struct {
	EncodingInfo audio.EncodingInfo
}

type SynthesisOption func(*SynthesisOptions)

func WithEncodingInfo(encodingInfo audio.EncodingInfo) SynthesisOption {
	return func(o *SynthesisOptions) {
		if encodingInfo.IsZero() {
			return
		}

		o.EncodingInfo = encodingInfo
	}
}

func NewSynthesisOptions(opts ...SynthesisOption) SynthesisOptions {
	options := SynthesisOptions{EncodingInfo: audio.GetDefaultEncodingInfo()}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

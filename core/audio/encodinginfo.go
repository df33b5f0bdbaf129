package audio

import (
	"fmt"
	"time"
)

const (
	DefaultSampleRate = 16000
	DefaultFormat     = "linear16"
)

func GetDefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultSampleRate, Format: encodingFormat(DefaultFormat)}
}

// EncodingInfo describes single channel raw audio.
type EncodingInfo struct {
	SampleRate int
	Format     encodingFormat
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format.Name() == ""
}

func (e EncodingInfo) SilenceValue() byte {
	switch e.Format {
	case EncodingALaw:
		return 0x55
	case EncodingMulaw:
		return 0xFF
	case EncodingLinear16:
		return 0
	}

	return 0
}

// BytesPerSecond returns how many bytes of audio are played per second, or 0
// if the format is unknown.
func (e EncodingInfo) BytesPerSecond() int {
	if size := e.Format.ByteSize(); size > 0 {
		return e.SampleRate * size
	}
	return 0
}

// ChunkSize returns the byte length of d worth of audio, aligned to whole
// samples.
func (e EncodingInfo) ChunkSize(d time.Duration) int {
	size := e.Format.ByteSize()
	if size <= 0 || d <= 0 {
		return 0
	}

	samples := int(int64(e.SampleRate) * int64(d) / int64(time.Second))
	if samples == 0 {
		samples = 1
	}
	return samples * size
}

type encodingFormat string

func (e encodingFormat) Name() string {
	return string(e)
}

func (e encodingFormat) ByteSize() int {
	switch e {
	case EncodingMulaw, EncodingALaw:
		return 1
	case EncodingLinear16:
		return 2
	}
	return -1
}

const (
	EncodingMulaw    encodingFormat = "mulaw"
	EncodingALaw     encodingFormat = "alaw"
	EncodingLinear16 encodingFormat = "linear16"
)

// ParseFormat maps a format name to one of the supported encodings.
func ParseFormat(name string) (encodingFormat, error) {
	switch format := encodingFormat(name); format {
	case EncodingMulaw, EncodingALaw, EncodingLinear16:
		return format, nil
	}
	return "", fmt.Errorf("unsupported audio format %q", name)
}

package portaudio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/koscakluka/ema-voice/core/audio"
)

// Client uses blocking PortAudio streams: one for capture, one for playback.
// SendAudio blocks for roughly the duration of the audio it writes.
type Client struct {
	bufferSize int

	input  *portaudio.Stream
	output *portaudio.Stream

	in  []int16
	out []int16

	leftoverAudio []byte
	outputMu      sync.Mutex

	captureCancel context.CancelFunc
	captureDone   chan struct{}
	captureMu     sync.Mutex
}

func NewClient(bufferSize int) (*Client, error) {
	if bufferSize <= 0 {
		return nil, fmt.Errorf("invalid buffer size %d", bufferSize)
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	c := &Client{
		bufferSize: bufferSize,
		in:         make([]int16, bufferSize),
		out:        make([]int16, bufferSize),
	}

	var err error
	if c.input, err = portaudio.OpenDefaultStream(1, 0, audio.DefaultSampleRate, bufferSize, c.in); err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open portaudio input stream: %w", err)
	}
	if c.output, err = portaudio.OpenDefaultStream(0, 1, audio.DefaultSampleRate, bufferSize, c.out); err != nil {
		c.input.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open portaudio output stream: %w", err)
	}
	if err := c.output.Start(); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to start portaudio output stream: %w", err)
	}

	return c, nil
}

func (c *Client) StartCapture(ctx context.Context, onAudio func(audio []byte)) error {
	c.captureMu.Lock()
	defer c.captureMu.Unlock()
	if c.captureCancel != nil {
		return nil
	}

	if err := c.input.Start(); err != nil {
		return fmt.Errorf("failed to start portaudio input stream: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.captureCancel = cancel
	c.captureDone = done

	go func() {
		defer close(done)
		for ctx.Err() == nil {
			if err := c.input.Read(); err != nil {
				logger.Warn("failed to read from portaudio stream", "error", err)
				continue
			}

			buffer := bytes.Buffer{}
			_ = binary.Write(&buffer, binary.LittleEndian, c.in)
			onAudio(buffer.Bytes())
		}
	}()

	return nil
}

func (c *Client) StopCapture() error {
	c.captureMu.Lock()
	defer c.captureMu.Unlock()
	if c.captureCancel == nil {
		return nil
	}

	c.captureCancel()
	<-c.captureDone
	c.captureCancel = nil
	c.captureDone = nil

	if err := c.input.Stop(); err != nil {
		return fmt.Errorf("failed to stop portaudio input stream: %w", err)
	}
	return nil
}

func (c *Client) Close() {
	_ = c.StopCapture()
	if c.input != nil {
		c.input.Close()
	}
	if c.output != nil {
		_ = c.output.Stop()
		c.output.Close()
	}
	portaudio.Terminate()
}

// SendAudio writes all whole buffers of audio to the device and keeps the
// remainder until more audio or a mark arrives.
func (c *Client) SendAudio(audio []byte) error {
	c.outputMu.Lock()
	defer c.outputMu.Unlock()

	bufferBytes := c.bufferSize * 2
	pending := append(c.leftoverAudio, audio...)
	for len(pending) >= bufferBytes {
		if err := c.write(pending[:bufferBytes]); err != nil {
			c.leftoverAudio = nil
			return err
		}
		pending = pending[bufferBytes:]
	}
	c.leftoverAudio = append([]byte(nil), pending...)

	return nil
}

func (c *Client) ClearBuffer() {
	c.outputMu.Lock()
	defer c.outputMu.Unlock()
	c.leftoverAudio = nil
}

// Mark flushes the remaining audio padded with silence; since writes block
// until the device accepts them, the mark is reported right after.
func (c *Client) Mark(mark string, callback func(string)) error {
	c.outputMu.Lock()
	if len(c.leftoverAudio) > 0 {
		padded := make([]byte, c.bufferSize*2)
		copy(padded, c.leftoverAudio)
		c.leftoverAudio = nil
		if err := c.write(padded); err != nil {
			c.outputMu.Unlock()
			return err
		}
	}
	c.outputMu.Unlock()

	go callback(mark)
	return nil
}

func (c *Client) write(chunk []byte) error {
	if err := binary.Read(bytes.NewReader(chunk), binary.LittleEndian, c.out); err != nil {
		return fmt.Errorf("failed to decode audio chunk: %w", err)
	}
	if err := c.output.Write(); err != nil {
		return fmt.Errorf("failed to write to portaudio stream: %w", err)
	}
	return nil
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{
		SampleRate: audio.DefaultSampleRate,
		Format:     audio.EncodingLinear16,
	}
}

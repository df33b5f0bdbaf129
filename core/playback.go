package orchestration

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-voice/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type PlaybackErrorKind string

const (
	PlaybackErrorNone            PlaybackErrorKind = ""
	PlaybackErrorSynthesisFailed PlaybackErrorKind = "synthesis_failed"
	PlaybackErrorPlaybackFailed  PlaybackErrorKind = "playback_failed"
)

// PlaybackResult describes how an utterance ended. Completed is false when it
// was superseded, stopped or failed.
type PlaybackResult struct {
	Completed bool
	Err       PlaybackErrorKind
}

const playbackChunkDuration = 100 * time.Millisecond

// PlaybackController speaks one utterance at a time. Starting a new utterance
// supersedes the current one.
type PlaybackController struct {
	synth             TextToSpeech
	output            AudioOutput
	onSpeakingChanged func(bool)

	mu       sync.Mutex
	current  *playback
	speaking bool
}

type playback struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	done   chan PlaybackResult
	once   sync.Once
}

func NewPlaybackController(synth TextToSpeech, output AudioOutput, onSpeakingChanged func(bool)) *PlaybackController {
	if onSpeakingChanged == nil {
		onSpeakingChanged = func(bool) {}
	}
	return &PlaybackController{
		synth:             synth,
		output:            output,
		onSpeakingChanged: onSpeakingChanged,
	}
}

// Speak synthesizes and plays text, returning once playback has ended. Empty
// text only stops whatever is playing.
func (c *PlaybackController) Speak(ctx context.Context, text string) PlaybackResult {
	ctx, span := tracer.Start(ctx, "speak", trace.WithAttributes(attribute.Int("speak.text_length", len(text))))
	defer span.End()

	pb := c.start(ctx, text)
	if pb == nil {
		return PlaybackResult{}
	}

	result := c.await(ctx, pb)
	span.SetAttributes(attribute.Bool("speak.completed", result.Completed))
	if result.Err != PlaybackErrorNone {
		span.SetStatus(codes.Error, string(result.Err))
	}
	return result
}

// Stop ends the current utterance, if any.
func (c *PlaybackController) Stop() {
	c.mu.Lock()
	pb := c.current
	c.mu.Unlock()

	if pb != nil {
		c.finish(pb, PlaybackResult{})
		c.output.ClearBuffer()
	}
}

func (c *PlaybackController) IsSpeaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speaking
}

func (c *PlaybackController) start(ctx context.Context, text string) *playback {
	if strings.TrimSpace(text) == "" || c.synth == nil || c.output == nil {
		c.Stop()
		return nil
	}

	playbackCtx, cancel := context.WithCancel(ctx)
	pb := &playback{
		id:     uuid.NewString(),
		ctx:    playbackCtx,
		cancel: cancel,
		done:   make(chan PlaybackResult, 1),
	}

	c.mu.Lock()
	previous := c.current
	c.current = pb
	speakingChanged := !c.speaking
	c.speaking = true
	c.mu.Unlock()

	if previous != nil {
		c.finish(previous, PlaybackResult{})
		c.output.ClearBuffer()
	}
	if speakingChanged {
		c.onSpeakingChanged(true)
	}

	go c.run(pb, text)
	return pb
}

func (c *PlaybackController) await(ctx context.Context, pb *playback) PlaybackResult {
	select {
	case result := <-pb.done:
		return result
	case <-ctx.Done():
		c.finish(pb, PlaybackResult{})
		c.output.ClearBuffer()
		return <-pb.done
	}
}

func (c *PlaybackController) run(pb *playback, text string) {
	encoding := c.output.EncodingInfo()
	audio, err := c.synth.Synthesize(pb.ctx, text, texttospeech.WithEncodingInfo(encoding))
	if pb.ctx.Err() != nil {
		c.finish(pb, PlaybackResult{})
		return
	}
	if err != nil || len(audio) == 0 {
		logger.Error("failed to synthesize speech", "error", err, "text_length", len(text))
		c.finish(pb, PlaybackResult{Err: PlaybackErrorSynthesisFailed})
		return
	}

	chunkSize := encoding.ChunkSize(playbackChunkDuration)
	if chunkSize <= 0 {
		chunkSize = len(audio)
	}
	for start := 0; start < len(audio); start += chunkSize {
		end := min(start+chunkSize, len(audio))

		c.mu.Lock()
		if c.current != pb {
			c.mu.Unlock()
			return
		}
		err := c.output.SendAudio(audio[start:end])
		c.mu.Unlock()

		if err != nil {
			logger.Error("failed to send audio to output", "error", err)
			c.finish(pb, PlaybackResult{Err: PlaybackErrorPlaybackFailed})
			c.output.ClearBuffer()
			return
		}
	}

	if err := c.output.Mark(pb.id, func(string) {
		c.finish(pb, PlaybackResult{Completed: true})
	}); err != nil {
		logger.Error("failed to mark end of playback", "error", err)
		c.finish(pb, PlaybackResult{Err: PlaybackErrorPlaybackFailed})
	}
}

// finish settles pb exactly once. Only the current playback flips the
// speaking flag back.
func (c *PlaybackController) finish(pb *playback, result PlaybackResult) {
	pb.once.Do(func() {
		pb.cancel()
		pb.done <- result

		c.mu.Lock()
		speakingChanged := false
		if c.current == pb {
			c.current = nil
			speakingChanged = c.speaking
			c.speaking = false
		}
		c.mu.Unlock()

		if speakingChanged {
			c.onSpeakingChanged(false)
		}
	})
}

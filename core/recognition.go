package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/koscakluka/ema-voice/core/speechtotext"
)

var ErrNoRecognizer = errors.New("no speech-to-text client configured")

const (
	DefaultLanguage        = "en-US"
	DefaultNoSpeechTimeout = 8 * time.Second

	stopGracePeriod = 3 * time.Second
)

type RecognitionConfig struct {
	// Continuous keeps a stream open across utterances; otherwise the stream
	// ends after the first final result.
	Continuous     bool
	InterimResults bool
	Language       string
	// NoSpeechTimeout ends a single-utterance stream that produced no result.
	// Zero disables it.
	NoSpeechTimeout time.Duration
}

func DefaultRecognitionConfig() RecognitionConfig {
	return RecognitionConfig{
		Continuous:      true,
		InterimResults:  true,
		Language:        DefaultLanguage,
		NoSpeechTimeout: DefaultNoSpeechTimeout,
	}
}

// RecognitionController owns the recognition stream and the capture feeding
// it. It reports everything that happens on the stream as speechtotext events
// and never decides on its own whether to restart.
type RecognitionController struct {
	recognizer SpeechToText
	capture    AudioInput
	onEvent    func(speechtotext.Event)

	mu                sync.Mutex
	config            RecognitionConfig
	running           bool
	runningContinuous bool
	generation        uint64
	gotResult         bool
	noSpeechTimer     *time.Timer
	stopTimer         *time.Timer
}

func NewRecognitionController(recognizer SpeechToText, capture AudioInput, config RecognitionConfig, onEvent func(speechtotext.Event)) *RecognitionController {
	if onEvent == nil {
		onEvent = func(speechtotext.Event) {}
	}
	return &RecognitionController{
		recognizer: recognizer,
		capture:    capture,
		config:     config,
		onEvent:    onEvent,
	}
}

// Start opens a recognition stream in the configured mode. Starting while a
// stream is running does nothing.
func (c *RecognitionController) Start(ctx context.Context) error {
	if c.recognizer == nil {
		return ErrNoRecognizer
	}

	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	c.generation++
	generation := c.generation
	config := c.config
	c.running = true
	c.runningContinuous = config.Continuous
	c.gotResult = false
	c.mu.Unlock()

	opts := []speechtotext.TranscriptionOption{
		speechtotext.WithContinuous(config.Continuous),
		speechtotext.WithInterimResults(config.InterimResults),
		speechtotext.WithLanguage(config.Language),
		speechtotext.WithResultCallback(func(transcript string, isFinal bool) {
			c.onResult(generation, transcript, isFinal)
		}),
		speechtotext.WithStreamEndedCallback(func() { c.onEnded(generation) }),
		speechtotext.WithErrorCallback(func(err error) { c.onError(generation, err) }),
	}
	if c.capture != nil {
		opts = append(opts, speechtotext.WithEncodingInfo(c.capture.EncodingInfo()))
	}

	if err := c.recognizer.Transcribe(ctx, opts...); err != nil {
		c.mu.Lock()
		if c.generation == generation {
			c.running = false
		}
		c.mu.Unlock()

		err = fmt.Errorf("failed to start recognition: %w", err)
		c.onEvent(speechtotext.Error{Kind: speechtotext.Classify(err), Err: err})
		return err
	}
	c.onEvent(speechtotext.Started{})

	if c.capture != nil {
		if err := c.capture.StartCapture(ctx, c.sendAudio); err != nil {
			c.Abort()
			err = errors.Join(speechtotext.ErrPermissionDenied, fmt.Errorf("failed to start audio capture: %w", err))
			c.onEvent(speechtotext.Error{Kind: speechtotext.ErrorKindPermissionDenied, Err: err})
			return err
		}
	}

	if !config.Continuous && config.NoSpeechTimeout > 0 {
		c.mu.Lock()
		if c.generation == generation {
			c.noSpeechTimer = time.AfterFunc(config.NoSpeechTimeout, func() { c.onNoSpeech(generation) })
		}
		c.mu.Unlock()
	}

	return nil
}

func (c *RecognitionController) sendAudio(audio []byte) {
	if err := c.recognizer.SendAudio(audio); err != nil {
		logger.Debug("dropped captured audio", "error", err)
	}
}

// Stop asks the stream to end gracefully and reports whether one was
// running. The Ended event follows once the stream has closed.
func (c *RecognitionController) Stop() bool {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return false
	}
	generation := c.generation
	c.stopTimersLocked()
	c.mu.Unlock()

	c.stopCapture()

	if err := c.recognizer.StopStream(); err != nil {
		logger.Warn("failed to stop recognition stream gracefully, closing it", "error", err)
		c.forceEnd(generation)
		return true
	}

	c.mu.Lock()
	if c.generation == generation && c.running {
		c.stopTimer = time.AfterFunc(stopGracePeriod, func() {
			logger.Warn("recognition stream did not close in time, closing it")
			c.forceEnd(generation)
		})
	}
	c.mu.Unlock()

	return true
}

// Abort tears the stream down without reporting anything for it.
func (c *RecognitionController) Abort() {
	c.mu.Lock()
	c.generation++
	wasRunning := c.running
	c.running = false
	c.stopTimersLocked()
	c.mu.Unlock()

	c.stopCapture()
	if wasRunning && c.recognizer != nil {
		if err := c.recognizer.Close(); err != nil {
			logger.Debug("failed to close aborted recognition stream", "error", err)
		}
	}
}

// SetContinuous selects the mode used by the next Start.
func (c *RecognitionController) SetContinuous(continuous bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.config.Continuous = continuous
}

// Status reports whether a stream is running and in which mode.
func (c *RecognitionController) Status() (running, continuous bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running, c.runningContinuous
}

func (c *RecognitionController) Running() bool {
	running, _ := c.Status()
	return running
}

func (c *RecognitionController) onResult(generation uint64, transcript string, isFinal bool) {
	c.mu.Lock()
	if c.generation != generation {
		c.mu.Unlock()
		return
	}
	c.gotResult = true
	if c.noSpeechTimer != nil {
		c.noSpeechTimer.Stop()
		c.noSpeechTimer = nil
	}
	c.mu.Unlock()

	c.onEvent(speechtotext.Result{Text: transcript, IsFinal: isFinal})
}

func (c *RecognitionController) onEnded(generation uint64) {
	c.mu.Lock()
	if c.generation != generation || !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.stopTimersLocked()
	c.mu.Unlock()

	c.stopCapture()
	c.onEvent(speechtotext.Ended{})
}

func (c *RecognitionController) onError(generation uint64, err error) {
	c.mu.Lock()
	current := c.generation == generation
	c.mu.Unlock()
	if !current {
		return
	}

	c.onEvent(speechtotext.Error{Kind: speechtotext.Classify(err), Err: err})
}

func (c *RecognitionController) onNoSpeech(generation uint64) {
	c.mu.Lock()
	if c.generation != generation || !c.running || c.gotResult {
		c.mu.Unlock()
		return
	}
	c.noSpeechTimer = nil
	c.mu.Unlock()

	c.onEvent(speechtotext.Error{Kind: speechtotext.ErrorKindNoSpeechTimeout, Err: speechtotext.ErrNoSpeech})
	c.Stop()
}

// forceEnd closes a stream that could not be stopped gracefully and reports
// it as ended.
func (c *RecognitionController) forceEnd(generation uint64) {
	c.mu.Lock()
	if c.generation != generation || !c.running {
		c.mu.Unlock()
		return
	}
	c.generation++
	c.running = false
	c.stopTimersLocked()
	c.mu.Unlock()

	c.stopCapture()
	if err := c.recognizer.Close(); err != nil {
		logger.Debug("failed to close recognition stream", "error", err)
	}
	c.onEvent(speechtotext.Ended{})
}

func (c *RecognitionController) stopCapture() {
	if c.capture == nil {
		return
	}
	if err := c.capture.StopCapture(); err != nil {
		logger.Warn("failed to stop audio capture", "error", err)
	}
}

func (c *RecognitionController) stopTimersLocked() {
	if c.noSpeechTimer != nil {
		c.noSpeechTimer.Stop()
		c.noSpeechTimer = nil
	}
	if c.stopTimer != nil {
		c.stopTimer.Stop()
		c.stopTimer = nil
	}
}

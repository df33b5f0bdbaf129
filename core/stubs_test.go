package orchestration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/koscakluka/ema-voice/core/audio"
	"github.com/koscakluka/ema-voice/core/events"
	"github.com/koscakluka/ema-voice/core/llms"
	"github.com/koscakluka/ema-voice/core/speechtotext"
	"github.com/koscakluka/ema-voice/core/texttospeech"
)

// stubRecognizer behaves like a streaming recognizer: single-utterance
// streams end right after their first final result and StopStream ends the
// stream immediately.
type stubRecognizer struct {
	mu            sync.Mutex
	active        bool
	options       speechtotext.TranscriptionOptions
	modes         []bool
	transcribeErr error
	stopErr       error
	stopCalls     int
	closeCalls    int
	audio         [][]byte
}

func (s *stubRecognizer) Transcribe(_ context.Context, opts ...speechtotext.TranscriptionOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.transcribeErr != nil {
		return s.transcribeErr
	}
	if s.active {
		return errors.New("stream already open")
	}

	options := speechtotext.TranscriptionOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	s.options = options
	s.active = true
	s.modes = append(s.modes, options.Continuous)
	return nil
}

func (s *stubRecognizer) SendAudio(audio []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return errors.New("no stream")
	}
	s.audio = append(s.audio, audio)
	return nil
}

func (s *stubRecognizer) StopStream() error {
	s.mu.Lock()
	s.stopCalls++
	if s.stopErr != nil {
		s.mu.Unlock()
		return s.stopErr
	}
	ended := s.endLocked()
	s.mu.Unlock()

	ended()
	return nil
}

func (s *stubRecognizer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCalls++
	s.active = false
	return nil
}

// say delivers a result on the open stream, if any.
func (s *stubRecognizer) say(text string, isFinal bool) bool {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return false
	}
	callback := s.options.ResultCallback
	ended := func() {}
	if isFinal && !s.options.Continuous {
		ended = s.endLocked()
	}
	s.mu.Unlock()

	if callback != nil {
		callback(text, isFinal)
	}
	ended()
	return true
}

func (s *stubRecognizer) end() {
	s.mu.Lock()
	ended := s.endLocked()
	s.mu.Unlock()
	ended()
}

func (s *stubRecognizer) fail(err error) {
	s.mu.Lock()
	callback := s.options.ErrorCallback
	s.mu.Unlock()
	if callback != nil {
		callback(err)
	}
}

func (s *stubRecognizer) endLocked() func() {
	if !s.active {
		return func() {}
	}
	s.active = false
	callback := s.options.StreamEndedCallback
	if callback == nil {
		return func() {}
	}
	return callback
}

func (s *stubRecognizer) setTranscribeErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcribeErr = err
}

func (s *stubRecognizer) streamModes() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bool(nil), s.modes...)
}

func (s *stubRecognizer) isActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

type stubCapture struct {
	mu         sync.Mutex
	startErr   error
	capturing  bool
	onAudio    func([]byte)
	startCalls int
	stopCalls  int
}

func (s *stubCapture) StartCapture(_ context.Context, onAudio func([]byte)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startCalls++
	if s.startErr != nil {
		return s.startErr
	}
	s.capturing = true
	s.onAudio = onAudio
	return nil
}

func (s *stubCapture) StopCapture() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopCalls++
	s.capturing = false
	return nil
}

func (s *stubCapture) EncodingInfo() audio.EncodingInfo {
	return audio.GetDefaultEncodingInfo()
}

func (s *stubCapture) feed(audio []byte) {
	s.mu.Lock()
	onAudio := s.onAudio
	capturing := s.capturing
	s.mu.Unlock()
	if capturing && onAudio != nil {
		onAudio(audio)
	}
}

type stubSynthesizer struct {
	mu    sync.Mutex
	texts []string
	err   error
	// audioSize defaults to half a second of audio at 16kHz linear16.
	audioSize int
}

func (s *stubSynthesizer) Synthesize(ctx context.Context, text string, opts ...texttospeech.SynthesisOption) ([]byte, error) {
	s.mu.Lock()
	s.texts = append(s.texts, text)
	err := s.err
	size := s.audioSize
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if size == 0 {
		size = 16000
	}
	return make([]byte, size), ctx.Err()
}

func (s *stubSynthesizer) spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

// stubOutput confirms marks right away unless holding is enabled; held
// marks are confirmed by release.
type stubOutput struct {
	mu        sync.Mutex
	sent      int
	sendErr   error
	markErr   error
	clears    int
	holding   bool
	heldMarks []func()
	markCalls int
}

func (s *stubOutput) SendAudio(audio []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent += len(audio)
	return nil
}

func (s *stubOutput) ClearBuffer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clears++
}

func (s *stubOutput) Mark(mark string, callback func(string)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markCalls++
	if s.markErr != nil {
		return s.markErr
	}
	if s.holding {
		s.heldMarks = append(s.heldMarks, func() { callback(mark) })
		return nil
	}
	go callback(mark)
	return nil
}

func (s *stubOutput) EncodingInfo() audio.EncodingInfo {
	return audio.GetDefaultEncodingInfo()
}

func (s *stubOutput) hold(holding bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holding = holding
}

func (s *stubOutput) release() {
	s.mu.Lock()
	held := s.heldMarks
	s.heldMarks = nil
	s.mu.Unlock()
	for _, confirm := range held {
		confirm()
	}
}

func (s *stubOutput) heldCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.heldMarks)
}

func (s *stubOutput) clearCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clears
}

type stubLLM struct {
	mu       sync.Mutex
	complete func(ctx context.Context, messages []llms.Message) (string, error)
	calls    [][]llms.Message
	options  []llms.CompletionOptions
}

func (s *stubLLM) Complete(ctx context.Context, messages []llms.Message, opts ...llms.CompletionOption) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, messages)
	s.options = append(s.options, llms.NewCompletionOptions(llms.CompletionOptions{}, opts...))
	complete := s.complete
	s.mu.Unlock()

	if complete == nil {
		return "", errors.New("no reply configured")
	}
	return complete(ctx, messages)
}

func (s *stubLLM) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func replyWith(reply string) func(context.Context, []llms.Message) (string, error) {
	return func(context.Context, []llms.Message) (string, error) { return reply, nil }
}

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) record(event events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) ofKind(kind events.Kind) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	matched := []events.Event{}
	for _, event := range r.events {
		if event.Kind() == kind {
			matched = append(matched, event)
		}
	}
	return matched
}

func eventually(t *testing.T, condition func() bool, format string, args ...any) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for !condition() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out: "+format, args...)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func never(t *testing.T, condition func() bool, wait time.Duration, format string, args ...any) {
	t.Helper()

	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		if condition() {
			t.Fatalf(format, args...)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

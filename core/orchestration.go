package orchestration

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-voice/core/events"
	"github.com/koscakluka/ema-voice/core/llms"
	"github.com/koscakluka/ema-voice/core/phrases"
	"github.com/koscakluka/ema-voice/core/speechtotext"
)

type orchestratorConfig struct {
	recognition       RecognitionConfig
	restartDelay      time.Duration
	greeting          string
	farewell          string
	completionTimeout time.Duration
	completionOptions []llms.CompletionOption
}

// Orchestrator runs a wake phrase driven voice session: it waits for the wake
// phrase, greets, answers questions one utterance at a time and says goodbye
// when asked to.
type Orchestrator struct {
	speechToText SpeechToText
	audioInput   AudioInput
	textToSpeech TextToSpeech
	audioOutput  AudioOutput
	llm          LLM

	matcher *phrases.Matcher
	config  orchestratorConfig

	recognition *RecognitionController
	playback    *PlaybackController
	completion  *CompletionClient

	runtime     *conversationRuntime
	emit        eventEmitter
	baseContext context.Context
	closeOnce   sync.Once

	// Owned by the loop goroutine.
	session      Session
	epoch        uint64
	expectingEnd bool
	restartTimer *time.Timer
	turnCtx      context.Context
	turnCancel   context.CancelFunc

	snapshotMu sync.RWMutex
	snapshot   Session
}

func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		matcher: phrases.NewMatcher(),
		config: orchestratorConfig{
			recognition:       DefaultRecognitionConfig(),
			restartDelay:      DefaultRestartDelay,
			greeting:          DefaultGreeting,
			farewell:          DefaultFarewell,
			completionTimeout: DefaultCompletionTimeout,
			completionOptions: []llms.CompletionOption{llms.WithInstructions(DefaultInstructions)},
		},
		runtime:     newConversationRuntime(),
		emit:        noopEventEmitter,
		baseContext: context.Background(),
		session: Session{
			ID:    uuid.NewString(),
			State: StateIdle,
		},
	}
	o.turnCtx, o.turnCancel = context.WithCancel(o.baseContext)

	for _, opt := range opts {
		opt(o)
	}

	o.recognition = NewRecognitionController(o.speechToText, o.audioInput, o.config.recognition,
		func(event speechtotext.Event) { o.runtime.post(recognitionEvent{event: event}) })
	o.playback = NewPlaybackController(o.textToSpeech, o.audioOutput,
		func(speaking bool) { o.runtime.post(speakingChanged{speaking: speaking}) })
	o.completion = NewCompletionClient(o.llm, o.config.completionTimeout, o.config.completionOptions...)
	o.publishSnapshot()

	return o
}

// Orchestrate starts listening for the wake phrase and returns. The session
// keeps running until ctx is cancelled or Close is called.
//
// Only the first call has any effect.
func (o *Orchestrator) Orchestrate(ctx context.Context, opts ...OrchestrateOption) {
	if o.runtime.isClosed() {
		logger.Warn("orchestrator already closed, skipping Orchestrate")
		return
	}
	if o.runtime.started.Load() {
		logger.Warn("orchestrator already running, skipping Orchestrate")
		return
	}

	orchestrateOptions := OrchestrateOptions{}
	for _, opt := range opts {
		opt(&orchestrateOptions)
	}
	emitter := newCallbackEventEmitter(orchestrateOptions)
	o.emit = func(event events.Event) {
		o.publishSnapshot()
		emitter(event)
	}
	o.baseContext = ctx
	o.turnCancel()
	o.turnCtx, o.turnCancel = context.WithCancel(ctx)

	if started := o.runtime.start(o.handle); !started {
		return
	}
	hookDone := withContextCancelHook(ctx, o.Close)
	go func() {
		o.runtime.waitUntilEnded()
		close(hookDone)
	}()
	o.runtime.post(ensureListeningCommand{})
}

// Close stops the session loop, recognition and playback. It is safe to call
// more than once.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		o.runtime.end()
		o.runtime.waitUntilEnded()

		o.cancelRestart()
		o.turnCancel()
		o.recognition.Abort()
		o.playback.Stop()
		if o.speechToText != nil {
			if err := o.speechToText.Close(); err != nil {
				logger.Warn("failed to close speech-to-text client", "error", err)
			}
		}
	})
}

// Activate starts a conversation as if the wake phrase had been heard.
func (o *Orchestrator) Activate() { o.runtime.post(activateCommand{}) }

// Deactivate ends the conversation as if a goodbye phrase had been heard.
func (o *Orchestrator) Deactivate() { o.runtime.post(deactivateCommand{}) }

// RetryPermission resumes listening after access was denied.
func (o *Orchestrator) RetryPermission() { o.runtime.post(retryPermissionCommand{}) }

// StopSpeaking cuts the current utterance short.
func (o *Orchestrator) StopSpeaking() { o.runtime.post(stopSpeakingCommand{}) }

// SendAudio feeds audio to the recognizer directly, for setups without an
// audio input.
func (o *Orchestrator) SendAudio(audio []byte) error {
	if o.speechToText == nil {
		return ErrNoRecognizer
	}
	return o.speechToText.SendAudio(audio)
}

// Snapshot returns a copy of the session as of the last handled event.
func (o *Orchestrator) Snapshot() Session {
	o.snapshotMu.RLock()
	defer o.snapshotMu.RUnlock()
	return o.snapshot.clone()
}

func (o *Orchestrator) State() State {
	o.snapshotMu.RLock()
	defer o.snapshotMu.RUnlock()
	return o.snapshot.State
}

func (o *Orchestrator) IsSpeaking() bool { return o.playback.IsSpeaking() }

// Matcher returns the phrase matcher; phrases can be changed while running.
func (o *Orchestrator) Matcher() *phrases.Matcher { return o.matcher }

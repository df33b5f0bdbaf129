package orchestration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-voice/core/events"
	"github.com/koscakluka/ema-voice/core/speechtotext"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type playbackPurpose int

const (
	purposeGreeting playbackPurpose = iota
	purposeReply
	purposeFarewell
)

func (p playbackPurpose) String() string {
	switch p {
	case purposeGreeting:
		return "greeting"
	case purposeReply:
		return "reply"
	case purposeFarewell:
		return "farewell"
	}
	return "unknown"
}

type recognitionEvent struct {
	event speechtotext.Event
}

type completionFinished struct {
	epoch  uint64
	result CompletionResult
}

type playbackFinished struct {
	epoch   uint64
	purpose playbackPurpose
	text    string
	result  PlaybackResult
}

type speakingChanged struct {
	speaking bool
}

type (
	restartRecognition     struct{}
	ensureListeningCommand struct{}
	activateCommand        struct{}
	deactivateCommand      struct{}
	retryPermissionCommand struct{}
	stopSpeakingCommand    struct{}
)

// handle runs on the loop goroutine; it is the only place the session is
// changed.
func (o *Orchestrator) handle(item queuedEvent) {
	switch e := item.event.(type) {
	case recognitionEvent:
		o.handleRecognitionEvent(e.event)
	case completionFinished:
		o.handleCompletionFinished(e)
	case playbackFinished:
		o.handlePlaybackFinished(e)
	case speakingChanged:
		o.emit(events.NewAssistantSpeakingChanged(o.session.ID, e.speaking))
	case restartRecognition:
		o.handleRestart()
	case ensureListeningCommand:
		o.ensureListening()
	case activateCommand:
		o.activate()
	case deactivateCommand:
		if o.session.State != StateIdle {
			o.endConversation()
		}
	case retryPermissionCommand:
		o.retryPermission()
	case stopSpeakingCommand:
		o.playback.Stop()
	default:
		logger.Warn("ignoring unknown session event", "type", fmt.Sprintf("%T", item.event))
	}

	o.publishSnapshot()
}

func (o *Orchestrator) handleRecognitionEvent(event speechtotext.Event) {
	_, span := tracer.Start(o.baseContext, "handle recognition event",
		trace.WithAttributes(
			attribute.String("recognition.event", fmt.Sprintf("%T", event)),
			attribute.String("session.state", string(o.session.State)),
		))
	defer span.End()

	switch e := event.(type) {
	case speechtotext.Started:
		_, continuous := o.recognition.Status()
		o.emit(events.NewRecognitionStarted(o.session.ID, continuous))

	case speechtotext.Ended:
		o.emit(events.NewRecognitionEnded(o.session.ID))
		if o.expectingEnd {
			o.expectingEnd = false
			o.ensureListening()
			return
		}
		if o.wantsRecognition() {
			o.scheduleRestart()
		}

	case speechtotext.Result:
		o.handleResult(e.Text, e.IsFinal)

	case speechtotext.Error:
		span.RecordError(e)
		span.SetStatus(codes.Error, string(e.Kind))
		o.emit(events.NewRecognitionFailed(o.session.ID, string(e.Kind), e.Err))
		if e.Kind.IsTerminal() {
			o.deny(e.Err)
			return
		}
		if e.Kind != speechtotext.ErrorKindNoSpeechTimeout && e.Kind != speechtotext.ErrorKindAborted {
			logger.Warn("speech recognition failed", "kind", string(e.Kind), "error", e.Err)
		}
		if !o.recognition.Running() && o.wantsRecognition() {
			o.scheduleRestart()
		}
	}
}

func (o *Orchestrator) handleResult(text string, isFinal bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	if o.isMuted() {
		o.emit(events.NewUserTranscriptDiscarded(o.session.ID, text, isFinal))
		return
	}

	if !isFinal {
		o.session.PendingTranscript = text
		o.emit(events.NewUserTranscriptInterimUpdated(o.session.ID, text))
		return
	}

	o.session.PendingTranscript = ""
	o.emit(events.NewUserTranscriptFinal(o.session.ID, text))

	switch o.session.State {
	case StateIdle:
		if o.matcher.DetectWake(text) {
			o.emit(events.NewWakePhraseDetected(o.session.ID, text))
			o.activate()
		}
	case StateActive:
		if o.matcher.DetectGoodbye(text) {
			o.emit(events.NewGoodbyePhraseDetected(o.session.ID, text))
			o.endConversation()
			return
		}
		o.beginTurn(text)
	}
}

// isMuted reports whether recognized speech has to be ignored: while the
// assistant speaks and while a turn is in progress.
func (o *Orchestrator) isMuted() bool {
	if o.playback.IsSpeaking() {
		return true
	}
	switch o.session.State {
	case StateThinking, StateSpeaking:
		return true
	case StateActive:
		return !o.session.Listening
	}
	return false
}

func (o *Orchestrator) wantsRecognition() bool {
	if o.session.PermissionDenied {
		return false
	}
	switch o.session.State {
	case StateIdle:
		return true
	case StateActive:
		return o.session.Listening
	}
	return false
}

func (o *Orchestrator) activate() {
	if o.session.State != StateIdle || o.session.PermissionDenied {
		return
	}

	o.setState(StateActive)
	o.session.Listening = false
	o.recognition.SetContinuous(false)
	o.stopForSwitch()
	o.speakAsync(purposeGreeting, o.config.greeting)
}

func (o *Orchestrator) beginTurn(transcript string) {
	o.session.History = append(o.session.History, ConversationMessage{
		Role:      RoleUser,
		Content:   transcript,
		CreatedAt: time.Now(),
	})
	o.setState(StateThinking)
	turnsCounter.Add(o.baseContext, 1)

	epoch := o.epoch
	history := o.session.clone().History
	turnCtx := o.turnCtx
	go func() {
		result := o.completion.Complete(turnCtx, history)
		o.runtime.post(completionFinished{epoch: epoch, result: result})
	}()
}

func (o *Orchestrator) handleCompletionFinished(e completionFinished) {
	if e.epoch != o.epoch || o.session.State != StateThinking {
		return
	}

	o.session.History = append(o.session.History, ConversationMessage{
		Role:      RoleAssistant,
		Content:   e.result.Reply,
		CreatedAt: time.Now(),
	})
	o.emit(events.NewAssistantResponseFinal(o.session.ID, e.result.Reply, e.result.Fallback))
	o.setState(StateSpeaking)
	o.speakAsync(purposeReply, e.result.Reply)
}

// speakAsync starts playback right away, so the assistant counts as speaking
// from this point, and reports the outcome back to the loop.
func (o *Orchestrator) speakAsync(purpose playbackPurpose, text string) {
	epoch := o.epoch
	text = strings.TrimSpace(text)
	if text == "" {
		o.runtime.post(playbackFinished{epoch: epoch, purpose: purpose})
		return
	}

	o.emit(events.NewAssistantPlaybackStarted(o.session.ID, text))
	ctx, span := tracer.Start(o.baseContext, "play utterance",
		trace.WithAttributes(attribute.String("playback.purpose", purpose.String())))
	pb := o.playback.start(ctx, text)
	if pb == nil {
		span.End()
		o.runtime.post(playbackFinished{epoch: epoch, purpose: purpose, text: text})
		return
	}

	go func() {
		defer span.End()
		result := o.playback.await(ctx, pb)
		span.SetAttributes(attribute.Bool("playback.completed", result.Completed))
		if result.Err != PlaybackErrorNone {
			span.SetStatus(codes.Error, string(result.Err))
		}
		o.runtime.post(playbackFinished{epoch: epoch, purpose: purpose, text: text, result: result})
	}()
}

func (o *Orchestrator) handlePlaybackFinished(e playbackFinished) {
	if e.text != "" {
		o.emit(events.NewAssistantPlaybackEnded(o.session.ID, e.text, e.result.Completed, string(e.result.Err)))
	}
	if e.result.Err == PlaybackErrorSynthesisFailed {
		synthesisFailureCounter.Add(o.baseContext, 1)
	}
	if e.epoch != o.epoch {
		return
	}

	switch e.purpose {
	case purposeGreeting:
		if o.session.State == StateActive && !o.session.Listening {
			o.session.Listening = true
			o.ensureListening()
		}
	case purposeReply:
		if o.session.State == StateSpeaking {
			o.setState(StateActive)
			o.session.Listening = true
			o.ensureListening()
		}
	case purposeFarewell:
		o.ensureListening()
	}
}

// ensureListening brings recognition in line with the session: continuous
// while idle, one utterance at a time while active.
func (o *Orchestrator) ensureListening() {
	if !o.wantsRecognition() {
		return
	}

	wantContinuous := o.session.State == StateIdle
	running, continuous := o.recognition.Status()
	if running {
		if continuous != wantContinuous {
			o.recognition.SetContinuous(wantContinuous)
			o.stopForSwitch()
		}
		return
	}
	if o.expectingEnd {
		return
	}

	o.cancelRestart()
	o.recognition.SetContinuous(wantContinuous)
	if err := o.recognition.Start(o.baseContext); err != nil {
		if errors.Is(err, ErrNoRecognizer) {
			logger.Warn("cannot listen", "error", err)
			return
		}
		logger.Debug("failed to start recognition", "error", err)
	}
}

// stopForSwitch stops the running stream so ensureListening can restart it
// in another mode once it has ended.
func (o *Orchestrator) stopForSwitch() {
	o.cancelRestart()
	if o.recognition.Stop() {
		o.expectingEnd = true
	}
}

func (o *Orchestrator) scheduleRestart() {
	if o.restartTimer != nil {
		return
	}
	o.restartTimer = time.AfterFunc(o.config.restartDelay, func() {
		o.runtime.post(restartRecognition{})
	})
}

func (o *Orchestrator) cancelRestart() {
	if o.restartTimer != nil {
		o.restartTimer.Stop()
		o.restartTimer = nil
	}
}

func (o *Orchestrator) handleRestart() {
	if o.restartTimer == nil {
		return
	}
	o.restartTimer = nil
	if !o.wantsRecognition() || o.recognition.Running() {
		return
	}
	recognitionRestartsCounter.Add(o.baseContext, 1)
	o.ensureListening()
}

func (o *Orchestrator) deny(err error) {
	logger.Error("speech recognition permission denied", "error", err)

	o.cancelRestart()
	o.resetSession()
	o.session.PermissionDenied = true
	o.expectingEnd = false
	o.recognition.Abort()
	o.playback.Stop()
	o.emit(events.NewPermissionDenied(o.session.ID, permissionDeniedMessage, err))
}

func (o *Orchestrator) retryPermission() {
	if !o.session.PermissionDenied {
		return
	}
	o.session.PermissionDenied = false
	o.ensureListening()
}

func (o *Orchestrator) endConversation() {
	o.playback.Stop()
	o.resetSession()
	o.recognition.SetContinuous(true)
	o.stopForSwitch()
	o.speakAsync(purposeFarewell, o.config.farewell)
}

// resetSession starts a new session: fresh id, empty history, idle. Results
// of work started for the previous session are dropped.
func (o *Orchestrator) resetSession() {
	previousID := o.session.ID

	o.epoch++
	o.turnCancel()
	o.turnCtx, o.turnCancel = context.WithCancel(o.baseContext)

	o.session.ID = uuid.NewString()
	o.session.History = nil
	o.session.PendingTranscript = ""
	o.session.Listening = false
	o.setState(StateIdle)
	o.emit(events.NewSessionReset(o.session.ID, previousID))
}

func (o *Orchestrator) setState(state State) {
	if o.session.State == state {
		return
	}
	from := o.session.State
	o.session.State = state
	logger.Debug("session state changed", "from", string(from), "to", string(state))
	o.emit(events.NewSessionStateChanged(o.session.ID, string(from), string(state)))
}

func (o *Orchestrator) publishSnapshot() {
	snapshot := o.session.clone()
	o.snapshotMu.Lock()
	o.snapshot = snapshot
	o.snapshotMu.Unlock()
}

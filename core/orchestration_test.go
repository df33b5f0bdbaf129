package orchestration

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/koscakluka/ema-voice/core/events"
	"github.com/koscakluka/ema-voice/core/llms"
	"github.com/koscakluka/ema-voice/core/speechtotext"
)

type testSession struct {
	orchestrator *Orchestrator
	recognizer   *stubRecognizer
	synth        *stubSynthesizer
	output       *stubOutput
	llm          *stubLLM
	recorded     *eventRecorder
}

func startTestSession(t *testing.T, llm *stubLLM, opts ...OrchestratorOption) *testSession {
	t.Helper()

	s := &testSession{
		recognizer: &stubRecognizer{},
		synth:      &stubSynthesizer{},
		output:     &stubOutput{},
		llm:        llm,
		recorded:   &eventRecorder{},
	}
	recognition := DefaultRecognitionConfig()
	recognition.NoSpeechTimeout = 0

	opts = append([]OrchestratorOption{
		WithSpeechToTextClient(s.recognizer),
		WithTextToSpeechClient(s.synth),
		WithAudioOutput(s.output),
		WithLLM(llm),
		WithRestartDelay(10 * time.Millisecond),
		WithRecognitionConfig(recognition),
	}, opts...)
	s.orchestrator = NewOrchestrator(opts...)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		s.orchestrator.Close()
	})
	s.orchestrator.Orchestrate(ctx, WithEventCallback(s.recorded.record))

	return s
}

// waitForStream waits until the nth recognition stream has been opened and
// checks its mode.
func (s *testSession) waitForStream(t *testing.T, n int, continuous bool) {
	t.Helper()

	eventually(t, func() bool {
		return len(s.recognizer.streamModes()) >= n && s.recognizer.isActive()
	}, "waiting for recognition stream %d", n)
	if modes := s.recognizer.streamModes(); modes[n-1] != continuous {
		t.Fatalf("stream %d: expected continuous=%t, got modes %v", n, continuous, modes)
	}
}

func (s *testSession) waitForState(t *testing.T, state State) {
	t.Helper()
	eventually(t, func() bool { return s.orchestrator.State() == state }, "waiting for state %s, have %s", state, s.orchestrator.State())
}

func (s *testSession) activate(t *testing.T) {
	t.Helper()

	s.waitForStream(t, 1, true)
	s.recognizer.say("hey marco", true)
	s.waitForStream(t, 2, false)
	s.waitForState(t, StateActive)
}

func TestFullConversation(t *testing.T) {
	s := startTestSession(t, &stubLLM{complete: replyWith("It is noon.")})

	s.waitForStream(t, 1, true)
	initialID := s.orchestrator.Snapshot().ID

	s.recognizer.say("hey", false)
	s.recognizer.say("hey marco", true)
	s.waitForStream(t, 2, false)

	if spoken := s.synth.spoken(); len(spoken) != 1 || spoken[0] != DefaultGreeting {
		t.Fatalf("expected greeting to be spoken, got %v", spoken)
	}
	if len(s.recorded.ofKind(events.KindWakePhraseDetected)) != 1 {
		t.Fatalf("expected one wake phrase event")
	}

	s.recognizer.say("what time is it", true)
	s.waitForStream(t, 3, false)
	s.waitForState(t, StateActive)

	snapshot := s.orchestrator.Snapshot()
	if len(snapshot.History) != 2 ||
		snapshot.History[0].Role != RoleUser || snapshot.History[0].Content != "what time is it" ||
		snapshot.History[1].Role != RoleAssistant || snapshot.History[1].Content != "It is noon." {
		t.Fatalf("unexpected history %+v", snapshot.History)
	}
	if spoken := s.synth.spoken(); spoken[len(spoken)-1] != "It is noon." {
		t.Fatalf("expected reply to be spoken, got %v", spoken)
	}

	s.llm.mu.Lock()
	if len(s.llm.calls) != 1 || len(s.llm.calls[0]) != 1 || s.llm.calls[0][0].Role != llms.MessageRoleUser {
		s.llm.mu.Unlock()
		t.Fatalf("expected the user question to be sent for completion, got %+v", s.llm.calls)
	}
	if s.llm.options[0].Instructions != DefaultInstructions {
		s.llm.mu.Unlock()
		t.Fatalf("expected default instructions, got %q", s.llm.options[0].Instructions)
	}
	s.llm.mu.Unlock()

	s.recognizer.say("okay goodbye", true)
	s.waitForStream(t, 4, true)
	s.waitForState(t, StateIdle)

	snapshot = s.orchestrator.Snapshot()
	if len(snapshot.History) != 0 {
		t.Fatalf("expected history to be cleared, got %+v", snapshot.History)
	}
	if snapshot.ID == initialID {
		t.Fatalf("expected a new session id after goodbye")
	}
	eventually(t, func() bool { return slices.Contains(s.synth.spoken(), DefaultFarewell) }, "waiting for farewell")
	if len(s.recorded.ofKind(events.KindGoodbyePhraseDetected)) != 1 {
		t.Fatalf("expected one goodbye phrase event")
	}
	if len(s.recorded.ofKind(events.KindSessionReset)) != 1 {
		t.Fatalf("expected one session reset event")
	}

	wantStates := []string{"idle->active", "active->thinking", "thinking->speaking", "speaking->active", "active->idle"}
	gotStates := []string{}
	for _, event := range s.recorded.ofKind(events.KindSessionStateChanged) {
		changed := event.(events.SessionStateChanged)
		gotStates = append(gotStates, changed.From+"->"+changed.To)
	}
	if !slices.Equal(gotStates, wantStates) {
		t.Fatalf("expected transitions %v, got %v", wantStates, gotStates)
	}
}

func TestSnapshotIsCurrentWhenEventsArrive(t *testing.T) {
	recognizer := &stubRecognizer{}
	recognition := DefaultRecognitionConfig()
	recognition.NoSpeechTimeout = 0
	orchestrator := NewOrchestrator(
		WithSpeechToTextClient(recognizer),
		WithTextToSpeechClient(&stubSynthesizer{}),
		WithAudioOutput(&stubOutput{}),
		WithLLM(&stubLLM{complete: replyWith("unused")}),
		WithRecognitionConfig(recognition),
	)

	var mu sync.Mutex
	mismatches := []string{}
	checked := 0
	check := func(event events.Event) {
		snapshot := orchestrator.Snapshot()
		mu.Lock()
		defer mu.Unlock()
		switch e := event.(type) {
		case events.SessionStateChanged:
			checked++
			if string(snapshot.State) != e.To {
				mismatches = append(mismatches, "state "+string(snapshot.State)+" for change to "+e.To)
			}
		case events.UserTranscriptInterimUpdated:
			checked++
			if snapshot.PendingTranscript != e.Transcript {
				mismatches = append(mismatches, "pending "+snapshot.PendingTranscript+" for interim "+e.Transcript)
			}
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		orchestrator.Close()
	})
	orchestrator.Orchestrate(ctx, WithEventCallback(check))

	eventually(t, func() bool { return recognizer.isActive() }, "waiting for recognition")
	recognizer.say("hey mar", false)
	recognizer.say("hey marco", true)
	eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return checked >= 2
	}, "waiting for interim and state events")

	mu.Lock()
	defer mu.Unlock()
	if len(mismatches) > 0 {
		t.Fatalf("expected snapshots to match events, got %v", mismatches)
	}
}

func TestIdleOnlyLeavesOnWakePhrase(t *testing.T) {
	s := startTestSession(t, &stubLLM{complete: replyWith("unused")})
	s.waitForStream(t, 1, true)

	s.recognizer.say("what is the weather like", true)
	s.recognizer.say("goodbye", true)

	eventually(t, func() bool { return len(s.recorded.ofKind(events.KindUserTranscriptFinal)) == 2 }, "waiting for transcripts")

	if state := s.orchestrator.State(); state != StateIdle {
		t.Fatalf("expected to stay idle, got %s", state)
	}
	if s.llm.callCount() != 0 {
		t.Fatalf("expected no completion while idle")
	}
	if spoken := s.synth.spoken(); len(spoken) != 0 {
		t.Fatalf("expected nothing to be spoken, got %v", spoken)
	}
	if len(s.recognizer.streamModes()) != 1 {
		t.Fatalf("expected the continuous stream to keep running")
	}
}

func TestInterimResultsOnlyUpdatePendingTranscript(t *testing.T) {
	s := startTestSession(t, &stubLLM{})
	s.waitForStream(t, 1, true)

	s.recognizer.say("hey mar", false)
	eventually(t, func() bool { return s.orchestrator.Snapshot().PendingTranscript == "hey mar" }, "waiting for pending transcript")

	if state := s.orchestrator.State(); state != StateIdle {
		t.Fatalf("expected interim wake phrase not to activate, got %s", state)
	}
}

func TestSpeechDuringFarewellIsDiscarded(t *testing.T) {
	s := startTestSession(t, &stubLLM{complete: replyWith("unused")})
	s.activate(t)

	s.output.hold(true)
	s.recognizer.say("bye", true)
	s.waitForStream(t, 3, true)
	if !s.orchestrator.IsSpeaking() {
		t.Fatalf("expected farewell to be playing")
	}

	s.recognizer.say("hey marco", true)
	eventually(t, func() bool { return len(s.recorded.ofKind(events.KindUserTranscriptDiscarded)) == 1 }, "waiting for discarded transcript")

	if state := s.orchestrator.State(); state != StateIdle {
		t.Fatalf("expected wake phrase heard over the farewell to be ignored, got %s", state)
	}
	if len(s.orchestrator.Snapshot().History) != 0 {
		t.Fatalf("expected no history entries from muted speech")
	}
}

func TestResultsWhileBusyAddNoHistory(t *testing.T) {
	o := NewOrchestrator()
	defer o.Close()

	for _, state := range []State{StateThinking, StateSpeaking} {
		o.session.State = state
		o.session.Listening = true
		o.handleResult("goodbye", true)
		o.handleResult("tell me a joke", true)

		if len(o.session.History) != 0 {
			t.Fatalf("%s: expected muted results not to reach the history, got %+v", state, o.session.History)
		}
		if o.session.State != state {
			t.Fatalf("%s: expected state to be kept, got %s", state, o.session.State)
		}
	}
}

func TestCompletionFailureSpeaksFallback(t *testing.T) {
	s := startTestSession(t, &stubLLM{complete: func(context.Context, []llms.Message) (string, error) {
		return "", errors.New("service unavailable")
	}})
	s.activate(t)

	s.recognizer.say("what time is it", true)
	s.waitForStream(t, 3, false)
	s.waitForState(t, StateActive)

	responses := s.recorded.ofKind(events.KindAssistantResponseFinal)
	if len(responses) != 1 {
		t.Fatalf("expected one response, got %d", len(responses))
	}
	if response := responses[0].(events.AssistantResponseFinal); response.Response != FallbackReply || !response.Fallback {
		t.Fatalf("expected fallback response, got %+v", response)
	}
	if spoken := s.synth.spoken(); spoken[len(spoken)-1] != FallbackReply {
		t.Fatalf("expected fallback to be spoken, got %v", spoken)
	}
	if history := s.orchestrator.Snapshot().History; len(history) != 2 || history[1].Content != FallbackReply {
		t.Fatalf("expected fallback in history, got %+v", history)
	}
}

func TestSynthesisFailureStillReturnsToListening(t *testing.T) {
	s := startTestSession(t, &stubLLM{complete: replyWith("It is noon.")})
	s.activate(t)

	s.synth.mu.Lock()
	s.synth.err = errors.New("voice unavailable")
	s.synth.mu.Unlock()

	s.recognizer.say("what time is it", true)
	s.waitForStream(t, 3, false)
	s.waitForState(t, StateActive)

	ended := s.recorded.ofKind(events.KindAssistantPlaybackEnded)
	last := ended[len(ended)-1].(events.AssistantPlaybackEnded)
	if last.Completed || last.Error != string(PlaybackErrorSynthesisFailed) {
		t.Fatalf("expected synthesis failure to be reported, got %+v", last)
	}
}

func TestStopSpeakingReturnsToListening(t *testing.T) {
	s := startTestSession(t, &stubLLM{complete: replyWith("A very long answer.")})
	s.activate(t)

	s.output.hold(true)
	s.recognizer.say("tell me a story", true)
	s.waitForState(t, StateSpeaking)

	s.orchestrator.StopSpeaking()
	s.waitForStream(t, 3, false)
	s.waitForState(t, StateActive)

	if s.orchestrator.IsSpeaking() {
		t.Fatalf("expected playback to be stopped")
	}
}

func TestDeactivateResetsSession(t *testing.T) {
	s := startTestSession(t, &stubLLM{complete: replyWith("It is noon.")})
	s.activate(t)

	s.recognizer.say("what time is it", true)
	s.waitForStream(t, 3, false)
	s.waitForState(t, StateActive)
	previousID := s.orchestrator.Snapshot().ID

	s.orchestrator.Deactivate()
	s.waitForStream(t, 4, true)
	s.waitForState(t, StateIdle)

	snapshot := s.orchestrator.Snapshot()
	if len(snapshot.History) != 0 || snapshot.ID == previousID {
		t.Fatalf("expected a fresh session, got %+v", snapshot)
	}
	eventually(t, func() bool { return slices.Contains(s.synth.spoken(), DefaultFarewell) }, "waiting for farewell")
}

func TestManualActivation(t *testing.T) {
	s := startTestSession(t, &stubLLM{})
	s.waitForStream(t, 1, true)

	s.orchestrator.Activate()
	s.waitForStream(t, 2, false)
	s.waitForState(t, StateActive)

	if len(s.recorded.ofKind(events.KindWakePhraseDetected)) != 0 {
		t.Fatalf("expected manual activation not to report a wake phrase")
	}
}

func TestSpontaneousEndRestartsRecognition(t *testing.T) {
	s := startTestSession(t, &stubLLM{})
	s.waitForStream(t, 1, true)

	s.recognizer.end()
	s.waitForStream(t, 2, true)

	s.recognizer.fail(speechtotext.ErrNetwork)
	s.recognizer.end()
	s.waitForStream(t, 3, true)

	if len(s.recorded.ofKind(events.KindRecognitionFailed)) != 1 {
		t.Fatalf("expected the network error to be reported")
	}
	if state := s.orchestrator.State(); state != StateIdle {
		t.Fatalf("expected to stay idle, got %s", state)
	}
}

func TestPermissionDeniedStopsListeningUntilRetry(t *testing.T) {
	recognizer := &stubRecognizer{transcribeErr: speechtotext.ErrPermissionDenied}
	denied := make(chan string, 1)
	o := NewOrchestrator(
		WithSpeechToTextClient(recognizer),
		WithRestartDelay(10*time.Millisecond),
	)
	defer o.Close()

	o.Orchestrate(context.Background(), WithPermissionDeniedCallback(func(message string) { denied <- message }))

	select {
	case message := <-denied:
		if message == "" {
			t.Fatalf("expected a remediation message")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for permission denied")
	}
	eventually(t, func() bool { return o.Snapshot().PermissionDenied }, "waiting for denied snapshot")

	recognizer.setTranscribeErr(nil)
	o.Activate()
	never(t, func() bool { return len(recognizer.streamModes()) > 0 }, 50*time.Millisecond,
		"expected no recognition while permission is denied")
	if state := o.State(); state != StateIdle {
		t.Fatalf("expected activation to be ignored while denied, got %s", state)
	}

	o.RetryPermission()
	eventually(t, func() bool { return len(recognizer.streamModes()) == 1 && recognizer.isActive() }, "waiting for recognition after retry")
	eventually(t, func() bool { return !o.Snapshot().PermissionDenied }, "waiting for denied flag to clear")
}

func TestOrchestrateTwiceIsNoop(t *testing.T) {
	s := startTestSession(t, &stubLLM{})
	s.waitForStream(t, 1, true)

	s.orchestrator.Orchestrate(context.Background())

	never(t, func() bool { return len(s.recognizer.streamModes()) > 1 }, 50*time.Millisecond,
		"expected second Orchestrate not to open another stream")
}

func TestCloseBeforeOrchestrateMarksClosed(t *testing.T) {
	recognizer := &stubRecognizer{}
	o := NewOrchestrator(WithSpeechToTextClient(recognizer))
	o.Close()

	if !o.runtime.isClosed() {
		t.Fatalf("expected orchestrator to be closed")
	}

	o.Orchestrate(context.Background())
	never(t, func() bool { return len(recognizer.streamModes()) > 0 }, 50*time.Millisecond,
		"expected closed orchestrator not to listen")
}

func TestContextCancellationClosesOrchestrator(t *testing.T) {
	recognizer := &stubRecognizer{}
	o := NewOrchestrator(WithSpeechToTextClient(recognizer))

	ctx, cancel := context.WithCancel(context.Background())
	o.Orchestrate(ctx)
	eventually(t, recognizer.isActive, "waiting for recognition")

	cancel()
	eventually(t, o.runtime.isClosed, "waiting for orchestrator to close")
	eventually(t, func() bool { return !recognizer.isActive() }, "waiting for recognition to stop")
}

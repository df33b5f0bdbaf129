package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	orchestration "github.com/koscakluka/ema-voice/core"
	"github.com/koscakluka/ema-voice/core/events"
)

type fakeController struct {
	session  orchestration.Session
	speaking bool

	activated, deactivated, retried, stopped int
}

func (c *fakeController) Snapshot() orchestration.Session { return c.session }
func (c *fakeController) IsSpeaking() bool { return c.speaking }
func (c *fakeController) Activate() { c.activated++ }
func (c *fakeController) Deactivate() { c.deactivated++ }
func (c *fakeController) RetryPermission() { c.retried++ }
func (c *fakeController) StopSpeaking() { c.stopped++ }

func keyPress(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestKeysDriveController(t *testing.T) {
	controller := &fakeController{session: orchestration.Session{State: orchestration.StateIdle}}
	var model tea.Model = New(controller)

	for _, r := range "adsr" {
		model, _ = model.Update(keyPress(r))
	}

	if controller.activated != 1 || controller.deactivated != 1 || controller.stopped != 1 || controller.retried != 1 {
		t.Fatalf("expected one call per key, got %+v", controller)
	}

	if _, cmd := model.Update(keyPress('q')); cmd == nil {
		t.Fatalf("expected quit command")
	}
}

func TestEventsRefreshView(t *testing.T) {
	controller := &fakeController{session: orchestration.Session{State: orchestration.StateIdle}}
	var model tea.Model = New(controller)

	if view := model.View(); !strings.Contains(view, "waiting") || !strings.Contains(view, "wake phrase") {
		t.Fatalf("expected idle view, got:\n%s", view)
	}

	controller.session = orchestration.Session{
		State:     orchestration.StateThinking,
		Listening: true,
		History: []orchestration.ConversationMessage{
			{Role: orchestration.RoleUser, Content: "what time is it"},
		},
	}
	model, _ = model.Update(EventMsg{Event: events.NewSessionStateChanged("s", "active", "thinking")})

	view := model.View()
	if !strings.Contains(view, "what time is it") {
		t.Errorf("expected history in view, got:\n%s", view)
	}
	if !strings.Contains(view, "thinking") {
		t.Errorf("expected thinking indicator, got:\n%s", view)
	}
}

func TestPermissionDeniedShowsMessageUntilRetry(t *testing.T) {
	controller := &fakeController{session: orchestration.Session{State: orchestration.StateIdle, PermissionDenied: true}}
	var model tea.Model = New(controller)

	model, _ = model.Update(EventMsg{Event: events.NewPermissionDenied("s", "access denied", nil)})
	if view := model.View(); !strings.Contains(view, "access denied") || !strings.Contains(view, "no access") {
		t.Fatalf("expected denial in view, got:\n%s", view)
	}

	controller.session.PermissionDenied = false
	model, _ = model.Update(keyPress('r'))
	model, _ = model.Update(EventMsg{Event: events.NewRecognitionStarted("s", true)})
	if view := model.View(); strings.Contains(view, "access denied") {
		t.Fatalf("expected denial to clear after retry, got:\n%s", view)
	}
}

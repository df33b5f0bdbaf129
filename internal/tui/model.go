// Package tui renders a running session in the terminal.
package tui

import (
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/muesli/reflow/wordwrap"

	orchestration "github.com/koscakluka/ema-voice/core"
	"github.com/koscakluka/ema-voice/core/events"
)

// IsTTY reports whether stdout is an interactive terminal.
func IsTTY() bool {
	return isatty.IsTerminal(os.Stdout.Fd())
}

// EventMsg delivers a session event to the model.
type EventMsg struct {
	Event events.Event
}

// Controller is the part of the orchestrator the interface drives.
type Controller interface {
	Snapshot() orchestration.Session
	IsSpeaking() bool
	Activate()
	Deactivate()
	RetryPermission()
	StopSpeaking()
}

type keyMap struct {
	Activate   key.Binding
	Deactivate key.Binding
	Stop       key.Binding
	Retry      key.Binding
	Quit       key.Binding
}

var keys = keyMap{
	Activate:   key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "activate")),
	Deactivate: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "deactivate")),
	Stop:       key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stop speaking")),
	Retry:      key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry access")),
	Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

type Model struct {
	controller Controller

	width  int
	height int

	session   orchestration.Session
	speaking  bool
	lastError string
	spinner   spinner.Model
}

func New(controller Controller) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = thinkingStyle

	return Model{
		controller: controller,
		session:    controller.Snapshot(),
		spinner:    s,
	}
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Activate):
			m.controller.Activate()
		case key.Matches(msg, keys.Deactivate):
			m.controller.Deactivate()
		case key.Matches(msg, keys.Stop):
			m.controller.StopSpeaking()
		case key.Matches(msg, keys.Retry):
			m.lastError = ""
			m.controller.RetryPermission()
		}
		return m, nil

	case EventMsg:
		switch e := msg.Event.(type) {
		case events.PermissionDenied:
			m.lastError = e.Message
		case events.RecognitionFailed:
			m.lastError = e.ErrorKind
		case events.RecognitionStarted:
			if !m.session.PermissionDenied {
				m.lastError = ""
			}
		}
		m.session = m.controller.Snapshot()
		m.speaking = m.controller.IsSpeaking()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	width := m.width
	if width <= 0 {
		width = 80
	}
	wrapAt := max(width-4, 20)

	var b strings.Builder
	b.WriteString(titleStyle.Render("MARCO"))
	b.WriteString(" ")
	b.WriteString(m.stateBadge())
	b.WriteString("\n\n")

	if len(m.session.History) == 0 && m.session.State == orchestration.StateIdle {
		b.WriteString(hintStyle.Render("Say the wake phrase to start a conversation."))
		b.WriteString("\n")
	}
	for _, message := range m.session.History {
		label, style := "you", userStyle
		if message.Role == orchestration.RoleAssistant {
			label, style = "marco", assistantStyle
		}
		b.WriteString(style.Render(label + ":"))
		b.WriteString("\n")
		b.WriteString(wordwrap.String(message.Content, wrapAt))
		b.WriteString("\n\n")
	}

	if m.session.PendingTranscript != "" {
		b.WriteString(pendingStyle.Render(wordwrap.String(m.session.PendingTranscript, wrapAt)))
		b.WriteString("\n\n")
	}
	if m.session.State == orchestration.StateThinking {
		b.WriteString(m.spinner.View())
		b.WriteString(thinkingStyle.Render(" thinking"))
		b.WriteString("\n\n")
	}
	if m.lastError != "" {
		b.WriteString(errorStyle.Render(wordwrap.String(m.lastError, wrapAt)))
		b.WriteString("\n\n")
	}

	b.WriteString(helpStyle.Render(m.help()))
	return b.String()
}

func (m Model) stateBadge() string {
	switch {
	case m.session.PermissionDenied:
		return deniedBadge.Render("no access")
	case m.speaking:
		return speakingBadge.Render("speaking")
	case m.session.State == orchestration.StateIdle:
		return idleBadge.Render("waiting")
	case m.session.State == orchestration.StateActive && !m.session.Listening:
		return activeBadge.Render("greeting")
	default:
		return activeBadge.Render(string(m.session.State))
	}
}

func (m Model) help() string {
	bindings := []key.Binding{keys.Activate, keys.Deactivate, keys.Stop, keys.Retry, keys.Quit}
	parts := make([]string, 0, len(bindings))
	for _, binding := range bindings {
		parts = append(parts, binding.Help().Key+" "+binding.Help().Desc)
	}
	return strings.Join(parts, " • ")
}

package orchestration

import (
	"slices"
	"time"
)

type State string

const (
	StateIdle     State = "idle"
	StateActive   State = "active"
	StateThinking State = "thinking"
	StateSpeaking State = "speaking"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationMessage is a single entry of the session history. Messages are
// never changed after they are appended.
type ConversationMessage struct {
	Role      Role
	Content   string
	CreatedAt time.Time
}

// Session is the state of the current conversation. The orchestrator owns
// the live session; Snapshot returns copies.
type Session struct {
	ID    string
	State State
	// Listening is false while the greeting plays after activation.
	Listening         bool
	History           []ConversationMessage
	PendingTranscript string
	PermissionDenied  bool
}

func (s Session) clone() Session {
	s.History = slices.Clone(s.History)
	return s
}

const (
	DefaultGreeting     = "Hello. MARCO is now active. How may I assist you?"
	DefaultFarewell     = "Shutting down... Goodbye."
	DefaultRestartDelay = 500 * time.Millisecond

	DefaultInstructions = `You are MARCO, a voice assistant. Your replies are spoken aloud, so keep them brief, precise and conversational. Avoid lists, markdown and other formatting that does not read well out loud.`

	permissionDeniedMessage = "Microphone or speech recognition access was denied. Allow access and retry."
)

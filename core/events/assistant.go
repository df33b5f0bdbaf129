package events

const (
	// KindAssistantResponseFinal identifies a reply appended to the history.
	KindAssistantResponseFinal Kind = "assistant_response.final"
	// KindAssistantPlaybackStarted identifies playback start for a reply.
	KindAssistantPlaybackStarted Kind = "assistant_playback.started"
	// KindAssistantPlaybackEnded identifies the playback completion milestone.
	KindAssistantPlaybackEnded Kind = "assistant_playback.ended"
	// KindAssistantSpeakingChanged identifies changes of the audio output activity.
	KindAssistantSpeakingChanged Kind = "assistant_playback.speaking_changed"
)

// AssistantResponseFinal carries the reply text of the current turn.
type AssistantResponseFinal struct {
	Base
	Response string
	// Fallback is set when the completion failed and a fixed apology was
	// used instead.
	Fallback bool
}

// NewAssistantResponseFinal creates an assistant response final event.
func NewAssistantResponseFinal(sessionID, response string, fallback bool) AssistantResponseFinal {
	return AssistantResponseFinal{Base: NewBase(KindAssistantResponseFinal, sessionID), Response: response, Fallback: fallback}
}

// AssistantPlaybackStarted marks the start of assistant playback.
type AssistantPlaybackStarted struct {
	Base
	Text string
}

// NewAssistantPlaybackStarted creates an assistant playback started event.
func NewAssistantPlaybackStarted(sessionID, text string) AssistantPlaybackStarted {
	return AssistantPlaybackStarted{Base: NewBase(KindAssistantPlaybackStarted, sessionID), Text: text}
}

// AssistantPlaybackEnded marks the end of assistant playback. Completed is
// false when the playback was superseded, stopped or failed; Error then holds
// the failure kind, if any.
type AssistantPlaybackEnded struct {
	Base
	Text      string
	Completed bool
	Error     string
}

// NewAssistantPlaybackEnded creates an assistant playback ended event.
func NewAssistantPlaybackEnded(sessionID, text string, completed bool, errorKind string) AssistantPlaybackEnded {
	return AssistantPlaybackEnded{
		Base:      NewBase(KindAssistantPlaybackEnded, sessionID),
		Text:      text,
		Completed: completed,
		Error:     errorKind,
	}
}

type AssistantSpeakingChanged struct {
	Base
	Speaking bool
}

func NewAssistantSpeakingChanged(sessionID string, speaking bool) AssistantSpeakingChanged {
	return AssistantSpeakingChanged{Base: NewBase(KindAssistantSpeakingChanged, sessionID), Speaking: speaking}
}

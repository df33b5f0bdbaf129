package events

const (
	// KindSessionStateChanged identifies transitions of the session state.
	KindSessionStateChanged Kind = "session.state_changed"
	// KindSessionReset identifies a session reset.
	KindSessionReset Kind = "session.reset"
	// KindWakePhraseDetected identifies a detected wake phrase.
	KindWakePhraseDetected Kind = "session.wake_phrase_detected"
	// KindGoodbyePhraseDetected identifies a detected goodbye phrase.
	KindGoodbyePhraseDetected Kind = "session.goodbye_phrase_detected"
	// KindPermissionDenied identifies loss of access to speech recognition.
	KindPermissionDenied Kind = "session.permission_denied"
)

// SessionStateChanged carries the previous and new session state.
type SessionStateChanged struct {
	Base
	From string
	To   string
}

func NewSessionStateChanged(sessionID, from, to string) SessionStateChanged {
	return SessionStateChanged{Base: NewBase(KindSessionStateChanged, sessionID), From: from, To: to}
}

// SessionReset carries the id of the session that replaced the reset one.
type SessionReset struct {
	Base
	PreviousSessionID string
}

func NewSessionReset(sessionID, previousSessionID string) SessionReset {
	return SessionReset{Base: NewBase(KindSessionReset, sessionID), PreviousSessionID: previousSessionID}
}

type WakePhraseDetected struct {
	Base
	Transcript string
}

func NewWakePhraseDetected(sessionID, transcript string) WakePhraseDetected {
	return WakePhraseDetected{Base: NewBase(KindWakePhraseDetected, sessionID), Transcript: transcript}
}

type GoodbyePhraseDetected struct {
	Base
	Transcript string
}

func NewGoodbyePhraseDetected(sessionID, transcript string) GoodbyePhraseDetected {
	return GoodbyePhraseDetected{Base: NewBase(KindGoodbyePhraseDetected, sessionID), Transcript: transcript}
}

// PermissionDenied carries a user facing remediation message.
type PermissionDenied struct {
	Base
	Message string
	Err     error
}

func NewPermissionDenied(sessionID, message string, err error) PermissionDenied {
	return PermissionDenied{Base: NewBase(KindPermissionDenied, sessionID), Message: message, Err: err}
}

package events

const (
	KindRecognitionStarted Kind = "recognition.started"
	KindRecognitionEnded   Kind = "recognition.ended"
	KindRecognitionFailed  Kind = "recognition.failed"
)

type RecognitionStarted struct {
	Base
	Continuous bool
}

func NewRecognitionStarted(sessionID string, continuous bool) RecognitionStarted {
	return RecognitionStarted{Base: NewBase(KindRecognitionStarted, sessionID), Continuous: continuous}
}

type RecognitionEnded struct{ Base }

func NewRecognitionEnded(sessionID string) RecognitionEnded {
	return RecognitionEnded{Base: NewBase(KindRecognitionEnded, sessionID)}
}

// RecognitionFailed carries the classified error kind and the underlying
// error reported by the recognizer.
type RecognitionFailed struct {
	Base
	ErrorKind string
	Err       error
}

func NewRecognitionFailed(sessionID, errorKind string, err error) RecognitionFailed {
	return RecognitionFailed{Base: NewBase(KindRecognitionFailed, sessionID), ErrorKind: errorKind, Err: err}
}

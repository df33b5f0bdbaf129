package speechtotext

import (
	"context"
	"errors"
)

var (
	ErrPermissionDenied = errors.New("speech recognition permission denied")
	ErrNoSpeech         = errors.New("no speech detected")
	ErrNetwork          = errors.New("speech recognition network failure")
	ErrAborted          = errors.New("speech recognition aborted")
)

type ErrorKind string

const (
	ErrorKindPermissionDenied ErrorKind = "permission_denied"
	ErrorKindNoSpeechTimeout  ErrorKind = "no_speech"
	ErrorKindNetwork          ErrorKind = "network"
	ErrorKindAborted          ErrorKind = "aborted"
	ErrorKindUnknown          ErrorKind = "unknown"
)

// Classify maps an error returned by a recognizer or audio capture to the
// kind the session reacts to.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return ErrorKindUnknown
	case errors.Is(err, ErrPermissionDenied):
		return ErrorKindPermissionDenied
	case errors.Is(err, ErrNoSpeech):
		return ErrorKindNoSpeechTimeout
	case errors.Is(err, ErrAborted), errors.Is(err, context.Canceled):
		return ErrorKindAborted
	case errors.Is(err, ErrNetwork), errors.Is(err, context.DeadlineExceeded):
		return ErrorKindNetwork
	}
	return ErrorKindUnknown
}

// IsTerminal reports whether recognition must not be restarted without
// outside remediation.
func (k ErrorKind) IsTerminal() bool {
	return k == ErrorKindPermissionDenied
}

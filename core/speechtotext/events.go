package speechtotext

// Event is a single notification from a recognition stream.
type Event interface {
	recognitionEvent()
}

type Started struct{}

type Ended struct{}

type Result struct {
	Text    string
	IsFinal bool
}

type Error struct {
	Kind ErrorKind
	Err  error
}

func (Started) recognitionEvent() {}
func (Ended) recognitionEvent()   {}
func (Result) recognitionEvent()  {}
func (Error) recognitionEvent()   {}

func (e Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e Error) Unwrap() error { return e.Err }

package events

const (
	// KindUserTranscriptInterimUpdated identifies mutable interim full transcript updates.
	KindUserTranscriptInterimUpdated Kind = "user_input.transcript_interim_updated"
	// KindUserTranscriptFinal identifies the final transcript for the utterance.
	KindUserTranscriptFinal Kind = "user_input.transcript_final"
	// KindUserTranscriptDiscarded identifies transcripts ignored while the assistant speaks.
	KindUserTranscriptDiscarded Kind = "user_input.transcript_discarded"
)

// UserTranscriptInterimUpdated carries the mutable interim full transcript snapshot.
type UserTranscriptInterimUpdated struct {
	Base
	Transcript string
}

// NewUserTranscriptInterimUpdated creates an interim transcript snapshot update event.
func NewUserTranscriptInterimUpdated(sessionID, transcript string) UserTranscriptInterimUpdated {
	return UserTranscriptInterimUpdated{Base: NewBase(KindUserTranscriptInterimUpdated, sessionID), Transcript: transcript}
}

// UserTranscriptFinal carries the final transcript for the utterance.
type UserTranscriptFinal struct {
	Base
	Transcript string
}

// NewUserTranscriptFinal creates a final transcript event.
func NewUserTranscriptFinal(sessionID, transcript string) UserTranscriptFinal {
	return UserTranscriptFinal{Base: NewBase(KindUserTranscriptFinal, sessionID), Transcript: transcript}
}

// UserTranscriptDiscarded carries a transcript that was heard while the
// assistant was speaking and therefore ignored.
type UserTranscriptDiscarded struct {
	Base
	Transcript string
	IsFinal    bool
}

// NewUserTranscriptDiscarded creates a discarded transcript event.
func NewUserTranscriptDiscarded(sessionID, transcript string, isFinal bool) UserTranscriptDiscarded {
	return UserTranscriptDiscarded{Base: NewBase(KindUserTranscriptDiscarded, sessionID), Transcript: transcript, IsFinal: isFinal}
}

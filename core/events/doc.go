// Package events defines the typed voice session event contract.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - session.*
//   - user_input.*
//   - assistant_response.*
//   - assistant_playback.*
//   - recognition.*
//
// Semantics used across the package:
//
//   - Updated: mutable point-in-time snapshot that can change over time.
//   - Final: terminal immutable text for the current utterance or reply.
//   - Discarded: input that was recognized but intentionally ignored.
//   - Started/Ended: lifecycle boundaries.
//
// session events
//
//   - SessionStateChanged (session.state_changed): the session moved between
//     idle, active, thinking and speaking.
//   - SessionReset (session.reset): history was cleared and a new session id
//     assigned.
//   - WakePhraseDetected (session.wake_phrase_detected): a wake phrase was
//     heard while idle.
//   - GoodbyePhraseDetected (session.goodbye_phrase_detected): a goodbye
//     phrase was heard while active.
//   - PermissionDenied (session.permission_denied): recognition cannot run
//     until the user grants access.
//
// user_input events
//
//   - UserTranscriptInterimUpdated (user_input.transcript_interim_updated):
//     mutable interim transcript snapshot.
//   - UserTranscriptFinal (user_input.transcript_final): terminal transcript
//     for the utterance.
//   - UserTranscriptDiscarded (user_input.transcript_discarded): transcript
//     heard while the assistant was speaking.
//
// assistant_response events
//
//   - AssistantResponseFinal (assistant_response.final): reply text appended
//     to the history; Fallback marks the fixed apology.
//
// assistant_playback events
//
//   - AssistantPlaybackStarted (assistant_playback.started): synthesis and
//     playback of a reply started.
//   - AssistantPlaybackEnded (assistant_playback.ended): playback finished,
//     was superseded or failed.
//   - AssistantSpeakingChanged (assistant_playback.speaking_changed): audio
//     output started or stopped.
//
// recognition events
//
//   - RecognitionStarted (recognition.started): a recognition stream opened.
//   - RecognitionEnded (recognition.ended): the stream closed.
//   - RecognitionFailed (recognition.failed): the stream reported an error.
package events

package call

import "dialer-platform/internal/telephony"

// Session represents one outbound call attempt for a subject (the lead or
// contact being called).
//
// Ownership invariant: sessions are exclusively owned by the Manager. The
// media relay and conference coordinator hold only the stream/conference ids,
// never a mutable reference to the record.
//
// At most one non-terminal Session exists per subject at any time; placing a
// new call for a subject first tears down the existing session.
type Session struct {
	// ID is the provider call identifier.
	ID        string `json:"id"`
	SubjectID string `json:"subject_id"`

	PhoneNumber string `json:"phone_number"`

	Status Status `json:"status"`

	// MediaStreamID and ConferenceID are back-references into the relay;
	// empty until the media path binds.
	MediaStreamID string `json:"media_stream_id,omitempty"`
	ConferenceID  string `json:"conference_id,omitempty"`

	Muted          bool `json:"muted"`
	SpeakerEnabled bool `json:"speaker_enabled"`
	AudioActive    bool `json:"audio_active"`
	AudioStreaming bool `json:"audio_streaming"`
}

// Status is the session state machine vocabulary. Terminal states:
// completed, failed, busy, no_answer.
type Status string

const (
	StatusConnecting Status = "connecting"
	StatusRinging    Status = "ringing"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusBusy       Status = "busy"
	StatusNoAnswer   Status = "no_answer"
)

// Terminal reports whether no further transition can occur.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusBusy, StatusNoAnswer:
		return true
	default:
		return false
	}
}

// FromProvider translates provider status into the session vocabulary.
// A provider cancel is an operator-initiated teardown of an unanswered call,
// which matches forced-hangup semantics, so it maps to completed.
func FromProvider(s telephony.Status) Status {
	switch s {
	case telephony.StatusQueued:
		return StatusConnecting
	case telephony.StatusRinging:
		return StatusRinging
	case telephony.StatusInProgress:
		return StatusInProgress
	case telephony.StatusCompleted, telephony.StatusCanceled:
		return StatusCompleted
	case telephony.StatusBusy:
		return StatusBusy
	case telephony.StatusNoAnswer:
		return StatusNoAnswer
	case telephony.StatusFailed:
		return StatusFailed
	default:
		return StatusConnecting
	}
}

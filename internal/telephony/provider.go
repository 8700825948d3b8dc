package telephony

import (
	"context"
	"errors"
)

// Dialer defines the provider-agnostic call-control interface used by the
// session manager and status monitor.
//
// Rules:
//   - No provider SDK calls outside telephony adapters.
//   - Keep request/response types provider-agnostic; raw provider payloads stay
//     inside the adapter.
//   - Adapters translate transport failures into errors; they never invent call
//     statuses.
type Dialer interface {
	Name() string
	HealthCheck(ctx context.Context) error

	// PlaceCall asks the provider to dial. A rejected placement returns
	// ErrProviderRejected (wrapped); the caller reports it, never retries
	// automatically.
	PlaceCall(ctx context.Context, req PlaceCallRequest) (Placement, error)

	// CallStatus returns the provider's current view of the call.
	CallStatus(ctx context.Context, callID string) (Status, error)

	// Hangup tears the call down. Returns false when the provider no longer
	// knows the call; that is not an error.
	Hangup(ctx context.Context, callID string) (bool, error)
}

// ErrProviderRejected means call placement failed at the provider.
var ErrProviderRejected = errors.New("provider rejected call placement")

// PlaceCallRequest describes one outbound dial attempt.
type PlaceCallRequest struct {
	// To and From are E.164 where possible.
	To   string `json:"to"`
	From string `json:"from"`

	// StatusCallbackURL, when set, receives provider status webhooks in
	// addition to polling.
	StatusCallbackURL string `json:"status_callback_url,omitempty"`

	// ConferenceName requests that the dialed leg be bridged rather than
	// connected 1:1. Empty means a direct media stream.
	ConferenceName string `json:"conference_name,omitempty"`

	// RingTimeout bounds how long the provider lets the call ring, seconds.
	RingTimeoutSeconds int `json:"ring_timeout_seconds,omitempty"`
}

// Placement is the provider response to a successful dial request.
type Placement struct {
	// CallID is the provider's unique identifier for the dialed leg.
	CallID string `json:"call_id"`

	Status Status `json:"status"`

	// ConferenceName is set when the provider created two legs sharing a
	// bridge; the agent leg must join it once established.
	ConferenceName string `json:"conference_name,omitempty"`
}

// Bridged reports whether the placement produced a conference bridge.
func (p Placement) Bridged() bool { return p.ConferenceName != "" }

// Status is the provider-side call status vocabulary.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusRinging    Status = "ringing"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusBusy       Status = "busy"
	StatusNoAnswer   Status = "no-answer"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
)

// Terminal reports whether no further provider transition can occur.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusBusy, StatusNoAnswer, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

package audit

import "time"

// Event is an immutable, append-only audit record of a control action.
//
// Invariants:
//   - Events are never updated or deleted.
//   - team_id is required for tenancy isolation.
//   - Actor and ip capture are best-effort; never block control flows on
//     audit failures.
type Event struct {
	ID     string `json:"id" db:"id"`
	TeamID string `json:"team_id" db:"team_id"`

	// Type indicates the business category of the audit record.
	Type EventType `json:"type" db:"type"`

	// ActorAgentID is the authenticated agent causing the event.
	ActorAgentID string `json:"actor_agent_id,omitempty" db:"actor_agent_id"`
	ActorRole    string `json:"actor_role,omitempty" db:"actor_role"`

	// IPAddress stores the resolved client IP when available.
	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`

	// Target identifiers, depending on the event type.
	CallID  string `json:"call_id,omitempty" db:"call_id"`
	EntryID string `json:"entry_id,omitempty" db:"entry_id"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	// EventTypeDialerControl covers start/stop of the auto dialer.
	EventTypeDialerControl EventType = "dialer_control"

	// EventTypeCallControl covers manual call actions: place, hangup, mute.
	EventTypeCallControl EventType = "call_control"

	// EventTypeAgentPresence covers agent registration and sign-off.
	EventTypeAgentPresence EventType = "agent_presence"
)

package reporting

import (
	"time"

	"dialer-platform/internal/call"
)

// Attempt is one finished dial attempt. Rows are append-only; summaries
// aggregate over them.
type Attempt struct {
	ID          string      `json:"id"`
	AgentID     string      `json:"agent_id"`
	ContactID   string      `json:"contact_id"`
	CallID      string      `json:"call_id"`
	PhoneNumber string      `json:"phone_number"`
	Status      call.Status `json:"status"`

	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at"`
	DurationSeconds int       `json:"duration_seconds"`
}

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// SummaryRequest requests aggregated dial metrics. AgentID empty means
// all agents on the team.
type SummaryRequest struct {
	AgentID string    `json:"agent_id,omitempty"`
	Range   TimeRange `json:"range"`
}

type Summary struct {
	AgentID string `json:"agent_id,omitempty"`

	TotalCalls     int `json:"total_calls"`
	CompletedCalls int `json:"completed_calls"`
	FailedCalls    int `json:"failed_calls"`
	NoAnswerCalls  int `json:"no_answer_calls"`
	BusyCalls      int `json:"busy_calls"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`

	// ConnectionRate is completed over total, 0..1.
	ConnectionRate float64 `json:"connection_rate"`
}

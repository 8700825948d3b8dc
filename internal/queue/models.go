package queue

import (
	"errors"
	"time"
)

var (
	ErrAgentNotFound = errors.New("agent not found")

	// ErrAgentBusy is returned when a dequeue is attempted for an agent that
	// already holds a call. Busy agents are never matched.
	ErrAgentBusy = errors.New("agent is busy")

	// ErrAgentOffline is returned for dequeues on unregistered agents.
	ErrAgentOffline = errors.New("agent is offline")

	ErrEntryNotFound = errors.New("queue entry not found")
)

// AgentStatus is the agent availability state machine:
// offline -> available (register), available <-> busy (call assignment).
type AgentStatus string

const (
	AgentOffline   AgentStatus = "offline"
	AgentAvailable AgentStatus = "available"
	AgentBusy      AgentStatus = "busy"
)

// Agent is a dialing seat. Status and CurrentCallID move together in a single
// update: busy if and only if CurrentCallID is set.
type Agent struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Status        AgentStatus `json:"status"`
	CurrentCallID *string     `json:"current_call_id,omitempty"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// QueueEntry is one pending dial. CallID references the contact to be called.
// AssignedAgentID is nil until exactly one agent wins the entry.
type QueueEntry struct {
	ID              string    `json:"id"`
	CallID          string    `json:"call_id"`
	Priority        int       `json:"priority"`
	AssignedAgentID *string   `json:"assigned_agent_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

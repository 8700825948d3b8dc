package queue

import "context"

// Repository is the persistence surface for the dial queue and agent seats.
// Implemented by PostgresRepo in production and MemoryRepo in tests.
type Repository interface {
	Enqueue(ctx context.Context, callID string, priority int) (QueueEntry, error)

	// DequeueNext assigns the highest-priority unassigned entry to agentID.
	// Ordering: priority DESC, then created_at ASC. Returns false when the
	// queue is empty or a concurrent dequeue won the only entry; losing a
	// race is not an error. Fails with ErrAgentBusy / ErrAgentOffline when
	// the agent cannot be matched.
	DequeueNext(ctx context.Context, agentID string) (QueueEntry, bool, error)

	// Requeue releases an assigned entry back to the unassigned pool,
	// e.g. after a failed placement. The entry keeps its priority and
	// original created_at, so it does not lose its place in line.
	Requeue(ctx context.Context, entryID string) error

	// Complete removes an entry whose dial reached a terminal state.
	Complete(ctx context.Context, entryID string) error

	PendingCount(ctx context.Context) (int, error)

	RegisterAgent(ctx context.Context, id, name string) (Agent, error)

	// SetAgentCall sets or clears the agent's current call. Status follows
	// in the same update: busy if and only if callID is non-nil.
	SetAgentCall(ctx context.Context, agentID string, callID *string) (Agent, error)

	SetAgentOffline(ctx context.Context, agentID string) error
	GetAgent(ctx context.Context, agentID string) (Agent, error)
	ListAgents(ctx context.Context) ([]Agent, error)
}

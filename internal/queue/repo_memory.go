package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo is the in-memory Repository used by tests and local development.
// Assignment atomicity comes from the mutex; semantics mirror PostgresRepo.
type MemoryRepo struct {
	mu      sync.Mutex
	entries map[string]*QueueEntry
	agents  map[string]*Agent
	seq     map[string]int // insertion order, tiebreak for equal timestamps
	nextSeq int

	// Clock is injectable for deterministic ordering tests.
	Clock func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		entries: make(map[string]*QueueEntry),
		agents:  make(map[string]*Agent),
		seq:     make(map[string]int),
		Clock:   time.Now,
	}
}

func (r *MemoryRepo) Enqueue(ctx context.Context, callID string, priority int) (QueueEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := &QueueEntry{
		ID:        uuid.NewString(),
		CallID:    callID,
		Priority:  priority,
		CreatedAt: r.Clock().UTC(),
	}
	r.entries[e.ID] = e
	r.seq[e.ID] = r.nextSeq
	r.nextSeq++
	return *e, nil
}

func (r *MemoryRepo) DequeueNext(ctx context.Context, agentID string) (QueueEntry, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	agent, ok := r.agents[agentID]
	if !ok {
		return QueueEntry{}, false, ErrAgentNotFound
	}
	switch agent.Status {
	case AgentBusy:
		return QueueEntry{}, false, ErrAgentBusy
	case AgentOffline:
		return QueueEntry{}, false, ErrAgentOffline
	}

	var pending []*QueueEntry
	for _, e := range r.entries {
		if e.AssignedAgentID == nil {
			pending = append(pending, e)
		}
	}
	if len(pending) == 0 {
		return QueueEntry{}, false, nil
	}
	sort.Slice(pending, func(i, j int) bool {
		a, b := pending[i], pending[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return r.seq[a.ID] < r.seq[b.ID]
	})

	winner := pending[0]
	id := agentID
	winner.AssignedAgentID = &id
	return *winner, true, nil
}

func (r *MemoryRepo) Requeue(ctx context.Context, entryID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[entryID]
	if !ok {
		return ErrEntryNotFound
	}
	e.AssignedAgentID = nil
	return nil
}

func (r *MemoryRepo) Complete(ctx context.Context, entryID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[entryID]; !ok {
		return ErrEntryNotFound
	}
	delete(r.entries, entryID)
	delete(r.seq, entryID)
	return nil
}

func (r *MemoryRepo) PendingCount(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if e.AssignedAgentID == nil {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepo) RegisterAgent(ctx context.Context, id, name string) (Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := &Agent{
		ID:        id,
		Name:      name,
		Status:    AgentAvailable,
		UpdatedAt: r.Clock().UTC(),
	}
	r.agents[id] = a
	return *a, nil
}

func (r *MemoryRepo) SetAgentCall(ctx context.Context, agentID string, callID *string) (Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[agentID]
	if !ok || a.Status == AgentOffline {
		return Agent{}, ErrAgentNotFound
	}
	if callID != nil {
		v := *callID
		a.CurrentCallID = &v
		a.Status = AgentBusy
	} else {
		a.CurrentCallID = nil
		a.Status = AgentAvailable
	}
	a.UpdatedAt = r.Clock().UTC()
	return *a, nil
}

func (r *MemoryRepo) SetAgentOffline(ctx context.Context, agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[agentID]
	if !ok {
		return ErrAgentNotFound
	}
	a.Status = AgentOffline
	a.CurrentCallID = nil
	a.UpdatedAt = r.Clock().UTC()
	return nil
}

func (r *MemoryRepo) GetAgent(ctx context.Context, agentID string) (Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[agentID]
	if !ok {
		return Agent{}, ErrAgentNotFound
	}
	return *a, nil
}

func (r *MemoryRepo) ListAgents(ctx context.Context) ([]Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Agent, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

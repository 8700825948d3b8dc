package reporting

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is an in-memory append-only repository useful for tests.
type MemoryRepo struct {
	mu       sync.Mutex
	attempts []Attempt
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(ctx context.Context, a Attempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, a)
	return nil
}

func (r *MemoryRepo) ListAttempts(ctx context.Context, agentID string, from, to time.Time) ([]Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Attempt
	for _, a := range r.attempts {
		if agentID != "" && a.AgentID != agentID {
			continue
		}
		if a.EndedAt.Before(from) || !a.EndedAt.Before(to) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

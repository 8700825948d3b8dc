package reporting

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"dialer-platform/internal/call"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository is the persistence contract for dial attempts.
// It is append-only; no update or delete methods are provided.
type Repository interface {
	Append(ctx context.Context, a Attempt) error
	ListAttempts(ctx context.Context, agentID string, from, to time.Time) ([]Attempt, error)
}

// Service records finished dial attempts and aggregates them.
// Callers should treat Record as best-effort; a failed write must never
// block call teardown.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

func (s *Service) Record(ctx context.Context, a Attempt) error {
	if s.repo == nil {
		return errors.New("reporting: repository not configured")
	}
	if a.AgentID == "" || a.CallID == "" || a.Status == "" {
		return ErrInvalidRequest
	}

	now := s.clock().UTC()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.EndedAt.IsZero() {
		a.EndedAt = now
	}
	if a.StartedAt.IsZero() {
		a.StartedAt = a.EndedAt
	}
	if a.DurationSeconds == 0 {
		a.DurationSeconds = int(a.EndedAt.Sub(a.StartedAt) / time.Second)
	}
	return s.repo.Append(ctx, a)
}

func (s *Service) Summary(ctx context.Context, req SummaryRequest) (Summary, error) {
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return Summary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return Summary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListAttempts(ctx, req.AgentID, req.Range.From, req.Range.To)
	if err != nil {
		return Summary{}, err
	}

	out := Summary{AgentID: req.AgentID}
	for _, a := range rows {
		out.TotalCalls++
		out.TotalDurationSeconds += a.DurationSeconds
		switch a.Status {
		case call.StatusCompleted:
			out.CompletedCalls++
		case call.StatusFailed:
			out.FailedCalls++
		case call.StatusNoAnswer:
			out.NoAnswerCalls++
		case call.StatusBusy:
			out.BusyCalls++
		}
	}
	if out.TotalCalls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.TotalCalls
		out.ConnectionRate = float64(out.CompletedCalls) / float64(out.TotalCalls)
	}
	return out, nil
}

package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
// It MUST be append-only; no Update/Delete methods are provided.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

var ErrInvalidEvent = errors.New("audit: invalid event")

// Service logs internal audit information. Audit is internal-only and
// best-effort; callers log and move on when Append fails.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.TeamID == "" || e.Type == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// LogDialerControl records an auto-dialer start or stop.
func (s *Service) LogDialerControl(ctx context.Context, teamID, agentID, role, ip, message string) error {
	return s.Append(ctx, Event{
		TeamID:       teamID,
		Type:         EventTypeDialerControl,
		ActorAgentID: agentID,
		ActorRole:    role,
		IPAddress:    ip,
		Message:      message,
	})
}

// LogCallControl records a manual call action against a specific call.
func (s *Service) LogCallControl(ctx context.Context, teamID, agentID, role, ip, callID, message string) error {
	return s.Append(ctx, Event{
		TeamID:       teamID,
		Type:         EventTypeCallControl,
		ActorAgentID: agentID,
		ActorRole:    role,
		IPAddress:    ip,
		CallID:       callID,
		Message:      message,
	})
}

// LogAgentPresence records agent registration or sign-off.
func (s *Service) LogAgentPresence(ctx context.Context, teamID, agentID, role, ip, message string) error {
	return s.Append(ctx, Event{
		TeamID:       teamID,
		Type:         EventTypeAgentPresence,
		ActorAgentID: agentID,
		ActorRole:    role,
		IPAddress:    ip,
		Message:      message,
	})
}

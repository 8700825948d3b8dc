package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ChangeChannel is the Redis pub/sub channel queue/agent mutations are
// announced on.
const ChangeChannel = "dialer.queue.changes"

// ChangeEvent describes one queue or agent mutation for subscribers
// (dashboards, the auto dialer, other nodes).
type ChangeEvent struct {
	Kind    string    `json:"kind"` // enqueued|assigned|requeued|completed|agent_changed
	EntryID string    `json:"entry_id,omitempty"`
	CallID  string    `json:"call_id,omitempty"`
	AgentID string    `json:"agent_id,omitempty"`
	At      time.Time `json:"at"`
}

// Publisher fans out change events. Publication is best-effort; queue state
// in Postgres stays authoritative whether or not subscribers hear about it.
type Publisher interface {
	Publish(ctx context.Context, event ChangeEvent)
}

// RedisPublisher publishes change events as JSON on ChangeChannel.
type RedisPublisher struct {
	RDB *redis.Client
	Log *slog.Logger
}

func (p RedisPublisher) Publish(ctx context.Context, event ChangeEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := p.RDB.Publish(ctx, ChangeChannel, payload).Err(); err != nil && p.Log != nil {
		p.Log.Warn("queue change publish failed", "kind", event.Kind, "error", err)
	}
}

// NopPublisher drops events; used when Redis is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ChangeEvent) {}

// Service is the queue facade the HTTP API and the auto dialer use. It runs
// every mutation through the repository and announces it to subscribers.
type Service struct {
	repo  Repository
	pub   Publisher
	clock func() time.Time
	log   *slog.Logger
}

func NewService(repo Repository, pub Publisher, log *slog.Logger) *Service {
	if pub == nil {
		pub = NopPublisher{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, pub: pub, clock: time.Now, log: log}
}

func (s *Service) Enqueue(ctx context.Context, callID string, priority int) (QueueEntry, error) {
	e, err := s.repo.Enqueue(ctx, callID, priority)
	if err != nil {
		return QueueEntry{}, err
	}
	s.pub.Publish(ctx, ChangeEvent{Kind: "enqueued", EntryID: e.ID, CallID: e.CallID, At: s.clock().UTC()})
	s.log.Info("queued dial", "entry_id", e.ID, "call_id", e.CallID, "priority", e.Priority)
	return e, nil
}

func (s *Service) DequeueNext(ctx context.Context, agentID string) (QueueEntry, bool, error) {
	e, ok, err := s.repo.DequeueNext(ctx, agentID)
	if err != nil || !ok {
		return QueueEntry{}, false, err
	}
	s.pub.Publish(ctx, ChangeEvent{Kind: "assigned", EntryID: e.ID, CallID: e.CallID, AgentID: agentID, At: s.clock().UTC()})
	return e, true, nil
}

func (s *Service) Requeue(ctx context.Context, entryID string) error {
	if err := s.repo.Requeue(ctx, entryID); err != nil {
		return err
	}
	s.pub.Publish(ctx, ChangeEvent{Kind: "requeued", EntryID: entryID, At: s.clock().UTC()})
	return nil
}

func (s *Service) Complete(ctx context.Context, entryID string) error {
	if err := s.repo.Complete(ctx, entryID); err != nil {
		return err
	}
	s.pub.Publish(ctx, ChangeEvent{Kind: "completed", EntryID: entryID, At: s.clock().UTC()})
	return nil
}

func (s *Service) PendingCount(ctx context.Context) (int, error) {
	return s.repo.PendingCount(ctx)
}

func (s *Service) RegisterAgent(ctx context.Context, id, name string) (Agent, error) {
	a, err := s.repo.RegisterAgent(ctx, id, name)
	if err != nil {
		return Agent{}, err
	}
	s.pub.Publish(ctx, ChangeEvent{Kind: "agent_changed", AgentID: a.ID, At: s.clock().UTC()})
	s.log.Info("agent registered", "agent_id", a.ID)
	return a, nil
}

func (s *Service) SetAgentCall(ctx context.Context, agentID string, callID *string) (Agent, error) {
	a, err := s.repo.SetAgentCall(ctx, agentID, callID)
	if err != nil {
		return Agent{}, err
	}
	s.pub.Publish(ctx, ChangeEvent{Kind: "agent_changed", AgentID: agentID, At: s.clock().UTC()})
	return a, nil
}

func (s *Service) SetAgentOffline(ctx context.Context, agentID string) error {
	if err := s.repo.SetAgentOffline(ctx, agentID); err != nil {
		return err
	}
	s.pub.Publish(ctx, ChangeEvent{Kind: "agent_changed", AgentID: agentID, At: s.clock().UTC()})
	return nil
}

func (s *Service) GetAgent(ctx context.Context, agentID string) (Agent, error) {
	return s.repo.GetAgent(ctx, agentID)
}

func (s *Service) ListAgents(ctx context.Context) ([]Agent, error) {
	return s.repo.ListAgents(ctx)
}

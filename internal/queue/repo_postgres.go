package queue

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"dialer-platform/pkg/utils"
)

// PostgresRepo persists the dial queue and agent seats. Dequeue assignment is
// race-free: the candidate row is picked with FOR UPDATE SKIP LOCKED inside
// the assigning transaction, so two concurrent dequeues never win one entry.
type PostgresRepo struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db, clock: time.Now}
}

func (r *PostgresRepo) Enqueue(ctx context.Context, callID string, priority int) (QueueEntry, error) {
	e := QueueEntry{
		ID:        uuid.NewString(),
		CallID:    callID,
		Priority:  priority,
		CreatedAt: r.clock().UTC(),
	}
	const q = `
INSERT INTO dial_queue (id, call_id, priority, assigned_to_agent_id, created_at)
VALUES ($1, $2, $3, NULL, $4)
`
	if _, err := r.db.ExecContext(ctx, q, e.ID, e.CallID, e.Priority, e.CreatedAt); err != nil {
		return QueueEntry{}, err
	}
	return e, nil
}

func (r *PostgresRepo) DequeueNext(ctx context.Context, agentID string) (QueueEntry, bool, error) {
	var (
		entry QueueEntry
		found bool
	)
	err := utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		agent, err := lockAgent(ctx, tx, agentID)
		if err != nil {
			return err
		}
		switch agent.Status {
		case AgentBusy:
			return ErrAgentBusy
		case AgentOffline:
			return ErrAgentOffline
		}

		const q = `
UPDATE dial_queue
SET assigned_to_agent_id = $1
WHERE id = (
  SELECT id
  FROM dial_queue
  WHERE assigned_to_agent_id IS NULL
  ORDER BY priority DESC, created_at ASC
  LIMIT 1
  FOR UPDATE SKIP LOCKED
)
RETURNING id, call_id, priority, created_at
`
		if err := tx.QueryRowContext(ctx, q, agentID).Scan(
			&entry.ID,
			&entry.CallID,
			&entry.Priority,
			&entry.CreatedAt,
		); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil // queue drained, or a concurrent dequeue won
			}
			return err
		}
		entry.AssignedAgentID = &agentID
		found = true
		return nil
	})
	if err != nil {
		return QueueEntry{}, false, err
	}
	return entry, found, nil
}

func (r *PostgresRepo) Requeue(ctx context.Context, entryID string) error {
	const q = `
UPDATE dial_queue
SET assigned_to_agent_id = NULL
WHERE id = $1
`
	res, err := r.db.ExecContext(ctx, q, entryID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *PostgresRepo) Complete(ctx context.Context, entryID string) error {
	const q = `DELETE FROM dial_queue WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, entryID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *PostgresRepo) PendingCount(ctx context.Context) (int, error) {
	const q = `SELECT count(*) FROM dial_queue WHERE assigned_to_agent_id IS NULL`
	var n int
	if err := r.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *PostgresRepo) RegisterAgent(ctx context.Context, id, name string) (Agent, error) {
	const q = `
INSERT INTO agents (id, name, status, current_call_id, updated_at)
VALUES ($1, $2, 'available', NULL, $3)
ON CONFLICT (id)
DO UPDATE SET name = EXCLUDED.name,
              status = 'available',
              current_call_id = NULL,
              updated_at = EXCLUDED.updated_at
RETURNING id, name, status, current_call_id, updated_at
`
	return scanAgent(r.db.QueryRowContext(ctx, q, id, name, r.clock().UTC()))
}

func (r *PostgresRepo) SetAgentCall(ctx context.Context, agentID string, callID *string) (Agent, error) {
	// busy iff current_call_id set, moved in one statement
	const q = `
UPDATE agents
SET current_call_id = $2,
    status = CASE WHEN $2::text IS NULL THEN 'available' ELSE 'busy' END,
    updated_at = $3
WHERE id = $1 AND status <> 'offline'
RETURNING id, name, status, current_call_id, updated_at
`
	a, err := scanAgent(r.db.QueryRowContext(ctx, q, agentID, callID, r.clock().UTC()))
	if errors.Is(err, sql.ErrNoRows) {
		return Agent{}, ErrAgentNotFound
	}
	return a, err
}

func (r *PostgresRepo) SetAgentOffline(ctx context.Context, agentID string) error {
	const q = `
UPDATE agents
SET status = 'offline', current_call_id = NULL, updated_at = $2
WHERE id = $1
`
	res, err := r.db.ExecContext(ctx, q, agentID, r.clock().UTC())
	if err != nil {
		return err
	}
	if err := requireRow(res); err != nil {
		return ErrAgentNotFound
	}
	return nil
}

func (r *PostgresRepo) GetAgent(ctx context.Context, agentID string) (Agent, error) {
	const q = `
SELECT id, name, status, current_call_id, updated_at
FROM agents
WHERE id = $1
`
	a, err := scanAgent(r.db.QueryRowContext(ctx, q, agentID))
	if errors.Is(err, sql.ErrNoRows) {
		return Agent{}, ErrAgentNotFound
	}
	return a, err
}

func (r *PostgresRepo) ListAgents(ctx context.Context) ([]Agent, error) {
	const q = `
SELECT id, name, status, current_call_id, updated_at
FROM agents
ORDER BY id
`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var agents []Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

func lockAgent(ctx context.Context, tx *sql.Tx, agentID string) (Agent, error) {
	const q = `
SELECT id, name, status, current_call_id, updated_at
FROM agents
WHERE id = $1
FOR UPDATE
`
	a, err := scanAgent(tx.QueryRowContext(ctx, q, agentID))
	if errors.Is(err, sql.ErrNoRows) {
		return Agent{}, ErrAgentNotFound
	}
	return a, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgent(row rowScanner) (Agent, error) {
	var (
		a      Agent
		callID sql.NullString
	)
	if err := row.Scan(&a.ID, &a.Name, &a.Status, &callID, &a.UpdatedAt); err != nil {
		return Agent{}, err
	}
	if callID.Valid {
		a.CurrentCallID = &callID.String
	}
	return a, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrEntryNotFound
	}
	return nil
}

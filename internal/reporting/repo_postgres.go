package reporting

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"dialer-platform/internal/call"
)

// PostgresRepo persists dial attempts in the call_attempts table.
// The table is insert-only; summaries read over it.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Append(ctx context.Context, a Attempt) error {
	const q = `
		INSERT INTO call_attempts (id, agent_id, contact_id, call_id, phone_number, status, started_at, ended_at, duration_seconds)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if _, err := r.db.ExecContext(ctx, q,
		a.ID, a.AgentID, a.ContactID, a.CallID, a.PhoneNumber, string(a.Status),
		a.StartedAt, a.EndedAt, a.DurationSeconds,
	); err != nil {
		return fmt.Errorf("insert call attempt: %w", err)
	}
	return nil
}

func (r *PostgresRepo) ListAttempts(ctx context.Context, agentID string, from, to time.Time) ([]Attempt, error) {
	const q = `
		SELECT id, agent_id, contact_id, call_id, phone_number, status, started_at, ended_at, duration_seconds
		FROM call_attempts
		WHERE ended_at >= $1 AND ended_at < $2
		  AND ($3 = '' OR agent_id = $3)
		ORDER BY ended_at ASC
	`
	rows, err := r.db.QueryContext(ctx, q, from, to, agentID)
	if err != nil {
		return nil, fmt.Errorf("list call attempts: %w", err)
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		var a Attempt
		var status string
		if err := rows.Scan(&a.ID, &a.AgentID, &a.ContactID, &a.CallID, &a.PhoneNumber, &status, &a.StartedAt, &a.EndedAt, &a.DurationSeconds); err != nil {
			return nil, fmt.Errorf("scan call attempt: %w", err)
		}
		a.Status = call.Status(status)
		out = append(out, a)
	}
	return out, rows.Err()
}

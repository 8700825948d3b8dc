package audit

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresRepo persists audit events in the audit_events table.
// Insert-only; retention is handled operationally.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
		INSERT INTO audit_events (id, team_id, type, actor_agent_id, actor_role, ip_address, call_id, entry_id, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	if _, err := r.db.ExecContext(ctx, q,
		e.ID, e.TeamID, string(e.Type), e.ActorAgentID, e.ActorRole,
		e.IPAddress, e.CallID, e.EntryID, e.Message, e.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

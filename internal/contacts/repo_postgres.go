package contacts

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresStore reads and dispositions contacts from the local contacts
// table. Deployments with an external CRM swap in their own Store.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetContact(ctx context.Context, id string) (Contact, error) {
	const q = `
SELECT id, phone_number, status
FROM contacts
WHERE id = $1
`
	var c Contact
	if err := s.db.QueryRowContext(ctx, q, id).Scan(&c.ID, &c.PhoneNumber, &c.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Contact{}, ErrNotFound
		}
		return Contact{}, err
	}
	return c, nil
}

func (s *PostgresStore) UpdateDisposition(ctx context.Context, id string, value Disposition) error {
	const q = `
UPDATE contacts
SET status = $2
WHERE id = $1
`
	res, err := s.db.ExecContext(ctx, q, id, value)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

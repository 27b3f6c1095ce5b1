package agents

import (
	"context"
	"database/sql"
	"errors"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) ListActive(ctx context.Context) ([]Agent, error) {
	const query = `
SELECT id, name, specialty, active, created_at
FROM agents
WHERE active = true
ORDER BY created_at ASC, id ASC`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Agent
	for rows.Next() {
		var a Agent
		if err := rows.Scan(&a.ID, &a.Name, &a.Specialty, &a.Active, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (Agent, error) {
	const query = `SELECT id, name, specialty, active, created_at FROM agents WHERE id = $1`
	var a Agent
	err := r.DB.QueryRowContext(ctx, query, id).Scan(&a.ID, &a.Name, &a.Specialty, &a.Active, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Agent{}, ErrNotFound
	}
	return a, err
}

func (r *PGRepo) Upsert(ctx context.Context, a Agent) error {
	const query = `
INSERT INTO agents (id, name, specialty, active, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE
SET name = EXCLUDED.name,
    specialty = EXCLUDED.specialty,
    active = EXCLUDED.active`
	_, err := r.DB.ExecContext(ctx, query, a.ID, a.Name, a.Specialty, a.Active, a.CreatedAt)
	return err
}

var _ Repo = (*PGRepo)(nil)

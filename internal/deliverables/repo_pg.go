package deliverables

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const deliverableColumns = `id, assessment_id, tier, path, content_hash, domains, degraded, assembled_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDeliverable(row rowScanner) (Deliverable, error) {
	var d Deliverable
	var domains []byte
	if err := row.Scan(&d.ID, &d.AssessmentID, &d.Tier, &d.Path, &d.ContentHash, &domains, &d.Degraded, &d.AssembledAt); err != nil {
		return Deliverable{}, err
	}
	d.Domains = []string{}
	if len(domains) > 0 {
		if err := json.Unmarshal(domains, &d.Domains); err != nil {
			return Deliverable{}, fmt.Errorf("decode domains: %w", err)
		}
	}
	return d, nil
}

func (r *PGRepo) Get(ctx context.Context, assessmentID, tier string) (Deliverable, error) {
	query := `SELECT ` + deliverableColumns + ` FROM deliverables WHERE assessment_id = $1 AND tier = $2`
	d, err := scanDeliverable(r.DB.QueryRowContext(ctx, query, assessmentID, tier))
	if errors.Is(err, sql.ErrNoRows) {
		return Deliverable{}, ErrNotFound
	}
	return d, err
}

func (r *PGRepo) Upsert(ctx context.Context, d Deliverable) error {
	domains, err := json.Marshal(append([]string{}, d.Domains...))
	if err != nil {
		return err
	}
	const query = `
INSERT INTO deliverables (id, assessment_id, tier, path, content_hash, domains, degraded, assembled_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (assessment_id, tier) DO UPDATE
SET path = EXCLUDED.path,
    content_hash = EXCLUDED.content_hash,
    domains = EXCLUDED.domains,
    degraded = EXCLUDED.degraded,
    assembled_at = EXCLUDED.assembled_at`
	_, err = r.DB.ExecContext(ctx, query, d.ID, d.AssessmentID, d.Tier, d.Path, d.ContentHash, domains, d.Degraded, d.AssembledAt)
	return err
}

func (r *PGRepo) ListByAssessment(ctx context.Context, assessmentID string) ([]Deliverable, error) {
	query := `SELECT ` + deliverableColumns + `
FROM deliverables
WHERE assessment_id = $1
ORDER BY assembled_at, tier`
	rows, err := r.DB.QueryContext(ctx, query, assessmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	byTier := make(map[string]Deliverable)
	for rows.Next() {
		d, err := scanDeliverable(rows)
		if err != nil {
			return nil, err
		}
		byTier[d.Tier] = d
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	var out []Deliverable
	for _, tier := range Tiers {
		if d, ok := byTier[tier]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

var _ Repo = (*PGRepo)(nil)

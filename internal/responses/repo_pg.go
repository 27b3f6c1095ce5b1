package responses

import (
	"context"
	"database/sql"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) Upsert(ctx context.Context, resp Response) error {
	const query = `
INSERT INTO assessment_responses (assessment_id, domain, question_id, response_text, score, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (assessment_id, domain, question_id) DO UPDATE
SET response_text = EXCLUDED.response_text,
    score = EXCLUDED.score,
    updated_at = EXCLUDED.updated_at`
	var score any
	if resp.Score != nil {
		score = *resp.Score
	}
	_, err := r.DB.ExecContext(ctx, query,
		resp.AssessmentID,
		resp.Domain,
		resp.QuestionID,
		resp.Text,
		score,
		resp.CreatedAt,
		resp.UpdatedAt,
	)
	return err
}

func (r *PGRepo) ListByAssessment(ctx context.Context, assessmentID string) ([]Response, error) {
	const query = `
SELECT assessment_id, domain, question_id, response_text, score, created_at, updated_at
FROM assessment_responses
WHERE assessment_id = $1
ORDER BY domain, question_id`
	return r.query(ctx, query, assessmentID)
}

func (r *PGRepo) ListByDomain(ctx context.Context, assessmentID, domain string) ([]Response, error) {
	const query = `
SELECT assessment_id, domain, question_id, response_text, score, created_at, updated_at
FROM assessment_responses
WHERE assessment_id = $1 AND domain = $2
ORDER BY question_id`
	return r.query(ctx, query, assessmentID, domain)
}

func (r *PGRepo) query(ctx context.Context, query string, args ...any) ([]Response, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Response
	for rows.Next() {
		var resp Response
		var score sql.NullFloat64
		if err := rows.Scan(
			&resp.AssessmentID,
			&resp.Domain,
			&resp.QuestionID,
			&resp.Text,
			&score,
			&resp.CreatedAt,
			&resp.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if score.Valid {
			v := score.Float64
			resp.Score = &v
		}
		out = append(out, resp)
	}
	return out, rows.Err()
}

var _ Repo = (*PGRepo)(nil)

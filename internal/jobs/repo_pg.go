package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const jobColumns = `id, assessment_id, domain, agent_id, attempt, status, prompt, response, tokens_used,
       error_code, error_message, error_retryable, created_at, started_at, completed_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (Job, error) {
	var j Job
	var prompt, response, errorCode, errorMessage sql.NullString
	var retryable sql.NullBool
	var startedAt, completedAt sql.NullTime
	if err := row.Scan(
		&j.ID,
		&j.AssessmentID,
		&j.Domain,
		&j.AgentID,
		&j.Attempt,
		&j.Status,
		&prompt,
		&response,
		&j.TokensUsed,
		&errorCode,
		&errorMessage,
		&retryable,
		&j.CreatedAt,
		&startedAt,
		&completedAt,
		&j.UpdatedAt,
	); err != nil {
		return Job{}, err
	}
	j.Prompt = prompt.String
	j.Response = response.String
	j.ErrorCode = errorCode.String
	j.ErrorMessage = errorMessage.String
	if retryable.Valid {
		v := retryable.Bool
		j.ErrorRetryable = &v
	}
	if startedAt.Valid {
		t := startedAt.Time
		j.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		j.CompletedAt = &t
	}
	return j, nil
}

// CreateMissing serializes on the assessment row so concurrent dispatches
// see each other's inserts. uq_jobs_outstanding backs the same guard.
func (r *PGRepo) CreateMissing(ctx context.Context, assessmentID string, candidates []Candidate, maxAttempts int, at time.Time) ([]Job, map[string]string, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	var locked string
	err = tx.QueryRowContext(ctx, `SELECT id FROM assessments WHERE id = $1 FOR UPDATE`, assessmentID).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("assessment %s: %w", assessmentID, ErrNotFound)
	}
	if err != nil {
		return nil, nil, err
	}

	rows, err := tx.QueryContext(ctx, `
SELECT domain, status, COUNT(*)
FROM analysis_jobs
WHERE assessment_id = $1
GROUP BY domain, status`, assessmentID)
	if err != nil {
		return nil, nil, err
	}
	states := make(map[string]DomainState)
	for rows.Next() {
		var domain, status string
		var n int
		if err := rows.Scan(&domain, &status, &n); err != nil {
			rows.Close()
			return nil, nil, err
		}
		s := states[domain]
		s.add(status, n)
		states[domain] = s
	}
	if err := rows.Close(); err != nil {
		return nil, nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	toCreate, skipped := plan(states, candidates, maxAttempts)
	const insert = `
INSERT INTO analysis_jobs (id, assessment_id, domain, agent_id, attempt, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`
	created := make([]Job, 0, len(toCreate))
	for _, p := range toCreate {
		j := Job{
			ID:           uuid.NewString(),
			AssessmentID: assessmentID,
			Domain:       p.Domain,
			AgentID:      p.AgentID,
			Attempt:      p.Attempt,
			Status:       StatusQueued,
			CreatedAt:    at,
			UpdatedAt:    at,
		}
		if _, err := tx.ExecContext(ctx, insert, j.ID, j.AssessmentID, j.Domain, j.AgentID, j.Attempt, j.Status, at); err != nil {
			return nil, nil, fmt.Errorf("insert job domain=%s: %w", p.Domain, err)
		}
		created = append(created, j)
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	return created, skipped, nil
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (Job, error) {
	query := `SELECT ` + jobColumns + ` FROM analysis_jobs WHERE id = $1`
	j, err := scanJob(r.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, ErrNotFound
	}
	return j, err
}

func (r *PGRepo) Transition(ctx context.Context, id string, from []string, to string, u Update) (Job, error) {
	if len(from) == 0 {
		return Job{}, fmt.Errorf("%w: no source states", ErrInvalidTransition)
	}
	var response any
	if u.Response != nil {
		response = *u.Response
	}
	var retryable any
	if u.Retryable != nil {
		retryable = *u.Retryable
	}
	args := []any{id, to, u.At, response, u.TokensUsed, nullString(u.ErrorCode), nullString(u.ErrorMessage), retryable}
	placeholders := make([]string, 0, len(from))
	for _, f := range from {
		args = append(args, f)
		placeholders = append(placeholders, "$"+strconv.Itoa(len(args)))
	}
	query := `
UPDATE analysis_jobs
SET status = $2,
    updated_at = $3,
    started_at = CASE WHEN $2 = 'processing' THEN $3 ELSE started_at END,
    completed_at = CASE WHEN $2 IN ('completed', 'failed', 'cancelled') THEN $3 ELSE completed_at END,
    response = COALESCE($4, response),
    tokens_used = CASE WHEN $4 IS NULL THEN tokens_used ELSE $5 END,
    error_code = COALESCE($6, error_code),
    error_message = COALESCE($7, error_message),
    error_retryable = COALESCE($8, error_retryable)
WHERE id = $1 AND status IN (` + strings.Join(placeholders, ", ") + `)
RETURNING ` + jobColumns
	j, err := scanJob(r.DB.QueryRowContext(ctx, query, args...))
	if err == nil {
		return j, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Job{}, err
	}
	current, getErr := r.GetByID(ctx, id)
	if getErr != nil {
		return Job{}, getErr
	}
	return current, fmt.Errorf("%w: %s->%s", ErrInvalidTransition, current.Status, to)
}

func (r *PGRepo) SetPrompt(ctx context.Context, id, prompt string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE analysis_jobs SET prompt = $2 WHERE id = $1`, id, prompt)
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

func (r *PGRepo) ListByAssessment(ctx context.Context, assessmentID string) ([]Job, error) {
	query := `SELECT ` + jobColumns + `
FROM analysis_jobs
WHERE assessment_id = $1
ORDER BY created_at, domain, attempt`
	return r.query(ctx, query, assessmentID)
}

func (r *PGRepo) ListStale(ctx context.Context, status string, cutoff time.Time, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + jobColumns + `
FROM analysis_jobs
WHERE status = $1 AND updated_at < $2
ORDER BY updated_at ASC, id ASC
LIMIT $3`
	return r.query(ctx, query, status, cutoff, limit)
}

func (r *PGRepo) query(ctx context.Context, query string, args ...any) ([]Job, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ Repo = (*PGRepo)(nil)

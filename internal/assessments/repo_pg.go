package assessments

import (
	"context"
	"database/sql"
	"encoding/json"
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

const assessmentColumns = `id, user_id, industry, status, progress, questions_answered, total_questions,
       documents_uploaded, executive_summary_path, detailed_analysis_path, implementation_kit_path,
       payment_ref, amount_cents, currency, analysis_started_at, created_at, updated_at, completed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssessment(row rowScanner) (Assessment, error) {
	var a Assessment
	var execPath, detailPath, kitPath, paymentRef sql.NullString
	var analysisStartedAt, completedAt sql.NullTime
	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.Industry,
		&a.Status,
		&a.Progress,
		&a.QuestionsAnswered,
		&a.TotalQuestions,
		&a.DocumentsUploaded,
		&execPath,
		&detailPath,
		&kitPath,
		&paymentRef,
		&a.AmountCents,
		&a.Currency,
		&analysisStartedAt,
		&a.CreatedAt,
		&a.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		return Assessment{}, err
	}
	a.ExecutiveSummaryPath = nullStringPtr(execPath)
	a.DetailedAnalysisPath = nullStringPtr(detailPath)
	a.ImplementationKitPath = nullStringPtr(kitPath)
	a.PaymentRef = nullStringPtr(paymentRef)
	a.AnalysisStartedAt = nullTimePtr(analysisStartedAt)
	a.CompletedAt = nullTimePtr(completedAt)
	return a, nil
}

func (r *PGRepo) Create(ctx context.Context, a Assessment) error {
	const query = `
INSERT INTO assessments (
	id, user_id, industry, status, progress, questions_answered, total_questions,
	documents_uploaded, amount_cents, currency, created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.DB.ExecContext(ctx, query,
		a.ID,
		a.UserID,
		a.Industry,
		a.Status,
		a.Progress,
		a.QuestionsAnswered,
		a.TotalQuestions,
		a.DocumentsUploaded,
		a.AmountCents,
		a.Currency,
		a.CreatedAt,
		a.UpdatedAt,
	)
	return err
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (Assessment, error) {
	query := `SELECT ` + assessmentColumns + ` FROM assessments WHERE id = $1`
	a, err := scanAssessment(r.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Assessment{}, ErrNotFound
	}
	return a, err
}

// UpdateProgress clamps in SQL as well so the stored pair always satisfies
// questions_answered <= total_questions.
func (r *PGRepo) UpdateProgress(ctx context.Context, id string, answered, percent int, at time.Time) error {
	const query = `
UPDATE assessments
SET questions_answered = LEAST($2, total_questions),
    progress = LEAST(GREATEST($3, 0), 100),
    updated_at = $4
WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, id, answered, percent, at)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *PGRepo) Transition(ctx context.Context, id string, t Transition) (Assessment, error) {
	if len(t.From) == 0 {
		return Assessment{}, fmt.Errorf("%w: no source states", ErrInvalidTransition)
	}
	args := []any{id, t.To, t.At, nullString(t.PaymentRef), t.AmountCents, t.Currency}
	placeholders := make([]string, 0, len(t.From))
	for _, from := range t.From {
		args = append(args, from)
		placeholders = append(placeholders, "$"+strconv.Itoa(len(args)))
	}
	query := `
UPDATE assessments
SET status = $2,
    updated_at = $3,
    payment_ref = COALESCE($4, payment_ref),
    amount_cents = CASE WHEN $4 IS NULL THEN amount_cents ELSE $5 END,
    currency = CASE WHEN $4 IS NULL OR $6 = '' THEN currency ELSE $6 END,
    analysis_started_at = CASE WHEN $2 = 'analysis' THEN COALESCE(analysis_started_at, $3) ELSE analysis_started_at END,
    completed_at = CASE WHEN $2 IN ('completed', 'failed', 'cancelled') THEN $3 ELSE completed_at END
WHERE id = $1 AND status IN (` + strings.Join(placeholders, ", ") + `)
RETURNING ` + assessmentColumns
	a, err := scanAssessment(r.DB.QueryRowContext(ctx, query, args...))
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Assessment{}, err
	}
	current, getErr := r.GetByID(ctx, id)
	if getErr != nil {
		return Assessment{}, getErr
	}
	return current, fmt.Errorf("%w: %s->%s", ErrInvalidTransition, current.Status, t.To)
}

func (r *PGRepo) SetArtifactPath(ctx context.Context, id, artifact, path string, at time.Time) error {
	var column string
	switch artifact {
	case ArtifactExecutiveSummary:
		column = "executive_summary_path"
	case ArtifactDetailedAnalysis:
		column = "detailed_analysis_path"
	case ArtifactImplementationKit:
		column = "implementation_kit_path"
	default:
		return fmt.Errorf("unknown artifact %q", artifact)
	}
	query := `UPDATE assessments SET ` + column + ` = $2, updated_at = $3 WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, id, path, at)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *PGRepo) ListByStatus(ctx context.Context, status string, limit int) ([]Assessment, error) {
	if limit <= 0 {
		limit = 500
	}
	query := `SELECT ` + assessmentColumns + `
FROM assessments
WHERE status = $1
ORDER BY updated_at ASC, id ASC
LIMIT $2`
	rows, err := r.DB.QueryContext(ctx, query, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

const domainColumns = `id, assessment_id, domain, score, health_tier, summary, recommendations,
       agent_id, analysis_complete, completed_at, updated_at`

func scanDomain(row rowScanner) (Domain, error) {
	var d Domain
	var score sql.NullFloat64
	var healthTier, agentID sql.NullString
	var recs []byte
	var completedAt sql.NullTime
	if err := row.Scan(
		&d.ID,
		&d.AssessmentID,
		&d.Name,
		&score,
		&healthTier,
		&d.Summary,
		&recs,
		&agentID,
		&d.AnalysisComplete,
		&completedAt,
		&d.UpdatedAt,
	); err != nil {
		return Domain{}, err
	}
	if score.Valid {
		v := score.Float64
		d.Score = &v
	}
	d.HealthTier = healthTier.String
	d.AgentID = agentID.String
	d.CompletedAt = nullTimePtr(completedAt)
	d.Recommendations = []string{}
	if len(recs) > 0 {
		if err := json.Unmarshal(recs, &d.Recommendations); err != nil {
			return Domain{}, fmt.Errorf("decode recommendations: %w", err)
		}
	}
	return d, nil
}

func (r *PGRepo) EnsureDomain(ctx context.Context, assessmentID, domain, agentID string, at time.Time) (Domain, error) {
	query := `
INSERT INTO assessment_domains (id, assessment_id, domain, agent_id, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (assessment_id, domain) DO UPDATE
SET agent_id = CASE WHEN assessment_domains.analysis_complete OR EXCLUDED.agent_id IS NULL
                    THEN assessment_domains.agent_id ELSE EXCLUDED.agent_id END,
    updated_at = EXCLUDED.updated_at
RETURNING ` + domainColumns
	d, err := scanDomain(r.DB.QueryRowContext(ctx, query, uuid.NewString(), assessmentID, domain, nullString(agentID), at))
	if err != nil {
		return Domain{}, err
	}
	return d, nil
}

func (r *PGRepo) GetDomain(ctx context.Context, assessmentID, domain string) (Domain, error) {
	query := `SELECT ` + domainColumns + ` FROM assessment_domains WHERE assessment_id = $1 AND domain = $2`
	d, err := scanDomain(r.DB.QueryRowContext(ctx, query, assessmentID, domain))
	if errors.Is(err, sql.ErrNoRows) {
		return Domain{}, ErrNotFound
	}
	return d, err
}

func (r *PGRepo) ListDomains(ctx context.Context, assessmentID string) ([]Domain, error) {
	query := `SELECT ` + domainColumns + ` FROM assessment_domains WHERE assessment_id = $1`
	rows, err := r.DB.QueryContext(ctx, query, assessmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	byName := make(map[string]Domain)
	for rows.Next() {
		d, err := scanDomain(rows)
		if err != nil {
			return nil, err
		}
		byName[d.Name] = d
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]Domain, 0, len(byName))
	for _, slug := range Domains() {
		if d, ok := byName[slug]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *PGRepo) SaveDomainResult(ctx context.Context, assessmentID, domain string, res DomainResult) error {
	recs, err := json.Marshal(nonNil(res.Recommendations))
	if err != nil {
		return err
	}
	const query = `
UPDATE assessment_domains
SET score = $3,
    health_tier = $4,
    summary = $5,
    recommendations = $6,
    agent_id = COALESCE($7, agent_id),
    analysis_complete = true,
    completed_at = $8,
    updated_at = $8
WHERE assessment_id = $1 AND domain = $2`
	result, err := r.DB.ExecContext(ctx, query,
		assessmentID,
		domain,
		res.Score,
		res.HealthTier,
		res.Summary,
		recs,
		nullString(res.AgentID),
		res.CompletedAt,
	)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullStringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

var _ Repo = (*PGRepo)(nil)

package catalog

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

const questionColumns = `id, domain, question_text, question_type, industry_filter, order_index, options, follow_up_triggers, active`

func scanQuestion(row interface{ Scan(...any) error }) (Question, error) {
	var q Question
	var industry sql.NullString
	var options, trigger []byte
	if err := row.Scan(&q.ID, &q.Domain, &q.Text, &q.Type, &industry, &q.Order, &options, &trigger, &q.Active); err != nil {
		return Question{}, err
	}
	q.Industry = industry.String
	if len(options) > 0 {
		if err := json.Unmarshal(options, &q.Options); err != nil {
			return Question{}, fmt.Errorf("question %s options: %w", q.ID, err)
		}
	}
	cond, err := ParseCondition(trigger)
	if err != nil {
		return Question{}, fmt.Errorf("question %s: %w", q.ID, err)
	}
	q.Trigger = cond
	return q, nil
}

func (r *PGRepo) ListActive(ctx context.Context) ([]Question, error) {
	query := `SELECT ` + questionColumns + ` FROM assessment_questions WHERE active = true ORDER BY id`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (Question, error) {
	query := `SELECT ` + questionColumns + ` FROM assessment_questions WHERE id = $1`
	q, err := scanQuestion(r.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Question{}, ErrNotFound
	}
	return q, err
}

func (r *PGRepo) Upsert(ctx context.Context, q Question) error {
	options, err := json.Marshal(q.Options)
	if err != nil {
		return err
	}
	if q.Options == nil {
		options = []byte("[]")
	}
	var trigger any
	if q.Trigger != nil {
		b, err := json.Marshal(q.Trigger)
		if err != nil {
			return err
		}
		trigger = b
	}
	var industry any
	if q.Industry != "" {
		industry = q.Industry
	}
	const query = `
INSERT INTO assessment_questions (
	id, domain, question_text, question_type, industry_filter, order_index, options, follow_up_triggers, active
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE
SET domain = EXCLUDED.domain,
    question_text = EXCLUDED.question_text,
    question_type = EXCLUDED.question_type,
    industry_filter = EXCLUDED.industry_filter,
    order_index = EXCLUDED.order_index,
    options = EXCLUDED.options,
    follow_up_triggers = EXCLUDED.follow_up_triggers,
    active = EXCLUDED.active`
	_, err = r.DB.ExecContext(ctx, query, q.ID, q.Domain, q.Text, q.Type, industry, q.Order, options, trigger, q.Active)
	return err
}

var _ Repo = (*PGRepo)(nil)

package jobs

import (
	"context"
	"time"
)

// Repo persists analysis jobs.
type Repo interface {
	// CreateMissing atomically creates a queued job for every candidate
	// domain that has no outstanding job, no completed job and attempts
	// left. Skipped domains map to a Skip* reason.
	CreateMissing(ctx context.Context, assessmentID string, candidates []Candidate, maxAttempts int, at time.Time) ([]Job, map[string]string, error)
	GetByID(ctx context.Context, id string) (Job, error)
	// Transition moves a job to status `to` only when its current status is
	// one of from; otherwise ErrInvalidTransition.
	Transition(ctx context.Context, id string, from []string, to string, u Update) (Job, error)
	SetPrompt(ctx context.Context, id, prompt string) error
	ListByAssessment(ctx context.Context, assessmentID string) ([]Job, error)
	// ListStale returns jobs in status whose updated_at is before cutoff,
	// oldest first.
	ListStale(ctx context.Context, status string, cutoff time.Time, limit int) ([]Job, error)
}

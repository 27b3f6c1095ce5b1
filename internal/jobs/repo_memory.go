package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo stores jobs in memory. A single mutex makes CreateMissing
// all-or-none per call.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Job
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Job)}
}

func (r *MemoryRepo) CreateMissing(ctx context.Context, assessmentID string, candidates []Candidate, maxAttempts int, at time.Time) ([]Job, map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var history []Job
	for _, j := range r.byID {
		if j.AssessmentID == assessmentID {
			history = append(history, j)
		}
	}
	toCreate, skipped := plan(States(history), candidates, maxAttempts)
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
		r.byID[j.ID] = j
		created = append(created, j)
	}
	return created, skipped, nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.byID[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return j, nil
}

func (r *MemoryRepo) Transition(ctx context.Context, id string, from []string, to string, u Update) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.byID[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	if !isOneOf(j.Status, from) {
		return j, fmt.Errorf("%w: %s->%s", ErrInvalidTransition, j.Status, to)
	}
	at := u.At
	j.Status = to
	j.UpdatedAt = at
	switch to {
	case StatusProcessing:
		j.StartedAt = &at
	case StatusCompleted, StatusFailed, StatusCancelled:
		j.CompletedAt = &at
	}
	if u.Response != nil {
		j.Response = *u.Response
		j.TokensUsed = u.TokensUsed
	}
	if u.ErrorCode != "" {
		j.ErrorCode = u.ErrorCode
	}
	if u.ErrorMessage != "" {
		j.ErrorMessage = u.ErrorMessage
	}
	if u.Retryable != nil {
		v := *u.Retryable
		j.ErrorRetryable = &v
	}
	r.byID[id] = j
	return j, nil
}

func (r *MemoryRepo) SetPrompt(ctx context.Context, id, prompt string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	j.Prompt = prompt
	r.byID[id] = j
	return nil
}

func (r *MemoryRepo) ListByAssessment(ctx context.Context, assessmentID string) ([]Job, error) {
	return r.list(ctx, 0, func(j Job) bool { return j.AssessmentID == assessmentID })
}

func (r *MemoryRepo) ListStale(ctx context.Context, status string, cutoff time.Time, limit int) ([]Job, error) {
	return r.list(ctx, limit, func(j Job) bool { return j.Status == status && j.UpdatedAt.Before(cutoff) })
}

func (r *MemoryRepo) list(ctx context.Context, limit int, match func(Job) bool) ([]Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Job
	for _, j := range r.byID {
		if match(j) {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(i, k int) bool {
		if !out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].CreatedAt.Before(out[k].CreatedAt)
		}
		if out[i].Domain != out[k].Domain {
			return out[i].Domain < out[k].Domain
		}
		return out[i].Attempt < out[k].Attempt
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ Repo = (*MemoryRepo)(nil)

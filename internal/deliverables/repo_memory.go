package deliverables

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]map[string]Deliverable
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[string]map[string]Deliverable)}
}

func (r *MemoryRepo) Get(ctx context.Context, assessmentID, tier string) (Deliverable, error) {
	if err := ctx.Err(); err != nil {
		return Deliverable{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.data[assessmentID][tier]
	if !ok {
		return Deliverable{}, ErrNotFound
	}
	return clone(d), nil
}

// Upsert keeps the row id of an existing tier.
func (r *MemoryRepo) Upsert(ctx context.Context, d Deliverable) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	byTier, ok := r.data[d.AssessmentID]
	if !ok {
		byTier = make(map[string]Deliverable)
		r.data[d.AssessmentID] = byTier
	}
	if existing, ok := byTier[d.Tier]; ok {
		d.ID = existing.ID
	}
	byTier[d.Tier] = clone(d)
	return nil
}

func (r *MemoryRepo) ListByAssessment(ctx context.Context, assessmentID string) ([]Deliverable, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Deliverable
	for _, tier := range Tiers {
		if d, ok := r.data[assessmentID][tier]; ok {
			out = append(out, clone(d))
		}
	}
	return out, nil
}

func clone(d Deliverable) Deliverable {
	d.Domains = append([]string{}, d.Domains...)
	return d
}

var _ Repo = (*MemoryRepo)(nil)

package catalog

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo stores questions in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Question
}

// NewMemoryRepo constructs a MemoryRepo, optionally pre-seeded.
func NewMemoryRepo(questions ...Question) *MemoryRepo {
	r := &MemoryRepo{byID: make(map[string]Question)}
	for _, q := range questions {
		r.byID[q.ID] = q
	}
	return r
}

func (r *MemoryRepo) ListActive(ctx context.Context) ([]Question, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Question, 0, len(r.byID))
	for _, q := range r.byID {
		if q.Active {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Question, error) {
	if err := ctx.Err(); err != nil {
		return Question{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	q, ok := r.byID[id]
	if !ok {
		return Question{}, ErrNotFound
	}
	return q, nil
}

func (r *MemoryRepo) Upsert(ctx context.Context, q Question) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[q.ID] = q
	return nil
}

var _ Repo = (*MemoryRepo)(nil)

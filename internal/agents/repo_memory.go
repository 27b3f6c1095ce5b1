package agents

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo stores agents in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Agent
}

// NewMemoryRepo constructs a MemoryRepo, optionally pre-seeded.
func NewMemoryRepo(agents ...Agent) *MemoryRepo {
	r := &MemoryRepo{byID: make(map[string]Agent)}
	for _, a := range agents {
		r.byID[a.ID] = a
	}
	return r
}

func (r *MemoryRepo) ListActive(ctx context.Context) ([]Agent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Agent, 0, len(r.byID))
	for _, a := range r.byID {
		if a.Active {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Agent, error) {
	if err := ctx.Err(); err != nil {
		return Agent{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[id]
	if !ok {
		return Agent{}, ErrNotFound
	}
	return a, nil
}

func (r *MemoryRepo) Upsert(ctx context.Context, a Agent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[a.ID] = a
	return nil
}

var _ Repo = (*MemoryRepo)(nil)

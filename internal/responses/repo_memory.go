package responses

import (
	"context"
	"sort"
	"sync"
)

type key struct {
	assessmentID string
	domain       string
	questionID   string
}

// MemoryRepo stores responses in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	rows map[key]Response
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{rows: make(map[key]Response)}
}

func (r *MemoryRepo) Upsert(ctx context.Context, resp Response) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key{resp.AssessmentID, resp.Domain, resp.QuestionID}
	if existing, ok := r.rows[k]; ok {
		resp.CreatedAt = existing.CreatedAt
	}
	r.rows[k] = resp
	return nil
}

func (r *MemoryRepo) ListByAssessment(ctx context.Context, assessmentID string) ([]Response, error) {
	return r.list(ctx, func(k key) bool { return k.assessmentID == assessmentID })
}

func (r *MemoryRepo) ListByDomain(ctx context.Context, assessmentID, domain string) ([]Response, error) {
	return r.list(ctx, func(k key) bool { return k.assessmentID == assessmentID && k.domain == domain })
}

func (r *MemoryRepo) list(ctx context.Context, match func(key) bool) ([]Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Response
	for k, v := range r.rows {
		if match(k) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Domain != out[j].Domain {
			return out[i].Domain < out[j].Domain
		}
		return out[i].QuestionID < out[j].QuestionID
	})
	return out, nil
}

var _ Repo = (*MemoryRepo)(nil)

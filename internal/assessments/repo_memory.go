package assessments

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo stores assessments in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu      sync.RWMutex
	byID    map[string]Assessment
	domains map[string]map[string]Domain
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID:    make(map[string]Assessment),
		domains: make(map[string]map[string]Domain),
	}
}

func (r *MemoryRepo) Create(ctx context.Context, a Assessment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[a.ID]; exists {
		return fmt.Errorf("assessment %s already exists", a.ID)
	}
	r.byID[a.ID] = a
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Assessment, error) {
	if err := ctx.Err(); err != nil {
		return Assessment{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[id]
	if !ok {
		return Assessment{}, ErrNotFound
	}
	return a, nil
}

func (r *MemoryRepo) UpdateProgress(ctx context.Context, id string, answered, percent int, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	a.QuestionsAnswered, a.Progress = ClampProgress(answered, a.TotalQuestions)
	a.UpdatedAt = at
	r.byID[id] = a
	return nil
}

func (r *MemoryRepo) Transition(ctx context.Context, id string, t Transition) (Assessment, error) {
	if err := ctx.Err(); err != nil {
		return Assessment{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return Assessment{}, ErrNotFound
	}
	if !contains(t.From, a.Status) {
		return a, fmt.Errorf("%w: %s->%s", ErrInvalidTransition, a.Status, t.To)
	}
	applyTransition(&a, t)
	r.byID[id] = a
	return a, nil
}

func applyTransition(a *Assessment, t Transition) {
	at := t.At
	a.Status = t.To
	a.UpdatedAt = at
	if t.PaymentRef != "" {
		ref := t.PaymentRef
		a.PaymentRef = &ref
		a.AmountCents = t.AmountCents
		if t.Currency != "" {
			a.Currency = t.Currency
		}
	}
	switch t.To {
	case StatusAnalysis:
		if a.AnalysisStartedAt == nil {
			a.AnalysisStartedAt = &at
		}
	case StatusCompleted, StatusFailed, StatusCancelled:
		a.CompletedAt = &at
	}
}

func (r *MemoryRepo) SetArtifactPath(ctx context.Context, id, artifact, path string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	p := path
	switch artifact {
	case ArtifactExecutiveSummary:
		a.ExecutiveSummaryPath = &p
	case ArtifactDetailedAnalysis:
		a.DetailedAnalysisPath = &p
	case ArtifactImplementationKit:
		a.ImplementationKitPath = &p
	default:
		return fmt.Errorf("unknown artifact %q", artifact)
	}
	a.UpdatedAt = at
	r.byID[id] = a
	return nil
}

func (r *MemoryRepo) ListByStatus(ctx context.Context, status string, limit int) ([]Assessment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Assessment
	for _, a := range r.byID {
		if a.Status == status {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.Before(out[j].UpdatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) EnsureDomain(ctx context.Context, assessmentID, domain, agentID string, at time.Time) (Domain, error) {
	if err := ctx.Err(); err != nil {
		return Domain{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[assessmentID]; !ok {
		return Domain{}, ErrNotFound
	}
	byName, ok := r.domains[assessmentID]
	if !ok {
		byName = make(map[string]Domain)
		r.domains[assessmentID] = byName
	}
	d, ok := byName[domain]
	if !ok {
		d = Domain{
			ID:              uuid.NewString(),
			AssessmentID:    assessmentID,
			Name:            domain,
			Recommendations: []string{},
		}
	}
	if !d.AnalysisComplete && agentID != "" {
		d.AgentID = agentID
	}
	d.UpdatedAt = at
	byName[domain] = d
	return cloneDomain(d), nil
}

func (r *MemoryRepo) GetDomain(ctx context.Context, assessmentID, domain string) (Domain, error) {
	if err := ctx.Err(); err != nil {
		return Domain{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.domains[assessmentID][domain]
	if !ok {
		return Domain{}, ErrNotFound
	}
	return cloneDomain(d), nil
}

// ListDomains returns existing domain rows in presentation order.
func (r *MemoryRepo) ListDomains(ctx context.Context, assessmentID string) ([]Domain, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	byName := r.domains[assessmentID]
	out := make([]Domain, 0, len(byName))
	for _, slug := range Domains() {
		if d, ok := byName[slug]; ok {
			out = append(out, cloneDomain(d))
		}
	}
	return out, nil
}

func (r *MemoryRepo) SaveDomainResult(ctx context.Context, assessmentID, domain string, res DomainResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.domains[assessmentID][domain]
	if !ok {
		return ErrNotFound
	}
	score := res.Score
	completedAt := res.CompletedAt
	d.Score = &score
	d.HealthTier = res.HealthTier
	d.Summary = res.Summary
	d.Recommendations = append([]string{}, res.Recommendations...)
	if res.AgentID != "" {
		d.AgentID = res.AgentID
	}
	d.AnalysisComplete = true
	d.CompletedAt = &completedAt
	d.UpdatedAt = completedAt
	r.domains[assessmentID][domain] = d
	return nil
}

func cloneDomain(d Domain) Domain {
	d.Recommendations = append([]string{}, d.Recommendations...)
	return d
}

var _ Repo = (*MemoryRepo)(nil)

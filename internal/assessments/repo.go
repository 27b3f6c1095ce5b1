package assessments

import (
	"context"
	"time"
)

// Repo persists assessments and their per-domain outcomes.
type Repo interface {
	Create(ctx context.Context, a Assessment) error
	GetByID(ctx context.Context, id string) (Assessment, error)
	UpdateProgress(ctx context.Context, id string, answered, percent int, at time.Time) error
	// Transition applies t atomically; ErrInvalidTransition when the current
	// status is not in t.From.
	Transition(ctx context.Context, id string, t Transition) (Assessment, error)
	SetArtifactPath(ctx context.Context, id, artifact, path string, at time.Time) error
	ListByStatus(ctx context.Context, status string, limit int) ([]Assessment, error)

	// EnsureDomain creates the domain row if missing and records the assigned
	// agent while the domain is incomplete.
	EnsureDomain(ctx context.Context, assessmentID, domain, agentID string, at time.Time) (Domain, error)
	GetDomain(ctx context.Context, assessmentID, domain string) (Domain, error)
	ListDomains(ctx context.Context, assessmentID string) ([]Domain, error)
	SaveDomainResult(ctx context.Context, assessmentID, domain string, r DomainResult) error
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

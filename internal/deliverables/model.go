// Package deliverables assembles the three tiered assessment deliverables
// from whatever domain results exist when a tier comes due.
package deliverables

import (
	"context"
	"errors"
	"time"

	"assessment-backend/internal/assessments"
)

var ErrNotFound = errors.New("deliverable not found")

// Tiers in issue order.
var Tiers = []string{
	assessments.ArtifactExecutiveSummary,
	assessments.ArtifactDetailedAnalysis,
	assessments.ArtifactImplementationKit,
}

// Deliverable records the latest assembly of one tier.
type Deliverable struct {
	ID           string    `json:"id"`
	AssessmentID string    `json:"assessmentId"`
	Tier         string    `json:"tier"`
	Path         string    `json:"path"`
	ContentHash  string    `json:"contentHash"`
	Domains      []string  `json:"domains"`
	Degraded     bool      `json:"degraded"`
	AssembledAt  time.Time `json:"assembledAt"`
}

// Repo keeps one row per (assessment, tier).
type Repo interface {
	Get(ctx context.Context, assessmentID, tier string) (Deliverable, error)
	Upsert(ctx context.Context, d Deliverable) error
	ListByAssessment(ctx context.Context, assessmentID string) ([]Deliverable, error)
}

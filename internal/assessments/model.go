package assessments

import (
	"time"

	"assessment-backend/internal/shared/config"
)

const (
	StatusPending         = "pending"
	StatusInProgress      = "in_progress"
	StatusAwaitingPayment = "awaiting_payment"
	StatusPaid            = "paid"
	StatusAnalysis        = "analysis"
	StatusCompleted       = "completed"
	StatusFailed          = "failed"
	StatusCancelled       = "cancelled"
)

// Artifact identifiers double as deliverable tier names.
const (
	ArtifactExecutiveSummary  = "executive_summary"
	ArtifactDetailedAnalysis  = "detailed_analysis"
	ArtifactImplementationKit = "implementation_kit"
)

const (
	HealthCritical  = "critical"
	HealthWarning   = "warning"
	HealthGood      = "good"
	HealthExcellent = "excellent"
)

// Assessment is one paying customer engagement.
type Assessment struct {
	ID                    string     `json:"id"`
	UserID                string     `json:"userId"`
	Industry              string     `json:"industry"`
	Status                string     `json:"status"`
	Progress              int        `json:"progress"`
	QuestionsAnswered     int        `json:"questionsAnswered"`
	TotalQuestions        int        `json:"totalQuestions"`
	DocumentsUploaded     int        `json:"documentsUploaded"`
	ExecutiveSummaryPath  *string    `json:"executiveSummaryPath,omitempty"`
	DetailedAnalysisPath  *string    `json:"detailedAnalysisPath,omitempty"`
	ImplementationKitPath *string    `json:"implementationKitPath,omitempty"`
	PaymentRef            *string    `json:"paymentRef,omitempty"`
	AmountCents           int64      `json:"amountCents"`
	Currency              string     `json:"currency"`
	AnalysisStartedAt     *time.Time `json:"analysisStartedAt,omitempty"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
	CompletedAt           *time.Time `json:"completedAt,omitempty"`
}

// ArtifactPath returns the stored path for an artifact, or nil.
func (a Assessment) ArtifactPath(artifact string) *string {
	switch artifact {
	case ArtifactExecutiveSummary:
		return a.ExecutiveSummaryPath
	case ArtifactDetailedAnalysis:
		return a.DetailedAnalysisPath
	case ArtifactImplementationKit:
		return a.ImplementationKitPath
	}
	return nil
}

// Terminal reports whether no further lifecycle transitions are possible.
func (a Assessment) Terminal() bool {
	switch a.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Domain is the analysis outcome for one of the 12 domains of an assessment.
type Domain struct {
	ID               string     `json:"id"`
	AssessmentID     string     `json:"assessmentId"`
	Name             string     `json:"domain"`
	Score            *float64   `json:"score,omitempty"`
	HealthTier       string     `json:"healthTier,omitempty"`
	Summary          string     `json:"summary,omitempty"`
	Recommendations  []string   `json:"recommendations"`
	AgentID          string     `json:"agentId,omitempty"`
	AnalysisComplete bool       `json:"analysisComplete"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// DomainResult is what a completed analysis job writes into its Domain.
type DomainResult struct {
	Score           float64
	HealthTier      string
	Summary         string
	Recommendations []string
	AgentID         string
	CompletedAt     time.Time
}

// Transition describes a conditional status change. It applies only when the
// current status is one of From.
type Transition struct {
	From []string
	To   string
	At   time.Time

	// Set on awaiting_payment -> paid.
	PaymentRef  string
	AmountCents int64
	Currency    string
}

// HealthTierFor maps a 0-100 score to a health tier.
func HealthTierFor(score float64, th config.HealthThresholds) string {
	switch {
	case score < th.Warning:
		return HealthCritical
	case score < th.Good:
		return HealthWarning
	case score < th.Excellent:
		return HealthGood
	default:
		return HealthExcellent
	}
}

// ClampProgress derives the stored counters from a raw answered count.
func ClampProgress(answered, total int) (int, int) {
	if answered < 0 {
		answered = 0
	}
	if total <= 0 {
		return 0, 0
	}
	if answered > total {
		answered = total
	}
	percent := (answered*100 + total/2) / total
	if percent > 100 {
		percent = 100
	}
	return answered, percent
}

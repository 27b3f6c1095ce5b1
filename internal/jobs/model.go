// Package jobs schedules and tracks per-domain analysis jobs. Each
// (assessment, domain) pair has a sequential job history with at most one
// queued or processing row at any time.
package jobs

import (
	"errors"
	"time"
)

const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
)

var (
	ErrNotFound             = errors.New("job not found")
	ErrInvalidTransition    = errors.New("invalid job transition")
	ErrDuplicateOutstanding = errors.New("domain already has an outstanding job")
	ErrAlreadyComplete      = errors.New("domain analysis already complete")
	ErrRetryBudgetExhausted = errors.New("domain retry budget exhausted")
	ErrInvalidState         = errors.New("assessment not in a dispatchable state")
)

// Reasons a domain is left alone by CreateMissing.
const (
	SkipOutstanding = "outstanding"
	SkipCompleted   = "completed"
	SkipExhausted   = "exhausted"
)

// Job is one dispatch attempt for one domain.
type Job struct {
	ID             string     `json:"id"`
	AssessmentID   string     `json:"assessmentId"`
	Domain         string     `json:"domain"`
	AgentID        string     `json:"agentId"`
	Attempt        int        `json:"attempt"`
	Status         string     `json:"status"`
	Prompt         string     `json:"-"`
	Response       string     `json:"-"`
	TokensUsed     int        `json:"tokensUsed"`
	ErrorCode      string     `json:"errorCode,omitempty"`
	ErrorMessage   string     `json:"errorMessage,omitempty"`
	ErrorRetryable *bool      `json:"errorRetryable,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	StartedAt      *time.Time `json:"startedAt,omitempty"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// Outstanding reports whether the job still occupies its domain slot.
func (j Job) Outstanding() bool {
	return j.Status == StatusQueued || j.Status == StatusProcessing
}

// Candidate is a domain to dispatch and the agent chosen for it.
type Candidate struct {
	Domain  string
	AgentID string
}

// Update carries the payload written alongside a status transition. Nil and
// empty fields leave the stored value untouched.
type Update struct {
	At           time.Time
	Response     *string
	TokensUsed   int
	ErrorCode    string
	ErrorMessage string
	Retryable    *bool
}

// DomainState summarizes the job history of one domain.
type DomainState struct {
	Attempts    int
	Outstanding bool
	Completed   bool
}

// Exhausted reports a domain that failed every allowed attempt.
func (s DomainState) Exhausted(budget int) bool {
	return !s.Outstanding && !s.Completed && s.Attempts >= budget
}

// Settled reports a domain that will see no further job activity.
func (s DomainState) Settled(budget int) bool {
	return s.Completed || s.Exhausted(budget)
}

func (s *DomainState) add(status string, n int) {
	switch status {
	case StatusCancelled:
		return
	case StatusQueued, StatusProcessing:
		s.Outstanding = true
	case StatusCompleted:
		s.Completed = true
	}
	s.Attempts += n
}

// States folds a job history into per-domain summaries.
func States(history []Job) map[string]DomainState {
	out := make(map[string]DomainState)
	for _, j := range history {
		s := out[j.Domain]
		s.add(j.Status, 1)
		out[j.Domain] = s
	}
	return out
}

type plannedJob struct {
	Candidate
	Attempt int
}

// plan decides, per candidate, whether a new job row is created.
func plan(states map[string]DomainState, candidates []Candidate, maxAttempts int) ([]plannedJob, map[string]string) {
	var create []plannedJob
	skipped := make(map[string]string)
	for _, c := range candidates {
		s := states[c.Domain]
		switch {
		case s.Outstanding:
			skipped[c.Domain] = SkipOutstanding
		case s.Completed:
			skipped[c.Domain] = SkipCompleted
		case s.Attempts >= maxAttempts:
			skipped[c.Domain] = SkipExhausted
		default:
			create = append(create, plannedJob{Candidate: c, Attempt: s.Attempts + 1})
		}
	}
	return create, skipped
}

func isOneOf(status string, list []string) bool {
	for _, s := range list {
		if s == status {
			return true
		}
	}
	return false
}

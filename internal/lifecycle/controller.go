// Package lifecycle sequences an assessment from first answer through
// payment, per-domain analysis and deliverable assembly to a terminal state.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"assessment-backend/internal/assessments"
	"assessment-backend/internal/catalog"
	"assessment-backend/internal/deliverables"
	"assessment-backend/internal/jobs"
	"assessment-backend/internal/progress"
	"assessment-backend/internal/responses"
	"assessment-backend/internal/shared/config"
	"assessment-backend/internal/shared/metrics"
	"assessment-backend/internal/shared/requestid"
	"assessment-backend/internal/shared/telemetry"
)

var (
	ErrInvalidState    = errors.New("operation not allowed in current assessment state")
	ErrInvalidResponse = errors.New("invalid response")
	ErrInvalidInput    = errors.New("invalid input")
)

// Controller is the top-level assessment state machine.
type Controller struct {
	Assessments assessments.Repo
	Responses   responses.Repo
	Bank        *catalog.Bank
	Tracker     *progress.Tracker
	Scheduler   *jobs.Scheduler
	Aggregator  *deliverables.Aggregator
	Policy      config.Policy
	Now         func() time.Time
}

// NewController wires a Controller and registers it for job settlement
// callbacks.
func NewController(assessmentRepo assessments.Repo, responseRepo responses.Repo, bank *catalog.Bank, scheduler *jobs.Scheduler, aggregator *deliverables.Aggregator, policy config.Policy) *Controller {
	c := &Controller{
		Assessments: assessmentRepo,
		Responses:   responseRepo,
		Bank:        bank,
		Tracker:     &progress.Tracker{Bank: bank, Responses: responseRepo},
		Scheduler:   scheduler,
		Aggregator:  aggregator,
		Policy:      policy,
		Now:         func() time.Time { return time.Now().UTC() },
	}
	scheduler.OnSettled = c.JobSettled
	return c
}

// CreateInput starts a new assessment.
type CreateInput struct {
	UserID   string
	Industry string
}

// Create opens a pending assessment sized to the policy question count.
func (c *Controller) Create(ctx context.Context, in CreateInput) (assessments.Assessment, error) {
	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		return assessments.Assessment{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	now := c.now()
	a := assessments.Assessment{
		ID:             uuid.NewString(),
		UserID:         userID,
		Industry:       strings.ToLower(strings.TrimSpace(in.Industry)),
		Status:         assessments.StatusPending,
		TotalQuestions: c.Policy.TotalQuestions,
		Currency:       "USD",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := c.Assessments.Create(ctx, a); err != nil {
		return assessments.Assessment{}, err
	}
	telemetry.Info("assessment.status", map[string]any{
		"request_id":        requestid.From(ctx),
		"assessment_id":     a.ID,
		"user_id":           a.UserID,
		"industry":          a.Industry,
		"status":            a.Status,
		"status_transition": "->pending",
	})
	return a, nil
}

// ResponseInput is one answer submitted by the respondent. When Score is
// nil and Text matches an answer option, the option's score is used.
type ResponseInput struct {
	QuestionID string
	Text       string
	Score      *float64
}

// RecordResponse stores an answer, refreshes the progress counters and
// advances pending -> in_progress -> awaiting_payment as warranted.
func (c *Controller) RecordResponse(ctx context.Context, assessmentID string, in ResponseInput) (assessments.Assessment, progress.Snapshot, error) {
	a, err := c.Assessments.GetByID(ctx, assessmentID)
	if err != nil {
		return assessments.Assessment{}, progress.Snapshot{}, err
	}
	switch a.Status {
	case assessments.StatusPending, assessments.StatusInProgress, assessments.StatusAwaitingPayment:
	default:
		return a, progress.Snapshot{}, fmt.Errorf("%w: responses are closed in %s", ErrInvalidState, a.Status)
	}

	existing, err := c.Responses.ListByAssessment(ctx, a.ID)
	if err != nil {
		return a, progress.Snapshot{}, fmt.Errorf("list responses: %w", err)
	}
	q, err := c.Bank.Applicable(ctx, a.Industry, strings.TrimSpace(in.QuestionID), responses.Answers(existing))
	if err != nil {
		return a, progress.Snapshot{}, err
	}
	score := in.Score
	if score == nil {
		if s, ok := q.ScoreFor(in.Text); ok {
			score = &s
		}
	}
	if score != nil && (math.IsNaN(*score) || *score < 0 || *score > 100) {
		return a, progress.Snapshot{}, fmt.Errorf("%w: score must be between 0 and 100", ErrInvalidResponse)
	}
	if score == nil && strings.TrimSpace(in.Text) == "" {
		return a, progress.Snapshot{}, fmt.Errorf("%w: score or text is required", ErrInvalidResponse)
	}

	now := c.now()
	err = c.Responses.Upsert(ctx, responses.Response{
		AssessmentID: a.ID,
		Domain:       q.Domain,
		QuestionID:   q.ID,
		Text:         strings.TrimSpace(in.Text),
		Score:        score,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return a, progress.Snapshot{}, fmt.Errorf("save response: %w", err)
	}

	snap, err := c.Tracker.Progress(ctx, a)
	if err != nil {
		return a, progress.Snapshot{}, err
	}
	if err := c.Assessments.UpdateProgress(ctx, a.ID, snap.QuestionsAnswered, snap.Percent, now); err != nil {
		return a, snap, fmt.Errorf("update progress: %w", err)
	}

	if a.Status == assessments.StatusPending && snap.QuestionsAnswered > 0 {
		if a, err = c.transition(ctx, a.ID, []string{assessments.StatusPending}, assessments.StatusInProgress); err != nil {
			return a, snap, err
		}
	}
	if a.Status == assessments.StatusInProgress && snap.CoreComplete {
		if a, err = c.transition(ctx, a.ID, []string{assessments.StatusInProgress}, assessments.StatusAwaitingPayment); err != nil {
			return a, snap, err
		}
	}
	a, err = c.Assessments.GetByID(ctx, a.ID)
	return a, snap, err
}

// Payment is the settlement event from the payment provider.
type Payment struct {
	Reference   string
	AmountCents int64
	Currency    string
}

// ConfirmPayment moves awaiting_payment -> paid and starts analysis. A repeat
// of an already applied settlement returns the current assessment.
func (c *Controller) ConfirmPayment(ctx context.Context, assessmentID string, p Payment) (assessments.Assessment, error) {
	ref := strings.TrimSpace(p.Reference)
	if ref == "" {
		return assessments.Assessment{}, fmt.Errorf("%w: payment reference is required", ErrInvalidInput)
	}
	a, err := c.Assessments.Transition(ctx, assessmentID, assessments.Transition{
		From:        []string{assessments.StatusAwaitingPayment},
		To:          assessments.StatusPaid,
		At:          c.now(),
		PaymentRef:  ref,
		AmountCents: p.AmountCents,
		Currency:    strings.ToUpper(strings.TrimSpace(p.Currency)),
	})
	if errors.Is(err, assessments.ErrInvalidTransition) {
		if a.PaymentRef != nil && *a.PaymentRef == ref {
			return a, nil
		}
		return a, fmt.Errorf("%w: cannot confirm payment in %s", ErrInvalidState, a.Status)
	}
	if err != nil {
		return a, err
	}
	c.logTransition(ctx, a, assessments.StatusAwaitingPayment)
	return c.BeginAnalysis(ctx, assessmentID)
}

// BeginAnalysis moves paid -> analysis and dispatches every domain. Dispatch
// failures leave the assessment in analysis; the sweeper repairs them.
func (c *Controller) BeginAnalysis(ctx context.Context, assessmentID string) (assessments.Assessment, error) {
	a, err := c.transition(ctx, assessmentID, []string{assessments.StatusPaid}, assessments.StatusAnalysis)
	if err != nil {
		return a, err
	}
	if _, err := c.Scheduler.Dispatch(ctx, assessmentID); err != nil {
		telemetry.Error("assessment.dispatch_failed", map[string]any{
			"request_id":    requestid.From(ctx),
			"assessment_id": assessmentID,
			"error":         err.Error(),
		})
		return a, nil
	}
	return c.Reconcile(ctx, assessmentID)
}

// Cancel moves any non-terminal assessment to cancelled and cancels its
// outstanding jobs.
func (c *Controller) Cancel(ctx context.Context, assessmentID string) (assessments.Assessment, error) {
	cur, err := c.Assessments.GetByID(ctx, assessmentID)
	if err != nil {
		return cur, err
	}
	if cur.Terminal() {
		return cur, fmt.Errorf("%w: assessment already %s", ErrInvalidState, cur.Status)
	}
	a, err := c.transition(ctx, assessmentID, []string{cur.Status}, assessments.StatusCancelled)
	if err != nil {
		return a, err
	}
	if _, err := c.Scheduler.CancelAssessment(ctx, assessmentID); err != nil {
		return a, fmt.Errorf("cancel jobs: %w", err)
	}
	return a, nil
}

// Reconcile assembles due deliverables and applies the terminal decision:
// completed once the implementation kit exists, failed once the final SLA
// window passed without the headline quorum and nothing is left to run.
func (c *Controller) Reconcile(ctx context.Context, assessmentID string) (assessments.Assessment, error) {
	out, err := c.Aggregator.Reconcile(ctx, assessmentID)
	if err != nil {
		return out.Assessment, err
	}
	a := out.Assessment
	if a.Status != assessments.StatusAnalysis {
		return a, nil
	}
	switch {
	case out.Issued(assessments.ArtifactImplementationKit):
		a, err = c.transition(ctx, a.ID, []string{assessments.StatusAnalysis}, assessments.StatusCompleted)
		if err == nil {
			metrics.IncAssessmentsCompleted()
		}
	case out.Elapsed >= c.Policy.ImplementationKitAfter && !out.QuorumComplete && !out.Outstanding:
		a, err = c.transition(ctx, a.ID, []string{assessments.StatusAnalysis}, assessments.StatusFailed)
		if err == nil {
			metrics.IncAssessmentsFailed()
		}
	}
	if errors.Is(err, ErrInvalidState) {
		// Another reconcile got there first.
		return c.Assessments.GetByID(ctx, assessmentID)
	}
	return a, err
}

// JobSettled is the scheduler callback after each job completion or failure.
func (c *Controller) JobSettled(ctx context.Context, assessmentID string) {
	if _, err := c.Reconcile(ctx, assessmentID); err != nil {
		telemetry.Error("assessment.reconcile_failed", map[string]any{
			"request_id":    requestid.From(ctx),
			"assessment_id": assessmentID,
			"error":         err.Error(),
		})
	}
}

// Get returns an assessment.
func (c *Controller) Get(ctx context.Context, assessmentID string) (assessments.Assessment, error) {
	return c.Assessments.GetByID(ctx, assessmentID)
}

// Progress derives the live progress snapshot.
func (c *Controller) Progress(ctx context.Context, assessmentID string) (progress.Snapshot, error) {
	a, err := c.Assessments.GetByID(ctx, assessmentID)
	if err != nil {
		return progress.Snapshot{}, err
	}
	return c.Tracker.Progress(ctx, a)
}

// Domains lists the per-domain analysis rows.
func (c *Controller) Domains(ctx context.Context, assessmentID string) ([]assessments.Domain, error) {
	return c.Assessments.ListDomains(ctx, assessmentID)
}

// Deliverables lists issued tier records.
func (c *Controller) Deliverables(ctx context.Context, assessmentID string) ([]deliverables.Deliverable, error) {
	return c.Aggregator.ListByAssessment(ctx, assessmentID)
}

func (c *Controller) transition(ctx context.Context, id string, from []string, to string) (assessments.Assessment, error) {
	a, err := c.Assessments.Transition(ctx, id, assessments.Transition{From: from, To: to, At: c.now()})
	if errors.Is(err, assessments.ErrInvalidTransition) {
		return a, fmt.Errorf("%w: %s->%s", ErrInvalidState, a.Status, to)
	}
	if err != nil {
		return a, err
	}
	c.logTransition(ctx, a, from[0])
	return a, nil
}

func (c *Controller) logTransition(ctx context.Context, a assessments.Assessment, from string) {
	telemetry.Info("assessment.status", map[string]any{
		"request_id":        requestid.From(ctx),
		"assessment_id":     a.ID,
		"user_id":           a.UserID,
		"status":            a.Status,
		"status_transition": from + "->" + a.Status,
		"progress":          a.Progress,
	})
}

func (c *Controller) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now().UTC()
}

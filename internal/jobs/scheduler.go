package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"assessment-backend/internal/agents"
	"assessment-backend/internal/assessments"
	"assessment-backend/internal/shared/config"
	"assessment-backend/internal/shared/metrics"
	"assessment-backend/internal/shared/requestid"
	"assessment-backend/internal/shared/telemetry"
)

// Enqueuer hands a queued job to whatever executes it.
type Enqueuer interface {
	Enqueue(ctx context.Context, job Job) error
}

// EnqueueFunc adapts a function to Enqueuer.
type EnqueueFunc func(ctx context.Context, job Job) error

func (f EnqueueFunc) Enqueue(ctx context.Context, job Job) error { return f(ctx, job) }

// SettledFunc is called after every job completion or failure.
type SettledFunc func(ctx context.Context, assessmentID string)

// Scheduler drives per-domain analysis jobs for assessments in analysis.
type Scheduler struct {
	Jobs        Repo
	Agents      agents.Repo
	Assessments assessments.Repo
	Policy      config.Policy
	Queue       Enqueuer
	Now         func() time.Time
	OnSettled   SettledFunc
}

// NewScheduler wires a Scheduler with the wall clock.
func NewScheduler(jobRepo Repo, agentRepo agents.Repo, assessmentRepo assessments.Repo, policy config.Policy, queue Enqueuer) *Scheduler {
	return &Scheduler{
		Jobs:        jobRepo,
		Agents:      agentRepo,
		Assessments: assessmentRepo,
		Policy:      policy,
		Queue:       queue,
		Now:         func() time.Time { return time.Now().UTC() },
	}
}

// DispatchResult reports what one Dispatch call did.
type DispatchResult struct {
	Created []Job
	Skipped map[string]string
}

// Dispatch creates a queued job for every domain that has none outstanding,
// is not complete and has retries left. Calling it again is a no-op for
// domains that are already covered.
func (s *Scheduler) Dispatch(ctx context.Context, assessmentID string) (DispatchResult, error) {
	return s.dispatch(ctx, assessmentID, assessments.Domains())
}

// DispatchDomain dispatches a single domain and reports why it was refused.
func (s *Scheduler) DispatchDomain(ctx context.Context, assessmentID, domain string) (Job, error) {
	if !assessments.IsDomain(domain) {
		return Job{}, fmt.Errorf("unknown domain %q", domain)
	}
	res, err := s.dispatch(ctx, assessmentID, []string{domain})
	if err != nil {
		return Job{}, err
	}
	if len(res.Created) == 1 {
		return res.Created[0], nil
	}
	switch res.Skipped[domain] {
	case SkipOutstanding:
		return Job{}, ErrDuplicateOutstanding
	case SkipCompleted:
		return Job{}, ErrAlreadyComplete
	default:
		return Job{}, ErrRetryBudgetExhausted
	}
}

func (s *Scheduler) dispatch(ctx context.Context, assessmentID string, domains []string) (DispatchResult, error) {
	a, err := s.Assessments.GetByID(ctx, assessmentID)
	if err != nil {
		return DispatchResult{}, fmt.Errorf("load assessment: %w", err)
	}
	if !dispatchable(a.Status) {
		return DispatchResult{}, fmt.Errorf("%w: %s", ErrInvalidState, a.Status)
	}
	pool, err := s.Agents.ListActive(ctx)
	if err != nil {
		return DispatchResult{}, fmt.Errorf("list agents: %w", err)
	}
	candidates := make([]Candidate, 0, len(domains))
	for _, domain := range domains {
		agent, err := agents.Select(pool, domain)
		if err != nil {
			return DispatchResult{}, fmt.Errorf("select agent domain=%s: %w", domain, err)
		}
		candidates = append(candidates, Candidate{Domain: domain, AgentID: agent.ID})
	}

	now := s.now()
	created, skipped, err := s.Jobs.CreateMissing(ctx, assessmentID, candidates, s.Policy.RetryBudget, now)
	if err != nil {
		return DispatchResult{}, fmt.Errorf("create jobs: %w", err)
	}
	for _, j := range created {
		if _, err := s.Assessments.EnsureDomain(ctx, assessmentID, j.Domain, j.AgentID, now); err != nil {
			return DispatchResult{Created: created, Skipped: skipped}, fmt.Errorf("ensure domain %s: %w", j.Domain, err)
		}
	}
	metrics.IncJobsDispatched(len(created))
	for _, j := range created {
		telemetry.Info("job.status", map[string]any{
			"request_id":        requestid.From(ctx),
			"assessment_id":     assessmentID,
			"job_id":            j.ID,
			"domain":            j.Domain,
			"agent_id":          j.AgentID,
			"attempt":           j.Attempt,
			"status":            StatusQueued,
			"status_transition": "->queued",
		})
		s.enqueue(ctx, j)
	}
	return DispatchResult{Created: created, Skipped: skipped}, nil
}

func (s *Scheduler) enqueue(ctx context.Context, j Job) {
	if s.Queue == nil {
		return
	}
	if err := s.Queue.Enqueue(ctx, j); err != nil {
		// The sweeper re-enqueues queued jobs that go stale.
		telemetry.Warn("job.enqueue_failed", map[string]any{
			"request_id":    requestid.From(ctx),
			"assessment_id": j.AssessmentID,
			"job_id":        j.ID,
			"domain":        j.Domain,
			"error":         err.Error(),
		})
	}
}

// Start moves a job from queued to processing. A job in any other state is
// left alone and started is false.
func (s *Scheduler) Start(ctx context.Context, jobID string) (Job, bool, error) {
	j, err := s.Jobs.Transition(ctx, jobID, []string{StatusQueued}, StatusProcessing, Update{At: s.now()})
	if errors.Is(err, ErrInvalidTransition) {
		s.logIgnored(ctx, j, StatusProcessing, err)
		return j, false, nil
	}
	if err != nil {
		return Job{}, false, err
	}
	metrics.IncJobsStarted()
	s.logStatus(ctx, j, "queued->processing", nil)
	return j, true, nil
}

// Complete records a successful agent response. An unparseable response
// fails the job instead. Calls for jobs no longer processing are ignored.
func (s *Scheduler) Complete(ctx context.Context, jobID, response string, tokensUsed int) error {
	finding, parseErr := agents.ParseFinding(response)
	if parseErr != nil {
		return s.fail(ctx, jobID, parseErr, &response, tokensUsed)
	}
	now := s.now()
	j, err := s.Jobs.Transition(ctx, jobID, []string{StatusProcessing}, StatusCompleted, Update{
		At:         now,
		Response:   &response,
		TokensUsed: tokensUsed,
	})
	if errors.Is(err, ErrInvalidTransition) {
		s.logIgnored(ctx, j, StatusCompleted, err)
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.writeDomain(ctx, j, finding, now); err != nil {
		return err
	}
	metrics.IncJobsCompleted()
	s.logStatus(ctx, j, "processing->completed", map[string]any{
		"tokens_used": tokensUsed,
		"score":       finding.Score,
	})
	s.settled(ctx, j.AssessmentID)
	return nil
}

func (s *Scheduler) writeDomain(ctx context.Context, j Job, f agents.Finding, at time.Time) error {
	result := assessments.DomainResult{
		Score:           f.Score,
		HealthTier:      assessments.HealthTierFor(f.Score, s.Policy.Health),
		Summary:         f.Summary,
		Recommendations: f.Recommendations,
		AgentID:         j.AgentID,
		CompletedAt:     at,
	}
	err := s.Assessments.SaveDomainResult(ctx, j.AssessmentID, j.Domain, result)
	if errors.Is(err, assessments.ErrNotFound) {
		// Domain rows are created at dispatch; recreate one lost in between.
		if _, err = s.Assessments.EnsureDomain(ctx, j.AssessmentID, j.Domain, j.AgentID, at); err == nil {
			err = s.Assessments.SaveDomainResult(ctx, j.AssessmentID, j.Domain, result)
		}
	}
	if err != nil {
		return fmt.Errorf("save domain result %s/%s: %w", j.AssessmentID, j.Domain, err)
	}
	return nil
}

// Fail records a failed attempt and re-dispatches the domain while the retry
// budget allows. Calls for jobs no longer processing are ignored.
func (s *Scheduler) Fail(ctx context.Context, jobID string, cause error) error {
	return s.fail(ctx, jobID, cause, nil, 0)
}

func (s *Scheduler) fail(ctx context.Context, jobID string, cause error, response *string, tokensUsed int) error {
	code, retryable := classifyFailure(cause)
	j, err := s.Jobs.Transition(ctx, jobID, []string{StatusProcessing}, StatusFailed, Update{
		At:           s.now(),
		Response:     response,
		TokensUsed:   tokensUsed,
		ErrorCode:    code,
		ErrorMessage: sanitizeError(cause),
		Retryable:    &retryable,
	})
	if errors.Is(err, ErrInvalidTransition) {
		s.logIgnored(ctx, j, StatusFailed, err)
		return nil
	}
	if err != nil {
		return err
	}
	metrics.IncJobsFailed()
	s.logStatus(ctx, j, "processing->failed", map[string]any{
		"error_code":      code,
		"error_retryable": retryable,
		"error":           sanitizeError(cause),
	})

	retry, err := s.DispatchDomain(ctx, j.AssessmentID, j.Domain)
	switch {
	case err == nil:
		metrics.IncJobsRetried()
		telemetry.Info("job.retry", map[string]any{
			"request_id":    requestid.From(ctx),
			"assessment_id": j.AssessmentID,
			"domain":        j.Domain,
			"job_id":        retry.ID,
			"attempt":       retry.Attempt,
		})
	case errors.Is(err, ErrRetryBudgetExhausted):
		metrics.IncJobsExhausted()
		telemetry.Warn("job.retry_exhausted", map[string]any{
			"request_id":    requestid.From(ctx),
			"assessment_id": j.AssessmentID,
			"domain":        j.Domain,
			"attempts":      j.Attempt,
		})
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrDuplicateOutstanding), errors.Is(err, ErrAlreadyComplete):
		telemetry.Info("job.retry_skipped", map[string]any{
			"request_id":    requestid.From(ctx),
			"assessment_id": j.AssessmentID,
			"domain":        j.Domain,
			"reason":        err.Error(),
		})
	default:
		// Repair picks the domain up again on the next sweep.
		telemetry.Error("job.retry_failed", map[string]any{
			"request_id":    requestid.From(ctx),
			"assessment_id": j.AssessmentID,
			"domain":        j.Domain,
			"error":         err.Error(),
		})
	}
	s.settled(ctx, j.AssessmentID)
	return nil
}

// CancelAssessment cancels every outstanding job of an assessment. Results of
// agent calls still in flight are discarded when they arrive.
func (s *Scheduler) CancelAssessment(ctx context.Context, assessmentID string) (int, error) {
	history, err := s.Jobs.ListByAssessment(ctx, assessmentID)
	if err != nil {
		return 0, err
	}
	retryable := false
	n := 0
	for _, j := range history {
		if !j.Outstanding() {
			continue
		}
		prev := j.Status
		cancelled, err := s.Jobs.Transition(ctx, j.ID, []string{StatusQueued, StatusProcessing}, StatusCancelled, Update{
			At:           s.now(),
			ErrorCode:    ErrorCodeCancelled,
			ErrorMessage: "assessment cancelled",
			Retryable:    &retryable,
		})
		if errors.Is(err, ErrInvalidTransition) {
			continue
		}
		if err != nil {
			return n, err
		}
		n++
		s.logStatus(ctx, cancelled, prev+"->cancelled", nil)
	}
	metrics.IncJobsCancelled(n)
	return n, nil
}

// SweepTimeouts fails jobs stuck in processing beyond the policy timeout and
// re-enqueues queued jobs nobody picked up.
func (s *Scheduler) SweepTimeouts(ctx context.Context, limit int) (timedOut, requeued int, err error) {
	cutoff := s.now().Add(-s.Policy.JobTimeout)
	stuck, err := s.Jobs.ListStale(ctx, StatusProcessing, cutoff, limit)
	if err != nil {
		return 0, 0, fmt.Errorf("list stuck jobs: %w", err)
	}
	for _, j := range stuck {
		metrics.IncJobsTimedOut()
		cause := fmt.Errorf("%w: processing exceeded %s", agents.ErrTimeout, s.Policy.JobTimeout)
		if err := s.Fail(ctx, j.ID, cause); err != nil {
			return timedOut, requeued, err
		}
		timedOut++
	}

	idle, err := s.Jobs.ListStale(ctx, StatusQueued, cutoff, limit)
	if err != nil {
		return timedOut, requeued, fmt.Errorf("list idle jobs: %w", err)
	}
	for _, j := range idle {
		touched, err := s.Jobs.Transition(ctx, j.ID, []string{StatusQueued}, StatusQueued, Update{At: s.now()})
		if errors.Is(err, ErrInvalidTransition) {
			continue
		}
		if err != nil {
			return timedOut, requeued, err
		}
		s.enqueue(ctx, touched)
		requeued++
	}
	return timedOut, requeued, nil
}

// DomainStates summarizes the job history of an assessment per domain.
func (s *Scheduler) DomainStates(ctx context.Context, assessmentID string) (map[string]DomainState, error) {
	history, err := s.Jobs.ListByAssessment(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	return States(history), nil
}

// Repair re-applies completed job results whose domain write was lost and
// re-dispatches domains left without an outstanding job.
func (s *Scheduler) Repair(ctx context.Context, assessmentID string) (DispatchResult, error) {
	history, err := s.Jobs.ListByAssessment(ctx, assessmentID)
	if err != nil {
		return DispatchResult{}, err
	}
	domains, err := s.Assessments.ListDomains(ctx, assessmentID)
	if err != nil {
		return DispatchResult{}, err
	}
	complete := make(map[string]bool, len(domains))
	for _, d := range domains {
		complete[d.Name] = d.AnalysisComplete
	}
	for _, j := range history {
		if j.Status != StatusCompleted || complete[j.Domain] {
			continue
		}
		finding, err := agents.ParseFinding(j.Response)
		if err != nil {
			continue
		}
		at := s.now()
		if j.CompletedAt != nil {
			at = *j.CompletedAt
		}
		if err := s.writeDomain(ctx, j, finding, at); err != nil {
			return DispatchResult{}, err
		}
		complete[j.Domain] = true
		telemetry.Info("job.domain_repaired", map[string]any{
			"assessment_id": assessmentID,
			"domain":        j.Domain,
			"job_id":        j.ID,
		})
	}
	return s.Dispatch(ctx, assessmentID)
}

func (s *Scheduler) settled(ctx context.Context, assessmentID string) {
	if s.OnSettled != nil {
		s.OnSettled(ctx, assessmentID)
	}
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Scheduler) logStatus(ctx context.Context, j Job, transition string, extra map[string]any) {
	fields := map[string]any{
		"request_id":        requestid.From(ctx),
		"assessment_id":     j.AssessmentID,
		"job_id":            j.ID,
		"domain":            j.Domain,
		"agent_id":          j.AgentID,
		"attempt":           j.Attempt,
		"status":            j.Status,
		"status_transition": transition,
	}
	for k, v := range extra {
		fields[k] = v
	}
	telemetry.Info("job.status", fields)
}

func (s *Scheduler) logIgnored(ctx context.Context, j Job, to string, err error) {
	telemetry.Warn("job.transition_ignored", map[string]any{
		"request_id":    requestid.From(ctx),
		"assessment_id": j.AssessmentID,
		"job_id":        j.ID,
		"domain":        j.Domain,
		"status":        j.Status,
		"target":        to,
		"error":         err.Error(),
	})
}

// Analysis keeps running after completion so late domains can upgrade
// already-issued deliverables.
func dispatchable(status string) bool {
	return status == assessments.StatusAnalysis || status == assessments.StatusCompleted
}

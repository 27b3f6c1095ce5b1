package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"assessment-backend/internal/agents"
	"assessment-backend/internal/assessments"
	"assessment-backend/internal/shared/metrics"
	"assessment-backend/internal/shared/requestid"
	"assessment-backend/internal/shared/telemetry"
)

// Runner executes one queued job end to end: start, build context, call the
// agent and record the outcome.
type Runner struct {
	Scheduler  *Scheduler
	Context    *ContextBuilder
	Capability agents.Capability
}

// Run processes jobID. Jobs that are no longer queued are skipped. The agent
// call holds no lock; its result is discarded if the job was cancelled in the
// meantime.
func (r *Runner) Run(ctx context.Context, jobID string) (err error) {
	s := r.Scheduler
	j, started, err := s.Start(ctx, jobID)
	if err != nil || !started {
		return err
	}
	// Outcome writes must land even if the caller's context ends mid-call.
	writeCtx := requestid.Detach(ctx)
	defer func() {
		if rec := recover(); rec != nil {
			err = s.Fail(writeCtx, jobID, fmt.Errorf("panic: %v", rec))
		}
	}()

	a, err := s.Assessments.GetByID(ctx, j.AssessmentID)
	if err != nil {
		return s.Fail(writeCtx, jobID, fmt.Errorf("%w: load assessment: %w", errStorage, err))
	}
	if a.Terminal() && a.Status != assessments.StatusCompleted {
		return s.Fail(writeCtx, jobID, fmt.Errorf("%w: assessment is %s", context.Canceled, a.Status))
	}
	agent, err := s.Agents.GetByID(ctx, j.AgentID)
	if err != nil {
		return s.Fail(writeCtx, jobID, fmt.Errorf("%w: load agent %s: %w", errStorage, j.AgentID, err))
	}
	actx, err := r.Context.Build(ctx, a, j.Domain)
	if err != nil {
		return s.Fail(writeCtx, jobID, fmt.Errorf("%w: build context: %w", errStorage, err))
	}
	prompt, err := agents.RenderPrompt(agent, actx)
	if err != nil {
		return s.Fail(writeCtx, jobID, err)
	}
	if err := s.Jobs.SetPrompt(ctx, jobID, prompt); err != nil {
		return s.Fail(writeCtx, jobID, fmt.Errorf("%w: set prompt: %w", errStorage, err))
	}

	timeout := s.Policy.JobTimeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	callStart := time.Now()
	res, callErr := r.Capability.Invoke(callCtx, agents.Invocation{
		Agent:   agent,
		Domain:  j.Domain,
		Context: actx,
		Prompt:  prompt,
	})
	elapsedMs := float64(time.Since(callStart).Microseconds()) / 1000.0
	metrics.ObserveAgentCallMs(elapsedMs)
	telemetry.Info("agent.call", map[string]any{
		"request_id":    requestid.From(ctx),
		"assessment_id": j.AssessmentID,
		"job_id":        j.ID,
		"domain":        j.Domain,
		"agent_id":      agent.ID,
		"prompt_hash":   agents.HashPrompt(prompt),
		"duration_ms":   elapsedMs,
		"ok":            callErr == nil,
	})
	if callErr != nil {
		if errors.Is(callErr, context.DeadlineExceeded) && ctx.Err() == nil {
			callErr = fmt.Errorf("%w: %w", agents.ErrTimeout, callErr)
		}
		return s.Fail(writeCtx, jobID, fmt.Errorf("agent invoke: %w", callErr))
	}
	return s.Complete(writeCtx, jobID, res.Response, res.TokensUsed)
}

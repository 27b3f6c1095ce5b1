package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"assessment-backend/internal/assessments"
)

func TestDispatchIsIdempotent(t *testing.T) {
	f, id := newFixture(t, assessments.StatusAnalysis)
	ctx := context.Background()

	first, err := f.scheduler.Dispatch(ctx, id)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(first.Created) != 12 {
		t.Fatalf("expected 12 jobs, got %d", len(first.Created))
	}
	second, err := f.scheduler.Dispatch(ctx, id)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(second.Created) != 0 || len(second.Skipped) != 12 {
		t.Fatalf("second dispatch created %d skipped %d", len(second.Created), len(second.Skipped))
	}
	for domain, reason := range second.Skipped {
		if reason != SkipOutstanding {
			t.Fatalf("domain %s skipped for %q", domain, reason)
		}
	}
	if got := len(f.queue.Drain()); got != 12 {
		t.Fatalf("expected 12 enqueued jobs, got %d", got)
	}
	domains, _ := f.assessments.ListDomains(ctx, id)
	if len(domains) != 12 || domains[0].AgentID == "" {
		t.Fatalf("expected 12 domain rows with agents, got %+v", domains)
	}
}

func TestConcurrentDispatchCreatesOneJobPerDomain(t *testing.T) {
	f, id := newFixture(t, assessments.StatusAnalysis)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.scheduler.Dispatch(ctx, id); err != nil {
				t.Errorf("Dispatch: %v", err)
			}
		}()
	}
	wg.Wait()

	history, _ := f.jobs.ListByAssessment(ctx, id)
	if len(history) != 12 {
		t.Fatalf("expected 12 jobs, got %d", len(history))
	}
}

func TestDispatchRequiresAnalysis(t *testing.T) {
	f, id := newFixture(t, assessments.StatusPaid)
	if _, err := f.scheduler.Dispatch(context.Background(), id); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestDispatchDomainRefusesDuplicate(t *testing.T) {
	f, id := newFixture(t, assessments.StatusAnalysis)
	ctx := context.Background()
	if _, err := f.scheduler.DispatchDomain(ctx, id, "partnerships"); err != nil {
		t.Fatalf("DispatchDomain: %v", err)
	}
	if _, err := f.scheduler.DispatchDomain(ctx, id, "partnerships"); !errors.Is(err, ErrDuplicateOutstanding) {
		t.Fatalf("expected ErrDuplicateOutstanding, got %v", err)
	}
}

func TestStartOnlyFromQueued(t *testing.T) {
	f, id := newFixture(t, assessments.StatusAnalysis)
	ctx := context.Background()
	j, err := f.scheduler.DispatchDomain(ctx, id, "revenue_engine")
	if err != nil {
		t.Fatalf("DispatchDomain: %v", err)
	}
	if _, started, err := f.scheduler.Start(ctx, j.ID); err != nil || !started {
		t.Fatalf("first Start = %v, %v", started, err)
	}
	if _, started, err := f.scheduler.Start(ctx, j.ID); err != nil || started {
		t.Fatalf("second Start = %v, %v; want ignored", started, err)
	}
}

func TestCompleteWritesDomainResult(t *testing.T) {
	f, id := newFixture(t, assessments.StatusAnalysis)
	ctx := context.Background()
	j, _ := f.scheduler.DispatchDomain(ctx, id, "strategic_alignment")
	_, _, _ = f.scheduler.Start(ctx, j.ID)

	if err := f.scheduler.Complete(ctx, j.ID, validFinding, 812); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	d, err := f.assessments.GetDomain(ctx, id, "strategic_alignment")
	if err != nil {
		t.Fatalf("GetDomain: %v", err)
	}
	if !d.AnalysisComplete || d.Score == nil || *d.Score != 72 || d.HealthTier != assessments.HealthGood {
		t.Fatalf("unexpected domain: %+v", d)
	}
	if d.AgentID != j.AgentID {
		t.Fatalf("agent %s not recorded, got %s", j.AgentID, d.AgentID)
	}
	stored, _ := f.jobs.GetByID(ctx, j.ID)
	if stored.Status != StatusCompleted || stored.TokensUsed != 812 || stored.CompletedAt == nil {
		t.Fatalf("unexpected job: %+v", stored)
	}
	if len(f.settled) != 1 {
		t.Fatalf("expected settled hook once, got %d", len(f.settled))
	}

	// A duplicate completion is ignored.
	if err := f.scheduler.Complete(ctx, j.ID, `{"score": 5, "summary": "late"}`, 1); err != nil {
		t.Fatalf("duplicate Complete: %v", err)
	}
	d, _ = f.assessments.GetDomain(ctx, id, "strategic_alignment")
	if *d.Score != 72 {
		t.Fatalf("duplicate completion overwrote score: %v", *d.Score)
	}
	if _, err := f.scheduler.DispatchDomain(ctx, id, "strategic_alignment"); !errors.Is(err, ErrAlreadyComplete) {
		t.Fatalf("expected ErrAlreadyComplete, got %v", err)
	}
}

func TestFailRetriesUntilBudgetExhausted(t *testing.T) {
	f, id := newFixture(t, assessments.StatusAnalysis)
	ctx := context.Background()
	if _, err := f.scheduler.DispatchDomain(ctx, id, "customer_success"); err != nil {
		t.Fatalf("DispatchDomain: %v", err)
	}

	for attempt := 1; attempt <= 3; attempt++ {
		j := f.outstanding(t, id, "customer_success")
		if j.Attempt != attempt {
			t.Fatalf("expected attempt %d, got %d", attempt, j.Attempt)
		}
		_, _, _ = f.scheduler.Start(ctx, j.ID)
		if err := f.scheduler.Fail(ctx, j.ID, errors.New("agent unavailable")); err != nil {
			t.Fatalf("Fail: %v", err)
		}
	}

	states, _ := f.scheduler.DomainStates(ctx, id)
	st := states["customer_success"]
	if st.Attempts != 3 || st.Outstanding || !st.Exhausted(3) || !st.Settled(3) {
		t.Fatalf("unexpected state: %+v", st)
	}
	if _, err := f.scheduler.DispatchDomain(ctx, id, "customer_success"); !errors.Is(err, ErrRetryBudgetExhausted) {
		t.Fatalf("expected ErrRetryBudgetExhausted, got %v", err)
	}
	d, _ := f.assessments.GetDomain(ctx, id, "customer_success")
	if d.AnalysisComplete {
		t.Fatalf("exhausted domain must stay incomplete")
	}
	if len(f.settled) != 3 {
		t.Fatalf("expected settled hook per failure, got %d", len(f.settled))
	}
}

func TestInvalidOutputFailsAndRetries(t *testing.T) {
	f, id := newFixture(t, assessments.StatusAnalysis)
	ctx := context.Background()
	j, _ := f.scheduler.DispatchDomain(ctx, id, "market_intelligence")
	_, _, _ = f.scheduler.Start(ctx, j.ID)

	if err := f.scheduler.Complete(ctx, j.ID, "not json", 40); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	stored, _ := f.jobs.GetByID(ctx, j.ID)
	if stored.Status != StatusFailed || stored.ErrorCode != ErrorCodeAgentOutputInvalid || stored.Response != "not json" {
		t.Fatalf("unexpected job: %+v", stored)
	}
	retry := f.outstanding(t, id, "market_intelligence")
	if retry.Attempt != 2 || retry.Status != StatusQueued {
		t.Fatalf("unexpected retry: %+v", retry)
	}
}

func TestCancelledJobResultIsDiscarded(t *testing.T) {
	f, id := newFixture(t, assessments.StatusAnalysis)
	ctx := context.Background()
	if _, err := f.scheduler.Dispatch(ctx, id); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	inFlight := f.outstanding(t, id, "financial_management")
	_, _, _ = f.scheduler.Start(ctx, inFlight.ID)

	n, err := f.scheduler.CancelAssessment(ctx, id)
	if err != nil || n != 12 {
		t.Fatalf("CancelAssessment = %d, %v", n, err)
	}
	if err := f.scheduler.Complete(ctx, inFlight.ID, validFinding, 10); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	d, _ := f.assessments.GetDomain(ctx, id, "financial_management")
	if d.AnalysisComplete {
		t.Fatalf("late result was written back")
	}
	stored, _ := f.jobs.GetByID(ctx, inFlight.ID)
	if stored.Status != StatusCancelled || stored.ErrorCode != ErrorCodeCancelled {
		t.Fatalf("unexpected job: %+v", stored)
	}
}

func TestSweepTimeouts(t *testing.T) {
	f, id := newFixture(t, assessments.StatusAnalysis)
	ctx := context.Background()
	stuck, _ := f.scheduler.DispatchDomain(ctx, id, "operations_excellence")
	_, _, _ = f.scheduler.Start(ctx, stuck.ID)
	idle, _ := f.scheduler.DispatchDomain(ctx, id, "partnerships")
	f.queue.Drain()

	f.clock.Advance(5 * time.Minute)
	if timedOut, requeued, err := f.scheduler.SweepTimeouts(ctx, 0); err != nil || timedOut != 0 || requeued != 0 {
		t.Fatalf("early sweep = %d, %d, %v", timedOut, requeued, err)
	}

	f.clock.Advance(6 * time.Minute)
	timedOut, requeued, err := f.scheduler.SweepTimeouts(ctx, 0)
	if err != nil {
		t.Fatalf("SweepTimeouts: %v", err)
	}
	if timedOut != 1 || requeued != 1 {
		t.Fatalf("sweep = %d timed out, %d requeued", timedOut, requeued)
	}
	failed, _ := f.jobs.GetByID(ctx, stuck.ID)
	if failed.Status != StatusFailed || failed.ErrorCode != ErrorCodeAgentTimeout {
		t.Fatalf("unexpected stuck job: %+v", failed)
	}
	enqueued := f.queue.Drain()
	ids := map[string]bool{}
	for _, j := range enqueued {
		ids[j.ID] = true
	}
	if !ids[idle.ID] || len(enqueued) != 2 {
		t.Fatalf("expected idle job and the timeout retry enqueued, got %+v", enqueued)
	}
}

func TestRepairRewritesLostDomainResult(t *testing.T) {
	f, id := newFixture(t, assessments.StatusAnalysis)
	ctx := context.Background()
	j, _ := f.scheduler.DispatchDomain(ctx, id, "risk_compliance")
	_, _, _ = f.scheduler.Start(ctx, j.ID)
	resp := validFinding
	if _, err := f.jobs.Transition(ctx, j.ID, []string{StatusProcessing}, StatusCompleted, Update{At: f.clock.Now(), Response: &resp}); err != nil {
		t.Fatalf("Transition: %v", err)
	}

	res, err := f.scheduler.Repair(ctx, id)
	if err != nil {
		t.Fatalf("Repair: %v", err)
	}
	d, _ := f.assessments.GetDomain(ctx, id, "risk_compliance")
	if !d.AnalysisComplete {
		t.Fatalf("domain not repaired: %+v", d)
	}
	if len(res.Created) != 11 || res.Skipped["risk_compliance"] != SkipCompleted {
		t.Fatalf("unexpected repair dispatch: created %d skipped %v", len(res.Created), res.Skipped)
	}
}

package lifecycle

import (
	"context"
	"sync"
	"testing"
	"time"

	"assessment-backend/internal/assessments"
	"assessment-backend/internal/jobs"
)

func TestAllDomainsSucceedWithinAnHour(t *testing.T) {
	e := newEngine(t)
	id := e.awaitingPayment(t)

	a := e.pay(t, id)
	if a.Status != assessments.StatusAnalysis || a.AnalysisStartedAt == nil {
		t.Fatalf("expected analysis, got %+v", a)
	}
	if n := e.jobCount(t, id, ""); n != 12 {
		t.Fatalf("expected 12 jobs, got %d", n)
	}

	e.clock.Advance(40 * time.Minute)
	e.drain(t)

	a = e.get(t, id)
	if a.Status != assessments.StatusCompleted || a.CompletedAt == nil {
		t.Fatalf("expected completed, got %s", a.Status)
	}
	if a.ExecutiveSummaryPath == nil || a.DetailedAnalysisPath == nil || a.ImplementationKitPath == nil {
		t.Fatalf("missing artifact paths: %+v", a)
	}

	e.clock.Advance(80 * time.Hour)
	e.tick(t)
	for _, tier := range []string{assessments.ArtifactExecutiveSummary, assessments.ArtifactDetailedAnalysis, assessments.ArtifactImplementationKit} {
		if n := e.store.count(tier); n != 1 {
			t.Fatalf("tier %s assembled %d times", tier, n)
		}
	}
}

func TestOneDomainExhaustsRetries(t *testing.T) {
	e := newEngine(t)
	e.failDomain(assessments.DomainMarketIntelligence)
	id := e.awaitingPayment(t)
	e.pay(t, id)

	e.clock.Advance(2 * time.Hour)
	e.drain(t)

	if n := e.jobCount(t, id, assessments.DomainMarketIntelligence); n != 3 {
		t.Fatalf("expected 3 attempts, got %d", n)
	}
	a := e.get(t, id)
	if a.Status != assessments.StatusAnalysis || a.ExecutiveSummaryPath == nil || a.DetailedAnalysisPath != nil {
		t.Fatalf("expected only the executive summary before 48h, got %+v", a)
	}

	e.clock.Advance(46 * time.Hour)
	e.tick(t)
	a = e.get(t, id)
	if a.DetailedAnalysisPath == nil || a.ImplementationKitPath != nil || a.Status != assessments.StatusAnalysis {
		t.Fatalf("expected detailed analysis at 48h, got %+v", a)
	}

	e.clock.Advance(24 * time.Hour)
	e.tick(t)
	a = e.get(t, id)
	if a.Status != assessments.StatusCompleted || a.ImplementationKitPath == nil {
		t.Fatalf("expected completed with kit at 72h, got %+v", a)
	}

	ctx := context.Background()
	for _, tier := range []string{assessments.ArtifactExecutiveSummary, assessments.ArtifactDetailedAnalysis} {
		d, err := e.deliverables.Get(ctx, id, tier)
		if err != nil {
			t.Fatalf("Get %s: %v", tier, err)
		}
		if len(d.Domains) != 11 || !d.Degraded {
			t.Fatalf("tier %s: expected 11 degraded domains, got %+v", tier, d)
		}
	}
	mi, _ := e.assessments.GetDomain(ctx, id, assessments.DomainMarketIntelligence)
	if mi.AnalysisComplete {
		t.Fatalf("exhausted domain marked complete")
	}
}

func TestQuorumMissedFailsAtDeadline(t *testing.T) {
	e := newEngine(t)
	e.failDomain(assessments.DomainStrategicAlignment)
	id := e.awaitingPayment(t)
	e.pay(t, id)
	e.drain(t)

	e.clock.Advance(24 * time.Hour)
	e.tick(t)
	if a := e.get(t, id); a.Status != assessments.StatusAnalysis || a.ExecutiveSummaryPath != nil {
		t.Fatalf("unexpected state at 24h: %+v", a)
	}

	e.clock.Advance(48 * time.Hour)
	e.tick(t)
	a := e.get(t, id)
	if a.Status != assessments.StatusFailed || a.CompletedAt == nil {
		t.Fatalf("expected failed at 72h, got %s", a.Status)
	}
	if a.ExecutiveSummaryPath != nil || a.DetailedAnalysisPath != nil || a.ImplementationKitPath != nil {
		t.Fatalf("artifacts issued without quorum: %+v", a)
	}
}

func TestDuplicateDispatchCreatesTwelveJobs(t *testing.T) {
	e := newEngine(t)
	id := e.awaitingPayment(t)
	e.pay(t, id)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.scheduler.Dispatch(context.Background(), id); err != nil {
				t.Errorf("Dispatch: %v", err)
			}
		}()
	}
	wg.Wait()
	// A retried payment webhook does not dispatch again either.
	e.pay(t, id)

	if n := e.jobCount(t, id, ""); n != 12 {
		t.Fatalf("expected 12 jobs, got %d", n)
	}
}

func TestStuckJobTimesOutAndRetries(t *testing.T) {
	e := newEngine(t)
	id := e.awaitingPayment(t)
	e.pay(t, id)

	pending := e.queue.Drain()
	stuck := pending[0]
	if _, started, err := e.scheduler.Start(context.Background(), stuck.ID); err != nil || !started {
		t.Fatalf("Start: %v %v", started, err)
	}

	e.clock.Advance(11 * time.Minute)
	report := e.tick(t)
	if report.TimedOut != 1 || report.Requeued != 11 {
		t.Fatalf("unexpected report: %+v", report)
	}
	failed, _ := e.jobs.GetByID(context.Background(), stuck.ID)
	if failed.Status != jobs.StatusFailed || failed.ErrorCode != jobs.ErrorCodeAgentTimeout {
		t.Fatalf("unexpected stuck job: %+v", failed)
	}

	e.drain(t)
	if a := e.get(t, id); a.Status != assessments.StatusCompleted {
		t.Fatalf("expected completed after retry, got %s", a.Status)
	}
	if n := e.jobCount(t, id, stuck.Domain); n != 2 {
		t.Fatalf("expected 2 jobs for %s, got %d", stuck.Domain, n)
	}
}

func TestCancelDiscardsOutstandingWork(t *testing.T) {
	e := newEngine(t)
	id := e.awaitingPayment(t)
	e.pay(t, id)

	a, err := e.controller.Cancel(context.Background(), id)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if a.Status != assessments.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", a.Status)
	}
	e.drain(t)
	if e.invoked != 0 {
		t.Fatalf("agent invoked %d times after cancellation", e.invoked)
	}
	domains, _ := e.assessments.ListDomains(context.Background(), id)
	for _, d := range domains {
		if d.AnalysisComplete {
			t.Fatalf("domain %s completed after cancellation", d.Name)
		}
	}
	if _, err := e.controller.Cancel(context.Background(), id); err == nil {
		t.Fatalf("expected second cancel to be refused")
	}
}

func TestSweeperStartsAnalysisForPaidAssessments(t *testing.T) {
	e := newEngine(t)
	id := e.awaitingPayment(t)
	ref := "pi_manual"
	if _, err := e.assessments.Transition(context.Background(), id, assessments.Transition{
		From:       []string{assessments.StatusAwaitingPayment},
		To:         assessments.StatusPaid,
		At:         e.clock.Now(),
		PaymentRef: ref,
	}); err != nil {
		t.Fatalf("Transition: %v", err)
	}

	report := e.tick(t)
	if report.Started != 1 {
		t.Fatalf("expected one assessment started, got %+v", report)
	}
	if a := e.get(t, id); a.Status != assessments.StatusAnalysis {
		t.Fatalf("expected analysis, got %s", a.Status)
	}
	if n := e.jobCount(t, id, ""); n != 12 {
		t.Fatalf("expected 12 jobs, got %d", n)
	}
}

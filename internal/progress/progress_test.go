package progress

import (
	"context"
	"testing"

	"assessment-backend/internal/assessments"
	"assessment-backend/internal/catalog"
	"assessment-backend/internal/responses"
)

func f(v float64) *float64 { return &v }

func fixture(t *testing.T) (*Tracker, *responses.MemoryRepo) {
	t.Helper()
	bank := catalog.NewBank(catalog.NewMemoryRepo(
		catalog.Question{ID: "SA-01", Domain: assessments.DomainStrategicAlignment, Type: catalog.TypeCore, Order: 1, Active: true},
		catalog.Question{ID: "SA-02", Domain: assessments.DomainStrategicAlignment, Type: catalog.TypeCore, Order: 2, Active: true},
		catalog.Question{ID: "SA-F01", Domain: assessments.DomainStrategicAlignment, Type: catalog.TypeFollowUp, Order: 3, Active: true,
			Trigger: &catalog.Condition{QuestionID: "SA-01", Operator: catalog.OpLte, Threshold: 25}},
		catalog.Question{ID: "FM-01", Domain: assessments.DomainFinancialManagement, Type: catalog.TypeCore, Order: 1, Active: true},
	))
	repo := responses.NewMemoryRepo()
	return &Tracker{Bank: bank, Responses: repo}, repo
}

func answer(t *testing.T, repo *responses.MemoryRepo, domain, qid string, score *float64, text string) {
	t.Helper()
	if err := repo.Upsert(context.Background(), responses.Response{
		AssessmentID: "a1", Domain: domain, QuestionID: qid, Score: score, Text: text,
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
}

func domainByName(s Snapshot, name string) DomainProgress {
	for _, d := range s.Domains {
		if d.Domain == name {
			return d
		}
	}
	return DomainProgress{}
}

func TestProgressFollowUpChangesDomainCompleteness(t *testing.T) {
	tracker, repo := fixture(t)
	a := assessments.Assessment{ID: "a1", TotalQuestions: 120}
	ctx := context.Background()

	answer(t, repo, assessments.DomainStrategicAlignment, "SA-01", f(75), "")
	answer(t, repo, assessments.DomainStrategicAlignment, "SA-02", f(50), "")
	snap, err := tracker.Progress(ctx, a)
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if !domainByName(snap, assessments.DomainStrategicAlignment).Complete {
		t.Fatalf("expected strategic_alignment complete without follow-up")
	}

	// A low score reveals the follow-up, so the domain is no longer complete.
	answer(t, repo, assessments.DomainStrategicAlignment, "SA-01", f(0), "")
	snap, _ = tracker.Progress(ctx, a)
	sa := domainByName(snap, assessments.DomainStrategicAlignment)
	if sa.Complete || sa.Total != 3 || sa.Answered != 2 {
		t.Fatalf("expected 2/3 incomplete, got %+v", sa)
	}
	if snap.CoreComplete {
		t.Fatalf("core should be incomplete while FM-01 is unanswered")
	}

	answer(t, repo, assessments.DomainStrategicAlignment, "SA-F01", nil, "no owner")
	answer(t, repo, assessments.DomainFinancialManagement, "FM-01", f(100), "")
	snap, _ = tracker.Progress(ctx, a)
	if !snap.CoreComplete || snap.CoreAnswered != 3 || snap.CoreTotal != 3 {
		t.Fatalf("expected core complete, got %+v", snap)
	}
	if snap.DomainsComplete != 2 {
		t.Fatalf("expected 2 complete domains, got %d", snap.DomainsComplete)
	}
	if snap.QuestionsAnswered != 4 || snap.Percent != 3 {
		t.Fatalf("expected 4 answered / 3%%, got %d / %d", snap.QuestionsAnswered, snap.Percent)
	}
}

func TestComputeBounds(t *testing.T) {
	var rs []responses.Response
	for i := 0; i < 130; i++ {
		rs = append(rs, responses.Response{Domain: "d", QuestionID: string(rune('A' + i%26)) + string(rune('a'+i/26)), Text: "x"})
	}
	snap := Compute(120, nil, nil, rs)
	if snap.QuestionsAnswered != 120 || snap.Percent != 100 {
		t.Fatalf("expected clamp to 120 / 100, got %d / %d", snap.QuestionsAnswered, snap.Percent)
	}
	if snap.DomainsComplete != 0 {
		t.Fatalf("domains with no resolved questions are never complete")
	}
	if snap.CoreComplete {
		t.Fatalf("empty core set is never complete")
	}
	empty := Compute(120, nil, nil, nil)
	if empty.Percent != 0 || empty.QuestionsAnswered != 0 {
		t.Fatalf("expected zero progress, got %+v", empty)
	}
}

package agents

import (
	"context"
	"strings"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func ptr(v float64) *float64 { return &v }

func sampleContext() AssessmentContext {
	return AssessmentContext{
		AssessmentID: "a1",
		Industry:     "saas",
		Domain:       "revenue_engine",
		DomainName:   "Revenue Engine",
		Answers: []ContextAnswer{
			{QuestionID: "RE-01", Question: "How predictable is pipeline?", Score: ptr(25)},
			{QuestionID: "RE-02", Question: "How well is the ICP defined?", Score: ptr(75)},
			{QuestionID: "RE-F01", Question: "Main obstacle?", Text: "no CRM"},
		},
		Documents: []ContextDocument{{FileName: "board.pdf", MimeType: "application/pdf", SizeBytes: 2048, Excerpt: "ARR grew 12%"}},
	}
}

func TestRenderPromptIncludesAnswersAndDocuments(t *testing.T) {
	prompt, err := RenderPrompt(Agent{Name: "Revenue Analyst"}, sampleContext())
	if err != nil {
		t.Fatalf("RenderPrompt: %v", err)
	}
	for _, want := range []string{
		"You are Revenue Analyst",
		"saas business",
		"[RE-01] How predictable is pipeline? score=25",
		`answer="no CRM"`,
		"board.pdf (application/pdf, 2048 bytes)",
		"Excerpt: ARR grew 12%",
		`"recommendations"`,
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if HashPrompt(prompt) != HashPrompt(prompt) || len(HashPrompt(prompt)) != 64 {
		t.Fatalf("expected stable sha256 hex hash")
	}
}

func TestPlaceholderProducesValidFinding(t *testing.T) {
	res, err := Placeholder{}.Invoke(context.Background(), Invocation{Domain: "revenue_engine", Context: sampleContext()})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	f, err := ParseFinding(res.Response)
	if err != nil {
		t.Fatalf("ParseFinding: %v", err)
	}
	if f.Score != 50 {
		t.Fatalf("expected mean score 50, got %v", f.Score)
	}
	if f.Recommendations[0] != "Improve: How predictable is pipeline?" {
		t.Fatalf("expected weakest answer first, got %v", f.Recommendations)
	}
}

func TestRateLimitedHonoursContext(t *testing.T) {
	calls := 0
	next := CapabilityFunc(func(ctx context.Context, inv Invocation) (Result, error) {
		calls++
		return Result{Response: "{}"}, nil
	})
	limited := &RateLimited{Next: next, Limiter: rate.NewLimiter(rate.Every(time.Hour), 1)}

	if _, err := limited.Invoke(context.Background(), Invocation{}); err != nil {
		t.Fatalf("first call: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := limited.Invoke(ctx, Invocation{}); err == nil {
		t.Fatalf("expected wait to fail before the next token")
	}
	if calls != 1 {
		t.Fatalf("expected 1 downstream call, got %d", calls)
	}
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadPolicyEmptyPathReturnsDefaults(t *testing.T) {
	p, err := LoadPolicy("")
	if err != nil {
		t.Fatalf("LoadPolicy: %v", err)
	}
	if p.RetryBudget != 3 || p.JobTimeout != 10*time.Minute || p.TotalQuestions != 120 {
		t.Fatalf("unexpected defaults: %+v", p)
	}
	if p.ImplementationKitAfter != 72*time.Hour {
		t.Fatalf("expected 72h kit deadline, got %s", p.ImplementationKitAfter)
	}
}

func TestParsePolicyOverrides(t *testing.T) {
	data := []byte(`
sla_hours:
  executive_summary: 12
retry_budget: 5
quorum_domains: [" Revenue_Engine ", "revenue_engine", "people_culture"]
health_thresholds:
  warning: 30
  good: 50
  excellent: 90
`)
	p, err := ParsePolicy(data)
	if err != nil {
		t.Fatalf("ParsePolicy: %v", err)
	}
	if p.ExecutiveSummaryAfter != 12*time.Hour {
		t.Fatalf("expected 12h, got %s", p.ExecutiveSummaryAfter)
	}
	if p.DetailedAnalysisAfter != 48*time.Hour {
		t.Fatalf("expected default 48h, got %s", p.DetailedAnalysisAfter)
	}
	if p.RetryBudget != 5 {
		t.Fatalf("expected retry budget 5, got %d", p.RetryBudget)
	}
	if len(p.QuorumDomains) != 2 || p.QuorumDomains[0] != "revenue_engine" || p.QuorumDomains[1] != "people_culture" {
		t.Fatalf("unexpected quorum domains %v", p.QuorumDomains)
	}
	if p.Health.Excellent != 90 {
		t.Fatalf("expected excellent threshold 90, got %v", p.Health.Excellent)
	}
}

func TestParsePolicyRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "decreasing sla", yaml: "sla_hours:\n  detailed_analysis: 10\n"},
		{name: "zero retry", yaml: "retry_budget: 0\n"},
		{name: "bad thresholds", yaml: "health_thresholds:\n  warning: 70\n  good: 60\n  excellent: 80\n"},
		{name: "not yaml", yaml: "retry_budget: [\n"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParsePolicy([]byte(tt.yaml)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadPolicyReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte("job_timeout_minutes: 5\n"), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	p, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("LoadPolicy: %v", err)
	}
	if p.JobTimeout != 5*time.Minute {
		t.Fatalf("expected 5m timeout, got %s", p.JobTimeout)
	}
}

func TestResolveQuorum(t *testing.T) {
	known := map[string]string{"alpha": "alpha", "beta team": "beta"}
	resolve := func(name string) (string, bool) {
		slug, ok := known[strings.ToLower(strings.TrimSpace(name))]
		return slug, ok
	}

	p := DefaultPolicy()
	p.QuorumDomains = []string{"Alpha", "beta team", "alpha"}
	got, err := p.ResolveQuorum(resolve)
	if err != nil {
		t.Fatalf("ResolveQuorum: %v", err)
	}
	if len(got.QuorumDomains) != 2 || got.QuorumDomains[0] != "alpha" || got.QuorumDomains[1] != "beta" {
		t.Fatalf("unexpected quorum: %v", got.QuorumDomains)
	}

	p.QuorumDomains = []string{"alpha", "gamma"}
	if _, err := p.ResolveQuorum(resolve); err == nil || !strings.Contains(err.Error(), "gamma") {
		t.Fatalf("expected unknown quorum name error, got %v", err)
	}
}

func TestSLAFor(t *testing.T) {
	p := DefaultPolicy()
	tests := map[string]time.Duration{
		"executive_summary":  24 * time.Hour,
		"detailed_analysis":  48 * time.Hour,
		"implementation_kit": 72 * time.Hour,
	}
	for tier, want := range tests {
		if got := p.SLAFor(tier); got != want {
			t.Fatalf("SLAFor(%s) = %s, want %s", tier, got, want)
		}
	}
}

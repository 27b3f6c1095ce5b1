package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Policy holds the orchestration tunables. It is built once and passed by
// value into the scheduler, aggregator and lifecycle controller.
type Policy struct {
	ExecutiveSummaryAfter  time.Duration
	DetailedAnalysisAfter  time.Duration
	ImplementationKitAfter time.Duration
	RetryBudget            int
	JobTimeout             time.Duration
	QuorumDomains          []string
	Health                 HealthThresholds
	TotalQuestions         int
	ExcerptChars           int
}

// HealthThresholds are lower bounds (inclusive) of the non-critical tiers on
// a 0-100 score scale.
type HealthThresholds struct {
	Warning   float64 `yaml:"warning"`
	Good      float64 `yaml:"good"`
	Excellent float64 `yaml:"excellent"`
}

// DefaultPolicy returns the production defaults.
func DefaultPolicy() Policy {
	return Policy{
		ExecutiveSummaryAfter:  24 * time.Hour,
		DetailedAnalysisAfter:  48 * time.Hour,
		ImplementationKitAfter: 72 * time.Hour,
		RetryBudget:            3,
		JobTimeout:             10 * time.Minute,
		QuorumDomains:          []string{"strategic_alignment", "financial_management", "revenue_engine"},
		Health: HealthThresholds{
			Warning:   40,
			Good:      60,
			Excellent: 80,
		},
		TotalQuestions: 120,
		ExcerptChars:   2000,
	}
}

type policyFile struct {
	SLAHours struct {
		ExecutiveSummary  *int `yaml:"executive_summary"`
		DetailedAnalysis  *int `yaml:"detailed_analysis"`
		ImplementationKit *int `yaml:"implementation_kit"`
	} `yaml:"sla_hours"`
	RetryBudget       *int              `yaml:"retry_budget"`
	JobTimeoutMinutes *int              `yaml:"job_timeout_minutes"`
	QuorumDomains     []string          `yaml:"quorum_domains"`
	Health            *HealthThresholds `yaml:"health_thresholds"`
	TotalQuestions    *int              `yaml:"total_questions"`
	ExcerptChars      *int              `yaml:"document_excerpt_chars"`
}

// LoadPolicy reads a YAML policy file on top of DefaultPolicy. An empty path
// returns the defaults.
func LoadPolicy(path string) (Policy, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultPolicy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy %s: %w", path, err)
	}
	return ParsePolicy(data)
}

// ParsePolicy decodes YAML policy overrides on top of DefaultPolicy.
func ParsePolicy(data []byte) (Policy, error) {
	p := DefaultPolicy()
	var raw policyFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Policy{}, fmt.Errorf("decode policy: %w", err)
	}
	if v := raw.SLAHours.ExecutiveSummary; v != nil {
		p.ExecutiveSummaryAfter = time.Duration(*v) * time.Hour
	}
	if v := raw.SLAHours.DetailedAnalysis; v != nil {
		p.DetailedAnalysisAfter = time.Duration(*v) * time.Hour
	}
	if v := raw.SLAHours.ImplementationKit; v != nil {
		p.ImplementationKitAfter = time.Duration(*v) * time.Hour
	}
	if raw.RetryBudget != nil {
		p.RetryBudget = *raw.RetryBudget
	}
	if raw.JobTimeoutMinutes != nil {
		p.JobTimeout = time.Duration(*raw.JobTimeoutMinutes) * time.Minute
	}
	if len(raw.QuorumDomains) > 0 {
		p.QuorumDomains = normalizeNames(raw.QuorumDomains)
	}
	if raw.Health != nil {
		p.Health = *raw.Health
	}
	if raw.TotalQuestions != nil {
		p.TotalQuestions = *raw.TotalQuestions
	}
	if raw.ExcerptChars != nil {
		p.ExcerptChars = *raw.ExcerptChars
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Validate checks ordering and range constraints.
func (p Policy) Validate() error {
	if p.ExecutiveSummaryAfter <= 0 || p.DetailedAnalysisAfter < p.ExecutiveSummaryAfter || p.ImplementationKitAfter < p.DetailedAnalysisAfter {
		return errors.New("policy: sla hours must be positive and non-decreasing across tiers")
	}
	if p.RetryBudget < 1 {
		return errors.New("policy: retry_budget must be at least 1")
	}
	if p.JobTimeout <= 0 {
		return errors.New("policy: job_timeout_minutes must be positive")
	}
	if len(p.QuorumDomains) == 0 {
		return errors.New("policy: quorum_domains must not be empty")
	}
	h := p.Health
	if !(h.Warning > 0 && h.Warning < h.Good && h.Good < h.Excellent && h.Excellent <= 100) {
		return errors.New("policy: health thresholds must satisfy 0 < warning < good < excellent <= 100")
	}
	if p.TotalQuestions <= 0 {
		return errors.New("policy: total_questions must be positive")
	}
	if p.ExcerptChars < 0 {
		return errors.New("policy: document_excerpt_chars must not be negative")
	}
	return nil
}

// ResolveQuorum maps every quorum name through resolve, which returns the
// canonical domain slug. Unknown names are rejected: a quorum that can never
// be met fails every assessment at the final deadline.
func (p Policy) ResolveQuorum(resolve func(string) (string, bool)) (Policy, error) {
	out := make([]string, 0, len(p.QuorumDomains))
	seen := map[string]bool{}
	var unknown []string
	for _, name := range p.QuorumDomains {
		slug, ok := resolve(name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		if seen[slug] {
			continue
		}
		seen[slug] = true
		out = append(out, slug)
	}
	if len(unknown) > 0 {
		return Policy{}, fmt.Errorf("policy: unknown quorum_domains %q", unknown)
	}
	p.QuorumDomains = out
	return p, p.Validate()
}

// SLAFor returns the deadline offset for a deliverable tier name.
func (p Policy) SLAFor(tier string) time.Duration {
	switch tier {
	case "executive_summary":
		return p.ExecutiveSummaryAfter
	case "detailed_analysis":
		return p.DetailedAnalysisAfter
	default:
		return p.ImplementationKitAfter
	}
}

func normalizeNames(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]bool{}
	for _, name := range in {
		n := strings.ToLower(strings.TrimSpace(name))
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

package deliverables

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math"
	"sort"
	"time"

	"assessment-backend/internal/assessments"
	"assessment-backend/internal/shared/config"
)

// DomainSection is one domain's contribution to a deliverable.
type DomainSection struct {
	Domain          string   `json:"domain"`
	Name            string   `json:"name"`
	Score           float64  `json:"score"`
	HealthTier      string   `json:"healthTier"`
	Summary         string   `json:"summary"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// Action is one line of the implementation kit plan.
type Action struct {
	Domain string `json:"domain"`
	Phase  string `json:"phase"`
	Action string `json:"action"`
}

// Artifact is the JSON document written to the object store.
type Artifact struct {
	AssessmentID   string          `json:"assessmentId"`
	Tier           string          `json:"tier"`
	Industry       string          `json:"industry"`
	GeneratedAt    time.Time       `json:"generatedAt"`
	ContentHash    string          `json:"contentHash"`
	Degraded       bool            `json:"degraded"`
	OverallScore   *float64        `json:"overallScore,omitempty"`
	OverallHealth  string          `json:"overallHealth,omitempty"`
	Domains        []DomainSection `json:"domains"`
	MissingDomains []string        `json:"missingDomains"`
	Priorities     []string        `json:"priorities,omitempty"`
	ActionPlan     []Action        `json:"actionPlan,omitempty"`
}

const (
	phaseImmediate = "0-30 days"
	phaseNear      = "30-90 days"
	phaseSustain   = "90+ days"
)

// sections returns complete domains in presentation order and the slugs of
// the missing ones.
func sections(domains []assessments.Domain) ([]DomainSection, []string) {
	bySlug := make(map[string]assessments.Domain, len(domains))
	for _, d := range domains {
		bySlug[d.Name] = d
	}
	var out []DomainSection
	missing := []string{}
	for _, slug := range assessments.Domains() {
		d, ok := bySlug[slug]
		if !ok || !d.AnalysisComplete || d.Score == nil {
			missing = append(missing, slug)
			continue
		}
		out = append(out, DomainSection{
			Domain:          slug,
			Name:            assessments.DisplayName(slug),
			Score:           *d.Score,
			HealthTier:      d.HealthTier,
			Summary:         d.Summary,
			Recommendations: append([]string{}, d.Recommendations...),
		})
	}
	return out, missing
}

// contentHash fingerprints the inputs of a tier. Assembly time is excluded,
// so unchanged domain data always hashes the same.
func contentHash(tier string, included []DomainSection) string {
	payload, _ := json.Marshal(struct {
		Tier    string          `json:"tier"`
		Domains []DomainSection `json:"domains"`
	}{tier, included})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func buildArtifact(a assessments.Assessment, tier string, included []DomainSection, missing []string, hash string, policy config.Policy, at time.Time) Artifact {
	art := Artifact{
		AssessmentID:   a.ID,
		Tier:           tier,
		Industry:       a.Industry,
		GeneratedAt:    at,
		ContentHash:    hash,
		Degraded:       len(missing) > 0,
		MissingDomains: missing,
	}
	if len(included) > 0 {
		total := 0.0
		for _, s := range included {
			total += s.Score
		}
		overall := math.Round(total/float64(len(included))*10) / 10
		art.OverallScore = &overall
		art.OverallHealth = assessments.HealthTierFor(overall, policy.Health)
	}

	switch tier {
	case assessments.ArtifactExecutiveSummary:
		art.Domains = make([]DomainSection, 0, len(included))
		for _, s := range included {
			s.Recommendations = nil
			art.Domains = append(art.Domains, s)
		}
		art.Priorities = priorities(included, 3)
	case assessments.ArtifactDetailedAnalysis:
		art.Domains = included
		art.Priorities = priorities(included, 5)
	case assessments.ArtifactImplementationKit:
		art.Domains = included
		art.ActionPlan = actionPlan(included)
	}
	if art.Domains == nil {
		art.Domains = []DomainSection{}
	}
	return art
}

// priorities takes the first recommendation of the n weakest domains.
func priorities(included []DomainSection, n int) []string {
	weakest := append([]DomainSection(nil), included...)
	sort.SliceStable(weakest, func(i, j int) bool { return weakest[i].Score < weakest[j].Score })
	var out []string
	for _, s := range weakest {
		if len(out) == n {
			break
		}
		if len(s.Recommendations) > 0 {
			out = append(out, s.Name+": "+s.Recommendations[0])
		}
	}
	return out
}

// actionPlan phases every recommendation by its domain's health tier,
// weakest domains first.
func actionPlan(included []DomainSection) []Action {
	ordered := append([]DomainSection(nil), included...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Score < ordered[j].Score })
	var out []Action
	for _, s := range ordered {
		phase := phaseSustain
		switch s.HealthTier {
		case assessments.HealthCritical, assessments.HealthWarning:
			phase = phaseImmediate
		case assessments.HealthGood:
			phase = phaseNear
		}
		for _, rec := range s.Recommendations {
			out = append(out, Action{Domain: s.Domain, Phase: phase, Action: rec})
		}
	}
	return out
}

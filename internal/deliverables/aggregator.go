package deliverables

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"assessment-backend/internal/assessments"
	"assessment-backend/internal/jobs"
	"assessment-backend/internal/shared/config"
	"assessment-backend/internal/shared/metrics"
	"assessment-backend/internal/shared/requestid"
	"assessment-backend/internal/shared/storage/object"
	"assessment-backend/internal/shared/telemetry"
)

// JobStates reports per-domain job history.
type JobStates interface {
	DomainStates(ctx context.Context, assessmentID string) (map[string]jobs.DomainState, error)
}

// Aggregator assembles tier artifacts as domains complete and SLA windows
// pass.
type Aggregator struct {
	Assessments  assessments.Repo
	Deliverables Repo
	Jobs         JobStates
	Store        object.ObjectStore
	Policy       config.Policy
	Now          func() time.Time

	locks sync.Map // assessmentID -> *sync.Mutex
}

// NewAggregator wires an Aggregator with the wall clock.
func NewAggregator(assessmentRepo assessments.Repo, repo Repo, states JobStates, store object.ObjectStore, policy config.Policy) *Aggregator {
	return &Aggregator{
		Assessments:  assessmentRepo,
		Deliverables: repo,
		Jobs:         states,
		Store:        store,
		Policy:       policy,
		Now:          func() time.Time { return time.Now().UTC() },
	}
}

// Outcome describes the analysis state observed by one Reconcile call.
type Outcome struct {
	Assessment     assessments.Assessment
	Elapsed        time.Duration
	QuorumComplete bool
	AllComplete    bool
	AllSettled     bool
	Outstanding    bool
	Assembled      []string
	Unchanged      []string
}

// Issued reports whether tier has an artifact path after reconciliation.
func (o Outcome) Issued(tier string) bool {
	return o.Assessment.ArtifactPath(tier) != nil
}

// Reconcile assembles every tier that is due and whose contributing domain
// set changed since its last assembly. Repeated calls with unchanged data
// leave artifact paths untouched.
func (g *Aggregator) Reconcile(ctx context.Context, assessmentID string) (Outcome, error) {
	mu := g.lock(assessmentID)
	mu.Lock()
	defer mu.Unlock()

	a, err := g.Assessments.GetByID(ctx, assessmentID)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{Assessment: a}
	if a.AnalysisStartedAt == nil || a.Status == assessments.StatusCancelled {
		return out, nil
	}
	now := g.now()
	out.Elapsed = now.Sub(*a.AnalysisStartedAt)

	domains, err := g.Assessments.ListDomains(ctx, assessmentID)
	if err != nil {
		return out, fmt.Errorf("list domains: %w", err)
	}
	states, err := g.Jobs.DomainStates(ctx, assessmentID)
	if err != nil {
		return out, fmt.Errorf("job states: %w", err)
	}
	g.observe(&out, domains, states)

	included, missing := sections(domains)
	for _, tier := range Tiers {
		if !g.due(tier, out) {
			continue
		}
		assembled, err := g.assemble(ctx, &out.Assessment, tier, included, missing, now)
		if err != nil {
			return out, fmt.Errorf("assemble %s: %w", tier, err)
		}
		if assembled {
			out.Assembled = append(out.Assembled, tier)
		} else {
			out.Unchanged = append(out.Unchanged, tier)
		}
	}
	return out, nil
}

func (g *Aggregator) observe(out *Outcome, domains []assessments.Domain, states map[string]jobs.DomainState) {
	complete := make(map[string]bool, len(domains))
	for _, d := range domains {
		complete[d.Name] = d.AnalysisComplete
	}
	out.QuorumComplete = true
	for _, slug := range g.Policy.QuorumDomains {
		if !complete[slug] {
			out.QuorumComplete = false
		}
	}
	out.AllComplete = true
	out.AllSettled = true
	for _, slug := range assessments.Domains() {
		st := states[slug]
		if st.Outstanding {
			out.Outstanding = true
		}
		if !complete[slug] {
			out.AllComplete = false
			if !st.Exhausted(g.Policy.RetryBudget) {
				out.AllSettled = false
			}
		}
	}
}

// due applies the tier triggers. No tier is issued without the headline
// quorum. Before its deadline the executive summary also waits for every
// domain to settle, so a fast run assembles it once with its final content.
func (g *Aggregator) due(tier string, o Outcome) bool {
	if !o.QuorumComplete {
		return false
	}
	if o.Elapsed >= g.Policy.SLAFor(tier) {
		return true
	}
	switch tier {
	case assessments.ArtifactExecutiveSummary:
		return o.AllSettled
	case assessments.ArtifactDetailedAnalysis, assessments.ArtifactImplementationKit:
		return o.AllComplete
	}
	return false
}

func (g *Aggregator) assemble(ctx context.Context, a *assessments.Assessment, tier string, included []DomainSection, missing []string, now time.Time) (bool, error) {
	hash := contentHash(tier, included)
	existing, err := g.Deliverables.Get(ctx, a.ID, tier)
	switch {
	case err == nil:
		if existing.ContentHash == hash && a.ArtifactPath(tier) != nil {
			return false, nil
		}
	case !errors.Is(err, ErrNotFound):
		return false, err
	}

	art := buildArtifact(*a, tier, included, missing, hash, g.Policy, now)
	body, err := json.MarshalIndent(art, "", "  ")
	if err != nil {
		return false, err
	}
	path := fmt.Sprintf("assessments/%s/%s/%s.json", a.ID, tier, hash[:16])
	if _, err := g.Store.SaveWithKey(ctx, path, "application/json", bytes.NewReader(body)); err != nil {
		return false, fmt.Errorf("save artifact: %w", err)
	}

	d := Deliverable{
		ID:           existing.ID,
		AssessmentID: a.ID,
		Tier:         tier,
		Path:         path,
		ContentHash:  hash,
		Domains:      domainSlugs(included),
		Degraded:     art.Degraded,
		AssembledAt:  now,
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if err := g.Deliverables.Upsert(ctx, d); err != nil {
		return false, fmt.Errorf("record deliverable: %w", err)
	}
	if err := g.Assessments.SetArtifactPath(ctx, a.ID, tier, path, now); err != nil {
		return false, fmt.Errorf("set artifact path: %w", err)
	}
	switch tier {
	case assessments.ArtifactExecutiveSummary:
		a.ExecutiveSummaryPath = &path
	case assessments.ArtifactDetailedAnalysis:
		a.DetailedAnalysisPath = &path
	case assessments.ArtifactImplementationKit:
		a.ImplementationKitPath = &path
	}

	metrics.IncDeliverableAssembled(tier)
	telemetry.Info("deliverable.assembled", map[string]any{
		"request_id":    requestid.From(ctx),
		"assessment_id": a.ID,
		"tier":          tier,
		"path":          path,
		"domains":       len(included),
		"degraded":      art.Degraded,
		"upgrade":       existing.ID != "",
	})
	return true, nil
}

// ListByAssessment returns issued deliverables in tier order.
func (g *Aggregator) ListByAssessment(ctx context.Context, assessmentID string) ([]Deliverable, error) {
	return g.Deliverables.ListByAssessment(ctx, assessmentID)
}

func (g *Aggregator) lock(assessmentID string) *sync.Mutex {
	mu, _ := g.locks.LoadOrStore(assessmentID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (g *Aggregator) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now().UTC()
}

func domainSlugs(included []DomainSection) []string {
	out := make([]string, 0, len(included))
	for _, s := range included {
		out = append(out, s.Domain)
	}
	return out
}

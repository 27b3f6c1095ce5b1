// Package progress derives completion counters from responses and the
// question bank. It holds no state of its own.
package progress

import (
	"context"
	"fmt"

	"assessment-backend/internal/assessments"
	"assessment-backend/internal/catalog"
	"assessment-backend/internal/responses"
)

// DomainProgress counts resolved and answered questions for one domain.
type DomainProgress struct {
	Domain   string `json:"domain"`
	Answered int    `json:"answered"`
	Total    int    `json:"total"`
	Complete bool   `json:"complete"`
}

// Snapshot is the derived progress of one assessment.
type Snapshot struct {
	Percent           int              `json:"percent"`
	QuestionsAnswered int              `json:"questionsAnswered"`
	TotalQuestions    int              `json:"totalQuestions"`
	DomainsComplete   int              `json:"domainsComplete"`
	CoreAnswered      int              `json:"coreAnswered"`
	CoreTotal         int              `json:"coreTotal"`
	CoreComplete      bool             `json:"coreComplete"`
	Domains           []DomainProgress `json:"domains"`
}

// Tracker reads responses and the bank to compute a Snapshot.
type Tracker struct {
	Bank      *catalog.Bank
	Responses responses.Repo
}

// Progress computes the snapshot for a. Follow-up visibility is re-evaluated
// against the current answers on every call.
func (t *Tracker) Progress(ctx context.Context, a assessments.Assessment) (Snapshot, error) {
	rs, err := t.Responses.ListByAssessment(ctx, a.ID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list responses: %w", err)
	}
	answers := responses.Answers(rs)
	resolved, err := t.Bank.Resolve(ctx, a.Industry, answers)
	if err != nil {
		return Snapshot{}, err
	}
	core, err := t.Bank.CoreQuestions(ctx, a.Industry)
	if err != nil {
		return Snapshot{}, err
	}
	return Compute(a.TotalQuestions, resolved, core, rs), nil
}

// Compute is the pure part of Progress.
func Compute(totalQuestions int, resolved map[string][]catalog.Question, core []catalog.Question, rs []responses.Response) Snapshot {
	answered := make(map[string]bool, len(rs))
	for _, r := range rs {
		if r.Answered() {
			answered[r.Domain+"/"+r.QuestionID] = true
		}
	}

	snap := Snapshot{TotalQuestions: totalQuestions}
	snap.QuestionsAnswered, snap.Percent = assessments.ClampProgress(responses.CountAnswered(rs), totalQuestions)

	for _, domain := range assessments.Domains() {
		dp := DomainProgress{Domain: domain, Total: len(resolved[domain])}
		for _, q := range resolved[domain] {
			if answered[q.Domain+"/"+q.ID] {
				dp.Answered++
			}
		}
		dp.Complete = dp.Total > 0 && dp.Answered == dp.Total
		if dp.Complete {
			snap.DomainsComplete++
		}
		snap.Domains = append(snap.Domains, dp)
	}

	snap.CoreTotal = len(core)
	for _, q := range core {
		if answered[q.Domain+"/"+q.ID] {
			snap.CoreAnswered++
		}
	}
	snap.CoreComplete = snap.CoreTotal > 0 && snap.CoreAnswered == snap.CoreTotal
	return snap
}

package catalog

import (
	"context"
	"fmt"
	"sort"
)

// Bank resolves the question sequence for an assessment profile. It keeps no
// cached decisions; follow-up visibility is recomputed from answers on every
// call.
type Bank struct {
	Repo Repo
}

// NewBank constructs a Bank over repo.
func NewBank(repo Repo) *Bank {
	return &Bank{Repo: repo}
}

// QuestionsFor returns the ordered questions for one domain: applicable core
// and industry questions, plus follow-ups whose trigger holds for answers.
func (b *Bank) QuestionsFor(ctx context.Context, industry, domain string, answers map[string]Answer) ([]Question, error) {
	all, err := b.Repo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	var out []Question
	for _, q := range all {
		if q.Domain != domain {
			continue
		}
		if include(q, industry, answers) {
			out = append(out, q)
		}
	}
	sortQuestions(out)
	return out, nil
}

// Resolve returns the resolved question set for every domain, keyed by domain.
func (b *Bank) Resolve(ctx context.Context, industry string, answers map[string]Answer) (map[string][]Question, error) {
	all, err := b.Repo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	out := make(map[string][]Question)
	for _, q := range all {
		if include(q, industry, answers) {
			out[q.Domain] = append(out[q.Domain], q)
		}
	}
	for domain := range out {
		sortQuestions(out[domain])
	}
	return out, nil
}

// CoreQuestions returns every applicable non-follow-up question for industry.
func (b *Bank) CoreQuestions(ctx context.Context, industry string) ([]Question, error) {
	all, err := b.Repo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	var out []Question
	for _, q := range all {
		if q.Core() && q.AppliesTo(industry) {
			out = append(out, q)
		}
	}
	sortQuestions(out)
	return out, nil
}

// Applicable looks up questionID and checks it is currently visible for the
// profile. Follow-ups are visible only while their trigger holds.
func (b *Bank) Applicable(ctx context.Context, industry, questionID string, answers map[string]Answer) (Question, error) {
	q, err := b.Repo.GetByID(ctx, questionID)
	if err != nil {
		return Question{}, err
	}
	if !include(q, industry, answers) {
		return Question{}, fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
	}
	return q, nil
}

func include(q Question, industry string, answers map[string]Answer) bool {
	if !q.AppliesTo(industry) {
		return false
	}
	if q.Type != TypeFollowUp {
		return true
	}
	return q.Trigger != nil && q.Trigger.Evaluate(answers)
}

func sortQuestions(qs []Question) {
	sort.SliceStable(qs, func(i, j int) bool {
		if qs[i].Order != qs[j].Order {
			return qs[i].Order < qs[j].Order
		}
		return qs[i].ID < qs[j].ID
	})
}

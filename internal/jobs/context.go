package jobs

import (
	"context"
	"fmt"

	"assessment-backend/internal/agents"
	"assessment-backend/internal/assessments"
	"assessment-backend/internal/catalog"
	"assessment-backend/internal/documents"
	"assessment-backend/internal/extract"
	"assessment-backend/internal/responses"
	"assessment-backend/internal/shared/storage/object"
	"assessment-backend/internal/shared/telemetry"
)

// ContextBuilder assembles the read-only material handed to an agent.
type ContextBuilder struct {
	Responses    responses.Repo
	Bank         *catalog.Bank
	Documents    documents.Repo
	Store        object.ObjectStore
	ExcerptChars int
}

// Build resolves the domain's questions against current answers and pairs
// each answered one with its response. Document excerpts are best effort.
func (b *ContextBuilder) Build(ctx context.Context, a assessments.Assessment, domain string) (agents.AssessmentContext, error) {
	actx := agents.AssessmentContext{
		AssessmentID: a.ID,
		Industry:     a.Industry,
		Domain:       domain,
		DomainName:   assessments.DisplayName(domain),
		Answers:      []agents.ContextAnswer{},
		Documents:    []agents.ContextDocument{},
	}
	rs, err := b.Responses.ListByAssessment(ctx, a.ID)
	if err != nil {
		return actx, fmt.Errorf("list responses: %w", err)
	}
	questions, err := b.Bank.QuestionsFor(ctx, a.Industry, domain, responses.Answers(rs))
	if err != nil {
		return actx, err
	}
	byQuestion := make(map[string]responses.Response, len(rs))
	for _, r := range rs {
		if r.Domain == domain && r.Answered() {
			byQuestion[r.QuestionID] = r
		}
	}
	for _, q := range questions {
		r, ok := byQuestion[q.ID]
		if !ok {
			continue
		}
		actx.Answers = append(actx.Answers, agents.ContextAnswer{
			QuestionID: q.ID,
			Question:   q.Text,
			Type:       q.Type,
			Text:       r.Text,
			Score:      r.Score,
		})
	}

	if b.Documents == nil {
		return actx, nil
	}
	docs, err := b.Documents.ListByAssessment(ctx, a.ID)
	if err != nil {
		return actx, fmt.Errorf("list documents: %w", err)
	}
	for _, d := range docs {
		cd := agents.ContextDocument{
			FileName:   d.FileName,
			MimeType:   d.MimeType,
			SizeBytes:  d.SizeBytes,
			StorageKey: d.StorageKey,
		}
		if b.Store != nil && b.ExcerptChars > 0 {
			excerpt, err := extract.Excerpt(ctx, b.Store, d.StorageKey, d.MimeType, d.FileName, b.ExcerptChars)
			if err != nil {
				telemetry.Warn("document.excerpt_failed", map[string]any{
					"assessment_id": a.ID,
					"document_id":   d.ID,
					"mime_type":     d.MimeType,
					"error":         err.Error(),
				})
			} else {
				cd.Excerpt = excerpt
			}
		}
		actx.Documents = append(actx.Documents, cd)
	}
	return actx, nil
}

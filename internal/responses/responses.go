// Package responses stores respondent answers keyed by assessment, domain and
// question.
package responses

import (
	"context"
	"errors"
	"strings"
	"time"

	"assessment-backend/internal/catalog"
)

var ErrNotFound = errors.New("response not found")

// Response is one answer. A response row may exist with neither score nor
// text; it does not count as answered.
type Response struct {
	AssessmentID string    `json:"assessmentId"`
	Domain       string    `json:"domain"`
	QuestionID   string    `json:"questionId"`
	Text         string    `json:"text"`
	Score        *float64  `json:"score,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Answered reports whether the response is non-empty.
func (r Response) Answered() bool {
	return r.Score != nil || strings.TrimSpace(r.Text) != ""
}

// Repo persists responses. Upsert overwrites an existing answer in place.
type Repo interface {
	Upsert(ctx context.Context, r Response) error
	ListByAssessment(ctx context.Context, assessmentID string) ([]Response, error)
	ListByDomain(ctx context.Context, assessmentID, domain string) ([]Response, error)
}

// Answers indexes responses by question id for trigger evaluation.
func Answers(rs []Response) map[string]catalog.Answer {
	out := make(map[string]catalog.Answer, len(rs))
	for _, r := range rs {
		out[r.QuestionID] = catalog.Answer{Score: r.Score, Text: r.Text}
	}
	return out
}

// CountAnswered counts non-empty responses.
func CountAnswered(rs []Response) int {
	n := 0
	for _, r := range rs {
		if r.Answered() {
			n++
		}
	}
	return n
}

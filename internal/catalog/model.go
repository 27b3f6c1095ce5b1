package catalog

import "errors"

const (
	TypeCore             = "core"
	TypeIndustrySpecific = "industry_specific"
	TypeFollowUp         = "follow_up"
)

var (
	ErrNotFound        = errors.New("question not found")
	ErrUnknownQuestion = errors.New("question does not apply to this assessment")
)

// Option is one selectable answer and the score it contributes.
type Option struct {
	Label string  `json:"label" yaml:"label"`
	Score float64 `json:"score" yaml:"score"`
}

// Question is an immutable catalogue entry.
type Question struct {
	ID       string     `json:"id"`
	Domain   string     `json:"domain"`
	Text     string     `json:"text"`
	Type     string     `json:"type"`
	Industry string     `json:"industry,omitempty"` // empty applies to every industry
	Order    int        `json:"order"`
	Options  []Option   `json:"options"`
	Trigger  *Condition `json:"trigger,omitempty"`
	Active   bool       `json:"active"`
}

// AppliesTo reports whether the question is visible for industry, ignoring
// follow-up triggers.
func (q Question) AppliesTo(industry string) bool {
	if !q.Active {
		return false
	}
	return q.Industry == "" || equalFold(q.Industry, industry)
}

// Core reports whether the question counts towards the required core set.
func (q Question) Core() bool {
	return q.Type != TypeFollowUp
}

// ScoreFor returns the score of the option whose label matches text.
func (q Question) ScoreFor(text string) (float64, bool) {
	for _, opt := range q.Options {
		if equalFold(opt.Label, text) {
			return opt.Score, true
		}
	}
	return 0, false
}

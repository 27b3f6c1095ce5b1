package catalog

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"assessment-backend/internal/assessments"
)

type fileQuestion struct {
	ID       string     `yaml:"id"`
	Domain   string     `yaml:"domain"`
	Text     string     `yaml:"text"`
	Type     string     `yaml:"type"`
	Industry string     `yaml:"industry"`
	Order    int        `yaml:"order"`
	Options  []Option   `yaml:"options"`
	Trigger  *Condition `yaml:"trigger"`
	Active   *bool      `yaml:"active"`
}

type catalogueFile struct {
	Questions []fileQuestion `yaml:"questions"`
}

// LoadFile reads a YAML catalogue from path.
func LoadFile(path string) ([]Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalogue: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates the questions section of a YAML catalogue.
// Other top-level sections are ignored.
func Parse(data []byte) ([]Question, error) {
	var f catalogueFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode catalogue: %w", err)
	}
	seen := make(map[string]bool, len(f.Questions))
	out := make([]Question, 0, len(f.Questions))
	for i, fq := range f.Questions {
		id := strings.TrimSpace(fq.ID)
		if id == "" {
			return nil, fmt.Errorf("question %d: missing id", i)
		}
		if seen[id] {
			return nil, fmt.Errorf("question %s: duplicate id", id)
		}
		seen[id] = true
		domain, ok := assessments.NormalizeDomain(fq.Domain)
		if !ok {
			return nil, fmt.Errorf("question %s: unknown domain %q", id, fq.Domain)
		}
		qType := strings.ToLower(strings.TrimSpace(fq.Type))
		if qType == "" {
			qType = TypeCore
		}
		switch qType {
		case TypeCore, TypeIndustrySpecific, TypeFollowUp:
		default:
			return nil, fmt.Errorf("question %s: unknown type %q", id, fq.Type)
		}
		if qType == TypeIndustrySpecific && strings.TrimSpace(fq.Industry) == "" {
			return nil, fmt.Errorf("question %s: industry_specific needs industry", id)
		}
		if qType == TypeFollowUp && fq.Trigger == nil {
			return nil, fmt.Errorf("question %s: follow_up needs trigger", id)
		}
		if fq.Trigger != nil {
			if err := fq.Trigger.Normalize(); err != nil {
				return nil, fmt.Errorf("question %s: %w", id, err)
			}
		}
		active := true
		if fq.Active != nil {
			active = *fq.Active
		}
		out = append(out, Question{
			ID:       id,
			Domain:   domain,
			Text:     strings.TrimSpace(fq.Text),
			Type:     qType,
			Industry: strings.ToLower(strings.TrimSpace(fq.Industry)),
			Order:    fq.Order,
			Options:  fq.Options,
			Trigger:  fq.Trigger,
			Active:   active,
		})
	}
	for _, q := range out {
		if q.Trigger == nil {
			continue
		}
		for _, ref := range q.Trigger.References() {
			if !seen[ref] {
				return nil, fmt.Errorf("question %s: trigger references unknown question %s", q.ID, ref)
			}
		}
	}
	return out, nil
}

// Seed upserts every question into repo.
func Seed(ctx context.Context, repo Repo, questions []Question) error {
	for _, q := range questions {
		if err := repo.Upsert(ctx, q); err != nil {
			return fmt.Errorf("seed question %s: %w", q.ID, err)
		}
	}
	return nil
}

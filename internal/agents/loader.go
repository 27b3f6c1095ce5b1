package agents

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

type fileAgent struct {
	ID        string    `yaml:"id"`
	Name      string    `yaml:"name"`
	Specialty string    `yaml:"specialty"`
	Active    *bool     `yaml:"active"`
	CreatedAt time.Time `yaml:"created_at"`
}

type agentsFile struct {
	Agents []fileAgent `yaml:"agents"`
}

// LoadFile reads the agents section of a YAML catalogue.
func LoadFile(path string) ([]Agent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalogue: %w", err)
	}
	return Parse(data)
}

// Parse decodes the agents section of a YAML catalogue. Ids must be UUIDs.
func Parse(data []byte) ([]Agent, error) {
	var f agentsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode agents: %w", err)
	}
	seen := make(map[string]bool, len(f.Agents))
	out := make([]Agent, 0, len(f.Agents))
	for i, fa := range f.Agents {
		id, err := uuid.Parse(strings.TrimSpace(fa.ID))
		if err != nil {
			return nil, fmt.Errorf("agent %d: invalid id %q: %w", i, fa.ID, err)
		}
		if seen[id.String()] {
			return nil, fmt.Errorf("agent %s: duplicate id", id)
		}
		seen[id.String()] = true
		if strings.TrimSpace(fa.Name) == "" || strings.TrimSpace(fa.Specialty) == "" {
			return nil, fmt.Errorf("agent %s: name and specialty are required", id)
		}
		active := true
		if fa.Active != nil {
			active = *fa.Active
		}
		out = append(out, Agent{
			ID:        id.String(),
			Name:      strings.TrimSpace(fa.Name),
			Specialty: strings.ToLower(strings.TrimSpace(fa.Specialty)),
			Active:    active,
			CreatedAt: fa.CreatedAt.UTC(),
		})
	}
	return out, nil
}

// Seed upserts every agent into repo.
func Seed(ctx context.Context, repo Repo, pool []Agent) error {
	for _, a := range pool {
		if err := repo.Upsert(ctx, a); err != nil {
			return fmt.Errorf("seed agent %s: %w", a.ID, err)
		}
	}
	return nil
}

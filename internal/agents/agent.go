package agents

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
)

var (
	ErrNotFound      = errors.New("agent not found")
	ErrNoActiveAgent = errors.New("no active agent available")
)

// Agent is a specialist capability identity. The pool is read-only during
// orchestration.
type Agent struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Specialty string    `json:"specialty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

// Repo reads the agent pool. Upsert exists for seeding only.
type Repo interface {
	ListActive(ctx context.Context) ([]Agent, error)
	GetByID(ctx context.Context, id string) (Agent, error)
	Upsert(ctx context.Context, a Agent) error
}

// Select picks the agent for domain: active specialists first, then any
// active agent. Ties break on creation time, then id, so dispatch is
// reproducible.
func Select(pool []Agent, domain string) (Agent, error) {
	var specialists, others []Agent
	for _, a := range pool {
		if !a.Active {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(a.Specialty), domain) {
			specialists = append(specialists, a)
		} else {
			others = append(others, a)
		}
	}
	for _, group := range [][]Agent{specialists, others} {
		if len(group) == 0 {
			continue
		}
		sort.Slice(group, func(i, j int) bool {
			if !group[i].CreatedAt.Equal(group[j].CreatedAt) {
				return group[i].CreatedAt.Before(group[j].CreatedAt)
			}
			return group[i].ID < group[j].ID
		})
		return group[0], nil
	}
	return Agent{}, ErrNoActiveAgent
}

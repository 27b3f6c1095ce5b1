package catalog

import "context"

// Repo reads the question catalogue. Upsert exists for seeding only.
type Repo interface {
	ListActive(ctx context.Context) ([]Question, error)
	GetByID(ctx context.Context, id string) (Question, error)
	Upsert(ctx context.Context, q Question) error
}

// Package documents exposes read-only metadata for supporting documents
// attached to an assessment. Upload handling lives outside this service.
package documents

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("document not found")

// Document is the metadata row for one uploaded file. StorageKey addresses
// the object store.
type Document struct {
	ID           string    `json:"id"`
	AssessmentID string    `json:"assessmentId"`
	FileName     string    `json:"fileName"`
	MimeType     string    `json:"mimeType"`
	SizeBytes    int64     `json:"sizeBytes"`
	StorageKey   string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Repo lists document metadata. Create exists for ingest tooling and tests.
type Repo interface {
	Create(ctx context.Context, doc Document) error
	ListByAssessment(ctx context.Context, assessmentID string) ([]Document, error)
}

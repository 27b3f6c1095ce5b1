package documents

import (
	"context"
	"database/sql"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) Create(ctx context.Context, doc Document) error {
	const query = `
INSERT INTO documents (id, assessment_id, file_name, mime_type, size_bytes, storage_key, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.DB.ExecContext(ctx, query,
		doc.ID,
		doc.AssessmentID,
		doc.FileName,
		doc.MimeType,
		doc.SizeBytes,
		doc.StorageKey,
		doc.CreatedAt,
	)
	return err
}

func (r *PGRepo) ListByAssessment(ctx context.Context, assessmentID string) ([]Document, error) {
	const query = `
SELECT id, assessment_id, file_name, mime_type, size_bytes, storage_key, created_at
FROM documents
WHERE assessment_id = $1
ORDER BY created_at, id`
	rows, err := r.DB.QueryContext(ctx, query, assessmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.AssessmentID, &d.FileName, &d.MimeType, &d.SizeBytes, &d.StorageKey, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

var _ Repo = (*PGRepo)(nil)

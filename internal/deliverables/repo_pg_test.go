package deliverables

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGRepoUpsertAndGet(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	repo := &PGRepo{DB: db}
	now := time.Now().UTC()

	mock.ExpectExec("INSERT INTO deliverables").
		WithArgs("d1", "a1", "executive_summary", "assessments/a1/executive_summary/abc.json", "abc", []byte(`["revenue_engine"]`), true, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	err = repo.Upsert(context.Background(), Deliverable{
		ID: "d1", AssessmentID: "a1", Tier: "executive_summary",
		Path: "assessments/a1/executive_summary/abc.json", ContentHash: "abc",
		Domains: []string{"revenue_engine"}, Degraded: true, AssembledAt: now,
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	mock.ExpectQuery("FROM deliverables WHERE assessment_id = \\$1 AND tier = \\$2").
		WithArgs("a1", "detailed_analysis").
		WillReturnError(sql.ErrNoRows)
	if _, err := repo.Get(context.Background(), "a1", "detailed_analysis"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

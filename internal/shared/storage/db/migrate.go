package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"

	"assessment-backend/internal/shared/telemetry"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// gooseLogger routes goose progress lines into the structured log.
type gooseLogger struct{}

func (gooseLogger) Printf(format string, v ...interface{}) {
	telemetry.Info("db.migrate", map[string]any{"message": strings.TrimSpace(fmt.Sprintf(format, v...))})
}

func (gooseLogger) Fatalf(format string, v ...interface{}) {
	msg := strings.TrimSpace(fmt.Sprintf(format, v...))
	telemetry.Error("db.migrate_fatal", map[string]any{"message": msg})
	panic(msg)
}

func configureGoose() error {
	goose.SetBaseFS(migrationFiles)
	goose.SetLogger(gooseLogger{})
	return goose.SetDialect("postgres")
}

// RunMigrations applies embedded SQL migrations via goose. If database is nil, it's a no-op.
func RunMigrations(ctx context.Context, database *sql.DB) error {
	if database == nil {
		return nil
	}
	if err := configureGoose(); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, database, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// SchemaVersion reports the latest applied migration version.
func SchemaVersion(ctx context.Context, database *sql.DB) (int64, error) {
	if err := configureGoose(); err != nil {
		return 0, err
	}
	return goose.GetDBVersionContext(ctx, database)
}

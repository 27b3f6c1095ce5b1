package main

// Run database migrations and seed the question/agent catalogue:
//   go run ./cmd/migrate
//   CATALOG_FILE=catalog.yaml go run ./cmd/migrate

import (
	"context"
	"log"
	"os"

	"assessment-backend/internal/agents"
	"assessment-backend/internal/bootstrap"
	"assessment-backend/internal/catalog"
	"assessment-backend/internal/shared/config"
	"assessment-backend/internal/shared/storage/db"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	opts := db.OptionsFromEnv(db.DefaultMigrateOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		log.Printf("failed to connect database: %v", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		log.Printf("failed to run migrations: %v", err)
		os.Exit(1)
	}

	data, err := bootstrap.CatalogData(cfg.CatalogFile)
	if err != nil {
		log.Printf("failed to read catalog: %v", err)
		os.Exit(1)
	}
	questions, err := catalog.Parse(data)
	if err != nil {
		log.Printf("invalid catalog: %v", err)
		os.Exit(1)
	}
	pool, err := agents.Parse(data)
	if err != nil {
		log.Printf("invalid agent pool: %v", err)
		os.Exit(1)
	}
	if err := catalog.Seed(ctx, &catalog.PGRepo{DB: sqlDB}, questions); err != nil {
		log.Printf("failed to seed questions: %v", err)
		os.Exit(1)
	}
	if err := agents.Seed(ctx, &agents.PGRepo{DB: sqlDB}, pool); err != nil {
		log.Printf("failed to seed agents: %v", err)
		os.Exit(1)
	}
	version, err := db.SchemaVersion(ctx, sqlDB)
	if err != nil {
		log.Printf("failed to read schema version: %v", err)
		os.Exit(1)
	}
	log.Printf("schema at version %d; seeded %d questions and %d agents", version, len(questions), len(pool))
}

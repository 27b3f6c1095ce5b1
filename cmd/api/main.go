package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"assessment-backend/internal/bootstrap"
	"assessment-backend/internal/shared/config"
	"assessment-backend/internal/shared/server"
	"assessment-backend/internal/shared/telemetry"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg := config.Load()
	if err := telemetry.Init(cfg.Env); err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer telemetry.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.BuildContext(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}

	// With an external queue the worker binary owns the sweep; in-process
	// runs sweep here.
	if app.QueueMode == bootstrap.QueueModeInProcess {
		go func() {
			_ = app.Sweeper.Run(ctx)
		}()
	}

	srv := &http.Server{
		Addr:              server.Addr(cfg.Port),
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	telemetry.Info("api.started", map[string]any{"addr": srv.Addr, "queue_mode": app.QueueMode})
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
	if err := app.Close(); err != nil {
		telemetry.Error("api.close_failed", map[string]any{"error": err.Error()})
	}
}

// Package health reports process readiness for load balancers.
package health

import (
	"context"
	"database/sql"
	"time"
)

const pingTimeout = 2 * time.Second

// Status is the /health payload.
type Status struct {
	OK       bool   `json:"ok"`
	Database string `json:"database"`
	Queue    string `json:"queue"`
}

// Service encapsulates health-related checks. A nil DB means the process
// runs on in-memory repositories.
type Service struct {
	DB    *sql.DB
	Queue string
}

// NewService constructs a new health service.
func NewService(db *sql.DB, queueMode string) *Service {
	return &Service{DB: db, Queue: queueMode}
}

// Status pings the database and reports the queue transport in use.
func (s *Service) Status(ctx context.Context) Status {
	st := Status{OK: true, Database: "memory", Queue: s.Queue}
	if st.Queue == "" {
		st.Queue = "inprocess"
	}
	if s.DB == nil {
		return st
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := s.DB.PingContext(pingCtx); err != nil {
		st.OK = false
		st.Database = "down"
		return st
	}
	st.Database = "up"
	return st
}

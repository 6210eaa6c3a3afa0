package sqlstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/loykin/appwatch/internal/history"
	"github.com/loykin/appwatch/internal/version"
)

func TestPostgresStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer func() {
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Errorf("Failed to terminate PostgreSQL container: %v", err)
		}
	}()

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	s, err := New(connStr, history.Options{Retention: 2})
	if err != nil {
		t.Fatalf("Failed to create PostgreSQL store: %v", err)
	}
	defer func() {
		if err := s.Close(); err != nil {
			t.Errorf("Failed to close store: %v", err)
		}
	}()

	for i := 0; i < 4; i++ {
		if _, err := s.Append(ctx, version.IOS, version.Record{Version: fmt.Sprintf("4.%d.0", i), ObservedAt: time.Now()}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	rs := s.Load(ctx, version.IOS).Records()
	if len(rs) != 2 || rs[0].Version != "4.3.0" || rs[1].Version != "4.2.0" {
		t.Fatalf("unexpected history: %+v", rs)
	}
	n, err := s.countRows(ctx, version.IOS)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 rows, got %d (%v)", n, err)
	}
}

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/fexdroid/gamelaunchd/internal/history"
)

func TestPostgresSink_Integration(t *testing.T) {
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

	sink, err := New(connStr)
	if err != nil {
		t.Fatalf("Failed to create sink: %v", err)
	}
	defer func() { _ = sink.Close() }()

	started := time.Now().Add(-42 * time.Second)
	ended := time.Now()
	events := []history.Event{
		{
			Type:       history.EventLaunch,
			OccurredAt: started,
			Record: history.ExecutionRecord{
				GameID:    "100",
				GameName:  "Foo",
				StartedAt: started,
			},
		},
		{
			Type:       history.EventResult,
			OccurredAt: ended,
			Record: history.ExecutionRecord{
				GameID:    "100",
				GameName:  "Foo",
				StartedAt: started,
				EndedAt:   ended,
				Duration:  ended.Sub(started),
				ExitCode:  137,
				Success:   false,
				Error:     "game exited with code 137",
			},
		},
	}
	for _, e := range events {
		if err := sink.Send(ctx, e); err != nil {
			t.Fatalf("Send(%s): %v", e.Type, err)
		}
	}

	var count int
	if err := sink.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM game_history WHERE game_id = '100'`).Scan(&count); err != nil {
		t.Fatalf("count query: %v", err)
	}
	if count != 2 {
		t.Fatalf("rows = %d, want 2", count)
	}
}

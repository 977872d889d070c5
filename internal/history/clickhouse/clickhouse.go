package clickhouse

import (
	"context"
	"fmt"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/fexdroid/gamelaunchd/internal/history"
)

const defaultTable = "game_history"

// Sink exports launch history events to ClickHouse for analytics.
type Sink struct {
	conn  driver.Conn
	table string
}

// New creates a ClickHouse history sink and ensures its table exists.
// An empty table name falls back to "game_history".
func New(addr, table string) (*Sink, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: "default",
			Username: "default",
			Password: "",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}
	sink := &Sink{conn: conn, table: tableOrDefault(table)}
	if err := sink.ensureSchema(context.Background()); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return sink, nil
}

func tableOrDefault(table string) string {
	if t := strings.TrimSpace(table); t != "" {
		return t
	}
	return defaultTable
}

func (s *Sink) ensureSchema(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		occurred_at DateTime64(3),
		event_type String,
		game_id String,
		game_name String,
		started_at DateTime64(3),
		ended_at DateTime64(3),
		duration_ms Int64,
		exit_code Int32,
		success UInt8,
		error String
	) ENGINE = MergeTree() ORDER BY (game_id, occurred_at)`, s.table)
	return s.conn.Exec(ctx, stmt)
}

func (s *Sink) Send(ctx context.Context, e history.Event) error {
	query := fmt.Sprintf(`INSERT INTO %s (occurred_at, event_type, game_id, game_name, started_at, ended_at, duration_ms, exit_code, success, error) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table)

	rec := e.Record
	success := uint8(0)
	if rec.Success {
		success = 1
	}
	err := s.conn.Exec(ctx, query,
		e.OccurredAt,
		string(e.Type),
		rec.GameID,
		rec.GameName,
		rec.StartedAt,
		rec.EndedAt,
		rec.Duration.Milliseconds(),
		int32(rec.ExitCode),
		success,
		rec.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event into ClickHouse: %w", err)
	}
	return nil
}

func (s *Sink) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

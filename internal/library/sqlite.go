package library

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	_ "modernc.org/sqlite"
)

// DB reads installation records from the SQLite database maintained by the
// game-library scanner (modernc.org/sqlite driver, CGO-free). The launcher
// never writes game rows; EnsureSchema exists so tests and fresh installs
// start from a valid file.
type DB struct {
	db *sql.DB
}

// Open opens the library database at path. Use ":memory:" for in-memory.
func Open(path string) (*DB, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty sqlite path")
	}
	d, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	// busy timeout helps with short concurrent locks while the scanner writes
	_, _ = d.Exec("PRAGMA busy_timeout=3000;")
	l := &DB{db: d}
	if err := l.EnsureSchema(context.Background()); err != nil {
		_ = d.Close()
		return nil, err
	}
	return l, nil
}

func (l *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS games(
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			executable TEXT NOT NULL,
			install_dir TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_games_executable ON games(executable);`,
	}
	for _, q := range stmts {
		if _, err := l.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (l *DB) Close() error { return l.db.Close() }

func (l *DB) ByID(ctx context.Context, id string) (Installation, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT id, name, executable, install_dir FROM games WHERE id = ?;`, id)
	return scanGame(row)
}

func (l *DB) ByExecutable(ctx context.Context, path string) (Installation, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT id, name, executable, install_dir FROM games WHERE executable = ?;`, path)
	return scanGame(row)
}

func (l *DB) List(ctx context.Context) ([]Installation, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, name, executable, install_dir FROM games ORDER BY name;`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Installation
	for rows.Next() {
		var g Installation
		if err := rows.Scan(&g.ID, &g.Name, &g.Executable, &g.InstallDir); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// Upsert writes an installation row. Intended for tests and for seeding a
// library file by hand; the scanner owns the table in production.
func (l *DB) Upsert(ctx context.Context, g Installation) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO games(id, name, executable, install_dir)
		VALUES(?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name,
			executable=excluded.executable,
			install_dir=excluded.install_dir;`,
		g.ID, g.Name, g.Executable, g.InstallDir)
	return err
}

func scanGame(row *sql.Row) (Installation, error) {
	var g Installation
	err := row.Scan(&g.ID, &g.Name, &g.Executable, &g.InstallDir)
	if errors.Is(err, sql.ErrNoRows) {
		return Installation{}, ErrNotFound
	}
	if err != nil {
		return Installation{}, err
	}
	return g, nil
}

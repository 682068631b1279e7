package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists saved graphs in a single-file SQLite database.
// Grounded on the teacher's graph/store/sqlite.go connection-management
// style (WAL mode, foreign keys, busy timeout, single-writer pool),
// with the checkpoint/step/idempotency/outbox tables it carried
// replaced by one `graphs` table (DESIGN.md: this store now persists
// saved workflow definitions, not checkpointed execution state).
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore opens (creating if necessary) a SQLite database at
// path and ensures its schema exists. path may be ":memory:" for a
// throwaway database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite connection: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: %s: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) createTables(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS graphs (
			id TEXT NOT NULL PRIMARY KEY,
			name TEXT NOT NULL,
			definition_json TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("store: create graphs table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_graphs_updated_at ON graphs(updated_at)"); err != nil {
		return fmt.Errorf("store: create idx_graphs_updated_at: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Save(ctx context.Context, g SavedGraph) error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return fmt.Errorf("store: closed")
	}

	if g.UpdatedAt.IsZero() {
		g.UpdatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO graphs (id, name, definition_json, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name, definition_json=excluded.definition_json, updated_at=excluded.updated_at
	`, g.ID, g.Name, string(g.Definition), g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: save graph %q: %w", g.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, id string) (SavedGraph, error) {
	row := s.db.QueryRowContext(ctx, "SELECT id, name, definition_json, updated_at FROM graphs WHERE id = ?", id)
	var g SavedGraph
	var def string
	if err := row.Scan(&g.ID, &g.Name, &def, &g.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return SavedGraph{}, ErrNotFound
		}
		return SavedGraph{}, fmt.Errorf("store: load graph %q: %w", id, err)
	}
	g.Definition = []byte(def)
	return g, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]SavedGraph, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, definition_json, updated_at FROM graphs ORDER BY updated_at DESC")
	if err != nil {
		return nil, fmt.Errorf("store: list graphs: %w", err)
	}
	defer rows.Close()

	var out []SavedGraph
	for rows.Next() {
		var g SavedGraph
		var def string
		if err := rows.Scan(&g.ID, &g.Name, &def, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan graph row: %w", err)
		}
		g.Definition = []byte(def)
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM graphs WHERE id = ?", id); err != nil {
		return fmt.Errorf("store: delete graph %q: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

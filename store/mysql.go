package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore persists saved graphs in MySQL/MariaDB. Grounded on the
// teacher's graph/store/mysql.go connection-pool configuration
// (max open/idle conns, conn lifetime), with its
// checkpoint/step-history schema replaced by one `graphs` table, same
// as SQLiteStore.
type MySQLStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewMySQLStore opens a MySQL connection pool against dsn (e.g.
// "user:pass@tcp(localhost:3306)/aituberflow?parseTime=true") and
// ensures its schema exists.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open mysql connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping mysql: %w", err)
	}

	s := &MySQLStore{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *MySQLStore) createTables(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS graphs (
			id VARCHAR(255) NOT NULL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			definition_json JSON NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			INDEX idx_graphs_updated_at (updated_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("store: create graphs table: %w", err)
	}
	return nil
}

func (s *MySQLStore) Save(ctx context.Context, g SavedGraph) error {
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
		ON DUPLICATE KEY UPDATE name=VALUES(name), definition_json=VALUES(definition_json), updated_at=VALUES(updated_at)
	`, g.ID, g.Name, string(g.Definition), g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: save graph %q: %w", g.ID, err)
	}
	return nil
}

func (s *MySQLStore) Load(ctx context.Context, id string) (SavedGraph, error) {
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

func (s *MySQLStore) List(ctx context.Context) ([]SavedGraph, error) {
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

func (s *MySQLStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM graphs WHERE id = ?", id); err != nil {
		return fmt.Errorf("store: delete graph %q: %w", id, err)
	}
	return nil
}

func (s *MySQLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

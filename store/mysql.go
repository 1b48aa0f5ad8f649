package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/lmlang/graphlang/program"
)

// MySQLStore is a MySQL/MariaDB-backed GraphStore, grounded in the
// teacher's MySQLStore[S]: pooled connections sized for a multi-worker
// deployment, sharing the same programs table shape as SQLiteStore.
type MySQLStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewMySQLStore opens a pooled connection to dsn and creates the
// programs table if absent. dsn follows the go-sql-driver/mysql format,
// e.g. "user:pass@tcp(localhost:3306)/lmlang?parseTime=true".
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: failed to open mysql connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: failed to ping mysql: %w", err)
	}

	s := &MySQLStore{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: failed to create tables: %w", err)
	}
	return s, nil
}

func (s *MySQLStore) createTables(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS programs (
			program_id VARCHAR(255) NOT NULL PRIMARY KEY,
			data       LONGTEXT NOT NULL,
			meta       TEXT NOT NULL,
			updated_at TIMESTAMP(6) NOT NULL,
			INDEX idx_programs_updated_at (updated_at)
		) ENGINE=InnoDB
	`); err != nil {
		return fmt.Errorf("failed to create programs table: %w", err)
	}
	return nil
}

// SaveProgram implements GraphStore.
func (s *MySQLStore) SaveProgram(ctx context.Context, programID string, g *program.Graph) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return fmt.Errorf("store: closed")
	}
	s.mu.RUnlock()

	decomposed := program.Decompose(g)
	data, err := json.Marshal(decomposed)
	if err != nil {
		return fmt.Errorf("store: failed to marshal program %q: %w", programID, err)
	}
	now := time.Now().UTC()
	meta, err := buildMeta(programID, decomposed, now)
	if err != nil {
		return fmt.Errorf("store: failed to build meta for %q: %w", programID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO programs (program_id, data, meta, updated_at)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			data = VALUES(data),
			meta = VALUES(meta),
			updated_at = VALUES(updated_at)
	`, programID, string(data), meta, now)
	if err != nil {
		return fmt.Errorf("store: failed to save program %q: %w", programID, err)
	}
	return nil
}

// LoadProgram implements GraphStore.
func (s *MySQLStore) LoadProgram(ctx context.Context, programID string) (*program.Graph, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, fmt.Errorf("store: closed")
	}
	s.mu.RUnlock()

	var data string
	err := s.db.QueryRowContext(ctx, "SELECT data FROM programs WHERE program_id = ?", programID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrProgramNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: failed to load program %q: %w", programID, err)
	}

	var decomposed program.DecomposedProgram
	if err := json.Unmarshal([]byte(data), &decomposed); err != nil {
		return nil, fmt.Errorf("store: failed to unmarshal program %q: %w", programID, err)
	}
	return program.Recompose(decomposed)
}

// DeleteProgram implements GraphStore.
func (s *MySQLStore) DeleteProgram(ctx context.Context, programID string) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return fmt.Errorf("store: closed")
	}
	s.mu.RUnlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM programs WHERE program_id = ?", programID); err != nil {
		return fmt.Errorf("store: failed to delete program %q: %w", programID, err)
	}
	return nil
}

// ListPrograms implements GraphStore, ordered most recently saved first.
func (s *MySQLStore) ListPrograms(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, fmt.Errorf("store: closed")
	}
	s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT program_id FROM programs ORDER BY updated_at DESC")
	if err != nil {
		return nil, fmt.Errorf("store: failed to list programs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: failed to scan program id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: error iterating program rows: %w", err)
	}
	return ids, nil
}

// Close closes the underlying connection pool. Safe to call more than
// once.
func (s *MySQLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *MySQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

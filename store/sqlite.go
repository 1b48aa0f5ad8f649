package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	_ "modernc.org/sqlite"

	"github.com/lmlang/graphlang/program"
)

// SQLiteStore is a SQLite-backed GraphStore, grounded in the teacher's
// SQLiteStore[S]: WAL mode, a single-writer connection pool, and
// CREATE TABLE IF NOT EXISTS migrations run on open.
//
// Each program is stored as a single row: a data column holding the
// full DecomposedProgram as tagged JSON (the format that satisfies the
// "implementations must reject unknown tags" requirement, since every
// enum field marshals through a custom MarshalJSON/UnmarshalJSON pair),
// plus a lightweight meta column built with sjson so a caller can cheaply
// inspect a program's root module or last-saved time without decoding
// the full payload.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	path   string
}

// NewSQLiteStore opens (creating if absent) a SQLite database at path,
// enabling WAL mode and running schema migrations. Refuses to open a
// database whose schema_version is newer than SchemaVersion.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: failed to open sqlite connection: %w", err)
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
			return nil, fmt.Errorf("store: failed to set %q: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: failed to create tables: %w", err)
	}
	if err := s.checkSchemaVersion(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) createTables(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("failed to create schema_meta table: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS programs (
			program_id TEXT PRIMARY KEY,
			data       TEXT NOT NULL,
			meta       TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("failed to create programs table: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_programs_updated_at ON programs(updated_at)"); err != nil {
		return fmt.Errorf("failed to create idx_programs_updated_at: %w", err)
	}
	return nil
}

// checkSchemaVersion seeds schema_meta on first open, or refuses to
// proceed if a prior run of a newer build already wrote a higher
// version here.
func (s *SQLiteStore) checkSchemaVersion(ctx context.Context) error {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM schema_meta WHERE key = 'schema_version'").Scan(&value)
	if err == sql.ErrNoRows {
		_, err := s.db.ExecContext(ctx, "INSERT INTO schema_meta (key, value) VALUES ('schema_version', ?)", strconv.Itoa(SchemaVersion))
		if err != nil {
			return fmt.Errorf("failed to seed schema_version: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read schema_version: %w", err)
	}
	found, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("store: unreadable schema_version %q: %w", value, err)
	}
	if found > SchemaVersion {
		return &SchemaTooNewError{Found: found, Supported: SchemaVersion}
	}
	return nil
}

// SaveProgram implements GraphStore.
func (s *SQLiteStore) SaveProgram(ctx context.Context, programID string, g *program.Graph) error {
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
		ON CONFLICT(program_id) DO UPDATE SET
			data = excluded.data,
			meta = excluded.meta,
			updated_at = excluded.updated_at
	`, programID, string(data), meta, now.Format("2006-01-02T15:04:05.000000000Z07:00")) // fixed width, so text order is time order
	if err != nil {
		return fmt.Errorf("store: failed to save program %q: %w", programID, err)
	}
	return nil
}

// LoadProgram implements GraphStore.
func (s *SQLiteStore) LoadProgram(ctx context.Context, programID string) (*program.Graph, error) {
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
func (s *SQLiteStore) DeleteProgram(ctx context.Context, programID string) error {
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
func (s *SQLiteStore) ListPrograms(ctx context.Context) ([]string, error) {
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

// Close closes the underlying database connection. Safe to call more
// than once.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// buildMeta assembles the lightweight sidecar document describing a
// saved program without requiring a caller to decode the full payload.
func buildMeta(programID string, d program.DecomposedProgram, now time.Time) (string, error) {
	meta := ""
	var err error
	for _, kv := range []struct {
		path string
		val  interface{}
	}{
		{"program_id", programID},
		{"root_module", uint32(d.RootModule)},
		{"function_count", len(d.Functions)},
		{"node_count", len(d.ComputeNodes)},
		{"module_count", len(d.Modules)},
		{"updated_at", now.Format(time.RFC3339Nano)},
	} {
		meta, err = sjson.Set(meta, kv.path, kv.val)
		if err != nil {
			return "", err
		}
	}
	return meta, nil
}

// metaRootModule extracts the root_module field from a meta document
// built by buildMeta, used by diagnostics that want to avoid a full
// program decode.
func metaRootModule(meta string) (uint32, bool) {
	r := gjson.Get(meta, "root_module")
	if !r.Exists() {
		return 0, false
	}
	return uint32(r.Uint()), true
}

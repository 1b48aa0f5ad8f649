package store

import (
	"context"
	"errors"
	"testing"

	"github.com/lmlang/graphlang/ids"
	"github.com/lmlang/graphlang/ir"
	"github.com/lmlang/graphlang/lmtype"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	return s
}

func TestSQLiteStore_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)
	defer s.Close()

	g := newSampleProgram(t)
	if err := s.SaveProgram(ctx, "p1", g); err != nil {
		t.Fatalf("SaveProgram failed: %v", err)
	}

	loaded, err := s.LoadProgram(ctx, "p1")
	if err != nil {
		t.Fatalf("LoadProgram failed: %v", err)
	}
	if len(loaded.Functions()) != len(g.Functions()) {
		t.Errorf("expected %d functions, got %d", len(g.Functions()), len(loaded.Functions()))
	}
}

func TestSQLiteStore_LoadNonexistentReturnsErrProgramNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)
	defer s.Close()

	_, err := s.LoadProgram(ctx, "missing")
	if !errors.Is(err, ErrProgramNotFound) {
		t.Errorf("expected ErrProgramNotFound, got %v", err)
	}
}

func TestSQLiteStore_SaveOverwritesExistingProgram(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)
	defer s.Close()

	g1 := newSampleProgram(t)
	if err := s.SaveProgram(ctx, "p1", g1); err != nil {
		t.Fatalf("SaveProgram failed: %v", err)
	}

	g2 := newSampleProgram(t)
	if _, err := g2.AddFunction("g", g2.Modules.Root(), []ir.Param{{Name: "y", Type: ids.I32}}, ids.I32, lmtype.Public); err != nil {
		t.Fatalf("AddFunction failed: %v", err)
	}
	if err := s.SaveProgram(ctx, "p1", g2); err != nil {
		t.Fatalf("SaveProgram overwrite failed: %v", err)
	}

	loaded, err := s.LoadProgram(ctx, "p1")
	if err != nil {
		t.Fatalf("LoadProgram failed: %v", err)
	}
	if len(loaded.Functions()) != len(g2.Functions()) {
		t.Errorf("expected overwritten program with %d functions, got %d", len(g2.Functions()), len(loaded.Functions()))
	}

	progs, err := s.ListPrograms(ctx)
	if err != nil {
		t.Fatalf("ListPrograms failed: %v", err)
	}
	if len(progs) != 1 {
		t.Errorf("expected exactly one stored program after overwrite, got %d", len(progs))
	}
}

func TestSQLiteStore_DeleteProgram(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)
	defer s.Close()

	g := newSampleProgram(t)
	if err := s.SaveProgram(ctx, "p1", g); err != nil {
		t.Fatalf("SaveProgram failed: %v", err)
	}
	if err := s.DeleteProgram(ctx, "p1"); err != nil {
		t.Fatalf("DeleteProgram failed: %v", err)
	}
	if _, err := s.LoadProgram(ctx, "p1"); !errors.Is(err, ErrProgramNotFound) {
		t.Errorf("expected ErrProgramNotFound after delete, got %v", err)
	}
}

func TestSQLiteStore_ListProgramsMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)
	defer s.Close()

	if err := s.SaveProgram(ctx, "first", newSampleProgram(t)); err != nil {
		t.Fatalf("SaveProgram failed: %v", err)
	}
	if err := s.SaveProgram(ctx, "second", newSampleProgram(t)); err != nil {
		t.Fatalf("SaveProgram failed: %v", err)
	}

	progs, err := s.ListPrograms(ctx)
	if err != nil {
		t.Fatalf("ListPrograms failed: %v", err)
	}
	if len(progs) != 2 || progs[0] != "second" || progs[1] != "first" {
		t.Errorf("expected [second first], got %v", progs)
	}
}

func TestSQLiteStore_SchemaVersionSeededOnFirstOpen(t *testing.T) {
	s := newTestSQLiteStore(t)
	defer s.Close()

	var value string
	err := s.db.QueryRow("SELECT value FROM schema_meta WHERE key = 'schema_version'").Scan(&value)
	if err != nil {
		t.Fatalf("expected schema_version row to be seeded, got error: %v", err)
	}
	if value != "1" {
		t.Errorf("expected schema_version '1', got %q", value)
	}
}

func TestSQLiteStore_RefusesNewerSchemaVersion(t *testing.T) {
	s := newTestSQLiteStore(t)
	defer s.Close()

	if _, err := s.db.Exec("UPDATE schema_meta SET value = '999' WHERE key = 'schema_version'"); err != nil {
		t.Fatalf("failed to bump schema_version: %v", err)
	}

	err := s.checkSchemaVersion(context.Background())
	if err == nil {
		t.Fatal("expected an error when schema_version is newer than supported")
	}
	var tooNew *SchemaTooNewError
	if !errors.As(err, &tooNew) {
		t.Fatalf("expected *SchemaTooNewError, got %T: %v", err, err)
	}
	if tooNew.Found != 999 || tooNew.Supported != SchemaVersion {
		t.Errorf("unexpected SchemaTooNewError fields: %+v", tooNew)
	}
	if !errors.Is(err, ErrSchemaTooNew) {
		t.Error("expected errors.Is(err, ErrSchemaTooNew) to hold")
	}
}

func TestSQLiteStore_MetaRootModuleMatchesSavedProgram(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)
	defer s.Close()

	g := newSampleProgram(t)
	if err := s.SaveProgram(ctx, "p1", g); err != nil {
		t.Fatalf("SaveProgram failed: %v", err)
	}

	var meta string
	if err := s.db.QueryRow("SELECT meta FROM programs WHERE program_id = ?", "p1").Scan(&meta); err != nil {
		t.Fatalf("failed to read meta column: %v", err)
	}
	root, ok := metaRootModule(meta)
	if !ok {
		t.Fatal("expected root_module to be present in meta")
	}
	if root != uint32(g.Modules.Root()) {
		t.Errorf("expected root_module %d, got %d", uint32(g.Modules.Root()), root)
	}
}

func TestSQLiteStore_PingAndClose(t *testing.T) {
	s := newTestSQLiteStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got: %v", err)
	}
}

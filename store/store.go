// Package store provides persistence implementations for program graphs,
// grounded in the teacher's graph/store package: the same Store
// interface + in-memory/SQLite/MySQL triad, specialized from persisting
// workflow execution state to persisting a decomposed ProgramGraph.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/lmlang/graphlang/program"
)

// ErrProgramNotFound is returned when a requested program id does not
// exist in the store.
var ErrProgramNotFound = errors.New("store: program not found")

// ErrSchemaTooNew is returned when a database's schema_version is higher
// than this build knows how to read — refusing to open it is safer than
// guessing at an unknown row shape.
var ErrSchemaTooNew = errors.New("store: database schema is newer than this build supports")

// SchemaVersion is the on-disk schema version this build writes and the
// highest version it will open.
const SchemaVersion = 1

// SchemaTooNewError carries the offending version for structured
// reporting at the cmd/lmlangd startup boundary.
type SchemaTooNewError struct {
	Found, Supported int
}

func (e *SchemaTooNewError) Error() string {
	return fmt.Sprintf("store: schema version %d is newer than supported version %d", e.Found, e.Supported)
}

func (e *SchemaTooNewError) Unwrap() error { return ErrSchemaTooNew }

// GraphStore persists and reloads whole program graphs, keyed by an
// opaque program id. It is the external interface of SPEC_FULL.md's
// persistence contract: Recompose must reconstruct a graph that
// preserves every id numerically, so a round trip through SaveProgram
// and LoadProgram is indistinguishable from the original in-memory
// Graph to every id-bearing reference.
type GraphStore interface {
	// SaveProgram persists the full current state of g under programID,
	// replacing any prior state for that id.
	SaveProgram(ctx context.Context, programID string, g *program.Graph) error

	// LoadProgram reconstructs the graph last saved under programID.
	// Returns ErrProgramNotFound if no such program exists.
	LoadProgram(ctx context.Context, programID string) (*program.Graph, error)

	// DeleteProgram removes a program's persisted state. Deleting an
	// unknown programID is not an error.
	DeleteProgram(ctx context.Context, programID string) error

	// ListPrograms returns every known program id, most recently saved
	// first.
	ListPrograms(ctx context.Context) ([]string, error)
}

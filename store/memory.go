package store

import (
	"context"
	"sort"
	"sync"

	"github.com/lmlang/graphlang/program"
)

// entry holds a decomposed snapshot plus the sequence number it was
// saved at, so ListPrograms can return most-recently-saved first
// without depending on wall-clock time (Decompose/Recompose never touch
// the clock, matching the rest of this module).
type entry struct {
	decomposed program.DecomposedProgram
	seq        int
}

// MemoryStore is an in-memory GraphStore, grounded in the teacher's
// MemStore[S]: a mutex-guarded map, no persistence across process
// restarts. Used for tests and single-process deployments that accept
// losing program state on exit.
type MemoryStore struct {
	mu       sync.RWMutex
	programs map[string]entry
	nextSeq  int
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{programs: make(map[string]entry)}
}

// SaveProgram implements GraphStore.
func (m *MemoryStore) SaveProgram(_ context.Context, programID string, g *program.Graph) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSeq++
	m.programs[programID] = entry{decomposed: program.Decompose(g), seq: m.nextSeq}
	return nil
}

// LoadProgram implements GraphStore.
func (m *MemoryStore) LoadProgram(_ context.Context, programID string) (*program.Graph, error) {
	m.mu.RLock()
	e, ok := m.programs[programID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrProgramNotFound
	}
	return program.Recompose(e.decomposed)
}

// DeleteProgram implements GraphStore.
func (m *MemoryStore) DeleteProgram(_ context.Context, programID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.programs, programID)
	return nil
}

// ListPrograms implements GraphStore.
func (m *MemoryStore) ListPrograms(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.programs))
	for id := range m.programs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return m.programs[ids[i]].seq > m.programs[ids[j]].seq
	})
	return ids, nil
}

package editlog

import (
	"time"

	"github.com/google/uuid"

	"github.com/lmlang/graphlang/program"
)

// Checkpoint is a named, timestamped snapshot of a program's full graph
// state, modeled on the teacher's graph.Checkpoint[S] (RunID/StepID/State
// plus a Label) — here the "state" is the whole *program.Graph, cloned
// rather than re-derived from replayed steps.
type Checkpoint struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
	Graph       *program.Graph
}

// Checkpoints is the in-memory store backing create_checkpoint,
// restore_checkpoint and diff_versions' named-snapshot arguments. It
// keeps every checkpoint ever taken, most recent last; Restore and Diff
// look them up by name, using the latest checkpoint recorded under that
// name if the name was reused.
type Checkpoints struct {
	byName map[string][]*Checkpoint
	order  []*Checkpoint
}

// NewCheckpoints returns an empty checkpoint store.
func NewCheckpoints() *Checkpoints {
	return &Checkpoints{byName: make(map[string][]*Checkpoint)}
}

// Create snapshots g's current state under name, tagging it with a
// fresh uuid and the given description.
func (c *Checkpoints) Create(g *program.Graph, name, description string, now time.Time) *Checkpoint {
	cp := &Checkpoint{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		CreatedAt:   now,
		Graph:       g.Clone(),
	}
	c.byName[name] = append(c.byName[name], cp)
	c.order = append(c.order, cp)
	return cp
}

// Latest returns the most recently created checkpoint for name.
func (c *Checkpoints) Latest(name string) (*Checkpoint, error) {
	versions := c.byName[name]
	if len(versions) == 0 {
		return nil, &CheckpointNotFoundError{Name: name}
	}
	return versions[len(versions)-1], nil
}

// List returns every checkpoint ever taken, oldest first.
func (c *Checkpoints) List() []*Checkpoint {
	return append([]*Checkpoint(nil), c.order...)
}

// Restore returns a clone of the named checkpoint's graph, suitable for
// installing as a program's new live graph. It clones again on read so
// the stored snapshot itself is never aliased into a live, mutable
// graph.
func (c *Checkpoints) Restore(name string) (*program.Graph, error) {
	cp, err := c.Latest(name)
	if err != nil {
		return nil, err
	}
	return cp.Graph.Clone(), nil
}

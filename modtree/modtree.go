// Package modtree implements the hierarchical module namespace: a tree
// rooted at the program's root module, tracking parent/child
// relationships and the functions/named types each module owns.
package modtree

import (
	"errors"
	"fmt"

	"github.com/lmlang/graphlang/ids"
	"github.com/lmlang/graphlang/lmtype"
)

// ErrDuplicateModule is returned when adding a module whose name already
// exists under the requested parent.
var ErrDuplicateModule = errors.New("modtree: duplicate module")

// DuplicateModuleError carries the offending name/parent for structured
// reporting.
type DuplicateModuleError struct {
	Name   string
	Parent ids.ModuleID
}

func (e *DuplicateModuleError) Error() string {
	return fmt.Sprintf("modtree: module %q already exists under parent %v", e.Name, e.Parent)
}

func (e *DuplicateModuleError) Unwrap() error { return ErrDuplicateModule }

// ErrModuleNotFound is returned when a ModuleID does not resolve.
var ErrModuleNotFound = errors.New("modtree: module not found")

// Module is one node of the module tree.
type Module struct {
	ID         ids.ModuleID
	Name       string
	Parent     ids.ModuleID // ids.NoModule for the root
	Visibility lmtype.Visibility

	Children  []ids.ModuleID
	Functions []ids.FunctionID
	Types     []ids.TypeID
}

// Tree is the module namespace: a single root plus an arbitrary number
// of descendants, indexed by ModuleID and by (parent, name) for the
// duplicate-name invariant.
type Tree struct {
	alloc   *ids.Allocator[ids.ModuleID]
	modules map[ids.ModuleID]*Module
	root    ids.ModuleID

	// childNames indexes existing child names per parent to enforce "no
	// module has two children with the same name" in O(1).
	childNames map[ids.ModuleID]map[string]ids.ModuleID
}

// New creates a Tree with a single root module named rootName.
func New(rootName string) *Tree {
	t := &Tree{
		alloc:      ids.NewAllocator[ids.ModuleID](0),
		modules:    make(map[ids.ModuleID]*Module),
		childNames: make(map[ids.ModuleID]map[string]ids.ModuleID),
	}
	rootID := t.alloc.Next()
	t.root = rootID
	t.modules[rootID] = &Module{
		ID:         rootID,
		Name:       rootName,
		Parent:     ids.NoModule,
		Visibility: lmtype.Public,
	}
	t.childNames[rootID] = make(map[string]ids.ModuleID)
	return t
}

// Root returns the root module's ID.
func (t *Tree) Root() ids.ModuleID { return t.root }

// Get returns the module for id, or false if absent.
func (t *Tree) Get(id ids.ModuleID) (*Module, bool) {
	m, ok := t.modules[id]
	return m, ok
}

// AddModule creates a child module named name under parent. Fails with
// DuplicateModuleError if parent already has a child of that name, or
// ErrModuleNotFound if parent does not exist.
func (t *Tree) AddModule(name string, parent ids.ModuleID, visibility lmtype.Visibility) (ids.ModuleID, error) {
	parentMod, ok := t.modules[parent]
	if !ok {
		return 0, fmt.Errorf("%w: %v", ErrModuleNotFound, parent)
	}
	names := t.childNames[parent]
	if _, exists := names[name]; exists {
		return 0, &DuplicateModuleError{Name: name, Parent: parent}
	}

	id := t.alloc.Next()
	t.modules[id] = &Module{
		ID:         id,
		Name:       name,
		Parent:     parent,
		Visibility: visibility,
	}
	t.childNames[id] = make(map[string]ids.ModuleID)
	names[name] = id
	parentMod.Children = append(parentMod.Children, id)
	return id, nil
}

// RemoveModule deletes a leaf module (one with no children, functions, or
// types). This is the inverse of AddModule used by the edit log; callers
// must remove functions/types/children first, matching the no-implicit-
// cascading-delete policy used throughout the data model.
func (t *Tree) RemoveModule(id ids.ModuleID) error {
	m, ok := t.modules[id]
	if !ok {
		return fmt.Errorf("%w: %v", ErrModuleNotFound, id)
	}
	if len(m.Children) != 0 || len(m.Functions) != 0 || len(m.Types) != 0 {
		return fmt.Errorf("modtree: module %v is not empty", id)
	}
	parentMod := t.modules[m.Parent]
	if parentMod != nil {
		parentMod.Children = removeID(parentMod.Children, id)
		delete(t.childNames[m.Parent], m.Name)
	}
	delete(t.modules, id)
	delete(t.childNames, id)
	return nil
}

// AddFunction records that function fid is owned by module id.
func (t *Tree) AddFunction(id ids.ModuleID, fid ids.FunctionID) error {
	m, ok := t.modules[id]
	if !ok {
		return fmt.Errorf("%w: %v", ErrModuleNotFound, id)
	}
	m.Functions = append(m.Functions, fid)
	return nil
}

// RemoveFunction undoes AddFunction.
func (t *Tree) RemoveFunction(id ids.ModuleID, fid ids.FunctionID) error {
	m, ok := t.modules[id]
	if !ok {
		return fmt.Errorf("%w: %v", ErrModuleNotFound, id)
	}
	m.Functions = removeFn(m.Functions, fid)
	return nil
}

// AddType records that type tid is owned by module id.
func (t *Tree) AddType(id ids.ModuleID, tid ids.TypeID) error {
	m, ok := t.modules[id]
	if !ok {
		return fmt.Errorf("%w: %v", ErrModuleNotFound, id)
	}
	m.Types = append(m.Types, tid)
	return nil
}

// Ancestors returns the chain of ModuleIDs from id up to (and including)
// the root, used for visibility resolution.
func (t *Tree) Ancestors(id ids.ModuleID) []ids.ModuleID {
	var chain []ids.ModuleID
	cur := id
	for {
		m, ok := t.modules[cur]
		if !ok {
			break
		}
		chain = append(chain, cur)
		if m.Parent == ids.NoModule {
			break
		}
		cur = m.Parent
	}
	return chain
}

// All returns every module in the tree, used by persistence round-trips.
func (t *Tree) All() map[ids.ModuleID]*Module {
	out := make(map[ids.ModuleID]*Module, len(t.modules))
	for k, v := range t.modules {
		out[k] = v
	}
	return out
}

// RestoreNextID restores the allocator's cursor after a direct
// persistence load of raw Module records.
func (t *Tree) RestoreNextID(next ids.ModuleID) { t.alloc.Restore(next) }

// NextID reports the next ModuleID the tree would allocate, used by the
// persistence layer to round-trip the module tree's allocator cursor.
func (t *Tree) NextID() ids.ModuleID { return t.alloc.Peek() }

// SetRootMetadata overwrites the root module's name and visibility. Used
// by persistence recompose: New() always creates a fresh root under the
// caller-supplied name before the stored module records are replayed,
// so the root's persisted name/visibility must be reapplied in place
// rather than recreated (the root can never go through RestoreModule,
// which requires an existing parent).
func (t *Tree) SetRootMetadata(name string, visibility lmtype.Visibility) {
	root := t.modules[t.root]
	root.Name = name
	root.Visibility = visibility
}

// RestoreModule reinserts a module at an exact, previously-allocated id,
// bypassing AddModule's own allocator — the primitive editlog's redo
// uses to put a module back exactly where AddModule originally put it,
// the same way lmtype.Registry.RawInsert serves persistence recompose.
// The caller is responsible for id already being absent.
func (t *Tree) RestoreModule(id ids.ModuleID, name string, parent ids.ModuleID, visibility lmtype.Visibility) error {
	if _, exists := t.modules[id]; exists {
		return fmt.Errorf("modtree: cannot restore module %v: id already in use", id)
	}
	parentMod, ok := t.modules[parent]
	if !ok {
		return fmt.Errorf("%w: %v", ErrModuleNotFound, parent)
	}
	t.modules[id] = &Module{ID: id, Name: name, Parent: parent, Visibility: visibility}
	t.childNames[id] = make(map[string]ids.ModuleID)
	t.childNames[parent][name] = id
	parentMod.Children = append(parentMod.Children, id)
	t.alloc.Restore(id + 1)
	return nil
}

// Clone returns an independent deep copy, used by ProgramGraph.Clone.
func (t *Tree) Clone() *Tree {
	c := &Tree{
		alloc:      t.alloc.Clone(),
		modules:    make(map[ids.ModuleID]*Module, len(t.modules)),
		root:       t.root,
		childNames: make(map[ids.ModuleID]map[string]ids.ModuleID, len(t.childNames)),
	}
	for k, v := range t.modules {
		cp := *v
		cp.Children = append([]ids.ModuleID(nil), v.Children...)
		cp.Functions = append([]ids.FunctionID(nil), v.Functions...)
		cp.Types = append([]ids.TypeID(nil), v.Types...)
		c.modules[k] = &cp
	}
	for k, v := range t.childNames {
		names := make(map[string]ids.ModuleID, len(v))
		for nk, nv := range v {
			names[nk] = nv
		}
		c.childNames[k] = names
	}
	return c
}

func removeID(s []ids.ModuleID, v ids.ModuleID) []ids.ModuleID {
	out := s[:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

func removeFn(s []ids.FunctionID, v ids.FunctionID) []ids.FunctionID {
	out := s[:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

package lmtype

import (
	"errors"
	"fmt"

	"github.com/lmlang/graphlang/ids"
)

// ErrTypeAlreadyDefined is returned by RegisterNamed when the requested
// name is already bound in this registry.
var ErrTypeAlreadyDefined = errors.New("lmtype: type already defined")

// TypeAlreadyDefinedError carries the offending name for structured
// reporting at the HTTP/planner boundary.
type TypeAlreadyDefinedError struct {
	Name string
}

func (e *TypeAlreadyDefinedError) Error() string {
	return fmt.Sprintf("lmtype: type %q already defined", e.Name)
}

func (e *TypeAlreadyDefinedError) Unwrap() error { return ErrTypeAlreadyDefined }

// Registry allocates dense TypeIDs and stores type descriptors.
//
// Named types (Struct, Enum) are always allocated fresh: two
// RegisterNamed calls for structurally identical bodies produce distinct
// TypeIDs, because struct/enum identity is nominal, not structural.
// Anonymous composite types (Pointer, Array, Function) are deduplicated
// by structural equality so repeated construction of e.g. "pointer to
// I32" doesn't exhaust the TypeID space.
type Registry struct {
	alloc *ids.Allocator[ids.TypeID]
	types map[ids.TypeID]LmType
	names map[string]ids.TypeID

	// anon deduplicates anonymous composite types by a structural key.
	anon map[string]ids.TypeID
}

// NewRegistry returns a Registry seeded with the eight built-in
// primitive TypeIDs (BOOL, I8..I64, F32, F64, UNIT).
func NewRegistry() *Registry {
	r := &Registry{
		alloc: ids.NewAllocator[ids.TypeID](ids.FirstAllocatable),
		types: make(map[ids.TypeID]LmType),
		names: make(map[string]ids.TypeID),
		anon:  make(map[string]ids.TypeID),
	}
	prims := []struct {
		id   ids.TypeID
		name string
	}{
		{ids.BOOL, "Bool"}, {ids.I8, "I8"}, {ids.I16, "I16"}, {ids.I32, "I32"},
		{ids.I64, "I64"}, {ids.F32, "F32"}, {ids.F64, "F64"}, {ids.UNIT, "Unit"},
	}
	for _, p := range prims {
		if p.id == ids.UNIT {
			r.types[p.id] = LmType{Kind: KindUnit}
		} else {
			r.types[p.id] = LmType{Kind: KindPrimitive, Primitive: p.id}
		}
		r.names[p.name] = p.id
	}
	return r
}

// Lookup returns the type descriptor for id, or false if unknown.
func (r *Registry) Lookup(id ids.TypeID) (LmType, bool) {
	t, ok := r.types[id]
	return t, ok
}

// LookupByName returns the TypeID bound to name, or false if unbound.
func (r *Registry) LookupByName(name string) (ids.TypeID, bool) {
	id, ok := r.names[name]
	return id, ok
}

// RegisterNamed allocates a fresh TypeID for a Struct or Enum and binds
// it to name. Fails with ErrTypeAlreadyDefined if name is already bound.
func (r *Registry) RegisterNamed(name string, t LmType) (ids.TypeID, error) {
	if _, exists := r.names[name]; exists {
		return 0, &TypeAlreadyDefinedError{Name: name}
	}
	id := r.alloc.Next()
	r.types[id] = t
	r.names[name] = id
	return id, nil
}

// Register allocates (or reuses, for anonymous composite types) a TypeID
// for t. Named Struct/Enum types must go through RegisterNamed instead;
// calling Register with KindStruct/KindEnum panics, since those always
// require an explicit name for nominal identity.
func (r *Registry) Register(t LmType) ids.TypeID {
	switch t.Kind {
	case KindStruct, KindEnum:
		panic("lmtype: named types must use RegisterNamed")
	case KindPrimitive:
		return t.Primitive
	case KindUnit:
		return ids.UNIT
	}

	key := structuralKey(t)
	if id, ok := r.anon[key]; ok {
		return id
	}
	id := r.alloc.Next()
	r.types[id] = t
	r.anon[key] = id
	return id
}

// structuralKey produces a deterministic string key for structural
// deduplication of anonymous composite types.
func structuralKey(t LmType) string {
	switch t.Kind {
	case KindPointer:
		return fmt.Sprintf("ptr(%d,%v)", t.Pointee, t.Mutable)
	case KindArray:
		return fmt.Sprintf("arr(%d,%d)", t.Element, t.Length)
	case KindFunction:
		return fmt.Sprintf("fn(%v)->%d", t.Params, t.ReturnType)
	default:
		return fmt.Sprintf("kind(%d)", t.Kind)
	}
}

// NextID reports the next TypeID the registry would allocate, used by
// the persistence layer to round-trip type_next_id (§6).
func (r *Registry) NextID() ids.TypeID { return r.alloc.Peek() }

// RestoreNextID is called during deserialization to restore the
// allocator's cursor after directly populating types/names from a store.
func (r *Registry) RestoreNextID(next ids.TypeID) { r.alloc.Restore(next) }

// RawInsert is used only by persistence to recreate a type under its
// original TypeID during recompose. It bypasses allocation and
// deduplication entirely — callers are responsible for restoring the
// allocator's cursor afterward via RestoreNextID.
func (r *Registry) RawInsert(id ids.TypeID, name string, t LmType) {
	r.types[id] = t
	if name != "" {
		r.names[name] = id
	}
}

// All returns every (TypeID, LmType) pair currently registered, used by
// the persistence round-trip and by whole-graph validation.
func (r *Registry) All() map[ids.TypeID]LmType {
	out := make(map[ids.TypeID]LmType, len(r.types))
	for k, v := range r.types {
		out[k] = v
	}
	return out
}

// Names returns the name -> TypeID index, used by persistence.
func (r *Registry) Names() map[string]ids.TypeID {
	out := make(map[string]ids.TypeID, len(r.names))
	for k, v := range r.names {
		out[k] = v
	}
	return out
}

// Clone returns an independent deep copy, used by ProgramGraph.Clone.
func (r *Registry) Clone() *Registry {
	c := &Registry{
		alloc: r.alloc.Clone(),
		types: make(map[ids.TypeID]LmType, len(r.types)),
		names: make(map[string]ids.TypeID, len(r.names)),
		anon:  make(map[string]ids.TypeID, len(r.anon)),
	}
	for k, v := range r.types {
		cp := v
		cp.Fields = append([]StructField(nil), v.Fields...)
		cp.Variants = append([]EnumVariant(nil), v.Variants...)
		cp.Params = append([]ids.TypeID(nil), v.Params...)
		c.types[k] = cp
	}
	for k, v := range r.names {
		c.names[k] = v
	}
	for k, v := range r.anon {
		c.anon[k] = v
	}
	return c
}

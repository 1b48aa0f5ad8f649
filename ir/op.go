// Package ir defines the compute-graph intermediate representation: the
// two-tier op taxonomy, flow edges, function definitions, and the
// lightweight semantic-graph node/edge kinds that mirror them.
package ir

import (
	"encoding/json"
	"fmt"

	"github.com/lmlang/graphlang/ids"
)

// OpKind discriminates the ComputeNodeOp sum type across both tiers.
type OpKind int

const (
	// Tier 1 — core ops.
	OpConst OpKind = iota
	OpParameter
	OpCaptureAccess
	OpBinaryArith
	OpUnaryArith
	OpCompare
	OpBinaryLogic
	OpNot
	OpShift
	OpAlloc
	OpLoad
	OpStore
	OpGetElementPtr
	OpCall
	OpIndirectCall
	OpMakeClosure
	OpReturn
	OpBranch
	OpIfElse
	OpLoop
	OpMatch
	OpJump
	OpPhi
	OpPrint
	OpReadLine
	OpFileOpen
	OpFileRead
	OpFileWrite
	OpFileClose
	OpPrecondition
	OpPostcondition
	OpInvariant

	// Tier 2 — structured ops.
	OpStructCreate
	OpStructGet
	OpStructSet
	OpArrayCreate
	OpArrayGet
	OpArraySet
	OpCast
	OpEnumCreate
	OpEnumDiscriminant
	OpEnumPayload
)

var opNames = map[OpKind]string{
	OpConst: "Const", OpParameter: "Parameter", OpCaptureAccess: "CaptureAccess",
	OpBinaryArith: "BinaryArith", OpUnaryArith: "UnaryArith", OpCompare: "Compare",
	OpBinaryLogic: "BinaryLogic", OpNot: "Not", OpShift: "Shift", OpAlloc: "Alloc",
	OpLoad: "Load", OpStore: "Store", OpGetElementPtr: "GetElementPtr", OpCall: "Call",
	OpIndirectCall: "IndirectCall", OpMakeClosure: "MakeClosure", OpReturn: "Return",
	OpBranch: "Branch", OpIfElse: "IfElse", OpLoop: "Loop", OpMatch: "Match",
	OpJump: "Jump", OpPhi: "Phi", OpPrint: "Print", OpReadLine: "ReadLine",
	OpFileOpen: "FileOpen", OpFileRead: "FileRead", OpFileWrite: "FileWrite",
	OpFileClose: "FileClose", OpPrecondition: "Precondition", OpPostcondition: "Postcondition",
	OpInvariant: "Invariant", OpStructCreate: "StructCreate", OpStructGet: "StructGet",
	OpStructSet: "StructSet", OpArrayCreate: "ArrayCreate", OpArrayGet: "ArrayGet",
	OpArraySet: "ArraySet", OpCast: "Cast", OpEnumCreate: "EnumCreate",
	OpEnumDiscriminant: "EnumDiscriminant", OpEnumPayload: "EnumPayload",
}

func (k OpKind) String() string {
	if n, ok := opNames[k]; ok {
		return n
	}
	return "Unknown"
}

var opKindsByName = func() map[string]OpKind {
	m := make(map[string]OpKind, len(opNames))
	for k, n := range opNames {
		m[n] = k
	}
	return m
}()

// MarshalJSON renders the op kind as its self-describing tag name rather
// than its underlying integer, so a persisted program round-trips across
// enum reorderings.
func (k OpKind) MarshalJSON() ([]byte, error) {
	n, ok := opNames[k]
	if !ok {
		return nil, fmt.Errorf("ir: unknown OpKind %d", int(k))
	}
	return json.Marshal(n)
}

// UnmarshalJSON resolves a tag name back to its OpKind, rejecting any tag
// not in the current op taxonomy.
func (k *OpKind) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err != nil {
		return err
	}
	v, ok := opKindsByName[tag]
	if !ok {
		return fmt.Errorf("ir: unknown OpKind tag %q", tag)
	}
	*k = v
	return nil
}

// IsBranchLike reports whether a node of this kind drives conditional
// control propagation (Branch, IfElse, Loop, Match).
func (k OpKind) IsBranchLike() bool {
	switch k {
	case OpBranch, OpIfElse, OpLoop, OpMatch:
		return true
	default:
		return false
	}
}

// IsContract reports whether a node of this kind is a contract node
// (Precondition, Postcondition, Invariant).
func (k OpKind) IsContract() bool {
	switch k {
	case OpPrecondition, OpPostcondition, OpInvariant:
		return true
	default:
		return false
	}
}

// ArithOp enumerates BinaryArith operators.
type ArithOp int

const (
	Add ArithOp = iota
	Sub
	Mul
	Div
	Rem
)

func (o ArithOp) String() string {
	return [...]string{"Add", "Sub", "Mul", "Div", "Rem"}[o]
}

// MarshalJSON renders the operator as its self-describing tag name.
func (o ArithOp) MarshalJSON() ([]byte, error) { return json.Marshal(o.String()) }

// UnmarshalJSON resolves a tag name back to its ArithOp, rejecting any
// unrecognized tag.
func (o *ArithOp) UnmarshalJSON(data []byte) error {
	return unmarshalEnumTag(data, arithOpNames[:], o, "ArithOp")
}

var arithOpNames = [...]string{"Add", "Sub", "Mul", "Div", "Rem"}

// unmarshalEnumTag resolves a JSON string tag to its ordinal position in
// names, rejecting any tag outside the known set. Shared by the small
// fixed-arity operator enums below.
func unmarshalEnumTag[T ~int](data []byte, names []string, out *T, typeName string) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err != nil {
		return err
	}
	for i, n := range names {
		if n == tag {
			*out = T(i)
			return nil
		}
	}
	return fmt.Errorf("ir: unknown %s tag %q", typeName, tag)
}

// UnaryOp enumerates UnaryArith operators.
type UnaryOp int

const (
	Neg UnaryOp = iota
	Abs
)

func (o UnaryOp) String() string { return [...]string{"Neg", "Abs"}[o] }

var unaryOpNames = [...]string{"Neg", "Abs"}

// MarshalJSON renders the operator as its self-describing tag name.
func (o UnaryOp) MarshalJSON() ([]byte, error) { return json.Marshal(o.String()) }

// UnmarshalJSON resolves a tag name back to its UnaryOp, rejecting any
// unrecognized tag.
func (o *UnaryOp) UnmarshalJSON(data []byte) error {
	return unmarshalEnumTag(data, unaryOpNames[:], o, "UnaryOp")
}

// CompareOp enumerates Compare operators.
type CompareOp int

const (
	Eq CompareOp = iota
	Ne
	Lt
	Le
	Gt
	Ge
)

func (o CompareOp) String() string {
	return [...]string{"Eq", "Ne", "Lt", "Le", "Gt", "Ge"}[o]
}

var compareOpNames = [...]string{"Eq", "Ne", "Lt", "Le", "Gt", "Ge"}

// MarshalJSON renders the operator as its self-describing tag name.
func (o CompareOp) MarshalJSON() ([]byte, error) { return json.Marshal(o.String()) }

// UnmarshalJSON resolves a tag name back to its CompareOp, rejecting any
// unrecognized tag.
func (o *CompareOp) UnmarshalJSON(data []byte) error {
	return unmarshalEnumTag(data, compareOpNames[:], o, "CompareOp")
}

// LogicOp enumerates BinaryLogic operators.
type LogicOp int

const (
	And LogicOp = iota
	Or
	Xor
)

func (o LogicOp) String() string { return [...]string{"And", "Or", "Xor"}[o] }

var logicOpNames = [...]string{"And", "Or", "Xor"}

// MarshalJSON renders the operator as its self-describing tag name.
func (o LogicOp) MarshalJSON() ([]byte, error) { return json.Marshal(o.String()) }

// UnmarshalJSON resolves a tag name back to its LogicOp, rejecting any
// unrecognized tag.
func (o *LogicOp) UnmarshalJSON(data []byte) error {
	return unmarshalEnumTag(data, logicOpNames[:], o, "LogicOp")
}

// ShiftOp enumerates Shift operators.
type ShiftOp int

const (
	Shl ShiftOp = iota
	ShrLogical
	ShrArith
)

func (o ShiftOp) String() string {
	return [...]string{"Shl", "ShrLogical", "ShrArith"}[o]
}

var shiftOpNames = [...]string{"Shl", "ShrLogical", "ShrArith"}

// MarshalJSON renders the operator as its self-describing tag name.
func (o ShiftOp) MarshalJSON() ([]byte, error) { return json.Marshal(o.String()) }

// UnmarshalJSON resolves a tag name back to its ShiftOp, rejecting any
// unrecognized tag.
func (o *ShiftOp) UnmarshalJSON(data []byte) error {
	return unmarshalEnumTag(data, shiftOpNames[:], o, "ShiftOp")
}

// LiteralKind discriminates the Const op's literal payload.
type LiteralKind int

const (
	LitBool LiteralKind = iota
	LitI8
	LitI16
	LitI32
	LitI64
	LitF32
	LitF64
	LitUnit
)

var literalKindNames = [...]string{"Bool", "I8", "I16", "I32", "I64", "F32", "F64", "Unit"}

func (k LiteralKind) String() string {
	if int(k) >= 0 && int(k) < len(literalKindNames) {
		return literalKindNames[k]
	}
	return "Unknown"
}

// MarshalJSON renders the literal kind as its self-describing tag name.
func (k LiteralKind) MarshalJSON() ([]byte, error) {
	s := k.String()
	if s == "Unknown" {
		return nil, fmt.Errorf("ir: unknown LiteralKind %d", int(k))
	}
	return json.Marshal(s)
}

// UnmarshalJSON resolves a tag name back to its LiteralKind, rejecting
// any unrecognized tag.
func (k *LiteralKind) UnmarshalJSON(data []byte) error {
	return unmarshalEnumTag(data, literalKindNames[:], k, "LiteralKind")
}

// TypeID returns the built-in TypeID that this literal kind produces.
func (k LiteralKind) TypeID() ids.TypeID {
	switch k {
	case LitBool:
		return ids.BOOL
	case LitI8:
		return ids.I8
	case LitI16:
		return ids.I16
	case LitI32:
		return ids.I32
	case LitI64:
		return ids.I64
	case LitF32:
		return ids.F32
	case LitF64:
		return ids.F64
	default:
		return ids.UNIT
	}
}

// Literal is the compile-time constant payload of a Const op.
type Literal struct {
	Kind  LiteralKind
	Bool  bool
	Int   int64
	Float float64
}

// Op is the tagged-union representation of a single compute node's
// operation. Exactly the fields relevant to Kind are meaningful; the
// rest are zero. This mirrors how Go's own SSA compiler (cmd/compile's
// ssa.Value) represents a large, closed opcode set as one flat struct
// rather than as N Go types behind an interface — it keeps the
// interpreter and type checker's switch statements exhaustive and the
// graph's storage dense.
type Op struct {
	Kind OpKind

	// OpConst
	Literal Literal

	// OpParameter, OpCaptureAccess
	Index int

	// OpBinaryArith
	ArithOp ArithOp
	// OpUnaryArith
	UnaryOp UnaryOp
	// OpCompare
	CompareOp CompareOp
	// OpBinaryLogic
	LogicOp LogicOp
	// OpShift
	ShiftOp ShiftOp

	// OpCall
	Target ids.FunctionID
	// OpMakeClosure
	ClosureFunction ids.FunctionID

	// OpPrecondition, OpPostcondition, OpInvariant
	Message string
	// OpInvariant: the type of the value under test.
	// OpAlloc: the pointee type to allocate storage for.
	TargetType ids.TypeID

	// OpStructCreate, OpEnumCreate
	TypeID ids.TypeID
	// OpStructGet, OpStructSet
	FieldIndex int
	// OpEnumCreate, OpEnumPayload
	VariantIndex int
	// OpArrayCreate
	ArrayLength int
	// OpCast
	CastTarget ids.TypeID
}

// Arity is the fixed number of data-input ports this op expects, or -1
// for variable-arity ops excluded from the type checker's arity table
// (§4.4.3).
func (o Op) Arity() int {
	switch o.Kind {
	case OpBinaryArith, OpCompare, OpBinaryLogic, OpShift, OpStructSet, OpArrayGet:
		return 2
	case OpUnaryArith, OpNot, OpIfElse, OpBranch, OpStructGet, OpCast, OpEnumDiscriminant, OpEnumPayload:
		return 1
	case OpArraySet:
		return 3
	default:
		return -1
	}
}

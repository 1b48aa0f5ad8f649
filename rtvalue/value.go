// Package rtvalue defines the interpreter's runtime Value sum type. It
// is split out from interp so the contract checker's mini-evaluator
// (package contracts) can share the same representation without
// importing the interpreter itself — contracts implements the
// interp.ModuleBoundaryChecker interface structurally, avoiding an
// import cycle.
package rtvalue

import (
	"encoding/json"
	"fmt"

	"github.com/lmlang/graphlang/ids"
)

// Kind discriminates the Value sum type.
type Kind int

const (
	KBool Kind = iota
	KI8
	KI16
	KI32
	KI64
	KF32
	KF64
	KUnit
	KArray
	KStruct
	KEnum
	KPointer
	KFunctionRef
	KClosure
)

var kindTagNames = [...]string{
	"Bool", "I8", "I16", "I32", "I64", "F32", "F64", "Unit",
	"Array", "Struct", "Enum", "Pointer", "FunctionRef", "Closure",
}

func (k Kind) tag() string {
	if int(k) >= 0 && int(k) < len(kindTagNames) {
		return kindTagNames[k]
	}
	return "Unknown"
}

// MarshalJSON renders the kind as its self-describing tag name, so a
// simulated Value reported over the wire round-trips without relying on
// Kind's ordinal position.
func (k Kind) MarshalJSON() ([]byte, error) {
	tag := k.tag()
	if tag == "Unknown" {
		return nil, fmt.Errorf("rtvalue: unknown Kind %d", int(k))
	}
	return json.Marshal(tag)
}

// UnmarshalJSON resolves a tag name back to its Kind, rejecting any tag
// not in the current value taxonomy.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err != nil {
		return err
	}
	for i, n := range kindTagNames {
		if n == tag {
			*k = Kind(i)
			return nil
		}
	}
	return fmt.Errorf("rtvalue: unknown Kind tag %q", tag)
}

// Value is the interpreter's runtime representation: primitives,
// aggregates (Array/Struct), a tagged Enum, an address-indexed Pointer,
// and the two callable forms (FunctionRef, Closure).
type Value struct {
	Kind Kind

	Bool  bool
	Int   int64
	Float float64

	// KArray, KStruct
	Elements []Value

	// KEnum
	Variant uint16
	Payload *Value

	// KPointer
	Addr int

	// KFunctionRef, KClosure
	Function ids.FunctionID
	// KClosure
	Captures []Value
}

func Bool(v bool) Value           { return Value{Kind: KBool, Bool: v} }
func Int(k Kind, v int64) Value   { return Value{Kind: k, Int: v} }
func Float(k Kind, v float64) Value { return Value{Kind: k, Float: v} }
func Unit() Value                 { return Value{Kind: KUnit} }
func Pointer(addr int) Value      { return Value{Kind: KPointer, Addr: addr} }
func FunctionRef(fid ids.FunctionID) Value {
	return Value{Kind: KFunctionRef, Function: fid}
}
func Closure(fid ids.FunctionID, captures []Value) Value {
	return Value{Kind: KClosure, Function: fid, Captures: append([]Value(nil), captures...)}
}
func Array(elements []Value) Value {
	return Value{Kind: KArray, Elements: append([]Value(nil), elements...)}
}
func Struct(elements []Value) Value {
	return Value{Kind: KStruct, Elements: append([]Value(nil), elements...)}
}
func Enum(variant uint16, payload *Value) Value {
	return Value{Kind: KEnum, Variant: variant, Payload: payload}
}

// FromTypeID constructs the zero value for a built-in primitive TypeID,
// used to seed Alloc'd storage slots before a Store ever targets them.
func FromTypeID(id ids.TypeID) Value {
	switch id {
	case ids.BOOL:
		return Bool(false)
	case ids.I8:
		return Int(KI8, 0)
	case ids.I16:
		return Int(KI16, 0)
	case ids.I32:
		return Int(KI32, 0)
	case ids.I64:
		return Int(KI64, 0)
	case ids.F32:
		return Float(KF32, 0)
	case ids.F64:
		return Float(KF64, 0)
	default:
		return Unit()
	}
}

// IsInteger reports whether v holds one of the integer Kinds.
func (v Value) IsInteger() bool {
	switch v.Kind {
	case KI8, KI16, KI32, KI64:
		return true
	default:
		return false
	}
}

// IsFloat reports whether v holds one of the float Kinds.
func (v Value) IsFloat() bool { return v.Kind == KF32 || v.Kind == KF64 }

// IntegerBitWidth returns the bit width of an integer Kind, used by
// checked-arithmetic overflow detection and shift-count validation.
func (v Value) IntegerBitWidth() int {
	switch v.Kind {
	case KI8:
		return 8
	case KI16:
		return 16
	case KI32:
		return 32
	case KI64:
		return 64
	default:
		return 0
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KBool:
		return fmt.Sprintf("Bool(%v)", v.Bool)
	case KI8, KI16, KI32, KI64:
		return fmt.Sprintf("Int(%d)", v.Int)
	case KF32, KF64:
		return fmt.Sprintf("Float(%g)", v.Float)
	case KUnit:
		return "Unit"
	case KArray:
		return fmt.Sprintf("Array(%d)", len(v.Elements))
	case KStruct:
		return fmt.Sprintf("Struct(%d)", len(v.Elements))
	case KEnum:
		return fmt.Sprintf("Enum{variant:%d}", v.Variant)
	case KPointer:
		return fmt.Sprintf("Pointer(%d)", v.Addr)
	case KFunctionRef:
		return fmt.Sprintf("FunctionRef(%v)", v.Function)
	case KClosure:
		return fmt.Sprintf("Closure{function:%v, captures:%d}", v.Function, len(v.Captures))
	default:
		return "Unknown"
	}
}

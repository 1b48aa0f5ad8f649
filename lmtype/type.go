// Package lmtype implements the nominal type system: the LmType variant
// set, the TypeRegistry that allocates TypeIDs, and the coercion rules
// the type checker and interpreter both rely on.
package lmtype

import (
	"encoding/json"
	"fmt"

	"github.com/lmlang/graphlang/ids"
)

// Kind discriminates the LmType sum type.
type Kind int

const (
	KindPrimitive Kind = iota
	KindUnit
	KindPointer
	KindArray
	KindStruct
	KindEnum
	KindFunction
)

func (k Kind) String() string {
	switch k {
	case KindPrimitive:
		return "Primitive"
	case KindUnit:
		return "Unit"
	case KindPointer:
		return "Pointer"
	case KindArray:
		return "Array"
	case KindStruct:
		return "Struct"
	case KindEnum:
		return "Enum"
	case KindFunction:
		return "Function"
	default:
		return "Unknown"
	}
}

func parseKind(tag string) (Kind, bool) {
	switch tag {
	case "Primitive":
		return KindPrimitive, true
	case "Unit":
		return KindUnit, true
	case "Pointer":
		return KindPointer, true
	case "Array":
		return KindArray, true
	case "Struct":
		return KindStruct, true
	case "Enum":
		return KindEnum, true
	case "Function":
		return KindFunction, true
	default:
		return 0, false
	}
}

// MarshalJSON renders the kind as its self-describing tag name rather
// than its underlying integer, so a persisted type registry round-trips
// across enum reorderings.
func (k Kind) MarshalJSON() ([]byte, error) {
	s := k.String()
	if s == "Unknown" {
		return nil, fmt.Errorf("lmtype: unknown Kind %d", int(k))
	}
	return json.Marshal(s)
}

// UnmarshalJSON resolves a tag name back to its Kind, rejecting any tag
// not in the current type taxonomy.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err != nil {
		return err
	}
	v, ok := parseKind(tag)
	if !ok {
		return fmt.Errorf("lmtype: unknown Kind tag %q", tag)
	}
	*k = v
	return nil
}

// Visibility controls cross-module access to a named type, function, or
// module.
type Visibility int

const (
	Private Visibility = iota
	Public
)

func (v Visibility) String() string {
	if v == Public {
		return "Public"
	}
	return "Private"
}

// MarshalJSON renders the visibility as its self-describing tag name.
func (v Visibility) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

// UnmarshalJSON resolves a tag name back to its Visibility, rejecting
// any tag other than "Public"/"Private".
func (v *Visibility) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err != nil {
		return err
	}
	switch tag {
	case "Public":
		*v = Public
	case "Private":
		*v = Private
	default:
		return fmt.Errorf("lmtype: unknown Visibility tag %q", tag)
	}
	return nil
}

// StructField is one entry of a Struct's ordered field list. Fields are
// kept as an ordered slice (not a Go map) so field order — which matters
// for GetElementPtr indexing and for deterministic serialization — is
// preserved exactly as authored.
type StructField struct {
	Name string
	Type ids.TypeID
}

// EnumVariant is one entry of an Enum's ordered variant list.
type EnumVariant struct {
	Name          string
	Discriminant  int64
	Payload       ids.TypeID // zero value UNIT-equivalent sentinel, see HasPayload
	HasPayload    bool
}

// LmType is the sum type over every representable type shape. Exactly
// one of the variant-specific fields is meaningful, selected by Kind.
type LmType struct {
	Kind Kind

	// KindPrimitive
	Primitive ids.TypeID // one of BOOL/I8/I16/I32/I64/F32/F64

	// KindPointer
	Pointee ids.TypeID
	Mutable bool

	// KindArray
	Element ids.TypeID
	Length  int

	// KindStruct
	StructName   string
	Fields       []StructField
	Module       ids.ModuleID
	Visibility   Visibility

	// KindEnum
	EnumName string
	Variants []EnumVariant

	// KindFunction
	Params     []ids.TypeID
	ReturnType ids.TypeID
}

// FieldIndex returns the ordinal position of a struct field by name, or
// -1 if absent. Used by StructGet/StructSet's field_index resolution
// when a caller only has the field name (e.g. from a planner action).
func (t *LmType) FieldIndex(name string) int {
	for i, f := range t.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// VariantIndex returns the ordinal position of an enum variant by name,
// or -1 if absent.
func (t *LmType) VariantIndex(name string) int {
	for i, v := range t.Variants {
		if v.Name == name {
			return i
		}
	}
	return -1
}

// IsNumeric reports whether the type is an integer or float primitive.
func IsNumeric(id ids.TypeID) bool {
	switch id {
	case ids.I8, ids.I16, ids.I32, ids.I64, ids.F32, ids.F64:
		return true
	default:
		return false
	}
}

// IsInteger reports whether the type is one of the integer primitives.
func IsInteger(id ids.TypeID) bool {
	switch id {
	case ids.I8, ids.I16, ids.I32, ids.I64:
		return true
	default:
		return false
	}
}

// IsFloat reports whether the type is one of the float primitives.
func IsFloat(id ids.TypeID) bool {
	return id == ids.F32 || id == ids.F64
}

// IsNumericOrBool reports whether the type is numeric or BOOL. BinaryArith
// and UnaryArith both accept this wider class, treating BOOL as I8 for the
// purposes of the common-numeric-type computation.
func IsNumericOrBool(id ids.TypeID) bool {
	return IsNumeric(id) || id == ids.BOOL
}

// integerWidth orders the integer primitives from narrowest to widest.
var integerWidth = map[ids.TypeID]int{
	ids.I8:  1,
	ids.I16: 2,
	ids.I32: 3,
	ids.I64: 4,
}

// floatWidth orders the float primitives from narrowest to widest.
var floatWidth = map[ids.TypeID]int{
	ids.F32: 1,
	ids.F64: 2,
}

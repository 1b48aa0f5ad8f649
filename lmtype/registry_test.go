package lmtype

import (
	"errors"
	"testing"

	"github.com/lmlang/graphlang/ids"
)

func TestRegistry_Primitives(t *testing.T) {
	r := NewRegistry()

	cases := []struct {
		name string
		id   ids.TypeID
	}{
		{"Bool", ids.BOOL}, {"I8", ids.I8}, {"I16", ids.I16}, {"I32", ids.I32},
		{"I64", ids.I64}, {"F32", ids.F32}, {"F64", ids.F64}, {"Unit", ids.UNIT},
	}
	for _, c := range cases {
		id, ok := r.LookupByName(c.name)
		if !ok || id != c.id {
			t.Errorf("LookupByName(%q) = (%v, %v), want (%v, true)", c.name, id, ok, c.id)
		}
		if _, ok := r.Lookup(c.id); !ok {
			t.Errorf("Lookup(%v) missing", c.id)
		}
	}
}

func TestRegistry_NamedTypesAreNominal(t *testing.T) {
	r := NewRegistry()

	point := LmType{
		Kind:       KindStruct,
		StructName: "Point",
		Fields: []StructField{
			{Name: "x", Type: ids.I32},
			{Name: "y", Type: ids.I32},
		},
	}

	id1, err := r.RegisterNamed("Point", point)
	if err != nil {
		t.Fatalf("first RegisterNamed failed: %v", err)
	}

	_, err = r.RegisterNamed("Point", point)
	if !errors.Is(err, ErrTypeAlreadyDefined) {
		t.Fatalf("expected ErrTypeAlreadyDefined, got %v", err)
	}

	point2 := point
	point2.StructName = "Vector"
	id2, err := r.RegisterNamed("Vector", point2)
	if err != nil {
		t.Fatalf("RegisterNamed(Vector) failed: %v", err)
	}

	if id1 == id2 {
		t.Fatalf("two distinct named types must never share a TypeID, got %v == %v", id1, id2)
	}
	if CanCoerce(id1, id2) || CanCoerce(id2, id1) {
		t.Fatalf("structurally identical but distinct named types must not coerce either direction")
	}
}

func TestRegistry_AnonymousTypesDeduplicate(t *testing.T) {
	r := NewRegistry()

	ptr1 := r.Register(LmType{Kind: KindPointer, Pointee: ids.I32, Mutable: false})
	ptr2 := r.Register(LmType{Kind: KindPointer, Pointee: ids.I32, Mutable: false})
	if ptr1 != ptr2 {
		t.Fatalf("anonymous pointer types should dedupe structurally: %v != %v", ptr1, ptr2)
	}

	ptr3 := r.Register(LmType{Kind: KindPointer, Pointee: ids.I32, Mutable: true})
	if ptr3 == ptr1 {
		t.Fatalf("mutable pointer must be a distinct type from immutable pointer")
	}

	arr1 := r.Register(LmType{Kind: KindArray, Element: ids.I32, Length: 3})
	arr2 := r.Register(LmType{Kind: KindArray, Element: ids.I32, Length: 4})
	if arr1 == arr2 {
		t.Fatalf("arrays of different length must be distinct types")
	}
}

func TestCanCoerce(t *testing.T) {
	cases := []struct {
		name string
		src  ids.TypeID
		dst  ids.TypeID
		want bool
	}{
		{"identical", ids.I32, ids.I32, true},
		{"bool to int", ids.BOOL, ids.I64, true},
		{"int widening", ids.I8, ids.I64, true},
		{"int narrowing", ids.I64, ids.I8, false},
		{"float widening", ids.F32, ids.F64, true},
		{"float narrowing", ids.F64, ids.F32, false},
		{"int to float", ids.I32, ids.F32, false},
		{"float to int", ids.F32, ids.I32, false},
		{"int to bool", ids.I8, ids.BOOL, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := CanCoerce(c.src, c.dst); got != c.want {
				t.Errorf("CanCoerce(%v, %v) = %v, want %v", c.src, c.dst, got, c.want)
			}
		})
	}
}

func TestCommonNumericType(t *testing.T) {
	cases := []struct {
		name string
		a, b ids.TypeID
		want ids.TypeID
		ok   bool
	}{
		{"both i32", ids.I32, ids.I32, ids.I32, true},
		{"widen to i64", ids.I32, ids.I64, ids.I64, true},
		{"bool and i32", ids.BOOL, ids.I32, ids.I32, true},
		{"int and float widens to float", ids.I32, ids.F32, ids.F32, true},
		{"f32 and f64", ids.F32, ids.F64, ids.F64, true},
		{"non numeric", ids.UNIT, ids.I32, 0, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := CommonNumericType(c.a, c.b)
			if ok != c.ok {
				t.Fatalf("CommonNumericType(%v, %v) ok = %v, want %v", c.a, c.b, ok, c.ok)
			}
			if ok && got != c.want {
				t.Errorf("CommonNumericType(%v, %v) = %v, want %v", c.a, c.b, got, c.want)
			}
		})
	}
}

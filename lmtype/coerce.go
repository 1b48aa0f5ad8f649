package lmtype

import "github.com/lmlang/graphlang/ids"

// CanCoerce reports whether a value of type src may be used where dst is
// expected:
//   - identical TypeIDs always coerce.
//   - Bool coerces to any integer type.
//   - integer widening (I8 -> I16 -> I32 -> I64) coerces.
//   - float widening (F32 -> F64) coerces.
//   - there is no cross-family (int<->float) coercion and no narrowing.
func CanCoerce(src, dst ids.TypeID) bool {
	if src == dst {
		return true
	}
	if src == ids.BOOL && IsInteger(dst) {
		return true
	}
	if sw, ok := integerWidth[src]; ok {
		if dw, ok2 := integerWidth[dst]; ok2 {
			return sw <= dw
		}
		return false
	}
	if sw, ok := floatWidth[src]; ok {
		if dw, ok2 := floatWidth[dst]; ok2 {
			return sw <= dw
		}
		return false
	}
	return false
}

// CommonNumericType computes the result type of a binary numeric
// operation over (a, b): if either operand is a float, the result is the
// wider of the two float types involved (defaulting unrepresented sides
// to F32); otherwise the result is the wider of the two integer types,
// treating Bool as I8. Returns (0, false) if neither operand is
// numeric-or-bool.
func CommonNumericType(a, b ids.TypeID) (ids.TypeID, bool) {
	if !IsNumericOrBool(a) || !IsNumericOrBool(b) {
		return 0, false
	}
	na, nb := normalizeBool(a), normalizeBool(b)

	aFloat, bFloat := IsFloat(na), IsFloat(nb)
	if aFloat || bFloat {
		wa := floatRank(na)
		wb := floatRank(nb)
		if wa >= wb {
			return pickFloat(wa), true
		}
		return pickFloat(wb), true
	}

	wa := integerWidth[na]
	wb := integerWidth[nb]
	if wa >= wb {
		return na, true
	}
	return nb, true
}

// normalizeBool maps BOOL to I8 for the purposes of numeric computation.
func normalizeBool(t ids.TypeID) ids.TypeID {
	if t == ids.BOOL {
		return ids.I8
	}
	return t
}

// floatRank returns the float width rank of t, or 1 (the F32 rank) if t is not a float
// (used so an integer paired with a float still contributes "at least
// F32" to the common type).
func floatRank(t ids.TypeID) int {
	if r, ok := floatWidth[t]; ok {
		return r
	}
	return 1 // any non-float paired with a float widens to at least F32
}

func pickFloat(rank int) ids.TypeID {
	if rank >= floatWidth[ids.F64] {
		return ids.F64
	}
	return ids.F32
}

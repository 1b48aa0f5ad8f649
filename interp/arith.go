package interp

import (
	"github.com/lmlang/graphlang/ids"
	"github.com/lmlang/graphlang/ir"
	"github.com/lmlang/graphlang/lmtype"
	"github.com/lmlang/graphlang/program"
	"github.com/lmlang/graphlang/rtvalue"
)

// intRange returns the representable [min,max] for an integer Kind.
func intRange(k rtvalue.Kind) (int64, int64) {
	switch k {
	case rtvalue.KI8:
		return -1 << 7, 1<<7 - 1
	case rtvalue.KI16:
		return -1 << 15, 1<<15 - 1
	case rtvalue.KI32:
		return -1 << 31, 1<<31 - 1
	default:
		return -1 << 63, 1<<63 - 1
	}
}

func inRange(k rtvalue.Kind, v int64) bool {
	lo, hi := intRange(k)
	return v >= lo && v <= hi
}

func evalBinaryArith(nodeID ids.NodeID, op ir.ArithOp, a, b rtvalue.Value) (rtvalue.Value, error) {
	if a.IsFloat() || b.IsFloat() {
		kind := a.Kind
		if !a.IsFloat() {
			kind = b.Kind
		}
		var r float64
		switch op {
		case ir.Add:
			r = a.Float + b.Float
		case ir.Sub:
			r = a.Float - b.Float
		case ir.Mul:
			r = a.Float * b.Float
		case ir.Div:
			if b.Float == 0 {
				return rtvalue.Value{}, &DivisionByZeroError{Node: nodeID}
			}
			r = a.Float / b.Float
		case ir.Rem:
			if b.Float == 0 {
				return rtvalue.Value{}, &DivisionByZeroError{Node: nodeID}
			}
			r = float64(int64(a.Float) % int64(b.Float))
		}
		return rtvalue.Float(kind, r), nil
	}

	kind := a.Kind
	if !a.IsInteger() {
		kind = b.Kind
	}
	var r int64
	switch op {
	case ir.Add:
		r = a.Int + b.Int
	case ir.Sub:
		r = a.Int - b.Int
	case ir.Mul:
		r = a.Int * b.Int
	case ir.Div:
		if b.Int == 0 {
			return rtvalue.Value{}, &DivisionByZeroError{Node: nodeID}
		}
		if a.Int == -1<<63 && b.Int == -1 {
			return rtvalue.Value{}, &IntegerOverflowError{Node: nodeID}
		}
		r = a.Int / b.Int
	case ir.Rem:
		if b.Int == 0 {
			return rtvalue.Value{}, &DivisionByZeroError{Node: nodeID}
		}
		r = a.Int % b.Int
	}
	if !inRange(kind, r) {
		return rtvalue.Value{}, &IntegerOverflowError{Node: nodeID}
	}
	return rtvalue.Int(kind, r), nil
}

func evalUnaryArith(nodeID ids.NodeID, op ir.UnaryOp, a rtvalue.Value) (rtvalue.Value, error) {
	if a.IsFloat() {
		switch op {
		case ir.Neg:
			return rtvalue.Float(a.Kind, -a.Float), nil
		case ir.Abs:
			v := a.Float
			if v < 0 {
				v = -v
			}
			return rtvalue.Float(a.Kind, v), nil
		}
	}
	lo, _ := intRange(a.Kind)
	switch op {
	case ir.Neg:
		if a.Int == lo {
			return rtvalue.Value{}, &IntegerOverflowError{Node: nodeID}
		}
		return rtvalue.Int(a.Kind, -a.Int), nil
	case ir.Abs:
		if a.Int == lo {
			return rtvalue.Value{}, &IntegerOverflowError{Node: nodeID}
		}
		v := a.Int
		if v < 0 {
			v = -v
		}
		return rtvalue.Int(a.Kind, v), nil
	}
	return rtvalue.Value{}, &InternalError{Reason: "unreachable unary op"}
}

func evalCompare(op ir.CompareOp, a, b rtvalue.Value) rtvalue.Value {
	var less, equal bool
	switch {
	case a.IsFloat() || b.IsFloat():
		af, bf := a.Float, b.Float
		if a.IsInteger() {
			af = float64(a.Int)
		}
		if b.IsInteger() {
			bf = float64(b.Int)
		}
		less, equal = af < bf, af == bf
	case a.Kind == rtvalue.KBool:
		ai, bi := 0, 0
		if a.Bool {
			ai = 1
		}
		if b.Bool {
			bi = 1
		}
		less, equal = ai < bi, ai == bi
	case a.Kind == rtvalue.KPointer:
		less, equal = a.Addr < b.Addr, a.Addr == b.Addr
	default:
		less, equal = a.Int < b.Int, a.Int == b.Int
	}
	var r bool
	switch op {
	case ir.Eq:
		r = equal
	case ir.Ne:
		r = !equal
	case ir.Lt:
		r = less
	case ir.Le:
		r = less || equal
	case ir.Gt:
		r = !less && !equal
	case ir.Ge:
		r = !less
	}
	return rtvalue.Bool(r)
}

func evalBinaryLogic(op ir.LogicOp, a, b rtvalue.Value) rtvalue.Value {
	if a.Kind == rtvalue.KBool {
		switch op {
		case ir.And:
			return rtvalue.Bool(a.Bool && b.Bool)
		case ir.Or:
			return rtvalue.Bool(a.Bool || b.Bool)
		case ir.Xor:
			return rtvalue.Bool(a.Bool != b.Bool)
		}
	}
	switch op {
	case ir.And:
		return rtvalue.Int(a.Kind, a.Int&b.Int)
	case ir.Or:
		return rtvalue.Int(a.Kind, a.Int|b.Int)
	case ir.Xor:
		return rtvalue.Int(a.Kind, a.Int^b.Int)
	}
	return rtvalue.Value{}
}

func evalNot(a rtvalue.Value) rtvalue.Value {
	if a.Kind == rtvalue.KBool {
		return rtvalue.Bool(!a.Bool)
	}
	return rtvalue.Int(a.Kind, ^a.Int)
}

func evalShift(nodeID ids.NodeID, op ir.ShiftOp, a, b rtvalue.Value) (rtvalue.Value, error) {
	width := a.IntegerBitWidth()
	if b.Int < 0 || b.Int >= int64(width) {
		return rtvalue.Value{}, &InvalidShiftError{Node: nodeID, Amount: b.Int, BitWidth: width}
	}
	switch op {
	case ir.Shl:
		return rtvalue.Int(a.Kind, a.Int<<uint(b.Int)), nil
	case ir.ShrArith:
		return rtvalue.Int(a.Kind, a.Int>>uint(b.Int)), nil
	case ir.ShrLogical:
		mask := uint64(1)<<uint(width) - 1
		u := uint64(a.Int) & mask
		return rtvalue.Int(a.Kind, int64(u>>uint(b.Int))), nil
	}
	return rtvalue.Value{}, &InternalError{Reason: "unreachable shift op"}
}

func evalCast(target rtvalue.Kind, a rtvalue.Value) rtvalue.Value {
	switch {
	case target == rtvalue.KBool:
		if a.IsFloat() {
			return rtvalue.Bool(a.Float != 0)
		}
		return rtvalue.Bool(a.Int != 0)
	case target == rtvalue.KF32 || target == rtvalue.KF64:
		if a.IsFloat() {
			return rtvalue.Float(target, a.Float)
		}
		if a.Kind == rtvalue.KBool {
			if a.Bool {
				return rtvalue.Float(target, 1)
			}
			return rtvalue.Float(target, 0)
		}
		return rtvalue.Float(target, float64(a.Int))
	default:
		var iv int64
		switch {
		case a.IsFloat():
			iv = int64(a.Float)
		case a.Kind == rtvalue.KBool:
			if a.Bool {
				iv = 1
			}
		default:
			iv = a.Int
		}
		lo, hi := intRange(target)
		width := rtvalue.Value{Kind: target}.IntegerBitWidth()
		mask := int64(1)<<uint(width) - 1
		iv &= mask
		if iv > hi {
			iv -= (mask + 1)
		}
		_ = lo
		return rtvalue.Int(target, iv)
	}
}

// kindForType maps a primitive TypeID to its runtime Kind, used by Cast
// to pick the target representation. Non-primitive targets (struct,
// array, pointer, function) are not castable and fall back to KUnit.
func kindForType(g *program.Graph, t ids.TypeID) rtvalue.Kind {
	lt, ok := g.Types.Lookup(t)
	if !ok || lt.Kind != lmtype.KindPrimitive {
		return rtvalue.KUnit
	}
	switch lt.Primitive {
	case ids.BOOL:
		return rtvalue.KBool
	case ids.I8:
		return rtvalue.KI8
	case ids.I16:
		return rtvalue.KI16
	case ids.I32:
		return rtvalue.KI32
	case ids.I64:
		return rtvalue.KI64
	case ids.F32:
		return rtvalue.KF32
	case ids.F64:
		return rtvalue.KF64
	default:
		return rtvalue.KUnit
	}
}

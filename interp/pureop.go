package interp

import (
	"fmt"

	"github.com/lmlang/graphlang/ids"
	"github.com/lmlang/graphlang/ir"
	"github.com/lmlang/graphlang/program"
	"github.com/lmlang/graphlang/rtvalue"
)

// EvalPureOp evaluates every op kind whose result depends only on its
// graph-level definition and its already-gathered data inputs — no
// call-frame state (Parameter/CaptureAccess), no interpreter-owned
// memory (Alloc/Load/Store), and no I/O (Print/ReadLine/File*). It is
// exported so package contracts can reuse the exact same op semantics
// for its cross-module invariant mini-evaluation (§4.6.2's "call the op
// evaluator used by the interpreter") without contracts importing an
// *Interpreter instance or interp importing contracts back.
func EvalPureOp(g *program.Graph, nodeID ids.NodeID, op ir.Op, inputs []rtvalue.Value) (rtvalue.Value, bool, error) {
	switch op.Kind {
	case ir.OpConst:
		lit := op.Literal
		switch lit.Kind {
		case ir.LitBool:
			return rtvalue.Bool(lit.Bool), true, nil
		case ir.LitI8:
			return rtvalue.Int(rtvalue.KI8, lit.Int), true, nil
		case ir.LitI16:
			return rtvalue.Int(rtvalue.KI16, lit.Int), true, nil
		case ir.LitI32:
			return rtvalue.Int(rtvalue.KI32, lit.Int), true, nil
		case ir.LitI64:
			return rtvalue.Int(rtvalue.KI64, lit.Int), true, nil
		case ir.LitF32:
			return rtvalue.Float(rtvalue.KF32, lit.Float), true, nil
		case ir.LitF64:
			return rtvalue.Float(rtvalue.KF64, lit.Float), true, nil
		default:
			return rtvalue.Unit(), true, nil
		}

	case ir.OpBinaryArith:
		if len(inputs) < 2 {
			return rtvalue.Value{}, false, &InternalError{Reason: "BinaryArith missing inputs"}
		}
		v, err := evalBinaryArith(nodeID, op.ArithOp, inputs[0], inputs[1])
		return v, err == nil, err

	case ir.OpUnaryArith:
		if len(inputs) < 1 {
			return rtvalue.Value{}, false, &InternalError{Reason: "UnaryArith missing input"}
		}
		v, err := evalUnaryArith(nodeID, op.UnaryOp, inputs[0])
		return v, err == nil, err

	case ir.OpCompare:
		if len(inputs) < 2 {
			return rtvalue.Value{}, false, &InternalError{Reason: "Compare missing inputs"}
		}
		return evalCompare(op.CompareOp, inputs[0], inputs[1]), true, nil

	case ir.OpBinaryLogic:
		if len(inputs) < 2 {
			return rtvalue.Value{}, false, &InternalError{Reason: "BinaryLogic missing inputs"}
		}
		return evalBinaryLogic(op.LogicOp, inputs[0], inputs[1]), true, nil

	case ir.OpNot:
		if len(inputs) < 1 {
			return rtvalue.Value{}, false, &InternalError{Reason: "Not missing input"}
		}
		return evalNot(inputs[0]), true, nil

	case ir.OpShift:
		if len(inputs) < 2 {
			return rtvalue.Value{}, false, &InternalError{Reason: "Shift missing inputs"}
		}
		v, err := evalShift(nodeID, op.ShiftOp, inputs[0], inputs[1])
		return v, err == nil, err

	case ir.OpGetElementPtr:
		if len(inputs) < 1 {
			return rtvalue.Value{}, false, &InternalError{Reason: "GetElementPtr missing input"}
		}
		return rtvalue.Pointer(inputs[0].Addr + op.Index), true, nil

	case ir.OpMakeClosure:
		return rtvalue.Closure(op.ClosureFunction, inputs), true, nil

	case ir.OpJump:
		return rtvalue.Value{}, false, nil

	case ir.OpStructCreate:
		return rtvalue.Struct(inputs), true, nil

	case ir.OpStructGet:
		if len(inputs) < 1 {
			return rtvalue.Value{}, false, &InternalError{Reason: "StructGet missing input"}
		}
		if op.FieldIndex < 0 || op.FieldIndex >= len(inputs[0].Elements) {
			return rtvalue.Value{}, false, &OutOfBoundsAccessError{Node: nodeID, Index: op.FieldIndex, Size: len(inputs[0].Elements)}
		}
		return inputs[0].Elements[op.FieldIndex], true, nil

	case ir.OpStructSet:
		if len(inputs) < 2 {
			return rtvalue.Value{}, false, &InternalError{Reason: "StructSet missing inputs"}
		}
		if op.FieldIndex < 0 || op.FieldIndex >= len(inputs[0].Elements) {
			return rtvalue.Value{}, false, &OutOfBoundsAccessError{Node: nodeID, Index: op.FieldIndex, Size: len(inputs[0].Elements)}
		}
		next := append([]rtvalue.Value(nil), inputs[0].Elements...)
		next[op.FieldIndex] = inputs[1]
		return rtvalue.Struct(next), true, nil

	case ir.OpArrayCreate:
		return rtvalue.Array(inputs), true, nil

	case ir.OpArrayGet:
		if len(inputs) < 2 {
			return rtvalue.Value{}, false, &InternalError{Reason: "ArrayGet missing inputs"}
		}
		idx := int(inputs[1].Int)
		if idx < 0 || idx >= len(inputs[0].Elements) {
			return rtvalue.Value{}, false, &OutOfBoundsAccessError{Node: nodeID, Index: idx, Size: len(inputs[0].Elements)}
		}
		return inputs[0].Elements[idx], true, nil

	case ir.OpArraySet:
		if len(inputs) < 3 {
			return rtvalue.Value{}, false, &InternalError{Reason: "ArraySet missing inputs"}
		}
		idx := int(inputs[1].Int)
		if idx < 0 || idx >= len(inputs[0].Elements) {
			return rtvalue.Value{}, false, &OutOfBoundsAccessError{Node: nodeID, Index: idx, Size: len(inputs[0].Elements)}
		}
		next := append([]rtvalue.Value(nil), inputs[0].Elements...)
		next[idx] = inputs[2]
		return rtvalue.Array(next), true, nil

	case ir.OpCast:
		if len(inputs) < 1 {
			return rtvalue.Value{}, false, &InternalError{Reason: "Cast missing input"}
		}
		target := kindForType(g, op.CastTarget)
		return evalCast(target, inputs[0]), true, nil

	case ir.OpEnumCreate:
		var payload *rtvalue.Value
		if len(inputs) > 0 {
			payload = &inputs[0]
		}
		return rtvalue.Enum(uint16(op.VariantIndex), payload), true, nil

	case ir.OpEnumDiscriminant:
		if len(inputs) < 1 {
			return rtvalue.Value{}, false, &InternalError{Reason: "EnumDiscriminant missing input"}
		}
		return rtvalue.Int(rtvalue.KI32, int64(inputs[0].Variant)), true, nil

	case ir.OpEnumPayload:
		if len(inputs) < 1 {
			return rtvalue.Value{}, false, &InternalError{Reason: "EnumPayload missing input"}
		}
		if inputs[0].Payload == nil {
			return rtvalue.Unit(), true, nil
		}
		return *inputs[0].Payload, true, nil

	default:
		return rtvalue.Value{}, false, &InternalError{Reason: fmt.Sprintf("unhandled pure op kind %v", op.Kind)}
	}
}

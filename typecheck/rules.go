package typecheck

import (
	"sort"

	"github.com/lmlang/graphlang/ids"
	"github.com/lmlang/graphlang/ir"
	"github.com/lmlang/graphlang/lmtype"
	"github.com/lmlang/graphlang/program"
)

// ExpectedInput names the type a data input port must coerce to.
type ExpectedInput struct {
	Port uint16
	Type ids.TypeID
}

// OpTypeRule is resolve_type_rule's result for a single node: the
// expected type at each checked port, and the node's output type (if
// the op produces a value consumers can read).
type OpTypeRule struct {
	ExpectedInputs []ExpectedInput
	OutputType     ids.TypeID
	HasOutput      bool
}

// ResolveTypeRule computes the type rule for node nid, owned by fid,
// given the types currently flowing into it on each port (indexed by
// port number; a missing port is the zero TypeID and treated as absent).
// This is content-dependent: a Call's output depends on the target
// function's declared return type, a Load's output depends on the
// pointer type flowing into port 0, and so on (§4.4.2).
func ResolveTypeRule(g *program.Graph, fid ids.FunctionID, nid ids.NodeID, inputTypes map[uint16]ids.TypeID) (OpTypeRule, error) {
	node, ok := g.GetComputeNode(nid)
	if !ok {
		return OpTypeRule{}, &TypeError{Node: nid, Reason: "node not found"}
	}
	def, ok := g.GetFunction(fid)
	if !ok {
		return OpTypeRule{}, &TypeError{Node: nid, Reason: "owning function not found"}
	}
	op := node.Op

	switch op.Kind {
	case ir.OpConst:
		return OpTypeRule{OutputType: op.Literal.Kind.TypeID(), HasOutput: true}, nil

	case ir.OpParameter:
		if op.Index < 0 || op.Index >= len(def.Params) {
			return OpTypeRule{}, &TypeError{Node: nid, Reason: "parameter index out of range"}
		}
		return OpTypeRule{OutputType: def.Params[op.Index].Type, HasOutput: true}, nil

	case ir.OpCaptureAccess:
		if op.Index < 0 || op.Index >= len(def.Captures) {
			return OpTypeRule{}, &TypeError{Node: nid, Reason: "capture index out of range"}
		}
		return OpTypeRule{OutputType: def.Captures[op.Index].CapturedType, HasOutput: true}, nil

	case ir.OpBinaryArith:
		a, b := inputTypes[0], inputTypes[1]
		common, ok := lmtype.CommonNumericType(a, b)
		if !ok {
			bad := a
			if lmtype.IsNumericOrBool(a) {
				bad = b
			}
			return OpTypeRule{}, &NonNumericArithmeticError{Node: nid, Type: bad}
		}
		return OpTypeRule{
			ExpectedInputs: []ExpectedInput{{0, common}, {1, common}},
			OutputType:     common, HasOutput: true,
		}, nil

	case ir.OpUnaryArith:
		t := inputTypes[0]
		if !lmtype.IsNumericOrBool(t) {
			return OpTypeRule{}, &NonNumericArithmeticError{Node: nid, Type: t}
		}
		return OpTypeRule{
			ExpectedInputs: []ExpectedInput{{0, t}},
			OutputType:     t, HasOutput: true,
		}, nil

	case ir.OpCompare:
		a, b := inputTypes[0], inputTypes[1]
		common := a
		if lmtype.IsNumericOrBool(a) && lmtype.IsNumericOrBool(b) {
			if c, ok := lmtype.CommonNumericType(a, b); ok {
				common = c
			}
		}
		return OpTypeRule{
			ExpectedInputs: []ExpectedInput{{0, common}, {1, common}},
			OutputType:     ids.BOOL, HasOutput: true,
		}, nil

	case ir.OpBinaryLogic:
		return OpTypeRule{
			ExpectedInputs: []ExpectedInput{{0, ids.BOOL}, {1, ids.BOOL}},
			OutputType:     ids.BOOL, HasOutput: true,
		}, nil

	case ir.OpShift:
		lhs := inputTypes[0]
		if !lmtype.IsInteger(lhs) {
			return OpTypeRule{}, &NonNumericArithmeticError{Node: nid, Type: lhs}
		}
		return OpTypeRule{
			ExpectedInputs: []ExpectedInput{{0, lhs}, {1, ids.I32}},
			OutputType:     lhs, HasOutput: true,
		}, nil

	case ir.OpNot:
		t := inputTypes[0]
		if t != ids.BOOL && !lmtype.IsInteger(t) {
			return OpTypeRule{}, &NonNumericArithmeticError{Node: nid, Type: t}
		}
		return OpTypeRule{
			ExpectedInputs: []ExpectedInput{{0, t}},
			OutputType:     t, HasOutput: true,
		}, nil

	case ir.OpBranch, ir.OpIfElse, ir.OpLoop, ir.OpMatch:
		cond := inputTypes[0]
		if cond != ids.BOOL {
			return OpTypeRule{}, &NonBooleanConditionError{Node: nid, Type: cond}
		}
		return OpTypeRule{ExpectedInputs: []ExpectedInput{{0, ids.BOOL}}}, nil

	case ir.OpJump:
		return OpTypeRule{}, nil

	case ir.OpPhi:
		ports := sortedPorts(inputTypes)
		if len(ports) == 0 {
			return OpTypeRule{}, &TypeError{Node: nid, Reason: "Phi has no inputs"}
		}
		decided := inputTypes[ports[0]]
		expected := make([]ExpectedInput, len(ports))
		for i, p := range ports {
			expected[i] = ExpectedInput{p, decided}
		}
		return OpTypeRule{ExpectedInputs: expected, OutputType: decided, HasOutput: true}, nil

	case ir.OpAlloc:
		return OpTypeRule{OutputType: g.Types.Register(lmtype.LmType{Kind: lmtype.KindPointer, Pointee: op.TargetType, Mutable: true}), HasOutput: true}, nil

	case ir.OpLoad:
		ptrType := inputTypes[0]
		lt, ok := g.Types.Lookup(ptrType)
		if !ok || lt.Kind != lmtype.KindPointer {
			return OpTypeRule{}, &TypeError{Node: nid, Reason: "Load input is not a pointer type"}
		}
		return OpTypeRule{ExpectedInputs: []ExpectedInput{{0, ptrType}}, OutputType: lt.Pointee, HasOutput: true}, nil

	case ir.OpStore:
		ptrType := inputTypes[0]
		lt, ok := g.Types.Lookup(ptrType)
		if !ok || lt.Kind != lmtype.KindPointer {
			return OpTypeRule{}, &TypeError{Node: nid, Reason: "Store target is not a pointer type"}
		}
		return OpTypeRule{ExpectedInputs: []ExpectedInput{{0, ptrType}, {1, lt.Pointee}}}, nil

	case ir.OpGetElementPtr:
		ptrType := inputTypes[0]
		lt, ok := g.Types.Lookup(ptrType)
		if !ok || lt.Kind != lmtype.KindPointer {
			return OpTypeRule{}, &TypeError{Node: nid, Reason: "GetElementPtr base is not a pointer type"}
		}
		container, ok := g.Types.Lookup(lt.Pointee)
		if !ok {
			return OpTypeRule{}, &TypeError{Node: nid, Reason: "GetElementPtr pointee type not registered"}
		}
		elemType, err := elementTypeAt(container, op.Index, nid)
		if err != nil {
			return OpTypeRule{}, err
		}
		out := g.Types.Register(lmtype.LmType{Kind: lmtype.KindPointer, Pointee: elemType, Mutable: lt.Mutable})
		return OpTypeRule{ExpectedInputs: []ExpectedInput{{0, ptrType}}, OutputType: out, HasOutput: true}, nil

	case ir.OpCall:
		target, ok := g.GetFunction(op.Target)
		if !ok {
			return OpTypeRule{}, &TypeError{Node: nid, Reason: "Call target function not found"}
		}
		expected := make([]ExpectedInput, len(target.Params))
		for i, p := range target.Params {
			expected[i] = ExpectedInput{uint16(i), p.Type}
		}
		return OpTypeRule{ExpectedInputs: expected, OutputType: target.ReturnType, HasOutput: true}, nil

	case ir.OpIndirectCall:
		fnVal := inputTypes[0]
		lt, ok := g.Types.Lookup(fnVal)
		if !ok || lt.Kind != lmtype.KindFunction {
			return OpTypeRule{}, &TypeError{Node: nid, Reason: "IndirectCall port 0 is not a function reference type"}
		}
		expected := []ExpectedInput{{0, fnVal}}
		for i, pt := range lt.Params {
			expected = append(expected, ExpectedInput{uint16(i + 1), pt})
		}
		return OpTypeRule{ExpectedInputs: expected, OutputType: lt.ReturnType, HasOutput: true}, nil

	case ir.OpMakeClosure:
		target, ok := g.GetFunction(op.ClosureFunction)
		if !ok {
			return OpTypeRule{}, &TypeError{Node: nid, Reason: "MakeClosure target function not found"}
		}
		expected := make([]ExpectedInput, len(target.Captures))
		for i, c := range target.Captures {
			expected[i] = ExpectedInput{uint16(i), c.CapturedType}
		}
		out := g.Types.Register(target.FunctionType())
		return OpTypeRule{ExpectedInputs: expected, OutputType: out, HasOutput: true}, nil

	case ir.OpReturn:
		return OpTypeRule{ExpectedInputs: []ExpectedInput{{0, def.ReturnType}}}, nil

	case ir.OpPrint, ir.OpReadLine, ir.OpFileOpen, ir.OpFileRead, ir.OpFileWrite, ir.OpFileClose:
		return OpTypeRule{}, nil

	case ir.OpPrecondition:
		return OpTypeRule{ExpectedInputs: []ExpectedInput{{0, ids.BOOL}}}, nil

	case ir.OpPostcondition:
		expected := []ExpectedInput{{0, ids.BOOL}}
		if rt, ok := inputTypes[1]; ok {
			expected = append(expected, ExpectedInput{1, rt})
		}
		return OpTypeRule{ExpectedInputs: expected}, nil

	case ir.OpInvariant:
		return OpTypeRule{ExpectedInputs: []ExpectedInput{{0, ids.BOOL}, {1, op.TargetType}}}, nil

	case ir.OpStructCreate:
		lt, ok := g.Types.Lookup(op.TypeID)
		if !ok || lt.Kind != lmtype.KindStruct {
			return OpTypeRule{}, &TypeError{Node: nid, Reason: "StructCreate type is not a registered struct"}
		}
		expected := make([]ExpectedInput, len(lt.Fields))
		for i, f := range lt.Fields {
			expected[i] = ExpectedInput{uint16(i), f.Type}
		}
		return OpTypeRule{ExpectedInputs: expected, OutputType: op.TypeID, HasOutput: true}, nil

	case ir.OpStructGet:
		containerType := inputTypes[0]
		lt, ok := g.Types.Lookup(containerType)
		if !ok || lt.Kind != lmtype.KindStruct {
			return OpTypeRule{}, &TypeError{Node: nid, Reason: "StructGet input is not a struct type"}
		}
		if op.FieldIndex < 0 || op.FieldIndex >= len(lt.Fields) {
			return OpTypeRule{}, &TypeError{Node: nid, Reason: "StructGet field index out of range"}
		}
		return OpTypeRule{ExpectedInputs: []ExpectedInput{{0, containerType}}, OutputType: lt.Fields[op.FieldIndex].Type, HasOutput: true}, nil

	case ir.OpStructSet:
		containerType := inputTypes[0]
		lt, ok := g.Types.Lookup(containerType)
		if !ok || lt.Kind != lmtype.KindStruct {
			return OpTypeRule{}, &TypeError{Node: nid, Reason: "StructSet input is not a struct type"}
		}
		if op.FieldIndex < 0 || op.FieldIndex >= len(lt.Fields) {
			return OpTypeRule{}, &TypeError{Node: nid, Reason: "StructSet field index out of range"}
		}
		return OpTypeRule{
			ExpectedInputs: []ExpectedInput{{0, containerType}, {1, lt.Fields[op.FieldIndex].Type}},
			OutputType:     containerType, HasOutput: true,
		}, nil

	case ir.OpArrayCreate:
		elem := inputTypes[0]
		out := g.Types.Register(lmtype.LmType{Kind: lmtype.KindArray, Element: elem, Length: op.ArrayLength})
		expected := make([]ExpectedInput, op.ArrayLength)
		for i := 0; i < op.ArrayLength; i++ {
			expected[i] = ExpectedInput{uint16(i), elem}
		}
		return OpTypeRule{ExpectedInputs: expected, OutputType: out, HasOutput: true}, nil

	case ir.OpArrayGet:
		containerType := inputTypes[0]
		lt, ok := g.Types.Lookup(containerType)
		if !ok || lt.Kind != lmtype.KindArray {
			return OpTypeRule{}, &TypeError{Node: nid, Reason: "ArrayGet input is not an array type"}
		}
		return OpTypeRule{
			ExpectedInputs: []ExpectedInput{{0, containerType}, {1, ids.I32}},
			OutputType:     lt.Element, HasOutput: true,
		}, nil

	case ir.OpArraySet:
		containerType := inputTypes[0]
		lt, ok := g.Types.Lookup(containerType)
		if !ok || lt.Kind != lmtype.KindArray {
			return OpTypeRule{}, &TypeError{Node: nid, Reason: "ArraySet input is not an array type"}
		}
		return OpTypeRule{
			ExpectedInputs: []ExpectedInput{{0, containerType}, {1, ids.I32}, {2, lt.Element}},
			OutputType:     containerType, HasOutput: true,
		}, nil

	case ir.OpCast:
		return OpTypeRule{
			ExpectedInputs: []ExpectedInput{{0, inputTypes[0]}},
			OutputType:     op.CastTarget, HasOutput: true,
		}, nil

	case ir.OpEnumCreate:
		lt, ok := g.Types.Lookup(op.TypeID)
		if !ok || lt.Kind != lmtype.KindEnum {
			return OpTypeRule{}, &TypeError{Node: nid, Reason: "EnumCreate type is not a registered enum"}
		}
		if op.VariantIndex < 0 || op.VariantIndex >= len(lt.Variants) {
			return OpTypeRule{}, &TypeError{Node: nid, Reason: "EnumCreate variant index out of range"}
		}
		v := lt.Variants[op.VariantIndex]
		var expected []ExpectedInput
		if v.HasPayload {
			expected = []ExpectedInput{{0, v.Payload}}
		}
		return OpTypeRule{ExpectedInputs: expected, OutputType: op.TypeID, HasOutput: true}, nil

	case ir.OpEnumDiscriminant:
		containerType := inputTypes[0]
		if lt, ok := g.Types.Lookup(containerType); !ok || lt.Kind != lmtype.KindEnum {
			return OpTypeRule{}, &TypeError{Node: nid, Reason: "EnumDiscriminant input is not an enum type"}
		}
		return OpTypeRule{ExpectedInputs: []ExpectedInput{{0, containerType}}, OutputType: ids.I32, HasOutput: true}, nil

	case ir.OpEnumPayload:
		containerType := inputTypes[0]
		lt, ok := g.Types.Lookup(containerType)
		if !ok || lt.Kind != lmtype.KindEnum {
			return OpTypeRule{}, &TypeError{Node: nid, Reason: "EnumPayload input is not an enum type"}
		}
		if op.VariantIndex < 0 || op.VariantIndex >= len(lt.Variants) {
			return OpTypeRule{}, &TypeError{Node: nid, Reason: "EnumPayload variant index out of range"}
		}
		v := lt.Variants[op.VariantIndex]
		if !v.HasPayload {
			return OpTypeRule{}, &TypeError{Node: nid, Reason: "EnumPayload variant has no payload"}
		}
		return OpTypeRule{ExpectedInputs: []ExpectedInput{{0, containerType}}, OutputType: v.Payload, HasOutput: true}, nil

	default:
		return OpTypeRule{}, &TypeError{Node: nid, Reason: "unrecognized op kind"}
	}
}

func elementTypeAt(container lmtype.LmType, index int, nid ids.NodeID) (ids.TypeID, error) {
	switch container.Kind {
	case lmtype.KindStruct:
		if index < 0 || index >= len(container.Fields) {
			return 0, &TypeError{Node: nid, Reason: "GetElementPtr field index out of range"}
		}
		return container.Fields[index].Type, nil
	case lmtype.KindArray:
		return container.Element, nil
	default:
		return 0, &TypeError{Node: nid, Reason: "GetElementPtr container is neither struct nor array"}
	}
}

func sortedPorts(m map[uint16]ids.TypeID) []uint16 {
	out := make([]uint16, 0, len(m))
	for p := range m {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

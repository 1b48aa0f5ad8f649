package contracts

import (
	"testing"

	"github.com/lmlang/graphlang/ids"
	"github.com/lmlang/graphlang/interp"
	"github.com/lmlang/graphlang/ir"
	"github.com/lmlang/graphlang/lmtype"
	"github.com/lmlang/graphlang/program"
	"github.com/lmlang/graphlang/rtvalue"
)

func TestEvaluateCondition_NoCondition(t *testing.T) {
	g := program.New("root")
	fid, _ := g.AddFunction("f", g.Modules.Root(), nil, ids.UNIT, lmtype.Public)
	pre, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpPrecondition})

	ok, err := EvaluateCondition(g, pre, map[ids.NodeID]rtvalue.Value{})
	if err != nil || !ok {
		t.Fatalf("expected vacuous pass, got ok=%v err=%v", ok, err)
	}
}

func TestEvaluateCondition_MissingValue(t *testing.T) {
	g := program.New("root")
	fid, _ := g.AddFunction("f", g.Modules.Root(), []ir.Param{{Name: "x", Type: ids.BOOL}}, ids.UNIT, lmtype.Public)
	p0, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpParameter, Index: 0})
	pre, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpPrecondition})
	g.AddDataEdge(p0, pre, 0, 0, ids.BOOL)

	_, err := EvaluateCondition(g, pre, map[ids.NodeID]rtvalue.Value{})
	if _, ok := err.(*MissingValueError); !ok {
		t.Fatalf("expected *MissingValueError, got %T: %v", err, err)
	}
}

func TestEvaluateCondition_TypeMismatch(t *testing.T) {
	g := program.New("root")
	fid, _ := g.AddFunction("f", g.Modules.Root(), []ir.Param{{Name: "x", Type: ids.I32}}, ids.UNIT, lmtype.Public)
	p0, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpParameter, Index: 0})
	pre, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpPrecondition})
	g.AddDataEdge(p0, pre, 0, 0, ids.I32)

	values := map[ids.NodeID]rtvalue.Value{p0: rtvalue.Int(rtvalue.KI32, 7)}
	_, err := EvaluateCondition(g, pre, values)
	if _, ok := err.(*interp.TypeMismatchAtRuntimeError); !ok {
		t.Fatalf("expected *interp.TypeMismatchAtRuntimeError, got %T: %v", err, err)
	}
}

func TestEvaluateCondition_True(t *testing.T) {
	g := program.New("root")
	fid, _ := g.AddFunction("f", g.Modules.Root(), []ir.Param{{Name: "x", Type: ids.BOOL}}, ids.UNIT, lmtype.Public)
	p0, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpParameter, Index: 0})
	pre, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpPrecondition})
	g.AddDataEdge(p0, pre, 0, 0, ids.BOOL)

	values := map[ids.NodeID]rtvalue.Value{p0: rtvalue.Bool(true)}
	ok, err := EvaluateCondition(g, pre, values)
	if err != nil || !ok {
		t.Fatalf("expected true, got ok=%v err=%v", ok, err)
	}
}

func TestCollectCounterexample_SortedByNode(t *testing.T) {
	g := program.New("root")
	fid, _ := g.AddFunction("f", g.Modules.Root(), []ir.Param{
		{Name: "a", Type: ids.I32}, {Name: "b", Type: ids.I32},
	}, ids.UNIT, lmtype.Public)
	p0, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpParameter, Index: 0})
	p1, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpParameter, Index: 1})
	inv, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpInvariant})
	g.AddDataEdge(p1, inv, 0, 1, ids.I32)
	g.AddDataEdge(p0, inv, 0, 0, ids.I32)

	values := map[ids.NodeID]rtvalue.Value{
		p0: rtvalue.Int(rtvalue.KI32, 1),
		p1: rtvalue.Int(rtvalue.KI32, 2),
	}
	entries := CollectCounterexample(g, inv, values)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if !(entries[0].Node < entries[1].Node) {
		t.Fatalf("expected entries sorted by NodeID, got %+v", entries)
	}
}

// buildPositiveInvariant wires a callee function whose Invariant over
// its I32 parameter checks "x > 0": Parameter -> Compare(Gt) w/ Const(0)
// -> Invariant{TargetType: I32}.
func buildPositiveInvariant(t *testing.T) (*program.Graph, ids.FunctionID) {
	t.Helper()
	g := program.New("root")
	fid, _ := g.AddFunction("callee", g.Modules.Root(), []ir.Param{{Name: "x", Type: ids.I32}}, ids.UNIT, lmtype.Public)
	p0, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpParameter, Index: 0})
	zero, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpConst, Literal: ir.Literal{Kind: ir.LitI32, Int: 0}})
	cmp, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpCompare, CompareOp: ir.Gt})
	inv, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpInvariant, TargetType: ids.I32, Message: "x must be positive"})
	g.AddDataEdge(p0, cmp, 0, 0, ids.I32)
	g.AddDataEdge(zero, cmp, 0, 1, ids.I32)
	g.AddDataEdge(cmp, inv, 0, 0, ids.BOOL)
	return g, fid
}

func TestChecker_CheckBoundary_Pass(t *testing.T) {
	g, fid := buildPositiveInvariant(t)
	c := NewChecker()
	ok, violation := c.CheckBoundary(g, fid, 0, ids.I32, rtvalue.Int(rtvalue.KI32, 5))
	if !ok || violation != nil {
		t.Fatalf("expected pass, got ok=%v violation=%+v", ok, violation)
	}
}

func TestChecker_CheckBoundary_Fail(t *testing.T) {
	g, fid := buildPositiveInvariant(t)
	c := NewChecker()
	ok, violation := c.CheckBoundary(g, fid, 0, ids.I32, rtvalue.Int(rtvalue.KI32, -5))
	if ok || violation == nil {
		t.Fatalf("expected violation, got ok=%v violation=%+v", ok, violation)
	}
	if violation.Kind != interp.KindInvariant || violation.Message != "x must be positive" {
		t.Fatalf("unexpected violation: %+v", violation)
	}
}

func TestChecker_CheckBoundary_NoMatchingInvariant(t *testing.T) {
	g, fid := buildPositiveInvariant(t)
	c := NewChecker()
	ok, violation := c.CheckBoundary(g, fid, 0, ids.I64, rtvalue.Int(rtvalue.KI64, -5))
	if !ok || violation != nil {
		t.Fatalf("expected vacuous pass for non-matching TargetType, got ok=%v violation=%+v", ok, violation)
	}
}

func TestChecker_ImplementsModuleBoundaryChecker(t *testing.T) {
	var _ interp.ModuleBoundaryChecker = NewChecker()
}

// TestChecker_WiredIntoInterpreter_CrossModuleCall exercises the checker
// the way the interpreter actually uses it: a caller in one module calls
// a callee in another whose parameter carries a positivity invariant.
func TestChecker_WiredIntoInterpreter_CrossModuleCall(t *testing.T) {
	g := program.New("root")
	otherModule, err := g.AddModule("other", g.Modules.Root(), lmtype.Public)
	if err != nil {
		t.Fatalf("AddModule: %v", err)
	}

	callee, _ := g.AddFunction("callee", otherModule, []ir.Param{{Name: "x", Type: ids.I32}}, ids.I32, lmtype.Public)
	cp0, _ := g.AddComputeNode(callee, ir.Op{Kind: ir.OpParameter, Index: 0})
	czero, _ := g.AddComputeNode(callee, ir.Op{Kind: ir.OpConst, Literal: ir.Literal{Kind: ir.LitI32, Int: 0}})
	ccmp, _ := g.AddComputeNode(callee, ir.Op{Kind: ir.OpCompare, CompareOp: ir.Gt})
	cinv, _ := g.AddComputeNode(callee, ir.Op{Kind: ir.OpInvariant, TargetType: ids.I32, Message: "x must be positive"})
	cret, _ := g.AddComputeNode(callee, ir.Op{Kind: ir.OpReturn})
	g.AddDataEdge(cp0, ccmp, 0, 0, ids.I32)
	g.AddDataEdge(czero, ccmp, 0, 1, ids.I32)
	g.AddDataEdge(ccmp, cinv, 0, 0, ids.BOOL)
	g.AddDataEdge(cp0, cret, 0, 0, ids.I32)
	g.AddControlEdge(cinv, cret, -1)
	g.SetEntryNode(callee, cp0)

	caller, _ := g.AddFunction("main", g.Modules.Root(), []ir.Param{{Name: "x", Type: ids.I32}}, ids.I32, lmtype.Public)
	mp0, _ := g.AddComputeNode(caller, ir.Op{Kind: ir.OpParameter, Index: 0})
	call, _ := g.AddComputeNode(caller, ir.Op{Kind: ir.OpCall, Target: callee})
	mret, _ := g.AddComputeNode(caller, ir.Op{Kind: ir.OpReturn})
	g.AddDataEdge(mp0, call, 0, 0, ids.I32)
	g.AddDataEdge(call, mret, 0, 0, ids.I32)
	g.SetEntryNode(caller, mp0)

	ip, err := interp.New(g, caller, []rtvalue.Value{rtvalue.Int(rtvalue.KI32, -3)}, interp.WithModuleBoundaryChecker(NewChecker()))
	if err != nil {
		t.Fatalf("interp.New: %v", err)
	}
	ip.Run()
	if ip.State() != interp.StateContractViolation {
		t.Fatalf("expected ContractViolation, got %v (err=%v)", ip.State(), ip.Err())
	}
	if v := ip.Violation(); v == nil || v.Function != callee {
		t.Fatalf("expected violation attributed to callee, got %+v", v)
	}
}

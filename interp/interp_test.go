package interp

import (
	"testing"

	"github.com/lmlang/graphlang/ids"
	"github.com/lmlang/graphlang/ir"
	"github.com/lmlang/graphlang/lmtype"
	"github.com/lmlang/graphlang/program"
	"github.com/lmlang/graphlang/rtvalue"
)

// buildAdd wires a function a,b -> Return(a+b).
func buildAdd(t *testing.T) (*program.Graph, ids.FunctionID) {
	t.Helper()
	g := program.New("root")
	fid, err := g.AddFunction("add", g.Modules.Root(), []ir.Param{
		{Name: "a", Type: ids.I32}, {Name: "b", Type: ids.I32},
	}, ids.I32, lmtype.Public)
	if err != nil {
		t.Fatalf("AddFunction: %v", err)
	}
	p0, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpParameter, Index: 0})
	p1, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpParameter, Index: 1})
	add, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpBinaryArith, ArithOp: ir.Add})
	ret, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpReturn})
	if _, err := g.AddDataEdge(p0, add, 0, 0, ids.I32); err != nil {
		t.Fatalf("AddDataEdge: %v", err)
	}
	if _, err := g.AddDataEdge(p1, add, 0, 1, ids.I32); err != nil {
		t.Fatalf("AddDataEdge: %v", err)
	}
	if _, err := g.AddDataEdge(add, ret, 0, 0, ids.I32); err != nil {
		t.Fatalf("AddDataEdge: %v", err)
	}
	if err := g.SetEntryNode(fid, p0); err != nil {
		t.Fatalf("SetEntryNode: %v", err)
	}
	return g, fid
}

func TestInterpreter_BinaryArithReturn(t *testing.T) {
	g, fid := buildAdd(t)
	ip, err := New(g, fid, []rtvalue.Value{rtvalue.Int(rtvalue.KI32, 2), rtvalue.Int(rtvalue.KI32, 3)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ip.Run()
	if ip.State() != StateCompleted {
		t.Fatalf("expected Completed, got %v (err=%v)", ip.State(), ip.Err())
	}
	result, ok := ip.Result()
	if !ok || result.Int != 5 {
		t.Fatalf("expected 5, got %+v (ok=%v)", result, ok)
	}
}

func TestInterpreter_IntegerOverflow(t *testing.T) {
	g := program.New("root")
	fid, _ := g.AddFunction("f", g.Modules.Root(), []ir.Param{{Name: "a", Type: ids.I8}, {Name: "b", Type: ids.I8}}, ids.I8, lmtype.Public)
	p0, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpParameter, Index: 0})
	p1, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpParameter, Index: 1})
	add, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpBinaryArith, ArithOp: ir.Add})
	ret, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpReturn})
	g.AddDataEdge(p0, add, 0, 0, ids.I8)
	g.AddDataEdge(p1, add, 0, 1, ids.I8)
	g.AddDataEdge(add, ret, 0, 0, ids.I8)
	g.SetEntryNode(fid, p0)

	ip, err := New(g, fid, []rtvalue.Value{rtvalue.Int(rtvalue.KI8, 120), rtvalue.Int(rtvalue.KI8, 100)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ip.Run()
	if ip.State() != StateError {
		t.Fatalf("expected Error, got %v", ip.State())
	}
	if _, ok := ip.Err().(*IntegerOverflowError); !ok {
		t.Fatalf("expected *IntegerOverflowError, got %T: %v", ip.Err(), ip.Err())
	}
}

func TestInterpreter_DivisionByZero(t *testing.T) {
	g := program.New("root")
	fid, _ := g.AddFunction("f", g.Modules.Root(), []ir.Param{{Name: "a", Type: ids.I32}}, ids.I32, lmtype.Public)
	p0, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpParameter, Index: 0})
	zero, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpConst, Literal: ir.Literal{Kind: ir.LitI32, Int: 0}})
	div, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpBinaryArith, ArithOp: ir.Div})
	ret, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpReturn})
	g.AddDataEdge(p0, div, 0, 0, ids.I32)
	g.AddDataEdge(zero, div, 0, 1, ids.I32)
	g.AddDataEdge(div, ret, 0, 0, ids.I32)
	g.SetEntryNode(fid, p0)

	ip, _ := New(g, fid, []rtvalue.Value{rtvalue.Int(rtvalue.KI32, 10)})
	ip.Run()
	if ip.State() != StateError {
		t.Fatalf("expected Error, got %v", ip.State())
	}
	if _, ok := ip.Err().(*DivisionByZeroError); !ok {
		t.Fatalf("expected *DivisionByZeroError, got %T", ip.Err())
	}
}

// buildIfElse wires: IfElse(cond) --0--> Const(1) --> Phi
//                               --1--> Const(2) --> Phi
// then Return(Phi).
func buildIfElse(t *testing.T) (*program.Graph, ids.FunctionID) {
	t.Helper()
	g := program.New("root")
	fid, _ := g.AddFunction("choose", g.Modules.Root(), []ir.Param{{Name: "cond", Type: ids.BOOL}}, ids.I32, lmtype.Public)
	p0, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpParameter, Index: 0})
	ifElse, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpIfElse})
	whenTrue, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpConst, Literal: ir.Literal{Kind: ir.LitI32, Int: 1}})
	whenFalse, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpConst, Literal: ir.Literal{Kind: ir.LitI32, Int: 2}})
	phi, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpPhi})
	ret, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpReturn})

	g.AddDataEdge(p0, ifElse, 0, 0, ids.BOOL)
	g.AddControlEdge(ifElse, whenTrue, 0)
	g.AddControlEdge(ifElse, whenFalse, 1)
	g.AddControlEdge(ifElse, phi, -1)
	g.AddDataEdge(whenTrue, phi, 0, 0, ids.I32)
	g.AddDataEdge(whenFalse, phi, 0, 1, ids.I32)
	g.AddDataEdge(phi, ret, 0, 0, ids.I32)
	g.SetEntryNode(fid, p0)
	return g, fid
}

func TestInterpreter_IfElsePhi_TrueBranch(t *testing.T) {
	g, fid := buildIfElse(t)
	ip, _ := New(g, fid, []rtvalue.Value{rtvalue.Bool(true)})
	ip.Run()
	if ip.State() != StateCompleted {
		t.Fatalf("expected Completed, got %v (err=%v)", ip.State(), ip.Err())
	}
	result, _ := ip.Result()
	if result.Int != 1 {
		t.Fatalf("expected 1, got %v", result.Int)
	}
}

func TestInterpreter_IfElsePhi_FalseBranch(t *testing.T) {
	g, fid := buildIfElse(t)
	ip, _ := New(g, fid, []rtvalue.Value{rtvalue.Bool(false)})
	ip.Run()
	result, _ := ip.Result()
	if result.Int != 2 {
		t.Fatalf("expected 2, got %v", result.Int)
	}
}

func TestInterpreter_Call(t *testing.T) {
	g := program.New("root")
	callee, _ := g.AddFunction("double", g.Modules.Root(), []ir.Param{{Name: "x", Type: ids.I32}}, ids.I32, lmtype.Public)
	cp0, _ := g.AddComputeNode(callee, ir.Op{Kind: ir.OpParameter, Index: 0})
	cadd, _ := g.AddComputeNode(callee, ir.Op{Kind: ir.OpBinaryArith, ArithOp: ir.Add})
	cret, _ := g.AddComputeNode(callee, ir.Op{Kind: ir.OpReturn})
	g.AddDataEdge(cp0, cadd, 0, 0, ids.I32)
	g.AddDataEdge(cp0, cadd, 0, 1, ids.I32)
	g.AddDataEdge(cadd, cret, 0, 0, ids.I32)
	g.SetEntryNode(callee, cp0)

	caller, _ := g.AddFunction("main", g.Modules.Root(), []ir.Param{{Name: "x", Type: ids.I32}}, ids.I32, lmtype.Public)
	mp0, _ := g.AddComputeNode(caller, ir.Op{Kind: ir.OpParameter, Index: 0})
	call, _ := g.AddComputeNode(caller, ir.Op{Kind: ir.OpCall, Target: callee})
	mret, _ := g.AddComputeNode(caller, ir.Op{Kind: ir.OpReturn})
	g.AddDataEdge(mp0, call, 0, 0, ids.I32)
	g.AddDataEdge(call, mret, 0, 0, ids.I32)
	g.SetEntryNode(caller, mp0)

	ip, _ := New(g, caller, []rtvalue.Value{rtvalue.Int(rtvalue.KI32, 4)})
	ip.Run()
	if ip.State() != StateCompleted {
		t.Fatalf("expected Completed, got %v (err=%v)", ip.State(), ip.Err())
	}
	result, _ := ip.Result()
	if result.Int != 8 {
		t.Fatalf("expected 8, got %v", result.Int)
	}
}

func TestInterpreter_RecursionLimit(t *testing.T) {
	g := program.New("root")
	fid, _ := g.AddFunction("loopy", g.Modules.Root(), []ir.Param{{Name: "x", Type: ids.I32}}, ids.I32, lmtype.Public)
	p0, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpParameter, Index: 0})
	call, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpCall, Target: fid})
	ret, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpReturn})
	g.AddDataEdge(p0, call, 0, 0, ids.I32)
	g.AddDataEdge(call, ret, 0, 0, ids.I32)
	g.SetEntryNode(fid, p0)

	ip, _ := New(g, fid, []rtvalue.Value{rtvalue.Int(rtvalue.KI32, 1)}, WithMaxRecursionDepth(8))
	ip.Run()
	if ip.State() != StateError {
		t.Fatalf("expected Error, got %v", ip.State())
	}
	if _, ok := ip.Err().(*RecursionLimitExceededError); !ok {
		t.Fatalf("expected *RecursionLimitExceededError, got %T", ip.Err())
	}
}

func TestInterpreter_PreconditionViolation(t *testing.T) {
	g := program.New("root")
	fid, _ := g.AddFunction("f", g.Modules.Root(), []ir.Param{{Name: "x", Type: ids.BOOL}}, ids.UNIT, lmtype.Public)
	p0, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpParameter, Index: 0})
	pre, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpPrecondition, Message: "x must hold"})
	ret, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpReturn})
	g.AddDataEdge(p0, pre, 0, 0, ids.BOOL)
	g.AddControlEdge(pre, ret, -1)
	g.SetEntryNode(fid, p0)

	ip, _ := New(g, fid, []rtvalue.Value{rtvalue.Bool(false)})
	ip.Run()
	if ip.State() != StateContractViolation {
		t.Fatalf("expected ContractViolation, got %v (err=%v)", ip.State(), ip.Err())
	}
	v := ip.Violation()
	if v == nil || v.Kind != KindPrecondition || v.Message != "x must hold" {
		t.Fatalf("unexpected violation: %+v", v)
	}
}

func TestInterpreter_PreconditionHolds(t *testing.T) {
	g := program.New("root")
	fid, _ := g.AddFunction("f", g.Modules.Root(), []ir.Param{{Name: "x", Type: ids.BOOL}}, ids.UNIT, lmtype.Public)
	p0, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpParameter, Index: 0})
	pre, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpPrecondition, Message: "x must hold"})
	ret, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpReturn})
	g.AddDataEdge(p0, pre, 0, 0, ids.BOOL)
	g.AddControlEdge(pre, ret, -1)
	g.SetEntryNode(fid, p0)

	ip, _ := New(g, fid, []rtvalue.Value{rtvalue.Bool(true)})
	ip.Run()
	if ip.State() != StateCompleted {
		t.Fatalf("expected Completed, got %v (err=%v)", ip.State(), ip.Err())
	}
}

func TestInterpreter_AllocStoreLoad(t *testing.T) {
	g := program.New("root")
	fid, _ := g.AddFunction("f", g.Modules.Root(), []ir.Param{{Name: "x", Type: ids.I32}}, ids.I32, lmtype.Public)
	p0, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpParameter, Index: 0})
	alloc, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpAlloc, TargetType: ids.I32})
	store, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpStore})
	load, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpLoad})
	ret, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpReturn})
	ptrType := g.Types.Register(lmtype.LmType{Kind: lmtype.KindPointer, Pointee: ids.I32, Mutable: true})
	g.AddDataEdge(alloc, store, 0, 0, ptrType)
	g.AddDataEdge(p0, store, 0, 1, ids.I32)
	g.AddDataEdge(alloc, load, 0, 0, ptrType)
	g.AddDataEdge(load, ret, 0, 0, ids.I32)
	g.AddControlEdge(store, load, -1)
	g.SetEntryNode(fid, p0)

	ip, _ := New(g, fid, []rtvalue.Value{rtvalue.Int(rtvalue.KI32, 42)})
	ip.Run()
	if ip.State() != StateCompleted {
		t.Fatalf("expected Completed, got %v (err=%v)", ip.State(), ip.Err())
	}
	result, _ := ip.Result()
	if result.Int != 42 {
		t.Fatalf("expected 42, got %v", result.Int)
	}
}

func TestInterpreter_TraceRecordsNodes(t *testing.T) {
	g, fid := buildAdd(t)
	ip, _ := New(g, fid, []rtvalue.Value{rtvalue.Int(rtvalue.KI32, 2), rtvalue.Int(rtvalue.KI32, 3)}, WithTrace(true))
	ip.Run()
	if len(ip.Trace()) == 0 {
		t.Fatal("expected non-empty trace")
	}
}

func TestInterpreter_PauseResume(t *testing.T) {
	g, fid := buildAdd(t)
	ip, _ := New(g, fid, []rtvalue.Value{rtvalue.Int(rtvalue.KI32, 2), rtvalue.Int(rtvalue.KI32, 3)})
	ip.Pause()
	ip.Step()
	if ip.State() != StatePaused {
		t.Fatalf("expected Paused after first step, got %v", ip.State())
	}
	ip.Resume()
	ip.Run()
	if ip.State() != StateCompleted {
		t.Fatalf("expected Completed, got %v", ip.State())
	}
}

// buildSumLoop wires: while i < n { acc += i; i += 1 }; return acc, with
// i and acc held in interpreter memory (Alloc/Load/Store) and a single
// Loop node carrying the back edge — the §4.5.6 body-reset path, never
// exercised anywhere else in this package.
func buildSumLoop(t *testing.T) (*program.Graph, ids.FunctionID) {
	t.Helper()
	g := program.New("root")
	fid, err := g.AddFunction("sumLoop", g.Modules.Root(), []ir.Param{{Name: "n", Type: ids.I32}}, ids.I32, lmtype.Public)
	if err != nil {
		t.Fatalf("AddFunction: %v", err)
	}
	ptrI32 := g.Types.Register(lmtype.LmType{Kind: lmtype.KindPointer, Pointee: ids.I32, Mutable: true})

	n := func(op ir.Op) ids.NodeID {
		id, err := g.AddComputeNode(fid, op)
		if err != nil {
			t.Fatalf("AddComputeNode(%v): %v", op.Kind, err)
		}
		return id
	}
	data := func(src, dst ids.NodeID, srcPort, dstPort uint16, typ ids.TypeID) {
		if _, err := g.AddDataEdge(src, dst, srcPort, dstPort, typ); err != nil {
			t.Fatalf("AddDataEdge: %v", err)
		}
	}
	ctrl := func(src, dst ids.NodeID, branch int) {
		if _, err := g.AddControlEdge(src, dst, branch); err != nil {
			t.Fatalf("AddControlEdge: %v", err)
		}
	}

	p0 := n(ir.Op{Kind: ir.OpParameter, Index: 0})
	const0 := n(ir.Op{Kind: ir.OpConst, Literal: ir.Literal{Kind: ir.LitI32, Int: 0}})
	const1 := n(ir.Op{Kind: ir.OpConst, Literal: ir.Literal{Kind: ir.LitI32, Int: 1}})
	allocI := n(ir.Op{Kind: ir.OpAlloc, TargetType: ids.I32})
	allocAcc := n(ir.Op{Kind: ir.OpAlloc, TargetType: ids.I32})
	initStoreI := n(ir.Op{Kind: ir.OpStore})
	initStoreAcc := n(ir.Op{Kind: ir.OpStore})
	loadICond := n(ir.Op{Kind: ir.OpLoad})
	cmpCond := n(ir.Op{Kind: ir.OpCompare, CompareOp: ir.Lt})
	loopNode := n(ir.Op{Kind: ir.OpLoop})
	loadAccBody := n(ir.Op{Kind: ir.OpLoad})
	loadIBody := n(ir.Op{Kind: ir.OpLoad})
	addAcc := n(ir.Op{Kind: ir.OpBinaryArith, ArithOp: ir.Add})
	addI := n(ir.Op{Kind: ir.OpBinaryArith, ArithOp: ir.Add})
	storeAccBody := n(ir.Op{Kind: ir.OpStore})
	storeIBody := n(ir.Op{Kind: ir.OpStore})
	loadAccFinal := n(ir.Op{Kind: ir.OpLoad})
	ret := n(ir.Op{Kind: ir.OpReturn})

	data(allocI, initStoreI, 0, 0, ptrI32)
	data(const0, initStoreI, 0, 1, ids.I32)
	data(allocAcc, initStoreAcc, 0, 0, ptrI32)
	data(const0, initStoreAcc, 0, 1, ids.I32)
	ctrl(initStoreI, initStoreAcc, -1)
	ctrl(initStoreAcc, loadICond, -1)

	data(allocI, loadICond, 0, 0, ptrI32)
	data(loadICond, cmpCond, 0, 0, ids.I32)
	data(p0, cmpCond, 0, 1, ids.I32)
	data(cmpCond, loopNode, 0, 0, ids.BOOL)
	ctrl(cmpCond, loopNode, -1)

	ctrl(loopNode, loadAccBody, 0)
	ctrl(loopNode, loadAccFinal, 1)

	data(allocAcc, loadAccBody, 0, 0, ptrI32)
	ctrl(loadAccBody, loadIBody, -1)
	data(allocI, loadIBody, 0, 0, ptrI32)

	data(loadAccBody, addAcc, 0, 0, ids.I32)
	data(loadIBody, addAcc, 0, 1, ids.I32)
	data(allocAcc, storeAccBody, 0, 0, ptrI32)
	data(addAcc, storeAccBody, 0, 1, ids.I32)

	data(loadIBody, addI, 0, 0, ids.I32)
	data(const1, addI, 0, 1, ids.I32)
	data(allocI, storeIBody, 0, 0, ptrI32)
	data(addI, storeIBody, 0, 1, ids.I32)
	ctrl(storeIBody, loadICond, -1)

	data(allocAcc, loadAccFinal, 0, 0, ptrI32)
	data(loadAccFinal, ret, 0, 0, ids.I32)

	if err := g.SetEntryNode(fid, p0); err != nil {
		t.Fatalf("SetEntryNode: %v", err)
	}
	return g, fid
}

func TestInterpreter_Loop_AccumulatesAndResetsBody(t *testing.T) {
	tests := []struct {
		n, want int64
	}{
		{0, 0},
		{1, 0},
		{3, 0 + 1 + 2},
		{5, 0 + 1 + 2 + 3 + 4},
	}
	for _, tt := range tests {
		g, fid := buildSumLoop(t)
		ip, err := New(g, fid, []rtvalue.Value{rtvalue.Int(rtvalue.KI32, tt.n)})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		ip.Run()
		if ip.State() != StateCompleted {
			t.Fatalf("n=%d: expected Completed, got %v (err=%v)", tt.n, ip.State(), ip.Err())
		}
		result, ok := ip.Result()
		if !ok || result.Int != tt.want {
			t.Fatalf("n=%d: expected %d, got %+v (ok=%v)", tt.n, tt.want, result, ok)
		}
	}
}

func TestInterpreter_Loop_NeverEntersBodyWhenConditionFalse(t *testing.T) {
	g, fid := buildSumLoop(t)
	ip, _ := New(g, fid, []rtvalue.Value{rtvalue.Int(rtvalue.KI32, 0)}, WithTrace(true))
	ip.Run()
	if ip.State() != StateCompleted {
		t.Fatalf("expected Completed, got %v (err=%v)", ip.State(), ip.Err())
	}
	stores := 0
	for _, entry := range ip.Trace() {
		if entry.Description == ir.OpStore.String() {
			stores++
		}
	}
	// only the two pre-loop initializing stores should have run; the
	// body's storeAccBody/storeIBody never fire when the condition is
	// false on the very first check.
	if stores != 2 {
		t.Fatalf("expected 2 Store nodes to have run, got %d", stores)
	}
}

// buildAdderClosure wires a closure "adder" over a captured base value,
// built by an outer function via MakeClosure and invoked through
// IndirectCall — §4.5's closure op pair, never exercised anywhere else
// in this package.
func buildAdderClosure(t *testing.T) (*program.Graph, ids.FunctionID) {
	t.Helper()
	g := program.New("root")

	caller, err := g.AddFunction("makeAndCall", g.Modules.Root(), []ir.Param{
		{Name: "base", Type: ids.I32}, {Name: "x", Type: ids.I32},
	}, ids.I32, lmtype.Public)
	if err != nil {
		t.Fatalf("AddFunction(caller): %v", err)
	}

	adder, err := g.AddClosure("adder", g.Modules.Root(), []ir.Param{{Name: "x", Type: ids.I32}}, ids.I32, lmtype.Public,
		caller, []ir.Capture{{Name: "base", CapturedType: ids.I32, Mode: ir.ByValue}})
	if err != nil {
		t.Fatalf("AddClosure: %v", err)
	}
	aX, _ := g.AddComputeNode(adder, ir.Op{Kind: ir.OpParameter, Index: 0})
	aBase, _ := g.AddComputeNode(adder, ir.Op{Kind: ir.OpCaptureAccess, Index: 0})
	aAdd, _ := g.AddComputeNode(adder, ir.Op{Kind: ir.OpBinaryArith, ArithOp: ir.Add})
	aRet, _ := g.AddComputeNode(adder, ir.Op{Kind: ir.OpReturn})
	g.AddDataEdge(aX, aAdd, 0, 0, ids.I32)
	g.AddDataEdge(aBase, aAdd, 0, 1, ids.I32)
	g.AddDataEdge(aAdd, aRet, 0, 0, ids.I32)
	if err := g.SetEntryNode(adder, aX); err != nil {
		t.Fatalf("SetEntryNode(adder): %v", err)
	}

	funcType := g.Types.Register(lmtype.LmType{Kind: lmtype.KindFunction, Params: []ids.TypeID{ids.I32}, ReturnType: ids.I32})

	cBase, _ := g.AddComputeNode(caller, ir.Op{Kind: ir.OpParameter, Index: 0})
	cX, _ := g.AddComputeNode(caller, ir.Op{Kind: ir.OpParameter, Index: 1})
	makeClosure, _ := g.AddComputeNode(caller, ir.Op{Kind: ir.OpMakeClosure, ClosureFunction: adder})
	indirectCall, _ := g.AddComputeNode(caller, ir.Op{Kind: ir.OpIndirectCall})
	cRet, _ := g.AddComputeNode(caller, ir.Op{Kind: ir.OpReturn})
	g.AddDataEdge(cBase, makeClosure, 0, 0, ids.I32)
	g.AddDataEdge(makeClosure, indirectCall, 0, 0, funcType)
	g.AddDataEdge(cX, indirectCall, 0, 1, ids.I32)
	g.AddDataEdge(indirectCall, cRet, 0, 0, ids.I32)
	if err := g.SetEntryNode(caller, cBase); err != nil {
		t.Fatalf("SetEntryNode(caller): %v", err)
	}

	return g, caller
}

func TestInterpreter_MakeClosureAndIndirectCall(t *testing.T) {
	g, caller := buildAdderClosure(t)
	ip, err := New(g, caller, []rtvalue.Value{rtvalue.Int(rtvalue.KI32, 10), rtvalue.Int(rtvalue.KI32, 7)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ip.Run()
	if ip.State() != StateCompleted {
		t.Fatalf("expected Completed, got %v (err=%v)", ip.State(), ip.Err())
	}
	result, ok := ip.Result()
	if !ok || result.Int != 17 {
		t.Fatalf("expected 17, got %+v (ok=%v)", result, ok)
	}
}

// buildArrayGet wires Return(ArrayGet(ArrayCreate(a,b,c), idx)).
func buildArrayGet(t *testing.T) (*program.Graph, ids.FunctionID) {
	t.Helper()
	g := program.New("root")
	fid, _ := g.AddFunction("at", g.Modules.Root(), []ir.Param{{Name: "idx", Type: ids.I32}}, ids.I32, lmtype.Public)
	arrType := g.Types.Register(lmtype.LmType{Kind: lmtype.KindArray, Element: ids.I32, Length: 3})

	idx, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpParameter, Index: 0})
	e0, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpConst, Literal: ir.Literal{Kind: ir.LitI32, Int: 10}})
	e1, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpConst, Literal: ir.Literal{Kind: ir.LitI32, Int: 20}})
	e2, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpConst, Literal: ir.Literal{Kind: ir.LitI32, Int: 30}})
	arr, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpArrayCreate, ArrayLength: 3})
	get, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpArrayGet})
	ret, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpReturn})

	g.AddDataEdge(e0, arr, 0, 0, ids.I32)
	g.AddDataEdge(e1, arr, 0, 1, ids.I32)
	g.AddDataEdge(e2, arr, 0, 2, ids.I32)
	g.AddDataEdge(arr, get, 0, 0, arrType)
	g.AddDataEdge(idx, get, 0, 1, ids.I32)
	g.AddDataEdge(get, ret, 0, 0, ids.I32)
	g.SetEntryNode(fid, idx)
	return g, fid
}

func TestInterpreter_ArrayGet_OutOfBounds(t *testing.T) {
	g, fid := buildArrayGet(t)
	ip, _ := New(g, fid, []rtvalue.Value{rtvalue.Int(rtvalue.KI32, 5)})
	ip.Run()
	if ip.State() != StateError {
		t.Fatalf("expected Error, got %v", ip.State())
	}
	oob, ok := ip.Err().(*OutOfBoundsAccessError)
	if !ok {
		t.Fatalf("expected *OutOfBoundsAccessError, got %T: %v", ip.Err(), ip.Err())
	}
	if oob.Index != 5 || oob.Size != 3 {
		t.Fatalf("expected index=5 size=3, got %+v", oob)
	}
}

func TestInterpreter_ArrayGet_InBounds(t *testing.T) {
	g, fid := buildArrayGet(t)
	ip, _ := New(g, fid, []rtvalue.Value{rtvalue.Int(rtvalue.KI32, 1)})
	ip.Run()
	if ip.State() != StateCompleted {
		t.Fatalf("expected Completed, got %v (err=%v)", ip.State(), ip.Err())
	}
	result, _ := ip.Result()
	if result.Int != 20 {
		t.Fatalf("expected 20, got %v", result.Int)
	}
}

func TestInterpreter_ArraySet_OutOfBounds(t *testing.T) {
	g := program.New("root")
	fid, _ := g.AddFunction("setAt", g.Modules.Root(), []ir.Param{{Name: "idx", Type: ids.I32}, {Name: "val", Type: ids.I32}}, ids.I32, lmtype.Public)
	arrType := g.Types.Register(lmtype.LmType{Kind: lmtype.KindArray, Element: ids.I32, Length: 2})

	idx, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpParameter, Index: 0})
	val, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpParameter, Index: 1})
	e0, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpConst, Literal: ir.Literal{Kind: ir.LitI32, Int: 0}})
	e1, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpConst, Literal: ir.Literal{Kind: ir.LitI32, Int: 0}})
	arr, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpArrayCreate, ArrayLength: 2})
	set, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpArraySet})
	get, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpArrayGet})
	ret, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpReturn})

	g.AddDataEdge(e0, arr, 0, 0, ids.I32)
	g.AddDataEdge(e1, arr, 0, 1, ids.I32)
	g.AddDataEdge(arr, set, 0, 0, arrType)
	g.AddDataEdge(idx, set, 0, 1, ids.I32)
	g.AddDataEdge(val, set, 0, 2, ids.I32)
	g.AddDataEdge(set, get, 0, 0, arrType)
	g.AddDataEdge(idx, get, 0, 1, ids.I32)
	g.AddDataEdge(get, ret, 0, 0, ids.I32)
	g.SetEntryNode(fid, idx)

	ip, _ := New(g, fid, []rtvalue.Value{rtvalue.Int(rtvalue.KI32, 7), rtvalue.Int(rtvalue.KI32, 99)})
	ip.Run()
	if ip.State() != StateError {
		t.Fatalf("expected Error, got %v", ip.State())
	}
	oob, ok := ip.Err().(*OutOfBoundsAccessError)
	if !ok {
		t.Fatalf("expected *OutOfBoundsAccessError, got %T: %v", ip.Err(), ip.Err())
	}
	if oob.Index != 7 || oob.Size != 2 {
		t.Fatalf("expected index=7 size=2, got %+v", oob)
	}
}

// buildStructSet wires Return(StructGet(StructSet(StructCreate(a,b), newVal))),
// with the field index carried in the StructSet and StructGet ops.
func buildStructSet(t *testing.T) (*program.Graph, ids.FunctionID) {
	t.Helper()
	g := program.New("root")
	fid, _ := g.AddFunction("setField", g.Modules.Root(), []ir.Param{
		{Name: "fieldIdx", Type: ids.I32}, {Name: "newVal", Type: ids.I32},
	}, ids.I32, lmtype.Public)
	structType, err := g.Types.RegisterNamed("Pair", lmtype.LmType{Kind: lmtype.KindStruct, StructName: "Pair", Fields: []lmtype.StructField{
		{Name: "a", Type: ids.I32}, {Name: "b", Type: ids.I32},
	}})
	if err != nil {
		t.Fatalf("RegisterNamed: %v", err)
	}

	fieldIdx, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpParameter, Index: 0})
	newVal, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpParameter, Index: 1})
	a, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpConst, Literal: ir.Literal{Kind: ir.LitI32, Int: 1}})
	b, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpConst, Literal: ir.Literal{Kind: ir.LitI32, Int: 2}})
	create, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpStructCreate, TypeID: structType})
	// FieldIndex is baked into the op rather than read from fieldIdx's
	// runtime value — StructGet/StructSet address fields statically, so
	// the OutOfBoundsAccessError case below is driven by FieldIndex
	// itself pointing outside the struct's field list.
	set, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpStructSet, FieldIndex: 9})
	get, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpStructGet, FieldIndex: 9})
	ret, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpReturn})

	g.AddDataEdge(a, create, 0, 0, ids.I32)
	g.AddDataEdge(b, create, 0, 1, ids.I32)
	g.AddDataEdge(create, set, 0, 0, structType)
	g.AddDataEdge(newVal, set, 0, 1, ids.I32)
	g.AddDataEdge(set, get, 0, 0, structType)
	g.AddDataEdge(get, ret, 0, 0, ids.I32)
	g.SetEntryNode(fid, fieldIdx)
	return g, fid
}

func TestInterpreter_StructSetGet_OutOfBounds(t *testing.T) {
	g, fid := buildStructSet(t)
	ip, _ := New(g, fid, []rtvalue.Value{rtvalue.Int(rtvalue.KI32, 9), rtvalue.Int(rtvalue.KI32, 42)})
	ip.Run()
	if ip.State() != StateError {
		t.Fatalf("expected Error, got %v", ip.State())
	}
	if _, ok := ip.Err().(*OutOfBoundsAccessError); !ok {
		t.Fatalf("expected *OutOfBoundsAccessError, got %T: %v", ip.Err(), ip.Err())
	}
}

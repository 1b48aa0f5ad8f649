package httpapi

import (
	"encoding/json"
	"testing"

	"github.com/lmlang/graphlang/ids"
	"github.com/lmlang/graphlang/ir"
	"github.com/lmlang/graphlang/lmtype"
	"github.com/lmlang/graphlang/rtvalue"
)

// buildAddFunction wires a two-parameter "a + b" function directly on
// the program's live graph, bypassing propose_edit — the same shortcut
// interp's own tests take when the function under test is simulate, not
// the edit pipeline.
func buildAddFunction(t *testing.T, s *Server, id string) ids.FunctionID {
	t.Helper()
	svc, ok := s.lookup(id)
	if !ok {
		t.Fatalf("program %s not registered", id)
	}
	g := svc.Graph()
	fid, err := g.AddFunction("add", g.Modules.Root(), []ir.Param{
		{Name: "a", Type: ids.I32},
		{Name: "b", Type: ids.I32},
	}, ids.I32, lmtype.Public)
	if err != nil {
		t.Fatalf("add function: %v", err)
	}
	p0, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpParameter, Index: 0})
	p1, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpParameter, Index: 1})
	sum, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpBinaryArith, ArithOp: ir.Add})
	ret, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpReturn})
	g.AddDataEdge(p0, sum, 0, 0, ids.I32)
	g.AddDataEdge(p1, sum, 0, 1, ids.I32)
	g.AddDataEdge(sum, ret, 0, 0, ids.I32)
	g.SetEntryNode(fid, p0)
	return fid
}

func TestServer_SimulateAddsTwoNumbers(t *testing.T) {
	s := newTestServer(t)
	id := createTestProgram(t, s)
	fid := buildAddFunction(t, s, id)

	rec := makeRequest(t, s, "POST", "/programs/"+id+"/simulate", simulateRequest{
		FunctionID: uint32(fid),
		Inputs:     []json.RawMessage{json.RawMessage("2"), json.RawMessage("3")},
	})
	if rec.Code != 200 {
		t.Fatalf("simulate: want 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp simulateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode simulate response: %v", err)
	}
	if resp.State != "Completed" {
		t.Fatalf("want Completed, got %s (error=%s)", resp.State, resp.Error)
	}
	if resp.Result == nil || resp.Result.Int != 5 {
		t.Fatalf("want result 5, got %+v", resp.Result)
	}
}

func TestServer_SimulateArityMismatchIsBadRequest(t *testing.T) {
	s := newTestServer(t)
	id := createTestProgram(t, s)
	fid := buildAddFunction(t, s, id)

	rec := makeRequest(t, s, "POST", "/programs/"+id+"/simulate", simulateRequest{
		FunctionID: uint32(fid),
		Inputs:     []json.RawMessage{json.RawMessage("2")},
	})
	if rec.Code != 400 {
		t.Fatalf("want 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestServer_SimulateStringInputIsCoercedNumerically(t *testing.T) {
	s := newTestServer(t)
	id := createTestProgram(t, s)
	fid := buildAddFunction(t, s, id)

	rec := makeRequest(t, s, "POST", "/programs/"+id+"/simulate", simulateRequest{
		FunctionID: uint32(fid),
		Inputs:     []json.RawMessage{json.RawMessage(`"4"`), json.RawMessage("1")},
	})
	if rec.Code != 200 {
		t.Fatalf("simulate: want 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp simulateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode simulate response: %v", err)
	}
	if resp.Result == nil || resp.Result.Int != 5 {
		t.Fatalf("want result 5, got %+v", resp.Result)
	}
}

func TestServer_CoerceJSONValueRejectsObjects(t *testing.T) {
	_, err := coerceDecoded(nil, ids.I32, map[string]interface{}{"x": 1})
	if err == nil {
		t.Fatalf("want an error coercing an object input")
	}
}

func TestServer_CoerceJSONValueNullBecomesUnit(t *testing.T) {
	v, err := coerceDecoded(nil, ids.UNIT, nil)
	if err != nil {
		t.Fatalf("coerce null: %v", err)
	}
	if v.Kind != rtvalue.KUnit {
		t.Fatalf("want Unit, got %v", v.Kind)
	}
}

package codegen

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lmlang/graphlang/ids"
	"github.com/lmlang/graphlang/ir"
	"github.com/lmlang/graphlang/lmtype"
	"github.com/lmlang/graphlang/program"
)

func TestReferenceEmitter_CompileWritesLoweredProgram(t *testing.T) {
	g, _ := buildAddFunction(t)
	dir := t.TempDir()

	result, err := NewReferenceEmitter().Compile(context.Background(), g, CompileOptions{
		OutputDir: dir,
		OptLevel:  O1,
	})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if result.BinaryPath == "" {
		t.Fatal("expected a non-empty BinaryPath")
	}
	if result.TargetTriple == "" {
		t.Error("expected a non-empty TargetTriple")
	}
	if result.BinarySize <= 0 {
		t.Error("expected a positive BinarySize")
	}
	if result.CompilationTimeMs < 0 {
		t.Error("expected a non-negative CompilationTimeMs")
	}

	data, err := os.ReadFile(result.BinaryPath)
	if err != nil {
		t.Fatalf("failed to read emitted program: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, "func add(") {
		t.Errorf("expected emitted text to declare func add, got:\n%s", text)
	}
	if !strings.Contains(text, "checked.add") {
		t.Errorf("expected emitted text to use checked arithmetic, got:\n%s", text)
	}
	if !strings.Contains(text, "ret ") {
		t.Errorf("expected emitted text to contain a return instruction, got:\n%s", text)
	}
}

func TestReferenceEmitter_EmitsDivisionGuard(t *testing.T) {
	g := program.New("root")
	fid, err := g.AddFunction("div", g.Modules.Root(), []ir.Param{{Name: "a", Type: ids.I32}, {Name: "b", Type: ids.I32}}, ids.I32, lmtype.Public)
	if err != nil {
		t.Fatalf("AddFunction: %v", err)
	}
	n1, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpParameter, Index: 0})
	n2, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpParameter, Index: 1})
	n3, err := g.AddComputeNode(fid, ir.Op{Kind: ir.OpBinaryArith, ArithOp: ir.Div})
	if err != nil {
		t.Fatalf("AddComputeNode: %v", err)
	}
	n4, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpReturn})
	if _, err := g.AddDataEdge(n1, n3, 0, 0, ids.I32); err != nil {
		t.Fatalf("AddDataEdge: %v", err)
	}
	if _, err := g.AddDataEdge(n2, n3, 0, 1, ids.I32); err != nil {
		t.Fatalf("AddDataEdge: %v", err)
	}
	if _, err := g.AddDataEdge(n3, n4, 0, 0, ids.I32); err != nil {
		t.Fatalf("AddDataEdge: %v", err)
	}
	if err := g.SetEntryNode(fid, n1); err != nil {
		t.Fatalf("SetEntryNode: %v", err)
	}

	dir := t.TempDir()
	result, err := NewReferenceEmitter().Compile(context.Background(), g, CompileOptions{OutputDir: dir, OptLevel: O0})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	data, err := os.ReadFile(result.BinaryPath)
	if err != nil {
		t.Fatalf("failed to read emitted program: %v", err)
	}
	if !strings.Contains(string(data), "guard.divzero") {
		t.Errorf("expected a divide-by-zero guard ahead of checked.div, got:\n%s", string(data))
	}
}

func TestReferenceEmitter_RejectsIllTypedProgram(t *testing.T) {
	g := program.New("root")
	fid, err := g.AddFunction("bad", g.Modules.Root(), []ir.Param{{Name: "a", Type: ids.I32}}, ids.BOOL, lmtype.Public)
	if err != nil {
		t.Fatalf("AddFunction: %v", err)
	}
	n1, _ := g.AddComputeNode(fid, ir.Op{Kind: ir.OpParameter, Index: 0})
	n2, err := g.AddComputeNode(fid, ir.Op{Kind: ir.OpReturn})
	if err != nil {
		t.Fatalf("AddComputeNode: %v", err)
	}
	// Return expects BOOL at port 0 but n1 produces I32 — a type mismatch
	// ValidateGraph must catch before any lowering is attempted.
	if _, err := g.AddDataEdge(n1, n2, 0, 0, ids.I32); err != nil {
		t.Fatalf("AddDataEdge: %v", err)
	}
	if err := g.SetEntryNode(fid, n1); err != nil {
		t.Fatalf("SetEntryNode: %v", err)
	}

	dir := t.TempDir()
	_, err = NewReferenceEmitter().Compile(context.Background(), g, CompileOptions{OutputDir: dir, OptLevel: O0})
	if err == nil {
		t.Fatal("expected Compile to fail on an ill-typed program")
	}
	var tcErr *TypeCheckFailedError
	if !asTypeCheckFailed(err, &tcErr) {
		t.Fatalf("expected *TypeCheckFailedError, got %T: %v", err, err)
	}
	if len(tcErr.Errors) == 0 {
		t.Error("expected at least one underlying type error")
	}
}

func asTypeCheckFailed(err error, target **TypeCheckFailedError) bool {
	if e, ok := err.(*TypeCheckFailedError); ok {
		*target = e
		return true
	}
	return false
}

func TestReferenceEmitter_RejectsMissingOutputDir(t *testing.T) {
	g, _ := buildAddFunction(t)
	_, err := NewReferenceEmitter().Compile(context.Background(), g, CompileOptions{OptLevel: O0})
	if err != ErrInvalidOptions {
		t.Errorf("expected ErrInvalidOptions, got %v", err)
	}
}

func TestReferenceEmitter_RejectsUnknownEntryFunction(t *testing.T) {
	g, _ := buildAddFunction(t)
	dir := t.TempDir()
	_, err := NewReferenceEmitter().Compile(context.Background(), g, CompileOptions{
		OutputDir:     dir,
		OptLevel:      O0,
		EntryFunction: "does-not-exist",
	})
	if err == nil {
		t.Fatal("expected an error for an unknown entry function")
	}
}

func TestReferenceEmitter_DeterministicAcrossCompiles(t *testing.T) {
	g, _ := buildAddFunction(t)
	dir1, dir2 := t.TempDir(), t.TempDir()

	r1, err := NewReferenceEmitter().Compile(context.Background(), g, CompileOptions{OutputDir: dir1, OptLevel: O2, TargetTriple: "x86_64-unknown-linux-gnu"})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	r2, err := NewReferenceEmitter().Compile(context.Background(), g, CompileOptions{OutputDir: dir2, OptLevel: O2, TargetTriple: "x86_64-unknown-linux-gnu"})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	data1, _ := os.ReadFile(r1.BinaryPath)
	data2, _ := os.ReadFile(r2.BinaryPath)
	if string(data1) != string(data2) {
		t.Errorf("expected identical output across repeated compiles of the same program")
	}
	if filepath.Base(r1.BinaryPath) != filepath.Base(r2.BinaryPath) {
		t.Errorf("expected the same output filename across compiles")
	}
}

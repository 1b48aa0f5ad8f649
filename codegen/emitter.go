package codegen

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/lmlang/graphlang/ids"
	"github.com/lmlang/graphlang/ir"
	"github.com/lmlang/graphlang/lmtype"
	"github.com/lmlang/graphlang/program"
	"github.com/lmlang/graphlang/typecheck"
)

// ReferenceEmitter lowers a validated ProgramGraph to a small textual
// three-address form: one label per function, one instruction per
// compute node in topological order, operands referenced as %<node id>.
// It honors the same checked-arithmetic and bounds/div-zero guard
// semantics the interpreter evaluates at runtime (see interp/arith.go)
// by emitting an explicit guard instruction ahead of the operation it
// protects, so the reference backend and the interpreter are expected
// to agree on every well-typed program.
type ReferenceEmitter struct{}

// NewReferenceEmitter returns a ready-to-use ReferenceEmitter. It holds
// no state between Compile calls.
func NewReferenceEmitter() *ReferenceEmitter { return &ReferenceEmitter{} }

var _ Codegen = (*ReferenceEmitter)(nil)

// Compile implements Codegen.
func (e *ReferenceEmitter) Compile(ctx context.Context, g *program.Graph, opts CompileOptions) (CompileResult, error) {
	start := time.Now()

	if opts.OutputDir == "" || !opts.OptLevel.valid() {
		return CompileResult{}, ErrInvalidOptions
	}
	if opts.EntryFunction != "" {
		if _, ok := lookupFunctionByName(g, opts.EntryFunction); !ok {
			return CompileResult{}, fmt.Errorf("%w: entry function %q not found", ErrInvalidOptions, opts.EntryFunction)
		}
	}

	if errs := typecheck.ValidateGraph(g); len(errs) > 0 {
		return CompileResult{}, &TypeCheckFailedError{Errors: errs}
	}

	fids := make([]ids.FunctionID, 0, len(g.Functions()))
	for fid := range g.Functions() {
		fids = append(fids, fid)
	}
	sort.Slice(fids, func(i, j int) bool { return fids[i] < fids[j] })

	var out strings.Builder
	triple := opts.TargetTriple
	if triple == "" {
		triple = defaultTargetTriple()
	}
	fmt.Fprintf(&out, "; target: %s\n; opt-level: %s\n; debug-symbols: %t\n", triple, opts.OptLevel, opts.DebugSymbols)
	if opts.EntryFunction != "" {
		fmt.Fprintf(&out, "; entry: %s\n", opts.EntryFunction)
	}

	for _, fid := range fids {
		fn, _ := g.GetFunction(fid)
		order, err := topoSort(g, fid)
		if err != nil {
			return CompileResult{}, err
		}
		fmt.Fprintf(&out, "\nfunc %s(%s) -> %s:\n", fn.Name, paramList(g, fn), typeMnemonic(g, fn.ReturnType))
		for _, nid := range order {
			select {
			case <-ctx.Done():
				return CompileResult{}, ctx.Err()
			default:
			}
			node, _ := g.GetComputeNode(nid)
			for _, line := range lowerNode(g, nid, node) {
				fmt.Fprintf(&out, "  %s\n", line)
			}
		}
	}

	data := []byte(out.String())
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return CompileResult{}, fmt.Errorf("codegen: failed to create output directory: %w", err)
	}
	binaryPath := filepath.Join(opts.OutputDir, "program.lmasm")
	if err := os.WriteFile(binaryPath, data, 0o644); err != nil {
		return CompileResult{}, fmt.Errorf("codegen: failed to write output: %w", err)
	}

	return CompileResult{
		BinaryPath:        binaryPath,
		TargetTriple:      triple,
		BinarySize:        int64(len(data)),
		CompilationTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

func lookupFunctionByName(g *program.Graph, name string) (ids.FunctionID, bool) {
	for fid, fn := range g.Functions() {
		if fn.Name == name {
			return fid, true
		}
	}
	return 0, false
}

func defaultTargetTriple() string {
	arch := runtime.GOARCH
	switch arch {
	case "amd64":
		arch = "x86_64"
	case "arm64":
		arch = "aarch64"
	}
	osName := runtime.GOOS
	switch osName {
	case "darwin":
		return arch + "-apple-darwin"
	case "windows":
		return arch + "-pc-windows-msvc"
	default:
		return arch + "-unknown-linux-gnu"
	}
}

func paramList(g *program.Graph, fn *ir.FunctionDef) string {
	parts := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		parts[i] = fmt.Sprintf("%s: %s", p.Name, typeMnemonic(g, p.Type))
	}
	return strings.Join(parts, ", ")
}

// typeMnemonic renders a short type name for a TypeID, falling back to
// the registry's opaque handle string for composite or unregistered
// types.
func typeMnemonic(g *program.Graph, t ids.TypeID) string {
	switch t {
	case ids.BOOL:
		return "bool"
	case ids.I8:
		return "i8"
	case ids.I16:
		return "i16"
	case ids.I32:
		return "i32"
	case ids.I64:
		return "i64"
	case ids.F32:
		return "f32"
	case ids.F64:
		return "f64"
	case ids.UNIT:
		return "unit"
	}
	lt, ok := g.Types.Lookup(t)
	if !ok {
		return t.String()
	}
	switch lt.Kind {
	case lmtype.KindStruct:
		return "struct<" + lt.StructName + ">"
	case lmtype.KindEnum:
		return "enum<" + lt.EnumName + ">"
	case lmtype.KindPointer:
		return "ptr<" + typeMnemonic(g, lt.Pointee) + ">"
	case lmtype.KindArray:
		return fmt.Sprintf("array<%s,%d>", typeMnemonic(g, lt.Element), lt.Length)
	case lmtype.KindFunction:
		return "fn" + t.String()
	default:
		return t.String()
	}
}

// operand renders the textual operand feeding data port `port` of nid,
// looked up among its incoming data edges. Returns "<undef>" if the
// port has no producer, which should never happen in a graph that
// passed ValidateGraph.
func operand(g *program.Graph, nid ids.NodeID, port uint16) string {
	for _, e := range g.IncomingDataEdges(nid) {
		if e.TargetPort == port {
			return fmt.Sprintf("%%%d", uint32(e.Source))
		}
	}
	return "<undef>"
}

func ref(nid ids.NodeID) string { return fmt.Sprintf("%%%d", uint32(nid)) }

// lowerNode renders the compute node at nid as zero or more text lines:
// any guard instructions the op semantics require, then the operation
// itself.
func lowerNode(g *program.Graph, nid ids.NodeID, node *ir.ComputeNode) []string {
	op := node.Op
	dst := ref(nid)

	switch op.Kind {
	case ir.OpConst:
		return []string{fmt.Sprintf("%s = const.%s %s", dst, strings.ToLower(op.Literal.Kind.String()), literalText(op.Literal))}
	case ir.OpParameter:
		return []string{fmt.Sprintf("%s = param %d", dst, op.Index)}
	case ir.OpCaptureAccess:
		return []string{fmt.Sprintf("%s = capture %d", dst, op.Index)}
	case ir.OpBinaryArith:
		return lowerBinaryArith(g, nid, op, dst)
	case ir.OpUnaryArith:
		return lowerUnaryArith(g, nid, op, dst)
	case ir.OpCompare:
		return []string{fmt.Sprintf("%s = cmp.%s %s, %s", dst, strings.ToLower(op.CompareOp.String()), operand(g, nid, 0), operand(g, nid, 1))}
	case ir.OpBinaryLogic:
		return []string{fmt.Sprintf("%s = %s %s, %s", dst, strings.ToLower(op.LogicOp.String()), operand(g, nid, 0), operand(g, nid, 1))}
	case ir.OpNot:
		return []string{fmt.Sprintf("%s = not %s", dst, operand(g, nid, 0))}
	case ir.OpShift:
		guard := fmt.Sprintf("guard.shift %s, bitwidth(%s)", operand(g, nid, 1), operand(g, nid, 0))
		return []string{guard, fmt.Sprintf("%s = %s %s, %s", dst, strings.ToLower(op.ShiftOp.String()), operand(g, nid, 0), operand(g, nid, 1))}
	case ir.OpAlloc:
		return []string{fmt.Sprintf("%s = alloc %s", dst, typeMnemonic(g, op.TargetType))}
	case ir.OpLoad:
		return []string{fmt.Sprintf("%s = load %s", dst, operand(g, nid, 0))}
	case ir.OpStore:
		return []string{fmt.Sprintf("store %s, %s", operand(g, nid, 0), operand(g, nid, 1))}
	case ir.OpGetElementPtr:
		return []string{fmt.Sprintf("%s = gep %s", dst, operand(g, nid, 0))}
	case ir.OpCall:
		return []string{fmt.Sprintf("%s = call %s(%s)", dst, funcRefName(g, op.Target), callArgs(g, nid))}
	case ir.OpIndirectCall:
		return []string{fmt.Sprintf("%s = icall %s(%s)", dst, operand(g, nid, 0), callArgsFrom(g, nid, 1))}
	case ir.OpMakeClosure:
		return []string{fmt.Sprintf("%s = make_closure %s", dst, funcRefName(g, op.ClosureFunction))}
	case ir.OpReturn:
		return []string{fmt.Sprintf("ret %s", operand(g, nid, 0))}
	case ir.OpBranch:
		return []string{fmt.Sprintf("br %s, %s", operand(g, nid, 0), targetLabels(g, nid))}
	case ir.OpIfElse:
		return []string{fmt.Sprintf("if %s, %s", operand(g, nid, 0), targetLabels(g, nid))}
	case ir.OpLoop:
		return []string{fmt.Sprintf("loop %s, %s", operand(g, nid, 0), targetLabels(g, nid))}
	case ir.OpMatch:
		return []string{fmt.Sprintf("match %s, %s", operand(g, nid, 0), targetLabels(g, nid))}
	case ir.OpJump:
		return []string{fmt.Sprintf("jmp %s", targetLabels(g, nid))}
	case ir.OpPhi:
		return []string{fmt.Sprintf("%s = phi %s", dst, phiInputs(g, nid))}
	case ir.OpPrint:
		return []string{fmt.Sprintf("print %s", operand(g, nid, 0))}
	case ir.OpReadLine:
		return []string{fmt.Sprintf("%s = readline", dst)}
	case ir.OpFileOpen:
		return []string{fmt.Sprintf("%s = fopen %s", dst, operand(g, nid, 0))}
	case ir.OpFileRead:
		return []string{fmt.Sprintf("%s = fread %s", dst, operand(g, nid, 0))}
	case ir.OpFileWrite:
		return []string{fmt.Sprintf("fwrite %s, %s", operand(g, nid, 0), operand(g, nid, 1))}
	case ir.OpFileClose:
		return []string{fmt.Sprintf("fclose %s", operand(g, nid, 0))}
	case ir.OpPrecondition:
		return []string{fmt.Sprintf("assert.pre %s, %q", operand(g, nid, 0), op.Message)}
	case ir.OpPostcondition:
		return []string{fmt.Sprintf("assert.post %s, %q", operand(g, nid, 0), op.Message)}
	case ir.OpInvariant:
		return []string{fmt.Sprintf("assert.inv %s, %q", operand(g, nid, 0), op.Message)}
	case ir.OpStructCreate:
		return []string{fmt.Sprintf("%s = struct_create %s(%s)", dst, typeMnemonic(g, op.TypeID), callArgs(g, nid))}
	case ir.OpStructGet:
		return []string{fmt.Sprintf("%s = struct_get %s, %d", dst, operand(g, nid, 0), op.FieldIndex)}
	case ir.OpStructSet:
		return []string{fmt.Sprintf("%s = struct_set %s, %d, %s", dst, operand(g, nid, 0), op.FieldIndex, operand(g, nid, 1))}
	case ir.OpArrayCreate:
		return []string{fmt.Sprintf("%s = array_create %d(%s)", dst, op.ArrayLength, callArgs(g, nid))}
	case ir.OpArrayGet:
		guard := fmt.Sprintf("guard.bounds %s, %s", operand(g, nid, 1), operand(g, nid, 0))
		return []string{guard, fmt.Sprintf("%s = array_get %s, %s", dst, operand(g, nid, 0), operand(g, nid, 1))}
	case ir.OpArraySet:
		guard := fmt.Sprintf("guard.bounds %s, %s", operand(g, nid, 1), operand(g, nid, 0))
		return []string{guard, fmt.Sprintf("array_set %s, %s, %s", operand(g, nid, 0), operand(g, nid, 1), operand(g, nid, 2))}
	case ir.OpCast:
		return []string{fmt.Sprintf("%s = cast.%s %s", dst, typeMnemonic(g, op.CastTarget), operand(g, nid, 0))}
	case ir.OpEnumCreate:
		return []string{fmt.Sprintf("%s = enum_create %s, %d, %s", dst, typeMnemonic(g, op.TypeID), op.VariantIndex, operand(g, nid, 0))}
	case ir.OpEnumDiscriminant:
		return []string{fmt.Sprintf("%s = enum_discriminant %s", dst, operand(g, nid, 0))}
	case ir.OpEnumPayload:
		return []string{fmt.Sprintf("%s = enum_payload %s, %d", dst, operand(g, nid, 0), op.VariantIndex)}
	default:
		return []string{fmt.Sprintf("; unhandled op %s at %s", op.Kind, dst)}
	}
}

// lowerBinaryArith emits the div-by-zero/overflow guards §4.5.5 requires
// ahead of the checked arithmetic operation itself, mirroring
// interp.evalBinaryArith's guard order (division first, then range
// check on the result).
func lowerBinaryArith(g *program.Graph, nid ids.NodeID, op ir.Op, dst string) []string {
	a, b := operand(g, nid, 0), operand(g, nid, 1)
	var lines []string
	if op.ArithOp == ir.Div || op.ArithOp == ir.Rem {
		lines = append(lines, fmt.Sprintf("guard.divzero %s", b))
	}
	lines = append(lines, fmt.Sprintf("%s = checked.%s %s, %s", dst, strings.ToLower(op.ArithOp.String()), a, b))
	return lines
}

func lowerUnaryArith(g *program.Graph, nid ids.NodeID, op ir.Op, dst string) []string {
	return []string{fmt.Sprintf("%s = checked.%s %s", dst, strings.ToLower(op.UnaryOp.String()), operand(g, nid, 0))}
}

func literalText(lit ir.Literal) string {
	switch lit.Kind {
	case ir.LitBool:
		return fmt.Sprintf("%t", lit.Bool)
	case ir.LitF32, ir.LitF64:
		return fmt.Sprintf("%v", lit.Float)
	default:
		return fmt.Sprintf("%d", lit.Int)
	}
}

func funcRefName(g *program.Graph, fid ids.FunctionID) string {
	if fn, ok := g.GetFunction(fid); ok {
		return fn.Name
	}
	return fid.String()
}

func callArgs(g *program.Graph, nid ids.NodeID) string {
	return callArgsFrom(g, nid, 0)
}

func callArgsFrom(g *program.Graph, nid ids.NodeID, startPort uint16) string {
	edges := g.IncomingDataEdges(nid)
	parts := make([]string, 0, len(edges))
	for _, e := range edges {
		if e.TargetPort >= startPort {
			parts = append(parts, fmt.Sprintf("%%%d", uint32(e.Source)))
		}
	}
	return strings.Join(parts, ", ")
}

func phiInputs(g *program.Graph, nid ids.NodeID) string {
	edges := g.IncomingDataEdges(nid)
	parts := make([]string, len(edges))
	for i, e := range edges {
		parts[i] = fmt.Sprintf("%%%d", uint32(e.Source))
	}
	return strings.Join(parts, ", ")
}

func targetLabels(g *program.Graph, nid ids.NodeID) string {
	edges := g.OutgoingControlEdges(nid)
	parts := make([]string, len(edges))
	for i, e := range edges {
		parts[i] = ref(e.Target)
	}
	return strings.Join(parts, ", ")
}

// Package codegen implements the external code-generation contract: a
// Codegen takes a validated program and CompileOptions and produces a
// CompileResult, or a structured TypeCheckFailedError if the program is
// not well-typed. ReferenceEmitter is a concrete, testable
// implementation that lowers each function to a small textual
// three-address form instead of a real native backend, so the contract
// can be exercised end to end without vendoring a compiler toolchain.
package codegen

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lmlang/graphlang/program"
)

// OptLevel mirrors the four LLVM-style optimization tiers named in the
// compile contract. ReferenceEmitter does not itself optimize — it
// records the requested level in the emitted program header so a real
// backend swapped in later has somewhere to read it from.
type OptLevel int

const (
	O0 OptLevel = iota
	O1
	O2
	O3
)

func (o OptLevel) String() string {
	switch o {
	case O0:
		return "O0"
	case O1:
		return "O1"
	case O2:
		return "O2"
	case O3:
		return "O3"
	default:
		return "O0"
	}
}

func (o OptLevel) valid() bool { return o >= O0 && o <= O3 }

// CompileOptions configures one Compile call.
type CompileOptions struct {
	OutputDir      string
	OptLevel       OptLevel
	TargetTriple   string // empty selects the emitter's default triple
	DebugSymbols   bool
	EntryFunction  string // empty compiles every function, undesignated entry
}

// CompileResult reports where the compiled artifact landed and how long
// it took to produce.
type CompileResult struct {
	BinaryPath        string
	TargetTriple      string
	BinarySize        int64
	CompilationTimeMs int64
}

// ErrTypeCheckFailed is the sentinel TypeCheckFailedError wraps.
var ErrTypeCheckFailed = errors.New("codegen: program failed type checking")

// TypeCheckFailedError reports every type error collected from
// typecheck.ValidateGraph before lowering was attempted. The HTTP layer
// maps this to 422; every other Codegen error maps to 500.
type TypeCheckFailedError struct {
	Errors []error
}

func (e *TypeCheckFailedError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("codegen: %d type error(s): %s", len(e.Errors), strings.Join(msgs, "; "))
}

func (e *TypeCheckFailedError) Unwrap() error { return ErrTypeCheckFailed }

// ErrInvalidOptions is returned when CompileOptions itself is malformed
// (missing output directory, out-of-range opt level, an EntryFunction
// name that does not exist in the program).
var ErrInvalidOptions = errors.New("codegen: invalid compile options")

// Codegen is the external collaborator the compile contract targets. A
// real implementation could lower to LLVM IR, WASM, or any other native
// backend without editservice or the HTTP layer changing.
type Codegen interface {
	Compile(ctx context.Context, g *program.Graph, opts CompileOptions) (CompileResult, error)
}

package ir

import (
	"encoding/json"
	"fmt"

	"github.com/lmlang/graphlang/ids"
	"github.com/lmlang/graphlang/lmtype"
)

// SemanticNodeKind discriminates the semantic graph's node variants.
type SemanticNodeKind int

const (
	SemModule SemanticNodeKind = iota
	SemFunction
	SemTypeDef
	SemSpec
	SemTest
	SemDoc
)

var semanticNodeKindNames = [...]string{"Module", "Function", "TypeDef", "Spec", "Test", "Doc"}

func (k SemanticNodeKind) String() string {
	if int(k) >= 0 && int(k) < len(semanticNodeKindNames) {
		return semanticNodeKindNames[k]
	}
	return "Unknown"
}

// MarshalJSON renders the node kind as its self-describing tag name.
func (k SemanticNodeKind) MarshalJSON() ([]byte, error) {
	s := k.String()
	if s == "Unknown" {
		return nil, fmt.Errorf("ir: unknown SemanticNodeKind %d", int(k))
	}
	return json.Marshal(s)
}

// UnmarshalJSON resolves a tag name back to its SemanticNodeKind,
// rejecting any tag not in the current taxonomy.
func (k *SemanticNodeKind) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err != nil {
		return err
	}
	for i, n := range semanticNodeKindNames {
		if n == tag {
			*k = SemanticNodeKind(i)
			return nil
		}
	}
	return fmt.Errorf("ir: unknown SemanticNodeKind tag %q", tag)
}

// FunctionSummary is the semantic graph's derived view of a function,
// refreshed by the propagation engine rather than edited directly.
type FunctionSummary struct {
	Name       string
	FunctionID ids.FunctionID
	Module     ids.ModuleID
	Visibility lmtype.Visibility
	Signature  string

	// Complexity is the function's node count as of the last refresh.
	Complexity int
	// ProvenanceVersion increments every time the summary is refreshed.
	ProvenanceVersion uint64
	// SummaryText is a deterministic human-readable rendering of the
	// function, the input to the content-addressed Embedding.
	SummaryText string
	// Embedding is a deterministic pseudo-vector derived from
	// SummaryText's bytes — content-addressable, never learned.
	Embedding []float64
	// CalledFunctions is the set of FunctionIDs this function calls,
	// refreshed alongside the summary.
	CalledFunctions []ids.FunctionID
}

// SemanticNode is one node of the lightweight semantic graph: a summary
// of a Module, Function, TypeDef, or optional Spec/Test/Doc annotation.
type SemanticNode struct {
	Kind SemanticNodeKind

	// SemModule
	ModuleDef ids.ModuleID

	// SemFunction
	Summary FunctionSummary

	// SemTypeDef
	TypeDef ids.TypeID

	// Metadata carries free-form annotations (description, tags, planner
	// provenance) attached by edits or by Spec/Test/Doc nodes.
	Metadata map[string]string
}

// SemanticEdgeKind discriminates the semantic graph's edge variants.
type SemanticEdgeKind int

const (
	Contains SemanticEdgeKind = iota
	Calls
	UsesType
	Implements
	Validates
	Documents
)

var semanticEdgeKindNames = [...]string{"Contains", "Calls", "UsesType", "Implements", "Validates", "Documents"}

func (k SemanticEdgeKind) String() string {
	if int(k) >= 0 && int(k) < len(semanticEdgeKindNames) {
		return semanticEdgeKindNames[k]
	}
	return "Unknown"
}

// MarshalJSON renders the edge kind as its self-describing tag name.
func (k SemanticEdgeKind) MarshalJSON() ([]byte, error) {
	s := k.String()
	if s == "Unknown" {
		return nil, fmt.Errorf("ir: unknown SemanticEdgeKind %d", int(k))
	}
	return json.Marshal(s)
}

// UnmarshalJSON resolves a tag name back to its SemanticEdgeKind,
// rejecting any tag not in the current taxonomy.
func (k *SemanticEdgeKind) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err != nil {
		return err
	}
	for i, n := range semanticEdgeKindNames {
		if n == tag {
			*k = SemanticEdgeKind(i)
			return nil
		}
	}
	return fmt.Errorf("ir: unknown SemanticEdgeKind tag %q", tag)
}

// SemanticEdge connects two semantic nodes by index within the owning
// ProgramGraph's semantic node table.
type SemanticEdge struct {
	Kind   SemanticEdgeKind
	Source uint32
	Target uint32
}

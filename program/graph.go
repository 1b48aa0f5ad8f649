package program

import (
	"fmt"

	"github.com/lmlang/graphlang/ids"
	"github.com/lmlang/graphlang/ir"
	"github.com/lmlang/graphlang/lmtype"
	"github.com/lmlang/graphlang/modtree"
)

// DebugAssertions gates the post-mutation consistency sweep described in
// SPEC_FULL.md §D.1 (ported from lmlang-core/src/graph.rs's
// debug_assert! calls, which Go has no direct equivalent for). Tests
// flip this on; production servers leave it off to avoid the O(n) sweep
// on every AddFunction/AddClosure call.
var DebugAssertions = false

// Graph owns every piece of a program's state: the compute graph (nodes
// + flow edges), the semantic graph (semantic nodes + semantic edges),
// the type registry, and the module tree. It is the only valid mutation
// path for any of them — external packages (interp, typecheck,
// editservice) hold a read-only borrow or take an explicit Clone for
// transactional staging.
type Graph struct {
	Types   *lmtype.Registry
	Modules *modtree.Tree

	functions map[ids.FunctionID]*ir.FunctionDef
	funcAlloc *ids.Allocator[ids.FunctionID]

	nodes     map[ids.NodeID]*ir.ComputeNode
	nodeAlloc *ids.Allocator[ids.NodeID]

	edges     map[ids.EdgeID]*ir.FlowEdge
	edgeAlloc *ids.Allocator[ids.EdgeID]

	// outEdges/inEdges index edges by endpoint for O(degree) traversal
	// and for RemoveComputeNode's atomic incident-edge cleanup.
	outEdges map[ids.NodeID][]ids.EdgeID
	inEdges  map[ids.NodeID][]ids.EdgeID

	semanticNodes []*ir.SemanticNode
	semanticEdges []*ir.SemanticEdge

	moduleSemanticIndex   map[ids.ModuleID]uint32
	functionSemanticIndex map[ids.FunctionID]uint32

	queue *propagationQueue
}

// New creates a Graph with a root module and a TypeRegistry seeded with
// primitives, and no functions.
func New(rootModuleName string) *Graph {
	g := &Graph{
		Types:                 lmtype.NewRegistry(),
		Modules:               modtree.New(rootModuleName),
		functions:             make(map[ids.FunctionID]*ir.FunctionDef),
		funcAlloc:             ids.NewAllocator[ids.FunctionID](0),
		nodes:                 make(map[ids.NodeID]*ir.ComputeNode),
		nodeAlloc:             ids.NewAllocator[ids.NodeID](0),
		edges:                 make(map[ids.EdgeID]*ir.FlowEdge),
		edgeAlloc:             ids.NewAllocator[ids.EdgeID](0),
		outEdges:              make(map[ids.NodeID][]ids.EdgeID),
		inEdges:               make(map[ids.NodeID][]ids.EdgeID),
		moduleSemanticIndex:   make(map[ids.ModuleID]uint32),
		functionSemanticIndex: make(map[ids.FunctionID]uint32),
		queue:                 newPropagationQueue(),
	}
	root := g.Modules.Root()
	g.semanticNodes = append(g.semanticNodes, &ir.SemanticNode{
		Kind:      ir.SemModule,
		ModuleDef: root,
		Metadata:  map[string]string{},
	})
	g.moduleSemanticIndex[root] = 0
	return g
}

// GetComputeNode returns the node for id, or false if absent.
func (g *Graph) GetComputeNode(id ids.NodeID) (*ir.ComputeNode, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// GetFunction returns the FunctionDef for id, or false if absent.
func (g *Graph) GetFunction(id ids.FunctionID) (*ir.FunctionDef, bool) {
	f, ok := g.functions[id]
	return f, ok
}

// Functions returns every FunctionID currently defined.
func (g *Graph) Functions() map[ids.FunctionID]*ir.FunctionDef {
	out := make(map[ids.FunctionID]*ir.FunctionDef, len(g.functions))
	for k, v := range g.functions {
		out[k] = v
	}
	return out
}

// NodesOwnedBy returns every ComputeNode owned by fid, in NodeID order.
func (g *Graph) NodesOwnedBy(fid ids.FunctionID) []ids.NodeID {
	var out []ids.NodeID
	for id, n := range g.nodes {
		if n.Owner == fid {
			out = append(out, id)
		}
	}
	sortNodeIDs(out)
	return out
}

// OutEdges returns the edge IDs whose source is id.
func (g *Graph) OutEdges(id ids.NodeID) []ids.EdgeID {
	return append([]ids.EdgeID(nil), g.outEdges[id]...)
}

// InEdges returns the edge IDs whose target is id.
func (g *Graph) InEdges(id ids.NodeID) []ids.EdgeID {
	return append([]ids.EdgeID(nil), g.inEdges[id]...)
}

// GetEdge returns the FlowEdge for id, or false if absent.
func (g *Graph) GetEdge(id ids.EdgeID) (*ir.FlowEdge, bool) {
	e, ok := g.edges[id]
	return e, ok
}

// Edges returns every (EdgeID, *FlowEdge) pair, used by persistence and
// whole-graph validation.
func (g *Graph) Edges() map[ids.EdgeID]*ir.FlowEdge {
	out := make(map[ids.EdgeID]*ir.FlowEdge, len(g.edges))
	for k, v := range g.edges {
		out[k] = v
	}
	return out
}

// Nodes returns every (NodeID, *ComputeNode) pair.
func (g *Graph) Nodes() map[ids.NodeID]*ir.ComputeNode {
	out := make(map[ids.NodeID]*ir.ComputeNode, len(g.nodes))
	for k, v := range g.nodes {
		out[k] = v
	}
	return out
}

// SemanticNodes returns the semantic node table, indexed as stored.
func (g *Graph) SemanticNodes() []*ir.SemanticNode { return g.semanticNodes }

// SemanticEdges returns the semantic edge table.
func (g *Graph) SemanticEdges() []*ir.SemanticEdge { return g.semanticEdges }

// FunctionSemanticIndex returns the semantic-node index for fid.
func (g *Graph) FunctionSemanticIndex(fid ids.FunctionID) (uint32, bool) {
	idx, ok := g.functionSemanticIndex[fid]
	return idx, ok
}

// ModuleSemanticIndex returns the semantic-node index for mid.
func (g *Graph) ModuleSemanticIndex(mid ids.ModuleID) (uint32, bool) {
	idx, ok := g.moduleSemanticIndex[mid]
	return idx, ok
}

// IncomingDataEdges returns the Data-kind edges targeting id, sorted by
// TargetPort — the order the type checker and interpreter both expect
// inputs to be gathered in.
func (g *Graph) IncomingDataEdges(id ids.NodeID) []*ir.FlowEdge {
	var out []*ir.FlowEdge
	for _, eid := range g.inEdges[id] {
		e := g.edges[eid]
		if e.Kind == ir.EdgeData {
			out = append(out, e)
		}
	}
	sortByTargetPort(out)
	return out
}

// IncomingControlEdges returns the Control-kind edges targeting id.
func (g *Graph) IncomingControlEdges(id ids.NodeID) []*ir.FlowEdge {
	var out []*ir.FlowEdge
	for _, eid := range g.inEdges[id] {
		e := g.edges[eid]
		if e.Kind == ir.EdgeControl {
			out = append(out, e)
		}
	}
	return out
}

// OutgoingDataEdges returns the Data-kind edges sourced at id.
func (g *Graph) OutgoingDataEdges(id ids.NodeID) []*ir.FlowEdge {
	var out []*ir.FlowEdge
	for _, eid := range g.outEdges[id] {
		e := g.edges[eid]
		if e.Kind == ir.EdgeData {
			out = append(out, e)
		}
	}
	return out
}

// OutgoingControlEdges returns the Control-kind edges sourced at id.
func (g *Graph) OutgoingControlEdges(id ids.NodeID) []*ir.FlowEdge {
	var out []*ir.FlowEdge
	for _, eid := range g.outEdges[id] {
		e := g.edges[eid]
		if e.Kind == ir.EdgeControl {
			out = append(out, e)
		}
	}
	return out
}

func sortNodeIDs(s []ids.NodeID) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

func sortByTargetPort(s []*ir.FlowEdge) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1].TargetPort > s[j].TargetPort; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// AssertConsistency sweeps the dual graph checking that every FunctionID
// in the table has exactly one Function semantic node and exactly one
// Contains edge from its owning module's semantic node. It is a no-op
// unless DebugAssertions is true (SPEC_FULL.md §D.1).
func (g *Graph) AssertConsistency() error {
	if !DebugAssertions {
		return nil
	}
	for fid, def := range g.functions {
		semIdx, ok := g.functionSemanticIndex[fid]
		if !ok {
			return &GraphInconsistencyError{Reason: fmt.Sprintf("function %v has no semantic node", fid)}
		}
		if int(semIdx) >= len(g.semanticNodes) || g.semanticNodes[semIdx].Kind != ir.SemFunction {
			return &GraphInconsistencyError{Reason: fmt.Sprintf("function %v semantic index %d is not a Function node", fid, semIdx)}
		}
		modIdx, ok := g.moduleSemanticIndex[def.Module]
		if !ok {
			return &GraphInconsistencyError{Reason: fmt.Sprintf("function %v module %v has no semantic node", fid, def.Module)}
		}
		found := false
		for _, e := range g.semanticEdges {
			if e.Kind == ir.Contains && e.Source == modIdx && e.Target == semIdx {
				found = true
				break
			}
		}
		if !found {
			return &GraphInconsistencyError{Reason: fmt.Sprintf("missing Contains edge for function %v", fid)}
		}
	}
	return nil
}

package program

import (
	"github.com/lmlang/graphlang/ids"
	"github.com/lmlang/graphlang/ir"
)

// Clone produces a deep, independent copy of the graph, used by the edit
// service for dry-run validation and atomic batch mutation (clone,
// mutate, validate, swap-or-discard).
func (g *Graph) Clone() *Graph {
	c := &Graph{
		Types:                 g.Types.Clone(),
		Modules:               g.Modules.Clone(),
		functions:             make(map[ids.FunctionID]*ir.FunctionDef, len(g.functions)),
		funcAlloc:             g.funcAlloc.Clone(),
		nodes:                 make(map[ids.NodeID]*ir.ComputeNode, len(g.nodes)),
		nodeAlloc:             g.nodeAlloc.Clone(),
		edges:                 make(map[ids.EdgeID]*ir.FlowEdge, len(g.edges)),
		edgeAlloc:             g.edgeAlloc.Clone(),
		outEdges:              make(map[ids.NodeID][]ids.EdgeID, len(g.outEdges)),
		inEdges:               make(map[ids.NodeID][]ids.EdgeID, len(g.inEdges)),
		semanticNodes:         make([]*ir.SemanticNode, len(g.semanticNodes)),
		semanticEdges:         make([]*ir.SemanticEdge, len(g.semanticEdges)),
		moduleSemanticIndex:   make(map[ids.ModuleID]uint32, len(g.moduleSemanticIndex)),
		functionSemanticIndex: make(map[ids.FunctionID]uint32, len(g.functionSemanticIndex)),
		queue:                 g.queue.clone(),
	}
	for k, v := range g.functions {
		cp := *v
		cp.Params = append([]ir.Param(nil), v.Params...)
		cp.Captures = append([]ir.Capture(nil), v.Captures...)
		c.functions[k] = &cp
	}
	for k, v := range g.nodes {
		cp := *v
		c.nodes[k] = &cp
	}
	for k, v := range g.edges {
		cp := *v
		c.edges[k] = &cp
	}
	for k, v := range g.outEdges {
		c.outEdges[k] = append([]ids.EdgeID(nil), v...)
	}
	for k, v := range g.inEdges {
		c.inEdges[k] = append([]ids.EdgeID(nil), v...)
	}
	for i, v := range g.semanticNodes {
		cp := *v
		cp.Metadata = make(map[string]string, len(v.Metadata))
		for mk, mv := range v.Metadata {
			cp.Metadata[mk] = mv
		}
		cp.Summary.CalledFunctions = append([]ids.FunctionID(nil), v.Summary.CalledFunctions...)
		cp.Summary.Embedding = append([]float64(nil), v.Summary.Embedding...)
		c.semanticNodes[i] = &cp
	}
	for i, v := range g.semanticEdges {
		cp := *v
		c.semanticEdges[i] = &cp
	}
	for k, v := range g.moduleSemanticIndex {
		c.moduleSemanticIndex[k] = v
	}
	for k, v := range g.functionSemanticIndex {
		c.functionSemanticIndex[k] = v
	}
	return c
}

package program

import (
	"fmt"

	"github.com/lmlang/graphlang/ids"
	"github.com/lmlang/graphlang/ir"
	"github.com/lmlang/graphlang/lmtype"
	"github.com/lmlang/graphlang/modtree"
)

// NodeRecord pairs a persisted ComputeNode with the NodeID it must be
// restored under.
type NodeRecord struct {
	ID   ids.NodeID     `json:"id"`
	Node ir.ComputeNode `json:"node"`
}

// EdgeRecord pairs a persisted FlowEdge with the EdgeID it must be
// restored under.
type EdgeRecord struct {
	ID   ids.EdgeID  `json:"id"`
	Edge ir.FlowEdge `json:"edge"`
}

// TypeRecord pairs a persisted LmType with the TypeID it must be
// restored under.
type TypeRecord struct {
	ID   ids.TypeID    `json:"id"`
	Type lmtype.LmType `json:"type"`
}

// FunctionRecord pairs a persisted FunctionDef with the FunctionID it
// must be restored under.
type FunctionRecord struct {
	ID  ids.FunctionID `json:"id"`
	Def ir.FunctionDef `json:"def"`
}

// ModuleRecord pairs a persisted module descriptor with the ModuleID it
// must be restored under.
type ModuleRecord struct {
	ID     ids.ModuleID   `json:"id"`
	Module modtree.Module `json:"module"`
}

// DecomposedProgram is the full, flat, store-agnostic representation of a
// Graph's state — every table a GraphStore implementation needs to
// persist and, on load, hand back to Recompose. The node, edge, type,
// function and module tables are lists of (id, value) pairs rather than
// Go maps, sorted by id; TypeNames and the two semantic index tables are
// maps, so their integer keys or values travel as JSON object entries.
type DecomposedProgram struct {
	ComputeNodes []NodeRecord     `json:"compute_nodes"`
	FlowEdges    []EdgeRecord     `json:"flow_edges"`
	NextNodeID   ids.NodeID       `json:"next_node_id"`
	NextEdgeID   ids.EdgeID       `json:"next_edge_id"`

	Types      []TypeRecord          `json:"types"`
	TypeNames  map[string]ids.TypeID `json:"type_names"`
	TypeNextID ids.TypeID            `json:"type_next_id"`

	Functions      []FunctionRecord `json:"functions"`
	NextFunctionID ids.FunctionID   `json:"next_function_id"`

	Modules      []ModuleRecord `json:"modules"`
	RootModule   ids.ModuleID   `json:"root_module"`
	NextModuleID ids.ModuleID   `json:"next_module_id"`

	SemanticNodes           []ir.SemanticNode        `json:"semantic_nodes"`
	SemanticEdges           []ir.SemanticEdge        `json:"semantic_edges"`
	ModuleSemanticIndices   map[ids.ModuleID]uint32   `json:"module_semantic_indices"`
	FunctionSemanticIndices map[ids.FunctionID]uint32 `json:"function_semantic_indices"`
}

// Decompose flattens g into every table a GraphStore must persist. The
// result holds no pointers into g — it is safe to serialize after the
// caller releases any lock on g.
func Decompose(g *Graph) DecomposedProgram {
	d := DecomposedProgram{
		TypeNames:               g.Types.Names(),
		TypeNextID:              g.Types.NextID(),
		NextFunctionID:          g.funcAlloc.Peek(),
		RootModule:              g.Modules.Root(),
		NextModuleID:            g.Modules.NextID(),
		NextNodeID:              g.nodeAlloc.Peek(),
		NextEdgeID:              g.edgeAlloc.Peek(),
		ModuleSemanticIndices:   make(map[ids.ModuleID]uint32, len(g.moduleSemanticIndex)),
		FunctionSemanticIndices: make(map[ids.FunctionID]uint32, len(g.functionSemanticIndex)),
	}

	for id, n := range g.nodes {
		d.ComputeNodes = append(d.ComputeNodes, NodeRecord{ID: id, Node: *n})
	}
	sortNodeRecords(d.ComputeNodes)

	for id, e := range g.edges {
		d.FlowEdges = append(d.FlowEdges, EdgeRecord{ID: id, Edge: *e})
	}
	sortEdgeRecords(d.FlowEdges)

	for id, t := range g.Types.All() {
		cp := t
		cp.Fields = append([]lmtype.StructField(nil), t.Fields...)
		cp.Variants = append([]lmtype.EnumVariant(nil), t.Variants...)
		cp.Params = append([]ids.TypeID(nil), t.Params...)
		d.Types = append(d.Types, TypeRecord{ID: id, Type: cp})
	}
	sortTypeRecords(d.Types)

	for id, f := range g.functions {
		cp := *f
		cp.Params = append([]ir.Param(nil), f.Params...)
		cp.Captures = append([]ir.Capture(nil), f.Captures...)
		d.Functions = append(d.Functions, FunctionRecord{ID: id, Def: cp})
	}
	sortFunctionRecords(d.Functions)

	for id, m := range g.Modules.All() {
		cp := *m
		cp.Children = append([]ids.ModuleID(nil), m.Children...)
		cp.Functions = append([]ids.FunctionID(nil), m.Functions...)
		cp.Types = append([]ids.TypeID(nil), m.Types...)
		d.Modules = append(d.Modules, ModuleRecord{ID: id, Module: cp})
	}
	sortModuleRecords(d.Modules)

	for _, n := range g.semanticNodes {
		cp := *n
		cp.Metadata = make(map[string]string, len(n.Metadata))
		for mk, mv := range n.Metadata {
			cp.Metadata[mk] = mv
		}
		cp.Summary.CalledFunctions = append([]ids.FunctionID(nil), n.Summary.CalledFunctions...)
		cp.Summary.Embedding = append([]float64(nil), n.Summary.Embedding...)
		d.SemanticNodes = append(d.SemanticNodes, cp)
	}
	for _, e := range g.semanticEdges {
		d.SemanticEdges = append(d.SemanticEdges, *e)
	}
	for k, v := range g.moduleSemanticIndex {
		d.ModuleSemanticIndices[k] = v
	}
	for k, v := range g.functionSemanticIndex {
		d.FunctionSemanticIndices[k] = v
	}
	return d
}

// Recompose rebuilds a Graph from a DecomposedProgram, preserving every
// id numerically — a restored NodeID, EdgeID, TypeID, FunctionID, and
// ModuleID always matches the value it held when Decompose produced d.
// The "root" name passed to New is only a placeholder; it is immediately
// overwritten by d's own persisted root module record.
func Recompose(d DecomposedProgram) (*Graph, error) {
	g := New("root")
	g.nodes = make(map[ids.NodeID]*ir.ComputeNode, len(d.ComputeNodes))
	g.edges = make(map[ids.EdgeID]*ir.FlowEdge, len(d.FlowEdges))
	g.outEdges = make(map[ids.NodeID][]ids.EdgeID)
	g.inEdges = make(map[ids.NodeID][]ids.EdgeID)
	g.functions = make(map[ids.FunctionID]*ir.FunctionDef, len(d.Functions))
	g.moduleSemanticIndex = make(map[ids.ModuleID]uint32, len(d.ModuleSemanticIndices))
	g.functionSemanticIndex = make(map[ids.FunctionID]uint32, len(d.FunctionSemanticIndices))
	g.semanticNodes = nil
	g.semanticEdges = nil
	g.queue = newPropagationQueue()

	for _, rec := range d.Types {
		name := ""
		for n, id := range d.TypeNames {
			if id == rec.ID {
				name = n
				break
			}
		}
		g.Types.RawInsert(rec.ID, name, rec.Type)
	}
	g.Types.RestoreNextID(d.TypeNextID)

	modulesByID := make(map[ids.ModuleID]ModuleRecord, len(d.Modules))
	for _, rec := range d.Modules {
		modulesByID[rec.ID] = rec
	}
	rootRec, ok := modulesByID[d.RootModule]
	if !ok {
		return nil, fmt.Errorf("program: recompose missing root module record %v", d.RootModule)
	}
	g.Modules.SetRootMetadata(rootRec.Module.Name, rootRec.Module.Visibility)

	for _, id := range moduleRestoreOrder(d.RootModule, modulesByID) {
		if id == d.RootModule {
			continue
		}
		rec := modulesByID[id]
		if err := g.Modules.RestoreModule(id, rec.Module.Name, rec.Module.Parent, rec.Module.Visibility); err != nil {
			return nil, fmt.Errorf("program: recompose module %v: %w", id, err)
		}
	}
	for _, rec := range d.Modules {
		for _, fid := range rec.Module.Functions {
			if err := g.Modules.AddFunction(rec.ID, fid); err != nil {
				return nil, fmt.Errorf("program: recompose module %v function ownership: %w", rec.ID, err)
			}
		}
		for _, tid := range rec.Module.Types {
			if err := g.Modules.AddType(rec.ID, tid); err != nil {
				return nil, fmt.Errorf("program: recompose module %v type ownership: %w", rec.ID, err)
			}
		}
	}
	g.Modules.RestoreNextID(d.NextModuleID)

	for _, rec := range d.Functions {
		def := rec.Def
		def.Params = append([]ir.Param(nil), rec.Def.Params...)
		def.Captures = append([]ir.Capture(nil), rec.Def.Captures...)
		g.functions[rec.ID] = &def
	}
	g.funcAlloc.Restore(d.NextFunctionID)

	for _, rec := range d.ComputeNodes {
		n := rec.Node
		g.nodes[rec.ID] = &n
	}
	g.nodeAlloc.Restore(d.NextNodeID)

	for _, rec := range d.FlowEdges {
		e := rec.Edge
		g.edges[rec.ID] = &e
		g.outEdges[e.Source] = append(g.outEdges[e.Source], rec.ID)
		g.inEdges[e.Target] = append(g.inEdges[e.Target], rec.ID)
	}
	g.edgeAlloc.Restore(d.NextEdgeID)

	for _, n := range d.SemanticNodes {
		cp := n
		g.semanticNodes = append(g.semanticNodes, &cp)
	}
	for _, e := range d.SemanticEdges {
		cp := e
		g.semanticEdges = append(g.semanticEdges, &cp)
	}
	for k, v := range d.ModuleSemanticIndices {
		g.moduleSemanticIndex[k] = v
	}
	for k, v := range d.FunctionSemanticIndices {
		g.functionSemanticIndex[k] = v
	}

	if err := g.AssertConsistency(); err != nil {
		return nil, fmt.Errorf("program: recomposed graph failed consistency check: %w", err)
	}
	return g, nil
}

// moduleRestoreOrder returns every module id reachable from root in
// parent-before-child (BFS) order, so RestoreModule always finds its
// parent already present.
func moduleRestoreOrder(root ids.ModuleID, byID map[ids.ModuleID]ModuleRecord) []ids.ModuleID {
	order := []ids.ModuleID{root}
	queue := []ids.ModuleID{root}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		rec, ok := byID[cur]
		if !ok {
			continue
		}
		for _, child := range rec.Module.Children {
			order = append(order, child)
			queue = append(queue, child)
		}
	}
	return order
}

func sortNodeRecords(s []NodeRecord) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1].ID > s[j].ID; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

func sortEdgeRecords(s []EdgeRecord) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1].ID > s[j].ID; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

func sortTypeRecords(s []TypeRecord) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1].ID > s[j].ID; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

func sortFunctionRecords(s []FunctionRecord) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1].ID > s[j].ID; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

func sortModuleRecords(s []ModuleRecord) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1].ID > s[j].ID; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

package program

import (
	"fmt"

	"github.com/lmlang/graphlang/ids"
	"github.com/lmlang/graphlang/ir"
	"github.com/lmlang/graphlang/lmtype"
)

// AddFunction atomically creates a FunctionDef, registers it with its
// owning module, inserts a Function semantic node, and adds a Contains
// semantic edge from the module's semantic node. This is the only way
// to add an ordinary (non-closure) function; the dual-graph consistency
// invariant is upheld at this single call site.
func (g *Graph) AddFunction(name string, module ids.ModuleID, params []ir.Param, returnType ids.TypeID, visibility lmtype.Visibility) (ids.FunctionID, error) {
	return g.addFunction(name, module, params, returnType, visibility, false, ids.NoFunction, false, nil)
}

// AddClosure is AddFunction's counterpart for nested closures: it
// additionally records the parent function and ordered capture list.
func (g *Graph) AddClosure(name string, module ids.ModuleID, params []ir.Param, returnType ids.TypeID, visibility lmtype.Visibility, parent ids.FunctionID, captures []ir.Capture) (ids.FunctionID, error) {
	if _, ok := g.functions[parent]; !ok {
		return 0, &FunctionNotFoundError{Function: parent}
	}
	return g.addFunction(name, module, params, returnType, visibility, true, parent, true, captures)
}

func (g *Graph) addFunction(name string, module ids.ModuleID, params []ir.Param, returnType ids.TypeID, visibility lmtype.Visibility, isClosure bool, parent ids.FunctionID, hasParent bool, captures []ir.Capture) (ids.FunctionID, error) {
	if _, ok := g.Modules.Get(module); !ok {
		return 0, &ModuleNotFoundError{Module: module}
	}
	if _, ok := g.Types.Lookup(returnType); !ok {
		return 0, fmt.Errorf("%w: return type %v", ErrTypeNotFound, returnType)
	}
	for _, p := range params {
		if _, ok := g.Types.Lookup(p.Type); !ok {
			return 0, fmt.Errorf("%w: parameter %q type %v", ErrTypeNotFound, p.Name, p.Type)
		}
	}

	fid := g.funcAlloc.Next()
	def := &ir.FunctionDef{
		ID: fid, Name: name, Module: module, Visibility: visibility,
		Params: append([]ir.Param(nil), params...), ReturnType: returnType,
		IsClosure: isClosure, ParentFunction: parent, HasParent: hasParent,
		Captures: append([]ir.Capture(nil), captures...),
	}
	g.functions[fid] = def

	if err := g.Modules.AddFunction(module, fid); err != nil {
		delete(g.functions, fid)
		return 0, err
	}

	modIdx := g.moduleSemanticIndex[module]
	semIdx := uint32(len(g.semanticNodes))
	g.semanticNodes = append(g.semanticNodes, &ir.SemanticNode{
		Kind: ir.SemFunction,
		Summary: ir.FunctionSummary{
			Name: name, FunctionID: fid, Module: module, Visibility: visibility,
			Signature: signatureString(def),
		},
		Metadata: map[string]string{},
	})
	g.functionSemanticIndex[fid] = semIdx
	g.semanticEdges = append(g.semanticEdges, &ir.SemanticEdge{
		Kind: ir.Contains, Source: modIdx, Target: semIdx,
	})

	if err := g.AssertConsistency(); err != nil {
		panic(err) // debug builds only; a violation here is a bug in this method
	}
	return fid, nil
}

func signatureString(def *ir.FunctionDef) string {
	s := def.Name + "("
	for i, p := range def.Params {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s:%v", p.Name, p.Type)
	}
	return s + fmt.Sprintf(") -> %v", def.ReturnType)
}

// AddModule creates a child module, delegating to the ModuleTree and
// inserting a corresponding Module semantic node.
func (g *Graph) AddModule(name string, parent ids.ModuleID, visibility lmtype.Visibility) (ids.ModuleID, error) {
	mid, err := g.Modules.AddModule(name, parent, visibility)
	if err != nil {
		return 0, err
	}
	semIdx := uint32(len(g.semanticNodes))
	g.semanticNodes = append(g.semanticNodes, &ir.SemanticNode{
		Kind: ir.SemModule, ModuleDef: mid, Metadata: map[string]string{},
	})
	g.moduleSemanticIndex[mid] = semIdx
	if parentIdx, ok := g.moduleSemanticIndex[parent]; ok {
		g.semanticEdges = append(g.semanticEdges, &ir.SemanticEdge{
			Kind: ir.Contains, Source: parentIdx, Target: semIdx,
		})
	}
	return mid, nil
}

// AddComputeNode inserts a new node owned by fid, validating structural
// invariants 1-6 of §3 that are checkable without a full type pass:
// owner exists, Parameter/CaptureAccess indices are in range, Invariant
// target types exist.
func (g *Graph) AddComputeNode(fid ids.FunctionID, op ir.Op) (ids.NodeID, error) {
	def, ok := g.functions[fid]
	if !ok {
		return 0, &FunctionNotFoundError{Function: fid}
	}
	if err := g.validateOpAgainstOwner(op, def); err != nil {
		return 0, err
	}

	id := g.nodeAlloc.Next()
	g.nodes[id] = &ir.ComputeNode{Op: op, Owner: fid}
	return id, nil
}

func (g *Graph) validateOpAgainstOwner(op ir.Op, def *ir.FunctionDef) error {
	switch op.Kind {
	case ir.OpParameter:
		if op.Index < 0 || op.Index >= len(def.Params) {
			return &InvalidEdgeError{Reason: fmt.Sprintf("Parameter index %d out of range for function %q with %d params", op.Index, def.Name, len(def.Params))}
		}
	case ir.OpCaptureAccess:
		if op.Index < 0 || op.Index >= len(def.Captures) {
			return &InvalidEdgeError{Reason: fmt.Sprintf("CaptureAccess index %d out of range for function %q with %d captures", op.Index, def.Name, len(def.Captures))}
		}
	case ir.OpInvariant:
		if _, ok := g.Types.Lookup(op.TargetType); !ok {
			return fmt.Errorf("%w: invariant target type %v", ErrTypeNotFound, op.TargetType)
		}
	}
	return nil
}

// ModifyComputeNodeOp replaces the op on node id in place, returning the
// previous op — the primitive the edit log uses to record inverses.
func (g *Graph) ModifyComputeNodeOp(id ids.NodeID, newOp ir.Op) (ir.Op, error) {
	n, ok := g.nodes[id]
	if !ok {
		return ir.Op{}, &NodeNotFoundError{Node: id}
	}
	def := g.functions[n.Owner]
	if err := g.validateOpAgainstOwner(newOp, def); err != nil {
		return ir.Op{}, err
	}
	old := n.Op
	n.Op = newOp
	return old, nil
}

// AddDataEdge inserts a Data-kind FlowEdge from src:srcPort to
// dst:dstPort carrying valueType. Both endpoints must exist; callers
// should run typecheck.ValidateDataEdge first to reject type mismatches
// before calling this (ProgramGraph itself only enforces structural
// invariants, not type rules, keeping the two concerns separate).
func (g *Graph) AddDataEdge(src, dst ids.NodeID, srcPort, dstPort uint16, valueType ids.TypeID) (ids.EdgeID, error) {
	if _, ok := g.nodes[src]; !ok {
		return 0, &NodeNotFoundError{Node: src}
	}
	if _, ok := g.nodes[dst]; !ok {
		return 0, &NodeNotFoundError{Node: dst}
	}
	if _, ok := g.Types.Lookup(valueType); !ok {
		return 0, fmt.Errorf("%w: %v", ErrTypeNotFound, valueType)
	}
	e := ir.NewDataEdge(src, dst, srcPort, dstPort, valueType)
	return g.insertEdge(e)
}

// AddControlEdge inserts a Control-kind FlowEdge from src to dst,
// optionally tagged with a branch index (pass -1 for "unconditional").
func (g *Graph) AddControlEdge(src, dst ids.NodeID, branchIndex int) (ids.EdgeID, error) {
	if _, ok := g.nodes[src]; !ok {
		return 0, &NodeNotFoundError{Node: src}
	}
	if _, ok := g.nodes[dst]; !ok {
		return 0, &NodeNotFoundError{Node: dst}
	}
	e := ir.NewControlEdge(src, dst, branchIndex)
	return g.insertEdge(e)
}

func (g *Graph) insertEdge(e ir.FlowEdge) (ids.EdgeID, error) {
	id := g.edgeAlloc.Next()
	g.edges[id] = &e
	g.outEdges[e.Source] = append(g.outEdges[e.Source], id)
	g.inEdges[e.Target] = append(g.inEdges[e.Target], id)
	return id, nil
}

// RemoveEdge deletes edge id, returning the removed edge (for EditLog
// inversion).
func (g *Graph) RemoveEdge(id ids.EdgeID) (ir.FlowEdge, error) {
	e, ok := g.edges[id]
	if !ok {
		return ir.FlowEdge{}, fmt.Errorf("%w: %v", ErrEdgeNotFound, id)
	}
	g.outEdges[e.Source] = removeEdgeID(g.outEdges[e.Source], id)
	g.inEdges[e.Target] = removeEdgeID(g.inEdges[e.Target], id)
	delete(g.edges, id)
	return *e, nil
}

// RemoveComputeNode removes the node and all incident edges atomically
// (petgraph stable semantics): every edge with id as source or target is
// removed first, then the node itself. Returns the removed node and the
// full set of removed edges (keyed by EdgeID) so the edit log can
// reconstruct an exact inverse.
func (g *Graph) RemoveComputeNode(id ids.NodeID) (ir.ComputeNode, map[ids.EdgeID]ir.FlowEdge, error) {
	n, ok := g.nodes[id]
	if !ok {
		return ir.ComputeNode{}, nil, &NodeNotFoundError{Node: id}
	}
	removed := make(map[ids.EdgeID]ir.FlowEdge)
	for _, eid := range append([]ids.EdgeID(nil), g.outEdges[id]...) {
		e, _ := g.RemoveEdge(eid)
		removed[eid] = e
	}
	for _, eid := range append([]ids.EdgeID(nil), g.inEdges[id]...) {
		if _, ok := g.edges[eid]; !ok {
			continue // already removed above (self-loop)
		}
		e, _ := g.RemoveEdge(eid)
		removed[eid] = e
	}
	delete(g.nodes, id)
	delete(g.outEdges, id)
	delete(g.inEdges, id)
	return *n, removed, nil
}

// SetEntryNode sets fid's entry node, validating invariant 7: the node
// must be owned by fid.
func (g *Graph) SetEntryNode(fid ids.FunctionID, node ids.NodeID) error {
	def, ok := g.functions[fid]
	if !ok {
		return &FunctionNotFoundError{Function: fid}
	}
	n, ok := g.nodes[node]
	if !ok {
		return &NodeNotFoundError{Node: node}
	}
	if n.Owner != fid {
		return &InvalidEdgeError{Reason: fmt.Sprintf("node %v is not owned by function %v", node, fid)}
	}
	def.EntryNode = node
	def.HasEntryNode = true
	return nil
}

func removeEdgeID(s []ids.EdgeID, v ids.EdgeID) []ids.EdgeID {
	out := s[:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

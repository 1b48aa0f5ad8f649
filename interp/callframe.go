package interp

import (
	"github.com/lmlang/graphlang/ids"
	"github.com/lmlang/graphlang/ir"
	"github.com/lmlang/graphlang/program"
	"github.com/lmlang/graphlang/rtvalue"
)

// CallFrame is one activation record on the interpreter's call stack
// (§4.5.2). NodeValues, Readiness, ControlReady, ControlGated, and
// Evaluated are all keyed by the function's owned compute nodes.
type CallFrame struct {
	Function ids.FunctionID

	NodeValues map[ids.NodeID]rtvalue.Value
	Arguments  []rtvalue.Value
	Captures   []rtvalue.Value

	// ReturnNode/ReturnPort name where this frame's Return value should
	// be written in the caller's frame; HasReturnTarget is false for the
	// entry frame (returning from it completes the interpreter run).
	ReturnNode      ids.NodeID
	ReturnPort      uint16
	HasReturnTarget bool

	WorkList  []ids.NodeID
	Readiness map[ids.NodeID]int

	ControlReady map[ids.NodeID]bool
	ControlGated map[ids.NodeID]bool
	Evaluated    map[ids.NodeID]bool
	scheduled    map[ids.NodeID]bool

	dataInCount map[ids.NodeID]int
}

// newCallFrame builds a CallFrame for fid per §4.5.2: walk all nodes
// owned by the function, mark control-gated nodes, then seed the
// work-list with the nodes that can run with no inputs at all.
func newCallFrame(g *program.Graph, fid ids.FunctionID, args, captures []rtvalue.Value, returnNode ids.NodeID, returnPort uint16, hasReturnTarget bool) *CallFrame {
	f := &CallFrame{
		Function:        fid,
		NodeValues:      make(map[ids.NodeID]rtvalue.Value),
		Arguments:       append([]rtvalue.Value(nil), args...),
		Captures:        append([]rtvalue.Value(nil), captures...),
		ReturnNode:      returnNode,
		ReturnPort:      returnPort,
		HasReturnTarget: hasReturnTarget,
		Readiness:       make(map[ids.NodeID]int),
		ControlReady:    make(map[ids.NodeID]bool),
		ControlGated:    make(map[ids.NodeID]bool),
		Evaluated:       make(map[ids.NodeID]bool),
		scheduled:       make(map[ids.NodeID]bool),
		dataInCount:     make(map[ids.NodeID]int),
	}

	owned := g.NodesOwnedBy(fid)
	for _, nid := range owned {
		if len(g.IncomingControlEdges(nid)) > 0 {
			f.ControlGated[nid] = true
		}
		node, _ := g.GetComputeNode(nid)
		// A Phi's incoming data edges come from mutually exclusive
		// branches — only the one matching the taken control edge ever
		// fires, so it only ever needs one data input, not all of them.
		if node != nil && node.Op.Kind == ir.OpPhi {
			f.dataInCount[nid] = 1
		} else {
			f.dataInCount[nid] = len(g.IncomingDataEdges(nid))
		}
		f.Readiness[nid] = 0
	}

	for _, nid := range owned {
		node, _ := g.GetComputeNode(nid)
		switch node.Op.Kind {
		case ir.OpParameter:
			f.schedule(nid)
		case ir.OpConst, ir.OpCaptureAccess:
			if !f.ControlGated[nid] {
				f.schedule(nid)
			}
		case ir.OpAlloc, ir.OpReadLine:
			if !f.ControlGated[nid] {
				f.schedule(nid)
			}
		}
	}
	return f
}

// isReady reports whether id may be popped and evaluated: not yet
// evaluated, control-satisfied, and data-satisfied.
func (f *CallFrame) isReady(id ids.NodeID) bool {
	if f.Evaluated[id] {
		return false
	}
	if f.ControlGated[id] && !f.ControlReady[id] {
		return false
	}
	return f.Readiness[id] >= f.dataInCount[id]
}

// schedule appends id to the work-list if it is ready and not already
// queued. Every place that can change id's readiness (control-gating
// satisfied, a data edge firing) calls this to re-check.
func (f *CallFrame) schedule(id ids.NodeID) {
	if f.scheduled[id] || f.Evaluated[id] {
		return
	}
	if !f.isReady(id) {
		return
	}
	f.WorkList = append(f.WorkList, id)
	f.scheduled[id] = true
}

// popReady removes and returns the next ready node from the front of
// the work-list. Returns false if the work-list is empty — a live
// deadlock, since anything in the work-list is ready by construction.
func (f *CallFrame) popReady() (ids.NodeID, bool) {
	if len(f.WorkList) == 0 {
		return 0, false
	}
	id := f.WorkList[0]
	f.WorkList = f.WorkList[1:]
	delete(f.scheduled, id)
	return id, true
}

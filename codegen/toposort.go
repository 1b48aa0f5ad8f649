package codegen

import (
	"fmt"

	"github.com/lmlang/graphlang/ids"
	"github.com/lmlang/graphlang/program"
)

// CycleError is returned by topoSort when a function's nodes do
// not form a DAG over data and control edges — the compute graph's
// invariants should make this unreachable for a program that passed
// ValidateGraph, but a reference emitter checks rather than assumes.
type CycleError struct {
	Function ids.FunctionID
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("codegen: function %v: nodes do not form a DAG", e.Function)
}

// topoSort performs Kahn's algorithm over the nodes owned by fid,
// ordering by both data and control dependencies so every operand a
// node reads, and every control edge gating it, is lowered before it.
// Ties are broken by ascending NodeID for deterministic output across
// runs of the same program.
func topoSort(g *program.Graph, fid ids.FunctionID) ([]ids.NodeID, error) {
	owned := g.NodesOwnedBy(fid)
	indegree := make(map[ids.NodeID]int, len(owned))
	owners := make(map[ids.NodeID]bool, len(owned))
	for _, nid := range owned {
		owners[nid] = true
	}
	for _, nid := range owned {
		n := 0
		for _, e := range g.IncomingDataEdges(nid) {
			if owners[e.Source] {
				n++
			}
		}
		for _, e := range g.IncomingControlEdges(nid) {
			if owners[e.Source] {
				n++
			}
		}
		indegree[nid] = n
	}

	var ready []ids.NodeID
	for _, nid := range owned {
		if indegree[nid] == 0 {
			ready = insertSorted(ready, nid)
		}
	}

	order := make([]ids.NodeID, 0, len(owned))
	for len(ready) > 0 {
		nid := ready[0]
		ready = ready[1:]
		order = append(order, nid)

		successors := make(map[ids.NodeID]bool)
		for _, e := range g.OutgoingDataEdges(nid) {
			if owners[e.Target] {
				successors[e.Target] = true
			}
		}
		for _, e := range g.OutgoingControlEdges(nid) {
			if owners[e.Target] {
				successors[e.Target] = true
			}
		}
		for succ := range successors {
			indegree[succ]--
			if indegree[succ] == 0 {
				ready = insertSorted(ready, succ)
			}
		}
	}

	if len(order) != len(owned) {
		return nil, &CycleError{Function: fid}
	}
	return order, nil
}

// insertSorted inserts id into the already-sorted slice s, keeping it
// sorted ascending — used to make Kahn's algorithm's ready-set
// iteration order deterministic.
func insertSorted(s []ids.NodeID, id ids.NodeID) []ids.NodeID {
	i := 0
	for i < len(s) && s[i] < id {
		i++
	}
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	s[i] = id
	return s
}

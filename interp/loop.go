package interp

import "github.com/lmlang/graphlang/ids"

// resetLoopBody implements §4.5.6: when a Loop node's taken branch is 0
// (continue), the body must be reset so it can re-execute on the next
// pass, since this interpreter has no SSA loop rewriting — loop-carried
// state lives in memory via Alloc/Store/Load, not in node_values.
func (ip *Interpreter) resetLoopBody(frame *CallFrame, loopNode ids.NodeID, activated []ids.NodeID) {
	g := ip.graph

	body := make(map[ids.NodeID]bool, len(activated))
	queue := append([]ids.NodeID(nil), activated...)
	for _, n := range activated {
		body[n] = true
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, e := range g.OutgoingControlEdges(n) {
			if e.Target == loopNode || body[e.Target] {
				continue
			}
			body[e.Target] = true
			queue = append(queue, e.Target)
		}
		for _, e := range g.OutgoingDataEdges(n) {
			if e.Target == loopNode || body[e.Target] {
				continue
			}
			body[e.Target] = true
			queue = append(queue, e.Target)
		}
	}

	external := make(map[ids.NodeID]int, len(body))
	for n := range body {
		count := 0
		for _, e := range g.IncomingDataEdges(n) {
			if e.Source == loopNode || body[e.Source] {
				continue
			}
			if _, ok := frame.NodeValues[e.Source]; ok {
				count++
			}
		}
		external[n] = count
	}

	for n := range body {
		delete(frame.Evaluated, n)
		delete(frame.NodeValues, n)
		delete(frame.ControlReady, n)
		delete(frame.scheduled, n)
		frame.Readiness[n] = external[n]
	}

	delete(frame.Evaluated, loopNode)
	delete(frame.NodeValues, loopNode)
	delete(frame.scheduled, loopNode)
	frame.Readiness[loopNode] = 0

	for _, n := range activated {
		frame.ControlReady[n] = true
	}
	for _, n := range activated {
		frame.schedule(n)
	}
}

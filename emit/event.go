// Package emit provides event emission and observability for program
// mutation and execution: every operation that changes or runs a graph
// reports an Event through an injected Emitter.
package emit

// Event records one observable occurrence — a node evaluated, an edit
// committed, a propagation flush completed — for later inspection or
// export.
type Event struct {
	ProgramID string
	Step      int
	NodeID    string
	Msg       string
	Meta      map[string]interface{}
}

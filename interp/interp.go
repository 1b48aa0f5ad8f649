package interp

import (
	"fmt"
	"time"

	"github.com/lmlang/graphlang/emit"
	"github.com/lmlang/graphlang/ids"
	"github.com/lmlang/graphlang/ir"
	"github.com/lmlang/graphlang/program"
	"github.com/lmlang/graphlang/rtvalue"
)

// MetricsRecorder is the narrow interface the metrics package's
// Collector satisfies, kept local so interp does not depend on
// metrics' Prometheus types directly.
type MetricsRecorder interface {
	RecordStep(programID, status string, d time.Duration)
}

// State is one of the interpreter's six terminal/non-terminal states
// (§4.5.1): Ready -> Running -> {Paused | Completed | Error |
// ContractViolation}.
type State int

const (
	StateReady State = iota
	StateRunning
	StatePaused
	StateCompleted
	StateError
	StateContractViolation
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "Ready"
	case StateRunning:
		return "Running"
	case StatePaused:
		return "Paused"
	case StateCompleted:
		return "Completed"
	case StateError:
		return "Error"
	case StateContractViolation:
		return "ContractViolation"
	default:
		return "Unknown"
	}
}

// TraceEntry records one evaluated node's inputs/output when tracing is
// enabled, for step-debugging at the HTTP boundary.
type TraceEntry struct {
	Node        ids.NodeID
	Sequence    uint64
	Description string
	Inputs      []rtvalue.Value
	Output      rtvalue.Value
	HasOutput   bool
}

// Option configures an Interpreter at construction time.
type Option func(*Interpreter)

// WithTrace enables per-node trace recording, retrievable via Trace().
func WithTrace(enabled bool) Option {
	return func(ip *Interpreter) { ip.traceEnabled = enabled }
}

// WithMaxRecursionDepth overrides the default call-stack depth limit.
func WithMaxRecursionDepth(n int) Option {
	return func(ip *Interpreter) { ip.maxRecursionDepth = n }
}

// WithModuleBoundaryChecker wires a cross-module invariant checker,
// consulted whenever a Call/IndirectCall crosses a module boundary.
func WithModuleBoundaryChecker(c ModuleBoundaryChecker) Option {
	return func(ip *Interpreter) { ip.boundary = c }
}

// WithEmitter wires an emit.Emitter that receives one Event per
// evaluated node, tagged with programID. The zero value (nil emitter)
// is a valid default: Step never emits.
func WithEmitter(e emit.Emitter, programID string) Option {
	return func(ip *Interpreter) { ip.emitter, ip.programID = e, programID }
}

// WithMetrics wires a MetricsRecorder that observes every Step call's
// outcome and duration, tagged with programID.
func WithMetrics(m MetricsRecorder, programID string) Option {
	return func(ip *Interpreter) { ip.metrics, ip.programID = m, programID }
}

const defaultMaxRecursionDepth = 256

// Interpreter is a single run of the work-list dataflow machine over one
// *program.Graph. It is not safe for concurrent use — callers that need
// concurrent evaluation run one Interpreter per goroutine.
type Interpreter struct {
	graph *program.Graph

	state State
	stack []*CallFrame

	memory []rtvalue.Value
	ioLog  []rtvalue.Value

	hasResult bool
	result    rtvalue.Value

	runtimeErr error
	violation  *ContractViolation

	maxRecursionDepth int
	boundary          ModuleBoundaryChecker

	traceEnabled bool
	trace        []TraceEntry
	traceSeq     uint64

	pauseRequested bool
	pausedNode     ids.NodeID

	emitter   emit.Emitter
	metrics   MetricsRecorder
	programID string
	stepSeq   int
}

// New builds an Interpreter ready to evaluate entry with the given
// arguments. args must match entry's declared parameter count.
func New(g *program.Graph, entry ids.FunctionID, args []rtvalue.Value, opts ...Option) (*Interpreter, error) {
	def, ok := g.GetFunction(entry)
	if !ok {
		return nil, &InternalError{Reason: fmt.Sprintf("entry function %v not found", entry)}
	}
	if len(args) != len(def.Params) {
		return nil, &InternalError{Reason: fmt.Sprintf("entry function %v expects %d arguments, got %d", entry, len(def.Params), len(args))}
	}
	ip := &Interpreter{
		graph:             g,
		state:             StateReady,
		maxRecursionDepth: defaultMaxRecursionDepth,
	}
	for _, opt := range opts {
		opt(ip)
	}
	frame := newCallFrame(g, entry, args, nil, 0, 0, false)
	ip.stack = []*CallFrame{frame}
	return ip, nil
}

func (ip *Interpreter) State() State               { return ip.state }
func (ip *Interpreter) Err() error                 { return ip.runtimeErr }
func (ip *Interpreter) Violation() *ContractViolation { return ip.violation }
func (ip *Interpreter) Trace() []TraceEntry        { return ip.trace }
func (ip *Interpreter) IOLog() []rtvalue.Value     { return ip.ioLog }
func (ip *Interpreter) Memory() []rtvalue.Value    { return ip.memory }

// Result returns the entry function's return value, valid only once
// State() == StateCompleted.
func (ip *Interpreter) Result() (rtvalue.Value, bool) { return ip.result, ip.hasResult }

// PartialResults returns every node value computed so far across the
// live call stack, used to surface diagnostics on Error/ContractViolation.
func (ip *Interpreter) PartialResults() map[ids.NodeID]rtvalue.Value {
	out := make(map[ids.NodeID]rtvalue.Value)
	for _, f := range ip.stack {
		for id, v := range f.NodeValues {
			out[id] = v
		}
	}
	return out
}

func isRunnable(s State) bool { return s == StateReady || s == StateRunning }

// Run steps the interpreter until it reaches a non-running state.
func (ip *Interpreter) Run() {
	for isRunnable(ip.state) {
		ip.Step()
	}
}

// Pause requests a pause after the in-flight (or next) Step completes.
// Has no effect unless the interpreter is Ready or Running.
func (ip *Interpreter) Pause() {
	if isRunnable(ip.state) {
		ip.pauseRequested = true
	}
}

// Resume continues a Paused interpreter.
func (ip *Interpreter) Resume() {
	if ip.state == StatePaused {
		ip.state = StateRunning
	}
}

func (ip *Interpreter) currentFrame() *CallFrame {
	if len(ip.stack) == 0 {
		return nil
	}
	return ip.stack[len(ip.stack)-1]
}

// Step evaluates exactly one compute node and returns. No-op unless the
// interpreter is Ready or Running.
func (ip *Interpreter) Step() {
	if !isRunnable(ip.state) {
		return
	}
	if ip.state == StateReady {
		ip.state = StateRunning
	}

	start := time.Now()
	frame := ip.currentFrame()
	if frame == nil {
		ip.state = StateCompleted
		return
	}

	nodeID, ok := frame.popReady()
	if !ok {
		ip.transitionError(&InternalError{Reason: fmt.Sprintf("function %v deadlocked: no ready node", frame.Function)})
		ip.observeStep(nodeID, start)
		return
	}

	node, ok := ip.graph.GetComputeNode(nodeID)
	if !ok {
		ip.transitionError(&InternalError{Reason: fmt.Sprintf("node %v not found", nodeID)})
		ip.observeStep(nodeID, start)
		return
	}

	switch {
	case node.Op.Kind == ir.OpCall || node.Op.Kind == ir.OpIndirectCall:
		ip.stepCall(frame, nodeID, node)
	case node.Op.Kind == ir.OpReturn:
		ip.stepReturn(frame, nodeID)
	case node.Op.Kind.IsContract():
		ip.stepContract(frame, nodeID, node)
	case node.Op.Kind.IsBranchLike():
		ip.stepBranch(frame, nodeID, node)
	default:
		ip.stepDefault(frame, nodeID, node)
	}

	if ip.state == StateRunning && ip.pauseRequested {
		ip.state = StatePaused
		ip.pausedNode = nodeID
		ip.pauseRequested = false
	}

	ip.observeStep(nodeID, start)
}

// observeStep reports nodeID's evaluation to the injected emitter and
// metrics recorder, if any. Called once per Step regardless of the
// outcome — every executed node is an observable occurrence.
func (ip *Interpreter) observeStep(nodeID ids.NodeID, start time.Time) {
	status := stepStatus(ip.state)
	if ip.metrics != nil {
		ip.metrics.RecordStep(ip.programID, status, time.Since(start))
	}
	if ip.emitter != nil {
		ip.stepSeq++
		ip.emitter.Emit(emit.Event{
			ProgramID: ip.programID,
			Step:      ip.stepSeq,
			NodeID:    fmt.Sprintf("%v", nodeID),
			Msg:       "node_eval",
			Meta:      map[string]interface{}{"status": status},
		})
	}
}

func stepStatus(s State) string {
	switch s {
	case StateError:
		return "error"
	case StateContractViolation:
		return "contract_violation"
	default:
		return "success"
	}
}

func (ip *Interpreter) transitionError(err error) {
	ip.state = StateError
	ip.runtimeErr = err
}

func (ip *Interpreter) transitionContractViolation(v *ContractViolation) {
	ip.state = StateContractViolation
	ip.violation = v
}

func (ip *Interpreter) recordTrace(nodeID ids.NodeID, desc string, inputs []rtvalue.Value, output *rtvalue.Value) {
	if !ip.traceEnabled {
		return
	}
	ip.traceSeq++
	entry := TraceEntry{Node: nodeID, Sequence: ip.traceSeq, Description: desc, Inputs: append([]rtvalue.Value(nil), inputs...)}
	if output != nil {
		entry.Output, entry.HasOutput = *output, true
	}
	ip.trace = append(ip.trace, entry)
}

func (ip *Interpreter) gatherInputs(frame *CallFrame, nodeID ids.NodeID) []rtvalue.Value {
	edges := ip.graph.IncomingDataEdges(nodeID)
	out := make([]rtvalue.Value, len(edges))
	for i, e := range edges {
		out[i] = frame.NodeValues[e.Source]
	}
	return out
}

// propagateReadinessGeneric fires every outgoing edge of nodeID
// unconditionally — correct for any node that isn't branch-like, whose
// control successors (if any) are not gated by a taken-branch decision.
func (ip *Interpreter) propagateReadinessGeneric(frame *CallFrame, nodeID ids.NodeID) {
	for _, e := range ip.graph.OutgoingDataEdges(nodeID) {
		frame.Readiness[e.Target]++
		frame.schedule(e.Target)
	}
	for _, e := range ip.graph.OutgoingControlEdges(nodeID) {
		frame.ControlReady[e.Target] = true
		frame.schedule(e.Target)
	}
}

// propagateDataOnly fires nodeID's outgoing data edges only — used by
// branch-like nodes, whose control successors are activated separately
// based on which branch was taken.
func (ip *Interpreter) propagateDataOnly(frame *CallFrame, nodeID ids.NodeID) {
	for _, e := range ip.graph.OutgoingDataEdges(nodeID) {
		frame.Readiness[e.Target]++
		frame.schedule(e.Target)
	}
}

func (ip *Interpreter) stepDefault(frame *CallFrame, nodeID ids.NodeID, node *ir.ComputeNode) {
	inputs := ip.gatherInputs(frame, nodeID)

	var value rtvalue.Value
	var hasValue bool
	var err error
	if node.Op.Kind == ir.OpPhi {
		value, hasValue, err = ip.evalPhi(frame, nodeID)
	} else {
		value, hasValue, err = ip.evalOp(frame, nodeID, node.Op, inputs)
	}
	if err != nil {
		ip.transitionError(err)
		return
	}
	if hasValue {
		frame.NodeValues[nodeID] = value
	}
	frame.Evaluated[nodeID] = true

	if hasValue {
		ip.recordTrace(nodeID, node.Op.Kind.String(), inputs, &value)
	} else {
		ip.recordTrace(nodeID, node.Op.Kind.String(), inputs, nil)
	}
	ip.propagateReadinessGeneric(frame, nodeID)
}

// evalOp implements §4.5.5's per-op runtime semantics for every op kind
// that is neither a call, a return, a contract, nor branch-like (those
// mutate interpreter-level state and are handled by their own stepX
// functions).
func (ip *Interpreter) evalOp(frame *CallFrame, nodeID ids.NodeID, op ir.Op, inputs []rtvalue.Value) (rtvalue.Value, bool, error) {
	switch op.Kind {
	case ir.OpParameter:
		if op.Index < 0 || op.Index >= len(frame.Arguments) {
			return rtvalue.Value{}, false, &InternalError{Reason: fmt.Sprintf("parameter index %d out of range", op.Index)}
		}
		return frame.Arguments[op.Index], true, nil

	case ir.OpCaptureAccess:
		if op.Index < 0 || op.Index >= len(frame.Captures) {
			return rtvalue.Value{}, false, &InternalError{Reason: fmt.Sprintf("capture index %d out of range", op.Index)}
		}
		return frame.Captures[op.Index], true, nil

	case ir.OpAlloc:
		addr := len(ip.memory)
		ip.memory = append(ip.memory, rtvalue.Unit())
		return rtvalue.Pointer(addr), true, nil

	case ir.OpLoad:
		if len(inputs) < 1 {
			return rtvalue.Value{}, false, &InternalError{Reason: "Load missing input"}
		}
		addr := inputs[0].Addr
		if addr < 0 || addr >= len(ip.memory) {
			return rtvalue.Value{}, false, &OutOfBoundsAccessError{Node: nodeID, Index: addr, Size: len(ip.memory)}
		}
		return ip.memory[addr], true, nil

	case ir.OpStore:
		if len(inputs) < 2 {
			return rtvalue.Value{}, false, &InternalError{Reason: "Store missing inputs"}
		}
		addr := inputs[0].Addr
		if addr < 0 || addr >= len(ip.memory) {
			return rtvalue.Value{}, false, &OutOfBoundsAccessError{Node: nodeID, Index: addr, Size: len(ip.memory)}
		}
		ip.memory[addr] = inputs[1]
		return rtvalue.Value{}, false, nil

	case ir.OpPrint:
		var v rtvalue.Value
		if len(inputs) > 0 {
			v = inputs[0]
		}
		ip.ioLog = append(ip.ioLog, v)
		return rtvalue.Unit(), true, nil

	case ir.OpReadLine, ir.OpFileOpen, ir.OpFileRead, ir.OpFileWrite, ir.OpFileClose:
		return rtvalue.Int(rtvalue.KI64, 0), true, nil

	default:
		return EvalPureOp(ip.graph, nodeID, op, inputs)
	}
}

// evalPhi resolves a Phi by finding the single branch-like predecessor
// on its control edge, re-deriving which branch it took from the stored
// condition value, and reading the data input wired to the matching
// port. Falls back to the first available data input if the branch
// source's value isn't available (entry-block Phis with no real choice
// to make yet).
func (ip *Interpreter) evalPhi(frame *CallFrame, nodeID ids.NodeID) (rtvalue.Value, bool, error) {
	dataEdges := ip.graph.IncomingDataEdges(nodeID)
	if len(dataEdges) == 0 {
		return rtvalue.Value{}, false, &InternalError{Reason: fmt.Sprintf("Phi node %v has no data inputs", nodeID)}
	}

	var branchSrc ids.NodeID
	found := false
	for _, e := range ip.graph.IncomingControlEdges(nodeID) {
		if srcNode, ok := ip.graph.GetComputeNode(e.Source); ok && srcNode.Op.Kind.IsBranchLike() {
			branchSrc, found = e.Source, true
			break
		}
	}
	if !found {
		if v, ok := frame.NodeValues[dataEdges[0].Source]; ok {
			return v, true, nil
		}
		return rtvalue.Value{}, false, &InternalError{Reason: fmt.Sprintf("Phi node %v has no resolvable branch source", nodeID)}
	}

	branchVal, ok := frame.NodeValues[branchSrc]
	if !ok {
		if v, ok := frame.NodeValues[dataEdges[0].Source]; ok {
			return v, true, nil
		}
		return rtvalue.Value{}, false, &InternalError{Reason: fmt.Sprintf("Phi node %v: branch source has no value yet", nodeID)}
	}
	branchNode, _ := ip.graph.GetComputeNode(branchSrc)
	taken := determineTakenIndex(branchNode.Op, branchVal)
	wantPort := uint16(0)
	if taken != 0 {
		wantPort = 1
	}
	for _, e := range dataEdges {
		if e.TargetPort == wantPort {
			if v, ok := frame.NodeValues[e.Source]; ok {
				return v, true, nil
			}
		}
	}
	if v, ok := frame.NodeValues[dataEdges[0].Source]; ok {
		return v, true, nil
	}
	return rtvalue.Value{}, false, &InternalError{Reason: fmt.Sprintf("Phi node %v: no input value available for taken branch", nodeID)}
}

// determineTakenIndex maps a branch-like node's condition value to the
// branch index its control successors are tagged with: 0/1 for
// Branch/IfElse/Loop (true takes 0), the discriminant value itself for
// Match.
func determineTakenIndex(op ir.Op, cond rtvalue.Value) int {
	switch op.Kind {
	case ir.OpMatch:
		return int(uint16(cond.Int))
	default:
		if cond.Kind == rtvalue.KBool && cond.Bool {
			return 0
		}
		return 1
	}
}

func matchedControlTargets(g *program.Graph, nodeID ids.NodeID, taken int) []ids.NodeID {
	var out []ids.NodeID
	seen := make(map[ids.NodeID]bool)
	for _, e := range g.OutgoingControlEdges(nodeID) {
		if e.HasBranchIndex && int(e.BranchIndex) != taken {
			continue
		}
		if !seen[e.Target] {
			seen[e.Target] = true
			out = append(out, e.Target)
		}
	}
	return out
}

func (ip *Interpreter) stepBranch(frame *CallFrame, nodeID ids.NodeID, node *ir.ComputeNode) {
	inputs := ip.gatherInputs(frame, nodeID)
	cond := rtvalue.Bool(false)
	if len(inputs) > 0 {
		cond = inputs[0]
	} else if node.Op.Kind == ir.OpMatch {
		cond = rtvalue.Int(rtvalue.KI32, 0)
	}

	frame.NodeValues[nodeID] = cond
	frame.Evaluated[nodeID] = true

	taken := determineTakenIndex(node.Op, cond)
	targets := matchedControlTargets(ip.graph, nodeID, taken)

	if node.Op.Kind == ir.OpLoop && taken == 0 {
		ip.resetLoopBody(frame, nodeID, targets)
	} else {
		for _, t := range targets {
			frame.ControlReady[t] = true
			frame.schedule(t)
		}
	}
	ip.propagateDataOnly(frame, nodeID)
	ip.recordTrace(nodeID, node.Op.Kind.String(), inputs, &cond)
}

func (ip *Interpreter) stepContract(frame *CallFrame, nodeID ids.NodeID, node *ir.ComputeNode) {
	inputs := ip.gatherInputs(frame, nodeID)
	if len(inputs) == 0 {
		frame.Evaluated[nodeID] = true
		ip.recordTrace(nodeID, node.Op.Kind.String(), inputs, nil)
		ip.propagateReadinessGeneric(frame, nodeID)
		return
	}
	cond := inputs[0]
	if cond.Kind != rtvalue.KBool {
		ip.transitionError(&TypeMismatchAtRuntimeError{Node: nodeID})
		return
	}
	if cond.Bool {
		frame.Evaluated[nodeID] = true
		ip.recordTrace(nodeID, node.Op.Kind.String(), inputs, &cond)
		ip.propagateReadinessGeneric(frame, nodeID)
		return
	}

	kind := KindPrecondition
	switch node.Op.Kind {
	case ir.OpPostcondition:
		kind = KindPostcondition
	case ir.OpInvariant:
		kind = KindInvariant
	}
	v := &ContractViolation{
		Kind:           kind,
		ContractNode:   nodeID,
		Function:       frame.Function,
		Message:        node.Op.Message,
		Inputs:         append([]rtvalue.Value(nil), frame.Arguments...),
		Counterexample: collectCounterexample(ip.graph, frame, nodeID),
	}
	if kind == KindPostcondition && len(inputs) > 1 {
		v.HasReturn, v.ActualReturn = true, inputs[1]
	}
	ip.transitionContractViolation(v)
}

func (ip *Interpreter) stepReturn(frame *CallFrame, nodeID ids.NodeID) {
	inputs := ip.gatherInputs(frame, nodeID)
	retVal := rtvalue.Unit()
	if len(inputs) > 0 {
		retVal = inputs[0]
	}

	ip.stack = ip.stack[:len(ip.stack)-1]
	ip.recordTrace(nodeID, "Return", inputs, &retVal)

	if len(ip.stack) == 0 {
		ip.state = StateCompleted
		ip.result, ip.hasResult = retVal, true
		return
	}

	caller := ip.stack[len(ip.stack)-1]
	caller.NodeValues[frame.ReturnNode] = retVal
	caller.Evaluated[frame.ReturnNode] = true
	ip.propagateReadinessGeneric(caller, frame.ReturnNode)
}

func (ip *Interpreter) stepCall(frame *CallFrame, nodeID ids.NodeID, node *ir.ComputeNode) {
	op := node.Op
	inputs := ip.gatherInputs(frame, nodeID)

	var targetFid ids.FunctionID
	var captures []rtvalue.Value
	args := inputs
	if op.Kind == ir.OpCall {
		targetFid = op.Target
	} else {
		if len(inputs) == 0 {
			ip.transitionError(&InternalError{Reason: "IndirectCall missing function reference"})
			return
		}
		ref := inputs[0]
		args = inputs[1:]
		switch ref.Kind {
		case rtvalue.KFunctionRef:
			targetFid = ref.Function
		case rtvalue.KClosure:
			targetFid, captures = ref.Function, ref.Captures
		default:
			ip.transitionError(&TypeMismatchAtRuntimeError{Node: nodeID})
			return
		}
	}

	if len(ip.stack) >= ip.maxRecursionDepth {
		ip.transitionError(&RecursionLimitExceededError{Node: nodeID, Limit: ip.maxRecursionDepth})
		return
	}

	calleeDef, ok := ip.graph.GetFunction(targetFid)
	if !ok {
		ip.transitionError(&InternalError{Reason: fmt.Sprintf("call target %v not found", targetFid)})
		return
	}
	callerDef, _ := ip.graph.GetFunction(frame.Function)

	if ip.boundary != nil && callerDef != nil && callerDef.Module != calleeDef.Module {
		for i, p := range calleeDef.Params {
			if i >= len(args) {
				break
			}
			if ok, violation := ip.boundary.CheckBoundary(ip.graph, targetFid, i, p.Type, args[i]); !ok {
				ip.transitionContractViolation(violation)
				return
			}
		}
	}

	newFrame := newCallFrame(ip.graph, targetFid, args, captures, nodeID, 0, true)
	ip.stack = append(ip.stack, newFrame)
	ip.recordTrace(nodeID, op.Kind.String(), inputs, nil)
}

package program

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/lmlang/graphlang/ids"
	"github.com/lmlang/graphlang/ir"
)

// EventOrigin discriminates where a propagation event originated.
type EventOrigin int

const (
	Semantic EventOrigin = iota
	Compute
)

func (o EventOrigin) priority() int {
	if o == Semantic {
		return 0
	}
	return 1
}

// Envelope is a queued propagation event: a change originating in the
// semantic or compute layer that must re-derive summaries before it is
// considered applied.
type Envelope struct {
	ID       uint64
	Sequence uint64
	Origin   EventOrigin
	Kind     string
	Lineage  []uint64

	TargetFunction    ids.FunctionID
	HasTargetFunction bool
}

// Diagnostic is emitted by flush_propagation when two conflicting events
// for the same target cannot be automatically reconciled.
type Diagnostic struct {
	Target      ids.FunctionID
	Message     string
	Remediation string
}

// FlushReport summarizes one flush_propagation call.
type FlushReport struct {
	Processed int
	Applied   int
	Skipped   int
	// Refreshed lists the FunctionIDs whose semantic summary was
	// refreshed, deduplicated and sorted ascending.
	Refreshed   []ids.FunctionID
	Diagnostics []Diagnostic
}

// ErrPropagationLoopDetectedReplay is returned (wrapping
// ErrPropagationLoopDetected) when the replay limit is exceeded.
type ErrPropagationLoopDetectedReplay struct{ Limit int }

func (e *ErrPropagationLoopDetectedReplay) Error() string {
	return fmt.Sprintf("program: propagation replay limit (%d) exceeded", e.Limit)
}
func (e *ErrPropagationLoopDetectedReplay) Unwrap() error { return ErrPropagationLoopDetected }

type recordedEvent struct {
	origin EventOrigin
	kind   string
}

// propagationQueue is the explicit-flush queue described in §4.3.1. It
// is never drained implicitly by a mutation — only by an explicit
// FlushPropagation call.
type propagationQueue struct {
	pending    []Envelope
	nextID     uint64
	nextSeq    uint64
	replayCap  int
	// lastByTarget holds the last event applied to each target, kept
	// across flushes for conflict classification.
	lastByTarget map[ids.FunctionID]recordedEvent
}

func newPropagationQueue() *propagationQueue {
	return &propagationQueue{replayCap: 1024}
}

func (q *propagationQueue) clone() *propagationQueue {
	c := &propagationQueue{
		pending:   append([]Envelope(nil), q.pending...),
		nextID:    q.nextID,
		nextSeq:   q.nextSeq,
		replayCap: q.replayCap,
	}
	if q.lastByTarget != nil {
		c.lastByTarget = make(map[ids.FunctionID]recordedEvent, len(q.lastByTarget))
		for k, v := range q.lastByTarget {
			c.lastByTarget[k] = v
		}
	}
	return c
}

// EnqueuePropagation appends an envelope describing a change to target
// that must be re-derived on the next flush. lineage records the chain
// of event IDs that caused this one, used by the loop-break check.
func (g *Graph) EnqueuePropagation(origin EventOrigin, kind string, target ids.FunctionID, lineage []uint64) uint64 {
	q := g.queue
	id := q.nextID
	q.nextID++
	seq := q.nextSeq
	q.nextSeq++
	q.pending = append(q.pending, Envelope{
		ID: id, Sequence: seq, Origin: origin, Kind: kind,
		TargetFunction: target, HasTargetFunction: true,
		Lineage: append([]uint64(nil), lineage...),
	})
	return id
}

// SetReplayLimit overrides the default replay bound (1024) used by
// FlushPropagation to detect runaway propagation loops.
func (g *Graph) SetReplayLimit(n int) { g.queue.replayCap = n }

// FlushPropagation drains the queue deterministically: repeatedly
// picking the next event by (priority(origin), sequence, id), applying
// loop-break and fingerprint dedup, resolving a conflict class against
// the last event applied to the same target, and — if Mergeable —
// refreshing the affected function's (and its module's) semantic
// summary. See §4.3.1 for the full algorithm this implements.
func (g *Graph) FlushPropagation() (FlushReport, error) {
	q := g.queue
	var report FlushReport
	seenFingerprints := make(map[string]bool)
	if q.lastByTarget == nil {
		q.lastByTarget = make(map[ids.FunctionID]recordedEvent)
	}
	lastByTarget := q.lastByTarget
	refreshedSet := make(map[ids.FunctionID]bool)

	work := make([]int, 0, len(q.pending))
	for i := range q.pending {
		work = append(work, i)
	}

	processed := 0
	for len(work) > 0 {
		if processed >= q.replayCap {
			return report, &ErrPropagationLoopDetectedReplay{Limit: q.replayCap}
		}
		// Pick the next event by (priority, sequence, id).
		best := 0
		for i := 1; i < len(work); i++ {
			a, b := q.pending[work[i]], q.pending[work[best]]
			if lessEnvelope(a, b) {
				best = i
			}
		}
		idx := work[best]
		work = append(work[:best], work[best+1:]...)
		ev := q.pending[idx]

		processed++
		report.Processed++

		if containsU64(ev.Lineage, ev.ID) {
			report.Skipped++
			continue
		}

		fp := fingerprint(ev)
		if seenFingerprints[fp] {
			report.Skipped++
			continue
		}
		seenFingerprints[fp] = true

		class := classify(lastByTarget, ev)
		switch class {
		case classSkipSemantic, classSkipCompute:
			report.Skipped++
			continue
		case classDiagnostic:
			report.Skipped++
			report.Diagnostics = append(report.Diagnostics, Diagnostic{
				Target:      ev.TargetFunction,
				Message:     fmt.Sprintf("conflicting propagation events for target %v: kinds %q vs %q", ev.TargetFunction, lastByTarget[ev.TargetFunction].kind, ev.Kind),
				Remediation: "reconcile by issuing a single edit batch covering both changes, then re-flush",
			})
			continue
		}

		lastByTarget[ev.TargetFunction] = recordedEvent{origin: ev.Origin, kind: ev.Kind}
		if ev.HasTargetFunction {
			if g.refreshFunctionSummary(ev.TargetFunction) {
				refreshedSet[ev.TargetFunction] = true
			}
		}
		report.Applied++
	}

	q.pending = nil

	for fid := range refreshedSet {
		report.Refreshed = append(report.Refreshed, fid)
	}
	sort.Slice(report.Refreshed, func(i, j int) bool { return report.Refreshed[i] < report.Refreshed[j] })
	return report, nil
}

type conflictClass int

const (
	classMergeable conflictClass = iota
	classSkipSemantic
	classSkipCompute
	classDiagnostic
)

func classify(last map[ids.FunctionID]recordedEvent, ev Envelope) conflictClass {
	prior, ok := last[ev.TargetFunction]
	if !ok {
		return classMergeable
	}
	if prior.origin == ev.Origin {
		return classMergeable
	}
	if prior.kind == ev.Kind {
		// The tier that already holds authority for this target and kind
		// keeps it; the opposing origin's conflicting event is dropped.
		if prior.origin == Semantic {
			return classSkipCompute // SemanticAuthoritative: skip the Compute event.
		}
		return classSkipSemantic // ComputeAuthoritative: skip the Semantic event.
	}
	return classDiagnostic
}

func fingerprint(ev Envelope) string {
	return ev.Kind + "|" + strconv.FormatUint(uint64(ev.TargetFunction), 10)
}

func lessEnvelope(a, b Envelope) bool {
	pa, pb := a.Origin.priority(), b.Origin.priority()
	if pa != pb {
		return pa < pb
	}
	if a.Sequence != b.Sequence {
		return a.Sequence < b.Sequence
	}
	return a.ID < b.ID
}

func containsU64(s []uint64, v uint64) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

// refreshFunctionSummary recomputes fid's FunctionSummary deterministically
// from the current graph state and bubbles a derived complexity total to
// its owning module's semantic node. Returns false if fid no longer
// exists (e.g. removed after the event was enqueued).
func (g *Graph) refreshFunctionSummary(fid ids.FunctionID) bool {
	def, ok := g.functions[fid]
	if !ok {
		return false
	}
	semIdx, ok := g.functionSemanticIndex[fid]
	if !ok {
		return false
	}
	node := g.semanticNodes[semIdx]

	nodeIDs := g.NodesOwnedBy(fid)
	calls := collectCalledFunctions(g, nodeIDs)

	node.Summary.Name = def.Name
	node.Summary.FunctionID = fid
	node.Summary.Module = def.Module
	node.Summary.Visibility = def.Visibility
	node.Summary.Signature = signatureString(def)
	node.Summary.Complexity = len(nodeIDs)
	node.Summary.ProvenanceVersion++
	node.Summary.CalledFunctions = calls
	node.Summary.SummaryText = summaryText(def, len(nodeIDs), calls)
	node.Summary.Embedding = contentEmbedding(node.Summary.SummaryText)

	g.syncCallsEdges(semIdx, calls)
	g.bubbleModuleSummary(def.Module)
	return true
}

func collectCalledFunctions(g *Graph, nodeIDs []ids.NodeID) []ids.FunctionID {
	seen := make(map[ids.FunctionID]bool)
	var out []ids.FunctionID
	for _, nid := range nodeIDs {
		n := g.nodes[nid]
		var target ids.FunctionID
		var has bool
		switch n.Op.Kind {
		case ir.OpCall:
			target, has = n.Op.Target, true
		case ir.OpMakeClosure:
			target, has = n.Op.ClosureFunction, true
		}
		if has && !seen[target] {
			seen[target] = true
			out = append(out, target)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (g *Graph) syncCallsEdges(callerSemIdx uint32, calls []ids.FunctionID) {
	kept := g.semanticEdges[:0]
	for _, e := range g.semanticEdges {
		if e.Kind == ir.Calls && e.Source == callerSemIdx {
			continue
		}
		kept = append(kept, e)
	}
	g.semanticEdges = kept
	for _, fid := range calls {
		if targetIdx, ok := g.functionSemanticIndex[fid]; ok {
			g.semanticEdges = append(g.semanticEdges, &ir.SemanticEdge{
				Kind: ir.Calls, Source: callerSemIdx, Target: targetIdx,
			})
		}
	}
}

func (g *Graph) bubbleModuleSummary(mid ids.ModuleID) {
	modIdx, ok := g.moduleSemanticIndex[mid]
	if !ok {
		return
	}
	mod, ok := g.Modules.Get(mid)
	if !ok {
		return
	}
	total := 0
	for _, fid := range mod.Functions {
		if semIdx, ok := g.functionSemanticIndex[fid]; ok {
			total += g.semanticNodes[semIdx].Summary.Complexity
		}
	}
	node := g.semanticNodes[modIdx]
	if node.Metadata == nil {
		node.Metadata = map[string]string{}
	}
	node.Metadata["complexity"] = strconv.Itoa(total)
	node.Metadata["function_count"] = strconv.Itoa(len(mod.Functions))
}

func summaryText(def *ir.FunctionDef, nodeCount int, calls []ids.FunctionID) string {
	var sb strings.Builder
	sb.WriteString(def.Name)
	sb.WriteString("|")
	sb.WriteString(signatureString(def))
	sb.WriteString("|nodes=")
	sb.WriteString(strconv.Itoa(nodeCount))
	sb.WriteString("|calls=")
	for i, c := range calls {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(strconv.FormatUint(uint64(c), 10))
	}
	return sb.String()
}

// contentEmbedding derives a deterministic, content-addressed pseudo
// vector from the summary text bytes. It is intentionally not a learned
// embedding: two runs over identical input must produce identical
// output (§9, Propagation determinism).
func contentEmbedding(text string) []float64 {
	const dims = 8
	out := make([]float64, dims)
	for i, b := range []byte(text) {
		out[i%dims] += float64(b)
	}
	for i := range out {
		out[i] = out[i] / float64(len(text)+1)
	}
	return out
}

// Package editservice implements propose_edit's three modes (§4.7.2),
// undo/redo, and checkpoint operations as a single-owner service over a
// *program.Graph — the role the teacher's graph.Engine plays over a
// workflow's state, here specialized to a mutable program graph instead
// of an immutable-delta workflow state.
package editservice

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lmlang/graphlang/editlog"
	"github.com/lmlang/graphlang/emit"
	"github.com/lmlang/graphlang/ids"
	"github.com/lmlang/graphlang/program"
	"github.com/lmlang/graphlang/typecheck"
)

// MetricsRecorder is the narrow slice of the metrics package's
// Collector that editservice needs, kept local to avoid a direct
// dependency on metrics' Prometheus types.
type MetricsRecorder interface {
	RecordFlush(programID string, d time.Duration)
	IncrementConflicts(programID, conflictType string)
	RecordEditMutation(programID, kind, outcome string)
	SetEditLogDepth(programID string, depth int)
}

// Option configures a Service at construction time.
type Option func(*Service)

// WithEmitter wires an emit.Emitter that receives one Event per
// committed propose_edit call (a batch emits a single event),
// undo/redo, checkpoint operation, and propagation flush.
func WithEmitter(e emit.Emitter) Option {
	return func(s *Service) { s.emitter = e }
}

// WithMetrics wires a MetricsRecorder observing edit mutations,
// propagation flushes, and edit-log depth.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Service) { s.metrics = m }
}

// GraphStore is the persistence seam propose_edit calls into after a
// successful commit, implemented by the store package. It is declared
// here rather than imported from store to keep editservice's only
// dependency on persistence a narrow interface, not a concrete driver.
type GraphStore interface {
	SaveProgram(ctx context.Context, programID string, g *program.Graph) error
}

// Service owns one program's live graph and serializes every mutation,
// simulation, and query against it — the spec's "ProgramGraph is
// single-owner: mutations require exclusive access, reads can be
// shared" rule, enforced here the same way the teacher's graph.Engine
// guards its scheduler state: a single sync.RWMutex, write-locked for
// mutation and read-locked for inspection.
type Service struct {
	mu        sync.RWMutex
	programID string
	graph     *program.Graph
	log       *editlog.EditLog
	cps       *editlog.Checkpoints
	store     GraphStore // nil is valid: persistence becomes a no-op

	emitter emit.Emitter     // nil is valid: observability becomes a no-op
	metrics MetricsRecorder  // nil is valid: metrics become a no-op
}

// New constructs a Service over an existing graph. store may be nil if
// this program is not yet backed by persistence.
func New(programID string, g *program.Graph, store GraphStore, opts ...Option) *Service {
	s := &Service{
		programID: programID,
		graph:     g,
		log:       editlog.New(),
		cps:       editlog.NewCheckpoints(),
		store:     store,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// emit reports an event through the injected emitter, if any.
func (s *Service) emit(msg string, meta map[string]interface{}) {
	if s.emitter == nil {
		return
	}
	s.emitter.Emit(emit.Event{ProgramID: s.programID, Msg: msg, Meta: meta})
}

// Graph returns the current live graph. Callers must not mutate it
// directly; go through ProposeEdit.
func (s *Service) Graph() *program.Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph
}

// ProposeEditRequest is the input to ProposeEdit.
type ProposeEditRequest struct {
	Mutations      []editlog.Mutation
	DryRun         bool
	Description    string
	ExpectedHashes []string // if non-empty, must match HashGraph(live graph) before applying
}

// ProposeEditResult reports what propose_edit did.
type ProposeEditResult struct {
	Valid     bool
	Committed bool

	CreatedNodes     []ids.NodeID
	CreatedEdges     []ids.EdgeID
	CreatedFunctions []ids.FunctionID
	CreatedModules   []ids.ModuleID

	Errors []string

	LogEntry editlog.LogEntry
}

// ProposeEdit implements §4.7.2's three modes: dry run, single mutation,
// and batch (>1 mutation).
func (s *Service) ProposeEdit(ctx context.Context, req ProposeEditRequest) (ProposeEditResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(req.ExpectedHashes) > 0 {
		current := editlog.HashGraph(s.graph)
		if !containsHash(req.ExpectedHashes, current) {
			return ProposeEditResult{Valid: false, Committed: false,
				Errors: []string{fmt.Sprintf("expected_hashes mismatch: live graph is %s", current)}}, nil
		}
	}

	if req.DryRun {
		return s.dryRun(req.Mutations), nil
	}
	if len(req.Mutations) <= 1 {
		return s.applySingle(ctx, req)
	}
	return s.applyBatch(ctx, req)
}

func containsHash(hashes []string, h string) bool {
	for _, candidate := range hashes {
		if candidate == h {
			return true
		}
	}
	return false
}

// dryRun clones the live graph, applies every mutation to the clone,
// validates, and discards the clone regardless of outcome. It never
// touches s.graph, s.log, or s.store.
func (s *Service) dryRun(mutations []editlog.Mutation) ProposeEditResult {
	clone := s.graph.Clone()
	result := ProposeEditResult{Valid: true}

	for _, m := range mutations {
		cmd, err := editlog.Apply(clone, m)
		if err != nil {
			result.Valid = false
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		recordCreated(&result, cmd)
	}

	for _, verr := range typecheck.ValidateGraph(clone) {
		result.Valid = false
		result.Errors = append(result.Errors, verr.Error())
	}

	return result
}

// applySingle is mode 2: apply straight to the live graph; on any
// validation error, invert the one command to revert, leaving the live
// graph exactly as it was.
func (s *Service) applySingle(ctx context.Context, req ProposeEditRequest) (ProposeEditResult, error) {
	if len(req.Mutations) == 0 {
		return ProposeEditResult{Valid: true, Committed: true}, nil
	}
	m := req.Mutations[0]

	cmd, err := editlog.Apply(s.graph, m)
	if err != nil {
		s.recordMutation(m.Kind.String(), "rejected")
		return ProposeEditResult{Valid: false, Committed: false, Errors: []string{err.Error()}}, nil
	}

	if verrs := typecheck.ValidateGraph(s.graph); len(verrs) > 0 {
		if revertErr := cmd.Invert(s.graph); revertErr != nil {
			return ProposeEditResult{}, fmt.Errorf("editservice: failed to revert after validation error: %w", revertErr)
		}
		errs := make([]string, len(verrs))
		for i, e := range verrs {
			errs[i] = e.Error()
		}
		s.recordMutation(m.Kind.String(), "rejected")
		return ProposeEditResult{Valid: false, Committed: false, Errors: errs}, nil
	}

	entry := s.log.Append(req.Description, []editlog.EditCommand{cmd})
	if err := s.persist(ctx); err != nil {
		return ProposeEditResult{}, err
	}

	result := ProposeEditResult{Valid: true, Committed: true, LogEntry: entry}
	recordCreated(&result, cmd)
	s.recordMutation(m.Kind.String(), "committed")
	s.emit("propose_edit", map[string]interface{}{"mode": "single", "kind": m.Kind.String()})
	return result, nil
}

// recordMutation reports one mutation's kind and outcome to the
// injected metrics recorder and updates the edit-log depth gauge.
func (s *Service) recordMutation(kind, outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordEditMutation(s.programID, kind, outcome)
	s.metrics.SetEditLogDepth(s.programID, len(s.log.Entries()))
}

// applyBatch is mode 3: stage every mutation on a clone; only on full
// success does the clone replace the live graph, atomically.
func (s *Service) applyBatch(ctx context.Context, req ProposeEditRequest) (ProposeEditResult, error) {
	clone := s.graph.Clone()
	commands := make([]editlog.EditCommand, 0, len(req.Mutations))
	result := ProposeEditResult{Valid: true}

	for _, m := range req.Mutations {
		cmd, err := editlog.Apply(clone, m)
		if err != nil {
			s.recordMutation(m.Kind.String(), "rejected")
			return ProposeEditResult{Valid: false, Committed: false, Errors: []string{err.Error()}}, nil
		}
		commands = append(commands, cmd)
		recordCreated(&result, cmd)
	}

	if verrs := typecheck.ValidateGraph(clone); len(verrs) > 0 {
		errs := make([]string, len(verrs))
		for i, e := range verrs {
			errs[i] = e.Error()
		}
		for _, m := range req.Mutations {
			s.recordMutation(m.Kind.String(), "rejected")
		}
		return ProposeEditResult{Valid: false, Committed: false, Errors: errs}, nil
	}

	s.graph = clone
	entry := s.log.Append(req.Description, commands)
	if err := s.persist(ctx); err != nil {
		return ProposeEditResult{}, err
	}

	result.Committed = true
	result.LogEntry = entry
	for _, m := range req.Mutations {
		s.recordMutation(m.Kind.String(), "committed")
	}
	s.emit("propose_edit", map[string]interface{}{"mode": "batch", "count": len(req.Mutations)})
	return result, nil
}

func recordCreated(result *ProposeEditResult, cmd editlog.EditCommand) {
	switch cmd.Mutation.Kind {
	case editlog.InsertNode:
		result.CreatedNodes = append(result.CreatedNodes, cmd.CreatedNode)
	case editlog.AddEdge, editlog.AddControlEdge:
		result.CreatedEdges = append(result.CreatedEdges, cmd.CreatedEdge)
	case editlog.AddFunction:
		result.CreatedFunctions = append(result.CreatedFunctions, cmd.CreatedFunction)
	case editlog.AddModule:
		result.CreatedModules = append(result.CreatedModules, cmd.CreatedModule)
	}
}

func (s *Service) persist(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	if err := s.store.SaveProgram(ctx, s.programID, s.graph); err != nil {
		return fmt.Errorf("editservice: persist program %s: %w", s.programID, err)
	}
	return nil
}

// Undo pops the newest log entry and inverts it against the live graph.
func (s *Service) Undo(ctx context.Context) (editlog.LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, err := s.log.Undo(s.graph)
	if err != nil {
		return editlog.LogEntry{}, err
	}
	if err := s.persist(ctx); err != nil {
		return editlog.LogEntry{}, err
	}
	s.emit("undo", map[string]interface{}{"description": entry.Description})
	return entry, nil
}

// Redo reapplies the most recently undone log entry.
func (s *Service) Redo(ctx context.Context) (editlog.LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, err := s.log.Redo(s.graph)
	if err != nil {
		return editlog.LogEntry{}, err
	}
	if err := s.persist(ctx); err != nil {
		return editlog.LogEntry{}, err
	}
	s.emit("redo", map[string]interface{}{"description": entry.Description})
	return entry, nil
}

// Entries returns the committed edit history, oldest first.
func (s *Service) Entries() []editlog.LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.log.Entries()
}

// CreateCheckpoint snapshots the current graph under name.
func (s *Service) CreateCheckpoint(name, description string) *editlog.Checkpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := s.cps.Create(s.graph, name, description, time.Now())
	s.emit("checkpoint_created", map[string]interface{}{"name": name})
	return cp
}

// RestoreCheckpoint replaces the live graph with a clone of the named
// checkpoint's snapshot.
func (s *Service) RestoreCheckpoint(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	restored, err := s.cps.Restore(name)
	if err != nil {
		return err
	}
	s.graph = restored
	if err := s.persist(ctx); err != nil {
		return err
	}
	s.emit("checkpoint_restored", map[string]interface{}{"name": name})
	return nil
}

// FlushPropagation drains the live graph's propagation queue, persists
// the result, and reports the flush through the injected emitter and
// metrics recorder — the editservice-level wrapper around
// (*program.Graph).FlushPropagation referenced by the HTTP surface's
// flush_propagation operation.
func (s *Service) FlushPropagation(ctx context.Context) (program.FlushReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	report, err := s.graph.FlushPropagation()
	if s.metrics != nil {
		s.metrics.RecordFlush(s.programID, time.Since(start))
		for range report.Diagnostics {
			s.metrics.IncrementConflicts(s.programID, "unresolved_conflict")
		}
	}
	if err != nil {
		return report, err
	}
	if persistErr := s.persist(ctx); persistErr != nil {
		return report, persistErr
	}
	s.emit("flush_propagation", map[string]interface{}{
		"processed": report.Processed,
		"applied":   report.Applied,
		"skipped":   report.Skipped,
	})
	return report, nil
}

// ListCheckpoints returns every checkpoint ever taken, oldest first.
func (s *Service) ListCheckpoints() []*editlog.Checkpoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cps.List()
}

// DiffVersions computes the delta between two named checkpoints. An
// empty name refers to the current live graph.
func (s *Service) DiffVersions(from, to string) (editlog.GraphDiff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fromGraph, err := s.resolveVersion(from)
	if err != nil {
		return editlog.GraphDiff{}, err
	}
	toGraph, err := s.resolveVersion(to)
	if err != nil {
		return editlog.GraphDiff{}, err
	}
	return editlog.Diff(fromGraph, toGraph), nil
}

func (s *Service) resolveVersion(name string) (*program.Graph, error) {
	if name == "" {
		return s.graph, nil
	}
	cp, err := s.cps.Latest(name)
	if err != nil {
		return nil, err
	}
	return cp.Graph, nil
}

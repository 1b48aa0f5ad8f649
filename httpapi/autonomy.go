package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/lmlang/graphlang/codegen"
	"github.com/lmlang/graphlang/editservice"
	"github.com/lmlang/graphlang/ids"
	"github.com/lmlang/graphlang/interp"
	"github.com/lmlang/graphlang/lmtype"
	"github.com/lmlang/graphlang/planner"
	"github.com/lmlang/graphlang/rtvalue"
	"github.com/lmlang/graphlang/typecheck"
)

func (s *Server) registerAutonomyRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /programs/{id}/autonomy/plan", s.handleAutonomyPlan)
}

type autonomyActionResult struct {
	Kind   planner.ActionKind `json:"kind"`
	Ok     bool               `json:"ok"`
	Error  string             `json:"error,omitempty"`
	Result interface{}        `json:"result,omitempty"`
}

type autonomyPlanResponse struct {
	Executed []autonomyActionResult `json:"executed"`
}

// handleAutonomyPlan validates the whole envelope before executing any
// action, then runs the actions in order, stopping at the first one
// that fails. A submitted Failure envelope is accepted but executes
// nothing — the planner has already declared it could not find a plan.
func (s *Server) handleAutonomyPlan(w http.ResponseWriter, r *http.Request) {
	if !s.planLimiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "rate_limited", "autonomy plan submissions are rate limited")
		return
	}
	svc, ok := s.serviceOrNotFound(w, r)
	if !ok {
		return
	}

	var envelope planner.AutonomyPlanEnvelope
	if err := decodeJSON(r, &envelope); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if violations := envelope.Validate(); len(violations) > 0 {
		writeErrorDetails(w, http.StatusBadRequest, "validation_failed", "autonomy plan envelope failed validation", violations)
		return
	}
	if envelope.Failure != nil {
		writeJSON(w, http.StatusOK, autonomyPlanResponse{})
		return
	}

	programID := r.PathValue("id")
	resp := autonomyPlanResponse{}
	for _, action := range envelope.Actions {
		result := s.executeAutonomyAction(r.Context(), programID, svc, action)
		resp.Executed = append(resp.Executed, result)
		if !result.Ok {
			break
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) executeAutonomyAction(ctx context.Context, programID string, svc *editservice.Service, action planner.AutonomyPlanAction) autonomyActionResult {
	res := autonomyActionResult{Kind: action.Kind}

	switch action.Kind {
	case planner.ActionMutateBatch:
		out, err := svc.ProposeEdit(ctx, editservice.ProposeEditRequest{
			Mutations:   action.Mutations,
			DryRun:      action.DryRun,
			Description: action.Description,
		})
		if err != nil {
			res.Error = err.Error()
			return res
		}
		res.Ok = out.Valid
		res.Result = out
		if !out.Valid {
			res.Error = fmt.Sprintf("%d mutation error(s)", len(out.Errors))
		}

	case planner.ActionVerify:
		errs := typecheck.ValidateGraph(svc.Graph())
		res.Ok = len(errs) == 0
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		res.Result = msgs
		if !res.Ok {
			res.Error = fmt.Sprintf("%d type error(s)", len(errs))
		}

	case planner.ActionCompile:
		optLevel, ok := parseOptLevel(string(action.OptLevel))
		if !ok {
			res.Error = "invalid opt_level"
			return res
		}
		result, err := codegen.NewReferenceEmitter().Compile(ctx, svc.Graph(), codegen.CompileOptions{
			OptLevel:      optLevel,
			TargetTriple:  action.TargetTriple,
			DebugSymbols:  action.DebugSymbols,
			EntryFunction: action.EntryFunction,
			OutputDir:     action.OutputDir,
		})
		if err != nil {
			res.Error = err.Error()
			return res
		}
		res.Ok = true
		res.Result = result

	case planner.ActionSimulate:
		out, err := s.runSimulateAction(ctx, programID, svc, action)
		if err != nil {
			res.Error = err.Error()
			return res
		}
		res.Ok = out.Error == "" && out.Violation == nil
		res.Result = out

	case planner.ActionInspect:
		res.Ok = true
		res.Result = inspectAction(svc, action)

	case planner.ActionHistory:
		out, err := runHistoryAction(ctx, svc, action)
		if err != nil {
			res.Error = err.Error()
			return res
		}
		res.Ok = true
		res.Result = out

	default:
		res.Error = fmt.Sprintf("unrecognized action kind %q", action.Kind)
	}
	return res
}

func inspectAction(svc *editservice.Service, action planner.AutonomyPlanAction) interface{} {
	g := svc.Graph()
	type hit struct {
		NodeID uint32 `json:"node_id"`
		Kind   string `json:"kind"`
	}
	var hits []hit
	for id, n := range g.Nodes() {
		if n.Op.Kind.String() == action.Query {
			hits = append(hits, hit{NodeID: uint32(id), Kind: n.Op.Kind.String()})
			if action.MaxResults > 0 && len(hits) >= action.MaxResults {
				break
			}
		}
	}
	return hits
}

func runHistoryAction(ctx context.Context, svc *editservice.Service, action planner.AutonomyPlanAction) (interface{}, error) {
	switch action.Operation {
	case planner.HistoryListEntries:
		return svc.Entries(), nil
	case planner.HistoryListCheckpoints:
		return svc.ListCheckpoints(), nil
	case planner.HistoryUndo:
		return svc.Undo(ctx)
	case planner.HistoryRedo:
		return svc.Redo(ctx)
	case planner.HistoryRestoreCheckpoint:
		if err := svc.RestoreCheckpoint(ctx, action.CheckpointName); err != nil {
			return nil, err
		}
		return struct {
			Restored string `json:"restored"`
		}{Restored: action.CheckpointName}, nil
	case planner.HistoryDiff:
		return svc.DiffVersions(action.FromVersion, action.ToVersion)
	default:
		return nil, fmt.Errorf("unrecognized history operation %q", action.Operation)
	}
}

// runSimulateAction decodes a plan's string-encoded inputs (one per
// declared parameter) with parseDecimalLiteral, which unwraps each
// string and then applies the same coercion the direct /simulate
// endpoint uses; a plan action's Inputs field is a flat []string rather
// than arbitrary JSON.
func (s *Server) runSimulateAction(ctx context.Context, programID string, svc *editservice.Service, action planner.AutonomyPlanAction) (simulateResponse, error) {
	g := svc.Graph()
	fid, err := parseFunctionID(action.FunctionID)
	if err != nil {
		return simulateResponse{}, err
	}
	def, ok := g.GetFunction(fid)
	if !ok {
		return simulateResponse{}, fmt.Errorf("no such function %q", action.FunctionID)
	}
	if len(action.Inputs) != len(def.Params) {
		return simulateResponse{}, fmt.Errorf("function expects %d arguments, got %d", len(def.Params), len(action.Inputs))
	}

	args := make([]rtvalue.Value, len(action.Inputs))
	for i, lit := range action.Inputs {
		v, err := parseDecimalLiteral(g.Types, def.Params[i].Type, lit)
		if err != nil {
			return simulateResponse{}, err
		}
		args[i] = v
	}

	opts := s.newInterpreterOptions(programID)
	opts = append(opts, interp.WithTrace(action.TraceEnabled))
	ip, err := interp.New(g, fid, args, opts...)
	if err != nil {
		return simulateResponse{}, err
	}

	s.beginRun(programID)
	ip.Run()
	s.endRun(programID)

	resp := simulateResponse{State: stateName(ip.State())}
	if result, ok := ip.Result(); ok {
		resp.Result = &result
	}
	if err := ip.Err(); err != nil {
		resp.Error = err.Error()
	}
	resp.Violation = ip.Violation()
	if action.TraceEnabled {
		resp.Trace = ip.Trace()
	}
	return resp, nil
}

func parseFunctionID(raw string) (ids.FunctionID, error) {
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("function_id %q is not a valid function id", raw)
	}
	return ids.FunctionID(n), nil
}

// parseDecimalLiteral decodes a plan action's string-encoded input (a
// JSON-literal-shaped value: a number, "true"/"false", or a quoted
// string) and applies the same coercion rules the JSON simulate
// endpoint uses.
func parseDecimalLiteral(reg *lmtype.Registry, target ids.TypeID, lit string) (rtvalue.Value, error) {
	var decoded interface{}
	if err := json.Unmarshal([]byte(lit), &decoded); err != nil {
		decoded = lit
	}
	return coerceDecoded(reg, target, decoded)
}

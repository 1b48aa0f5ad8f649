package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/lmlang/graphlang/codegen"
	"github.com/lmlang/graphlang/ids"
	"github.com/lmlang/graphlang/interp"
	"github.com/lmlang/graphlang/lmtype"
	"github.com/lmlang/graphlang/rtvalue"
)

func (s *Server) registerSimulateRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /programs/{id}/simulate", s.handleSimulate)
	mux.HandleFunc("POST /programs/{id}/compile", s.handleCompile)
}

type simulateRequest struct {
	FunctionID   uint32            `json:"function_id"`
	Inputs       []json.RawMessage `json:"inputs"`
	TraceEnabled bool              `json:"trace_enabled,omitempty"`
}

type simulateResponse struct {
	State     string              `json:"state"`
	Result    *rtvalue.Value      `json:"result,omitempty"`
	Error     string              `json:"error,omitempty"`
	Violation *interp.ContractViolation `json:"violation,omitempty"`
	Trace     []interp.TraceEntry `json:"trace,omitempty"`
}

func stateName(st interp.State) string {
	switch st {
	case interp.StateReady:
		return "Ready"
	case interp.StateRunning:
		return "Running"
	case interp.StatePaused:
		return "Paused"
	case interp.StateCompleted:
		return "Completed"
	case interp.StateError:
		return "Error"
	default:
		return "Unknown"
	}
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.serviceOrNotFound(w, r)
	if !ok {
		return
	}
	var req simulateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	g := svc.Graph()
	fid := ids.FunctionID(req.FunctionID)
	def, ok := g.GetFunction(fid)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "no such function")
		return
	}
	if len(req.Inputs) != len(def.Params) {
		writeError(w, http.StatusBadRequest, "arity_mismatch",
			fmt.Sprintf("function expects %d arguments, got %d", len(def.Params), len(req.Inputs)))
		return
	}

	args := make([]rtvalue.Value, len(req.Inputs))
	for i, raw := range req.Inputs {
		v, err := coerceJSONValue(g.Types, def.Params[i].Type, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
			return
		}
		args[i] = v
	}

	programID := r.PathValue("id")
	opts := s.newInterpreterOptions(programID)
	opts = append(opts, interp.WithTrace(req.TraceEnabled))
	ip, err := interp.New(g, fid, args, opts...)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
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
	if req.TraceEnabled {
		resp.Trace = ip.Trace()
	}
	writeJSON(w, http.StatusOK, resp)
}

// coerceJSONValue applies the wire-format coercion rules: a JSON number
// becomes the target type's integer or float variant, null becomes
// Unit, a numeric-looking string is parsed if the target is numeric, an
// array becomes an rtvalue.Array of coerced elements, and an object is
// unsupported.
func coerceJSONValue(reg *lmtype.Registry, target ids.TypeID, raw json.RawMessage) (rtvalue.Value, error) {
	var probe interface{}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return rtvalue.Value{}, err
	}
	return coerceDecoded(reg, target, probe)
}

func coerceDecoded(reg *lmtype.Registry, target ids.TypeID, v interface{}) (rtvalue.Value, error) {
	switch x := v.(type) {
	case nil:
		return rtvalue.Unit(), nil
	case bool:
		return rtvalue.Bool(x), nil
	case float64:
		return numericRtValue(target, x)
	case string:
		if n, err := strconv.ParseFloat(x, 64); err == nil {
			return numericRtValue(target, n)
		}
		return rtvalue.Value{}, fmt.Errorf("string input %q is not numeric", x)
	case []interface{}:
		elemType := target
		if t, ok := reg.Lookup(target); ok && t.Kind == lmtype.KindArray {
			elemType = t.Element
		}
		elements := make([]rtvalue.Value, len(x))
		for i, item := range x {
			ev, err := coerceDecoded(reg, elemType, item)
			if err != nil {
				return rtvalue.Value{}, err
			}
			elements[i] = ev
		}
		return rtvalue.Array(elements), nil
	case map[string]interface{}:
		return rtvalue.Value{}, fmt.Errorf("object-valued simulation inputs are not supported")
	default:
		return rtvalue.Value{}, fmt.Errorf("unsupported input value of type %T", v)
	}
}

func numericRtValue(target ids.TypeID, n float64) (rtvalue.Value, error) {
	switch target {
	case ids.I8, ids.I16, ids.I32, ids.I64:
		return rtvalue.Int(kindForInt(target), int64(n)), nil
	case ids.F32:
		return rtvalue.Float(rtvalue.KF32, n), nil
	case ids.F64:
		return rtvalue.Float(rtvalue.KF64, n), nil
	case ids.BOOL:
		return rtvalue.Bool(n != 0), nil
	default:
		return rtvalue.Value{}, fmt.Errorf("type %v is not numeric", target)
	}
}

func kindForInt(target ids.TypeID) rtvalue.Kind {
	switch target {
	case ids.I8:
		return rtvalue.KI8
	case ids.I16:
		return rtvalue.KI16
	case ids.I64:
		return rtvalue.KI64
	default:
		return rtvalue.KI32
	}
}

type compileRequest struct {
	OptLevel      string `json:"opt_level"`
	TargetTriple  string `json:"target_triple,omitempty"`
	DebugSymbols  bool   `json:"debug_symbols,omitempty"`
	EntryFunction string `json:"entry_function,omitempty"`
	OutputDir     string `json:"output_dir,omitempty"`
}

func parseOptLevel(s string) (codegen.OptLevel, bool) {
	switch s {
	case "O0":
		return codegen.O0, true
	case "O1":
		return codegen.O1, true
	case "O2":
		return codegen.O2, true
	case "O3":
		return codegen.O3, true
	default:
		return codegen.O0, false
	}
}

func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.serviceOrNotFound(w, r)
	if !ok {
		return
	}
	var req compileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	optLevel, ok := parseOptLevel(req.OptLevel)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_enum", "opt_level must be one of O0, O1, O2, O3")
		return
	}
	opts := codegen.CompileOptions{
		OptLevel:      optLevel,
		TargetTriple:  req.TargetTriple,
		DebugSymbols:  req.DebugSymbols,
		EntryFunction: req.EntryFunction,
		OutputDir:     req.OutputDir,
	}

	cg := codegen.NewReferenceEmitter()
	result, err := cg.Compile(r.Context(), svc.Graph(), opts)
	if err != nil {
		if tcErr, ok := err.(*codegen.TypeCheckFailedError); ok {
			details := make([]string, len(tcErr.Errors))
			for i, e := range tcErr.Errors {
				details[i] = e.Error()
			}
			writeErrorDetails(w, http.StatusUnprocessableEntity, "type_check_failed", tcErr.Error(), details)
			return
		}
		writeError(w, http.StatusInternalServerError, "compile_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

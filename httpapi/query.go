package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/lmlang/graphlang/ids"
	"github.com/lmlang/graphlang/ir"
	"github.com/lmlang/graphlang/program"
)

func (s *Server) registerQueryRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /programs/{id}/nodes/{nid}", s.handleGetNode)
	mux.HandleFunc("GET /programs/{id}/functions/{fid}", s.handleGetFunction)
	mux.HandleFunc("GET /programs/{id}/neighborhood/{nid}", s.handleNeighborhood)
	mux.HandleFunc("POST /programs/{id}/search", s.handleSearch)
}

type detailLevel string

const (
	detailSummary  detailLevel = "summary"
	detailStandard detailLevel = "standard"
	detailFull     detailLevel = "full"
)

func parseDetail(r *http.Request) detailLevel {
	switch detailLevel(r.URL.Query().Get("detail")) {
	case detailSummary:
		return detailSummary
	case detailFull:
		return detailFull
	default:
		return detailStandard
	}
}

type nodeView struct {
	ID    uint32 `json:"id"`
	Owner uint32 `json:"owner"`
	Op    *ir.Op `json:"op,omitempty"`

	InEdges  []uint32 `json:"in_edges,omitempty"`
	OutEdges []uint32 `json:"out_edges,omitempty"`
}

func renderNode(g *program.Graph, id ids.NodeID, n *ir.ComputeNode, detail detailLevel) nodeView {
	v := nodeView{ID: uint32(id), Owner: uint32(n.Owner)}
	if detail == detailSummary {
		return v
	}
	op := n.Op
	v.Op = &op
	if detail == detailFull {
		for _, e := range g.InEdges(id) {
			v.InEdges = append(v.InEdges, uint32(e))
		}
		for _, e := range g.OutEdges(id) {
			v.OutEdges = append(v.OutEdges, uint32(e))
		}
	}
	return v
}

func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.serviceOrNotFound(w, r)
	if !ok {
		return
	}
	nid, ok := parseUint32PathValue(w, r, "nid")
	if !ok {
		return
	}
	g := svc.Graph()
	n, ok := g.GetComputeNode(ids.NodeID(nid))
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "no such node")
		return
	}
	writeJSON(w, http.StatusOK, renderNode(g, ids.NodeID(nid), n, parseDetail(r)))
}

type functionView struct {
	ID         uint32    `json:"id"`
	Name       string    `json:"name"`
	Module     uint32    `json:"module"`
	Visibility string    `json:"visibility"`
	Params     []ir.Param `json:"params"`
	ReturnType uint32    `json:"return_type"`
	EntryNode  *uint32   `json:"entry_node,omitempty"`
	Nodes      []uint32  `json:"nodes,omitempty"`
}

func (s *Server) handleGetFunction(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.serviceOrNotFound(w, r)
	if !ok {
		return
	}
	fidRaw, ok := parseUint32PathValue(w, r, "fid")
	if !ok {
		return
	}
	g := svc.Graph()
	fid := ids.FunctionID(fidRaw)
	def, ok := g.GetFunction(fid)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "no such function")
		return
	}

	view := functionView{
		ID:         uint32(def.ID),
		Name:       def.Name,
		Module:     uint32(def.Module),
		Visibility: def.Visibility.String(),
		Params:     def.Params,
		ReturnType: uint32(def.ReturnType),
	}
	if def.HasEntryNode {
		e := uint32(def.EntryNode)
		view.EntryNode = &e
	}
	detail := parseDetail(r)
	if detail != detailSummary {
		for _, nid := range g.NodesOwnedBy(fid) {
			view.Nodes = append(view.Nodes, uint32(nid))
		}
	}
	writeJSON(w, http.StatusOK, view)
}

const maxNeighborhoodHops = 3

func (s *Server) handleNeighborhood(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.serviceOrNotFound(w, r)
	if !ok {
		return
	}
	nid, ok := parseUint32PathValue(w, r, "nid")
	if !ok {
		return
	}
	hops := maxNeighborhoodHops
	if raw := r.URL.Query().Get("hops"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "hops must be a non-negative integer")
			return
		}
		hops = n
	}
	if hops > maxNeighborhoodHops {
		hops = maxNeighborhoodHops
	}

	g := svc.Graph()
	root := ids.NodeID(nid)
	if _, ok := g.GetComputeNode(root); !ok {
		writeError(w, http.StatusNotFound, "not_found", "no such node")
		return
	}

	visited := map[ids.NodeID]bool{root: true}
	frontier := []ids.NodeID{root}
	for depth := 0; depth < hops && len(frontier) > 0; depth++ {
		var next []ids.NodeID
		for _, id := range frontier {
			for _, eid := range g.OutEdges(id) {
				if e, ok := g.GetEdge(eid); ok && !visited[e.Target] {
					visited[e.Target] = true
					next = append(next, e.Target)
				}
			}
			for _, eid := range g.InEdges(id) {
				if e, ok := g.GetEdge(eid); ok && !visited[e.Source] {
					visited[e.Source] = true
					next = append(next, e.Source)
				}
			}
		}
		frontier = next
	}

	detail := parseDetail(r)
	nodes := make([]nodeView, 0, len(visited))
	for id := range visited {
		n, ok := g.GetComputeNode(id)
		if !ok {
			continue
		}
		nodes = append(nodes, renderNode(g, id, n, detail))
	}
	writeJSON(w, http.StatusOK, nodes)
}

type searchRequest struct {
	FilterType    string      `json:"filter_type,omitempty"`
	OwnerFunction *uint32     `json:"owner_function,omitempty"`
	ValueType     *uint32     `json:"value_type,omitempty"`
	Detail        detailLevel `json:"detail,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.serviceOrNotFound(w, r)
	if !ok {
		return
	}
	var req searchRequest
	if err := decodeJSON(r, &req); err != nil && err.Error() != "EOF" {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	detail := req.Detail
	if detail == "" {
		detail = detailStandard
	}

	g := svc.Graph()
	var results []nodeView
	for id, n := range g.Nodes() {
		if req.FilterType != "" && !strings.EqualFold(n.Op.Kind.String(), req.FilterType) {
			continue
		}
		if req.OwnerFunction != nil && uint32(n.Owner) != *req.OwnerFunction {
			continue
		}
		if req.ValueType != nil && !hasOutgoingValueType(g, id, ids.TypeID(*req.ValueType)) {
			continue
		}
		results = append(results, renderNode(g, id, n, detail))
	}
	writeJSON(w, http.StatusOK, results)
}

// hasOutgoingValueType reports whether any data edge leaving id carries
// valueType — a node has no type of its own outside of a concrete edge,
// so a value-type filter means "produces this type on some connection".
func hasOutgoingValueType(g *program.Graph, id ids.NodeID, valueType ids.TypeID) bool {
	for _, e := range g.OutgoingDataEdges(id) {
		if e.ValueType == valueType {
			return true
		}
	}
	return false
}

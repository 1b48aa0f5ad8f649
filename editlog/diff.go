package editlog

import (
	"sort"

	"github.com/lmlang/graphlang/ids"
	"github.com/lmlang/graphlang/program"
)

// GraphDiff is the result of diff_versions (§4.7.4): the node/edge-level
// delta between two graph snapshots.
type GraphDiff struct {
	AddedNodes    []ids.NodeID
	RemovedNodes  []ids.NodeID
	ModifiedNodes []ids.NodeID
	AddedEdges    []ids.EdgeID
	RemovedEdges  []ids.EdgeID
}

// Diff computes the structural difference from -> to. "Modified" means
// the same NodeId is present on both sides but its op or owner differs — ir.Op
// carries no slice or map fields, so a direct Go equality comparison
// (`!=`) is already the serialization-level comparison the spec calls
// for; no encoding/json round-trip is needed.
func Diff(from, to *program.Graph) GraphDiff {
	var d GraphDiff
	fromNodes, toNodes := from.Nodes(), to.Nodes()
	for id, n := range toNodes {
		old, existed := fromNodes[id]
		if !existed {
			d.AddedNodes = append(d.AddedNodes, id)
			continue
		}
		if old.Op != n.Op || old.Owner != n.Owner {
			d.ModifiedNodes = append(d.ModifiedNodes, id)
		}
	}
	for id := range fromNodes {
		if _, stillThere := toNodes[id]; !stillThere {
			d.RemovedNodes = append(d.RemovedNodes, id)
		}
	}

	fromEdges, toEdges := from.Edges(), to.Edges()
	for id := range toEdges {
		if _, existed := fromEdges[id]; !existed {
			d.AddedEdges = append(d.AddedEdges, id)
		}
	}
	for id := range fromEdges {
		if _, stillThere := toEdges[id]; !stillThere {
			d.RemovedEdges = append(d.RemovedEdges, id)
		}
	}

	sortNodeIDs(d.AddedNodes)
	sortNodeIDs(d.RemovedNodes)
	sortNodeIDs(d.ModifiedNodes)
	sortEdgeIDs(d.AddedEdges)
	sortEdgeIDs(d.RemovedEdges)
	return d
}

func sortNodeIDs(s []ids.NodeID) {
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
}

func sortEdgeIDs(s []ids.EdgeID) {
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
}

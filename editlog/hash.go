package editlog

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sort"

	"github.com/lmlang/graphlang/ids"
	"github.com/lmlang/graphlang/ir"
	"github.com/lmlang/graphlang/program"
)

// HashGraph produces a deterministic content digest of g's decomposed
// form (every node and edge, sorted by id), the same "sha256:"-prefixed
// hex digest shape the teacher's checkpoint.computeIdempotencyKey and
// replay.recordIO use for idempotency/mismatch detection. It backs
// §4.7.2's ProposeEditRequest.expected_hashes precondition and the
// testable property that a dry run never observably changes the graph.
func HashGraph(g *program.Graph) string {
	h := sha256.New()

	nodeIDs := make([]ids.NodeID, 0, len(g.Nodes()))
	nodes := g.Nodes()
	for id := range nodes {
		nodeIDs = append(nodeIDs, id)
	}
	sort.Slice(nodeIDs, func(i, j int) bool { return nodeIDs[i] < nodeIDs[j] })
	for _, id := range nodeIDs {
		n := nodes[id]
		writeUint64(h, uint64(id))
		writeUint64(h, uint64(n.Owner))
		writeOp(h, n.Op)
	}

	edgeIDs := make([]ids.EdgeID, 0, len(g.Edges()))
	edges := g.Edges()
	for id := range edges {
		edgeIDs = append(edgeIDs, id)
	}
	sort.Slice(edgeIDs, func(i, j int) bool { return edgeIDs[i] < edgeIDs[j] })
	for _, id := range edgeIDs {
		e := edges[id]
		writeUint64(h, uint64(id))
		writeUint64(h, uint64(e.Kind))
		writeUint64(h, uint64(e.Source))
		writeUint64(h, uint64(e.Target))
		writeUint64(h, uint64(e.SourcePort))
		writeUint64(h, uint64(e.TargetPort))
		writeUint64(h, uint64(e.ValueType))
		writeUint64(h, uint64(e.BranchIndex))
		if e.HasBranchIndex {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
	}

	return "sha256:" + hex.EncodeToString(h.Sum(nil))
}

func writeUint64(h interface{ Write([]byte) (int, error) }, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	h.Write(b[:])
}

// writeOp writes every scalar field of an ir.Op in a fixed order. ir.Op
// carries no slice or map fields, so this fixed-field walk is a complete
// and deterministic serialization without needing encoding/json.
func writeOp(h interface{ Write([]byte) (int, error) }, op ir.Op) {
	writeUint64(h, uint64(op.Kind))
	writeUint64(h, uint64(op.Literal.Kind))
	h.Write([]byte{boolByte(op.Literal.Bool)})
	writeUint64(h, uint64(op.Literal.Int))
	writeUint64(h, math.Float64bits(op.Literal.Float))
	writeUint64(h, uint64(op.Index))
	writeUint64(h, uint64(op.ArithOp))
	writeUint64(h, uint64(op.UnaryOp))
	writeUint64(h, uint64(op.CompareOp))
	writeUint64(h, uint64(op.LogicOp))
	writeUint64(h, uint64(op.ShiftOp))
	writeUint64(h, uint64(op.Target))
	writeUint64(h, uint64(op.ClosureFunction))
	h.Write([]byte(op.Message))
	writeUint64(h, uint64(op.TargetType))
	writeUint64(h, uint64(op.TypeID))
	writeUint64(h, uint64(op.FieldIndex))
	writeUint64(h, uint64(op.VariantIndex))
	writeUint64(h, uint64(op.ArrayLength))
	writeUint64(h, uint64(op.CastTarget))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

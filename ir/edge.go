package ir

import (
	"encoding/json"
	"fmt"

	"github.com/lmlang/graphlang/ids"
)

// EdgeKind discriminates the FlowEdge sum type.
type EdgeKind int

const (
	EdgeData EdgeKind = iota
	EdgeControl
)

func (k EdgeKind) String() string {
	if k == EdgeControl {
		return "Control"
	}
	return "Data"
}

// MarshalJSON renders the edge kind as its self-describing tag name.
func (k EdgeKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON resolves a tag name back to its EdgeKind, rejecting any
// tag other than "Data"/"Control".
func (k *EdgeKind) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err != nil {
		return err
	}
	switch tag {
	case "Data":
		*k = EdgeData
	case "Control":
		*k = EdgeControl
	default:
		return fmt.Errorf("ir: unknown EdgeKind tag %q", tag)
	}
	return nil
}

// FlowEdge is a directed edge in the compute graph, either carrying a
// typed SSA value between specific ports (Data) or sequencing execution
// (Control).
type FlowEdge struct {
	Kind   EdgeKind
	Source ids.NodeID
	Target ids.NodeID

	// EdgeData
	SourcePort uint16
	TargetPort uint16
	ValueType  ids.TypeID

	// EdgeControl
	BranchIndex    uint16
	HasBranchIndex bool
}

// NewDataEdge constructs a Data-kind FlowEdge.
func NewDataEdge(src, dst ids.NodeID, srcPort, dstPort uint16, valueType ids.TypeID) FlowEdge {
	return FlowEdge{
		Kind: EdgeData, Source: src, Target: dst,
		SourcePort: srcPort, TargetPort: dstPort, ValueType: valueType,
	}
}

// NewControlEdge constructs a Control-kind FlowEdge. branchIndex < 0
// means "unconditional" (no branch tag).
func NewControlEdge(src, dst ids.NodeID, branchIndex int) FlowEdge {
	e := FlowEdge{Kind: EdgeControl, Source: src, Target: dst}
	if branchIndex >= 0 {
		e.BranchIndex = uint16(branchIndex)
		e.HasBranchIndex = true
	}
	return e
}

package ir

import "github.com/lmlang/graphlang/ids"

// ComputeNode is a single operation in the compute graph. Every node
// belongs to exactly one owning function; a node's position is its
// NodeID, dense but not necessarily contiguous after deletions.
type ComputeNode struct {
	Op    Op
	Owner ids.FunctionID
}

package editlog

import (
	"fmt"

	"github.com/lmlang/graphlang/ids"
	"github.com/lmlang/graphlang/ir"
	"github.com/lmlang/graphlang/program"
)

// EditCommand carries a Mutation plus everything Apply recorded about
// its effect, so Invert and Reapply can exactly reverse or replay it
// without reconsulting the live graph — "all information required to
// invert it" per §4.7.2.
type EditCommand struct {
	Mutation Mutation

	// Populated by Apply, consumed by Invert/Reapply.
	CreatedNode     ids.NodeID
	CreatedEdge     ids.EdgeID
	CreatedFunction ids.FunctionID
	CreatedModule   ids.ModuleID

	RemovedNode      ir.ComputeNode
	RemovedNodeOwner ids.FunctionID
	RemovedEdges     map[ids.EdgeID]ir.FlowEdge // edges incident to RemovedNode, also destroyed atomically
	RemovedEdge      ir.FlowEdge

	OldOp ir.Op // ModifyNode
}

// Apply performs m against g, returning the EditCommand that can later
// invert or replay it.
func Apply(g *program.Graph, m Mutation) (EditCommand, error) {
	cmd := EditCommand{Mutation: m}
	switch m.Kind {
	case InsertNode:
		nid, err := g.AddComputeNode(m.Owner, m.Op)
		if err != nil {
			return EditCommand{}, err
		}
		cmd.CreatedNode = nid

	case RemoveNode:
		node, edges, err := g.RemoveComputeNode(m.Node)
		if err != nil {
			return EditCommand{}, err
		}
		cmd.RemovedNode = node
		cmd.RemovedNodeOwner = node.Owner
		cmd.RemovedEdges = edges

	case ModifyNode:
		old, err := g.ModifyComputeNodeOp(m.Node, m.NewOp)
		if err != nil {
			return EditCommand{}, err
		}
		cmd.OldOp = old

	case AddEdge:
		eid, err := g.AddDataEdge(m.Source, m.Target, m.SourcePort, m.TargetPort, m.ValueType)
		if err != nil {
			return EditCommand{}, err
		}
		cmd.CreatedEdge = eid

	case AddControlEdge:
		eid, err := g.AddControlEdge(m.Source, m.Target, m.BranchIndex)
		if err != nil {
			return EditCommand{}, err
		}
		cmd.CreatedEdge = eid

	case RemoveEdge:
		e, err := g.RemoveEdge(m.Edge)
		if err != nil {
			return EditCommand{}, err
		}
		cmd.RemovedEdge = e

	case AddFunction:
		fid, err := g.AddFunction(m.Name, m.Module, m.Params, m.ReturnType, m.Visibility)
		if err != nil {
			return EditCommand{}, err
		}
		cmd.CreatedFunction = fid

	case AddModule:
		mid, err := g.AddModule(m.Name, m.Parent, m.Visibility)
		if err != nil {
			return EditCommand{}, err
		}
		cmd.CreatedModule = mid

	default:
		return EditCommand{}, fmt.Errorf("editlog: unknown mutation kind %v", m.Kind)
	}
	return cmd, nil
}

// Invert applies cmd's inverse effect to g — undo.
func (cmd *EditCommand) Invert(g *program.Graph) error {
	switch cmd.Mutation.Kind {
	case InsertNode:
		_, _, err := g.RemoveComputeNode(cmd.CreatedNode)
		return err

	case RemoveNode:
		if err := g.RestoreComputeNode(cmd.Mutation.Node, cmd.RemovedNode); err != nil {
			return err
		}
		for eid, e := range cmd.RemovedEdges {
			if err := g.RestoreEdge(eid, e); err != nil {
				return err
			}
		}
		return nil

	case ModifyNode:
		_, err := g.ModifyComputeNodeOp(cmd.Mutation.Node, cmd.OldOp)
		return err

	case AddEdge, AddControlEdge:
		_, err := g.RemoveEdge(cmd.CreatedEdge)
		return err

	case RemoveEdge:
		return g.RestoreEdge(cmd.Mutation.Edge, cmd.RemovedEdge)

	case AddFunction:
		_, err := g.RemoveFunction(cmd.CreatedFunction)
		return err

	case AddModule:
		return g.RemoveModule(cmd.CreatedModule)

	default:
		return fmt.Errorf("editlog: unknown mutation kind %v", cmd.Mutation.Kind)
	}
}

// Reapply replays cmd's original effect against g — redo. It restores
// the exact ids Apply first produced rather than reallocating new ones,
// since any edges/mutations earlier in the same batch may still
// reference them by value.
func (cmd *EditCommand) Reapply(g *program.Graph) error {
	switch cmd.Mutation.Kind {
	case InsertNode:
		return g.RestoreComputeNode(cmd.CreatedNode, ir.ComputeNode{Op: cmd.Mutation.Op, Owner: cmd.Mutation.Owner})

	case RemoveNode:
		_, _, err := g.RemoveComputeNode(cmd.Mutation.Node)
		return err

	case ModifyNode:
		_, err := g.ModifyComputeNodeOp(cmd.Mutation.Node, cmd.Mutation.NewOp)
		return err

	case AddEdge:
		m := cmd.Mutation
		return g.RestoreEdge(cmd.CreatedEdge, ir.NewDataEdge(m.Source, m.Target, m.SourcePort, m.TargetPort, m.ValueType))

	case AddControlEdge:
		m := cmd.Mutation
		return g.RestoreEdge(cmd.CreatedEdge, ir.NewControlEdge(m.Source, m.Target, m.BranchIndex))

	case RemoveEdge:
		_, err := g.RemoveEdge(cmd.Mutation.Edge)
		return err

	case AddFunction:
		m := cmd.Mutation
		return g.RestoreFunction(cmd.CreatedFunction, ir.FunctionDef{
			ID: cmd.CreatedFunction, Name: m.Name, Module: m.Module,
			Visibility: m.Visibility, Params: m.Params, ReturnType: m.ReturnType,
		})

	case AddModule:
		m := cmd.Mutation
		return g.RestoreModuleAt(cmd.CreatedModule, m.Name, m.Parent, m.Visibility)

	default:
		return fmt.Errorf("editlog: unknown mutation kind %v", cmd.Mutation.Kind)
	}
}

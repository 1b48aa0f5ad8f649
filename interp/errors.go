// Package interp implements the single-threaded, cooperative, work-list
// dataflow interpreter: Ready -> Running -> {Paused | Completed | Error |
// ContractViolation}. It holds a read-only borrow of a *program.Graph
// and owns its own call stack, flat address-indexed memory, optional
// trace buffer, and I/O log.
package interp

import (
	"errors"
	"fmt"

	"github.com/lmlang/graphlang/ids"
)

var (
	ErrIntegerOverflow        = errors.New("interp: integer overflow")
	ErrDivisionByZero         = errors.New("interp: division by zero")
	ErrInvalidShift           = errors.New("interp: shift amount out of range")
	ErrOutOfBoundsAccess      = errors.New("interp: out-of-bounds memory access")
	ErrRecursionLimitExceeded = errors.New("interp: recursion limit exceeded")
	ErrInternal               = errors.New("interp: internal error")
	ErrTypeMismatchAtRuntime  = errors.New("interp: type mismatch at runtime")
)

type IntegerOverflowError struct{ Node ids.NodeID }

func (e *IntegerOverflowError) Error() string { return fmt.Sprintf("interp: node %v: integer overflow", e.Node) }
func (e *IntegerOverflowError) Unwrap() error { return ErrIntegerOverflow }

type DivisionByZeroError struct{ Node ids.NodeID }

func (e *DivisionByZeroError) Error() string { return fmt.Sprintf("interp: node %v: division by zero", e.Node) }
func (e *DivisionByZeroError) Unwrap() error { return ErrDivisionByZero }

type InvalidShiftError struct {
	Node     ids.NodeID
	Amount   int64
	BitWidth int
}

func (e *InvalidShiftError) Error() string {
	return fmt.Sprintf("interp: node %v: shift amount %d out of range [0,%d)", e.Node, e.Amount, e.BitWidth)
}
func (e *InvalidShiftError) Unwrap() error { return ErrInvalidShift }

type OutOfBoundsAccessError struct {
	Node  ids.NodeID
	Index int
	Size  int
}

func (e *OutOfBoundsAccessError) Error() string {
	return fmt.Sprintf("interp: node %v: index %d out of bounds (size %d)", e.Node, e.Index, e.Size)
}
func (e *OutOfBoundsAccessError) Unwrap() error { return ErrOutOfBoundsAccess }

type RecursionLimitExceededError struct {
	Node  ids.NodeID
	Limit int
}

func (e *RecursionLimitExceededError) Error() string {
	return fmt.Sprintf("interp: node %v: recursion limit %d exceeded", e.Node, e.Limit)
}
func (e *RecursionLimitExceededError) Unwrap() error { return ErrRecursionLimitExceeded }

type InternalError struct {
	Reason string
}

func (e *InternalError) Error() string { return fmt.Sprintf("interp: internal error: %s", e.Reason) }
func (e *InternalError) Unwrap() error { return ErrInternal }

type TypeMismatchAtRuntimeError struct{ Node ids.NodeID }

func (e *TypeMismatchAtRuntimeError) Error() string {
	return fmt.Sprintf("interp: node %v: type mismatch at runtime", e.Node)
}
func (e *TypeMismatchAtRuntimeError) Unwrap() error { return ErrTypeMismatchAtRuntime }

package ir

import (
	"encoding/json"
	"fmt"

	"github.com/lmlang/graphlang/ids"
	"github.com/lmlang/graphlang/lmtype"
)

// CaptureMode describes how a closure captures a variable from its
// enclosing function.
type CaptureMode int

const (
	ByValue CaptureMode = iota
	ByReference
)

func (m CaptureMode) String() string {
	if m == ByReference {
		return "ByReference"
	}
	return "ByValue"
}

// MarshalJSON renders the capture mode as its self-describing tag name.
func (m CaptureMode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON resolves a tag name back to its CaptureMode, rejecting
// any tag other than "ByValue"/"ByReference".
func (m *CaptureMode) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err != nil {
		return err
	}
	switch tag {
	case "ByValue":
		*m = ByValue
	case "ByReference":
		*m = ByReference
	default:
		return fmt.Errorf("ir: unknown CaptureMode tag %q", tag)
	}
	return nil
}

// Capture is one entry of a closure function's ordered capture list.
type Capture struct {
	Name          string
	CapturedType  ids.TypeID
	Mode          CaptureMode
}

// Param is one entry of a function's ordered parameter list.
type Param struct {
	Name string
	Type ids.TypeID
}

// FunctionDef is the semantic-skeleton-independent description of a
// function's signature, ownership, and (for closures) capture list.
type FunctionDef struct {
	ID         ids.FunctionID
	Name       string
	Module     ids.ModuleID
	Visibility lmtype.Visibility
	Params     []Param
	ReturnType ids.TypeID

	EntryNode    ids.NodeID
	HasEntryNode bool

	IsClosure       bool
	ParentFunction  ids.FunctionID
	HasParent       bool
	Captures        []Capture
}

// FunctionType returns the LmType{Kind: KindFunction} describing this
// function's call signature, used when registering closure types.
func (f *FunctionDef) FunctionType() lmtype.LmType {
	params := make([]ids.TypeID, len(f.Params))
	for i, p := range f.Params {
		params[i] = p.Type
	}
	return lmtype.LmType{Kind: lmtype.KindFunction, Params: params, ReturnType: f.ReturnType}
}

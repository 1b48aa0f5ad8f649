package editlog

import "errors"

var (
	// ErrNothingToUndo is returned by Undo when the log is empty.
	ErrNothingToUndo = errors.New("editlog: nothing to undo")
	// ErrNothingToRedo is returned by Redo when the redo stack is empty.
	ErrNothingToRedo = errors.New("editlog: nothing to redo")
	// ErrCheckpointNotFound is returned by Restore/Diff for an unknown name.
	ErrCheckpointNotFound = errors.New("editlog: checkpoint not found")
)

// CheckpointNotFoundError carries the offending name for structured
// reporting at the HTTP boundary.
type CheckpointNotFoundError struct{ Name string }

func (e *CheckpointNotFoundError) Error() string {
	return "editlog: checkpoint not found: " + e.Name
}
func (e *CheckpointNotFoundError) Unwrap() error { return ErrCheckpointNotFound }

package editlog

import (
	"time"

	"github.com/lmlang/graphlang/program"
)

// LogEntry is one committed unit of history: either a single mutation's
// EditCommand, or (for a batch proposal) several, applied and undone
// together as one atomic unit.
type LogEntry struct {
	Sequence    uint64
	Description string
	Commands    []EditCommand
	Timestamp   time.Time
}

// EditLog is the append-only history of committed mutations for one
// program, plus the undo/redo stacks derived from it. The sequence
// counter is total per program and never resets, matching §5's ordering
// guarantee ("the edit log's sequence is total per program").
type EditLog struct {
	entries   []LogEntry
	redoStack []LogEntry
	nextSeq   uint64
}

// New returns an empty EditLog.
func New() *EditLog {
	return &EditLog{}
}

// Append records a committed entry and clears the redo stack — any
// forward mutation after an undo invalidates the redone-from-here
// future, per §4.7.3.
func (l *EditLog) Append(description string, commands []EditCommand) LogEntry {
	l.nextSeq++
	entry := LogEntry{
		Sequence:    l.nextSeq,
		Description: description,
		Commands:    append([]EditCommand(nil), commands...),
		Timestamp:   time.Now(),
	}
	l.entries = append(l.entries, entry)
	l.redoStack = nil
	return entry
}

// Entries returns every committed entry in forward (oldest-first) order.
func (l *EditLog) Entries() []LogEntry {
	return append([]LogEntry(nil), l.entries...)
}

// Len reports how many entries are currently undoable.
func (l *EditLog) Len() int { return len(l.entries) }

// Undo pops the newest entry, applies each of its commands' inverses to
// g in reverse order (so a batch unwinds in the opposite order it was
// built), and pushes the popped entry onto the redo stack.
func (l *EditLog) Undo(g *program.Graph) (LogEntry, error) {
	if len(l.entries) == 0 {
		return LogEntry{}, ErrNothingToUndo
	}
	last := l.entries[len(l.entries)-1]
	for i := len(last.Commands) - 1; i >= 0; i-- {
		cmd := last.Commands[i]
		if err := cmd.Invert(g); err != nil {
			return LogEntry{}, err
		}
	}
	l.entries = l.entries[:len(l.entries)-1]
	l.redoStack = append(l.redoStack, last)
	return last, nil
}

// Redo pops the most recently undone entry, reapplies its commands in
// their original forward order, and pushes it back onto the entry list.
func (l *EditLog) Redo(g *program.Graph) (LogEntry, error) {
	if len(l.redoStack) == 0 {
		return LogEntry{}, ErrNothingToRedo
	}
	entry := l.redoStack[len(l.redoStack)-1]
	for _, cmd := range entry.Commands {
		c := cmd
		if err := c.Reapply(g); err != nil {
			return LogEntry{}, err
		}
	}
	l.redoStack = l.redoStack[:len(l.redoStack)-1]
	l.entries = append(l.entries, entry)
	return entry, nil
}

package emit

import (
	"context"
	"sync"
)

// maxHistoryPerProgram bounds how many events BufferedEmitter retains
// for a single program. A server keeps one BufferedEmitter per running
// program for the lifetime of that program's process; without a cap a
// long edit session or a tight simulate loop grows that slice forever.
const maxHistoryPerProgram = 4096

// BufferedEmitter stores events in memory, keyed by ProgramID, for
// later querying — development, testing, and post-run inspection.
type BufferedEmitter struct {
	mu     sync.RWMutex
	events map[string][]Event // programID -> events, oldest first
}

// EventCategory classifies an event by which part of the system
// produced it, inferred from the Msg conventions interp, editservice,
// and httpapi already use. CategoryAny matches every event and is the
// zero value, so an empty HistoryFilter is a no-op filter.
type EventCategory int

const (
	CategoryAny EventCategory = iota
	CategoryExecution
	CategoryEdit
	CategoryHTTP
	CategoryOther
)

func classify(msg string) EventCategory {
	switch msg {
	case "node_eval":
		return CategoryExecution
	case "propose_edit", "undo", "redo", "checkpoint_created", "checkpoint_restored", "flush_propagation":
		return CategoryEdit
	case "http_request":
		return CategoryHTTP
	default:
		return CategoryOther
	}
}

// HistoryFilter narrows GetHistoryWithFilter's results. Category and
// Status are combined with AND logic; either left at its zero value
// matches everything.
type HistoryFilter struct {
	Category EventCategory
	Status   string // matched against event.Meta["status"]
}

func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{events: make(map[string][]Event)}
}

func (b *BufferedEmitter) Emit(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.append(event)
}

func (b *BufferedEmitter) EmitBatch(_ context.Context, events []Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, event := range events {
		b.append(event)
	}
	return nil
}

// append adds event to its program's history, trimming the oldest
// entries once maxHistoryPerProgram is exceeded. Caller must hold mu.
func (b *BufferedEmitter) append(event Event) {
	history := append(b.events[event.ProgramID], event)
	if over := len(history) - maxHistoryPerProgram; over > 0 {
		history = history[over:]
	}
	b.events[event.ProgramID] = history
}

func (b *BufferedEmitter) Flush(context.Context) error { return nil }

// GetHistory returns every event recorded for programID, oldest first.
func (b *BufferedEmitter) GetHistory(programID string) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	events := b.events[programID]
	result := make([]Event, len(events))
	copy(result, events)
	return result
}

// GetHistoryWithFilter returns the subset of programID's history
// matching every set field of filter.
func (b *BufferedEmitter) GetHistoryWithFilter(programID string, filter HistoryFilter) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var result []Event
	for _, event := range b.events[programID] {
		if filter.Category != CategoryAny && classify(event.Msg) != filter.Category {
			continue
		}
		if filter.Status != "" {
			status, _ := event.Meta["status"].(string)
			if status != filter.Status {
				continue
			}
		}
		result = append(result, event)
	}
	return result
}

// Clear removes stored events for programID, or every program if
// programID is empty.
func (b *BufferedEmitter) Clear(programID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if programID == "" {
		b.events = make(map[string][]Event)
		return
	}
	delete(b.events, programID)
}

package emit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
)

// LogEmitter writes events as structured log lines, either as flat
// key=value text or as JSONL. Neither interp nor editservice threads an
// explicit severity through Event, so LogEmitter derives one from
// Meta["status"] (the convention interp's node_eval events use:
// "success", "error", "contract_violation"); events without a string
// status, such as editservice's, log at INFO.
type LogEmitter struct {
	writer   io.Writer
	jsonMode bool
}

// NewLogEmitter creates a LogEmitter writing to writer. A nil writer
// defaults to os.Stdout.
func NewLogEmitter(writer io.Writer, jsonMode bool) *LogEmitter {
	if writer == nil {
		writer = os.Stdout
	}
	return &LogEmitter{writer: writer, jsonMode: jsonMode}
}

// levelFor maps an event's status metadata to a log severity.
func levelFor(event Event) string {
	status, _ := event.Meta["status"].(string)
	switch status {
	case "error":
		return "ERROR"
	case "contract_violation":
		return "WARN"
	default:
		return "INFO"
	}
}

func (l *LogEmitter) Emit(event Event) {
	var line []byte
	if l.jsonMode {
		line = formatJSON(event)
	} else {
		line = formatText(event)
	}
	_, _ = l.writer.Write(line)
}

func formatJSON(event Event) []byte {
	data, err := json.Marshal(struct {
		Level     string                 `json:"level"`
		ProgramID string                 `json:"programID"`
		Step      int                    `json:"step,omitempty"`
		NodeID    string                 `json:"nodeID,omitempty"`
		Msg       string                 `json:"msg"`
		Meta      map[string]interface{} `json:"meta,omitempty"`
	}{
		Level:     levelFor(event),
		ProgramID: event.ProgramID,
		Step:      event.Step,
		NodeID:    event.NodeID,
		Msg:       event.Msg,
		Meta:      event.Meta,
	})
	if err != nil {
		return []byte(fmt.Sprintf("{\"level\":\"ERROR\",\"msg\":\"failed to marshal event: %v\"}\n", err))
	}
	return append(data, '\n')
}

// formatText renders event as a single flat key=value line rather than
// embedding a JSON-encoded meta blob, so the output greps the same way
// regardless of how many metadata keys an emit site attaches.
func formatText(event Event) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s %s program=%s", levelFor(event), event.Msg, event.ProgramID)
	if event.NodeID != "" {
		fmt.Fprintf(&buf, " node=%s", event.NodeID)
	}
	if event.Step != 0 {
		fmt.Fprintf(&buf, " step=%d", event.Step)
	}
	keys := make([]string, 0, len(event.Meta))
	for k := range event.Meta {
		if k == "status" {
			continue // already folded into the leading level
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&buf, " %s=%v", k, event.Meta[k])
	}
	buf.WriteByte('\n')
	return buf.Bytes()
}

// EmitBatch formats every event and writes them in a single call,
// avoiding one writer.Write syscall per event when a caller already
// has the whole slice in hand.
func (l *LogEmitter) EmitBatch(_ context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for _, event := range events {
		if l.jsonMode {
			buf.Write(formatJSON(event))
		} else {
			buf.Write(formatText(event))
		}
	}
	_, err := l.writer.Write(buf.Bytes())
	return err
}

// Flush is a no-op: every write above already goes straight to writer.
func (l *LogEmitter) Flush(_ context.Context) error {
	return nil
}

package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType represents the kind of curation event
type EventType string

const (
	EventInsertRecord   EventType = "insert_record"
	EventInsertSequence EventType = "insert_sequence"
	EventInsertTaxonomy EventType = "insert_taxonomy"
	EventUpdateSequence EventType = "update_sequence"
	EventUpdateTaxonomy EventType = "update_taxonomy"
	EventInsertOTU      EventType = "insert_otu"
	EventExportPage     EventType = "export_page"
	EventExport         EventType = "export"
	EventDuplicate      EventType = "duplicate"
	EventLockContention EventType = "lock_contention"
	EventError          EventType = "error"
)

// EventLevel represents the severity level
type EventLevel string

const (
	LevelDebug   EventLevel = "debug"
	LevelInfo    EventLevel = "info"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

// levelPriority maps event levels to numeric priorities for comparison
var levelPriority = map[EventLevel]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

// Event is one line of the audit log
type Event struct {
	Timestamp time.Time         `json:"ts"`
	RunID     string            `json:"run_id"`
	Level     EventLevel        `json:"level"`
	Event     EventType         `json:"event"`
	GGID      int64             `json:"gg_id,omitempty"`
	Accession string            `json:"accession,omitempty"`
	Release   string            `json:"release,omitempty"`
	Field     string            `json:"field,omitempty"`
	Count     int               `json:"count,omitempty"`
	Path      string            `json:"path,omitempty"`
	Bytes     int64             `json:"bytes,omitempty"`
	Duration  int64             `json:"duration_ms,omitempty"`
	Error     string            `json:"error,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// EventLogger appends events to a JSONL file. A nil logger drops
// everything, so commands can log unconditionally.
type EventLogger struct {
	file     *os.File
	encoder  *json.Encoder
	mu       sync.Mutex
	path     string
	runID    string
	minLevel EventLevel
}

// NewEventLogger creates events-<timestamp>.jsonl in outputDir. Every event
// written through it carries the same random run id.
func NewEventLogger(outputDir string, minLevel EventLevel) (*EventLogger, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	runID := uuid.NewString()
	filename := fmt.Sprintf("events-%s-%s.jsonl", time.Now().Format("20060102-150405"), runID[:8])
	path := filepath.Join(outputDir, filename)

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create event log: %w", err)
	}

	return &EventLogger{
		file:     file,
		encoder:  json.NewEncoder(file),
		path:     path,
		runID:    runID,
		minLevel: minLevel,
	}, nil
}

// Log writes an event to the JSONL file
func (l *EventLogger) Log(event *Event) error {
	if l == nil || l.file == nil {
		return nil
	}

	if levelPriority[event.Level] < levelPriority[l.minLevel] {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.RunID = l.runID

	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return nil
}

// outcome picks the level and message for an operation result
func outcome(err error) (EventLevel, string) {
	if err != nil {
		return LevelError, err.Error()
	}
	return LevelInfo, ""
}

// LogInsertRecord logs a record insert
func (l *EventLogger) LogInsertRecord(ggID int64, accession, release string, err error) error {
	level, msg := outcome(err)
	return l.Log(&Event{
		Level:     level,
		Event:     EventInsertRecord,
		GGID:      ggID,
		Accession: accession,
		Release:   release,
		Error:     msg,
	})
}

// LogDuplicate logs an insert refused because the accession exists
func (l *EventLogger) LogDuplicate(accession string) error {
	return l.Log(&Event{
		Level:     LevelWarning,
		Event:     EventDuplicate,
		Accession: accession,
	})
}

// LogBulk logs a bulk sequence or taxonomy operation over count records
func (l *EventLogger) LogBulk(event EventType, field, path string, count int, duration time.Duration, err error) error {
	level, msg := outcome(err)
	return l.Log(&Event{
		Level:    level,
		Event:    event,
		Field:    field,
		Path:     path,
		Count:    count,
		Duration: duration.Milliseconds(),
		Error:    msg,
	})
}

// LogOTU logs a cluster insert
func (l *EventLogger) LogOTU(clusterID, rep int64, members int, release, method string, err error) error {
	level, msg := outcome(err)
	return l.Log(&Event{
		Level:   level,
		Event:   EventInsertOTU,
		GGID:    rep,
		Count:   members,
		Release: release,
		Error:   msg,
		Extra: map[string]string{
			"cluster_id": fmt.Sprintf("%d", clusterID),
			"method":     method,
		},
	})
}

// LogExportPage logs one written shard
func (l *EventLogger) LogExportPage(name string, records int, bytes int64) error {
	return l.Log(&Event{
		Level: LevelDebug,
		Event: EventExportPage,
		Path:  name,
		Count: records,
		Bytes: bytes,
	})
}

// LogExport logs the end of an export run
func (l *EventLogger) LogExport(base string, records int, bytes int64, duration time.Duration, err error) error {
	level, msg := outcome(err)
	return l.Log(&Event{
		Level:    level,
		Event:    EventExport,
		Path:     base,
		Count:    records,
		Bytes:    bytes,
		Duration: duration.Milliseconds(),
		Error:    msg,
	})
}

// LogLockContention logs a lock request refused by another session
func (l *EventLogger) LogLockContention(op string, err error) error {
	return l.Log(&Event{
		Level: LevelWarning,
		Event: EventLockContention,
		Error: err.Error(),
		Extra: map[string]string{"op": op},
	})
}

// LogError logs a failure not covered by a specific event
func (l *EventLogger) LogError(event EventType, path string, err error) error {
	return l.Log(&Event{
		Level: LevelError,
		Event: event,
		Path:  path,
		Error: err.Error(),
	})
}

// Close closes the event log file
func (l *EventLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}

// Path returns the path to the event log file
func (l *EventLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// RunID returns the id stamped on every event of this run
func (l *EventLogger) RunID() string {
	if l == nil {
		return ""
	}
	return l.runID
}

// NullLogger returns a no-op event logger
func NullLogger() *EventLogger {
	return nil
}

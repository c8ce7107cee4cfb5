// Package eventlog writes one structured JSON object per line to a file
// that rotates at UTC day boundaries, the persisted-state contract of
// §6. Each event is marshalled with encoding/json and written straight to
// the day's file; no logger wraps it and no third-party structured
// logging library is introduced here; the rotation is the load-bearing
// piece neither zap nor log/slog provides out of the box (see DESIGN.md).
package eventlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Logger writes newline-delimited JSON events to dir/YYYY-MM-DD.jsonl,
// opening a new file whenever the UTC calendar date advances.
type Logger struct {
	mu          sync.Mutex
	dir         string
	currentDate string
	file        *os.File
}

func New(dir string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("eventlog: create dir: %w", err)
	}
	return &Logger{dir: dir}, nil
}

// Event is the envelope every log line shares; Fields carries the
// event-specific payload.
type Event struct {
	Ts     time.Time   `json:"ts"`
	Kind   string      `json:"kind"`
	Fields interface{} `json:"fields,omitempty"`
}

// Write appends one event, rotating the file first if the UTC date has
// advanced since the last write.
func (l *Logger) Write(now time.Time, kind string, fields interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	date := now.UTC().Format("2006-01-02")
	if date != l.currentDate {
		if err := l.rotateLocked(date); err != nil {
			return err
		}
	}

	line, err := json.Marshal(Event{Ts: now, Kind: kind, Fields: fields})
	if err != nil {
		return fmt.Errorf("eventlog: marshal: %w", err)
	}
	line = append(line, '\n')
	if _, err := l.file.Write(line); err != nil {
		return fmt.Errorf("eventlog: write: %w", err)
	}
	return nil
}

func (l *Logger) rotateLocked(date string) error {
	if l.file != nil {
		_ = l.file.Close()
	}
	path := filepath.Join(l.dir, date+".jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("eventlog: open %s: %w", path, err)
	}
	l.file = f
	l.currentDate = date
	return nil
}

func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

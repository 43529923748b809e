// Package statuslog appends transmission outcomes to a local JSON log. The
// agent typically runs on a phone; the file is the on-device audit trail
// that survives relay outages.
package statuslog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Entry is one logged transmission attempt.
type Entry struct {
	Phone     string    `json:"phone"`
	Message   string    `json:"message"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Log appends entries to a file, one JSON object per line.
type Log struct {
	mu   sync.Mutex
	path string
}

// New creates the log file's directory entry eagerly so a bad path fails at
// startup, not on the first send.
func New(path string) (*Log, error) {
	if path == "" {
		return nil, fmt.Errorf("status log path required")
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open status log: %w", err)
	}
	f.Close()
	return &Log{path: path}, nil
}

// Append writes one entry.
func (l *Log) Append(e Entry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal status entry: %w", err)
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open status log: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write status log: %w", err)
	}
	return nil
}

// Clear truncates the log. The dashboard exposes this so the on-device
// file does not grow without bound.
func (l *Log) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.Truncate(l.path, 0); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("truncate status log: %w", err)
	}
	return nil
}

// Read returns every logged entry, oldest first.
func (l *Log) Read() ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read status log: %w", err)
	}

	var entries []Entry
	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var e Entry
		if err := dec.Decode(&e); err != nil {
			return nil, fmt.Errorf("decode status log: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

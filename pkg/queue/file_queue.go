package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"qride/pkg/domain"
)

// FileQueue keeps the relay queue as a JSON array on disk, for single-binary
// deployments without a database. All mutations hold a mutex and go through
// a temp-file write plus atomic rename, so a crash mid-write never corrupts
// the queue and concurrent appends never lose records.
type FileQueue struct {
	mu   sync.Mutex
	path string
}

// NewFileQueue creates the parent directory if missing.
func NewFileQueue(path string) (*FileQueue, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("file queue path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create queue dir: %w", err)
		}
	}
	return &FileQueue{path: path}, nil
}

func (q *FileQueue) Append(_ context.Context, rec domain.MessageRecord) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	msgs, err := q.load()
	if err != nil {
		return err
	}
	return q.write(append(msgs, rec))
}

func (q *FileQueue) List(_ context.Context, codeFilter string) ([]domain.MessageRecord, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	msgs, err := q.load()
	if err != nil {
		return nil, err
	}
	return filterByCode(msgs, codeFilter), nil
}

func (q *FileQueue) Drain(_ context.Context, codeFilter string) ([]domain.MessageRecord, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	msgs, err := q.load()
	if err != nil {
		return nil, err
	}
	drained := filterByCode(msgs, codeFilter)
	if codeFilter == "" {
		if err := q.write(nil); err != nil {
			return nil, err
		}
		return drained, nil
	}
	kept := make([]domain.MessageRecord, 0, len(msgs)-len(drained))
	for _, m := range msgs {
		if m.Code != codeFilter {
			kept = append(kept, m)
		}
	}
	if err := q.write(kept); err != nil {
		return nil, err
	}
	return drained, nil
}

func (q *FileQueue) Remove(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	msgs, err := q.load()
	if err != nil {
		return err
	}
	kept := make([]domain.MessageRecord, 0, len(msgs))
	for _, m := range msgs {
		if m.ID != id {
			kept = append(kept, m)
		}
	}
	if len(kept) == len(msgs) {
		return nil
	}
	return q.write(kept)
}

func (q *FileQueue) Clear(_ context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.write(nil)
}

func (q *FileQueue) load() ([]domain.MessageRecord, error) {
	data, err := os.ReadFile(q.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read queue file: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var msgs []domain.MessageRecord
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, fmt.Errorf("parse queue file: %w", err)
	}
	return msgs, nil
}

func (q *FileQueue) write(msgs []domain.MessageRecord) error {
	if msgs == nil {
		msgs = []domain.MessageRecord{}
	}
	data, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("encode queue file: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(q.path), ".messages-*.json")
	if err != nil {
		return fmt.Errorf("create temp queue file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp queue file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp queue file: %w", err)
	}
	if err := os.Rename(tmpName, q.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace queue file: %w", err)
	}
	return nil
}

func filterByCode(msgs []domain.MessageRecord, codeFilter string) []domain.MessageRecord {
	if codeFilter == "" {
		out := make([]domain.MessageRecord, len(msgs))
		copy(out, msgs)
		return out
	}
	out := make([]domain.MessageRecord, 0, len(msgs))
	for _, m := range msgs {
		if m.Code == codeFilter {
			out = append(out, m)
		}
	}
	return out
}

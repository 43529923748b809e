package queue

import (
	"context"

	"qride/pkg/domain"
	"qride/pkg/store"
)

// TableQueue persists relay messages as rows in the messages table. Inserts
// are atomic in the backing store, so concurrent enqueues are safe.
type TableQueue struct {
	store store.Store
}

// NewTableQueue wraps a Store as a relay queue.
func NewTableQueue(s store.Store) *TableQueue {
	return &TableQueue{store: s}
}

func (q *TableQueue) Append(_ context.Context, rec domain.MessageRecord) error {
	return q.store.AppendMessage(rec)
}

func (q *TableQueue) List(_ context.Context, codeFilter string) ([]domain.MessageRecord, error) {
	return q.store.ListMessages(codeFilter)
}

// Drain removes only the rows it returns, so records appended between the
// read and the delete survive for the next drain.
func (q *TableQueue) Drain(_ context.Context, codeFilter string) ([]domain.MessageRecord, error) {
	msgs, err := q.store.ListMessages(codeFilter)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	if err := q.store.DeleteMessages(ids); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (q *TableQueue) Remove(_ context.Context, id string) error {
	return q.store.DeleteMessages([]string{id})
}

func (q *TableQueue) Clear(_ context.Context) error {
	return q.store.ClearMessages()
}

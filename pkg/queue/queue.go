package queue

import (
	"context"

	"qride/pkg/domain"
)

// Queue is the relay queue holding messages awaiting transmission by the
// SMS agent. Implementations must make Append atomic so concurrent
// enqueues never lose records.
type Queue interface {
	// Append adds one record to the tail of the queue.
	Append(ctx context.Context, rec domain.MessageRecord) error
	// List returns pending records oldest first, optionally filtered by code.
	List(ctx context.Context, codeFilter string) ([]domain.MessageRecord, error)
	// Drain returns pending records like List and removes exactly those
	// records from the queue.
	Drain(ctx context.Context, codeFilter string) ([]domain.MessageRecord, error)
	// Remove deletes the single record with the given ID. Removing an ID
	// that is not queued is not an error.
	Remove(ctx context.Context, id string) error
	// Clear empties the queue.
	Clear(ctx context.Context) error
}

package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"qride/pkg/domain"
	"qride/pkg/events"
	"qride/pkg/queue"
	"qride/pkg/store"
)

// EgressPolicy decides what fetching does to the queue.
type EgressPolicy string

const (
	// EgressKeep leaves fetched messages in place; the agent's delivery
	// reports are the only thing that marks progress.
	EgressKeep EgressPolicy = "keep"
	// EgressDrain removes exactly the returned messages, so two agents
	// polling concurrently never double-send.
	EgressDrain EgressPolicy = "drain"
)

// Config holds runtime configuration for the relay core.
type Config struct {
	DatabaseURL   string
	QueueBackend  string
	QueueFilePath string
	QueueStream   string
	RedisAddr     string
	RedisPassword string
	EgressPolicy  EgressPolicy

	// Store and Queue override the backend selection; tests inject these.
	Store  store.Store
	Queue  queue.Queue
	Events *events.Publisher
}

// App is the relay core wiring together the QR code store and the
// message queue.
type App struct {
	store        store.Store
	queue        queue.Queue
	events       *events.Publisher
	egressPolicy EgressPolicy
}

// New constructs the relay with the configured queue backend.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}

	q := cfg.Queue
	if q == nil {
		var err error
		switch cfg.QueueBackend {
		case "", "table":
			q = queue.NewTableQueue(dataStore)
		case "file":
			q, err = queue.NewFileQueue(cfg.QueueFilePath)
			if err != nil {
				return nil, fmt.Errorf("init file queue: %w", err)
			}
		case "redis":
			q, err = queue.NewRedisQueue(queue.RedisQueueConfig{
				Addr:     cfg.RedisAddr,
				Password: cfg.RedisPassword,
				Stream:   cfg.QueueStream,
			})
			if err != nil {
				return nil, fmt.Errorf("init redis queue: %w", err)
			}
		default:
			return nil, fmt.Errorf("unknown queue backend %q", cfg.QueueBackend)
		}
	}

	policy := cfg.EgressPolicy
	if policy == "" {
		policy = EgressKeep
	}

	return &App{
		store:        dataStore,
		queue:        q,
		events:       cfg.Events,
		egressPolicy: policy,
	}, nil
}

// SendMessage validates a scan-page request, resolves the owner's phone
// number server-side and queues the message for the agent. The visitor
// never sees or supplies the phone number.
func (a *App) SendMessage(ctx context.Context, code, message string) (domain.MessageRecord, error) {
	code = strings.TrimSpace(code)
	message = strings.TrimSpace(message)
	if code == "" || message == "" {
		return domain.MessageRecord{}, ErrMissingFields
	}

	qr, found, err := a.store.GetQRCodeByUniqueCode(code)
	if err != nil {
		return domain.MessageRecord{}, fmt.Errorf("lookup code: %w", err)
	}
	if !found || strings.TrimSpace(qr.PhoneNumber) == "" {
		return domain.MessageRecord{}, ErrCodeNotFound
	}

	rec := domain.MessageRecord{
		ID:          uuid.NewString(),
		Code:        code,
		PhoneNumber: qr.PhoneNumber,
		Message:     message,
		CreatedAt:   time.Now().UTC(),
	}
	if err := a.queue.Append(ctx, rec); err != nil {
		return domain.MessageRecord{}, fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}

	if err := a.events.Publish(ctx, events.MessageQueued, events.RelayEvent{
		MessageID:  rec.ID,
		Code:       rec.Code,
		OccurredAt: rec.CreatedAt,
	}); err != nil {
		// Event delivery is best effort; the queue already holds the message.
		slog.Warn("publish queued event failed", "err", err, "message_id", rec.ID)
	}
	return rec, nil
}

// FetchMessages returns pending messages oldest first, optionally filtered
// to one code. Under the drain policy the returned messages are removed
// atomically; under keep they stay until the agent reports delivery.
func (a *App) FetchMessages(ctx context.Context, codeFilter string) ([]domain.MessageRecord, error) {
	var (
		msgs []domain.MessageRecord
		err  error
	)
	if a.egressPolicy == EgressDrain {
		msgs, err = a.queue.Drain(ctx, codeFilter)
	} else {
		msgs, err = a.queue.List(ctx, codeFilter)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}
	return msgs, nil
}

// RecordDelivery stores the agent's outcome for one transmission attempt
// and retires that message from the queue on success. Retirement goes by
// message ID, never by text: the same (code, message) pair may be queued
// more than once and each entry gets its own send.
func (a *App) RecordDelivery(ctx context.Context, messageID, code, message string, outcome domain.DeliveryOutcome) (domain.DeliveryStatus, error) {
	messageID = strings.TrimSpace(messageID)
	code = strings.TrimSpace(code)
	if messageID == "" || code == "" || strings.TrimSpace(message) == "" {
		return domain.DeliveryStatus{}, ErrMissingFields
	}
	switch outcome {
	case domain.DeliverySent, domain.DeliveryFailed:
	default:
		return domain.DeliveryStatus{}, fmt.Errorf("unknown delivery outcome %q", outcome)
	}

	st := domain.DeliveryStatus{
		ID:        uuid.NewString(),
		MessageID: messageID,
		Code:      code,
		Message:   message,
		Status:    outcome,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.store.AppendDeliveryStatus(st); err != nil {
		return domain.DeliveryStatus{}, fmt.Errorf("record delivery: %w", err)
	}

	if outcome == domain.DeliverySent && a.egressPolicy == EgressKeep {
		if err := a.queue.Remove(ctx, messageID); err != nil {
			slog.Warn("retire delivered message failed", "err", err, "message_id", messageID)
		}
	}
	// Sent/failed events are the agent's to publish; it saw the outcome.
	return st, nil
}

// DeliveryStatuses returns every recorded attempt for the exact
// (code, message) pair, oldest first.
func (a *App) DeliveryStatuses(code, message string) ([]domain.DeliveryStatus, error) {
	sts, err := a.store.ListDeliveryStatus(code, message)
	if err != nil {
		return nil, fmt.Errorf("list delivery statuses: %w", err)
	}
	return sts, nil
}

// Package worker implements the relay agent loop: fetch queued messages,
// push them out over SMS and report the outcome back.
package worker

import (
	"context"
	"log/slog"
	"time"

	"qride/pkg/domain"
	"qride/pkg/events"
	"qride/pkg/sms"
	"qride/services/agent/internal/statuslog"
)

// DefaultInterval between relay polls.
const DefaultInterval = 10 * time.Second

const sendTimeout = 30 * time.Second

// RelayAPI is the slice of the relay client the worker needs.
type RelayAPI interface {
	FetchMessages(ctx context.Context, code string) ([]domain.MessageRecord, error)
	ReportDelivery(ctx context.Context, messageID, code, message string, outcome domain.DeliveryOutcome) error
}

// Config wires the worker's collaborators.
type Config struct {
	Relay     RelayAPI
	Sender    sms.Sender
	StatusLog *statuslog.Log
	Events    *events.Publisher
	Interval  time.Duration
}

// Worker polls the relay and transmits pending messages sequentially. SMS
// modems on phones do not take kindly to parallel sends.
type Worker struct {
	relay     RelayAPI
	sender    sms.Sender
	statusLog *statuslog.Log
	events    *events.Publisher
	interval  time.Duration
}

// New applies the default poll interval.
func New(cfg Config) *Worker {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Worker{
		relay:     cfg.Relay,
		sender:    cfg.Sender,
		statusLog: cfg.StatusLog,
		events:    cfg.Events,
		interval:  interval,
	}
}

// Run polls until ctx is cancelled. The first poll happens immediately.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.pollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.pollOnce(ctx)
		}
	}
}

func (w *Worker) pollOnce(ctx context.Context) {
	msgs, err := w.relay.FetchMessages(ctx, "")
	if err != nil {
		slog.Warn("fetch messages failed", "err", err)
		return
	}
	for _, rec := range msgs {
		if ctx.Err() != nil {
			return
		}
		w.transmit(ctx, rec)
	}
}

func (w *Worker) transmit(ctx context.Context, rec domain.MessageRecord) {
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	err := w.sender.Send(sendCtx, rec.PhoneNumber, rec.Message)
	cancel()

	outcome := domain.DeliverySent
	if err != nil {
		outcome = domain.DeliveryFailed
		slog.Warn("sms send failed", "err", err, "phone", sms.MaskPhone(rec.PhoneNumber), "message_id", rec.ID)
	} else {
		slog.Info("sms sent", "phone", sms.MaskPhone(rec.PhoneNumber), "message_id", rec.ID)
	}

	if err := w.relay.ReportDelivery(ctx, rec.ID, rec.Code, rec.Message, outcome); err != nil {
		slog.Warn("report delivery failed", "err", err, "message_id", rec.ID)
	}

	if w.statusLog != nil {
		logErr := w.statusLog.Append(statuslog.Entry{
			Phone:     rec.PhoneNumber,
			Message:   rec.Message,
			Status:    string(outcome),
			Timestamp: time.Now().UTC(),
		})
		if logErr != nil {
			slog.Warn("status log append failed", "err", logErr, "message_id", rec.ID)
		}
	}

	routingKey := events.MessageSent
	if outcome == domain.DeliveryFailed {
		routingKey = events.MessageFailed
	}
	if err := w.events.Publish(ctx, routingKey, events.RelayEvent{
		MessageID:  rec.ID,
		Code:       rec.Code,
		OccurredAt: time.Now().UTC(),
	}); err != nil {
		slog.Warn("publish delivery event failed", "err", err, "message_id", rec.ID)
	}
}

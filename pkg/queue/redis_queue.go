package queue

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"qride/pkg/domain"
)

// RedisQueue keeps the relay queue in a Redis Stream. Stream entry IDs give
// arrival order; XADD is atomic so concurrent enqueues are safe.
type RedisQueue struct {
	client *redis.Client
	stream string
	maxLen int64
}

// RedisQueueConfig configures the stream-backed relay queue.
type RedisQueueConfig struct {
	Addr     string
	Password string
	Stream   string
	MaxLen   int64
}

// NewRedisQueue connects to Redis and validates the stream name.
func NewRedisQueue(cfg RedisQueueConfig) (*RedisQueue, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("redis addr required")
	}
	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		stream = "qride:relay:messages"
	}
	maxLen := cfg.MaxLen
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &RedisQueue{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Password}),
		stream: stream,
		maxLen: maxLen,
	}, nil
}

func (q *RedisQueue) Append(ctx context.Context, rec domain.MessageRecord) error {
	return q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: q.maxLen,
		Approx: true,
		Values: map[string]any{
			"id":           rec.ID,
			"code":         rec.Code,
			"phone_number": rec.PhoneNumber,
			"message":      rec.Message,
			"created_at":   rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}).Err()
}

func (q *RedisQueue) List(ctx context.Context, codeFilter string) ([]domain.MessageRecord, error) {
	recs, _, err := q.read(ctx, codeFilter)
	return recs, err
}

// Drain removes only the entries it returns; entries appended after the
// range read stay in the stream.
func (q *RedisQueue) Drain(ctx context.Context, codeFilter string) ([]domain.MessageRecord, error) {
	recs, entryIDs, err := q.read(ctx, codeFilter)
	if err != nil {
		return nil, err
	}
	if len(entryIDs) > 0 {
		if err := q.client.XDel(ctx, q.stream, entryIDs...).Err(); err != nil {
			return nil, err
		}
	}
	return recs, nil
}

// Remove scans the stream for the entry carrying the record ID and deletes
// it. Stream entry IDs are assigned by Redis, so the lookup goes by value.
func (q *RedisQueue) Remove(ctx context.Context, id string) error {
	msgs, err := q.client.XRange(ctx, q.stream, "-", "+").Result()
	if err != nil {
		if err == redis.Nil {
			return nil
		}
		return err
	}
	for _, msg := range msgs {
		if v, ok := msg.Values["id"].(string); ok && v == id {
			return q.client.XDel(ctx, q.stream, msg.ID).Err()
		}
	}
	return nil
}

func (q *RedisQueue) Clear(ctx context.Context) error {
	return q.client.Del(ctx, q.stream).Err()
}

func (q *RedisQueue) read(ctx context.Context, codeFilter string) ([]domain.MessageRecord, []string, error) {
	msgs, err := q.client.XRange(ctx, q.stream, "-", "+").Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	recs := make([]domain.MessageRecord, 0, len(msgs))
	entryIDs := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		rec := decodeStreamRecord(msg.Values)
		if codeFilter != "" && rec.Code != codeFilter {
			continue
		}
		recs = append(recs, rec)
		entryIDs = append(entryIDs, msg.ID)
	}
	return recs, entryIDs, nil
}

func decodeStreamRecord(values map[string]any) domain.MessageRecord {
	rec := domain.MessageRecord{}
	if v, ok := values["id"].(string); ok {
		rec.ID = v
	}
	if v, ok := values["code"].(string); ok {
		rec.Code = v
	}
	if v, ok := values["phone_number"].(string); ok {
		rec.PhoneNumber = v
	}
	if v, ok := values["message"].(string); ok {
		rec.Message = v
	}
	if v, ok := values["created_at"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			rec.CreatedAt = t
		}
	}
	return rec
}

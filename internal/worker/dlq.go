package worker

// dlq.go: jobs that exhausted their retries land in dlq:{original_queue}.
// Inventory entries whose order was reconciled later are purged by the
// reconciliation sweep, so the list only shows what still needs a human.

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const DLQPrefix = "dlq:"

type DLQEntry struct {
	OriginalQueue string          `json:"original_queue"`
	JobType       string          `json:"job_type"`
	Payload       json.RawMessage `json:"payload"`
	Reason        string          `json:"reason"`
	FailedAt      string          `json:"failed_at"` // ISO 8601
	Attempts      int             `json:"attempts"`

	raw string // exact list element, needed to remove it
}

// DLQ is the dead-letter list of one queue.
type DLQ struct {
	rdb   *redis.Client
	queue string
}

func NewDLQ(rdb *redis.Client, queue string) *DLQ {
	return &DLQ{rdb: rdb, queue: queue}
}

func (d *DLQ) Key() string { return DLQPrefix + d.queue }

// Push records a failed job. Errors are logged: the job is already lost
// from the work queue and the order keeps its pending flag.
func (d *DLQ) Push(ctx context.Context, jobType string, payload json.RawMessage, reason string, attempts int) {
	entry := DLQEntry{
		OriginalQueue: d.queue,
		JobType:       jobType,
		Payload:       payload,
		Reason:        reason,
		FailedAt:      time.Now().UTC().Format(time.RFC3339),
		Attempts:      attempts,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		log.Error().Err(err).Str("queue", d.queue).Msg("dlq: marshal entry")
		return
	}
	if err := d.rdb.LPush(ctx, d.Key(), data).Err(); err != nil {
		log.Error().Err(err).Str("dlq_key", d.Key()).RawJSON("payload", payload).Msg("dlq: push failed")
		return
	}
	log.Warn().
		Str("queue", d.queue).
		Str("job_type", jobType).
		Str("reason", reason).
		Int("attempts", attempts).
		Msg("dlq: job moved to dead letter queue")
}

// Len is reported by /health.
func (d *DLQ) Len(ctx context.Context) (int64, error) {
	return d.rdb.LLen(ctx, d.Key()).Result()
}

// Entradas returns up to limit entries, newest first. Malformed elements
// are skipped.
func (d *DLQ) Entradas(ctx context.Context, limit int) ([]DLQEntry, error) {
	raws, err := d.rdb.LRange(ctx, d.Key(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("dlq: lrange %s: %w", d.Key(), err)
	}
	out := make([]DLQEntry, 0, len(raws))
	for _, raw := range raws {
		var e DLQEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			continue
		}
		e.raw = raw
		out = append(out, e)
	}
	return out, nil
}

func (d *DLQ) Quitar(ctx context.Context, e DLQEntry) error {
	return d.rdb.LRem(ctx, d.Key(), 1, e.raw).Err()
}

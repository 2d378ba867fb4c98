// Package queue provides the redis-backed grading work queue and worker pool.
package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "gradepilot",
	Subsystem: "queue",
	Name:      "grading_jobs_pending",
	Help:      "Number of submission ids waiting in the grading queue",
})

// ErrClosed is returned by Dequeue when the supplied context is done.
var ErrClosed = errors.New("queue closed")

const dequeueBlock = 2 * time.Second

// Queue is a redis list of submission ids awaiting grading.
type Queue struct {
	client *redis.Client
	key    string
	logger zerolog.Logger
}

// New constructs a grading queue on the given redis client.
func New(client *redis.Client, key string, logger zerolog.Logger) *Queue {
	if key == "" {
		key = "grading:queue"
	}

	return &Queue{
		client: client,
		key:    key,
		logger: logger.With().Str("component", "grading_queue").Logger(),
	}
}

// Enqueue pushes a submission id onto the queue.
func (q *Queue) Enqueue(ctx context.Context, submissionID uint) error {
	if err := q.client.LPush(ctx, q.key, strconv.FormatUint(uint64(submissionID), 10)).Err(); err != nil {
		return fmt.Errorf("enqueue submission %d: %w", submissionID, err)
	}

	if depth, err := q.client.LLen(ctx, q.key).Result(); err == nil {
		queueDepth.Set(float64(depth))
	}

	q.logger.Debug().Uint("submission_id", submissionID).Msg("grading job enqueued")
	return nil
}

// Dequeue blocks until a submission id is available or ctx is done.
func (q *Queue) Dequeue(ctx context.Context) (uint, error) {
	for {
		select {
		case <-ctx.Done():
			return 0, ErrClosed
		default:
		}

		values, err := q.client.BRPop(ctx, dequeueBlock, q.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return 0, ErrClosed
			}
			return 0, fmt.Errorf("dequeue: %w", err)
		}

		// BRPop returns [key, value].
		id, err := strconv.ParseUint(values[1], 10, 64)
		if err != nil {
			q.logger.Warn().Str("value", values[1]).Msg("dropping malformed queue entry")
			continue
		}

		if depth, lenErr := q.client.LLen(ctx, q.key).Result(); lenErr == nil {
			queueDepth.Set(float64(depth))
		}

		return uint(id), nil
	}
}

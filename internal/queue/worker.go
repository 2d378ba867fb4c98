package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	jobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gradepilot",
		Subsystem: "queue",
		Name:      "grading_jobs_total",
		Help:      "Grading jobs processed by workers",
	}, []string{"outcome"})

	jobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "gradepilot",
		Subsystem: "queue",
		Name:      "grading_job_duration_seconds",
		Help:      "Wall time spent grading one submission",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})
)

// GradeFunc executes the grading workflow for one submission.
type GradeFunc func(ctx context.Context, submissionID uint) error

// Pool consumes the grading queue with a fixed number of workers. Each worker
// handles one submission at a time; submissions are graded in parallel across
// workers.
type Pool struct {
	queue   *Queue
	grade   GradeFunc
	size    int
	timeout time.Duration
	logger  zerolog.Logger
	wg      sync.WaitGroup
}

// NewPool builds a worker pool of the given size.
func NewPool(queue *Queue, grade GradeFunc, size int, jobTimeout time.Duration, logger zerolog.Logger) *Pool {
	if size <= 0 {
		size = 2
	}
	if jobTimeout <= 0 {
		jobTimeout = 5 * time.Minute
	}

	return &Pool{
		queue:   queue,
		grade:   grade,
		size:    size,
		timeout: jobTimeout,
		logger:  logger.With().Str("component", "grading_pool").Logger(),
	}
}

// Start launches the workers. They run until ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
}

// Wait blocks until all workers have exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) run(ctx context.Context, worker int) {
	defer p.wg.Done()
	logger := p.logger.With().Int("worker", worker).Logger()

	for {
		submissionID, err := p.queue.Dequeue(ctx)
		if errors.Is(err, ErrClosed) {
			logger.Info().Msg("worker stopping")
			return
		}
		if err != nil {
			logger.Error().Err(err).Msg("dequeue failed")
			continue
		}

		start := time.Now()
		jobCtx, cancel := context.WithTimeout(ctx, p.timeout)
		err = p.grade(jobCtx, submissionID)
		cancel()
		jobDuration.Observe(time.Since(start).Seconds())

		if err != nil {
			jobsProcessed.WithLabelValues("error").Inc()
			logger.Error().Err(err).Uint("submission_id", submissionID).Msg("grading job failed")
			continue
		}

		jobsProcessed.WithLabelValues("ok").Inc()
		logger.Info().Uint("submission_id", submissionID).Msg("grading job finished")
	}
}

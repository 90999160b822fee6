package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/statement-ledger/internal/jobs"
	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/google/uuid"
)

// DefaultMaxRetries applies to jobs published with MaxRetries zero.
const DefaultMaxRetries = 3

var errQueueClosed = errors.New("queue is closed")

// Queue feeds folder ingestions to a fixed set of workers over a buffered
// channel. With one worker, ingestions of the same ledger never overlap.
type Queue struct {
	pending    chan *jobs.IngestFolderJob
	closing    chan struct{}
	workers    sync.WaitGroup
	mu         sync.RWMutex
	closed     bool
	store      jobs.JobStore
	size       int
	retryDelay time.Duration
}

// NewQueue buffers up to bufferSize jobs before PublishIngestFolder blocks.
// store may be nil.
func NewQueue(bufferSize, workers int, store jobs.JobStore) *Queue {
	if workers < 1 {
		workers = 1
	}
	return &Queue{
		pending:    make(chan *jobs.IngestFolderJob, bufferSize),
		closing:    make(chan struct{}),
		store:      store,
		size:       workers,
		retryDelay: time.Second,
	}
}

// WithRetryDelay sets the retry backoff unit: retry n waits n units.
func (q *Queue) WithRetryDelay(d time.Duration) *Queue {
	q.retryDelay = d
	return q
}

func (q *Queue) PublishIngestFolder(ctx context.Context, job *jobs.IngestFolderJob) error {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()
	if closed {
		return fmt.Errorf("PublishIngestFolder: %w", errQueueClosed)
	}

	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = DefaultMaxRetries
	}
	q.save(ctx, job)

	select {
	case q.pending <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closing:
		return fmt.Errorf("PublishIngestFolder: %w", errQueueClosed)
	}
}

// Start launches the workers. They exit when ctx is done or Stop is called.
func (q *Queue) Start(ctx context.Context, handler jobs.Handler) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return fmt.Errorf("Start: %w", errQueueClosed)
	}

	for i := 0; i < q.size; i++ {
		q.workers.Add(1)
		go q.work(ctx, handler)
	}
	return nil
}

func (q *Queue) work(ctx context.Context, handler jobs.Handler) {
	defer q.workers.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closing:
			return
		case job := <-q.pending:
			q.run(ctx, job, handler)
		}
	}
}

func (q *Queue) run(ctx context.Context, job *jobs.IngestFolderJob, handler jobs.Handler) {
	started := time.Now()
	job.Status = jobs.JobStatusRunning
	job.StartedAt = &started
	q.save(ctx, job)

	log := logger.FromContext(ctx).With().Str("job_id", job.JobID).Str("folder", job.Folder).Logger()
	err := handler(logger.WithContext(ctx, log), job)

	finished := time.Now()
	job.CompletedAt = &finished

	switch {
	case err == nil:
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
	case job.RetryCount < job.MaxRetries:
		job.Error = err.Error()
		job.RetryCount++
		job.Status = jobs.JobStatusRetrying
		backoff := time.Duration(job.RetryCount) * q.retryDelay
		log.Warn().Err(err).Int("retry_count", job.RetryCount).Dur("backoff", backoff).Msg("Folder ingestion failed, retrying")

		time.AfterFunc(backoff, func() {
			job.Status = jobs.JobStatusPending
			job.StartedAt, job.CompletedAt = nil, nil
			if err := q.PublishIngestFolder(ctx, job); err != nil {
				log.Warn().Err(err).Msg("Dropped retry")
			}
		})
	default:
		job.Error = err.Error()
		job.Status = jobs.JobStatusFailed
		log.Error().Err(err).Int("retry_count", job.RetryCount).Msg("Folder ingestion failed")
	}

	q.save(ctx, job)
}

func (q *Queue) save(ctx context.Context, job *jobs.IngestFolderJob) {
	if q.store == nil {
		return
	}
	if err := q.store.SaveJob(ctx, job); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("job_id", job.JobID).Msg("Failed to save job state")
	}
}

// Stop refuses further jobs and waits for running ingestions until ctx is
// done. Jobs still buffered are dropped.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closing)
	q.mu.Unlock()

	idle := make(chan struct{})
	go func() {
		q.workers.Wait()
		close(idle)
	}()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var (
	_ jobs.Publisher = (*Queue)(nil)
	_ jobs.Consumer  = (*Queue)(nil)
)

// Package worker runs the gateway's background analysis jobs.
package worker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-dashboard/internal/domain"
)

var (
	// ErrQueueFull is returned when the job buffer has no room.
	ErrQueueFull = errors.New("analysis queue full")
	// ErrQueueClosed is returned after Stop.
	ErrQueueClosed = errors.New("analysis queue closed")
)

// Job asks for one ticket to be analyzed.
type Job struct {
	TicketID int64
	Mode     domain.AnalysisMode
	Source   string
}

// TicketAnalyzer runs an analysis and takes care of its side effects.
type TicketAnalyzer interface {
	Analyze(ctx context.Context, id int64, mode domain.AnalysisMode, source string) (*domain.Analysis, error)
}

// AnalysisQueue feeds jobs to a fixed set of worker goroutines.
type AnalysisQueue struct {
	analyzer TicketAnalyzer
	logger   *zap.Logger
	workers  int

	mu      sync.Mutex
	jobs    chan Job
	closed  bool
	wg      sync.WaitGroup
	cancel  context.CancelFunc
	started bool
}

// NewAnalysisQueue builds a queue holding up to buffer pending jobs.
func NewAnalysisQueue(analyzer TicketAnalyzer, workers, buffer int, logger *zap.Logger) *AnalysisQueue {
	if workers < 1 {
		workers = 1
	}
	if buffer < 1 {
		buffer = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalysisQueue{
		analyzer: analyzer,
		logger:   logger.Named("analysis_queue"),
		workers:  workers,
		jobs:     make(chan Job, buffer),
	}
}

// Start launches the workers. Jobs run with a context derived from ctx that is
// cancelled by Stop once the buffer is drained or ctx ends.
func (q *AnalysisQueue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true
	ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.run(ctx, i)
	}
	q.logger.Info("analysis workers started", zap.Int("workers", q.workers))
}

// Enqueue adds a job without blocking.
func (q *AnalysisQueue) Enqueue(job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.jobs <- job:
		q.logger.Info("analysis queued", zap.Int64("ticket_id", job.TicketID), zap.String("source", job.Source))
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop refuses new jobs, lets the workers finish the buffered ones and waits.
func (q *AnalysisQueue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	q.wg.Wait()
	if q.cancel != nil {
		q.cancel()
	}
	q.logger.Info("analysis workers stopped")
}

func (q *AnalysisQueue) run(ctx context.Context, id int) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-q.jobs:
			if !ok {
				return
			}
			q.process(ctx, id, job)
		}
	}
}

func (q *AnalysisQueue) process(ctx context.Context, worker int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("analysis job panicked", zap.Int("worker", worker), zap.Int64("ticket_id", job.TicketID), zap.Any("panic", r))
		}
	}()
	if _, err := q.analyzer.Analyze(ctx, job.TicketID, job.Mode, job.Source); err != nil {
		q.logger.Error("analysis job failed", zap.Int("worker", worker), zap.Int64("ticket_id", job.TicketID), zap.Error(err))
		return
	}
	q.logger.Info("analysis job done", zap.Int("worker", worker), zap.Int64("ticket_id", job.TicketID))
}

package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-dashboard/internal/domain"
	"github.com/spec-kit/ticket-dashboard/internal/helpdesk"
	"github.com/spec-kit/ticket-dashboard/internal/repository"
)

const (
	pollPageSize   = 30
	pollRetryDelay = time.Minute
)

// TicketLister lists upstream tickets.
type TicketLister interface {
	ListTickets(ctx context.Context, opts helpdesk.ListOptions) (*domain.TicketPage, error)
}

// Enqueuer accepts analysis jobs.
type Enqueuer interface {
	Enqueue(job Job) error
}

// Poller checks the configured groups for tickets created after it started and
// queues each one for analysis exactly once.
type Poller struct {
	lister   TicketLister
	queue    Enqueuer
	groups   []int64
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time

	mu        sync.Mutex
	startedAt time.Time
	seen      map[int64]struct{}
}

// NewPoller builds a poller. now may be nil.
func NewPoller(lister TicketLister, queue Enqueuer, groups []int64, interval time.Duration, logger *zap.Logger, now func() time.Time) *Poller {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		lister:   lister,
		queue:    queue,
		groups:   append([]int64(nil), groups...),
		interval: interval,
		logger:   logger.Named("poller"),
		now:      now,
		seen:     make(map[int64]struct{}),
	}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	if len(p.groups) == 0 {
		p.logger.Info("no groups configured for auto-analysis, poller not started")
		return
	}
	p.mark()
	p.logger.Info("ticket poller started",
		zap.Time("started_at", p.startedAt),
		zap.Int64s("groups", p.groups),
		zap.Duration("interval", p.interval),
	)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		delay := p.interval
		if _, err := p.CheckNewTickets(ctx); err != nil {
			p.logger.Error("poll failed", zap.Error(err))
			delay = pollRetryDelay
		}
		ticker.Reset(delay)
		select {
		case <-ctx.Done():
			p.logger.Info("ticket poller stopped")
			return
		case <-ticker.C:
		}
	}
}

func (p *Poller) mark() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startedAt.IsZero() {
		p.startedAt = p.now()
	}
}

// CheckNewTickets runs one polling pass and returns how many tickets were
// queued. Tickets created before the poller started and tickets with
// unparsable creation times are remembered and skipped. A ticket the queue
// refused is retried on the next pass.
func (p *Poller) CheckNewTickets(ctx context.Context) (int, error) {
	p.mark()
	p.mu.Lock()
	defer p.mu.Unlock()

	queued := 0
	var firstErr error
	for _, group := range p.groups {
		groupID := group
		page, err := p.lister.ListTickets(ctx, helpdesk.ListOptions{Page: 1, PerPage: pollPageSize, GroupID: &groupID})
		if err != nil {
			p.logger.Warn("group poll failed", zap.Int64("group_id", group), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		for _, ticket := range page.Tickets {
			if _, done := p.seen[ticket.ID]; done {
				continue
			}
			created, ok := domain.ParseTimestamp(ticket.CreatedAt)
			if !ok {
				p.logger.Warn("unparsable created_at, skipping", zap.Int64("ticket_id", ticket.ID), zap.String("created_at", ticket.CreatedAt))
				p.seen[ticket.ID] = struct{}{}
				continue
			}
			if created.Before(p.startedAt) {
				p.seen[ticket.ID] = struct{}{}
				continue
			}
			if err := p.queue.Enqueue(Job{TicketID: ticket.ID, Mode: domain.AnalysisModeRequest, Source: repository.SourcePoller}); err != nil {
				p.logger.Warn("could not queue ticket", zap.Int64("ticket_id", ticket.ID), zap.Error(err))
				continue
			}
			p.logger.Info("new ticket detected", zap.Int64("ticket_id", ticket.ID), zap.Int64("group_id", group), zap.Time("created_at", created))
			p.seen[ticket.ID] = struct{}{}
			queued++
		}
	}
	return queued, firstErr
}

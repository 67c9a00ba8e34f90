package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-dashboard/internal/domain"
	"github.com/spec-kit/ticket-dashboard/internal/helpdesk"
	"github.com/spec-kit/ticket-dashboard/internal/repository"
)

type recordingAnalyzer struct {
	mu    sync.Mutex
	ids   []int64
	block chan struct{}
	err   error
}

func (r *recordingAnalyzer) Analyze(ctx context.Context, id int64, mode domain.AnalysisMode, source string) (*domain.Analysis, error) {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	r.ids = append(r.ids, id)
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return &domain.Analysis{TicketID: id}, nil
}

func (r *recordingAnalyzer) processed() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.ids...)
}

func TestAnalysisQueueDrainsOnStop(t *testing.T) {
	analyzer := &recordingAnalyzer{}
	q := NewAnalysisQueue(analyzer, 2, 10, zap.NewNop())
	q.Start(context.Background())
	for id := int64(1); id <= 5; id++ {
		if err := q.Enqueue(Job{TicketID: id, Mode: domain.AnalysisModeRequest}); err != nil {
			t.Fatalf("Enqueue(%d) returned error: %v", id, err)
		}
	}
	q.Stop()

	if got := analyzer.processed(); len(got) != 5 {
		t.Fatalf("expected 5 processed jobs, got %v", got)
	}
	if err := q.Enqueue(Job{TicketID: 6}); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed after Stop, got %v", err)
	}
}

func TestAnalysisQueueFull(t *testing.T) {
	analyzer := &recordingAnalyzer{block: make(chan struct{})}
	q := NewAnalysisQueue(analyzer, 1, 1, zap.NewNop())

	if err := q.Enqueue(Job{TicketID: 1}); err != nil {
		t.Fatalf("first Enqueue returned error: %v", err)
	}
	if err := q.Enqueue(Job{TicketID: 2}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}

	q.Start(context.Background())
	close(analyzer.block)
	q.Stop()
	if got := analyzer.processed(); len(got) != 1 || got[0] != 1 {
		t.Fatalf("unexpected processed jobs %v", got)
	}
}

func TestAnalysisQueueSurvivesFailures(t *testing.T) {
	analyzer := &recordingAnalyzer{err: errors.New("model down")}
	q := NewAnalysisQueue(analyzer, 1, 4, zap.NewNop())
	q.Start(context.Background())
	_ = q.Enqueue(Job{TicketID: 1})
	_ = q.Enqueue(Job{TicketID: 2})
	q.Stop()
	if got := analyzer.processed(); len(got) != 2 {
		t.Fatalf("a failing job must not stop the worker, processed %v", got)
	}
}

type stubLister struct {
	mu     sync.Mutex
	pages  map[int64][]domain.Ticket
	groups []int64
}

func (s *stubLister) ListTickets(ctx context.Context, opts helpdesk.ListOptions) (*domain.TicketPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups = append(s.groups, *opts.GroupID)
	return &domain.TicketPage{Tickets: s.pages[*opts.GroupID]}, nil
}

type stubQueue struct {
	jobs   []Job
	refuse bool
}

func (s *stubQueue) Enqueue(job Job) error {
	if s.refuse {
		return ErrQueueFull
	}
	s.jobs = append(s.jobs, job)
	return nil
}

func TestPollerOnlyQueuesTicketsCreatedAfterStart(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	lister := &stubLister{pages: map[int64][]domain.Ticket{
		100: {
			{ID: 1, CreatedAt: "2024-05-01T11:59:00Z"},
			{ID: 2, CreatedAt: "2024-05-01T12:05:00Z"},
			{ID: 3, CreatedAt: "not a date"},
		},
		200: {
			{ID: 4, CreatedAt: "2024-05-01T12:10:00Z"},
		},
	}}
	queue := &stubQueue{}
	p := NewPoller(lister, queue, []int64{100, 200}, time.Minute, zap.NewNop(), func() time.Time { return start })

	queued, err := p.CheckNewTickets(context.Background())
	if err != nil {
		t.Fatalf("CheckNewTickets returned error: %v", err)
	}
	if queued != 2 || len(queue.jobs) != 2 || queue.jobs[0].TicketID != 2 || queue.jobs[1].TicketID != 4 {
		t.Fatalf("unexpected jobs %+v", queue.jobs)
	}
	if queue.jobs[0].Source != repository.SourcePoller {
		t.Fatalf("unexpected source %q", queue.jobs[0].Source)
	}

	queued, _ = p.CheckNewTickets(context.Background())
	if queued != 0 || len(queue.jobs) != 2 {
		t.Fatalf("tickets must be queued once, got %+v", queue.jobs)
	}
}

func TestPollerRetriesRefusedTickets(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	lister := &stubLister{pages: map[int64][]domain.Ticket{
		100: {{ID: 7, CreatedAt: "2024-05-01T12:01:00Z"}},
	}}
	queue := &stubQueue{refuse: true}
	p := NewPoller(lister, queue, []int64{100}, time.Minute, zap.NewNop(), func() time.Time { return start })

	if queued, _ := p.CheckNewTickets(context.Background()); queued != 0 {
		t.Fatalf("refused ticket must not count as queued")
	}
	queue.refuse = false
	if queued, _ := p.CheckNewTickets(context.Background()); queued != 1 {
		t.Fatalf("refused ticket must be retried, queued %d", queued)
	}
}

func TestPollerRunStopsOnCancel(t *testing.T) {
	lister := &stubLister{pages: map[int64][]domain.Ticket{}}
	p := NewPoller(lister, &stubQueue{}, []int64{1}, time.Hour, zap.NewNop(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}

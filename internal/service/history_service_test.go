package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-dashboard/internal/domain"
	"github.com/spec-kit/ticket-dashboard/internal/events"
	"github.com/spec-kit/ticket-dashboard/internal/repository"
	apperrors "github.com/spec-kit/ticket-dashboard/pkg/util/errorutil"
)

type memoryHistory struct {
	entries []domain.TicketHistory
	err     error
}

func (m *memoryHistory) Create(ctx context.Context, entry *domain.TicketHistory) error {
	if m.err != nil {
		return m.err
	}
	entry.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memoryHistory) ListByTicket(ctx context.Context, ticketID int64, limit int) ([]domain.TicketHistory, error) {
	var out []domain.TicketHistory
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if m.entries[i].TicketID == ticketID {
			out = append(out, m.entries[i])
		}
	}
	return out, nil
}

func TestHistoryServiceRecordsTicketEvents(t *testing.T) {
	repo := &memoryHistory{}
	dispatcher := events.NewInMemoryDispatcher()
	history := NewHistoryService(repo, dispatcher, zap.NewNop())
	history.RegisterHandlers()

	group := int64(100)
	ctx := context.Background()
	_ = dispatcher.Publish(ctx, events.NewEvent(events.EventTicketCreated, 7, repository.SourceWebhook, events.TicketChangedPayload{GroupID: &group}))
	_ = dispatcher.Publish(ctx, events.NewEvent(events.EventTicketAnalyzed, 7, repository.SourceWebhook, events.TicketAnalyzedPayload{
		Analysis: &domain.Analysis{TicketID: 7, Mode: domain.AnalysisModeRequest, Summary: "vpn down"},
	}))
	_ = dispatcher.Publish(ctx, events.NewEvent(events.EventAnalysisFailed, 8, repository.SourcePoller, events.AnalysisFailedPayload{Reason: "model down"}))

	timeline, err := history.Timeline(ctx, 7, 10)
	if err != nil {
		t.Fatalf("Timeline returned error: %v", err)
	}
	if len(timeline) != 2 {
		t.Fatalf("expected 2 entries for ticket 7, got %+v", timeline)
	}
	if timeline[0].EventType != string(events.EventTicketAnalyzed) || timeline[0].Details["summary"] != "vpn down" {
		t.Fatalf("newest entry should be the analysis, got %+v", timeline[0])
	}
	if timeline[1].Details["group_id"] != int64(100) || timeline[1].Source != repository.SourceWebhook {
		t.Fatalf("unexpected created entry %+v", timeline[1])
	}
	if repo.entries[2].Details["reason"] != "model down" {
		t.Fatalf("failure reason not recorded: %+v", repo.entries[2])
	}
}

func TestHistoryServiceDisabled(t *testing.T) {
	history := NewHistoryService(nil, events.NewInMemoryDispatcher(), nil)
	history.RegisterHandlers()
	if history.Enabled() {
		t.Fatalf("history without repository must be disabled")
	}
	_, err := history.Timeline(context.Background(), 1, 10)
	if !apperrors.IsCode(err, "HISTORY_DISABLED") {
		t.Fatalf("expected HISTORY_DISABLED, got %v", err)
	}
}

func TestHistoryWriteFailureSurfacesThroughDispatcher(t *testing.T) {
	repo := &memoryHistory{err: errors.New("db down")}
	dispatcher := events.NewInMemoryDispatcher()
	NewHistoryService(repo, dispatcher, nil).RegisterHandlers()

	err := dispatcher.Publish(context.Background(), events.NewEvent(events.EventTicketUpdated, 1, repository.SourceWebhook, events.TicketChangedPayload{}))
	if err == nil {
		t.Fatalf("expected the write failure to be reported")
	}
}

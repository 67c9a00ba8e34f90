package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-dashboard/internal/domain"
	"github.com/spec-kit/ticket-dashboard/internal/events"
	"github.com/spec-kit/ticket-dashboard/internal/repository"
	apperrors "github.com/spec-kit/ticket-dashboard/pkg/util/errorutil"
)

// HistoryService records ticket events into the timeline store.
type HistoryService struct {
	historyRepo repository.TicketHistoryRepository
	dispatcher  events.Dispatcher
	logger      *zap.Logger
}

// NewHistoryService creates the service. A nil repository disables recording.
func NewHistoryService(historyRepo repository.TicketHistoryRepository, dispatcher events.Dispatcher, logger *zap.Logger) *HistoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryService{historyRepo: historyRepo, dispatcher: dispatcher, logger: logger.Named("history")}
}

// Enabled reports whether a store is attached.
func (s *HistoryService) Enabled() bool {
	return s != nil && s.historyRepo != nil
}

// RegisterHandlers subscribes the recorder to every ticket event.
func (s *HistoryService) RegisterHandlers() {
	if !s.Enabled() || s.dispatcher == nil {
		return
	}
	for _, eventType := range []events.EventType{
		events.EventTicketCreated,
		events.EventTicketUpdated,
		events.EventTicketAnalyzed,
		events.EventAnalysisFailed,
	} {
		s.dispatcher.Subscribe(eventType, s.record)
	}
}

// Timeline lists the most recent events of a ticket, newest first.
func (s *HistoryService) Timeline(ctx context.Context, ticketID int64, limit int) ([]domain.TicketHistory, error) {
	if !s.Enabled() {
		return nil, apperrors.NewServiceUnavailable("HISTORY_DISABLED", "ticket history requires POSTGRES_DSN")
	}
	entries, err := s.historyRepo.ListByTicket(ctx, ticketID, limit)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return entries, nil
}

func (s *HistoryService) record(ctx context.Context, event events.Event) error {
	entry := &domain.TicketHistory{
		TicketID:  event.TicketID,
		EventType: string(event.Type),
		Source:    event.Source,
		Details:   historyDetails(event.Payload),
	}
	if err := s.historyRepo.Create(ctx, entry); err != nil {
		s.logger.Warn("history write failed", zap.Int64("ticket_id", event.TicketID), zap.String("event", string(event.Type)), zap.Error(err))
		return err
	}
	return nil
}

func historyDetails(payload any) map[string]any {
	details := map[string]any{}
	switch p := payload.(type) {
	case events.TicketChangedPayload:
		if p.GroupID != nil {
			details["group_id"] = *p.GroupID
		}
	case events.TicketAnalyzedPayload:
		if a := p.Analysis; a != nil {
			details["mode"] = string(a.Mode)
			details["summary"] = a.Summary
			details["classification"] = a.Classification
			details["sentiment"] = a.Sentiment
		}
	case events.AnalysisFailedPayload:
		details["reason"] = p.Reason
	}
	return details
}

package service

import (
	"context"
	"errors"
	"strconv"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-dashboard/internal/analysis"
	"github.com/spec-kit/ticket-dashboard/internal/domain"
	"github.com/spec-kit/ticket-dashboard/internal/events"
	"github.com/spec-kit/ticket-dashboard/internal/helpdesk"
	"github.com/spec-kit/ticket-dashboard/internal/repository"
	apperrors "github.com/spec-kit/ticket-dashboard/pkg/util/errorutil"
)

const summaryMaxRunes = 500

// Helpdesk is the upstream ticket system.
type Helpdesk interface {
	ListTickets(ctx context.Context, opts helpdesk.ListOptions) (*domain.TicketPage, error)
	GetTicket(ctx context.Context, id int64) (*domain.Ticket, error)
	ListConversations(ctx context.Context, id int64) ([]domain.Conversation, error)
	SearchTickets(ctx context.Context, query string) ([]domain.Ticket, error)
	ListGroups(ctx context.Context) ([]domain.Group, error)
}

// Analyzer produces an AI analysis for a ticket.
type Analyzer interface {
	Configured() bool
	Analyze(ctx context.Context, ticket domain.Ticket, mode domain.AnalysisMode) (*domain.Analysis, error)
}

// TicketService coordinates upstream reads, caching and analysis.
type TicketService struct {
	helpdesk   Helpdesk
	analyzer   Analyzer
	cache      repository.TicketCache
	analyses   repository.AnalysisRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service. Analyses and
// Dispatcher may be nil.
type TicketDependencies struct {
	Helpdesk   Helpdesk
	Analyzer   Analyzer
	Cache      repository.TicketCache
	Analyses   repository.AnalysisRepository
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	if deps.Cache == nil {
		deps.Cache = repository.NewTicketCache(nil, 0, nil)
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &TicketService{
		helpdesk:   deps.Helpdesk,
		analyzer:   deps.Analyzer,
		cache:      deps.Cache,
		analyses:   deps.Analyses,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger.Named("tickets"),
	}
}

// ListTickets returns one page, served from the cache when fresh.
func (s *TicketService) ListTickets(ctx context.Context, opts helpdesk.ListOptions) (*domain.TicketPage, error) {
	key := repository.PageKey{Page: opts.Page, PerPage: opts.PerPage, GroupID: opts.GroupID}
	if page, ok := s.cache.GetPage(ctx, key); ok {
		return page, nil
	}
	page, err := s.helpdesk.ListTickets(ctx, opts)
	if err != nil {
		return nil, upstreamError("ticket", err)
	}
	s.cache.SetPage(ctx, key, page)
	return page, nil
}

// GetTicket returns one ticket, optionally with its conversations embedded.
func (s *TicketService) GetTicket(ctx context.Context, id int64, includeConversations bool) (*domain.Ticket, error) {
	if ticket, ok := s.cache.GetTicket(ctx, id, includeConversations); ok {
		return ticket, nil
	}
	ticket, err := s.helpdesk.GetTicket(ctx, id)
	if err != nil {
		return nil, upstreamError("ticket", err)
	}
	if includeConversations {
		conversations, err := s.helpdesk.ListConversations(ctx, id)
		if err != nil {
			s.logger.Warn("conversations unavailable", zap.Int64("ticket_id", id), zap.Error(err))
			conversations = []domain.Conversation{}
		}
		ticket.Conversations = conversations
	}
	s.cache.SetTicket(ctx, ticket, includeConversations)
	return ticket, nil
}

// Summary returns subject and the first 500 characters of the description.
func (s *TicketService) Summary(ctx context.Context, id int64) (*domain.TicketSummary, error) {
	ticket, err := s.GetTicket(ctx, id, false)
	if err != nil {
		return nil, err
	}
	description := []rune(ticket.Description)
	if len(description) > summaryMaxRunes {
		description = description[:summaryMaxRunes]
	}
	return &domain.TicketSummary{
		TicketID:    strconv.FormatInt(id, 10),
		Subject:     ticket.Subject,
		Description: string(description),
	}, nil
}

// Conversations returns the ticket thread.
func (s *TicketService) Conversations(ctx context.Context, id int64) ([]domain.Conversation, error) {
	conversations, err := s.helpdesk.ListConversations(ctx, id)
	if err != nil {
		return nil, upstreamError("ticket", err)
	}
	return conversations, nil
}

// Search runs an upstream search.
func (s *TicketService) Search(ctx context.Context, query string) ([]domain.Ticket, error) {
	results, err := s.helpdesk.SearchTickets(ctx, query)
	if err != nil {
		return nil, upstreamError("ticket", err)
	}
	return results, nil
}

// Groups lists the upstream agent groups.
func (s *TicketService) Groups(ctx context.Context) ([]domain.Group, error) {
	groups, err := s.helpdesk.ListGroups(ctx)
	if err != nil {
		return nil, upstreamError("group", err)
	}
	return groups, nil
}

// Analyze runs an analysis, records it and publishes the outcome. Thread mode
// loads the conversations first.
func (s *TicketService) Analyze(ctx context.Context, id int64, mode domain.AnalysisMode, source string) (*domain.Analysis, error) {
	if s.analyzer == nil || !s.analyzer.Configured() {
		return nil, apperrors.NewServiceUnavailable("AI_NOT_CONFIGURED", analysis.ErrNotConfigured.Error())
	}
	ticket, err := s.GetTicket(ctx, id, mode == domain.AnalysisModeThread)
	if err != nil {
		return nil, err
	}

	result, err := s.analyzer.Analyze(ctx, *ticket, mode)
	if err != nil {
		s.publish(ctx, events.NewEvent(events.EventAnalysisFailed, id, source, events.AnalysisFailedPayload{Reason: err.Error()}))
		if errors.Is(err, analysis.ErrNotConfigured) {
			return nil, apperrors.NewServiceUnavailable("AI_NOT_CONFIGURED", err.Error())
		}
		return nil, apperrors.NewBadGateway("analysis failed", err)
	}

	if s.analyses != nil {
		if err := s.analyses.Create(ctx, repository.NewAnalysisRecord(result, source)); err != nil {
			s.logger.Warn("analysis log write failed", zap.Int64("ticket_id", id), zap.Error(err))
		}
	}
	s.publish(ctx, events.NewEvent(events.EventTicketAnalyzed, id, source, events.TicketAnalyzedPayload{Analysis: result}))
	return result, nil
}

// History lists the most recent recorded analyses of a ticket.
func (s *TicketService) History(ctx context.Context, id int64, limit int) ([]repository.AnalysisRecord, error) {
	if s.analyses == nil {
		return nil, apperrors.NewServiceUnavailable("HISTORY_DISABLED", "analysis history requires POSTGRES_DSN")
	}
	records, err := s.analyses.ListByTicket(ctx, id, limit)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return records, nil
}

// Invalidate drops cached copies of a ticket.
func (s *TicketService) Invalidate(ctx context.Context, id int64) {
	s.cache.InvalidateTicket(ctx, id)
}

func (s *TicketService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event", string(event.Type)), zap.Int64("ticket_id", event.TicketID), zap.Error(err))
	}
}

func upstreamError(resource string, err error) error {
	if errors.Is(err, helpdesk.ErrNotFound) {
		return apperrors.NewNotFound(resource, nil)
	}
	return apperrors.NewBadGateway("helpdesk request failed", err)
}

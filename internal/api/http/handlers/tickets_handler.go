package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-dashboard/internal/api/dto"
	"github.com/spec-kit/ticket-dashboard/internal/domain"
	"github.com/spec-kit/ticket-dashboard/internal/helpdesk"
	"github.com/spec-kit/ticket-dashboard/internal/repository"
	"github.com/spec-kit/ticket-dashboard/internal/service"
	apperrors "github.com/spec-kit/ticket-dashboard/pkg/util/errorutil"
)

const (
	maxPerPage          = 100
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// TicketsHandler serves the ticket endpoints consumed by the dashboard.
type TicketsHandler struct {
	service *service.TicketService
	history *service.HistoryService
}

// NewTicketsHandler constructs handler. history may be nil.
func NewTicketsHandler(ticketService *service.TicketService, history *service.HistoryService) *TicketsHandler {
	return &TicketsHandler{service: ticketService, history: history}
}

// ListTickets GET /api/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	query, err := parseListQuery(c)
	if err != nil {
		return err
	}
	page, err := h.service.ListTickets(c.UserContext(), helpdesk.ListOptions{
		Page:    query.Page,
		PerPage: query.PerPage,
		GroupID: query.GroupID,
	})
	if err != nil {
		return err
	}
	if page.Tickets == nil {
		page.Tickets = []domain.Ticket{}
	}
	return c.JSON(dto.TicketListResponse{Status: dto.StatusSuccess, Data: *page})
}

// GetTicket GET /api/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.GetTicket(c.UserContext(), id, c.QueryBool("include_conversations", false))
	if err != nil {
		return err
	}
	return c.JSON(dto.TicketDetailResponse{Status: dto.StatusSuccess, Ticket: ticket})
}

// Summary GET /api/tickets/:id/summary.
func (h *TicketsHandler) Summary(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	summary, err := h.service.Summary(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(dto.SummaryResponse{
		Status:      dto.StatusSuccess,
		TicketID:    summary.TicketID,
		Subject:     summary.Subject,
		Description: summary.Description,
	})
}

// Conversations GET /api/tickets/:id/conversations.
func (h *TicketsHandler) Conversations(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	conversations, err := h.service.Conversations(c.UserContext(), id)
	if err != nil {
		return err
	}
	if conversations == nil {
		conversations = []domain.Conversation{}
	}
	return c.JSON(dto.ConversationsResponse{
		Status:        dto.StatusSuccess,
		TicketID:      id,
		Conversations: conversations,
		Total:         len(conversations),
	})
}

// Search GET /api/tickets/search.
func (h *TicketsHandler) Search(c *fiber.Ctx) error {
	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		return apperrors.NewValidationError("query is required", nil)
	}
	results, err := h.service.Search(c.UserContext(), query)
	if err != nil {
		return err
	}
	if results == nil {
		results = []domain.Ticket{}
	}
	return c.JSON(dto.SearchResponse{Status: dto.StatusSuccess, Results: results, Total: len(results)})
}

// Analyze POST /api/tickets/:id/analyze.
func (h *TicketsHandler) Analyze(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	var req dto.AnalyzeRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	if req.Mode == "" {
		req.Mode = c.Query("mode")
	}
	result, err := h.service.Analyze(c.UserContext(), id, domain.ParseAnalysisMode(req.Mode), repository.SourceAPI)
	if err != nil {
		return err
	}
	return c.JSON(dto.AnalyzeResponse{Status: dto.StatusSuccess, TicketID: id, Analysis: result})
}

// History GET /api/tickets/:id/analyses.
func (h *TicketsHandler) History(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	limit, err := historyLimit(c)
	if err != nil {
		return err
	}
	records, err := h.service.History(c.UserContext(), id, limit)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewAnalysisHistoryResponse(id, records))
}

// Timeline GET /api/tickets/:id/history.
func (h *TicketsHandler) Timeline(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	limit, err := historyLimit(c)
	if err != nil {
		return err
	}
	entries, err := h.history.Timeline(c.UserContext(), id, limit)
	if err != nil {
		return err
	}
	return c.JSON(dto.TicketHistoryResponse{Status: dto.StatusSuccess, TicketID: id, Events: entries, Total: len(entries)})
}

func historyLimit(c *fiber.Ctx) (int, error) {
	limit := c.QueryInt("limit", defaultHistoryLimit)
	if limit < 1 || limit > maxHistoryLimit {
		return 0, apperrors.NewValidationError("limit must be between 1 and 100", map[string]any{"limit": c.Query("limit")})
	}
	return limit, nil
}

func ticketID(c *fiber.Ctx) (int64, error) {
	raw := c.Params("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid ticket id", map[string]any{"id": raw})
	}
	return id, nil
}

func parseListQuery(c *fiber.Ctx) (dto.TicketListQuery, error) {
	q := dto.TicketListQuery{
		Page:    c.QueryInt("page", 1),
		PerPage: c.QueryInt("per_page", domain.DefaultPerPage),
	}
	if q.Page < 1 {
		return q, apperrors.NewValidationError("page must be at least 1", map[string]any{"page": c.Query("page")})
	}
	if q.PerPage < 1 || q.PerPage > maxPerPage {
		return q, apperrors.NewValidationError("per_page must be between 1 and 100", map[string]any{"per_page": c.Query("per_page")})
	}
	if raw := strings.TrimSpace(c.Query("group_id")); raw != "" {
		groupID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return q, apperrors.NewValidationError("invalid group_id", map[string]any{"group_id": raw})
		}
		q.GroupID = &groupID
	}
	return q, nil
}

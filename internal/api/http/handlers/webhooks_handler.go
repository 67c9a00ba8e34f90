package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-dashboard/internal/api/dto"
	"github.com/spec-kit/ticket-dashboard/internal/domain"
	"github.com/spec-kit/ticket-dashboard/internal/events"
	"github.com/spec-kit/ticket-dashboard/internal/repository"
	"github.com/spec-kit/ticket-dashboard/internal/service"
	"github.com/spec-kit/ticket-dashboard/internal/worker"
	apperrors "github.com/spec-kit/ticket-dashboard/pkg/util/errorutil"
)

const (
	statusOK    = "ok"
	statusError = "error"

	webhookPath = "/api/webhooks/freshservice/ticket-created"
)

// WebhookConfig holds the webhook behavior switches.
type WebhookConfig struct {
	MonitoredGroups []int64
	SlackConfigured bool
}

// WebhooksHandler receives helpdesk automation callbacks.
type WebhooksHandler struct {
	tickets    *service.TicketService
	queue      worker.Enqueuer
	dispatcher events.Dispatcher
	cfg        WebhookConfig
	logger     *zap.Logger
}

// NewWebhooksHandler constructs handler. dispatcher may be nil.
func NewWebhooksHandler(tickets *service.TicketService, queue worker.Enqueuer, dispatcher events.Dispatcher, cfg WebhookConfig, logger *zap.Logger) *WebhooksHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhooksHandler{
		tickets:    tickets,
		queue:      queue,
		dispatcher: dispatcher,
		cfg:        cfg,
		logger:     logger.Named("webhooks"),
	}
}

// TicketCreated POST /api/webhooks/freshservice/ticket-created.
func (h *WebhooksHandler) TicketCreated(c *fiber.Ctx) error {
	payload, err := parseWebhook(c)
	if err != nil {
		return err
	}
	ticketID := int64(payload.TicketChanges.ID)
	groupID := int64(payload.TicketChanges.GroupID)
	if ticketID == 0 {
		h.logger.Warn("webhook without ticket id")
		return c.JSON(dto.WebhookResponse{Status: statusError, Message: "No ticket ID found"})
	}
	h.logger.Info("ticket created", zap.Int64("ticket_id", ticketID), zap.Int64("group_id", groupID))

	h.publish(c, events.NewEvent(events.EventTicketCreated, ticketID, repository.SourceWebhook, events.TicketChangedPayload{GroupID: optionalID(groupID)}))

	if groupID != 0 && len(h.cfg.MonitoredGroups) > 0 && !slices.Contains(h.cfg.MonitoredGroups, groupID) {
		h.logger.Info("group not monitored, skipping", zap.Int64("group_id", groupID))
		return c.JSON(dto.WebhookResponse{Status: statusOK, Message: fmt.Sprintf("Group %d not configured for analysis", groupID)})
	}

	if err := h.enqueue(ticketID); err != nil {
		return err
	}
	return c.JSON(dto.WebhookResponse{
		Status:   statusOK,
		Message:  fmt.Sprintf("Analysis queued for ticket %d", ticketID),
		TicketID: &ticketID,
		GroupID:  optionalID(groupID),
	})
}

// TicketUpdated POST /api/webhooks/freshservice/ticket-updated.
func (h *WebhooksHandler) TicketUpdated(c *fiber.Ctx) error {
	payload, err := parseWebhook(c)
	if err != nil {
		return err
	}
	ticketID := int64(payload.TicketChanges.ID)
	if ticketID != 0 {
		h.tickets.Invalidate(c.UserContext(), ticketID)
		h.publish(c, events.NewEvent(events.EventTicketUpdated, ticketID, repository.SourceWebhook,
			events.TicketChangedPayload{GroupID: optionalID(int64(payload.TicketChanges.GroupID))}))
	}
	h.logger.Info("ticket updated", zap.Int64("ticket_id", ticketID))
	return c.JSON(dto.WebhookResponse{Status: statusOK, Message: "Update acknowledged"})
}

// Test GET /api/webhooks/test.
func (h *WebhooksHandler) Test(c *fiber.Ctx) error {
	groups := h.cfg.MonitoredGroups
	if groups == nil {
		groups = []int64{}
	}
	return c.JSON(fiber.Map{
		"status":           statusOK,
		"message":          "Webhook endpoint is active",
		"mode":             "webhook_only",
		"monitored_groups": groups,
		"slack_configured": h.cfg.SlackConfigured,
		"note":             "Configure the helpdesk automation to call " + webhookPath,
	})
}

// TestAnalysis POST /api/webhooks/test-analysis/:id.
func (h *WebhooksHandler) TestAnalysis(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	h.logger.Info("manual analysis triggered", zap.Int64("ticket_id", id))
	if err := h.enqueue(id); err != nil {
		return err
	}
	return c.JSON(dto.WebhookResponse{
		Status:  statusOK,
		Message: fmt.Sprintf("Test analysis queued for ticket %d", id),
		Note:    "Check backend logs and Slack for results",
	})
}

// Groups GET /api/freshservice/groups.
func (h *WebhooksHandler) Groups(c *fiber.Ctx) error {
	groups, err := h.tickets.Groups(c.UserContext())
	if err != nil {
		return err
	}
	if groups == nil {
		groups = []domain.Group{}
	}
	return c.JSON(fiber.Map{
		"status": statusOK,
		"groups": groups,
		"total":  len(groups),
		"note":   "Use the 'id' field to configure AUTO_ANALYZE_GROUP_IDS",
	})
}

func (h *WebhooksHandler) enqueue(ticketID int64) error {
	err := h.queue.Enqueue(worker.Job{TicketID: ticketID, Mode: domain.AnalysisModeRequest, Source: repository.SourceWebhook})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, worker.ErrQueueFull), errors.Is(err, worker.ErrQueueClosed):
		h.logger.Warn("analysis not queued", zap.Int64("ticket_id", ticketID), zap.Error(err))
		return apperrors.NewServiceUnavailable("QUEUE_UNAVAILABLE", err.Error())
	default:
		return apperrors.NewInternalError(err)
	}
}

func (h *WebhooksHandler) publish(c *fiber.Ctx, event events.Event) {
	if h.dispatcher == nil {
		return
	}
	if err := h.dispatcher.Publish(c.UserContext(), event); err != nil {
		h.logger.Warn("event handler failed", zap.String("event", string(event.Type)), zap.Error(err))
	}
}

func parseWebhook(c *fiber.Ctx) (*dto.TicketWebhookPayload, error) {
	var payload dto.TicketWebhookPayload
	if len(c.Body()) == 0 {
		return &payload, nil
	}
	if err := json.Unmarshal(c.Body(), &payload); err != nil {
		return nil, apperrors.NewValidationError("invalid webhook payload", nil)
	}
	return &payload, nil
}

func optionalID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

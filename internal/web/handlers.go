package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-dashboard/internal/apiclient"
	"github.com/spec-kit/ticket-dashboard/internal/domain"
	"github.com/spec-kit/ticket-dashboard/internal/loader"
	"github.com/spec-kit/ticket-dashboard/internal/view"
	apperrors "github.com/spec-kit/ticket-dashboard/pkg/util/errorutil"
)

// Handler serves the dashboard pages.
type Handler struct {
	sessions *SessionManager
	renderer *Renderer
	client   *apiclient.Client
	logger   *zap.Logger
}

func NewHandler(sessions *SessionManager, renderer *Renderer, client *apiclient.Client, logger *zap.Logger) *Handler {
	return &Handler{sessions: sessions, renderer: renderer, client: client, logger: logger.Named("web")}
}

type dashboardPage struct {
	Title string
	Model view.DashboardModel
}

type ticketPage struct {
	Title    string
	TicketID string
	Page     view.DetailPage
	Reply    view.ReplyState
	Analysis view.AnalysisState
}

type loginPage struct {
	Title    string
	HasToken bool
	Error    string
}

// Dashboard mounts the list on first visit, applies filter and search
// parameters, and renders the current projection.
func (h *Handler) Dashboard(c *fiber.Ctx) error {
	session := h.sessions.Get(c)
	ctx := c.UserContext()

	var err error
	switch {
	case c.Query("filter") == "1":
		group, status, parseErr := parseFilters(c.Query("group"), c.Query("status"))
		if parseErr != nil {
			return parseErr
		}
		err = session.Dashboard.ApplyFilters(ctx, group, status)
	case !session.Dashboard.Mounted() || c.Query("refresh") == "1":
		err = session.Dashboard.Mount(ctx)
	}
	if isUnauthorized(err) {
		return toLogin(c)
	}

	if c.Context().QueryArgs().Has("q") {
		session.Dashboard.Search(strings.Clone(c.Query("q")))
	}

	return h.renderer.Render(c, fiber.StatusOK, "dashboard", dashboardPage{
		Title: "Dashboard",
		Model: session.Dashboard.Model(),
	})
}

// LoadMore appends the next page and returns to the dashboard.
func (h *Handler) LoadMore(c *fiber.Ctx) error {
	session := h.sessions.Get(c)
	err := session.Dashboard.LoadMore(c.UserContext())
	if isUnauthorized(err) {
		return toLogin(c)
	}
	return c.Redirect("/", fiber.StatusSeeOther)
}

// Search replaces the list with server side search results. An empty query
// reloads the first page.
func (h *Handler) Search(c *fiber.Ctx) error {
	session := h.sessions.Get(c)
	query := strings.TrimSpace(c.FormValue("query"))

	var err error
	if query == "" {
		err = session.Dashboard.Mount(c.UserContext())
	} else {
		err = session.Tickets.SearchTickets(c.UserContext(), strings.Clone(query))
	}
	if isUnauthorized(err) {
		return toLogin(c)
	}
	return c.Redirect("/", fiber.StatusSeeOther)
}

// Ticket renders the detail page with its reply composer and analysis modal.
func (h *Handler) Ticket(c *fiber.Ctx) error {
	session := h.sessions.Get(c)
	rawID := strings.Clone(c.Params("id"))

	id, err := view.ParseTicketID(rawID)
	if err != nil {
		return h.renderer.Render(c, fiber.StatusBadRequest, "ticket", ticketPage{
			Title:    "Ticket",
			TicketID: rawID,
			Page:     view.DetailPage{Error: view.MsgTicketIDMissing},
		})
	}

	modal := session.Modal(id)
	if c.Query("analysis") == "1" {
		modal.Open()
	}
	data := ticketPage{
		Title:    "Ticket #" + rawID,
		TicketID: rawID,
		Reply:    session.Reply(id).State(),
		Analysis: modal.State(),
	}

	ticket, err := session.Detail.FetchTicketDetail(c.UserContext(), id)
	if isUnauthorized(err) {
		return toLogin(c)
	}
	status := fiber.StatusOK
	switch {
	case err == nil:
		detail := view.NewTicketDetail(*ticket, h.sessions.deps.Groups)
		data.Page.Ticket = &detail
		data.Title = ticket.Subject
	case isNotFound(err):
		status = fiber.StatusNotFound
		data.Page.NotFound = true
	case errors.Is(err, loader.ErrStale):
		data.Page.Loading = true
	default:
		status = fiber.StatusBadGateway
		data.Page.Error = loader.MsgFetchDetail + ": " + err.Error()
	}
	return h.renderer.Render(c, status, "ticket", data)
}

// Summary passes the ticket summary through as JSON.
func (h *Handler) Summary(c *fiber.Ctx) error {
	session := h.sessions.Get(c)
	id, err := view.ParseTicketID(c.Params("id"))
	if err != nil {
		return apperrors.NewValidationError(view.MsgTicketIDMissing, nil)
	}
	summary, err := session.Client.GetTicketSummary(c.UserContext(), id)
	if err != nil {
		return upstreamError(err)
	}
	return c.JSON(summary)
}

// Reply submits the reply composer.
func (h *Handler) Reply(c *fiber.Ctx) error {
	session := h.sessions.Get(c)
	id, err := view.ParseTicketID(c.Params("id"))
	if err != nil {
		return apperrors.NewValidationError(view.MsgTicketIDMissing, nil)
	}
	body := strings.Clone(c.FormValue("body"))
	private, _ := strconv.ParseBool(c.FormValue("private"))
	if err := session.Reply(id).Submit(c.UserContext(), body, private); err != nil {
		h.logger.Warn("reply failed", zap.Int64("ticket_id", id), zap.Error(err))
	}
	return c.Redirect("/ticket/"+strconv.FormatInt(id, 10)+"#reply", fiber.StatusSeeOther)
}

// Analyze runs the AI analysis in the posted mode.
func (h *Handler) Analyze(c *fiber.Ctx) error {
	session := h.sessions.Get(c)
	rawID := strings.Clone(c.Params("id"))
	id, err := view.ParseTicketID(rawID)
	if err != nil {
		return apperrors.NewValidationError(view.MsgTicketIDMissing, nil)
	}
	mode := domain.ParseAnalysisMode(c.FormValue("mode"))
	err = session.Modal(id).Analyze(c.UserContext(), rawID, mode)
	if isUnauthorized(err) {
		return toLogin(c)
	}
	return c.Redirect("/ticket/"+rawID+"#analysis", fiber.StatusSeeOther)
}

// AnalysisBack returns the modal to the mode selection.
func (h *Handler) AnalysisBack(c *fiber.Ctx) error {
	return h.withModal(c, func(m *view.AnalysisModal) { m.Back() }, "#analysis")
}

// AnalysisClose hides the modal.
func (h *Handler) AnalysisClose(c *fiber.Ctx) error {
	return h.withModal(c, func(m *view.AnalysisModal) { m.Close() }, "")
}

func (h *Handler) withModal(c *fiber.Ctx, fn func(*view.AnalysisModal), anchor string) error {
	session := h.sessions.Get(c)
	id, err := view.ParseTicketID(c.Params("id"))
	if err != nil {
		return apperrors.NewValidationError(view.MsgTicketIDMissing, nil)
	}
	fn(session.Modal(id))
	return c.Redirect("/ticket/"+strconv.FormatInt(id, 10)+anchor, fiber.StatusSeeOther)
}

// LoginForm shows the token form.
func (h *Handler) LoginForm(c *fiber.Ctx) error {
	session := h.sessions.Get(c)
	return h.renderer.Render(c, fiber.StatusOK, "login", loginPage{
		Title:    "Token",
		HasToken: session.Tokens.Token() != "",
	})
}

// Login stores the pasted bearer token for the session.
func (h *Handler) Login(c *fiber.Ctx) error {
	session := h.sessions.Get(c)
	token := strings.TrimSpace(c.FormValue("token"))
	if token == "" {
		return h.renderer.Render(c, fiber.StatusBadRequest, "login", loginPage{
			Title: "Token",
			Error: "Token cannot be empty",
		})
	}
	session.Login(token)
	return c.Redirect("/?refresh=1", fiber.StatusSeeOther)
}

// Logout forgets the session token.
func (h *Handler) Logout(c *fiber.Ctx) error {
	session := h.sessions.Get(c)
	session.Tokens.Clear()
	return c.Redirect("/login", fiber.StatusSeeOther)
}

// Health reports the dashboard and the upstream ticket API.
func (h *Handler) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	health, err := h.client.GetHealth(ctx)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    "DEPENDENCY_UNAVAILABLE",
				"message": "ticket api unavailable",
				"details": fiber.Map{"api": err.Error()},
			},
		})
	}
	return c.JSON(fiber.Map{
		"status":   "ok",
		"sessions": h.sessions.Len(),
		"api":      health.Status,
	})
}

func isUnauthorized(err error) bool {
	return err != nil && errors.Is(err, apiclient.ErrUnauthorized)
}

// toLogin sends the browser to the token form after the API rejected the session token.
func toLogin(c *fiber.Ctx) error {
	return c.Redirect("/login", fiber.StatusSeeOther)
}

func parseFilters(rawGroup, rawStatus string) (*int64, domain.Code, error) {
	var group *int64
	if rawGroup = strings.TrimSpace(rawGroup); rawGroup != "" {
		id, err := strconv.ParseInt(rawGroup, 10, 64)
		if err != nil {
			return nil, 0, apperrors.NewValidationError("invalid group filter", map[string]any{"group": rawGroup})
		}
		group = &id
	}
	var status domain.Code
	if rawStatus = strings.TrimSpace(rawStatus); rawStatus != "" {
		n, err := strconv.Atoi(rawStatus)
		if err != nil {
			return nil, 0, apperrors.NewValidationError("invalid status filter", map[string]any{"status": rawStatus})
		}
		status = domain.Code(n)
	}
	return group, status, nil
}

func isNotFound(err error) bool {
	var statusErr *apiclient.StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound
}

func upstreamError(err error) error {
	if isNotFound(err) {
		return apperrors.NewNotFound("ticket", nil)
	}
	if errors.Is(err, apiclient.ErrUnauthorized) {
		return apperrors.NewUnauthorized("ticket api rejected the session token")
	}
	return apperrors.NewBadGateway("ticket api request failed", err)
}

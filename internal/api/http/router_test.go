package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/ticket-dashboard/internal/api/http/handlers"
	"github.com/spec-kit/ticket-dashboard/internal/auth"
	"github.com/spec-kit/ticket-dashboard/internal/domain"
	"github.com/spec-kit/ticket-dashboard/internal/events"
	"github.com/spec-kit/ticket-dashboard/internal/helpdesk"
	"github.com/spec-kit/ticket-dashboard/internal/observability"
	"github.com/spec-kit/ticket-dashboard/internal/service"
	"github.com/spec-kit/ticket-dashboard/internal/worker"
)

type stubHelpdesk struct {
	lastOpts helpdesk.ListOptions
}

func (s *stubHelpdesk) ListTickets(ctx context.Context, opts helpdesk.ListOptions) (*domain.TicketPage, error) {
	s.lastOpts = opts
	return &domain.TicketPage{
		Tickets:    []domain.Ticket{{ID: 1, Subject: "Printer on fire"}},
		Pagination: domain.Pagination{Page: opts.Page, PerPage: opts.PerPage, Total: 1},
	}, nil
}

func (s *stubHelpdesk) GetTicket(ctx context.Context, id int64) (*domain.Ticket, error) {
	if id != 1 {
		return nil, helpdesk.ErrNotFound
	}
	return &domain.Ticket{ID: 1, Subject: "Printer on fire", Description: strings.Repeat("x", 600)}, nil
}

func (s *stubHelpdesk) ListConversations(ctx context.Context, id int64) ([]domain.Conversation, error) {
	return []domain.Conversation{{ID: 9, Body: "any update?"}}, nil
}

func (s *stubHelpdesk) SearchTickets(ctx context.Context, query string) ([]domain.Ticket, error) {
	return []domain.Ticket{{ID: 1, Subject: query}}, nil
}

func (s *stubHelpdesk) ListGroups(ctx context.Context) ([]domain.Group, error) {
	return []domain.Group{{ID: 100, Name: "Service Desk"}}, nil
}

type stubAnalyzer struct{}

func (stubAnalyzer) Configured() bool { return true }

func (stubAnalyzer) Analyze(ctx context.Context, ticket domain.Ticket, mode domain.AnalysisMode) (*domain.Analysis, error) {
	return &domain.Analysis{TicketID: ticket.ID, Mode: mode, Summary: "printer fire"}, nil
}

type stubQueue struct {
	jobs []worker.Job
	err  error
}

func (q *stubQueue) Enqueue(job worker.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type testServer struct {
	app      *fiber.App
	helpdesk *stubHelpdesk
	queue    *stubQueue
	tokens   *auth.TokenManager
}

func newTestServer(t *testing.T, authRequired bool, webhookHash string) *testServer {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics("test")
	hd := &stubHelpdesk{}
	queue := &stubQueue{}
	tokens := auth.NewTokenManager("secret", 5)
	dispatcher := events.NewInMemoryDispatcher()

	tickets := service.NewTicketService(service.TicketDependencies{
		Helpdesk:   hd,
		Analyzer:   stubAnalyzer{},
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 0)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("ticket-gateway", "test", nil),
		Tickets:        handlers.NewTicketsHandler(tickets, service.NewHistoryService(nil, dispatcher, logger)),
		Webhooks:       handlers.NewWebhooksHandler(tickets, queue, dispatcher, handlers.WebhookConfig{MonitoredGroups: []int64{100}}, logger),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, authRequired, logger),
		WebhookGuard:   auth.NewWebhookGuard(webhookHash, logger),
		Metrics:        metrics,
	})
	return &testServer{app: app, helpdesk: hd, queue: queue, tokens: tokens}
}

func (s *testServer) do(t *testing.T, method, path, body string, headers map[string]string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := s.app.Test(req)
	if err != nil {
		t.Fatalf("app.Test returned error: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	var decoded map[string]any
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
	}
	return resp.StatusCode, decoded
}

func errorCode(t *testing.T, body map[string]any) string {
	t.Helper()
	envelope, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error envelope, got %v", body)
	}
	code, _ := envelope["code"].(string)
	return code
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, false, "")
	for _, path := range []string{"/health", "/api/health"} {
		status, body := s.do(t, fiber.MethodGet, path, "", nil)
		if status != fiber.StatusOK || body["status"] != "ok" {
			t.Fatalf("%s: unexpected %d %v", path, status, body)
		}
	}
	status, body := s.do(t, fiber.MethodGet, "/health/ready", "", nil)
	if status != fiber.StatusOK || body["status"] != "ready" {
		t.Fatalf("ready without stores: %d %v", status, body)
	}
	if status, _ := s.do(t, fiber.MethodGet, "/metrics", "", nil); status != fiber.StatusOK {
		t.Fatalf("metrics: %d", status)
	}
}

func TestListTickets(t *testing.T) {
	s := newTestServer(t, false, "")
	status, body := s.do(t, fiber.MethodGet, "/api/tickets?page=2&per_page=10&group_id=100", "", nil)
	if status != fiber.StatusOK || body["status"] != "success" {
		t.Fatalf("unexpected %d %v", status, body)
	}
	data := body["data"].(map[string]any)
	if tickets := data["tickets"].([]any); len(tickets) != 1 {
		t.Fatalf("unexpected tickets %v", tickets)
	}
	opts := s.helpdesk.lastOpts
	if opts.Page != 2 || opts.PerPage != 10 || opts.GroupID == nil || *opts.GroupID != 100 {
		t.Fatalf("unexpected upstream options %+v", opts)
	}
}

func TestListTicketsValidation(t *testing.T) {
	s := newTestServer(t, false, "")
	for _, query := range []string{"page=0", "per_page=101", "group_id=abc"} {
		status, body := s.do(t, fiber.MethodGet, "/api/tickets?"+query, "", nil)
		if status != fiber.StatusBadRequest || errorCode(t, body) != "VALIDATION_FAILED" {
			t.Fatalf("%s: unexpected %d %v", query, status, body)
		}
	}
}

func TestRequestMetricsUseErrorStatus(t *testing.T) {
	s := newTestServer(t, false, "")
	if status, _ := s.do(t, fiber.MethodGet, "/api/tickets?page=0", "", nil); status != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}

	resp, err := s.app.Test(httptest.NewRequest(fiber.MethodGet, "/metrics", nil))
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	body := string(raw)
	want := `test_http_requests_total{method="GET",route="/api/tickets",status="400"} 1`
	if !strings.Contains(body, want) {
		t.Fatalf("expected metrics to contain %s", want)
	}
	if strings.Contains(body, `route="/api/tickets",status="200"`) {
		t.Fatalf("failed request was counted as 200")
	}
}

func TestGetTicketAndSummary(t *testing.T) {
	s := newTestServer(t, false, "")

	status, body := s.do(t, fiber.MethodGet, "/api/tickets/1?include_conversations=true", "", nil)
	if status != fiber.StatusOK {
		t.Fatalf("unexpected %d %v", status, body)
	}
	ticket := body["ticket"].(map[string]any)
	if convs, _ := ticket["conversations"].([]any); len(convs) != 1 {
		t.Fatalf("expected embedded conversations, got %v", ticket)
	}

	status, body = s.do(t, fiber.MethodGet, "/api/tickets/1/summary", "", nil)
	if status != fiber.StatusOK || body["ticket_id"] != "1" || len(body["description"].(string)) != 500 {
		t.Fatalf("unexpected summary %d %v", status, body)
	}

	status, body = s.do(t, fiber.MethodGet, "/api/tickets/2", "", nil)
	if status != fiber.StatusNotFound || errorCode(t, body) != "NOT_FOUND" {
		t.Fatalf("expected 404, got %d %v", status, body)
	}

	status, _ = s.do(t, fiber.MethodGet, "/api/tickets/abc", "", nil)
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for invalid id, got %d", status)
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	s := newTestServer(t, false, "")
	status, _ := s.do(t, fiber.MethodGet, "/api/tickets/search", "", nil)
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	status, body := s.do(t, fiber.MethodGet, "/api/tickets/search?query=printer", "", nil)
	if status != fiber.StatusOK || body["total"].(float64) != 1 {
		t.Fatalf("unexpected %d %v", status, body)
	}
}

func TestAnalyzeAndHistoryDisabled(t *testing.T) {
	s := newTestServer(t, false, "")
	status, body := s.do(t, fiber.MethodPost, "/api/tickets/1/analyze", `{"mode":"thread"}`, nil)
	if status != fiber.StatusOK {
		t.Fatalf("unexpected %d %v", status, body)
	}
	analysis := body["analysis"].(map[string]any)
	if analysis["summary"] != "printer fire" || analysis["mode"] != "thread" {
		t.Fatalf("unexpected analysis %v", analysis)
	}

	for _, path := range []string{"/api/tickets/1/analyses", "/api/tickets/1/history"} {
		status, body = s.do(t, fiber.MethodGet, path, "", nil)
		if status != fiber.StatusServiceUnavailable || errorCode(t, body) != "HISTORY_DISABLED" {
			t.Fatalf("%s: expected history disabled, got %d %v", path, status, body)
		}
	}
	if status, _ := s.do(t, fiber.MethodGet, "/api/tickets/1/history?limit=0", "", nil); status != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for limit 0, got %d", status)
	}
}

func TestAuthRequiredScopes(t *testing.T) {
	s := newTestServer(t, true, "")
	if status, _ := s.do(t, fiber.MethodGet, "/api/tickets", "", nil); status != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", status)
	}
	reader, _, _ := s.tokens.GenerateToken("viewer", auth.ScopeTicketsRead)
	headers := map[string]string{fiber.HeaderAuthorization: "Bearer " + reader}
	if status, _ := s.do(t, fiber.MethodGet, "/api/tickets", "", headers); status != fiber.StatusOK {
		t.Fatalf("reader should list tickets, got %d", status)
	}
	if status, _ := s.do(t, fiber.MethodPost, "/api/tickets/1/analyze", "", headers); status != fiber.StatusForbidden {
		t.Fatalf("reader must not analyze, got %d", status)
	}
	if status, _ := s.do(t, fiber.MethodGet, "/health", "", nil); status != fiber.StatusOK {
		t.Fatalf("health must stay public, got %d", status)
	}
}

func TestTicketCreatedWebhook(t *testing.T) {
	s := newTestServer(t, false, "")

	_, body := s.do(t, fiber.MethodPost, "/api/webhooks/freshservice/ticket-created", `{"ticket_changes":{}}`, nil)
	if body["status"] != "error" || body["message"] != "No ticket ID found" {
		t.Fatalf("unexpected response %v", body)
	}

	_, body = s.do(t, fiber.MethodPost, "/api/webhooks/freshservice/ticket-created", `{"ticket_changes":{"id":"INC-42","group_id":200}}`, nil)
	if body["message"] != "Group 200 not configured for analysis" || len(s.queue.jobs) != 0 {
		t.Fatalf("unmonitored group must be skipped, got %v", body)
	}

	status, body := s.do(t, fiber.MethodPost, "/api/webhooks/freshservice/ticket-created", `{"ticket_changes":{"id":42,"group_id":"100"}}`, nil)
	if status != fiber.StatusOK || body["ticket_id"].(float64) != 42 || body["group_id"].(float64) != 100 {
		t.Fatalf("unexpected %d %v", status, body)
	}
	if len(s.queue.jobs) != 1 || s.queue.jobs[0].TicketID != 42 || s.queue.jobs[0].Source != "webhook" {
		t.Fatalf("unexpected jobs %+v", s.queue.jobs)
	}

	s.queue.err = worker.ErrQueueFull
	status, body = s.do(t, fiber.MethodPost, "/api/webhooks/freshservice/ticket-created", `{"ticket_changes":{"id":43}}`, nil)
	if status != fiber.StatusServiceUnavailable || errorCode(t, body) != "QUEUE_UNAVAILABLE" {
		t.Fatalf("full queue should yield 503, got %d %v", status, body)
	}
}

func TestWebhookSecret(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hook"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	s := newTestServer(t, false, string(hash))
	path := "/api/webhooks/freshservice/ticket-updated"
	if status, _ := s.do(t, fiber.MethodPost, path, `{"ticket_changes":{"id":1}}`, nil); status != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 without secret, got %d", status)
	}
	status, body := s.do(t, fiber.MethodPost, path, `{"ticket_changes":{"id":1}}`, map[string]string{auth.WebhookSecretHeader: "hook"})
	if status != fiber.StatusOK || body["message"] != "Update acknowledged" {
		t.Fatalf("unexpected %d %v", status, body)
	}
}

func TestWebhookTestAndGroups(t *testing.T) {
	s := newTestServer(t, false, "")
	_, body := s.do(t, fiber.MethodGet, "/api/webhooks/test", "", nil)
	if body["mode"] != "webhook_only" || body["slack_configured"] != false {
		t.Fatalf("unexpected %v", body)
	}
	if groups := body["monitored_groups"].([]any); len(groups) != 1 {
		t.Fatalf("unexpected monitored groups %v", groups)
	}

	_, body = s.do(t, fiber.MethodPost, "/api/webhooks/test-analysis/7", "", nil)
	if body["status"] != "ok" || len(s.queue.jobs) != 1 || s.queue.jobs[0].TicketID != 7 {
		t.Fatalf("unexpected %v jobs %+v", body, s.queue.jobs)
	}

	_, body = s.do(t, fiber.MethodGet, "/api/freshservice/groups", "", nil)
	if body["total"].(float64) != 1 {
		t.Fatalf("unexpected groups %v", body)
	}
}

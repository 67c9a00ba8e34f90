// Package apiclient talks to the ticket API on behalf of a dashboard session.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-dashboard/internal/domain"
	"github.com/spec-kit/ticket-dashboard/internal/observability"
)

const maxResponseBytes = 8 << 20

var (
	// ErrUnauthorized is matched by errors returned for 401 responses.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrMalformedResponse is returned when a 2xx body lacks the expected shape.
	ErrMalformedResponse = errors.New("invalid response format")
)

// StatusError reports a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP Error: %d", e.StatusCode)
}

// Is lets errors.Is(err, ErrUnauthorized) match 401 responses.
func (e *StatusError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// Config configures the adapter.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
}

// Client issues one request per operation and normalizes the responses.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	tokens  TokenStore
	logger  *zap.Logger
	metrics *observability.Metrics
}

// New builds a client without a token store; see WithTokens.
func New(cfg Config, logger *zap.Logger, metrics *observability.Metrics) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("apiclient: base URL required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("apiclient: parse base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("apiclient: base URL %q must be absolute", cfg.BaseURL)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{baseURL: base, http: httpClient, logger: logger.Named("apiclient"), metrics: metrics}, nil
}

// WithTokens returns a copy of the client that authenticates with tokens.
func (c *Client) WithTokens(tokens TokenStore) *Client {
	clone := *c
	clone.tokens = tokens
	return &clone
}

type listResponse struct {
	Data *struct {
		Tickets    []domain.Ticket    `json:"tickets"`
		Pagination *domain.Pagination `json:"pagination"`
	} `json:"data"`
}

// ListTickets fetches one page. The returned pagination is always complete: when
// the server omits it, the requested page and size are echoed with no total.
func (c *Client) ListTickets(ctx context.Context, page, perPage int, groupID *int64) (*domain.TicketPage, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("per_page", strconv.Itoa(perPage))
	if groupID != nil && *groupID != 0 {
		query.Set("group_id", strconv.FormatInt(*groupID, 10))
	}

	var resp listResponse
	if err := c.do(ctx, "list_tickets", http.MethodGet, []string{"tickets"}, query, nil, &resp); err != nil {
		return nil, err
	}

	result := &domain.TicketPage{
		Tickets:    []domain.Ticket{},
		Pagination: domain.Pagination{Page: page, PerPage: perPage},
	}
	if resp.Data == nil {
		return result, nil
	}
	if resp.Data.Tickets != nil {
		result.Tickets = resp.Data.Tickets
	}
	if p := resp.Data.Pagination; p != nil {
		result.Pagination = *p
		if result.Pagination.Page == 0 {
			result.Pagination.Page = page
		}
		if result.Pagination.PerPage == 0 {
			result.Pagination.PerPage = perPage
		}
	}
	return result, nil
}

// GetTicket fetches one ticket, optionally with its conversation thread embedded.
func (c *Client) GetTicket(ctx context.Context, id int64, includeConversations bool) (*domain.Ticket, error) {
	query := url.Values{}
	query.Set("include_conversations", strconv.FormatBool(includeConversations))

	var resp struct {
		Ticket *domain.Ticket `json:"ticket"`
	}
	if err := c.do(ctx, "get_ticket", http.MethodGet, []string{"tickets", strconv.FormatInt(id, 10)}, query, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Ticket == nil {
		return nil, ErrMalformedResponse
	}
	return resp.Ticket, nil
}

// GetTicketSummary fetches the lightweight summary of a ticket.
func (c *Client) GetTicketSummary(ctx context.Context, id int64) (*domain.TicketSummary, error) {
	var summary domain.TicketSummary
	if err := c.do(ctx, "ticket_summary", http.MethodGet, []string{"tickets", strconv.FormatInt(id, 10), "summary"}, nil, nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// SearchTickets runs a keyword search.
func (c *Client) SearchTickets(ctx context.Context, query string) ([]domain.Ticket, error) {
	params := url.Values{}
	params.Set("query", query)

	var resp struct {
		Results []domain.Ticket `json:"results"`
	}
	if err := c.do(ctx, "search_tickets", http.MethodGet, []string{"tickets", "search"}, params, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Results == nil {
		return []domain.Ticket{}, nil
	}
	return resp.Results, nil
}

// GetHealth calls the liveness endpoint.
func (c *Client) GetHealth(ctx context.Context) (*domain.Health, error) {
	var health domain.Health
	if err := c.do(ctx, "health", http.MethodGet, []string{"health"}, nil, nil, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// AnalyzeTicket asks the backend for an AI analysis of the ticket.
func (c *Client) AnalyzeTicket(ctx context.Context, id int64, mode domain.AnalysisMode) (*domain.Analysis, error) {
	body := map[string]string{"mode": string(mode)}
	var resp struct {
		Analysis *domain.Analysis `json:"analysis"`
	}
	if err := c.do(ctx, "analyze_ticket", http.MethodPost, []string{"tickets", strconv.FormatInt(id, 10), "analyze"}, nil, body, &resp); err != nil {
		return nil, err
	}
	if resp.Analysis == nil {
		return nil, ErrMalformedResponse
	}
	resp.Analysis.Derive()
	return resp.Analysis, nil
}

func (c *Client) do(ctx context.Context, op, method string, segments []string, query url.Values, body, out any) error {
	endpoint := c.baseURL.JoinPath(segments...)
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordUpstream(op, "error")
		c.logger.Warn("request failed", zap.String("op", op), zap.String("url", endpoint.String()), zap.Error(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	c.metrics.RecordUpstream(op, strconv.Itoa(resp.StatusCode))
	c.logger.Debug("response",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("path", endpoint.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%s: read body: %w", op, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		if c.tokens != nil {
			c.tokens.Clear()
		}
		return &StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: %w: %v", op, ErrMalformedResponse, err)
	}
	return nil
}

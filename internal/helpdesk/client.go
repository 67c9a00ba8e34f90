// Package helpdesk is the gateway's client for the Freshservice v2 REST API.
package helpdesk

import (
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

const maxResponseBytes = 16 << 20

// ErrNotFound is returned when the upstream answers 404.
var ErrNotFound = errors.New("helpdesk: not found")

// UpstreamError reports a non-2xx answer other than 404.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("helpdesk: upstream status %d", e.StatusCode)
}

// Config configures the upstream client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// ListOptions selects a page of tickets, optionally restricted to one group.
type ListOptions struct {
	Page    int
	PerPage int
	GroupID *int64
}

// Client talks to one Freshservice account with basic auth "<key>:X".
type Client struct {
	baseURL *url.URL
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
	metrics *observability.Metrics
}

// New validates the config and builds a client.
func New(cfg Config, logger *zap.Logger, metrics *observability.Metrics) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("helpdesk: api key required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("helpdesk: parse base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("helpdesk: base URL %q must be absolute", cfg.BaseURL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: base,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.Named("helpdesk"),
		metrics: metrics,
	}, nil
}

// ListTickets fetches one page. With a group id the filter endpoint is used.
// HasMore is page*per_page < total when the upstream reports a total, and a
// full page otherwise.
func (c *Client) ListTickets(ctx context.Context, opts ListOptions) (*domain.TicketPage, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PerPage < 1 {
		opts.PerPage = domain.DefaultPerPage
	}

	query := url.Values{}
	query.Set("page", strconv.Itoa(opts.Page))
	query.Set("per_page", strconv.Itoa(opts.PerPage))
	segments := []string{"tickets"}
	if opts.GroupID != nil && *opts.GroupID != 0 {
		segments = append(segments, "filter")
		query.Set("query", fmt.Sprintf(`"group_id:%d"`, *opts.GroupID))
	}

	var resp struct {
		Tickets []domain.Ticket `json:"tickets"`
		Total   *int            `json:"total"`
	}
	if err := c.get(ctx, "list_tickets", segments, query, &resp); err != nil {
		return nil, err
	}
	if resp.Tickets == nil {
		resp.Tickets = []domain.Ticket{}
	}

	page := &domain.TicketPage{
		Tickets: resp.Tickets,
		Pagination: domain.Pagination{
			Page:    opts.Page,
			PerPage: opts.PerPage,
			Total:   len(resp.Tickets),
		},
	}
	if resp.Total != nil {
		page.Pagination.Total = *resp.Total
		page.Pagination.HasMore = opts.Page*opts.PerPage < *resp.Total
	} else {
		page.Pagination.HasMore = len(resp.Tickets) >= opts.PerPage
	}
	return page, nil
}

// GetTicket fetches a ticket by id.
func (c *Client) GetTicket(ctx context.Context, id int64) (*domain.Ticket, error) {
	var resp struct {
		Ticket *domain.Ticket `json:"ticket"`
	}
	if err := c.get(ctx, "get_ticket", []string{"tickets", strconv.FormatInt(id, 10)}, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Ticket == nil {
		return nil, ErrNotFound
	}
	return resp.Ticket, nil
}

// ListConversations returns the ticket's thread in upstream order.
func (c *Client) ListConversations(ctx context.Context, id int64) ([]domain.Conversation, error) {
	var resp struct {
		Conversations []domain.Conversation `json:"conversations"`
	}
	if err := c.get(ctx, "list_conversations", []string{"tickets", strconv.FormatInt(id, 10), "conversations"}, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Conversations == nil {
		return []domain.Conversation{}, nil
	}
	return resp.Conversations, nil
}

// SearchTickets runs an upstream ticket search for the quoted query.
func (c *Client) SearchTickets(ctx context.Context, query string) ([]domain.Ticket, error) {
	params := url.Values{}
	params.Set("query", strconv.Quote(query))

	var resp struct {
		Results []domain.Ticket `json:"results"`
	}
	if err := c.get(ctx, "search_tickets", []string{"search", "tickets"}, params, &resp); err != nil {
		return nil, err
	}
	if resp.Results == nil {
		return []domain.Ticket{}, nil
	}
	return resp.Results, nil
}

// ListGroups returns the agent groups of the account.
func (c *Client) ListGroups(ctx context.Context) ([]domain.Group, error) {
	var resp struct {
		Groups []domain.Group `json:"groups"`
	}
	if err := c.get(ctx, "list_groups", []string{"groups"}, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Groups == nil {
		return []domain.Group{}, nil
	}
	return resp.Groups, nil
}

func (c *Client) get(ctx context.Context, op string, segments []string, query url.Values, out any) error {
	endpoint := c.baseURL.JoinPath(segments...)
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.SetBasicAuth(c.apiKey, "X")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordUpstream("helpdesk_"+op, "error")
		c.logger.Error("request failed", zap.String("op", op), zap.String("path", endpoint.Path), zap.Error(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	c.metrics.RecordUpstream("helpdesk_"+op, strconv.Itoa(resp.StatusCode))
	c.logger.Info("upstream response",
		zap.String("op", op),
		zap.String("path", endpoint.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%s: read body: %w", op, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		c.logger.Warn("upstream error", zap.String("op", op), zap.Int("status", resp.StatusCode), zap.ByteString("body", truncate(raw, 500)))
		return &UpstreamError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}

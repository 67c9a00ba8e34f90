package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-dashboard/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := New(Config{BaseURL: srv.URL + "/api"}, zap.NewNop(), nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return client
}

func TestNewRejectsRelativeBaseURL(t *testing.T) {
	if _, err := New(Config{BaseURL: "/api"}, nil, nil); err == nil {
		t.Fatalf("expected error for relative base URL")
	}
	if _, err := New(Config{}, nil, nil); err == nil {
		t.Fatalf("expected error for empty base URL")
	}
}

func TestListTicketsPaginationFallback(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tickets" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("page") != "2" || r.URL.Query().Get("per_page") != "10" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if r.URL.Query().Has("group_id") {
			t.Errorf("group_id must be omitted when nil")
		}
		_, _ = io.WriteString(w, `{"status":"success","data":{"tickets":[{"id":1,"subject":"a","status":"2"}]}}`)
	})

	result, err := client.ListTickets(context.Background(), 2, 10, nil)
	if err != nil {
		t.Fatalf("ListTickets returned error: %v", err)
	}
	want := domain.Pagination{Page: 2, PerPage: 10, Total: 0, HasMore: false}
	if result.Pagination != want {
		t.Fatalf("expected fallback pagination %+v, got %+v", want, result.Pagination)
	}
	if len(result.Tickets) != 1 || result.Tickets[0].Status != domain.StatusOpen {
		t.Fatalf("unexpected tickets: %+v", result.Tickets)
	}
}

func TestListTicketsWithPaginationAndGroup(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("group_id") != "26000171552" {
			t.Errorf("expected group_id, got %s", r.URL.RawQuery)
		}
		_, _ = io.WriteString(w, `{"data":{"tickets":[],"pagination":{"page":1,"per_page":30,"total":45,"has_more":true}}}`)
	})

	group := int64(26000171552)
	result, err := client.ListTickets(context.Background(), 1, 30, &group)
	if err != nil {
		t.Fatalf("ListTickets returned error: %v", err)
	}
	if !result.Pagination.HasMore || result.Pagination.Total != 45 {
		t.Fatalf("unexpected pagination: %+v", result.Pagination)
	}
	if result.Tickets == nil {
		t.Fatalf("tickets must never be nil")
	}
}

func TestBearerHeader(t *testing.T) {
	var got string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		_, _ = io.WriteString(w, `{"status":"ok"}`)
	})

	if _, err := client.GetHealth(context.Background()); err != nil {
		t.Fatalf("GetHealth: %v", err)
	}
	if got != "" {
		t.Fatalf("expected no Authorization header without token, got %q", got)
	}

	authed := client.WithTokens(NewMemoryTokens("abc"))
	if _, err := authed.GetHealth(context.Background()); err != nil {
		t.Fatalf("GetHealth: %v", err)
	}
	if got != "Bearer abc" {
		t.Fatalf("expected bearer header, got %q", got)
	}

	empty := client.WithTokens(NewMemoryTokens(""))
	if _, err := empty.GetHealth(context.Background()); err != nil {
		t.Fatalf("GetHealth: %v", err)
	}
	if got != "" {
		t.Fatalf("expected no header for empty token, got %q", got)
	}
}

func TestUnauthorizedClearsToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	tokens := NewMemoryTokens("expired")

	_, err := client.WithTokens(tokens).GetTicket(context.Background(), 5, true)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if tokens.Token() != "" {
		t.Fatalf("expected token cleared, got %q", tokens.Token())
	}
}

func TestStatusError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := client.SearchTickets(context.Background(), "vpn")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected StatusError 500, got %v", err)
	}
	if err.Error() != "HTTP Error: 500" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if errors.Is(err, ErrUnauthorized) {
		t.Fatalf("500 must not match ErrUnauthorized")
	}
}

func TestGetTicketIncludesConversations(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tickets/42" || r.URL.Query().Get("include_conversations") != "true" {
			t.Errorf("unexpected request %s", r.URL.String())
		}
		_, _ = io.WriteString(w, `{"status":"success","ticket":{"id":42,"subject":"VPN","conversations":[{"id":1,"body":"hi","source":2}]}}`)
	})

	ticket, err := client.GetTicket(context.Background(), 42, true)
	if err != nil {
		t.Fatalf("GetTicket: %v", err)
	}
	if ticket.ID != 42 || len(ticket.Conversations) != 1 {
		t.Fatalf("unexpected ticket: %+v", ticket)
	}
}

func TestGetTicketMissingTicket(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":"success"}`)
	})
	if _, err := client.GetTicket(context.Background(), 1, false); !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestAnalyzeTicket(t *testing.T) {
	t.Run("sends mode and derives fields", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/api/tickets/9/analyze" {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			var body map[string]string
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body["mode"] != "thread" {
				t.Errorf("unexpected body %v (%v)", body, err)
			}
			_, _ = io.WriteString(w, `{"status":"success","ticket_id":9,"analysis":{"summary":"**Printer** jam","possible_categories":[{"category":"Hardware","confidence":"high"}]}}`)
		})

		analysis, err := client.AnalyzeTicket(context.Background(), 9, domain.AnalysisModeThread)
		if err != nil {
			t.Fatalf("AnalyzeTicket: %v", err)
		}
		if analysis.Classification != "Hardware" {
			t.Fatalf("expected derived classification, got %q", analysis.Classification)
		}
	})

	t.Run("missing analysis", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"status":"success"}`)
		})
		if _, err := client.AnalyzeTicket(context.Background(), 9, domain.AnalysisModeRequest); !errors.Is(err, ErrMalformedResponse) {
			t.Fatalf("expected ErrMalformedResponse, got %v", err)
		}
	})

	t.Run("not json", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `<html>`)
		})
		if _, err := client.AnalyzeTicket(context.Background(), 9, domain.AnalysisModeRequest); !errors.Is(err, ErrMalformedResponse) {
			t.Fatalf("expected ErrMalformedResponse, got %v", err)
		}
	})
}

func TestGetTicketSummary(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tickets/3/summary" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = io.WriteString(w, `{"status":"success","ticket_id":"3","subject":"s","description":"d"}`)
	})
	summary, err := client.GetTicketSummary(context.Background(), 3)
	if err != nil {
		t.Fatalf("GetTicketSummary: %v", err)
	}
	if summary.TicketID != "3" || summary.Subject != "s" {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-dashboard/internal/domain"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "bare", in: `{"summary":"x"}`, want: `{"summary":"x"}`},
		{name: "json fence", in: "Here you go:\n```json\n{\"summary\":\"x\"}\n```\nthanks", want: `{"summary":"x"}`},
		{name: "plain fence", in: "```\n{\"a\":1}\n```", want: `{"a":1}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExtractJSON(tc.in); got != tc.want {
				t.Fatalf("ExtractJSON = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestParseDerivesPresentationFields(t *testing.T) {
	result, err := Parse("```json\n" + `{
		"summary": "VPN drops every hour.",
		"possible_categories": [{"category": "Network", "confidence": "high"}],
		"possible_automations": [{"automation": "Restart VPN client", "feasibility": "medium"}],
		"user_sentiment": {"overall_feeling": "frustrated", "urgency_level": "high"}
	}` + "\n```")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if result.Classification != "Network" {
		t.Fatalf("expected classification from first category, got %q", result.Classification)
	}
	if len(result.Opportunities) != 1 || result.Opportunities[0] != "Restart VPN client" {
		t.Fatalf("unexpected opportunities %v", result.Opportunities)
	}
	if result.Sentiment != "frustrated (urgency: high)" {
		t.Fatalf("unexpected sentiment %q", result.Sentiment)
	}
}

func TestParseErrors(t *testing.T) {
	if _, err := Parse("   "); !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
	if _, err := Parse("I cannot help with that"); err == nil {
		t.Fatalf("expected parse error for prose")
	}
}

func TestBuildPromptModes(t *testing.T) {
	ticket := domain.Ticket{
		ID:              42,
		Subject:         "Printer jam",
		DescriptionText: "Tray 2 jams on every job",
		Conversations: []domain.Conversation{
			{BodyText: "Did you try tray 1?", CreatedAt: "2024-01-01T10:00:00Z"},
			{BodyText: "Yes, same problem", Incoming: true, CreatedAt: "2024-01-01T11:00:00Z"},
		},
	}

	request := BuildPrompt(ticket, domain.AnalysisModeRequest)
	if !strings.Contains(request, "Printer jam") || !strings.Contains(request, "Tray 2 jams") {
		t.Fatalf("request prompt misses ticket text:\n%s", request)
	}
	if strings.Contains(request, "Did you try tray 1?") {
		t.Fatalf("request mode must not include the thread")
	}

	thread := BuildPrompt(ticket, domain.AnalysisModeThread)
	if !strings.Contains(thread, "Did you try tray 1?") || !strings.Contains(thread, "Requester:\nYes, same problem") {
		t.Fatalf("thread prompt misses conversations:\n%s", thread)
	}
}

func TestClipKeepsCharactersWhole(t *testing.T) {
	long := strings.Repeat("é", maxEntryChars+10)
	got := clip(long)
	if !utf8.ValidString(got) {
		t.Fatalf("clipped text is not valid UTF-8")
	}
	if n := utf8.RuneCountInString(strings.TrimSuffix(got, "...")); n != maxEntryChars {
		t.Fatalf("expected %d characters, got %d", maxEntryChars, n)
	}
	if short := clip("  héllo  "); short != "héllo" {
		t.Fatalf("unexpected short clip %q", short)
	}
}

func TestAnalyzeNotConfigured(t *testing.T) {
	a := New(Config{APIURL: "http://127.0.0.1:1"}, zap.NewNop(), nil)
	if _, err := a.Analyze(context.Background(), domain.Ticket{ID: 1}, domain.AnalysisModeRequest); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestAnalyzeCallsMessagesAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "secret" || r.Header.Get("anthropic-version") == "" {
			t.Errorf("missing auth headers: %v", r.Header)
		}
		var body messagesRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body.Model != "test-model" || body.System != SystemPrompt || len(body.Messages) != 1 {
			t.Errorf("unexpected request %+v", body)
		}
		_, _ = io.WriteString(w, `{"content":[{"type":"text","text":"{\"summary\":\"Needs a reset\"}"}]}`)
	}))
	defer srv.Close()

	a := New(Config{APIURL: srv.URL, APIKey: "secret", Model: "test-model"}, zap.NewNop(), nil)
	result, err := a.Analyze(context.Background(), domain.Ticket{ID: 9, Subject: "Password"}, domain.AnalysisModeThread)
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	if result.Summary != "Needs a reset" || result.TicketID != 9 || result.Mode != domain.AnalysisModeThread || result.AnalyzedAt == nil {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestAnalyzeModelError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"type":"rate_limit_error","message":"slow down"}}`)
	}))
	defer srv.Close()

	a := New(Config{APIURL: srv.URL, APIKey: "secret"}, zap.NewNop(), nil)
	_, err := a.Analyze(context.Background(), domain.Ticket{ID: 1}, domain.AnalysisModeRequest)
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected 429 error, got %v", err)
	}
}

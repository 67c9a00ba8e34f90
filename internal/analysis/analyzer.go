// Package analysis asks a Messages-API language model to assess a ticket.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-dashboard/internal/domain"
	"github.com/spec-kit/ticket-dashboard/internal/observability"
)

const (
	apiVersion       = "2023-06-01"
	maxThreadEntries = 20
	maxEntryChars    = 2000
)

var (
	// ErrNotConfigured is returned when no API key is set.
	ErrNotConfigured = errors.New("AI credentials not configured")
	// ErrEmptyResponse is returned when the model produced no text.
	ErrEmptyResponse = errors.New("empty response text from model")
)

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// SystemPrompt fixes the output contract of the model.
const SystemPrompt = `You are an IT service desk analyst. You read support tickets and respond with a single JSON object and nothing else.

The object has these keys:
  "summary": two or three sentences describing the problem and what the requester needs, in Markdown.
  "possible_categories": up to five objects {"category": string, "confidence": "high"|"medium"|"low"}, best first.
  "possible_automations": up to five objects {"automation": string, "feasibility": "high"|"medium"|"low"}, best first.
  "user_sentiment": {"overall_feeling": "positive"|"neutral"|"negative"|"frustrated"|"urgent", "urgency_level": "low"|"medium"|"high"|"critical", "emotions": [string]}.

Base every statement on the ticket text. Do not invent systems, people or deadlines.`

// Config configures the model endpoint.
type Config struct {
	APIURL     string
	APIKey     string
	Model      string
	MaxTokens  int
	HTTPClient *http.Client
}

// Analyzer turns tickets into domain analyses.
type Analyzer struct {
	endpoint  string
	apiKey    string
	model     string
	maxTokens int
	http      *http.Client
	logger    *zap.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

// New builds an analyzer. A missing API key is reported by Analyze, so the
// gateway can still start without AI credentials.
func New(cfg Config, logger *zap.Logger, metrics *observability.Metrics) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1000
	}
	return &Analyzer{
		endpoint:  strings.TrimRight(cfg.APIURL, "/") + "/v1/messages",
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		maxTokens: maxTokens,
		http:      httpClient,
		logger:    logger.Named("analysis"),
		metrics:   metrics,
		now:       time.Now,
	}
}

// Configured reports whether Analyze can reach the model.
func (a *Analyzer) Configured() bool {
	return a.apiKey != ""
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system"`
	Messages  []message `json:"messages"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Analyze sends the ticket in the given mode and parses the model's JSON.
func (a *Analyzer) Analyze(ctx context.Context, ticket domain.Ticket, mode domain.AnalysisMode) (*domain.Analysis, error) {
	if !a.Configured() {
		return nil, ErrNotConfigured
	}

	payload, err := json.Marshal(messagesRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System:    SystemPrompt,
		Messages:  []message{{Role: "user", Content: BuildPrompt(ticket, mode)}},
	})
	if err != nil {
		return nil, fmt.Errorf("analysis: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("analysis: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	a.logger.Info("analyzing ticket", zap.Int64("ticket_id", ticket.ID), zap.String("mode", string(mode)))
	resp, err := a.http.Do(req)
	if err != nil {
		a.metrics.RecordUpstream("ai_analyze", "error")
		return nil, fmt.Errorf("analysis: send request: %w", err)
	}
	defer resp.Body.Close()
	a.metrics.RecordUpstream("ai_analyze", strconv.Itoa(resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("analysis: model returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("analysis: decode response: %w", err)
	}
	var text strings.Builder
	for _, block := range decoded.Content {
		if block.Type == "" || block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	result, err := Parse(text.String())
	if err != nil {
		a.logger.Warn("unparsable model output", zap.Int64("ticket_id", ticket.ID), zap.Error(err))
		return nil, err
	}

	analyzedAt := a.now().UTC()
	result.TicketID = ticket.ID
	result.Mode = mode
	result.AnalyzedAt = &analyzedAt
	a.logger.Info("analysis complete", zap.Int64("ticket_id", ticket.ID))
	return result, nil
}

// Parse decodes model output, accepting a bare JSON object or one wrapped in a
// Markdown code fence.
func Parse(text string) (*domain.Analysis, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyResponse
	}
	var result domain.Analysis
	if err := json.Unmarshal([]byte(ExtractJSON(text)), &result); err != nil {
		return nil, fmt.Errorf("failed to parse AI response: %w", err)
	}
	result.Derive()
	return &result, nil
}

// ExtractJSON returns the body of the first fenced code block, or text
// unchanged when there is none.
func ExtractJSON(text string) string {
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return text
}

// BuildPrompt renders the user message. Thread mode appends the conversation
// history after the original request.
func BuildPrompt(ticket domain.Ticket, mode domain.AnalysisMode) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze this support ticket.\n\nTicket #%d\nSubject: %s\n", ticket.ID, ticket.Subject)
	if ticket.Type != "" {
		fmt.Fprintf(&b, "Type: %s\n", ticket.Type)
	}
	fmt.Fprintf(&b, "Priority: %s\nStatus: %s\n\n", domain.PriorityLabel(ticket.Priority), domain.StatusLabel(ticket.Status))
	fmt.Fprintf(&b, "Original request:\n%s\n", clip(ticket.Text()))

	if mode != domain.AnalysisModeThread || len(ticket.Conversations) == 0 {
		return b.String()
	}

	convs := ticket.Conversations
	if len(convs) > maxThreadEntries {
		convs = convs[len(convs)-maxThreadEntries:]
	}
	b.WriteString("\nConversation thread, oldest first:\n")
	for _, c := range convs {
		who := "Agent"
		if c.Incoming {
			who = "Requester"
		}
		if c.Private {
			who += " (private note)"
		}
		fmt.Fprintf(&b, "\n[%s] %s:\n%s\n", c.CreatedAt, who, clip(c.Text()))
	}
	return b.String()
}

func clip(s string) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= maxEntryChars {
		return s
	}
	return string(runes[:maxEntryChars]) + "..."
}

package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-dashboard/internal/domain"
	"github.com/spec-kit/ticket-dashboard/internal/events"
	"github.com/spec-kit/ticket-dashboard/internal/observability"
	"github.com/spec-kit/ticket-dashboard/internal/repository"
)

const topItems = 3

var (
	feelingEmoji = map[string]string{
		"positive":   "😊",
		"neutral":    "😐",
		"negative":   "😞",
		"frustrated": "😤",
		"urgent":     "🚨",
	}
	urgencyEmoji = map[string]string{
		"low":      "🟢",
		"medium":   "🟡",
		"high":     "🟠",
		"critical": "🔴",
	}
	confidenceEmoji = map[string]string{
		"high":   "🟢",
		"medium": "🟡",
		"low":    "🔴",
	}
	feasibilityEmoji = map[string]string{
		"high":   "✅",
		"medium": "⚡",
		"low":    "💡",
	}
)

// NotificationConfig selects where analysis notifications go.
type NotificationConfig struct {
	SlackWebhookURL string
	HelpdeskDomain  string
}

// NotificationService posts finished analyses to a Slack incoming webhook.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	cfg        NotificationConfig
	http       *http.Client
	now        func() time.Time
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics, cfg NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger.Named("notifications"),
		metrics:    metrics,
		cfg:        cfg,
		http:       &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
	}
}

// Enabled reports whether a Slack webhook is configured.
func (n *NotificationService) Enabled() bool {
	return strings.TrimSpace(n.cfg.SlackWebhookURL) != ""
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketAnalyzed, n.handleTicketAnalyzed)
	n.dispatcher.Subscribe(events.EventAnalysisFailed, n.handleAnalysisFailed)
}

func (n *NotificationService) handleTicketAnalyzed(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketAnalyzedPayload)
	if !ok || payload.Analysis == nil {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	// Analyses requested from the dashboard are not announced.
	if event.Source == repository.SourceAPI {
		return nil
	}
	if !n.Enabled() {
		n.logger.Warn("slack webhook not configured, skipping notification", zap.Int64("ticket_id", event.TicketID))
		return nil
	}
	return n.SendTicketAnalysis(ctx, event.TicketID, payload.Analysis)
}

func (n *NotificationService) handleAnalysisFailed(_ context.Context, event events.Event) error {
	n.logger.Error("analysis failed", zap.Int64("ticket_id", event.TicketID), zap.String("source", event.Source), zap.Any("payload", event.Payload))
	return nil
}

// SendTicketAnalysis formats and posts one analysis.
func (n *NotificationService) SendTicketAnalysis(ctx context.Context, ticketID int64, analysis *domain.Analysis) error {
	message := BuildAnalysisMessage(ticketID, analysis, n.cfg.HelpdeskDomain, n.now())
	if err := n.post(ctx, message); err != nil {
		n.metrics.RecordUpstream("slack_notify", "error")
		n.logger.Error("slack notification failed", zap.Int64("ticket_id", ticketID), zap.Error(err))
		return err
	}
	n.metrics.RecordUpstream("slack_notify", "200")
	n.logger.Info("slack notification sent", zap.Int64("ticket_id", ticketID))
	return nil
}

func (n *NotificationService) post(ctx context.Context, text string) error {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.SlackWebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.http.Do(req)
	if err != nil {
		return fmt.Errorf("post to slack: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("slack returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return nil
}

// BuildAnalysisMessage renders the Slack mrkdwn text for an analysis.
func BuildAnalysisMessage(ticketID int64, analysis *domain.Analysis, helpdeskDomain string, now time.Time) string {
	ticketURL := fmt.Sprintf("https://%s.freshservice.com/a/tickets/%d?current_tab=details", helpdeskDomain, ticketID)

	var b strings.Builder
	fmt.Fprintf(&b, "🎫 *<%s|Ticket #%d>*\n\n", ticketURL, ticketID)

	summary := analysis.Summary
	if summary == "" {
		summary = "No summary available"
	}
	fmt.Fprintf(&b, "📝 *Summary:*\n%s\n\n", summary)

	if s := analysis.UserSentiment; s != nil {
		feeling := orUnknown(s.OverallFeeling)
		urgency := orUnknown(s.UrgencyLevel)
		fmt.Fprintf(&b, "💭 *Sentiment:* %s %s | %s Urgency: %s\n\n",
			lookup(feelingEmoji, feeling, "❓"), titleCase(feeling),
			lookup(urgencyEmoji, urgency, "⚪"), strings.ToUpper(urgency))
	}

	if len(analysis.Categories) > 0 {
		b.WriteString("🏷️ *Suggested Categories:*\n")
		for _, c := range head(analysis.Categories) {
			category := c.Category
			if category == "" {
				category = "Unknown"
			}
			confidence := c.Confidence
			if confidence == "" {
				confidence = "low"
			}
			fmt.Fprintf(&b, "  • %s %s (%s confidence)\n", lookup(confidenceEmoji, confidence, "⚪"), category, confidence)
		}
		b.WriteString("\n")
	}

	if len(analysis.Automations) > 0 {
		b.WriteString("🤖 *Automation Opportunities:*\n")
		for _, a := range head(analysis.Automations) {
			automation := a.Automation
			if automation == "" {
				automation = "Unknown"
			}
			feasibility := a.Feasibility
			if feasibility == "" {
				feasibility = "low"
			}
			fmt.Fprintf(&b, "  • %s %s\n", lookup(feasibilityEmoji, feasibility, "❓"), automation)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "⏰ _Analyzed at %s_", now.Format("2006-01-02 15:04:05"))
	return b.String()
}

func head[T any](items []T) []T {
	if len(items) > topItems {
		return items[:topItems]
	}
	return items
}

func lookup(table map[string]string, key, fallback string) string {
	if v, ok := table[key]; ok {
		return v
	}
	return fallback
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

package view

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-dashboard/internal/apiclient"
	"github.com/spec-kit/ticket-dashboard/internal/domain"
)

// MsgNoTicketID is shown when analysis is requested without a ticket.
const MsgNoTicketID = "No ticket ID provided"

// Analyzer runs the AI analysis of a ticket.
type Analyzer interface {
	AnalyzeTicket(ctx context.Context, id int64, mode domain.AnalysisMode) (*domain.Analysis, error)
}

// AnalysisResult is the rendered analysis. Empty fields are not shown.
type AnalysisResult struct {
	Summary        template.HTML
	Classification string
	Sentiment      string
	Opportunities  []string
	Categories     []domain.CategoryGuess
	Automations    []domain.AutomationIdea
}

// AnalysisState is the modal as rendered. Mode is empty on the selection screen.
type AnalysisState struct {
	Open      bool
	Mode      domain.AnalysisMode
	ModeLabel string
	Loading   bool
	Error     string
	Result    *AnalysisResult
}

// AnalysisModal drives the AI analysis dialog of a ticket page.
type AnalysisModal struct {
	analyzer Analyzer
	logger   *zap.Logger

	mu      sync.Mutex
	gen     uint64
	open    bool
	mode    domain.AnalysisMode
	loading bool
	err     string
	result  *AnalysisResult
}

func NewAnalysisModal(analyzer Analyzer, logger *zap.Logger) *AnalysisModal {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalysisModal{analyzer: analyzer, logger: logger.Named("analysis_modal")}
}

// Open shows the mode selection screen.
func (m *AnalysisModal) Open() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = true
}

// Analyze issues one analysis call for ticketID in mode. The error is also
// kept in the modal state as "Failed to analyze: <reason>".
func (m *AnalysisModal) Analyze(ctx context.Context, ticketID string, mode domain.AnalysisMode) error {
	m.mu.Lock()
	m.open = true
	if strings.TrimSpace(ticketID) == "" {
		m.err = MsgNoTicketID
		m.mu.Unlock()
		return errors.New(MsgNoTicketID)
	}
	m.gen++
	gen := m.gen
	m.mode = mode
	m.loading = true
	m.err = ""
	m.result = nil
	m.mu.Unlock()

	result, err := m.run(ctx, ticketID, mode)

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return nil
	}
	m.loading = false
	if err != nil {
		m.err = "Failed to analyze: " + failureReason(err)
		m.logger.Warn("analysis failed", zap.String("ticket_id", ticketID), zap.String("mode", string(mode)), zap.Error(err))
		return err
	}
	m.result = result
	return nil
}

func (m *AnalysisModal) run(ctx context.Context, ticketID string, mode domain.AnalysisMode) (*AnalysisResult, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(ticketID), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid ticket ID %q", ticketID)
	}
	analysis, err := m.analyzer.AnalyzeTicket(ctx, id, mode)
	if err != nil {
		return nil, err
	}
	result := &AnalysisResult{
		Classification: analysis.Classification,
		Sentiment:      analysis.Sentiment,
		Opportunities:  analysis.Opportunities,
		Categories:     analysis.Categories,
		Automations:    analysis.Automations,
	}
	if analysis.Summary != "" {
		summary, err := RenderMarkdown(analysis.Summary)
		if err != nil {
			summary = template.HTML(template.HTMLEscapeString(analysis.Summary))
		}
		result.Summary = summary
	}
	return result, nil
}

// Back returns to the mode selection screen.
func (m *AnalysisModal) Back() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	m.mode = ""
	m.loading = false
}

// Close hides the modal and clears its content.
func (m *AnalysisModal) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	m.open = false
	m.mode = ""
	m.loading = false
	m.err = ""
	m.result = nil
}

func (m *AnalysisModal) State() AnalysisState {
	m.mu.Lock()
	defer m.mu.Unlock()
	state := AnalysisState{
		Open:    m.open,
		Mode:    m.mode,
		Loading: m.loading,
		Error:   m.err,
		Result:  m.result,
	}
	if m.mode != "" {
		state.ModeLabel = m.mode.Label()
	}
	return state
}

func failureReason(err error) string {
	var statusErr *apiclient.StatusError
	switch {
	case errors.As(err, &statusErr):
		return statusErr.Error()
	case errors.Is(err, apiclient.ErrMalformedResponse):
		return "Invalid response format"
	default:
		return err.Error()
	}
}

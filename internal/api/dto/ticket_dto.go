package dto

import (
	"time"

	"github.com/spec-kit/ticket-dashboard/internal/domain"
	"github.com/spec-kit/ticket-dashboard/internal/repository"
)

// StatusSuccess is the status field of every successful ticket response.
const StatusSuccess = "success"

// TicketListQuery captures list filters.
type TicketListQuery struct {
	Page    int
	PerPage int
	GroupID *int64
}

// TicketListResponse wraps one page of tickets.
type TicketListResponse struct {
	Status string            `json:"status"`
	Data   domain.TicketPage `json:"data"`
}

// TicketDetailResponse wraps a single ticket.
type TicketDetailResponse struct {
	Status string         `json:"status"`
	Ticket *domain.Ticket `json:"ticket"`
}

// SummaryResponse is the flattened ticket summary.
type SummaryResponse struct {
	Status      string `json:"status"`
	TicketID    string `json:"ticket_id"`
	Subject     string `json:"subject"`
	Description string `json:"description"`
}

// SearchResponse lists search hits.
type SearchResponse struct {
	Status  string          `json:"status"`
	Results []domain.Ticket `json:"results"`
	Total   int             `json:"total"`
}

// ConversationsResponse lists the thread of a ticket.
type ConversationsResponse struct {
	Status        string                `json:"status"`
	TicketID      int64                 `json:"ticket_id"`
	Conversations []domain.Conversation `json:"conversations"`
	Total         int                   `json:"total"`
}

// AnalyzeRequest selects the analysis mode. An empty body means request mode.
type AnalyzeRequest struct {
	Mode string `json:"mode"`
}

// AnalyzeResponse wraps an analysis result.
type AnalyzeResponse struct {
	Status   string           `json:"status"`
	TicketID int64            `json:"ticket_id"`
	Analysis *domain.Analysis `json:"analysis"`
}

// AnalysisLogEntry is one stored analysis.
type AnalysisLogEntry struct {
	ID             string           `json:"id"`
	Mode           string           `json:"mode"`
	Source         string           `json:"source"`
	Summary        string           `json:"summary,omitempty"`
	Classification string           `json:"classification,omitempty"`
	Sentiment      string           `json:"sentiment,omitempty"`
	Opportunities  []string         `json:"opportunities"`
	Analysis       *domain.Analysis `json:"analysis,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

// AnalysisHistoryResponse lists stored analyses, newest first.
type AnalysisHistoryResponse struct {
	Status   string             `json:"status"`
	TicketID int64              `json:"ticket_id"`
	Analyses []AnalysisLogEntry `json:"analyses"`
	Total    int                `json:"total"`
}

// NewAnalysisHistoryResponse maps stored records.
func NewAnalysisHistoryResponse(ticketID int64, records []repository.AnalysisRecord) AnalysisHistoryResponse {
	entries := make([]AnalysisLogEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, AnalysisLogEntry{
			ID:             r.ID.String(),
			Mode:           r.Mode,
			Source:         r.Source,
			Summary:        r.Summary,
			Classification: r.Classification,
			Sentiment:      r.Sentiment,
			Opportunities:  r.Opportunities,
			Analysis:       r.Analysis,
			CreatedAt:      r.CreatedAt,
		})
	}
	return AnalysisHistoryResponse{Status: StatusSuccess, TicketID: ticketID, Analyses: entries, Total: len(entries)}
}

// TicketHistoryResponse lists recorded ticket events, newest first.
type TicketHistoryResponse struct {
	Status   string                 `json:"status"`
	TicketID int64                  `json:"ticket_id"`
	Events   []domain.TicketHistory `json:"events"`
	Total    int                    `json:"total"`
}

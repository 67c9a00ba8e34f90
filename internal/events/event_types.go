package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/ticket-dashboard/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated  EventType = "ticket_created"
	EventTicketUpdated  EventType = "ticket_updated"
	EventTicketAnalyzed EventType = "ticket_analyzed"
	EventAnalysisFailed EventType = "analysis_failed"
)

// Event is a gateway occurrence published to in-process subscribers.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  int64     `json:"ticket_id"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(eventType EventType, ticketID int64, source string, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// TicketChangedPayload accompanies created and updated webhook events.
type TicketChangedPayload struct {
	GroupID *int64 `json:"group_id,omitempty"`
}

// TicketAnalyzedPayload carries a finished analysis.
type TicketAnalyzedPayload struct {
	Analysis *domain.Analysis `json:"analysis"`
}

// AnalysisFailedPayload carries the reason an analysis did not complete.
type AnalysisFailedPayload struct {
	Reason string `json:"reason"`
}

package domain

import "time"

// TicketHistory is one recorded lifecycle event of a ticket: a webhook
// notification, a finished analysis or a failed one.
type TicketHistory struct {
	ID        int64          `json:"id"`
	TicketID  int64          `json:"ticket_id"`
	EventType string         `json:"event_type"`
	Source    string         `json:"source"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

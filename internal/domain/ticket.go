package domain

import (
	"strconv"
	"strings"
	"time"
)

// Code is a numeric helpdesk enum value. Upstream payloads carry it either as a
// JSON number or as a numeric string; anything else decodes to zero.
type Code int

// UnmarshalJSON accepts numbers, numeric strings and null.
func (c *Code) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "" || raw == "null" {
		*c = 0
		return nil
	}
	if n, err := strconv.Atoi(raw); err == nil {
		*c = Code(n)
		return nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		*c = Code(int(f))
		return nil
	}
	*c = 0
	return nil
}

// Ticket status codes.
const (
	StatusOpen     Code = 2
	StatusPending  Code = 3
	StatusResolved Code = 4
	StatusClosed   Code = 5
)

// Ticket priority codes.
const (
	PriorityLow    Code = 1
	PriorityMedium Code = 2
	PriorityHigh   Code = 3
	PriorityUrgent Code = 4
)

// Ticket is a support request as delivered by the helpdesk API.
type Ticket struct {
	ID              int64          `json:"id"`
	Subject         string         `json:"subject"`
	Description     string         `json:"description,omitempty"`
	DescriptionText string         `json:"description_text,omitempty"`
	Type            string         `json:"type,omitempty"`
	Category        string         `json:"category,omitempty"`
	SubCategory     string         `json:"sub_category,omitempty"`
	Status          Code           `json:"status"`
	Priority        Code           `json:"priority"`
	GroupID         *int64         `json:"group_id,omitempty"`
	RequesterID     int64          `json:"requester_id,omitempty"`
	CreatedAt       string         `json:"created_at,omitempty"`
	UpdatedAt       string         `json:"updated_at,omitempty"`
	CCEmails        []string       `json:"cc_emails,omitempty"`
	ReplyCCEmails   []string       `json:"reply_cc_emails,omitempty"`
	CustomFields    map[string]any `json:"custom_fields,omitempty"`
	Attachments     []Attachment   `json:"attachments,omitempty"`
	Conversations   []Conversation `json:"conversations,omitempty"`
}

// Text returns the plain-text description when present, the raw one otherwise.
func (t Ticket) Text() string {
	if t.DescriptionText != "" {
		return t.DescriptionText
	}
	return t.Description
}

// Conversation is a single message or note in a ticket thread.
type Conversation struct {
	ID          int64        `json:"id"`
	Body        string       `json:"body"`
	BodyText    string       `json:"body_text,omitempty"`
	Private     bool         `json:"private"`
	UserID      int64        `json:"user_id,omitempty"`
	Source      int          `json:"source"`
	FromEmail   string       `json:"from_email,omitempty"`
	ToEmails    []string     `json:"to_emails,omitempty"`
	CCEmails    []string     `json:"cc_emails,omitempty"`
	Incoming    bool         `json:"incoming"`
	Attachments []Attachment `json:"attachments,omitempty"`
	CreatedAt   string       `json:"created_at,omitempty"`
	UpdatedAt   string       `json:"updated_at,omitempty"`
}

// Text returns the plain-text body when present.
func (c Conversation) Text() string {
	if c.BodyText != "" {
		return c.BodyText
	}
	return c.Body
}

// Attachment describes a file attached to a ticket or conversation.
type Attachment struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Size          int64  `json:"size"`
	AttachmentURL string `json:"attachment_url"`
}

// SizeLabel renders the size in kilobytes with two decimals.
func (a Attachment) SizeLabel() string {
	return strconv.FormatFloat(float64(a.Size)/1024, 'f', 2, 64) + " KB"
}

// TicketSummary is the lightweight projection served by the summary endpoint.
type TicketSummary struct {
	TicketID    string `json:"ticket_id"`
	Subject     string `json:"subject"`
	Description string `json:"description"`
}

// Health is the liveness payload of the ticket API.
type Health struct {
	Status string `json:"status"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses the ISO timestamps used by the helpdesk. The boolean is
// false when the value is empty or unparsable.
func ParseTimestamp(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

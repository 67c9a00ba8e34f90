package view

import (
	"errors"
	"strconv"
	"strings"

	"github.com/spec-kit/ticket-dashboard/internal/domain"
)

// MsgTicketIDMissing is shown when the route carries no usable ticket id.
const MsgTicketIDMissing = "Ticket ID not provided"

// ErrTicketIDMissing is returned by ParseTicketID for empty or invalid ids.
var ErrTicketIDMissing = errors.New("ticket id not provided")

// ParseTicketID reads a positive ticket id from a route parameter.
func ParseTicketID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrTicketIDMissing
	}
	return id, nil
}

// AttachmentView is a downloadable file link.
type AttachmentView struct {
	Name string
	URL  string
	Size string
}

// ConversationView is one entry of the conversation thread.
type ConversationView struct {
	ID          int64
	Source      string
	Private     bool
	From        string
	To          string
	CC          string
	Body        string
	Created     string
	Attachments []AttachmentView
}

// HasRecipients reports whether the To or CC line is rendered.
func (c ConversationView) HasRecipients() bool {
	return c.To != "" || c.CC != ""
}

// TicketDetail is the ticket detail page model.
type TicketDetail struct {
	ID            int64
	Subject       string
	StatusLabel   string
	StatusColor   string
	PriorityLabel string
	PriorityColor string
	Description   string
	Type          string
	Category      string
	SubCategory   string
	Group         string
	Created       string
	Updated       string
	CCEmails      []string
	Attachments   []AttachmentView
	Conversations []ConversationView
}

// DetailPage wraps a TicketDetail with the page states.
type DetailPage struct {
	Loading  bool
	Error    string
	NotFound bool
	Ticket   *TicketDetail
}

// NewTicketDetail projects a ticket for the detail page.
func NewTicketDetail(t domain.Ticket, groups *domain.GroupCatalog) TicketDetail {
	detail := TicketDetail{
		ID:            t.ID,
		Subject:       t.Subject,
		StatusLabel:   domain.StatusLabel(t.Status),
		StatusColor:   domain.StatusColor(domain.StatusName(t.Status)),
		PriorityLabel: domain.PriorityLabel(t.Priority),
		PriorityColor: domain.PriorityColor(domain.PriorityName(t.Priority)),
		Description:   t.Text(),
		Type:          orNA(t.Type),
		Category:      orNA(t.Category),
		SubCategory:   orNA(t.SubCategory),
		Group:         groups.Label(t.GroupID),
		Created:       formatDateTime(t.CreatedAt),
		Updated:       formatDateTime(t.UpdatedAt),
		CCEmails:      append([]string(nil), t.CCEmails...),
		Attachments:   attachmentViews(t.Attachments),
	}
	for _, c := range t.Conversations {
		detail.Conversations = append(detail.Conversations, ConversationView{
			ID:          c.ID,
			Source:      domain.SourceLabel(c.Source),
			Private:     c.Private,
			From:        c.FromEmail,
			To:          strings.Join(c.ToEmails, ", "),
			CC:          strings.Join(c.CCEmails, ", "),
			Body:        c.Text(),
			Created:     formatDateTime(c.CreatedAt),
			Attachments: attachmentViews(c.Attachments),
		})
	}
	return detail
}

func attachmentViews(attachments []domain.Attachment) []AttachmentView {
	if len(attachments) == 0 {
		return nil
	}
	out := make([]AttachmentView, 0, len(attachments))
	for _, a := range attachments {
		out = append(out, AttachmentView{Name: a.Name, URL: a.AttachmentURL, Size: a.SizeLabel()})
	}
	return out
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

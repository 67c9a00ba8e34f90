package dto

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// WebhookID accepts the numeric and display forms helpdesk automations send:
// 42, "42" and "INC-42" all decode to 42. Anything else decodes to 0.
type WebhookID int64

// UnmarshalJSON implements json.Unmarshaler.
func (w *WebhookID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*w = 0
		return nil
	}
	var raw string
	if data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	} else {
		raw = string(data)
	}
	*w = WebhookID(parseWebhookID(raw))
	return nil
}

func parseWebhookID(raw string) int64 {
	raw = strings.TrimSpace(raw)
	if i := strings.LastIndex(raw, "-"); i >= 0 {
		raw = raw[i+1:]
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil && f > 0 && f == float64(int64(f)) {
		return int64(f)
	}
	return 0
}

// TicketChanges is the ticket section of a helpdesk webhook.
type TicketChanges struct {
	ID      WebhookID `json:"id"`
	GroupID WebhookID `json:"group_id"`
}

// TicketWebhookPayload is the body posted by helpdesk automations.
type TicketWebhookPayload struct {
	TicketChanges TicketChanges `json:"ticket_changes"`
}

// WebhookResponse is the acknowledgement sent back to the helpdesk.
type WebhookResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	TicketID *int64 `json:"ticket_id,omitempty"`
	GroupID  *int64 `json:"group_id,omitempty"`
	Note     string `json:"note,omitempty"`
}

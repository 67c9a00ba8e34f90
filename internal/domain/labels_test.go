package domain

import (
	"encoding/json"
	"testing"
)

func TestStatusAndPriorityNames(t *testing.T) {
	statuses := map[Code]string{2: "open", 3: "pending", 4: "resolved", 5: "closed", 0: "unknown", 1: "unknown", 9: "unknown"}
	for code, want := range statuses {
		if got := StatusName(code); got != want {
			t.Fatalf("StatusName(%d) = %q, want %q", code, got, want)
		}
	}
	priorities := map[Code]string{1: "low", 2: "medium", 3: "high", 4: "urgent", 0: "medium", 7: "medium"}
	for code, want := range priorities {
		if got := PriorityName(code); got != want {
			t.Fatalf("PriorityName(%d) = %q, want %q", code, got, want)
		}
	}
	if StatusLabel(99) != "Unknown" || PriorityLabel(4) != "Urgent" {
		t.Fatalf("unexpected display labels: %q %q", StatusLabel(99), PriorityLabel(4))
	}
}

func TestSourceLabel(t *testing.T) {
	if SourceLabel(2) != "Phone" || SourceLabel(1002) != "Email Forward" {
		t.Fatalf("unexpected source labels")
	}
	if SourceLabel(77) != "Email" {
		t.Fatalf("unknown source should fall back to Email, got %q", SourceLabel(77))
	}
}

func TestCodeDecodesNumbersAndStrings(t *testing.T) {
	var ticket struct {
		Status   Code `json:"status"`
		Priority Code `json:"priority"`
		Other    Code `json:"other"`
		Missing  Code `json:"missing"`
	}
	payload := `{"status": 3, "priority": "4", "other": "urgent", "missing": null}`
	if err := json.Unmarshal([]byte(payload), &ticket); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ticket.Status != 3 || ticket.Priority != 4 || ticket.Other != 0 || ticket.Missing != 0 {
		t.Fatalf("unexpected codes: %+v", ticket)
	}
}

func TestParseTimestamp(t *testing.T) {
	if _, ok := ParseTimestamp("2024-05-01T10:00:00Z"); !ok {
		t.Fatalf("expected RFC3339 timestamp to parse")
	}
	if _, ok := ParseTimestamp("2024-05-01 10:00:00"); !ok {
		t.Fatalf("expected space separated timestamp to parse")
	}
	if _, ok := ParseTimestamp(""); ok {
		t.Fatalf("empty timestamp must not parse")
	}
	if _, ok := ParseTimestamp("yesterday"); ok {
		t.Fatalf("garbage timestamp must not parse")
	}
}

func TestGroupCatalogLabel(t *testing.T) {
	catalog := NewGroupCatalog([]Group{{ID: 10, Name: "Service Desk"}})
	known, unknown := int64(10), int64(11)
	if catalog.Label(&known) != "Service Desk" {
		t.Fatalf("expected catalog name")
	}
	if catalog.Label(&unknown) != "Group 11" {
		t.Fatalf("expected fallback label, got %q", catalog.Label(&unknown))
	}
	if catalog.Label(nil) != "N/A" {
		t.Fatalf("expected N/A for nil group")
	}
}

func TestAnalysisDerive(t *testing.T) {
	a := &Analysis{
		Summary:       "VPN down",
		Categories:    []CategoryGuess{{Category: "Network", Confidence: "high"}},
		Automations:   []AutomationIdea{{Automation: "Auto-reset VPN token", Feasibility: "medium"}},
		UserSentiment: &UserSentiment{OverallFeeling: "frustrated", UrgencyLevel: "high"},
	}
	a.Derive()
	if a.Classification != "Network" {
		t.Fatalf("expected classification from first category, got %q", a.Classification)
	}
	if len(a.Opportunities) != 1 || a.Opportunities[0] != "Auto-reset VPN token" {
		t.Fatalf("unexpected opportunities: %v", a.Opportunities)
	}
	if a.Sentiment != "frustrated (urgency: high)" {
		t.Fatalf("unexpected sentiment: %q", a.Sentiment)
	}
}

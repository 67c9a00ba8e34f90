package domain

import (
	"fmt"
	"strings"
	"time"
)

// AnalysisMode selects how much of a ticket is sent for analysis.
type AnalysisMode string

const (
	// AnalysisModeRequest analyzes the original request only.
	AnalysisModeRequest AnalysisMode = "request"
	// AnalysisModeThread analyzes the request plus its conversation thread.
	AnalysisModeThread AnalysisMode = "thread"
)

// ParseAnalysisMode returns the mode named by s, defaulting to request.
func ParseAnalysisMode(s string) AnalysisMode {
	if AnalysisMode(strings.ToLower(strings.TrimSpace(s))) == AnalysisModeThread {
		return AnalysisModeThread
	}
	return AnalysisModeRequest
}

// Label is the human readable mode name.
func (m AnalysisMode) Label() string {
	if m == AnalysisModeThread {
		return "Request + Thread"
	}
	return "Request Only"
}

// CategoryGuess is one suggested classification with a confidence level.
type CategoryGuess struct {
	Category   string `json:"category"`
	Confidence string `json:"confidence"`
}

// AutomationIdea is one automation opportunity with a feasibility level.
type AutomationIdea struct {
	Automation  string `json:"automation"`
	Feasibility string `json:"feasibility"`
}

// UserSentiment captures how the requester appears to feel.
type UserSentiment struct {
	OverallFeeling string   `json:"overall_feeling"`
	UrgencyLevel   string   `json:"urgency_level"`
	Emotions       []string `json:"emotions,omitempty"`
}

// Analysis is the AI assessment of a ticket. The flat fields are what the
// dashboard renders; the structured ones feed notifications and history.
type Analysis struct {
	TicketID       int64            `json:"ticket_id,omitempty"`
	Mode           AnalysisMode     `json:"mode,omitempty"`
	Summary        string           `json:"summary,omitempty"`
	Classification string           `json:"classification,omitempty"`
	Sentiment      string           `json:"sentiment,omitempty"`
	Opportunities  []string         `json:"opportunities,omitempty"`
	Categories     []CategoryGuess  `json:"possible_categories,omitempty"`
	Automations    []AutomationIdea `json:"possible_automations,omitempty"`
	UserSentiment  *UserSentiment   `json:"user_sentiment,omitempty"`
	AnalyzedAt     *time.Time       `json:"analyzed_at,omitempty"`
}

// Derive fills the flat presentation fields from the structured ones when the
// model did not provide them directly.
func (a *Analysis) Derive() {
	if a.Classification == "" && len(a.Categories) > 0 {
		a.Classification = a.Categories[0].Category
	}
	if len(a.Opportunities) == 0 {
		for _, idea := range a.Automations {
			if idea.Automation != "" {
				a.Opportunities = append(a.Opportunities, idea.Automation)
			}
		}
	}
	if a.Sentiment == "" && a.UserSentiment != nil && a.UserSentiment.OverallFeeling != "" {
		a.Sentiment = a.UserSentiment.OverallFeeling
		if a.UserSentiment.UrgencyLevel != "" {
			a.Sentiment = fmt.Sprintf("%s (urgency: %s)", a.UserSentiment.OverallFeeling, a.UserSentiment.UrgencyLevel)
		}
		if len(a.UserSentiment.Emotions) > 0 {
			a.Sentiment += " - " + strings.Join(a.UserSentiment.Emotions, ", ")
		}
	}
}

// Empty reports whether none of the rendered fields are present.
func (a *Analysis) Empty() bool {
	return a == nil || (a.Summary == "" && a.Classification == "" && a.Sentiment == "" && len(a.Opportunities) == 0)
}

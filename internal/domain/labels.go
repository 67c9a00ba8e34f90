package domain

import "strings"

var statusNames = map[Code]string{
	StatusOpen:     "open",
	StatusPending:  "pending",
	StatusResolved: "resolved",
	StatusClosed:   "closed",
}

var priorityNames = map[Code]string{
	PriorityLow:    "low",
	PriorityMedium: "medium",
	PriorityHigh:   "high",
	PriorityUrgent: "urgent",
}

var sourceLabels = map[int]string{
	0:    "Email",
	1:    "Portal",
	2:    "Phone",
	3:    "API",
	4:    "System",
	1002: "Email Forward",
}

// StatusName maps a status code to its lowercase name; unknown codes map to "unknown".
func StatusName(code Code) string {
	if name, ok := statusNames[code]; ok {
		return name
	}
	return "unknown"
}

// PriorityName maps a priority code to its lowercase name; unknown codes map to "medium".
func PriorityName(code Code) string {
	if name, ok := priorityNames[code]; ok {
		return name
	}
	return "medium"
}

// StatusLabel is the display form of StatusName.
func StatusLabel(code Code) string {
	return capitalize(StatusName(code))
}

// PriorityLabel is the display form of PriorityName.
func PriorityLabel(code Code) string {
	return capitalize(PriorityName(code))
}

// SourceLabel maps a conversation source code to a channel label, defaulting to Email.
func SourceLabel(source int) string {
	if label, ok := sourceLabels[source]; ok {
		return label
	}
	return sourceLabels[0]
}

// StatusColor returns the badge color for a status name.
func StatusColor(name string) string {
	switch name {
	case "open":
		return "#10b981"
	case "pending", "in_progress":
		return "#f59e0b"
	case "resolved":
		return "#8b5cf6"
	default:
		return "#6b7280"
	}
}

// PriorityColor returns the badge color for a priority name.
func PriorityColor(name string) string {
	switch name {
	case "low":
		return "#10b981"
	case "medium":
		return "#f59e0b"
	case "high":
		return "#ef4444"
	case "urgent":
		return "#dc2626"
	default:
		return "#6b7280"
	}
}

// StatusOptions lists the statuses offered by the dashboard filter.
func StatusOptions() []Code {
	return []Code{StatusOpen, StatusPending, StatusResolved, StatusClosed}
}

func capitalize(s string) string {
	s = strings.ReplaceAll(s, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

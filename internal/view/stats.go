package view

import (
	"math"
	"strconv"
	"time"

	"github.com/spec-kit/ticket-dashboard/internal/domain"
)

// Stats are the headline numbers shown above the ticket list.
type Stats struct {
	OpenTickets       int
	InProgressTickets int
	ResolvedToday     int
	AvgResponse       string
}

// ComputeStats derives Stats from tickets as of now. Open counts pending
// tickets too; resolved today means resolved or closed with an update in the
// last 24 hours. AvgResponse is the mean positive updated-created gap in
// hours, rounded to one decimal.
func ComputeStats(tickets []domain.Ticket, now time.Time) Stats {
	stats := Stats{AvgResponse: "0h"}
	if len(tickets) == 0 {
		return stats
	}

	cutoff := now.Add(-24 * time.Hour)
	var total time.Duration
	var responded int
	for _, t := range tickets {
		switch t.Status {
		case domain.StatusOpen:
			stats.OpenTickets++
		case domain.StatusPending:
			stats.OpenTickets++
			stats.InProgressTickets++
		case domain.StatusResolved, domain.StatusClosed:
			if updated, ok := domain.ParseTimestamp(t.UpdatedAt); ok && updated.After(cutoff) {
				stats.ResolvedToday++
			}
		}

		created, okCreated := domain.ParseTimestamp(t.CreatedAt)
		updated, okUpdated := domain.ParseTimestamp(t.UpdatedAt)
		if !okCreated || !okUpdated {
			continue
		}
		if gap := updated.Sub(created); gap > 0 {
			total += gap
			responded++
		}
	}

	if responded > 0 {
		hours := total.Hours() / float64(responded)
		rounded := math.Floor(hours*10+0.5) / 10
		if rounded > 0 {
			stats.AvgResponse = strconv.FormatFloat(rounded, 'f', -1, 64) + "h"
		}
	}
	return stats
}

package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-dashboard/internal/domain"
)

// TicketHistoryRepository stores the event timeline of tickets.
type TicketHistoryRepository interface {
	Create(ctx context.Context, entry *domain.TicketHistory) error
	ListByTicket(ctx context.Context, ticketID int64, limit int) ([]domain.TicketHistory, error)
}

type ticketHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewTicketHistoryRepository builds repository.
func NewTicketHistoryRepository(pool *pgxpool.Pool) TicketHistoryRepository {
	return &ticketHistoryRepository{pool: pool}
}

func (r *ticketHistoryRepository) Create(ctx context.Context, entry *domain.TicketHistory) error {
	details := entry.Details
	if details == nil {
		details = map[string]any{}
	}
	const query = `
        INSERT INTO ticket_history (ticket_id, event_type, source, details)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		entry.TicketID,
		entry.EventType,
		entry.Source,
		details,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, ticketID int64, limit int) ([]domain.TicketHistory, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
        SELECT id, ticket_id, event_type, source, details, created_at
        FROM ticket_history WHERE ticket_id=$1
        ORDER BY created_at DESC
        LIMIT $2`
	rows, err := r.pool.Query(ctx, query, ticketID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.TicketHistory, 0)
	for rows.Next() {
		var entry domain.TicketHistory
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.EventType,
			&entry.Source,
			&entry.Details,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

// Package repository holds the gateway's Postgres and Redis access.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-dashboard/internal/domain"
)

// Analysis sources.
const (
	SourceAPI     = "api"
	SourceWebhook = "webhook"
	SourcePoller  = "poller"
)

// AnalysisRecord is one persisted analysis run.
type AnalysisRecord struct {
	ID             uuid.UUID        `json:"id"`
	TicketID       int64            `json:"ticket_id"`
	Mode           string           `json:"mode"`
	Source         string           `json:"source"`
	Summary        string           `json:"summary"`
	Classification string           `json:"classification"`
	Sentiment      string           `json:"sentiment"`
	Opportunities  []string         `json:"automation_opportunities"`
	Analysis       *domain.Analysis `json:"analysis"`
	CreatedAt      time.Time        `json:"created_at"`
}

// NewAnalysisRecord flattens an analysis for storage.
func NewAnalysisRecord(a *domain.Analysis, source string) *AnalysisRecord {
	opportunities := a.Opportunities
	if opportunities == nil {
		opportunities = []string{}
	}
	return &AnalysisRecord{
		TicketID:       a.TicketID,
		Mode:           string(a.Mode),
		Source:         source,
		Summary:        a.Summary,
		Classification: a.Classification,
		Sentiment:      a.Sentiment,
		Opportunities:  opportunities,
		Analysis:       a,
	}
}

// AnalysisRepository persists analysis history.
type AnalysisRepository interface {
	Create(ctx context.Context, record *AnalysisRecord) error
	ListByTicket(ctx context.Context, ticketID int64, limit int) ([]AnalysisRecord, error)
}

type analysisRepository struct {
	pool *pgxpool.Pool
}

// NewAnalysisRepository instantiates the repository over analysis_logs.
func NewAnalysisRepository(pool *pgxpool.Pool) AnalysisRepository {
	return &analysisRepository{pool: pool}
}

func (r *analysisRepository) Create(ctx context.Context, record *AnalysisRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	payload, err := json.Marshal(record.Analysis)
	if err != nil {
		return fmt.Errorf("encode analysis payload: %w", err)
	}
	const query = `
        INSERT INTO analysis_logs (id, ticket_id, mode, source, summary, classification, sentiment, automation_opportunities, payload)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING created_at`
	return r.pool.QueryRow(ctx, query,
		record.ID.String(),
		record.TicketID,
		record.Mode,
		record.Source,
		record.Summary,
		record.Classification,
		record.Sentiment,
		record.Opportunities,
		payload,
	).Scan(&record.CreatedAt)
}

func (r *analysisRepository) ListByTicket(ctx context.Context, ticketID int64, limit int) ([]AnalysisRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `
        SELECT id::text, ticket_id, mode, source, summary, classification, sentiment, automation_opportunities, payload, created_at
        FROM analysis_logs WHERE ticket_id=$1
        ORDER BY created_at DESC
        LIMIT $2`
	rows, err := r.pool.Query(ctx, query, ticketID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]AnalysisRecord, 0)
	for rows.Next() {
		record, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

func scanAnalysis(row pgx.Row) (*AnalysisRecord, error) {
	var (
		record  AnalysisRecord
		id      string
		payload []byte
	)
	if err := row.Scan(
		&id,
		&record.TicketID,
		&record.Mode,
		&record.Source,
		&record.Summary,
		&record.Classification,
		&record.Sentiment,
		&record.Opportunities,
		&payload,
		&record.CreatedAt,
	); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("analysis id %q: %w", id, err)
	}
	record.ID = parsed
	if len(payload) > 0 {
		var analysis domain.Analysis
		if err := json.Unmarshal(payload, &analysis); err != nil {
			return nil, fmt.Errorf("decode analysis payload: %w", err)
		}
		record.Analysis = &analysis
	}
	return &record, nil
}

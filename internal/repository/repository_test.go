package repository

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-dashboard/internal/domain"
)

func TestPageKey(t *testing.T) {
	group := int64(26000171552)
	if got := (PageKey{Page: 2, PerPage: 30}).String(); got != "ticketgw:page:all:2:30" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := (PageKey{Page: 1, PerPage: 10, GroupID: &group}).String(); got != "ticketgw:page:26000171552:1:10" {
		t.Fatalf("unexpected key %q", got)
	}
	if ticketKey(5, true) == ticketKey(5, false) {
		t.Fatalf("detail keys must differ by conversation flag")
	}
}

func TestNewTicketCacheWithoutRedisIsNop(t *testing.T) {
	cache := NewTicketCache(nil, time.Minute, zap.NewNop())
	ctx := context.Background()
	cache.SetTicket(ctx, &domain.Ticket{ID: 1}, false)
	if _, ok := cache.GetTicket(ctx, 1, false); ok {
		t.Fatalf("nop cache must always miss")
	}
	if _, ok := cache.GetPage(ctx, PageKey{Page: 1, PerPage: 30}); ok {
		t.Fatalf("nop cache must always miss")
	}
}

func TestNewAnalysisRecord(t *testing.T) {
	analysis := &domain.Analysis{TicketID: 7, Mode: domain.AnalysisModeThread, Summary: "s", Classification: "Access"}
	record := NewAnalysisRecord(analysis, SourceWebhook)
	if record.TicketID != 7 || record.Mode != "thread" || record.Source != SourceWebhook {
		t.Fatalf("unexpected record %+v", record)
	}
	if record.Opportunities == nil {
		t.Fatalf("opportunities must be non-nil for the array column")
	}
}

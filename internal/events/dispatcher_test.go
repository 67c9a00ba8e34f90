package events

import (
	"context"
	"errors"
	"testing"
)

func TestPublishRunsAllHandlers(t *testing.T) {
	d := NewInMemoryDispatcher()
	var calls []string
	d.Subscribe(EventTicketAnalyzed, func(ctx context.Context, e Event) error {
		calls = append(calls, "first")
		return errors.New("boom")
	})
	d.Subscribe(EventTicketAnalyzed, func(ctx context.Context, e Event) error {
		calls = append(calls, "second")
		return nil
	})
	d.Subscribe(EventTicketCreated, func(ctx context.Context, e Event) error {
		calls = append(calls, "other")
		return nil
	})

	err := d.Publish(context.Background(), NewEvent(EventTicketAnalyzed, 1, "api", nil))
	if err == nil {
		t.Fatalf("expected joined handler error")
	}
	if len(calls) != 2 || calls[0] != "first" || calls[1] != "second" {
		t.Fatalf("unexpected calls %v", calls)
	}
}

func TestNewEventStampsIDAndTime(t *testing.T) {
	e := NewEvent(EventTicketCreated, 9, "webhook", TicketChangedPayload{})
	if e.ID == "" || e.Timestamp.IsZero() || e.TicketID != 9 {
		t.Fatalf("unexpected event %+v", e)
	}
}

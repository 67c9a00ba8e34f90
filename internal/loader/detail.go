package loader

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-dashboard/internal/domain"
	"github.com/spec-kit/ticket-dashboard/internal/store"
)

const opDetail = "detail"

// DetailLoader loads a single ticket, with its conversations, as the selection.
type DetailLoader struct {
	source TicketSource
	store  *store.Store
	logger *zap.Logger
	scope  *scope
}

func NewDetailLoader(source TicketSource, st *store.Store, logger *zap.Logger) *DetailLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DetailLoader{source: source, store: st, logger: logger.Named("detail_loader"), scope: newScope()}
}

// FetchTicketDetail stores the ticket as selected and returns it. On failure
// the detail error is set and the adapter error is returned to the caller; the
// ticket list error is left alone.
func (l *DetailLoader) FetchTicketDetail(ctx context.Context, id int64) (*domain.Ticket, error) {
	ctx, token, done, err := l.scope.begin(ctx, opDetail, func() {
		l.store.SetDetailError("")
		l.store.SetLoading(true)
	})
	if err != nil {
		return nil, err
	}
	defer done()

	ticket, err := l.source.GetTicket(ctx, id, true)
	if err != nil {
		if commitErr := l.scope.commit(opDetail, token, func() {
			l.store.SetDetailError(MsgFetchDetail)
			l.store.SetLoading(false)
		}); commitErr != nil {
			return nil, commitErr
		}
		l.logger.Error("fetch ticket detail", zap.Int64("ticket_id", id), zap.Error(err))
		return nil, err
	}

	if err := l.scope.commit(opDetail, token, func() {
		l.store.SetSelectedTicket(ticket)
		l.store.SetLoading(false)
	}); err != nil {
		return nil, err
	}
	return ticket, nil
}

// Close cancels in-flight calls. Nothing is written to the store afterwards.
func (l *DetailLoader) Close() {
	l.scope.close()
}

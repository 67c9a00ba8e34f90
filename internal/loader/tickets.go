package loader

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-dashboard/internal/store"
)

// Error messages written to the store.
const (
	MsgFetchTickets  = "Failed to fetch tickets"
	MsgSearchTickets = "Failed to search tickets"
	MsgFetchDetail   = "Failed to fetch ticket details"
)

// opTickets is shared by fetch and search since both replace the same list.
const opTickets = "tickets"

// TicketLoader loads ticket lists into a store.
type TicketLoader struct {
	source TicketSource
	store  *store.Store
	logger *zap.Logger
	scope  *scope
}

func NewTicketLoader(source TicketSource, st *store.Store, logger *zap.Logger) *TicketLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketLoader{source: source, store: st, logger: logger.Named("ticket_loader"), scope: newScope()}
}

// FetchTickets loads one page. Page 1 replaces the list, later pages append.
// A failed page 1 leaves an empty list behind; a failed later page keeps it.
func (l *TicketLoader) FetchTickets(ctx context.Context, page, perPage int, groupID *int64) error {
	ctx, token, done, err := l.scope.begin(ctx, opTickets, l.start)
	if err != nil {
		return err
	}
	defer done()

	result, err := l.source.ListTickets(ctx, page, perPage, groupID)
	if err != nil {
		if commitErr := l.scope.commit(opTickets, token, func() {
			l.store.SetError(MsgFetchTickets)
			if page == 1 {
				l.store.SetTickets(nil)
			}
			l.store.SetLoading(false)
		}); commitErr != nil {
			return commitErr
		}
		l.logger.Error("fetch tickets", zap.Int("page", page), zap.Error(err))
		return err
	}

	return l.scope.commit(opTickets, token, func() {
		if page == 1 {
			l.store.SetTickets(result.Tickets)
		} else {
			l.store.AppendTickets(result.Tickets)
		}
		l.store.SetPagination(result.Pagination)
		l.store.SetLoading(false)
	})
}

// SearchTickets replaces the list with the results of a server side search.
// Pagination is left as it was.
func (l *TicketLoader) SearchTickets(ctx context.Context, query string) error {
	ctx, token, done, err := l.scope.begin(ctx, opTickets, l.start)
	if err != nil {
		return err
	}
	defer done()

	results, err := l.source.SearchTickets(ctx, query)
	if err != nil {
		if commitErr := l.scope.commit(opTickets, token, func() {
			l.store.SetError(MsgSearchTickets)
			l.store.SetLoading(false)
		}); commitErr != nil {
			return commitErr
		}
		l.logger.Error("search tickets", zap.String("query", query), zap.Error(err))
		return err
	}

	return l.scope.commit(opTickets, token, func() {
		l.store.SetTickets(results)
		l.store.SetLoading(false)
	})
}

// Close cancels in-flight calls. Nothing is written to the store afterwards.
func (l *TicketLoader) Close() {
	l.scope.close()
}

func (l *TicketLoader) start() {
	l.store.SetLoading(true)
	l.store.SetError("")
}

// Package loader runs ticket API calls and writes their outcome into a store.
package loader

import (
	"context"
	"errors"
	"sync"

	"github.com/spec-kit/ticket-dashboard/internal/domain"
)

var (
	// ErrStale is returned when a newer call of the same operation superseded
	// this one, or the call was cancelled by Close. The store is left untouched.
	ErrStale = errors.New("loader: stale response discarded")
	// ErrClosed is returned by calls made after Close.
	ErrClosed = errors.New("loader: closed")
)

// TicketSource is the subset of the API client the loaders use.
type TicketSource interface {
	ListTickets(ctx context.Context, page, perPage int, groupID *int64) (*domain.TicketPage, error)
	SearchTickets(ctx context.Context, query string) ([]domain.Ticket, error)
	GetTicket(ctx context.Context, id int64, includeConversations bool) (*domain.Ticket, error)
}

// scope issues per-operation request tokens and owns the cancellation of
// every call started through it. Store writes go through commit so that
// nothing is written once a call is superseded or the scope is closed.
type scope struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	seq    map[string]uint64
	closed bool
}

func newScope() *scope {
	ctx, cancel := context.WithCancel(context.Background())
	return &scope{ctx: ctx, cancel: cancel, seq: make(map[string]uint64)}
}

// begin draws the next token for op and runs start while it is still current.
// The returned context ends when parent ends or the scope closes.
func (s *scope) begin(parent context.Context, op string, start func()) (context.Context, uint64, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, 0, nil, ErrClosed
	}
	s.seq[op]++
	token := s.seq[op]

	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(s.ctx, cancel)
	if start != nil {
		start()
	}
	return ctx, token, func() {
		stop()
		cancel()
	}, nil
}

// commit runs write only if token is still the latest for op and the scope is open.
func (s *scope) commit(op string, token uint64, write func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.seq[op] != token {
		return ErrStale
	}
	write()
	return nil
}

func (s *scope) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.cancel()
}

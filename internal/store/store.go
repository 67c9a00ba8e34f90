// Package store holds the ticket state of one dashboard session.
package store

import (
	"sync"

	"github.com/spec-kit/ticket-dashboard/internal/domain"
)

// State is a snapshot of the store. Error belongs to the ticket list and
// DetailError to the selected ticket; both are empty when there is no error.
type State struct {
	Tickets     []domain.Ticket
	Selected    *domain.Ticket
	Loading     bool
	Error       string
	DetailError string
	Pagination  domain.Pagination
}

// Listener receives the state after every mutation. Listeners may read the
// store but must not mutate it.
type Listener func(State)

// Store is a mutex guarded ticket state with synchronous change notification.
// Listeners see snapshots in mutation order. Mutators do not validate their
// input.
type Store struct {
	mu        sync.RWMutex
	notifyMu  sync.Mutex
	state     State
	listeners map[uint64]Listener
	nextID    uint64
}

// New returns an empty store with default pagination.
func New() *Store {
	return &Store{
		state:     State{Tickets: []domain.Ticket{}, Pagination: domain.DefaultPagination()},
		listeners: make(map[uint64]Listener),
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Subscribe registers fn and returns a func that removes it.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// SetTickets replaces the ticket list.
func (s *Store) SetTickets(tickets []domain.Ticket) {
	s.update(func(st *State) {
		st.Tickets = append([]domain.Ticket{}, tickets...)
	})
}

// AppendTickets concatenates tickets after the current list. No dedupe.
func (s *Store) AppendTickets(tickets []domain.Ticket) {
	s.update(func(st *State) {
		merged := make([]domain.Ticket, 0, len(st.Tickets)+len(tickets))
		merged = append(merged, st.Tickets...)
		st.Tickets = append(merged, tickets...)
	})
}

// SetSelectedTicket sets or clears (nil) the selected ticket.
func (s *Store) SetSelectedTicket(ticket *domain.Ticket) {
	s.update(func(st *State) {
		if ticket == nil {
			st.Selected = nil
			return
		}
		selected := *ticket
		st.Selected = &selected
	})
}

func (s *Store) SetLoading(loading bool) {
	s.update(func(st *State) { st.Loading = loading })
}

// SetError sets the ticket list error message; "" clears it.
func (s *Store) SetError(message string) {
	s.update(func(st *State) { st.Error = message })
}

// SetDetailError sets the selected ticket error message; "" clears it.
func (s *Store) SetDetailError(message string) {
	s.update(func(st *State) { st.DetailError = message })
}

func (s *Store) SetPagination(p domain.Pagination) {
	s.update(func(st *State) { st.Pagination = p })
}

// SetCurrentPage changes only the page number.
func (s *Store) SetCurrentPage(page int) {
	s.update(func(st *State) { st.Pagination.Page = page })
}

func (s *Store) update(mutate func(*State)) {
	s.mu.Lock()
	mutate(&s.state)
	snapshot := s.state.clone()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	// notifyMu is taken before mu is released so deliveries keep mutation order.
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
}

func (st State) clone() State {
	out := st
	out.Tickets = append([]domain.Ticket{}, st.Tickets...)
	if st.Selected != nil {
		selected := *st.Selected
		out.Selected = &selected
	}
	return out
}

// Package view builds the presentation models rendered by the dashboard.
package view

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spec-kit/ticket-dashboard/internal/domain"
	"github.com/spec-kit/ticket-dashboard/internal/store"
)

// TicketFetcher loads a page of tickets into the store.
type TicketFetcher interface {
	FetchTickets(ctx context.Context, page, perPage int, groupID *int64) error
}

// TicketCard is one ticket in the dashboard list.
type TicketCard struct {
	ID            int64
	Subject       string
	StatusLabel   string
	StatusColor   string
	PriorityLabel string
	PriorityColor string
	Group         string
	Created       string
}

// Option is an entry of a filter select.
type Option struct {
	Value    string
	Label    string
	Selected bool
}

// DashboardModel is everything the dashboard template renders.
type DashboardModel struct {
	Tickets        []TicketCard
	Stats          Stats
	Loading        bool
	Error          string
	HasMore        bool
	PaginationText string
	Query          string
	Groups         []Option
	Statuses       []Option
}

// Dashboard keeps the filter selection of a session and the projection of the
// store it derives from them. The projection is recomputed on every store
// change and every filter change.
type Dashboard struct {
	fetcher TicketFetcher
	store   *store.Store
	groups  *domain.GroupCatalog
	perPage int
	now     func() time.Time

	mu      sync.Mutex
	group   *int64
	status  domain.Code
	query   string
	visible []domain.Ticket
	stats   Stats
	mounted bool

	unsubscribe func()
}

func NewDashboard(fetcher TicketFetcher, st *store.Store, groups *domain.GroupCatalog, perPage int, now func() time.Time) *Dashboard {
	if perPage <= 0 {
		perPage = domain.DefaultPerPage
	}
	if now == nil {
		now = time.Now
	}
	d := &Dashboard{fetcher: fetcher, store: st, groups: groups, perPage: perPage, now: now}
	d.recompute(st.Snapshot())
	d.unsubscribe = st.Subscribe(d.recompute)
	return d
}

// Mounted reports whether the first page has been requested.
func (d *Dashboard) Mounted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mounted
}

// Mount fetches the first page without a group filter.
func (d *Dashboard) Mount(ctx context.Context) error {
	d.mu.Lock()
	d.mounted = true
	d.mu.Unlock()
	return d.fetcher.FetchTickets(ctx, 1, d.perPage, nil)
}

// ApplyFilters stores both filters and reloads page 1 filtered by group on the
// server. Status is applied locally. Zero status or nil group mean all.
func (d *Dashboard) ApplyFilters(ctx context.Context, group *int64, status domain.Code) error {
	d.mu.Lock()
	d.mounted = true
	d.group = group
	d.status = status
	d.mu.Unlock()
	d.recompute(d.store.Snapshot())
	return d.fetcher.FetchTickets(ctx, 1, d.perPage, group)
}

// LoadMore requests the page after the current one with the stored page size
// and the last group filter.
func (d *Dashboard) LoadMore(ctx context.Context) error {
	p := d.store.Snapshot().Pagination
	perPage := p.PerPage
	if perPage <= 0 {
		perPage = d.perPage
	}
	d.mu.Lock()
	group := d.group
	d.mu.Unlock()
	return d.fetcher.FetchTickets(ctx, p.Page+1, perPage, group)
}

// Search narrows the visible list locally. An empty query shows everything.
func (d *Dashboard) Search(query string) {
	d.mu.Lock()
	d.query = strings.TrimSpace(query)
	d.mu.Unlock()
	d.recompute(d.store.Snapshot())
}

// Filters returns the current group and status selection.
func (d *Dashboard) Filters() (*int64, domain.Code) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.group, d.status
}

// Model renders the current projection.
func (d *Dashboard) Model() DashboardModel {
	snap := d.store.Snapshot()

	d.mu.Lock()
	defer d.mu.Unlock()

	model := DashboardModel{
		Tickets:  make([]TicketCard, 0, len(d.visible)),
		Stats:    d.stats,
		Loading:  snap.Loading,
		Error:    snap.Error,
		HasMore:  snap.Pagination.HasMore,
		Query:    d.query,
		Groups:   d.groupOptions(),
		Statuses: d.statusOptions(),
	}
	for _, t := range d.visible {
		model.Tickets = append(model.Tickets, d.card(t))
	}
	if d.group != nil || d.status != 0 {
		model.PaginationText = fmt.Sprintf("Showing %d filtered tickets (from %d total)", len(d.visible), len(snap.Tickets))
	} else {
		model.PaginationText = fmt.Sprintf("Showing %d of %d tickets", len(snap.Tickets), snap.Pagination.Total)
	}
	return model
}

// Close detaches the dashboard from the store.
func (d *Dashboard) Close() {
	if d.unsubscribe != nil {
		d.unsubscribe()
	}
}

func (d *Dashboard) recompute(state store.State) {
	d.mu.Lock()
	defer d.mu.Unlock()

	filtered := state.Tickets
	if d.status != 0 {
		filtered = make([]domain.Ticket, 0, len(state.Tickets))
		for _, t := range state.Tickets {
			if t.Status == d.status {
				filtered = append(filtered, t)
			}
		}
	}
	d.stats = ComputeStats(filtered, d.now())
	d.visible = matchQuery(filtered, d.query)
}

func matchQuery(tickets []domain.Ticket, query string) []domain.Ticket {
	if query == "" {
		return tickets
	}
	needle := strings.ToLower(query)
	out := make([]domain.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if strings.Contains(strings.ToLower(t.Subject), needle) ||
			strings.Contains(strconv.FormatInt(t.ID, 10), query) ||
			strings.Contains(strings.ToLower(t.Description), needle) {
			out = append(out, t)
		}
	}
	return out
}

func (d *Dashboard) card(t domain.Ticket) TicketCard {
	status := domain.StatusName(t.Status)
	priority := domain.PriorityName(t.Priority)
	return TicketCard{
		ID:            t.ID,
		Subject:       t.Subject,
		StatusLabel:   domain.StatusLabel(t.Status),
		StatusColor:   domain.StatusColor(status),
		PriorityLabel: domain.PriorityLabel(t.Priority),
		PriorityColor: domain.PriorityColor(priority),
		Group:         d.groups.Label(t.GroupID),
		Created:       formatDate(t.CreatedAt),
	}
}

func (d *Dashboard) groupOptions() []Option {
	options := []Option{{Value: "", Label: "All Groups", Selected: d.group == nil}}
	for _, g := range d.groups.Groups() {
		options = append(options, Option{
			Value:    strconv.FormatInt(g.ID, 10),
			Label:    g.Name,
			Selected: d.group != nil && *d.group == g.ID,
		})
	}
	return options
}

func (d *Dashboard) statusOptions() []Option {
	options := []Option{{Value: "", Label: "All Status", Selected: d.status == 0}}
	for _, code := range domain.StatusOptions() {
		options = append(options, Option{
			Value:    strconv.Itoa(int(code)),
			Label:    domain.StatusLabel(code),
			Selected: d.status == code,
		})
	}
	return options
}

func formatDate(value string) string {
	if t, ok := domain.ParseTimestamp(value); ok {
		return t.Format("2006-01-02")
	}
	return value
}

func formatDateTime(value string) string {
	if t, ok := domain.ParseTimestamp(value); ok {
		return t.Format("2006-01-02 15:04")
	}
	return value
}

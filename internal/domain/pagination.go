package domain

// DefaultPerPage is the page size used when the caller does not pick one.
const DefaultPerPage = 30

// Pagination describes the position of a ticket list page.
type Pagination struct {
	Page    int  `json:"page"`
	PerPage int  `json:"per_page"`
	Total   int  `json:"total"`
	HasMore bool `json:"has_more"`
}

// DefaultPagination is the state before any list has been fetched.
func DefaultPagination() Pagination {
	return Pagination{Page: 1, PerPage: DefaultPerPage}
}

// TicketPage is one page of a ticket listing.
type TicketPage struct {
	Tickets    []Ticket   `json:"tickets"`
	Pagination Pagination `json:"pagination"`
}

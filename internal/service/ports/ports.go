// Package ports declares the narrow contracts the check-in services
// consume. The MySQL repositories satisfy them in production; tests plug
// in in-memory fakes so the redemption protocol can be exercised without a
// database.
package ports

import (
	"context"
	"time"

	"github.com/iliyamo/ticket-checkin/internal/model"
)

// Directory is the read-only ticket directory: secrets in, tickets out.
// All listings come back in ticket creation order.
type Directory interface {
	// Resolve returns the ticket for a secret within the event, or
	// repository.ErrTicketNotFound.
	Resolve(ctx context.Context, eventID uint64, secret string) (*model.Ticket, error)
	// Search returns tickets whose secret or attendee name contains the
	// query, case-insensitively.
	Search(ctx context.Context, eventID uint64, query string) ([]model.Ticket, error)
	// Export returns all tickets of the event.
	Export(ctx context.Context, eventID uint64) ([]model.Ticket, error)
	// Products returns the event's items with variations in catalog order.
	Products(ctx context.Context, eventID uint64) ([]model.Item, error)
}

// LedgerScope is the view of the check-in ledger inside the per-ticket
// critical section. Everything read through it is consistent with the
// append, and the append only persists if the whole scope succeeds.
type LedgerScope interface {
	// FindNonce returns the checkin recorded under an idempotency token,
	// or nil when the token is unknown for this ticket.
	FindNonce(nonce string) (*model.Checkin, error)
	// HasAny reports whether the ticket has at least one checkin.
	HasAny() (bool, error)
	// Last returns the most recent checkin for the ticket, or nil.
	Last() (*model.Checkin, error)
	// Append records a new checkin and, when nonce is non-empty, the
	// idempotency record that makes retransmissions of this request safe.
	Append(at time.Time, nonce string, forced bool) (*model.Checkin, error)
}

// Ledger is the append-only check-in ledger.
type Ledger interface {
	// InTicketScope runs fn with the ticket's critical section held, so
	// check-then-append sequences for one ticket behave as if serialized.
	// Unrelated tickets are not blocked by each other.
	InTicketScope(ctx context.Context, ticketID uint64, fn func(LedgerScope) error) error
	// CountFor returns the checkin count per ticket for an event; tickets
	// without checkins are absent from the map.
	CountFor(ctx context.Context, eventID uint64) (map[uint64]int, error)
	// LastEvent returns a ticket's most recent checkin, or nil, without
	// entering the critical section.
	LastEvent(ctx context.Context, ticketID uint64) (*model.Checkin, error)
}

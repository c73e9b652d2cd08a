package service

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/ticket-checkin/internal/model"
	"github.com/iliyamo/ticket-checkin/internal/service/ports"
)

// TicketView is one row of the search and download projections.  The
// attendee label falls back to the item name when no attendee name was
// recorded.  Redeemed is derived from the ledger, never stored.  CheckinAt
// is only populated by Search, where result sets are small enough to look
// up the latest admission per ticket for display on the scanning device.
type TicketView struct {
	Secret        string  `json:"secret"`
	AttendeeLabel string  `json:"attendee_label"`
	Order         string  `json:"order"`
	Item          string  `json:"item"`
	Variation     *string `json:"variation"`
	Paid          bool    `json:"paid"`
	Redeemed      bool    `json:"redeemed"`
	CheckinAt     *string `json:"checkin_at,omitempty"`
}

// TicketListing wraps view rows in the wire shape shared by search and
// download.
type TicketListing struct {
	Results []TicketView `json:"results"`
}

// Views produces the read-only search and download projections over the
// ticket directory and the check-in ledger.  Neither projection mutates
// anything; both run concurrently with redemptions and may observe a
// slightly stale ledger.
type Views struct {
	directory ports.Directory
	ledger    ports.Ledger
}

// NewViews constructs the view service.
func NewViews(directory ports.Directory, ledger ports.Ledger) *Views {
	if directory == nil || ledger == nil {
		panic("nil dependency passed to NewViews")
	}
	return &Views{directory: directory, ledger: ledger}
}

// Search returns the tickets matching the query, in creation order, with
// the latest admission time attached to redeemed rows.
func (v *Views) Search(ctx context.Context, eventID uint64, query string) (*TicketListing, error) {
	tickets, err := v.directory.Search(ctx, eventID, query)
	if err != nil {
		return nil, fmt.Errorf("search tickets: %w", err)
	}
	counts, err := v.ledger.CountFor(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("load checkin counts: %w", err)
	}
	listing := &TicketListing{Results: make([]TicketView, 0, len(tickets))}
	for i := range tickets {
		row := viewOf(&tickets[i], counts)
		if row.Redeemed {
			last, err := v.ledger.LastEvent(ctx, tickets[i].ID)
			if err != nil {
				return nil, fmt.Errorf("load last checkin: %w", err)
			}
			if last != nil {
				at := last.CheckedAt.UTC().Format(time.RFC3339)
				row.CheckinAt = &at
			}
		}
		listing.Results = append(listing.Results, row)
	}
	return listing, nil
}

// Download returns every ticket of the event, in creation order.  It skips
// the per-ticket admission timestamp lookup: full exports can be large and
// the consuming devices only need the redeemed flag to sync state.
func (v *Views) Download(ctx context.Context, eventID uint64) (*TicketListing, error) {
	tickets, err := v.directory.Export(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("export tickets: %w", err)
	}
	counts, err := v.ledger.CountFor(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("load checkin counts: %w", err)
	}
	listing := &TicketListing{Results: make([]TicketView, 0, len(tickets))}
	for i := range tickets {
		listing.Results = append(listing.Results, viewOf(&tickets[i], counts))
	}
	return listing, nil
}

func viewOf(t *model.Ticket, counts map[uint64]int) TicketView {
	return TicketView{
		Secret:        t.Secret,
		AttendeeLabel: t.Label(),
		Order:         t.OrderCode,
		Item:          t.ItemName,
		Variation:     t.VariationName,
		Paid:          t.Paid(),
		Redeemed:      counts[t.ID] > 0,
	}
}

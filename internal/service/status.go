package service

import (
	"context"
	"fmt"

	"github.com/iliyamo/ticket-checkin/internal/service/ports"
)

// VariationSummary is the per-variation slice of a product's check-in
// counts.
type VariationSummary struct {
	Name     string `json:"name"`
	ID       uint64 `json:"id"`
	Checkins int    `json:"checkins"`
	Total    int    `json:"total"`
}

// ProductSummary aggregates check-in counts for one catalog item.  Total
// counts every ticket sold for the item regardless of payment state, so the
// report reflects the full inventory; Checkins counts distinct tickets with
// at least one ledger event.  Variations is empty (never nil) for items
// without variations; tickets without a variation count only toward the
// item totals.
type ProductSummary struct {
	Name       string             `json:"name"`
	ID         uint64             `json:"id"`
	Checkins   int                `json:"checkins"`
	Admission  bool               `json:"admission"`
	Total      int                `json:"total"`
	Variations []VariationSummary `json:"variations"`
}

// StatusSummary is the event-wide aggregate: distinct checked-in tickets,
// total tickets, and the per-product breakdown in catalog order.
type StatusSummary struct {
	Checkins int              `json:"checkins"`
	Total    int              `json:"total"`
	Items    []ProductSummary `json:"items"`
}

// StatusAggregator computes check-in totals per product and per product
// variation.  It reads the directory and the ledger without locking, so a
// summary may trail concurrent redemptions slightly but is always
// internally consistent, and the catalog ordering makes repeated calls
// byte-for-byte stable.
type StatusAggregator struct {
	directory ports.Directory
	ledger    ports.Ledger
}

// NewStatusAggregator constructs an aggregator over a ticket directory and
// a check-in ledger.
func NewStatusAggregator(directory ports.Directory, ledger ports.Ledger) *StatusAggregator {
	if directory == nil || ledger == nil {
		panic("nil dependency passed to NewStatusAggregator")
	}
	return &StatusAggregator{directory: directory, ledger: ledger}
}

// Aggregate builds the status summary for an event.
func (a *StatusAggregator) Aggregate(ctx context.Context, eventID uint64) (*StatusSummary, error) {
	items, err := a.directory.Products(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	tickets, err := a.directory.Export(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("load tickets: %w", err)
	}
	counts, err := a.ledger.CountFor(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("load checkin counts: %w", err)
	}

	summary := &StatusSummary{Items: make([]ProductSummary, 0, len(items))}
	itemIdx := make(map[uint64]int, len(items))
	varIdx := make(map[uint64][2]int)
	for _, it := range items {
		ps := ProductSummary{
			Name:       it.Name,
			ID:         it.ID,
			Admission:  it.Admission,
			Variations: make([]VariationSummary, 0, len(it.Variations)),
		}
		for _, v := range it.Variations {
			varIdx[v.ID] = [2]int{len(summary.Items), len(ps.Variations)}
			ps.Variations = append(ps.Variations, VariationSummary{Name: v.Name, ID: v.ID})
		}
		itemIdx[it.ID] = len(summary.Items)
		summary.Items = append(summary.Items, ps)
	}

	for _, t := range tickets {
		redeemed := counts[t.ID] > 0
		summary.Total++
		if redeemed {
			summary.Checkins++
		}
		idx, ok := itemIdx[t.ItemID]
		if !ok {
			continue
		}
		summary.Items[idx].Total++
		if redeemed {
			summary.Items[idx].Checkins++
		}
		if t.VariationID != nil {
			if pos, ok := varIdx[*t.VariationID]; ok {
				v := &summary.Items[pos[0]].Variations[pos[1]]
				v.Total++
				if redeemed {
					v.Checkins++
				}
			}
		}
	}
	return summary, nil
}

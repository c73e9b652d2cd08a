package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/ticket-checkin/internal/model"
)

// TicketRepo is the read-only ticket directory.  It resolves secrets to
// tickets and produces the creation-ordered listings used by the search,
// download and status views.  Tickets are order positions from an external
// sales system; this service never inserts or modifies them.
type TicketRepo struct {
	db *sql.DB
}

// NewTicketRepo returns a new TicketRepo bound to the given database.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

// ticketColumns is the shared projection for all ticket queries.  Order
// status rides along so eligibility never has to be stored on the ticket.
const ticketColumns = `t.id, t.event_id, t.order_id, o.code, o.status,
	       t.item_id, i.name, i.admission, t.variation_id, v.name, t.attendee_name, t.secret
	FROM tickets t
	JOIN orders o ON o.id = t.order_id
	JOIN items  i ON i.id = t.item_id
	LEFT JOIN item_variations v ON v.id = t.variation_id`

func scanTicket(row interface{ Scan(...any) error }) (*model.Ticket, error) {
	var t model.Ticket
	var variationID sql.NullInt64
	var variationName, attendeeName sql.NullString
	if err := row.Scan(
		&t.ID, &t.EventID, &t.OrderID, &t.OrderCode, &t.OrderStatus,
		&t.ItemID, &t.ItemName, &t.ItemAdmission, &variationID, &variationName, &attendeeName, &t.Secret,
	); err != nil {
		return nil, err
	}
	if variationID.Valid {
		vid := uint64(variationID.Int64)
		t.VariationID = &vid
	}
	if variationName.Valid {
		vn := variationName.String
		t.VariationName = &vn
	}
	if attendeeName.Valid {
		an := attendeeName.String
		t.AttendeeName = &an
	}
	return &t, nil
}

// Resolve looks up a single ticket by its secret within the event.  It
// returns ErrTicketNotFound when the secret does not exist in this event;
// the redemption engine maps that to the "unknown_ticket" rejection.
func (r *TicketRepo) Resolve(ctx context.Context, eventID uint64, secret string) (*model.Ticket, error) {
	const q = `SELECT ` + ticketColumns + ` WHERE t.event_id = ? AND t.secret = ?`
	t, err := scanTicket(r.db.QueryRowContext(ctx, q, eventID, secret))
	if err == sql.ErrNoRows {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Search returns every ticket of the event whose secret or attendee name
// contains the query, case-insensitively.  Results come back in ticket
// creation order so repeated searches are stable.
func (r *TicketRepo) Search(ctx context.Context, eventID uint64, query string) ([]model.Ticket, error) {
	const q = `SELECT ` + ticketColumns + `
	           WHERE t.event_id = ?
	             AND (LOWER(t.secret) LIKE ? OR LOWER(COALESCE(t.attendee_name, '')) LIKE ?)
	           ORDER BY t.id ASC`
	pattern := "%" + strings.ToLower(query) + "%"
	return r.queryTickets(ctx, q, eventID, pattern, pattern)
}

// Export returns all tickets of the event in creation order.  It feeds the
// download view and the status aggregator.
func (r *TicketRepo) Export(ctx context.Context, eventID uint64) ([]model.Ticket, error) {
	const q = `SELECT ` + ticketColumns + ` WHERE t.event_id = ? ORDER BY t.id ASC`
	return r.queryTickets(ctx, q, eventID)
}

func (r *TicketRepo) queryTickets(ctx context.Context, q string, args ...any) ([]model.Ticket, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Ticket, 0)
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Products returns the event's items in catalog order, each with its
// variations in catalog order.  The status aggregator walks this list so
// report rows always appear in the order the catalog defines them, not in
// count or alphabetical order.
func (r *TicketRepo) Products(ctx context.Context, eventID uint64) ([]model.Item, error) {
	const itemQ = `SELECT id, event_id, name, admission, position
	               FROM items
	               WHERE event_id = ?
	               ORDER BY position ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, itemQ, eventID)
	if err != nil {
		return nil, err
	}
	items := make([]model.Item, 0)
	index := make(map[uint64]int)
	for rows.Next() {
		var it model.Item
		if err := rows.Scan(&it.ID, &it.EventID, &it.Name, &it.Admission, &it.Position); err != nil {
			rows.Close()
			return nil, err
		}
		it.Variations = []model.ItemVariation{}
		index[it.ID] = len(items)
		items = append(items, it)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return items, nil
	}
	const varQ = `SELECT v.id, v.item_id, v.name, v.position
	              FROM item_variations v
	              JOIN items i ON i.id = v.item_id
	              WHERE i.event_id = ?
	              ORDER BY v.item_id ASC, v.position ASC, v.id ASC`
	vrows, err := r.db.QueryContext(ctx, varQ, eventID)
	if err != nil {
		return nil, err
	}
	defer vrows.Close()
	for vrows.Next() {
		var v model.ItemVariation
		if err := vrows.Scan(&v.ID, &v.ItemID, &v.Name, &v.Position); err != nil {
			return nil, err
		}
		if idx, ok := index[v.ItemID]; ok {
			items[idx].Variations = append(items[idx].Variations, v)
		}
	}
	if err := vrows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

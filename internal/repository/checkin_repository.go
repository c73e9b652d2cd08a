package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/ticket-checkin/internal/model"
	"github.com/iliyamo/ticket-checkin/internal/service/ports"
)

// CheckinRepo is the append-only check-in ledger.  Checkin rows are only
// ever inserted, never updated or deleted, so the full admission history of
// a ticket survives forced re-admissions.  Idempotency records live in the
// checkin_nonces table and are written in the same transaction as the
// checkin row they belong to, so a request either persists completely or
// not at all.
type CheckinRepo struct {
	db *sql.DB
}

// NewCheckinRepo returns a new CheckinRepo bound to the given database.
func NewCheckinRepo(db *sql.DB) *CheckinRepo { return &CheckinRepo{db: db} }

// CheckinScope exposes the ledger operations that are valid inside the
// per-ticket critical section opened by InTicketScope.  All reads and the
// append observe the same transaction.
type CheckinScope struct {
	ctx      context.Context
	tx       *sql.Tx
	ticketID uint64
}

// InTicketScope runs fn inside a transaction that holds a row lock on the
// ticket, serializing the check-then-append sequence per ticket.  Two
// concurrent redemptions of the same ticket queue up on the lock: the
// second one observes whatever the first committed.  Redemptions of
// unrelated tickets lock different rows and proceed in parallel; no global
// lock is involved.  The transaction commits when fn returns nil and rolls
// back otherwise, discarding any partial writes.
func (r *CheckinRepo) InTicketScope(ctx context.Context, ticketID uint64, fn func(ports.LedgerScope) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	// Lock the parent ticket row. Checkin rows alone cannot serialize the
	// first redemption of a ticket: with zero rows there is nothing to lock.
	var locked uint64
	if err := tx.QueryRowContext(ctx,
		`SELECT id FROM tickets WHERE id = ? FOR UPDATE`, ticketID,
	).Scan(&locked); err != nil {
		return err
	}
	scope := &CheckinScope{ctx: ctx, tx: tx, ticketID: ticketID}
	if err := fn(scope); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// FindNonce returns the checkin previously recorded for this ticket under
// the given idempotency token, or nil when the token has not been seen.
func (s *CheckinScope) FindNonce(nonce string) (*model.Checkin, error) {
	const q = `SELECT c.id, c.uuid, c.ticket_id, c.checked_at, c.forced
	           FROM checkin_nonces n
	           JOIN checkins c ON c.id = n.checkin_id
	           WHERE n.ticket_id = ? AND n.nonce = ?`
	var ck model.Checkin
	err := s.tx.QueryRowContext(s.ctx, q, s.ticketID, nonce).Scan(
		&ck.ID, &ck.UUID, &ck.TicketID, &ck.CheckedAt, &ck.Forced,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ck, nil
}

// HasAny reports whether at least one checkin exists for the ticket.
func (s *CheckinScope) HasAny() (bool, error) {
	var exists bool
	err := s.tx.QueryRowContext(s.ctx,
		`SELECT EXISTS(SELECT 1 FROM checkins WHERE ticket_id = ?)`, s.ticketID,
	).Scan(&exists)
	return exists, err
}

// Last returns the most recent checkin for the ticket, or nil when none
// exists yet.
func (s *CheckinScope) Last() (*model.Checkin, error) {
	const q = `SELECT id, uuid, ticket_id, checked_at, forced
	           FROM checkins
	           WHERE ticket_id = ?
	           ORDER BY id DESC
	           LIMIT 1`
	var ck model.Checkin
	err := s.tx.QueryRowContext(s.ctx, q, s.ticketID).Scan(
		&ck.ID, &ck.UUID, &ck.TicketID, &ck.CheckedAt, &ck.Forced,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ck, nil
}

// Append records a new checkin at the given timestamp and, when a nonce is
// supplied, the matching idempotency record in the same transaction.
func (s *CheckinScope) Append(at time.Time, nonce string, forced bool) (*model.Checkin, error) {
	ck := &model.Checkin{
		UUID:      uuid.New().String(),
		TicketID:  s.ticketID,
		CheckedAt: at.UTC(),
		Forced:    forced,
	}
	res, err := s.tx.ExecContext(s.ctx,
		`INSERT INTO checkins (uuid, ticket_id, checked_at, forced) VALUES (?, ?, ?, ?)`,
		ck.UUID, ck.TicketID, ck.CheckedAt.Format("2006-01-02 15:04:05"), ck.Forced,
	)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	ck.ID = uint64(id)
	if nonce != "" {
		if _, err := s.tx.ExecContext(s.ctx,
			`INSERT INTO checkin_nonces (ticket_id, nonce, checkin_id) VALUES (?, ?, ?)`,
			s.ticketID, nonce, ck.ID,
		); err != nil {
			return nil, err
		}
	}
	return ck, nil
}

// CountFor returns, for every ticket of the event that has at least one
// checkin, the number of ledger events recorded for it.  Tickets without
// checkins are absent from the map.  The read runs outside any ticket lock;
// reporting views tolerate a slightly stale snapshot.
func (r *CheckinRepo) CountFor(ctx context.Context, eventID uint64) (map[uint64]int, error) {
	const q = `SELECT c.ticket_id, COUNT(*)
	           FROM checkins c
	           JOIN tickets t ON t.id = c.ticket_id
	           WHERE t.event_id = ?
	           GROUP BY c.ticket_id`
	rows, err := r.db.QueryContext(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[uint64]int)
	for rows.Next() {
		var ticketID uint64
		var n int
		if err := rows.Scan(&ticketID, &n); err != nil {
			return nil, err
		}
		counts[ticketID] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

// LastEvent returns the most recent checkin for a ticket without taking
// the ticket lock, or nil when the ticket has never been checked in.  Used
// by the search view to show when a ticket was admitted.
func (r *CheckinRepo) LastEvent(ctx context.Context, ticketID uint64) (*model.Checkin, error) {
	const q = `SELECT id, uuid, ticket_id, checked_at, forced
	           FROM checkins
	           WHERE ticket_id = ?
	           ORDER BY id DESC
	           LIMIT 1`
	var ck model.Checkin
	err := r.db.QueryRowContext(ctx, q, ticketID).Scan(
		&ck.ID, &ck.UUID, &ck.TicketID, &ck.CheckedAt, &ck.Forced,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ck, nil
}

package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/ticket-checkin/internal/model"
)

// EventRepo provides read access to the events table.  Events and their
// access keys are provisioned externally (seed data, operations tooling);
// this service only ever looks them up to scope and authenticate incoming
// requests.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns a new EventRepo bound to the given database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// GetBySlugs resolves an event by its organizer slug and event slug.  It
// returns ErrEventNotFound when no such event exists so the boundary layer
// can answer 404 before any key comparison happens.
func (r *EventRepo) GetBySlugs(ctx context.Context, organizer, slug string) (*model.Event, error) {
	const q = `SELECT id, organizer_slug, slug, name, access_key, created_at
	           FROM events
	           WHERE organizer_slug = ? AND slug = ?`
	var ev model.Event
	err := r.db.QueryRowContext(ctx, q, organizer, slug).Scan(
		&ev.ID, &ev.OrganizerSlug, &ev.Slug, &ev.Name, &ev.AccessKey, &ev.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

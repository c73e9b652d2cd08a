package model

import "time"

// Event is a single event (conference day, concert, ...) that tickets can
// be checked in against.  Every API request is scoped to exactly one event,
// addressed by the organizer slug and the event slug, and authenticated by
// the static access key stored on the row.  The service only verifies the
// key; generating and rotating keys happens outside of it.
//
// Fields:
//  ID            – primary key identifier.
//  OrganizerSlug – URL slug of the organizer owning the event.
//  Slug          – URL slug of the event, unique per organizer.
//  Name          – display name of the event.
//  AccessKey     – static per-event key presented by scanning devices.
//  CreatedAt     – creation timestamp.
type Event struct {
	ID            uint64    // events.id
	OrganizerSlug string    // events.organizer_slug
	Slug          string    // events.slug
	Name          string    // events.name
	AccessKey     string    // events.access_key
	CreatedAt     time.Time // events.created_at
}

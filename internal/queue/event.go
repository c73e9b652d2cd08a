// Package queue defines message payloads exchanged over the message broker
// and the background consumer that processes them.
package queue

// CheckinRecordedEvent is published after every successful redemption,
// including forced ones and excluding idempotent replays.  It carries
// enough information for downstream consumers to log, notify, or feed
// analytics without querying the primary database.
type CheckinRecordedEvent struct {
	CheckinUUID   string `json:"checkin_uuid"`
	EventSlug     string `json:"event_slug"`
	OrganizerSlug string `json:"organizer_slug"`
	TicketSecret  string `json:"ticket_secret"`
	AttendeeLabel string `json:"attendee_label"`
	OrderCode     string `json:"order_code"`
	Item          string `json:"item"`
	Variation     string `json:"variation,omitempty"`
	Forced        bool   `json:"forced"`
	CheckedAt     string `json:"checked_at"`
}

package model

import "time"

// Checkin is one admission record for a ticket.  Rows are append-only:
// they are created exclusively by the redemption flow and never mutated or
// deleted afterwards.  A ticket normally has at most one checkin; more than
// one exists only when an operator used the force override, which is kept
// as audit history rather than treated as corruption.  "Is this ticket
// checked in" is therefore always derived as "at least one Checkin exists",
// never stored as a flag.
//
// Fields:
//  ID        – primary key identifier.
//  UUID      – public identifier carried in queue messages and logs.
//  TicketID  – ticket that was admitted.
//  CheckedAt – admission timestamp; defaults to the server clock but a
//              scanning device may assert its own timestamp instead.
//  Forced    – true when this row was created through the force override.
type Checkin struct {
	ID        uint64    // checkins.id
	UUID      string    // checkins.uuid
	TicketID  uint64    // checkins.ticket_id
	CheckedAt time.Time // checkins.checked_at
	Forced    bool      // checkins.forced
}

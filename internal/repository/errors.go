// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// middleware and handlers to distinguish between different failure
// scenarios. For example, ErrEventNotFound must surface as an HTTP 404
// before any redemption logic runs, while ErrTicketNotFound is a normal
// business outcome inside the redemption protocol.
package repository

import "errors"

// ErrEventNotFound is returned when no event matches the requested
// organizer and event slugs. The boundary layer translates this into an
// HTTP 404 response.
var ErrEventNotFound = errors.New("event not found")

// ErrTicketNotFound is returned when a secret does not resolve to any
// ticket within the event. The redemption engine maps this to the
// "unknown_ticket" rejection; it is never a transport-level error.
var ErrTicketNotFound = errors.New("ticket not found")

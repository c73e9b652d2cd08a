package middleware // reusable HTTP middleware for the check-in API

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-checkin/internal/model"
	"github.com/iliyamo/ticket-checkin/internal/repository"
)

// EventContextKey is where the resolved event is stored on the echo
// context for downstream handlers.
const EventContextKey = "event"

// EventResolver is the narrow lookup contract this middleware needs; the
// EventRepo satisfies it, and tests substitute a fake.
type EventResolver interface {
	GetBySlugs(ctx context.Context, organizer, slug string) (*model.Event, error)
}

// EventKeyAuth returns an Echo middleware that scopes a request to one
// event and authenticates it with the event's static access key.  The
// event is addressed by the :organizer and :event path parameters and the
// key arrives as the "key" query parameter (scanning devices embed it in
// their configured URL).  An unresolvable event answers 404 and a wrong or
// missing key answers 403, both before any check-in logic runs, so the
// core never sees unauthenticated traffic.  On success the resolved event
// is stored in the context under EventContextKey.
func EventKeyAuth(events EventResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ev, err := events.GetBySlugs(c.Request().Context(), c.Param("organizer"), c.Param("event"))
			if errors.Is(err, repository.ErrEventNotFound) {
				return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
			}
			if err != nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
			}
			key := c.QueryParam("key")
			// Constant-time comparison; the key is a static credential.
			if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(ev.AccessKey)) != 1 {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "invalid key"})
			}
			c.Set(EventContextKey, ev)
			return next(c)
		}
	}
}

// EventFromContext returns the event stored by EventKeyAuth, or nil when
// the middleware did not run.
func EventFromContext(c echo.Context) *model.Event {
	if ev, ok := c.Get(EventContextKey).(*model.Event); ok {
		return ev
	}
	return nil
}

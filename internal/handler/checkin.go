package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-checkin/internal/middleware"
	"github.com/iliyamo/ticket-checkin/internal/model"
	"github.com/iliyamo/ticket-checkin/internal/monitoring"
	"github.com/iliyamo/ticket-checkin/internal/queue"
	"github.com/iliyamo/ticket-checkin/internal/service"
)

// CheckinHandler exposes the per-event check-in API: redeem plus the three
// read-only views (search, download, status).  All routes sit behind the
// EventKeyAuth middleware, so every method can assume a resolved,
// authenticated event in the context.  Business rejections are HTTP 200
// bodies with status "error"; only transport and storage faults use 4xx/5xx.
type CheckinHandler struct {
	Engine *service.RedemptionEngine   // redemption decisions and ledger writes
	Status *service.StatusAggregator   // per-product check-in totals
	Views  *service.Views              // search and download projections
	// Publish sends a message after each fresh successful redemption.
	// Nil disables publishing (tests, broker-less deployments).
	Publish func(ctx context.Context, ev queue.CheckinRecordedEvent) error
}

// NewCheckinHandler constructs a CheckinHandler.  Engine, Status and Views
// must be non-nil; publish may be nil.
func NewCheckinHandler(engine *service.RedemptionEngine, status *service.StatusAggregator, views *service.Views,
	publish func(ctx context.Context, ev queue.CheckinRecordedEvent) error) *CheckinHandler {
	if engine == nil || status == nil || views == nil {
		panic("nil service passed to NewCheckinHandler")
	}
	return &CheckinHandler{Engine: engine, Status: status, Views: views, Publish: publish}
}

// Redeem handles POST /api/v1/:organizer/:event/redeem.  Form parameters:
// secret (required), nonce (optional idempotency token), force (optional
// boolean), datetime (optional RFC-3339 timestamp asserted by the device).
// The response body is always {version, status, reason?}; unknown_ticket,
// unpaid and already_redeemed arrive with HTTP 200 because they are
// expected outcomes, not faults.
func (h *CheckinHandler) Redeem(c echo.Context) error {
	ev := middleware.EventFromContext(c)
	if ev == nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "event not resolved"})
	}
	secret := c.FormValue("secret")
	if secret == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "secret is required"})
	}
	req := service.RedeemRequest{
		Secret: secret,
		Nonce:  c.FormValue("nonce"),
	}
	if v := c.FormValue("force"); v != "" {
		force, err := strconv.ParseBool(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid force flag"})
		}
		req.Force = force
	}
	if v := c.FormValue("datetime"); v != "" {
		at, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid datetime"})
		}
		req.Datetime = &at
	}

	res, err := h.Engine.Redeem(c.Request().Context(), ev.ID, req)
	if err != nil {
		// Nothing persisted; the device retries and idempotency or
		// duplicate detection settles the outcome.
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	outcome := res.Reason
	if res.OK() {
		outcome = service.StatusOK
	}
	monitoring.ObserveRedemption(ev.Slug, outcome, res.Replayed)

	if res.OK() && !res.Replayed && h.Publish != nil {
		msg := checkinMessage(ev, res)
		go func() { _ = h.Publish(context.Background(), msg) }()
	}
	return c.JSON(http.StatusOK, res)
}

// Search handles GET /api/v1/:organizer/:event/search.  It returns every
// ticket whose secret or attendee name contains the query string, in
// creation order.  An empty query matches everything.
func (h *CheckinHandler) Search(c echo.Context) error {
	ev := middleware.EventFromContext(c)
	if ev == nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "event not resolved"})
	}
	monitoring.ObserveView(ev.Slug, "search")
	listing, err := h.Views.Search(c.Request().Context(), ev.ID, c.QueryParam("query"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, listing)
}

// Download handles GET /api/v1/:organizer/:event/download.  It returns the
// full ticket list of the event in creation order so devices can sync for
// offline scanning.
func (h *CheckinHandler) Download(c echo.Context) error {
	ev := middleware.EventFromContext(c)
	if ev == nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "event not resolved"})
	}
	monitoring.ObserveView(ev.Slug, "download")
	listing, err := h.Views.Download(c.Request().Context(), ev.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, listing)
}

// StatusView handles GET /api/v1/:organizer/:event/status.  It returns the
// aggregate check-in counts per product and per variation, in catalog
// order.
func (h *CheckinHandler) StatusView(c echo.Context) error {
	ev := middleware.EventFromContext(c)
	if ev == nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "event not resolved"})
	}
	monitoring.ObserveView(ev.Slug, "status")
	summary, err := h.Status.Aggregate(c.Request().Context(), ev.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, summary)
}

func checkinMessage(ev *model.Event, res *service.RedemptionResult) queue.CheckinRecordedEvent {
	msg := queue.CheckinRecordedEvent{
		CheckinUUID:   res.Checkin.UUID,
		EventSlug:     ev.Slug,
		OrganizerSlug: ev.OrganizerSlug,
		TicketSecret:  res.Ticket.Secret,
		AttendeeLabel: res.Ticket.Label(),
		OrderCode:     res.Ticket.OrderCode,
		Item:          res.Ticket.ItemName,
		Forced:        res.Checkin.Forced,
		CheckedAt:     res.Checkin.CheckedAt.UTC().Format(time.RFC3339),
	}
	if res.Ticket.VariationName != nil {
		msg.Variation = *res.Ticket.VariationName
	}
	return msg
}

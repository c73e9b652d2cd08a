package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ticket-checkin/internal/middleware"
	"github.com/iliyamo/ticket-checkin/internal/model"
	"github.com/iliyamo/ticket-checkin/internal/queue"
	"github.com/iliyamo/ticket-checkin/internal/repository"
	"github.com/iliyamo/ticket-checkin/internal/service"
	"github.com/iliyamo/ticket-checkin/internal/service/ports"
)

// Minimal in-memory directory and ledger; the handler tests run serially,
// so the ledger skips the per-ticket locking the real repository provides.

type memDirectory struct {
	tickets []model.Ticket
	items   []model.Item
}

func (d *memDirectory) Resolve(_ context.Context, eventID uint64, secret string) (*model.Ticket, error) {
	for i := range d.tickets {
		if d.tickets[i].EventID == eventID && d.tickets[i].Secret == secret {
			cp := d.tickets[i]
			return &cp, nil
		}
	}
	return nil, repository.ErrTicketNotFound
}

func (d *memDirectory) Search(_ context.Context, eventID uint64, query string) ([]model.Ticket, error) {
	q := strings.ToLower(query)
	out := make([]model.Ticket, 0)
	for _, t := range d.tickets {
		if t.EventID == eventID && strings.Contains(strings.ToLower(t.Secret), q) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (d *memDirectory) Export(_ context.Context, eventID uint64) ([]model.Ticket, error) {
	out := make([]model.Ticket, 0)
	for _, t := range d.tickets {
		if t.EventID == eventID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (d *memDirectory) Products(_ context.Context, eventID uint64) ([]model.Item, error) {
	out := make([]model.Item, 0)
	for _, it := range d.items {
		if it.EventID == eventID {
			out = append(out, it)
		}
	}
	return out, nil
}

type memLedger struct {
	events map[uint64][]model.Checkin
	nonces map[uint64]map[string]int
	nextID uint64
}

func newMemLedger() *memLedger {
	return &memLedger{events: make(map[uint64][]model.Checkin), nonces: make(map[uint64]map[string]int)}
}

func (l *memLedger) InTicketScope(_ context.Context, ticketID uint64, fn func(ports.LedgerScope) error) error {
	return fn(&memScope{l: l, ticketID: ticketID})
}

func (l *memLedger) CountFor(_ context.Context, _ uint64) (map[uint64]int, error) {
	counts := make(map[uint64]int)
	for id, evs := range l.events {
		if len(evs) > 0 {
			counts[id] = len(evs)
		}
	}
	return counts, nil
}

func (l *memLedger) LastEvent(_ context.Context, ticketID uint64) (*model.Checkin, error) {
	evs := l.events[ticketID]
	if len(evs) == 0 {
		return nil, nil
	}
	cp := evs[len(evs)-1]
	return &cp, nil
}

type memScope struct {
	l        *memLedger
	ticketID uint64
}

func (s *memScope) FindNonce(nonce string) (*model.Checkin, error) {
	if idx, ok := s.l.nonces[s.ticketID][nonce]; ok {
		cp := s.l.events[s.ticketID][idx]
		return &cp, nil
	}
	return nil, nil
}

func (s *memScope) HasAny() (bool, error) { return len(s.l.events[s.ticketID]) > 0, nil }

func (s *memScope) Last() (*model.Checkin, error) {
	evs := s.l.events[s.ticketID]
	if len(evs) == 0 {
		return nil, nil
	}
	cp := evs[len(evs)-1]
	return &cp, nil
}

func (s *memScope) Append(at time.Time, nonce string, forced bool) (*model.Checkin, error) {
	s.l.nextID++
	ck := model.Checkin{ID: s.l.nextID, UUID: "uuid-1", TicketID: s.ticketID, CheckedAt: at.UTC(), Forced: forced}
	s.l.events[s.ticketID] = append(s.l.events[s.ticketID], ck)
	if nonce != "" {
		if s.l.nonces[s.ticketID] == nil {
			s.l.nonces[s.ticketID] = make(map[string]int)
		}
		s.l.nonces[s.ticketID][nonce] = len(s.l.events[s.ticketID]) - 1
	}
	cp := ck
	return &cp, nil
}

func newTestHandler(publish func(ctx context.Context, ev queue.CheckinRecordedEvent) error) *CheckinHandler {
	red := "Red"
	varID := uint64(1)
	dir := &memDirectory{
		items: []model.Item{
			{ID: 1, EventID: 1, Name: "T-Shirt", Position: 1, Variations: []model.ItemVariation{
				{ID: 1, ItemID: 1, Name: "Red", Position: 1},
			}},
		},
		tickets: []model.Ticket{
			{
				ID: 1, EventID: 1, OrderID: 1, OrderCode: "FOO", OrderStatus: model.OrderStatusPaid,
				ItemID: 1, ItemName: "T-Shirt", VariationID: &varID, VariationName: &red,
				Secret: "1234",
			},
		},
	}
	ledger := newMemLedger()
	return NewCheckinHandler(
		service.NewRedemptionEngine(dir, ledger),
		service.NewStatusAggregator(dir, ledger),
		service.NewViews(dir, ledger),
		publish,
	)
}

func testEvent() *model.Event {
	return &model.Event{ID: 1, OrganizerSlug: "dummy", Slug: "dummy", Name: "Dummy", AccessKey: "abcdef"}
}

// redeemCtx builds an authenticated POST /redeem context around a form body.
func redeemCtx(e *echo.Echo, form url.Values) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/dummy/dummy/redeem?key=abcdef", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("organizer", "event")
	c.SetParamValues("dummy", "dummy")
	c.Set(middleware.EventContextKey, testEvent())
	return c, rec
}

func viewCtx(e *echo.Echo, path string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("organizer", "event")
	c.SetParamValues("dummy", "dummy")
	c.Set(middleware.EventContextKey, testEvent())
	return c, rec
}

func TestRedeemResponseShape(t *testing.T) {
	e := echo.New()
	h := newTestHandler(nil)

	c, rec := redeemCtx(e, url.Values{"secret": {"1234"}})
	require.NoError(t, h.Redeem(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(2), body["version"])
	assert.Equal(t, "ok", body["status"])
	_, hasReason := body["reason"]
	assert.False(t, hasReason)

	// Second scan is a business rejection, still HTTP 200.
	c, rec = redeemCtx(e, url.Values{"secret": {"1234"}})
	require.NoError(t, h.Redeem(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "already_redeemed", body["reason"])
}

func TestRedeemUnknownTicketBody(t *testing.T) {
	e := echo.New()
	h := newTestHandler(nil)

	c, rec := redeemCtx(e, url.Values{"secret": {"nope"}})
	require.NoError(t, h.Redeem(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"version":2,"status":"error","reason":"unknown_ticket"}`, rec.Body.String())
}

func TestRedeemValidation(t *testing.T) {
	e := echo.New()
	h := newTestHandler(nil)

	c, rec := redeemCtx(e, url.Values{})
	require.NoError(t, h.Redeem(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = redeemCtx(e, url.Values{"secret": {"1234"}, "force": {"maybe"}})
	require.NoError(t, h.Redeem(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = redeemCtx(e, url.Values{"secret": {"1234"}, "datetime": {"yesterday"}})
	require.NoError(t, h.Redeem(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRedeemPublishesFreshCheckins(t *testing.T) {
	e := echo.New()
	published := make(chan queue.CheckinRecordedEvent, 2)
	h := newTestHandler(func(_ context.Context, ev queue.CheckinRecordedEvent) error {
		published <- ev
		return nil
	})

	c, _ := redeemCtx(e, url.Values{"secret": {"1234"}, "nonce": {"n1"}})
	require.NoError(t, h.Redeem(c))

	select {
	case msg := <-published:
		assert.Equal(t, "dummy", msg.EventSlug)
		assert.Equal(t, "1234", msg.TicketSecret)
		assert.Equal(t, "T-Shirt", msg.AttendeeLabel)
		assert.Equal(t, "Red", msg.Variation)
		assert.False(t, msg.Forced)
	case <-time.After(time.Second):
		t.Fatal("no message published for a fresh redemption")
	}

	// A nonce replay serves the recorded outcome and publishes nothing.
	c, _ = redeemCtx(e, url.Values{"secret": {"1234"}, "nonce": {"n1"}})
	require.NoError(t, h.Redeem(c))
	select {
	case <-published:
		t.Fatal("replayed redemption must not publish")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSearchEndpoint(t *testing.T) {
	e := echo.New()
	h := newTestHandler(nil)

	c, rec := viewCtx(e, "/api/v1/dummy/dummy/search?key=abcdef&query=123")
	require.NoError(t, h.Search(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Results []map[string]any `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Results, 1)
	assert.Equal(t, "1234", body.Results[0]["secret"])
	assert.Equal(t, "FOO", body.Results[0]["order"])
	assert.Equal(t, false, body.Results[0]["redeemed"])
}

func TestDownloadEndpoint(t *testing.T) {
	e := echo.New()
	h := newTestHandler(nil)

	c, rec := viewCtx(e, "/api/v1/dummy/dummy/download?key=abcdef")
	require.NoError(t, h.Download(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Results []map[string]any `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Results, 1)
	assert.Equal(t, true, body.Results[0]["paid"])
}

func TestStatusEndpoint(t *testing.T) {
	e := echo.New()
	h := newTestHandler(nil)

	// One redemption, then the aggregate view.
	c, _ := redeemCtx(e, url.Values{"secret": {"1234"}})
	require.NoError(t, h.Redeem(c))

	c, rec := viewCtx(e, "/api/v1/dummy/dummy/status?key=abcdef")
	require.NoError(t, h.StatusView(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body service.StatusSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Checkins)
	assert.Equal(t, 1, body.Total)
	require.Len(t, body.Items, 1)
	assert.Equal(t, "T-Shirt", body.Items[0].Name)
	require.Len(t, body.Items[0].Variations, 1)
	assert.Equal(t, 1, body.Items[0].Variations[0].Checkins)
}

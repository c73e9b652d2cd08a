package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/ticket-checkin/internal/model"
	"github.com/iliyamo/ticket-checkin/internal/repository"
	"github.com/iliyamo/ticket-checkin/internal/service/ports"
)

// In-memory fakes for the directory and ledger ports. The fake ledger
// reproduces the per-ticket critical section with a mutex per ticket, so
// the concurrency properties of the engine can be exercised without a
// database.

type fakeDirectory struct {
	tickets []model.Ticket
	items   []model.Item
}

func (d *fakeDirectory) Resolve(_ context.Context, eventID uint64, secret string) (*model.Ticket, error) {
	for i := range d.tickets {
		if d.tickets[i].EventID == eventID && d.tickets[i].Secret == secret {
			cp := d.tickets[i]
			return &cp, nil
		}
	}
	return nil, repository.ErrTicketNotFound
}

func (d *fakeDirectory) Search(_ context.Context, eventID uint64, query string) ([]model.Ticket, error) {
	q := strings.ToLower(query)
	out := make([]model.Ticket, 0)
	for _, t := range d.tickets {
		if t.EventID != eventID {
			continue
		}
		name := ""
		if t.AttendeeName != nil {
			name = strings.ToLower(*t.AttendeeName)
		}
		if strings.Contains(strings.ToLower(t.Secret), q) || strings.Contains(name, q) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (d *fakeDirectory) Export(_ context.Context, eventID uint64) ([]model.Ticket, error) {
	out := make([]model.Ticket, 0)
	for _, t := range d.tickets {
		if t.EventID == eventID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (d *fakeDirectory) Products(_ context.Context, eventID uint64) ([]model.Item, error) {
	out := make([]model.Item, 0)
	for _, it := range d.items {
		if it.EventID == eventID {
			out = append(out, it)
		}
	}
	return out, nil
}

type fakeLedger struct {
	dir *fakeDirectory

	mu     sync.Mutex
	locks  map[uint64]*sync.Mutex
	events map[uint64][]model.Checkin // per ticket, append order
	nonces map[uint64]map[string]int  // ticket -> nonce -> index into events
	nextID uint64

	appendErr error // when set, Append fails and nothing is recorded
}

func newFakeLedger(dir *fakeDirectory) *fakeLedger {
	return &fakeLedger{
		dir:    dir,
		locks:  make(map[uint64]*sync.Mutex),
		events: make(map[uint64][]model.Checkin),
		nonces: make(map[uint64]map[string]int),
	}
}

func (l *fakeLedger) ticketLock(ticketID uint64) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.locks[ticketID]; !ok {
		l.locks[ticketID] = &sync.Mutex{}
	}
	return l.locks[ticketID]
}

func (l *fakeLedger) InTicketScope(_ context.Context, ticketID uint64, fn func(ports.LedgerScope) error) error {
	lock := l.ticketLock(ticketID)
	lock.Lock()
	defer lock.Unlock()
	return fn(&fakeScope{l: l, ticketID: ticketID})
}

func (l *fakeLedger) CountFor(_ context.Context, eventID uint64) (map[uint64]int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	counts := make(map[uint64]int)
	for _, t := range l.dir.tickets {
		if t.EventID == eventID && len(l.events[t.ID]) > 0 {
			counts[t.ID] = len(l.events[t.ID])
		}
	}
	return counts, nil
}

func (l *fakeLedger) LastEvent(_ context.Context, ticketID uint64) (*model.Checkin, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	evs := l.events[ticketID]
	if len(evs) == 0 {
		return nil, nil
	}
	cp := evs[len(evs)-1]
	return &cp, nil
}

type fakeScope struct {
	l        *fakeLedger
	ticketID uint64
}

func (s *fakeScope) FindNonce(nonce string) (*model.Checkin, error) {
	s.l.mu.Lock()
	defer s.l.mu.Unlock()
	if byNonce, ok := s.l.nonces[s.ticketID]; ok {
		if idx, ok := byNonce[nonce]; ok {
			cp := s.l.events[s.ticketID][idx]
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeScope) HasAny() (bool, error) {
	s.l.mu.Lock()
	defer s.l.mu.Unlock()
	return len(s.l.events[s.ticketID]) > 0, nil
}

func (s *fakeScope) Last() (*model.Checkin, error) {
	s.l.mu.Lock()
	defer s.l.mu.Unlock()
	evs := s.l.events[s.ticketID]
	if len(evs) == 0 {
		return nil, nil
	}
	cp := evs[len(evs)-1]
	return &cp, nil
}

func (s *fakeScope) Append(at time.Time, nonce string, forced bool) (*model.Checkin, error) {
	s.l.mu.Lock()
	defer s.l.mu.Unlock()
	if s.l.appendErr != nil {
		return nil, s.l.appendErr
	}
	s.l.nextID++
	ck := model.Checkin{
		ID:        s.l.nextID,
		UUID:      fmt.Sprintf("ck-%d", s.l.nextID),
		TicketID:  s.ticketID,
		CheckedAt: at.UTC(),
		Forced:    forced,
	}
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

func (l *fakeLedger) eventCount(ticketID uint64) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events[ticketID])
}

// testEventID scopes the shared fixture.
const testEventID uint64 = 1

func strPtr(s string) *string { return &s }
func u64Ptr(v uint64) *uint64 { return &v }

// newFixture mirrors a small event catalog: a T-Shirt with Red and Blue
// variations (secret "1234" is a Red one, paid) and a plain Ticket item
// (secret "5678910", attendee Peter, paid).
func newFixture() (*fakeDirectory, *fakeLedger) {
	dir := &fakeDirectory{
		items: []model.Item{
			{
				ID: 1, EventID: testEventID, Name: "T-Shirt", Position: 1,
				Variations: []model.ItemVariation{
					{ID: 1, ItemID: 1, Name: "Red", Position: 1},
					{ID: 2, ItemID: 1, Name: "Blue", Position: 2},
				},
			},
			{ID: 2, EventID: testEventID, Name: "Ticket", Admission: true, Position: 2, Variations: []model.ItemVariation{}},
		},
		tickets: []model.Ticket{
			{
				ID: 1, EventID: testEventID, OrderID: 1, OrderCode: "FOO", OrderStatus: model.OrderStatusPaid,
				ItemID: 1, ItemName: "T-Shirt", VariationID: u64Ptr(1), VariationName: strPtr("Red"),
				Secret: "1234",
			},
			{
				ID: 2, EventID: testEventID, OrderID: 1, OrderCode: "FOO", OrderStatus: model.OrderStatusPaid,
				ItemID: 2, ItemName: "Ticket", ItemAdmission: true, AttendeeName: strPtr("Peter"),
				Secret: "5678910",
			},
		},
	}
	return dir, newFakeLedger(dir)
}

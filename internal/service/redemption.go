package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/iliyamo/ticket-checkin/internal/model"
	"github.com/iliyamo/ticket-checkin/internal/repository"
	"github.com/iliyamo/ticket-checkin/internal/service/ports"
)

// APIVersion is the protocol version carried in every redemption response.
// It is a fixed contract between scanning devices and this service and is
// only incremented on breaking changes to the response shape.
const APIVersion = 2

// Redemption statuses and rejection reasons.  Rejections are expected
// business outcomes, surfaced inside a 200 response body; transport and
// storage faults are reported separately and never use these values.
const (
	StatusOK    = "ok"
	StatusError = "error"

	ReasonUnknownTicket   = "unknown_ticket"
	ReasonUnpaid          = "unpaid"
	ReasonAlreadyRedeemed = "already_redeemed"
)

// RedeemRequest carries the client-controlled inputs of one redemption
// attempt.  Nonce is the optional idempotency token: resubmitting the same
// (secret, nonce) pair is always safe and yields the first answer again.
// Force is the explicit override that admits a ticket despite an existing
// checkin.  Datetime lets a device assert the admission time (e.g. offline
// scans uploaded later); when nil the server clock is used.
type RedeemRequest struct {
	Secret   string
	Nonce    string
	Force    bool
	Datetime *time.Time
}

// RedemptionResult is the outcome of one redemption attempt.  Version,
// Status and Reason form the wire response; Ticket and Checkin carry the
// resolved entities for logging, metrics and event publishing.  Replayed is
// true when the result was served from an idempotency record instead of a
// fresh ledger write.
type RedemptionResult struct {
	Version int    `json:"version"`
	Status  string `json:"status"`
	Reason  string `json:"reason,omitempty"`

	Ticket   *model.Ticket  `json:"-"`
	Checkin  *model.Checkin `json:"-"`
	Replayed bool           `json:"-"`
}

// OK reports whether the attempt was accepted.
func (r *RedemptionResult) OK() bool { return r.Status == StatusOK }

// RedemptionEngine decides whether a presented secret is admitted and
// records accepted admissions in the check-in ledger.  The decision order
// is fixed: unknown secret, then payment state, then idempotency replay,
// then duplicate detection with the force override.  Token replay and
// duplicate detection are deliberately independent guards: a device
// retransmitting the exact same request must get the same answer even
// after another device legitimately redeemed the ticket in between, while
// a tokenless second attempt must be rejected unless forced.
type RedemptionEngine struct {
	directory ports.Directory
	ledger    ports.Ledger
	now       func() time.Time
}

// NewRedemptionEngine constructs an engine over a ticket directory and a
// check-in ledger.
func NewRedemptionEngine(directory ports.Directory, ledger ports.Ledger) *RedemptionEngine {
	if directory == nil || ledger == nil {
		panic("nil dependency passed to NewRedemptionEngine")
	}
	return &RedemptionEngine{directory: directory, ledger: ledger, now: time.Now}
}

// Redeem runs one redemption attempt for the event.  Business rejections
// come back as a RedemptionResult with Status "error" and a nil error;
// a non-nil error means a storage fault, in which case nothing was
// persisted and the caller may retry safely.
func (e *RedemptionEngine) Redeem(ctx context.Context, eventID uint64, req RedeemRequest) (*RedemptionResult, error) {
	ticket, err := e.directory.Resolve(ctx, eventID, req.Secret)
	if errors.Is(err, repository.ErrTicketNotFound) {
		return reject(ReasonUnknownTicket, nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve secret: %w", err)
	}

	// Payment state gates everything, including forced attempts. Force only
	// overrides an existing checkin, never an unpaid order.
	if !ticket.Paid() {
		return reject(ReasonUnpaid, ticket), nil
	}

	var res *RedemptionResult
	err = e.ledger.InTicketScope(ctx, ticket.ID, func(s ports.LedgerScope) error {
		// Replay guard: an already-seen token returns the recorded outcome
		// verbatim, regardless of what happened to the ticket since.
		if req.Nonce != "" {
			prev, err := s.FindNonce(req.Nonce)
			if err != nil {
				return err
			}
			if prev != nil {
				res = &RedemptionResult{
					Version: APIVersion, Status: StatusOK,
					Ticket: ticket, Checkin: prev, Replayed: true,
				}
				return nil
			}
		}

		redeemed, err := s.HasAny()
		if err != nil {
			return err
		}
		if redeemed && !req.Force {
			if last, err := s.Last(); err == nil && last != nil {
				log.Printf("redemption: ticket %d (%s) already checked in at %s",
					ticket.ID, ticket.Secret, last.CheckedAt.Format(time.RFC3339))
			}
			res = reject(ReasonAlreadyRedeemed, ticket)
			return nil
		}

		at := e.now()
		if req.Datetime != nil {
			at = *req.Datetime
		}
		// The ledger stores whole seconds; truncate up front so the checkin
		// handed back here equals what later reads return.
		at = at.UTC().Truncate(time.Second)
		ck, err := s.Append(at, req.Nonce, redeemed && req.Force)
		if err != nil {
			return err
		}
		res = &RedemptionResult{Version: APIVersion, Status: StatusOK, Ticket: ticket, Checkin: ck}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("checkin ledger: %w", err)
	}
	return res, nil
}

func reject(reason string, ticket *model.Ticket) *RedemptionResult {
	return &RedemptionResult{Version: APIVersion, Status: StatusError, Reason: reason, Ticket: ticket}
}

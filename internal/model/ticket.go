package model

// Order payment states.  A ticket may only be redeemed while its order is
// in StatusPaid; every other state yields the "unpaid" rejection.
const (
	OrderStatusPaid     = "PAID"
	OrderStatusPending  = "PENDING"
	OrderStatusCanceled = "CANCELED"
	OrderStatusRefunded = "REFUNDED"
	OrderStatusExpired  = "EXPIRED"
)

// Item is a catalog product that tickets are sold for (e.g. "T-Shirt",
// "Ticket").  The Admission flag marks products that grant entry; it only
// affects how aggregate reports group counts, never the redemption
// decision.  Position carries the catalog definition order so reports stay
// deterministic.
type Item struct {
	ID         uint64          // items.id
	EventID    uint64          // items.event_id
	Name       string          // items.name
	Admission  bool            // items.admission
	Position   uint32          // items.position (catalog order)
	Variations []ItemVariation // variations in catalog order, may be empty
}

// ItemVariation is a variant of an Item, such as a color or a size.  A
// ticket references a variation only when its item has variations.
type ItemVariation struct {
	ID       uint64 // item_variations.id
	ItemID   uint64 // item_variations.item_id
	Name     string // item_variations.name
	Position uint32 // item_variations.position (catalog order)
}

// Ticket is a single admission unit (conceptually an order position).  It
// is identified by an opaque secret, unique within its event, and belongs
// to exactly one order, one item and optionally one variation.  Whether the
// ticket may be redeemed is derived from the order's payment status alone;
// nothing redemption-related is stored on the ticket itself.
//
// Fields:
//  ID            – primary key identifier; creation order for listings.
//  EventID       – event the ticket belongs to.
//  OrderID       – order the ticket was sold under.
//  OrderCode     – human-readable order code, exposed in exports.
//  OrderStatus   – payment state of the order (see OrderStatus* constants).
//  ItemID        – item the ticket is for.
//  ItemName      – item display name, also the attendee label fallback.
//  ItemAdmission – admission flag copied from the item.
//  VariationID   – optional variation, nil when the item has none.
//  VariationName – display name of the variation, nil with VariationID.
//  AttendeeName  – optional attendee display name.
//  Secret        – opaque redemption secret, unique per event.
type Ticket struct {
	ID            uint64  // tickets.id
	EventID       uint64  // tickets.event_id
	OrderID       uint64  // tickets.order_id
	OrderCode     string  // orders.code
	OrderStatus   string  // orders.status
	ItemID        uint64  // tickets.item_id
	ItemName      string  // items.name
	ItemAdmission bool    // items.admission
	VariationID   *uint64 // tickets.variation_id (nullable)
	VariationName *string // item_variations.name (nullable)
	AttendeeName  *string // tickets.attendee_name (nullable)
	Secret        string  // tickets.secret
}

// Paid reports whether the ticket's order is in the paid state.
func (t *Ticket) Paid() bool { return t.OrderStatus == OrderStatusPaid }

// Label returns the attendee display name, falling back to the item name
// when no attendee name was recorded on the ticket.
func (t *Ticket) Label() string {
	if t.AttendeeName != nil && *t.AttendeeName != "" {
		return *t.AttendeeName
	}
	return t.ItemName
}

// Package payload turns the many QR and backend sale layouts into one RedemptionSession.
package payload

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category buckets redeemable items.
type Category string

const (
	CategoryFood     Category = "food"
	CategoryActivity Category = "activity"
)

// Valid reports whether c names a known bucket.
func (c Category) Valid() bool {
	return c == CategoryFood || c == CategoryActivity
}

// AttendeeShape records which attendee layout the payload used.
type AttendeeShape string

const (
	ShapeAttendees   AttendeeShape = "attendees"
	ShapeEntradas    AttendeeShape = "entradas"
	ShapeTicketCount AttendeeShape = "ticket-count"
	ShapeNone        AttendeeShape = "none"
)

// RedemptionSession is the canonical view of one scanned purchase.
type RedemptionSession struct {
	SaleIdentifier string        `json:"saleIdentifier"`
	Event          EventInfo     `json:"event"`
	Attendees      []Attendee    `json:"attendees"`
	Food           []Redeemable  `json:"food"`
	Activities     []Redeemable  `json:"activities"`
	Shape          AttendeeShape `json:"shape"`

	// Limited is set when only the QR identifiers were available.
	Limited bool   `json:"limited,omitempty"`
	Notice  string `json:"notice,omitempty"`
}

// EventInfo identifies the event the purchase belongs to.
type EventInfo struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	Date string `json:"date,omitempty"`
}

// Attendee is one ticket holder. Index is unique within a session.
type Attendee struct {
	Index       int        `json:"index"`
	FullName    string     `json:"fullName"`
	TicketType  string     `json:"ticketType,omitempty"`
	CheckedIn   bool       `json:"checkedIn"`
	CheckedInAt *time.Time `json:"checkedInAt,omitempty"`
}

// Redeemable is a purchased line item.
// AvailableQuantity == PurchasedQuantity - RedeemedQuantity always holds.
type Redeemable struct {
	ID                string          `json:"id"`
	Label             string          `json:"label"`
	Category          Category        `json:"category"`
	UnitPrice         decimal.Decimal `json:"unitPrice"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	PurchasedQuantity int             `json:"purchasedQuantity"`
	RedeemedQuantity  int             `json:"redeemedQuantity"`
	AvailableQuantity int             `json:"availableQuantity"`
}

// Items returns the redeemables of one bucket.
func (s *RedemptionSession) Items(c Category) []Redeemable {
	switch c {
	case CategoryFood:
		return s.Food
	case CategoryActivity:
		return s.Activities
	}
	return nil
}

// Redeemable looks up an item by bucket and id.
func (s *RedemptionSession) Redeemable(c Category, id string) (Redeemable, bool) {
	for _, item := range s.Items(c) {
		if item.ID == id {
			return item, true
		}
	}
	return Redeemable{}, false
}

// Attendee looks up an attendee by index.
func (s *RedemptionSession) Attendee(index int) (Attendee, bool) {
	for _, a := range s.Attendees {
		if a.Index == index {
			return a, true
		}
	}
	return Attendee{}, false
}

// HasContent reports whether any attendee, redeemable or event data was recognised.
func (s *RedemptionSession) HasContent() bool {
	return len(s.Attendees) > 0 || len(s.Food) > 0 || len(s.Activities) > 0 ||
		s.Event != (EventInfo{})
}

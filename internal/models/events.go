package models

import "time"

// NATS Event Types
const (
	EventSaleScanned        = "sale.scanned"
	EventAttendeesCheckedIn = "attendee.checked_in"
	EventProductsRedeemed   = "products.redeemed"
	EventActivitiesRedeemed = "activities.redeemed"
)

// ValidationSubjects lists every subject the journal consumers follow
var ValidationSubjects = []string{
	EventSaleScanned,
	EventAttendeesCheckedIn,
	EventProductsRedeemed,
	EventActivitiesRedeemed,
}

// SaleScannedEvent represents a QR scan that opened a validation session
type SaleScannedEvent struct {
	ID         string    `json:"id"`
	SaleNumber string    `json:"sale_number"`
	EventID    string    `json:"event_id"`
	Attendees  int       `json:"attendees"`
	Limited    bool      `json:"limited"`
	Timestamp  time.Time `json:"timestamp"`
}

// AttendeesCheckedInEvent represents a confirmed check-in call
type AttendeesCheckedInEvent struct {
	ID         string    `json:"id"`
	SaleNumber string    `json:"sale_number"`
	EventID    string    `json:"event_id"`
	Requested  []int     `json:"requested"`
	Applied    []int     `json:"applied"`
	Path       string    `json:"path"`
	Timestamp  time.Time `json:"timestamp"`
}

// ItemsRedeemedEvent represents a confirmed product or activity redemption
type ItemsRedeemedEvent struct {
	ID         string           `json:"id"`
	SaleNumber string           `json:"sale_number"`
	EventID    string           `json:"event_id"`
	Category   string           `json:"category"`
	Lines      []RedemptionLine `json:"lines"`
	Path       string           `json:"path"`
	Timestamp  time.Time        `json:"timestamp"`
}

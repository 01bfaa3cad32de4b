package models

import (
	"encoding/json"
	"time"
)

// JournalEntry represents one validation operation recorded in the journal
type JournalEntry struct {
	ID         int64           `json:"id" db:"id"`
	MessageID  string          `json:"message_id" db:"message_id"`
	Operation  string          `json:"operation" db:"operation"`
	SaleNumber string          `json:"sale_number" db:"sale_number"`
	EventID    string          `json:"event_id" db:"event_id"`
	Path       *string         `json:"path" db:"path"`
	Payload    json.RawMessage `json:"payload" db:"payload"`
	OccurredAt time.Time       `json:"occurred_at" db:"occurred_at"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

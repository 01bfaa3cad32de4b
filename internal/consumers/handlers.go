package consumers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/stan.go"

	"ticketera/internal/metrics"
	"ticketera/internal/models"
)

// JournalWriter stores journal entries; Append reports false for a duplicate.
type JournalWriter interface {
	Append(ctx context.Context, entry *models.JournalEntry) (bool, error)
}

type Handlers struct {
	journal JournalWriter
	metrics *metrics.Metrics
}

func NewHandlers(journal JournalWriter, m *metrics.Metrics) *Handlers {
	return &Handlers{journal: journal, metrics: m}
}

// eventHeader holds the fields every validation event carries.
type eventHeader struct {
	ID         string    `json:"id"`
	SaleNumber string    `json:"sale_number"`
	EventID    string    `json:"event_id"`
	Path       string    `json:"path"`
	Timestamp  time.Time `json:"timestamp"`
}

// For returns the stan handler journaling messages of subject.
// A message is acked only once it is stored; failures are redelivered.
func (h *Handlers) For(subject string) stan.MsgHandler {
	return func(m *stan.Msg) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := h.Record(ctx, subject, m.Data, m.Sequence); err != nil {
			slog.Error("Failed to journal validation event",
				"subject", subject, "sequence", m.Sequence, "error", err)
			if !isPoison(err) {
				return
			}
		}

		if err := m.Ack(); err != nil {
			slog.Error("Failed to ack message", "subject", subject, "sequence", m.Sequence, "error", err)
		}
	}
}

type poisonError struct{ err error }

func (e *poisonError) Error() string { return e.err.Error() }
func (e *poisonError) Unwrap() error { return e.err }

// isPoison reports messages that can never be stored and must not be redelivered.
func isPoison(err error) bool {
	var poison *poisonError
	return errors.As(err, &poison)
}

// Record appends one validation event to the journal.
func (h *Handlers) Record(ctx context.Context, subject string, data []byte, sequence uint64) error {
	var header eventHeader
	if err := json.Unmarshal(data, &header); err != nil {
		h.metrics.JournalWrite(subject, "invalid")
		return &poisonError{fmt.Errorf("failed to unmarshal %s event: %w", subject, err)}
	}
	if header.SaleNumber == "" {
		h.metrics.JournalWrite(subject, "invalid")
		return &poisonError{fmt.Errorf("%s event without sale number", subject)}
	}

	entry := &models.JournalEntry{
		MessageID:  header.ID,
		Operation:  subject,
		SaleNumber: header.SaleNumber,
		EventID:    header.EventID,
		Payload:    json.RawMessage(data),
		OccurredAt: header.Timestamp,
	}
	if entry.MessageID == "" {
		entry.MessageID = fmt.Sprintf("%s-%d", subject, sequence)
	}
	if header.Path != "" {
		entry.Path = &header.Path
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}

	inserted, err := h.journal.Append(ctx, entry)
	if err != nil {
		h.metrics.JournalWrite(subject, "error")
		return err
	}

	if !inserted {
		h.metrics.JournalWrite(subject, "duplicate")
		slog.Info("Skipped redelivered validation event", "subject", subject, "message_id", entry.MessageID)
		return nil
	}

	h.metrics.JournalWrite(subject, "stored")
	slog.Info("Journaled validation event",
		"subject", subject, "sale_number", entry.SaleNumber, "event_id", entry.EventID)
	return nil
}

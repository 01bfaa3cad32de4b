package database

import (
	"context"
	"fmt"
	"log/slog"
)

func (db *DB) RunMigrations(ctx context.Context) error {
	slog.Info("Running database migrations...")

	migrations := []string{
		createValidationJournalTable,
		createJournalSaleIndex,
		createJournalOccurredAtIndex,
	}

	for i, migration := range migrations {
		slog.Info("Running migration", "step", i+1)
		if _, err := db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	slog.Info("All migrations completed successfully")
	return nil
}

const createValidationJournalTable = `
CREATE TABLE IF NOT EXISTS validation_journal (
    id BIGSERIAL PRIMARY KEY,
    message_id VARCHAR(64) NOT NULL UNIQUE,
    operation VARCHAR(50) NOT NULL,
    sale_number VARCHAR(100) NOT NULL,
    event_id VARCHAR(100) NOT NULL DEFAULT '',
    path VARCHAR(30),
    payload JSONB NOT NULL,
    occurred_at TIMESTAMPTZ NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const createJournalSaleIndex = `
CREATE INDEX IF NOT EXISTS idx_validation_journal_sale
    ON validation_journal (sale_number, occurred_at);`

const createJournalOccurredAtIndex = `
CREATE INDEX IF NOT EXISTS idx_validation_journal_event_occurred_at
    ON validation_journal (event_id, occurred_at DESC);`

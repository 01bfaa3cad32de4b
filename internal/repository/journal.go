package repository

import (
	"context"
	"database/sql"
	"fmt"

	"ticketera/internal/database"
	"ticketera/internal/models"
)

type JournalRepository struct {
	db *database.DB
}

func NewJournalRepository(db *database.DB) *JournalRepository {
	return &JournalRepository{db: db}
}

// Append stores entry once per message id. It reports false for a redelivered message.
func (r *JournalRepository) Append(ctx context.Context, entry *models.JournalEntry) (bool, error) {
	query := `
		INSERT INTO validation_journal (message_id, operation, sale_number, event_id, path, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (message_id) DO NOTHING`

	var path sql.NullString
	if entry.Path != nil {
		path = sql.NullString{String: *entry.Path, Valid: true}
	}

	result, err := r.db.ExecWithRetry(ctx, query,
		entry.MessageID,
		entry.Operation,
		entry.SaleNumber,
		entry.EventID,
		path,
		[]byte(entry.Payload),
		entry.OccurredAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to append journal entry: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return rows == 1, nil
}

// ListBySale returns the entries of one sale, oldest first.
func (r *JournalRepository) ListBySale(ctx context.Context, saleNumber string, limit int) ([]models.JournalEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, message_id, operation, sale_number, event_id, path, payload, occurred_at, created_at
		FROM validation_journal
		WHERE sale_number = $1
		ORDER BY occurred_at, id
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, saleNumber, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var entries []models.JournalEntry
	for rows.Next() {
		var entry models.JournalEntry
		var path sql.NullString
		var payload []byte

		if err := rows.Scan(
			&entry.ID,
			&entry.MessageID,
			&entry.Operation,
			&entry.SaleNumber,
			&entry.EventID,
			&path,
			&payload,
			&entry.OccurredAt,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}

		if path.Valid {
			entry.Path = &path.String
		}
		entry.Payload = payload
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

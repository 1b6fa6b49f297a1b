package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"pension/internal/audit"
	"pension/internal/platform/postgres"
	id "pension/pkg/domain"
	"pension/pkg/platform/paging"
	"pension/pkg/platform/tx"
)

// PostgresStore persists history entries in the transaction_history table.
// Writes join the transaction carried in ctx.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, entry *audit.TransactionHistory) error {
	query := `
		INSERT INTO transaction_history (id, entity_id, entity_type, change_type, change_details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING seq
	`
	err := tx.Executor(ctx, s.db).QueryRowContext(ctx, query,
		uuid.UUID(entry.ID),
		entry.EntityID,
		string(entry.EntityType),
		string(entry.ChangeType),
		entry.ChangeDetails,
		entry.CreatedAt,
	).Scan(&entry.Seq)
	if err != nil {
		return fmt.Errorf("insert transaction history: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByEntity(ctx context.Context, entityID uuid.UUID, page paging.Page) ([]*audit.TransactionHistory, error) {
	query := `
		SELECT seq, id, entity_id, entity_type, change_type, change_details, created_at
		FROM transaction_history
		WHERE entity_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := tx.Executor(ctx, s.db).QueryContext(ctx, query, entityID, postgres.Limit(page), page.Offset)
	if err != nil {
		return nil, fmt.Errorf("query transaction history: %w", err)
	}
	defer rows.Close()

	var entries []*audit.TransactionHistory
	for rows.Next() {
		var (
			h          audit.TransactionHistory
			historyID  uuid.UUID
			entityType string
			changeType string
		)
		if err := rows.Scan(&h.Seq, &historyID, &h.EntityID, &entityType, &changeType, &h.ChangeDetails, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction history: %w", err)
		}
		h.ID = id.HistoryID(historyID)
		h.EntityType = audit.EntityType(entityType)
		h.ChangeType = audit.ChangeType(changeType)
		entries = append(entries, &h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction history: %w", err)
	}
	return entries, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"pension/internal/benefit/models"
	"pension/internal/platform/postgres"
	id "pension/pkg/domain"
	"pension/pkg/platform/paging"
	"pension/pkg/platform/sentinel"
	"pension/pkg/platform/tx"
)

const selectColumns = `id, member_id, benefit_type, amount, eligibility_status, calculation_date, updated_at`

// PostgresStore persists benefits in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, b *models.Benefit) error {
	query := `
		INSERT INTO benefits (id, member_id, benefit_type, amount, eligibility_status, calculation_date, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := tx.Executor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(b.ID),
		uuid.UUID(b.MemberID),
		b.BenefitType,
		b.Amount,
		string(b.EligibilityStatus),
		b.CalculationDate,
		b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert benefit: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByMember(ctx context.Context, memberID id.MemberID, page paging.Page) ([]*models.Benefit, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM benefits
		WHERE member_id = $1
		ORDER BY calculation_date DESC, id
		LIMIT $2 OFFSET $3
	`
	rows, err := tx.Executor(ctx, s.db).QueryContext(ctx, query, uuid.UUID(memberID), postgres.Limit(page), page.Offset)
	if err != nil {
		return nil, fmt.Errorf("list benefits: %w", err)
	}
	defer rows.Close()

	var out []*models.Benefit
	for rows.Next() {
		b, err := scanBenefit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan benefit: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate benefits: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) ListIDs(ctx context.Context) ([]id.BenefitID, error) {
	rows, err := tx.Executor(ctx, s.db).QueryContext(ctx, `SELECT id FROM benefits ORDER BY calculation_date, id`)
	if err != nil {
		return nil, fmt.Errorf("list benefit ids: %w", err)
	}
	defer rows.Close()

	var ids []id.BenefitID
	for rows.Next() {
		var raw uuid.UUID
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan benefit id: %w", err)
		}
		ids = append(ids, id.BenefitID(raw))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate benefit ids: %w", err)
	}
	return ids, nil
}

func (s *PostgresStore) Execute(ctx context.Context, benefitID id.BenefitID, mutate func(*models.Benefit)) (*models.Benefit, error) {
	exec := tx.Executor(ctx, s.db)
	query := `SELECT ` + selectColumns + ` FROM benefits WHERE id = $1 FOR UPDATE`
	b, err := scanBenefit(exec.QueryRowContext(ctx, query, uuid.UUID(benefitID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("lock benefit: %w", err)
	}
	mutate(b)

	_, err = exec.ExecContext(ctx,
		`UPDATE benefits SET amount = $2, eligibility_status = $3, updated_at = $4 WHERE id = $1`,
		uuid.UUID(b.ID), b.Amount, string(b.EligibilityStatus), b.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update benefit: %w", err)
	}
	return b, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBenefit(row rowScanner) (*models.Benefit, error) {
	var (
		b         models.Benefit
		benefitID uuid.UUID
		memberID  uuid.UUID
		status    string
	)
	if err := row.Scan(&benefitID, &memberID, &b.BenefitType, &b.Amount, &status, &b.CalculationDate, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.ID = id.BenefitID(benefitID)
	b.MemberID = id.MemberID(memberID)
	b.EligibilityStatus = models.EligibilityStatus(status)
	return &b, nil
}

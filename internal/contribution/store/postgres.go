package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pension/internal/contribution/models"
	"pension/internal/platform/postgres"
	id "pension/pkg/domain"
	"pension/pkg/platform/paging"
	"pension/pkg/platform/sentinel"
	"pension/pkg/platform/tx"
)

const monthlyPeriodConstraint = "contributions_monthly_period_uq"

const selectColumns = `id, member_id, contribution_type, amount, contribution_date, reference_number, created_at, updated_at`

// PostgresStore persists contributions in PostgreSQL. The partial unique
// index contributions_monthly_period_uq enforces one Monthly contribution
// per member and month.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateIfPeriodAvailable(ctx context.Context, c *models.Contribution) error {
	period := c.Period()
	query := `
		INSERT INTO contributions (
			id, member_id, contribution_type, amount, contribution_date,
			period_year, period_month, reference_number, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := tx.Executor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(c.ID),
		uuid.UUID(c.MemberID),
		string(c.Type),
		c.Amount,
		c.ContributionDate,
		period.Year,
		int(period.Month),
		c.ReferenceNumber,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err, monthlyPeriodConstraint) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert contribution: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, contributionID id.ContributionID) (*models.Contribution, error) {
	query := `SELECT ` + selectColumns + ` FROM contributions WHERE id = $1`
	c, err := scanContribution(tx.Executor(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(contributionID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find contribution by id: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ListByMember(ctx context.Context, memberID id.MemberID, page paging.Page) ([]*models.Contribution, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM contributions
		WHERE member_id = $1
		ORDER BY contribution_date DESC, created_at DESC, id
		LIMIT $2 OFFSET $3
	`
	rows, err := tx.Executor(ctx, s.db).QueryContext(ctx, query, uuid.UUID(memberID), postgres.Limit(page), page.Offset)
	if err != nil {
		return nil, fmt.Errorf("list contributions: %w", err)
	}
	defer rows.Close()

	var out []*models.Contribution
	for rows.Next() {
		c, err := scanContribution(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contribution: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contributions: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) SumByMember(ctx context.Context, memberID id.MemberID) (decimal.Decimal, error) {
	var total decimal.Decimal
	query := `SELECT COALESCE(SUM(amount), 0) FROM contributions WHERE member_id = $1`
	if err := tx.Executor(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(memberID)).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("sum contributions: %w", err)
	}
	return total, nil
}

func (s *PostgresStore) CountByMember(ctx context.Context, memberID id.MemberID) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM contributions WHERE member_id = $1`
	if err := tx.Executor(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(memberID)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count contributions: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) ListIDs(ctx context.Context) ([]id.ContributionID, error) {
	rows, err := tx.Executor(ctx, s.db).QueryContext(ctx, `SELECT id FROM contributions ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list contribution ids: %w", err)
	}
	defer rows.Close()

	var ids []id.ContributionID
	for rows.Next() {
		var raw uuid.UUID
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan contribution id: %w", err)
		}
		ids = append(ids, id.ContributionID(raw))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contribution ids: %w", err)
	}
	return ids, nil
}

func (s *PostgresStore) Summarize(ctx context.Context) (models.Summary, error) {
	var summary models.Summary
	query := `SELECT COUNT(*), COALESCE(SUM(amount), 0), COUNT(DISTINCT member_id) FROM contributions`
	err := tx.Executor(ctx, s.db).QueryRowContext(ctx, query).Scan(&summary.Count, &summary.Total, &summary.Members)
	if err != nil {
		return models.Summary{}, fmt.Errorf("summarize contributions: %w", err)
	}
	return summary, nil
}

// Execute reads the row with SELECT ... FOR UPDATE, so concurrent accruals
// of the same contribution serialize on the row lock.
func (s *PostgresStore) Execute(ctx context.Context, contributionID id.ContributionID, validate func(*models.Contribution) error, mutate func(*models.Contribution)) (*models.Contribution, error) {
	exec := tx.Executor(ctx, s.db)
	query := `SELECT ` + selectColumns + ` FROM contributions WHERE id = $1 FOR UPDATE`
	c, err := scanContribution(exec.QueryRowContext(ctx, query, uuid.UUID(contributionID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("lock contribution: %w", err)
	}
	if err := validate(c); err != nil {
		return nil, err
	}
	mutate(c)

	_, err = exec.ExecContext(ctx,
		`UPDATE contributions SET amount = $2, updated_at = $3 WHERE id = $1`,
		uuid.UUID(c.ID), c.Amount, c.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update contribution: %w", err)
	}
	return c, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContribution(row rowScanner) (*models.Contribution, error) {
	var (
		c                models.Contribution
		contributionID   uuid.UUID
		memberID         uuid.UUID
		contributionType string
	)
	err := row.Scan(&contributionID, &memberID, &contributionType, &c.Amount,
		&c.ContributionDate, &c.ReferenceNumber, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.ID = id.ContributionID(contributionID)
	c.MemberID = id.MemberID(memberID)
	c.Type = models.Type(contributionType)
	return &c, nil
}

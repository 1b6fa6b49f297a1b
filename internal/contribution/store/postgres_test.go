package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pension/internal/contribution/models"
	id "pension/pkg/domain"
	"pension/pkg/platform/sentinel"
	"pension/pkg/platform/tx"
)

var columns = []string{"id", "member_id", "contribution_type", "amount", "contribution_date", "reference_number", "created_at", "updated_at"}

func newContribution(t *testing.T) *models.Contribution {
	t.Helper()
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	c, err := models.NewContribution(id.NewContributionID(), id.NewMemberID(), models.TypeMonthly,
		decimal.RequireFromString("120000"), date, "REF1", date)
	require.NoError(t, err)
	return c
}

func TestPostgresCreateIfPeriodAvailable(t *testing.T) {
	t.Run("inserts with the derived period", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		c := newContribution(t)

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO contributions")).
			WithArgs(uuid.UUID(c.ID), uuid.UUID(c.MemberID), "Monthly", c.Amount, c.ContributionDate,
				2024, 1, "REF1", c.CreatedAt, c.UpdatedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, NewPostgres(db).CreateIfPeriodAvailable(context.Background(), c))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("periodic unique violation is ErrAlreadyUsed", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO contributions")).
			WillReturnError(&pq.Error{Code: "23505", Constraint: monthlyPeriodConstraint})

		err = NewPostgres(db).CreateIfPeriodAvailable(context.Background(), newContribution(t))
		assert.ErrorIs(t, err, sentinel.ErrAlreadyUsed)
	})

	t.Run("other unique violations are not duplicates", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO contributions")).
			WillReturnError(&pq.Error{Code: "23505", Constraint: "contributions_pkey"})

		err = NewPostgres(db).CreateIfPeriodAvailable(context.Background(), newContribution(t))
		require.Error(t, err)
		assert.False(t, errors.Is(err, sentinel.ErrAlreadyUsed))
	})
}

func TestPostgresExecute(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	c := newContribution(t)
	now := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM contributions WHERE id = $1 FOR UPDATE")).
		WithArgs(uuid.UUID(c.ID)).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			uuid.UUID(c.ID), uuid.UUID(c.MemberID), "Monthly", "120000.00", c.ContributionDate, "REF1", c.CreatedAt, c.UpdatedAt))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE contributions SET amount = $2, updated_at = $3 WHERE id = $1")).
		WithArgs(uuid.UUID(c.ID), decimal.RequireFromString("126000"), now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	store := NewPostgres(db)
	var updated *models.Contribution
	err = tx.NewSQLRunner(db, 0).RunInTx(context.Background(), func(ctx context.Context) error {
		var err error
		updated, err = store.Execute(ctx, c.ID,
			func(*models.Contribution) error { return nil },
			func(c *models.Contribution) { c.ApplyInterest(c.Interest(decimal.RequireFromString("0.05")), now) },
		)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "126000.00", updated.Amount.StringFixed(2))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresExecuteNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).WillReturnRows(sqlmock.NewRows(columns))

	_, err = NewPostgres(db).Execute(context.Background(), id.NewContributionID(),
		func(*models.Contribution) error { return nil }, func(*models.Contribution) {})
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestPostgresSummarize(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("COUNT(DISTINCT member_id)")).
		WillReturnRows(sqlmock.NewRows([]string{"count", "sum", "members"}).AddRow(3, "300.50", 2))

	summary, err := NewPostgres(db).Summarize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Count)
	assert.Equal(t, "300.50", summary.Total.StringFixed(2))
	assert.Equal(t, 2, summary.Members)
}

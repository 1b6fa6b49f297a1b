package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pension/internal/member/models"
	"pension/internal/platform/postgres"
	id "pension/pkg/domain"
	"pension/pkg/platform/paging"
	"pension/pkg/platform/sentinel"
	"pension/pkg/platform/tx"
)

const (
	selectColumns   = `id, first_name, last_name, email, date_of_birth, employer_id, created_at, updated_at, deleted_at`
	emailConstraint = "members_email_active_uq"
)

// PostgresStore persists members in PostgreSQL. Email uniqueness among
// active members is enforced by a partial unique index on lower(email).
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateIfEmailAvailable(ctx context.Context, m *models.Member) error {
	query := `
		INSERT INTO members (id, first_name, last_name, email, date_of_birth, employer_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := tx.Executor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(m.ID), m.FirstName, m.LastName, m.Email, nullTime(m.DateOfBirth), m.EmployerID, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err, emailConstraint) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, memberID id.MemberID) (*models.Member, error) {
	query := `SELECT ` + selectColumns + ` FROM members WHERE id = $1`
	m, err := scanMember(tx.Executor(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(memberID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find member: %w", err)
	}
	return m, nil
}

// List returns the members matching filter, oldest registration first.
func (s *PostgresStore) List(ctx context.Context, filter models.ListFilter, page paging.Page) ([]*models.Member, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM members
		WHERE ($1::boolean OR deleted_at IS NULL)
		  AND ($2::text = '' OR employer_id = $2::text)
		ORDER BY created_at, id
		LIMIT $3 OFFSET $4
	`
	rows, err := tx.Executor(ctx, s.db).QueryContext(ctx, query,
		filter.IncludeDeleted, filter.EmployerID, postgres.Limit(page), page.Offset)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var out []*models.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return out, nil
}

// Execute locks the row with FOR UPDATE, applies mutate and writes the
// result back. The caller must provide the transaction through ctx.
func (s *PostgresStore) Execute(ctx context.Context, memberID id.MemberID, mutate func(*models.Member) error) (*models.Member, error) {
	exec := tx.Executor(ctx, s.db)
	query := `SELECT ` + selectColumns + ` FROM members WHERE id = $1 FOR UPDATE`
	m, err := scanMember(exec.QueryRowContext(ctx, query, uuid.UUID(memberID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("lock member: %w", err)
	}
	if err := mutate(m); err != nil {
		return nil, err
	}

	_, err = exec.ExecContext(ctx, `
		UPDATE members
		SET first_name = $2, last_name = $3, email = $4, date_of_birth = $5, employer_id = $6,
		    updated_at = $7, deleted_at = $8
		WHERE id = $1
	`, uuid.UUID(m.ID), m.FirstName, m.LastName, m.Email, nullTime(m.DateOfBirth), m.EmployerID,
		m.UpdatedAt, nullTime(m.DeletedAt))
	if err != nil {
		if postgres.IsUniqueViolation(err, emailConstraint) {
			return nil, sentinel.ErrAlreadyUsed
		}
		return nil, fmt.Errorf("update member: %w", err)
	}
	return m, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMember(row rowScanner) (*models.Member, error) {
	var (
		m        models.Member
		memberID uuid.UUID
		dob      sql.NullTime
		deleted  sql.NullTime
	)
	if err := row.Scan(&memberID, &m.FirstName, &m.LastName, &m.Email, &dob, &m.EmployerID,
		&m.CreatedAt, &m.UpdatedAt, &deleted); err != nil {
		return nil, err
	}
	m.ID = id.MemberID(memberID)
	m.DateOfBirth = timePtr(dob)
	m.DeletedAt = timePtr(deleted)
	return &m, nil
}

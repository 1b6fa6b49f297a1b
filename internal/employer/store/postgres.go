package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"pension/internal/employer/models"
	"pension/internal/platform/postgres"
	id "pension/pkg/domain"
	"pension/pkg/platform/sentinel"
	"pension/pkg/platform/tx"
)

const registrationConstraint = "employers_registration_number_uq"

// PostgresStore persists employers. Registration numbers are unique through
// employers_registration_number_uq.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateIfRegistrationAvailable(ctx context.Context, e *models.Employer) error {
	query := `
		INSERT INTO employers (id, company_name, registration_number, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := tx.Executor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(e.ID), e.CompanyName, e.RegistrationNumber, e.IsActive, e.CreatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err, registrationConstraint) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert employer: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, employerID id.EmployerID) (*models.Employer, error) {
	query := `
		SELECT id, company_name, registration_number, is_active, created_at
		FROM employers
		WHERE id = $1
	`
	var (
		e   models.Employer
		uid uuid.UUID
	)
	err := tx.Executor(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(employerID)).
		Scan(&uid, &e.CompanyName, &e.RegistrationNumber, &e.IsActive, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find employer: %w", err)
	}
	e.ID = id.EmployerID(uid)
	return &e, nil
}

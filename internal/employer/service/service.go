// Package service is the employer registry: adding sponsoring employers and
// looking one up together with the members it employs.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"pension/internal/audit"
	employermetrics "pension/internal/employer/metrics"
	"pension/internal/employer/models"
	membermodels "pension/internal/member/models"
	id "pension/pkg/domain"
	dErrors "pension/pkg/domain-errors"
	"pension/pkg/platform/sentinel"
	"pension/pkg/platform/tx"
	"pension/pkg/requestcontext"
)

type Store interface {
	// CreateIfRegistrationAvailable returns sentinel.ErrAlreadyUsed when the
	// registration number is already registered.
	CreateIfRegistrationAvailable(ctx context.Context, e *models.Employer) error
	FindByID(ctx context.Context, employerID id.EmployerID) (*models.Employer, error)
}

type Members interface {
	ListByEmployer(ctx context.Context, employerID string) ([]*membermodels.Member, error)
}

type AuditTrail interface {
	Record(ctx context.Context, e audit.Entry) (*audit.TransactionHistory, error)
}

type Service struct {
	store   Store
	members Members
	trail   AuditTrail
	tx      tx.Runner
	logger  *slog.Logger
	metrics *employermetrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *employermetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTx(runner tx.Runner) Option {
	return func(s *Service) {
		s.tx = runner
	}
}

func New(store Store, members Members, trail AuditTrail, opts ...Option) *Service {
	s := &Service{
		store:   store,
		members: members,
		trail:   trail,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = tx.NewMemoryRunner()
	}
	return s
}

// AddEmployer registers an employer. A registration number that is already
// taken is a Conflict, also when two requests race for it.
func (s *Service) AddEmployer(ctx context.Context, req models.AddRequest) (*models.Employer, error) {
	var employer *models.Employer
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		e, err := models.NewEmployer(id.NewEmployerID(), req, requestcontext.Now(txCtx))
		if err != nil {
			return err
		}
		if err := s.store.CreateIfRegistrationAvailable(txCtx, e); err != nil {
			return s.wrapEmployerErr(err, e.RegistrationNumber, "failed to add employer")
		}
		if _, err := s.trail.Record(txCtx, audit.Entry{
			EntityID:   uuid.UUID(e.ID),
			EntityType: audit.EntityEmployer,
			ChangeType: audit.ChangeCreated,
			Details:    "Employer registered: " + e.CompanyName,
		}); err != nil {
			return err
		}
		employer = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "employer added",
		"employer_id", employer.ID,
		"registration_number", employer.RegistrationNumber,
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.metrics != nil {
		s.metrics.IncRegistered()
	}
	return employer, nil
}

// GetEmployerWithMembers returns the employer and its active members, oldest
// registration first.
func (s *Service) GetEmployerWithMembers(ctx context.Context, employerID id.EmployerID) (*models.WithMembers, error) {
	if employerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "employer id is required")
	}
	e, err := s.store.FindByID(ctx, employerID)
	if err != nil {
		return nil, s.wrapEmployerErr(err, "", "failed to load employer")
	}
	members, err := s.members.ListByEmployer(ctx, employerID.String())
	if err != nil {
		return nil, err
	}
	if members == nil {
		members = []*membermodels.Member{}
	}

	s.logger.DebugContext(ctx, "employer members loaded",
		"employer_id", employerID,
		"members", len(members),
	)
	return &models.WithMembers{Employer: e, Members: members}, nil
}

// Exists returns NotFound unless employerID names a registered employer.
func (s *Service) Exists(ctx context.Context, employerID string) error {
	return NewChecker(s.store).Exists(ctx, employerID)
}

// Checker answers employer existence from the store alone. The member
// directory is built with one before the employer Service exists, since
// the Service lists members through it.
type Checker struct {
	store Store
}

func NewChecker(store Store) *Checker {
	return &Checker{store: store}
}

func (c *Checker) Exists(ctx context.Context, employerID string) error {
	parsed, err := id.ParseEmployerID(employerID)
	if err != nil {
		return dErrors.New(dErrors.CodeNotFound, "employer not found")
	}
	if _, err := c.store.FindByID(ctx, parsed); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "employer not found")
		}
		return dErrors.Wrap(err, dErrors.CodePersistence, "failed to load employer")
	}
	return nil
}

func (s *Service) wrapEmployerErr(err error, registrationNumber, action string) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		if s.metrics != nil {
			s.metrics.IncRegistrationConflict()
		}
		return dErrors.New(dErrors.CodeConflict,
			"employer with registration number "+registrationNumber+" already exists")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "employer not found")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeTimeout, action)
	}
	return dErrors.Wrap(err, dErrors.CodePersistence, action)
}

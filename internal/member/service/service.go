package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"pension/internal/audit"
	membermetrics "pension/internal/member/metrics"
	"pension/internal/member/models"
	id "pension/pkg/domain"
	dErrors "pension/pkg/domain-errors"
	"pension/pkg/platform/paging"
	"pension/pkg/platform/sentinel"
	"pension/pkg/platform/tx"
	"pension/pkg/requestcontext"
)

type Store interface {
	// CreateIfEmailAvailable returns sentinel.ErrAlreadyUsed when an active
	// member already has the email.
	CreateIfEmailAvailable(ctx context.Context, m *models.Member) error
	FindByID(ctx context.Context, memberID id.MemberID) (*models.Member, error)
	List(ctx context.Context, filter models.ListFilter, page paging.Page) ([]*models.Member, error)
	Execute(ctx context.Context, memberID id.MemberID, mutate func(*models.Member) error) (*models.Member, error)
}

type AuditTrail interface {
	Record(ctx context.Context, e audit.Entry) (*audit.TransactionHistory, error)
}

// Employers confirms that an employer reference points at a registered
// employer. It returns a NotFound domain error otherwise.
type Employers interface {
	Exists(ctx context.Context, employerID string) error
}

// Service is the member directory.
type Service struct {
	store     Store
	trail     AuditTrail
	employers Employers
	tx        tx.Runner
	logger    *slog.Logger
	metrics   *membermetrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *membermetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTx(runner tx.Runner) Option {
	return func(s *Service) {
		s.tx = runner
	}
}

// WithEmployers makes registration and updates reject employer references
// that are not registered. Without it EmployerID is stored as given.
func WithEmployers(e Employers) Option {
	return func(s *Service) {
		s.employers = e
	}
}

func New(store Store, trail AuditTrail, opts ...Option) *Service {
	s := &Service{
		store:  store,
		trail:  trail,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = tx.NewMemoryRunner()
	}
	return s
}

func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.Member, error) {
	if err := s.checkEmployer(ctx, req.EmployerID); err != nil {
		return nil, err
	}
	var member *models.Member
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		m, err := models.NewMember(id.NewMemberID(), req, requestcontext.Now(txCtx))
		if err != nil {
			return err
		}
		if err := s.store.CreateIfEmailAvailable(txCtx, m); err != nil {
			return s.wrapMemberErr(err, "failed to register member")
		}
		if _, err := s.trail.Record(txCtx, audit.ForMember(m.ID, audit.EntityMember, audit.ChangeCreated, "Member registered.")); err != nil {
			return err
		}
		member = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "member registered",
		"member_id", member.ID,
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.metrics != nil {
		s.metrics.IncRegistered()
	}
	return member, nil
}

// Get returns an active member. Soft-deleted members are NotFound.
func (s *Service) Get(ctx context.Context, memberID id.MemberID) (*models.Member, error) {
	if s.metrics != nil {
		defer s.metrics.ObserveLookup(time.Now())
	}
	if err := requireMemberID(memberID); err != nil {
		return nil, err
	}
	m, err := s.store.FindByID(ctx, memberID)
	if err != nil {
		return nil, s.wrapMemberErr(err, "failed to load member")
	}
	if !m.IsActive() {
		return nil, dErrors.New(dErrors.CodeNotFound, "member not found")
	}
	return m, nil
}

// Update applies a partial update to an active member.
func (s *Service) Update(ctx context.Context, memberID id.MemberID, req models.UpdateRequest) (*models.Member, error) {
	if err := requireMemberID(memberID); err != nil {
		return nil, err
	}
	if req.IsEmpty() {
		return nil, dErrors.New(dErrors.CodeValidation, "no fields to update")
	}
	if req.EmployerID != nil {
		if err := s.checkEmployer(ctx, *req.EmployerID); err != nil {
			return nil, err
		}
	}

	var member *models.Member
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)
		m, err := s.store.Execute(txCtx, memberID, func(m *models.Member) error {
			if !m.IsActive() {
				return dErrors.New(dErrors.CodeNotFound, "member not found")
			}
			return m.Apply(req, now)
		})
		if err != nil {
			return s.wrapMemberErr(err, "failed to update member")
		}
		details := "Member updated: " + strings.Join(req.Changed(), ", ")
		if _, err := s.trail.Record(txCtx, audit.ForMember(m.ID, audit.EntityMember, audit.ChangeUpdated, details)); err != nil {
			return err
		}
		member = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

// Delete soft-deletes an active member. Contributions and benefits are kept.
func (s *Service) Delete(ctx context.Context, memberID id.MemberID) error {
	if err := requireMemberID(memberID); err != nil {
		return err
	}

	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)
		if _, err := s.store.Execute(txCtx, memberID, func(m *models.Member) error {
			return m.MarkDeleted(now)
		}); err != nil {
			return s.wrapMemberErr(err, "failed to delete member")
		}
		_, err := s.trail.Record(txCtx, audit.ForMember(memberID, audit.EntityMember, audit.ChangeDeleted, "Member deleted."))
		return err
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "member deleted",
		"member_id", memberID,
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.metrics != nil {
		s.metrics.IncDeleted()
	}
	return nil
}

// ListActive returns every active member, oldest registration first.
func (s *Service) ListActive(ctx context.Context) ([]*models.Member, error) {
	return s.list(ctx, models.ListFilter{})
}

// ListAll returns every member ever registered, soft-deleted ones included.
func (s *Service) ListAll(ctx context.Context) ([]*models.Member, error) {
	return s.list(ctx, models.ListFilter{IncludeDeleted: true})
}

// ListByEmployer returns the active members employed by employerID.
func (s *Service) ListByEmployer(ctx context.Context, employerID string) ([]*models.Member, error) {
	if strings.TrimSpace(employerID) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "employer id is required")
	}
	return s.list(ctx, models.ListFilter{EmployerID: employerID})
}

func (s *Service) list(ctx context.Context, filter models.ListFilter) ([]*models.Member, error) {
	members, err := s.store.List(ctx, filter, paging.Unbounded())
	if err != nil {
		return nil, s.wrapMemberErr(err, "failed to list members")
	}
	return members, nil
}

func (s *Service) checkEmployer(ctx context.Context, employerID string) error {
	employerID = strings.TrimSpace(employerID)
	if s.employers == nil || employerID == "" {
		return nil
	}
	if err := s.employers.Exists(ctx, employerID); err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return dErrors.New(dErrors.CodeValidation, "employer_id does not match a registered employer")
		}
		return err
	}
	return nil
}

func requireMemberID(memberID id.MemberID) error {
	if memberID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "member id is required")
	}
	return nil
}

func (s *Service) wrapMemberErr(err error, action string) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		if s.metrics != nil {
			s.metrics.IncEmailConflict()
		}
		return dErrors.New(dErrors.CodeConflict, "email is already registered")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "member not found")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeTimeout, action)
	}
	return dErrors.Wrap(err, dErrors.CodePersistence, action)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"pension/internal/audit"
	contributionmetrics "pension/internal/contribution/metrics"
	"pension/internal/contribution/models"
	id "pension/pkg/domain"
	dErrors "pension/pkg/domain-errors"
	"pension/pkg/platform/keylock"
	"pension/pkg/platform/paging"
	"pension/pkg/platform/sentinel"
	"pension/pkg/platform/tracing"
	"pension/pkg/platform/tx"
	"pension/pkg/requestcontext"
)

// Store persists contributions. Implementations return sentinel errors;
// the service translates them.
type Store interface {
	// CreateIfPeriodAvailable inserts c unless it clashes with a stored
	// periodic contribution, in which case it returns sentinel.ErrAlreadyUsed.
	CreateIfPeriodAvailable(ctx context.Context, c *models.Contribution) error
	FindByID(ctx context.Context, contributionID id.ContributionID) (*models.Contribution, error)
	ListByMember(ctx context.Context, memberID id.MemberID, page paging.Page) ([]*models.Contribution, error)
	SumByMember(ctx context.Context, memberID id.MemberID) (decimal.Decimal, error)
	CountByMember(ctx context.Context, memberID id.MemberID) (int, error)
	ListIDs(ctx context.Context) ([]id.ContributionID, error)
	Summarize(ctx context.Context) (models.Summary, error)
	// Execute locks the row, runs validate and then mutate, and persists the
	// result. Must be called inside a unit of work for the lock to hold.
	Execute(ctx context.Context, contributionID id.ContributionID, validate func(*models.Contribution) error, mutate func(*models.Contribution)) (*models.Contribution, error)
}

// AuditTrail is the subset of audit.Trail the ledger writes to.
type AuditTrail interface {
	Record(ctx context.Context, e audit.Entry) (*audit.TransactionHistory, error)
	RequireForEntity(ctx context.Context, entityID uuid.UUID, page paging.Page) ([]*audit.TransactionHistory, error)
}

// Service is the contribution ledger and the interest accrual engine.
type Service struct {
	store        Store
	trail        AuditTrail
	tx           tx.Runner
	locks        *keylock.Locker
	interestRate decimal.Decimal
	logger       *slog.Logger
	metrics      *contributionmetrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *contributionmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTx sets the unit-of-work runner. Defaults to an in-memory runner.
func WithTx(runner tx.Runner) Option {
	return func(s *Service) {
		s.tx = runner
	}
}

// WithInterestRate overrides the monthly interest rate.
func WithInterestRate(rate decimal.Decimal) Option {
	return func(s *Service) {
		s.interestRate = rate
	}
}

// DefaultInterestRate is the monthly rate applied by AccrueMonthlyInterest.
var DefaultInterestRate = decimal.RequireFromString("0.05")

func New(store Store, trail AuditTrail, opts ...Option) *Service {
	s := &Service{
		store:        store,
		trail:        trail,
		locks:        keylock.New(),
		interestRate: DefaultInterestRate,
		logger:       slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = tx.NewMemoryRunner()
	}
	return s
}

// PostContribution validates and records a contribution together with its
// Created history entry. A second Monthly contribution for the same member
// and calendar month fails with CodeDuplicatePeriodicContribution.
func (s *Service) PostContribution(ctx context.Context, req models.PostRequest) (_ *models.Contribution, err error) {
	ctx, span := tracing.Start(ctx, "contribution.PostContribution",
		attribute.String("member_id", req.MemberID.String()),
		attribute.String("contribution_type", string(req.Type)),
	)
	defer func() { tracing.End(span, err) }()
	start := time.Now()

	c, err := models.NewContribution(id.NewContributionID(), req.MemberID, req.Type,
		req.Amount, req.ContributionDate, req.ReferenceNumber, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	if c.Type.IsPeriodic() {
		unlock := s.locks.Lock(periodKey(c))
		defer unlock()
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.store.CreateIfPeriodAvailable(txCtx, c); err != nil {
			return wrapContributionErr(err, "failed to record contribution")
		}
		_, err := s.trail.Record(txCtx, audit.ForMember(c.MemberID, audit.EntityContribution, audit.ChangeCreated,
			fmt.Sprintf("New %s contribution added.", c.Type)))
		return err
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeDuplicatePeriodicContribution) {
			s.logger.WarnContext(ctx, "duplicate periodic contribution rejected",
				"member_id", c.MemberID,
				"period", c.Period().String(),
				"request_id", requestcontext.RequestID(ctx),
			)
			if s.metrics != nil {
				s.metrics.IncDuplicate()
			}
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "contribution recorded",
		"contribution_id", c.ID,
		"member_id", c.MemberID,
		"contribution_type", c.Type,
		"amount", c.Amount.StringFixed(2),
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.metrics != nil {
		s.metrics.IncPosted(string(c.Type))
		s.metrics.ObservePost(start)
	}
	return c, nil
}

// ListContributions returns a page of a member's contributions, most recent
// contribution date first. No contributions is an empty result.
func (s *Service) ListContributions(ctx context.Context, memberID id.MemberID, page paging.Page) ([]*models.Contribution, error) {
	if err := requireMemberID(memberID); err != nil {
		return nil, err
	}
	if err := page.Validate(); err != nil {
		return nil, err
	}
	contributions, err := s.store.ListByMember(ctx, memberID, page)
	if err != nil {
		return nil, wrapContributionErr(err, "failed to list contributions")
	}
	return contributions, nil
}

// TotalContributions sums a member's contribution amounts; zero when none.
func (s *Service) TotalContributions(ctx context.Context, memberID id.MemberID) (decimal.Decimal, error) {
	if err := requireMemberID(memberID); err != nil {
		return decimal.Zero, err
	}
	total, err := s.store.SumByMember(ctx, memberID)
	if err != nil {
		return decimal.Zero, wrapContributionErr(err, "failed to total contributions")
	}
	return total, nil
}

func (s *Service) CountContributions(ctx context.Context, memberID id.MemberID) (int, error) {
	if err := requireMemberID(memberID); err != nil {
		return 0, err
	}
	n, err := s.store.CountByMember(ctx, memberID)
	if err != nil {
		return 0, wrapContributionErr(err, "failed to count contributions")
	}
	return n, nil
}

// LatestContribution returns the member's most recent contribution, or nil.
func (s *Service) LatestContribution(ctx context.Context, memberID id.MemberID) (*models.Contribution, error) {
	latest, err := s.store.ListByMember(ctx, memberID, paging.Page{Size: 1})
	if err != nil {
		return nil, wrapContributionErr(err, "failed to load latest contribution")
	}
	if len(latest) == 0 {
		return nil, nil
	}
	return latest[0], nil
}

// Summarize aggregates every stored contribution.
func (s *Service) Summarize(ctx context.Context) (models.Summary, error) {
	summary, err := s.store.Summarize(ctx)
	if err != nil {
		return models.Summary{}, wrapContributionErr(err, "failed to summarize contributions")
	}
	return summary, nil
}

// GetTransactionHistory lists a member's history newest first. A member
// with no history yields a NotFound error.
func (s *Service) GetTransactionHistory(ctx context.Context, memberID id.MemberID, page paging.Page) ([]*audit.TransactionHistory, error) {
	if err := requireMemberID(memberID); err != nil {
		return nil, err
	}
	return s.trail.RequireForEntity(ctx, uuid.UUID(memberID), page)
}

func periodKey(c *models.Contribution) string {
	return c.MemberID.String() + "|" + c.Period().String()
}

func requireMemberID(memberID id.MemberID) error {
	if memberID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "member id is required")
	}
	return nil
}

// wrapContributionErr translates store sentinels into domain errors.
func wrapContributionErr(err error, action string) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.New(dErrors.CodeDuplicatePeriodicContribution,
			"a monthly contribution already exists for this member and month")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "contribution not found")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeTimeout, action)
	}
	return dErrors.Wrap(err, dErrors.CodePersistence, action)
}

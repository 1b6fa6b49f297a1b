package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"pension/internal/audit"
	benefitmetrics "pension/internal/benefit/metrics"
	"pension/internal/benefit/models"
	id "pension/pkg/domain"
	dErrors "pension/pkg/domain-errors"
	"pension/pkg/platform/batch"
	"pension/pkg/platform/paging"
	"pension/pkg/platform/sentinel"
	"pension/pkg/platform/tracing"
	"pension/pkg/platform/tx"
	"pension/pkg/requestcontext"
)

// Ledger is the part of the contribution ledger eligibility depends on.
type Ledger interface {
	CountContributions(ctx context.Context, memberID id.MemberID) (int, error)
	TotalContributions(ctx context.Context, memberID id.MemberID) (decimal.Decimal, error)
}

type Store interface {
	Create(ctx context.Context, b *models.Benefit) error
	ListByMember(ctx context.Context, memberID id.MemberID, page paging.Page) ([]*models.Benefit, error)
	ListIDs(ctx context.Context) ([]id.BenefitID, error)
	// Execute locks the row, applies mutate and persists the result.
	Execute(ctx context.Context, benefitID id.BenefitID, mutate func(*models.Benefit)) (*models.Benefit, error)
}

type AuditTrail interface {
	Record(ctx context.Context, e audit.Entry) (*audit.TransactionHistory, error)
}

// Service is the benefit eligibility engine.
type Service struct {
	ledger  Ledger
	store   Store
	trail   AuditTrail
	tx      tx.Runner
	rules   models.Rules
	logger  *slog.Logger
	metrics *benefitmetrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *benefitmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTx(runner tx.Runner) Option {
	return func(s *Service) {
		s.tx = runner
	}
}

func WithRules(rules models.Rules) Option {
	return func(s *Service) {
		s.rules = rules
	}
}

func New(ledger Ledger, store Store, trail AuditTrail, opts ...Option) *Service {
	s := &Service{
		ledger: ledger,
		store:  store,
		trail:  trail,
		rules:  models.DefaultRules,
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

// CalculateBenefit evaluates eligibility from the member's contribution
// total and stores the resulting benefit with its Created history entry.
// A member without contributions gets NoContributionsFound and nothing is
// written.
func (s *Service) CalculateBenefit(ctx context.Context, memberID id.MemberID) (_ *models.Benefit, err error) {
	ctx, span := tracing.Start(ctx, "benefit.CalculateBenefit", attribute.String("member_id", memberID.String()))
	defer func() { tracing.End(span, err) }()

	if memberID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "member id is required")
	}

	var benefit *models.Benefit
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		n, err := s.ledger.CountContributions(txCtx, memberID)
		if err != nil {
			return err
		}
		if n == 0 {
			return dErrors.New(dErrors.CodeNoContributionsFound, "no contributions found for member")
		}
		total, err := s.ledger.TotalContributions(txCtx, memberID)
		if err != nil {
			return err
		}

		b := models.NewBenefit(id.NewBenefitID(), memberID, total, s.rules, requestcontext.Now(txCtx))
		if err := s.store.Create(txCtx, b); err != nil {
			return wrapBenefitErr(err, "failed to store benefit")
		}
		if _, err := s.trail.Record(txCtx, audit.ForMember(memberID, audit.EntityBenefit, audit.ChangeCreated, "Benefit calculated.")); err != nil {
			return err
		}
		benefit = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "benefit calculated",
		"member_id", memberID,
		"benefit_id", benefit.ID,
		"amount", benefit.Amount.StringFixed(2),
		"eligibility_status", benefit.EligibilityStatus,
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.metrics != nil {
		s.metrics.IncCalculated(string(benefit.EligibilityStatus))
	}
	return benefit, nil
}

// RefreshEligibilityForAll re-evaluates every stored benefit against the
// threshold using its stored amount. Each benefit is its own unit of work;
// failures are collected and the batch continues.
func (s *Service) RefreshEligibilityForAll(ctx context.Context) (_ batch.Result, err error) {
	ctx, span := tracing.Start(ctx, "benefit.RefreshEligibilityForAll")
	defer func() { tracing.End(span, err) }()
	start := time.Now()

	ids, err := s.store.ListIDs(ctx)
	if err != nil {
		return batch.Result{}, wrapBenefitErr(err, "failed to snapshot benefits")
	}

	outcome := &batch.Outcome{}
	for i, benefitID := range ids {
		if ctx.Err() != nil {
			s.logger.WarnContext(ctx, "eligibility refresh interrupted", "processed", i, "remaining", len(ids)-i)
			break
		}
		recErr := s.refreshOne(ctx, benefitID)
		if recErr != nil {
			s.logger.ErrorContext(ctx, "eligibility refresh failed for benefit",
				"benefit_id", benefitID,
				"error", recErr,
			)
		}
		outcome.Record(benefitID.String(), recErr)
	}

	result := outcome.Result()
	span.SetAttributes(attribute.Int("succeeded", result.Succeeded), attribute.Int("failed", result.Failed))
	if s.metrics != nil {
		s.metrics.ObserveRefresh(start)
	}
	return result, nil
}

func (s *Service) refreshOne(ctx context.Context, benefitID id.BenefitID) error {
	now := requestcontext.Now(ctx)
	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var previous models.EligibilityStatus
		b, err := s.store.Execute(txCtx, benefitID, func(b *models.Benefit) {
			previous = b.Reevaluate(s.rules, now)
		})
		if err != nil {
			return wrapBenefitErr(err, "failed to refresh benefit")
		}
		details := fmt.Sprintf("Benefit eligibility updated: %s -> %s", previous, b.EligibilityStatus)
		if _, err := s.trail.Record(txCtx, audit.ForMember(b.MemberID, audit.EntityBenefit, audit.ChangeUpdated, details)); err != nil {
			return err
		}
		if previous != b.EligibilityStatus {
			s.logger.InfoContext(txCtx, "benefit eligibility changed",
				"benefit_id", b.ID,
				"member_id", b.MemberID,
				"from", previous,
				"to", b.EligibilityStatus,
			)
			if s.metrics != nil {
				s.metrics.IncTransition(string(previous), string(b.EligibilityStatus))
			}
		}
		return nil
	})
}

// ListBenefits returns a member's benefits, latest calculation first.
func (s *Service) ListBenefits(ctx context.Context, memberID id.MemberID, page paging.Page) ([]*models.Benefit, error) {
	if memberID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "member id is required")
	}
	if err := page.Validate(); err != nil {
		return nil, err
	}
	benefits, err := s.store.ListByMember(ctx, memberID, page)
	if err != nil {
		return nil, wrapBenefitErr(err, "failed to list benefits")
	}
	return benefits, nil
}

func wrapBenefitErr(err error, action string) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "benefit not found")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeTimeout, action)
	}
	return dErrors.Wrap(err, dErrors.CodePersistence, action)
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"pension/internal/audit"
	"pension/internal/contribution/models"
	id "pension/pkg/domain"
	dErrors "pension/pkg/domain-errors"
	"pension/pkg/platform/batch"
	"pension/pkg/platform/tracing"
	"pension/pkg/requestcontext"
)

// AccrueMonthlyInterest credits amount * rate, unrounded, to every stored
// contribution. Each contribution is updated in its own unit of work with
// its Updated history entry; a failing record is collected and the batch
// moves on. Only failing to read the snapshot of ids is returned as an
// error. Cancelling ctx stops the batch between records and the records
// already processed stay committed.
func (s *Service) AccrueMonthlyInterest(ctx context.Context) (_ batch.Result, err error) {
	ctx, span := tracing.Start(ctx, "contribution.AccrueMonthlyInterest",
		attribute.String("rate", s.interestRate.String()))
	defer func() { tracing.End(span, err) }()
	start := time.Now()

	ids, err := s.store.ListIDs(ctx)
	if err != nil {
		return batch.Result{}, wrapContributionErr(err, "failed to snapshot contributions")
	}

	outcome := &batch.Outcome{}
	for i, contributionID := range ids {
		if ctx.Err() != nil {
			s.logger.WarnContext(ctx, "interest accrual interrupted",
				"processed", i,
				"remaining", len(ids)-i,
			)
			break
		}
		recErr := s.accrueOne(ctx, contributionID)
		if recErr != nil {
			s.logger.ErrorContext(ctx, "interest accrual failed for contribution",
				"contribution_id", contributionID,
				"error", recErr,
			)
		}
		outcome.Record(contributionID.String(), recErr)
	}

	result := outcome.Result()
	span.SetAttributes(
		attribute.Int("succeeded", result.Succeeded),
		attribute.Int("failed", result.Failed),
	)
	if s.metrics != nil {
		s.metrics.ObserveAccrual(start, result.Succeeded, result.Failed)
	}
	return result, nil
}

func (s *Service) accrueOne(ctx context.Context, contributionID id.ContributionID) error {
	now := requestcontext.Now(ctx)
	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var interest decimal.Decimal
		c, err := s.store.Execute(txCtx, contributionID,
			func(c *models.Contribution) error {
				if c.Amount.IsNegative() {
					return dErrors.New(dErrors.CodeInvariantViolation, "stored amount is negative")
				}
				return nil
			},
			func(c *models.Contribution) {
				interest = c.Interest(s.interestRate)
				c.ApplyInterest(interest, now)
			},
		)
		if err != nil {
			return wrapContributionErr(err, "failed to accrue interest")
		}
		_, err = s.trail.Record(txCtx, audit.ForMember(c.MemberID, audit.EntityContribution, audit.ChangeUpdated,
			fmt.Sprintf("Interest calculated: %s", models.FormatAmount(interest))))
		return err
	})
}

// Package report produces the scheduled contribution reports: the monthly
// validation summary and the per-member statements.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	contributionmodels "pension/internal/contribution/models"
	membermodels "pension/internal/member/models"
	id "pension/pkg/domain"
	dErrors "pension/pkg/domain-errors"
	"pension/pkg/platform/batch"
	"pension/pkg/platform/tracing"
	"pension/pkg/requestcontext"
)

// Statement is one member's contribution position at generation time.
type Statement struct {
	MemberID               id.MemberID     `json:"member_id"`
	MemberName             string          `json:"member_name"`
	Email                  string          `json:"email"`
	TotalContributions     decimal.Decimal `json:"total_contributions"`
	ContributionCount      int             `json:"contribution_count"`
	LatestContributionDate *time.Time      `json:"latest_contribution_date,omitempty"`
	MemberDeleted          bool            `json:"member_deleted,omitempty"`
	GeneratedAt            time.Time       `json:"generated_at"`
}

// Sink receives generated reports.
type Sink interface {
	WriteSummary(ctx context.Context, text string) error
	WriteStatement(ctx context.Context, st Statement) error
}

type Ledger interface {
	Summarize(ctx context.Context) (contributionmodels.Summary, error)
	TotalContributions(ctx context.Context, memberID id.MemberID) (decimal.Decimal, error)
	CountContributions(ctx context.Context, memberID id.MemberID) (int, error)
	LatestContribution(ctx context.Context, memberID id.MemberID) (*contributionmodels.Contribution, error)
}

type Members interface {
	// ListAll includes soft-deleted members; their contributions stay on
	// the ledger and keep appearing in statements.
	ListAll(ctx context.Context) ([]*membermodels.Member, error)
}

type Reporter struct {
	ledger  Ledger
	members Members
	sink    Sink
	logger  *slog.Logger
}

type Option func(*Reporter)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Reporter) {
		r.logger = logger
	}
}

func New(ledger Ledger, members Members, sink Sink, opts ...Option) *Reporter {
	r := &Reporter{
		ledger:  ledger,
		members: members,
		sink:    sink,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GenerateContributionValidationReport summarizes every stored contribution
// and writes one summary line to the sink.
func (r *Reporter) GenerateContributionValidationReport(ctx context.Context) (_ contributionmodels.Summary, err error) {
	ctx, span := tracing.Start(ctx, "report.GenerateContributionValidationReport")
	defer func() { tracing.End(span, err) }()

	summary, err := r.ledger.Summarize(ctx)
	if err != nil {
		return contributionmodels.Summary{}, err
	}
	text := fmt.Sprintf("Generated validation report with %d contributions.", summary.Count)
	if err := r.sink.WriteSummary(ctx, text); err != nil {
		return summary, dErrors.Wrap(err, dErrors.CodeInternal, "failed to write validation report")
	}

	r.logger.InfoContext(ctx, text,
		"contributions", summary.Count,
		"total", summary.Total.StringFixed(2),
		"members", summary.Members,
		"task", requestcontext.Job(ctx),
	)
	return summary, nil
}

// GenerateMemberStatements writes one statement per member. A member
// whose statement cannot be built or written is recorded as a failure and
// the run continues.
func (r *Reporter) GenerateMemberStatements(ctx context.Context) (_ batch.Result, err error) {
	ctx, span := tracing.Start(ctx, "report.GenerateMemberStatements")
	defer func() { tracing.End(span, err) }()

	members, err := r.members.ListAll(ctx)
	if err != nil {
		return batch.Result{}, err
	}

	now := requestcontext.Now(ctx)
	outcome := &batch.Outcome{}
	for i, m := range members {
		if ctx.Err() != nil {
			r.logger.WarnContext(ctx, "statement generation interrupted", "processed", i, "remaining", len(members)-i)
			break
		}
		stErr := r.statementFor(ctx, m, now)
		if stErr != nil {
			r.logger.ErrorContext(ctx, "statement generation failed for member",
				"member_id", m.ID,
				"error", stErr,
			)
		}
		outcome.Record(m.ID.String(), stErr)
	}

	result := outcome.Result()
	span.SetAttributes(attribute.Int("succeeded", result.Succeeded), attribute.Int("failed", result.Failed))
	return result, nil
}

func (r *Reporter) statementFor(ctx context.Context, m *membermodels.Member, now time.Time) error {
	total, err := r.ledger.TotalContributions(ctx, m.ID)
	if err != nil {
		return err
	}
	count, err := r.ledger.CountContributions(ctx, m.ID)
	if err != nil {
		return err
	}
	latest, err := r.ledger.LatestContribution(ctx, m.ID)
	if err != nil {
		return err
	}

	st := Statement{
		MemberID:           m.ID,
		MemberName:         m.FullName(),
		Email:              m.Email,
		TotalContributions: total,
		ContributionCount:  count,
		MemberDeleted:      !m.IsActive(),
		GeneratedAt:        now,
	}
	if latest != nil {
		date := latest.ContributionDate
		st.LatestContributionDate = &date
	}
	return r.sink.WriteStatement(ctx, st)
}

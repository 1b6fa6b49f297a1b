package scheduler

import (
	"context"

	contributionmodels "pension/internal/contribution/models"
	"pension/internal/platform/config"
	"pension/pkg/platform/batch"
)

// Task names.
const (
	TaskValidationReport    = "contribution-validation-report"
	TaskEligibilityRefresh  = "benefit-eligibility-refresh"
	TaskInterestAccrual     = "monthly-interest-accrual"
	TaskStatementGeneration = "member-statement-generation"
)

// Jobs are the operations the recurring tasks invoke.
type Jobs struct {
	ValidationReport    func(ctx context.Context) (contributionmodels.Summary, error)
	EligibilityRefresh  JobFunc
	InterestAccrual     JobFunc
	StatementGeneration JobFunc
}

// PensionTasks binds the jobs to their configured cron expressions.
func PensionTasks(cfg config.SchedulerConfig, jobs Jobs) []Task {
	return []Task{
		{Name: TaskValidationReport, Spec: cfg.ValidationReport, Run: summaryJob(jobs.ValidationReport)},
		{Name: TaskEligibilityRefresh, Spec: cfg.EligibilityRefresh, Run: jobs.EligibilityRefresh},
		{Name: TaskInterestAccrual, Spec: cfg.InterestAccrual, Run: jobs.InterestAccrual},
		{Name: TaskStatementGeneration, Spec: cfg.StatementGeneration, Run: jobs.StatementGeneration},
	}
}

// summaryJob adapts the validation report, which has no per-record outcome,
// to a one-record result.
func summaryJob(fn func(ctx context.Context) (contributionmodels.Summary, error)) JobFunc {
	if fn == nil {
		return nil
	}
	return func(ctx context.Context) (batch.Result, error) {
		if _, err := fn(ctx); err != nil {
			return batch.Result{Total: 1, Failed: 1}, err
		}
		return batch.Result{Total: 1, Succeeded: 1}, nil
	}
}

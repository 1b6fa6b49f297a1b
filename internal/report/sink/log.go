// Package sink holds the report.Sink implementations.
package sink

import (
	"context"
	"log/slog"

	"pension/internal/report"
)

// LogSink writes reports to the structured log.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) WriteSummary(ctx context.Context, text string) error {
	s.logger.InfoContext(ctx, "report summary", "summary", text)
	return nil
}

func (s *LogSink) WriteStatement(ctx context.Context, st report.Statement) error {
	attrs := []any{
		"member_id", st.MemberID,
		"total_contributions", st.TotalContributions.StringFixed(2),
		"contribution_count", st.ContributionCount,
	}
	if st.LatestContributionDate != nil {
		attrs = append(attrs, "latest_contribution_date", st.LatestContributionDate.Format("2006-01-02"))
	}
	s.logger.InfoContext(ctx, "member statement", attrs...)
	return nil
}

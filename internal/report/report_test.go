package report_test

//go:generate mockgen -source=report.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	contributionmodels "pension/internal/contribution/models"
	membermodels "pension/internal/member/models"
	"pension/internal/report"
	"pension/internal/report/mocks"
	id "pension/pkg/domain"
	"pension/pkg/requestcontext"
)

type ReporterSuite struct {
	suite.Suite
	ctx      context.Context
	ctrl     *gomock.Controller
	ledger   *mocks.MockLedger
	members  *mocks.MockMembers
	sink     *mocks.MockSink
	reporter *report.Reporter
}

func TestReporterSuite(t *testing.T) {
	suite.Run(t, new(ReporterSuite))
}

func (s *ReporterSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC))
	s.ctrl = gomock.NewController(s.T())
	s.ledger = mocks.NewMockLedger(s.ctrl)
	s.members = mocks.NewMockMembers(s.ctrl)
	s.sink = mocks.NewMockSink(s.ctrl)
	s.reporter = report.New(s.ledger, s.members, s.sink)
}

func (s *ReporterSuite) TearDownTest() {
	s.ctrl.Finish()
}

func member(first string) *membermodels.Member {
	return &membermodels.Member{ID: id.NewMemberID(), FirstName: first, LastName: "Doe", Email: first + "@example.com"}
}

func (s *ReporterSuite) TestValidationReport() {
	s.Run("writes one summary line", func() {
		s.ledger.EXPECT().Summarize(gomock.Any()).
			Return(contributionmodels.Summary{Count: 3, Total: decimal.NewFromInt(300), Members: 2}, nil)
		s.sink.EXPECT().WriteSummary(gomock.Any(), "Generated validation report with 3 contributions.").Return(nil)

		summary, err := s.reporter.GenerateContributionValidationReport(s.ctx)
		s.Require().NoError(err)
		s.Equal(2, summary.Members)
	})

	s.Run("sink failure is returned", func() {
		s.ledger.EXPECT().Summarize(gomock.Any()).Return(contributionmodels.Summary{}, nil)
		s.sink.EXPECT().WriteSummary(gomock.Any(), "Generated validation report with 0 contributions.").
			Return(errors.New("sink down"))

		_, err := s.reporter.GenerateContributionValidationReport(s.ctx)
		s.Error(err)
	})
}

func (s *ReporterSuite) TestMemberStatements() {
	ann, bob := member("ann"), member("bob")
	latest := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	s.members.EXPECT().ListAll(gomock.Any()).Return([]*membermodels.Member{ann, bob}, nil)

	s.ledger.EXPECT().TotalContributions(gomock.Any(), ann.ID).Return(decimal.NewFromInt(500), nil)
	s.ledger.EXPECT().CountContributions(gomock.Any(), ann.ID).Return(2, nil)
	s.ledger.EXPECT().LatestContribution(gomock.Any(), ann.ID).
		Return(&contributionmodels.Contribution{ContributionDate: latest}, nil)
	s.sink.EXPECT().WriteStatement(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, st report.Statement) error {
			s.Equal(ann.ID, st.MemberID)
			s.Equal("ann Doe", st.MemberName)
			s.Equal("500.00", st.TotalContributions.StringFixed(2))
			s.Require().NotNil(st.LatestContributionDate)
			s.Equal(latest, *st.LatestContributionDate)
			s.Equal(time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC), st.GeneratedAt)
			return nil
		})

	// bob has no contributions and the sink rejects his statement
	s.ledger.EXPECT().TotalContributions(gomock.Any(), bob.ID).Return(decimal.Zero, nil)
	s.ledger.EXPECT().CountContributions(gomock.Any(), bob.ID).Return(0, nil)
	s.ledger.EXPECT().LatestContribution(gomock.Any(), bob.ID).Return(nil, nil)
	s.sink.EXPECT().WriteStatement(gomock.Any(), gomock.Any()).Return(errors.New("sink down"))

	result, err := s.reporter.GenerateMemberStatements(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, result.Total)
	s.Equal(1, result.Succeeded)
	s.Equal(1, result.Failed)
	s.Equal(bob.ID.String(), result.Failures[0].RecordID)
	s.Equal("1 succeeded, 1 failed", result.Summary())
}

func (s *ReporterSuite) TestMemberStatementsListFailure() {
	s.members.EXPECT().ListAll(gomock.Any()).Return(nil, errors.New("db down"))

	_, err := s.reporter.GenerateMemberStatements(s.ctx)
	s.Error(err)
}

func (s *ReporterSuite) TestStatementsCoverDeletedMembers() {
	gone := member("carl")
	deletedAt := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)
	gone.DeletedAt = &deletedAt

	s.members.EXPECT().ListAll(gomock.Any()).Return([]*membermodels.Member{gone}, nil)
	s.ledger.EXPECT().TotalContributions(gomock.Any(), gone.ID).Return(decimal.NewFromInt(250), nil)
	s.ledger.EXPECT().CountContributions(gomock.Any(), gone.ID).Return(1, nil)
	s.ledger.EXPECT().LatestContribution(gomock.Any(), gone.ID).Return(nil, nil)
	s.sink.EXPECT().WriteStatement(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, st report.Statement) error {
			s.Equal(gone.ID, st.MemberID)
			s.True(st.MemberDeleted)
			s.Equal("250.00", st.TotalContributions.StringFixed(2))
			return nil
		})

	result, err := s.reporter.GenerateMemberStatements(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, result.Succeeded)
}

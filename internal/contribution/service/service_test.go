package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"pension/internal/audit"
	auditstore "pension/internal/audit/store"
	"pension/internal/contribution/models"
	contributionstore "pension/internal/contribution/store"
	id "pension/pkg/domain"
	dErrors "pension/pkg/domain-errors"
	"pension/pkg/platform/paging"
	"pension/pkg/platform/tx"
	"pension/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	ctx      context.Context
	store    *contributionstore.InMemory
	history  *auditstore.InMemory
	trail    *audit.Trail
	service  *Service
	memberID id.MemberID
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2024, 1, 20, 12, 0, 0, 0, time.UTC))
	s.store = contributionstore.NewInMemory()
	s.history = auditstore.NewInMemory()
	s.trail = audit.NewTrail(s.history)
	s.service = New(s.store, s.trail, WithTx(tx.NewMemoryRunner()))
	s.memberID = id.NewMemberID()
}

func (s *ServiceSuite) post(typ models.Type, amount string, date time.Time, ref string) (*models.Contribution, error) {
	return s.service.PostContribution(s.ctx, models.PostRequest{
		MemberID:         s.memberID,
		Type:             typ,
		Amount:           decimal.RequireFromString(amount),
		ContributionDate: date,
		ReferenceNumber:  ref,
	})
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *ServiceSuite) TestPostContribution() {
	s.Run("records contribution with a Created entry", func() {
		c, err := s.post(models.TypeMonthly, "120000", day(2024, 1, 15), "REF1")
		s.Require().NoError(err)
		s.Equal("REF1", c.ReferenceNumber)

		entries, err := s.trail.ListForEntity(s.ctx, uuid.UUID(s.memberID), paging.Default())
		s.Require().NoError(err)
		s.Require().Len(entries, 1)
		s.Equal(audit.ChangeCreated, entries[0].ChangeType)
		s.Equal(audit.EntityContribution, entries[0].EntityType)
		s.Equal("New Monthly contribution added.", entries[0].ChangeDetails)
	})

	s.Run("second monthly in the same month is a duplicate", func() {
		_, err := s.post(models.TypeMonthly, "100", day(2024, 1, 28), "REF2")
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicatePeriodicContribution))
		s.True(dErrors.HasKind(err, dErrors.KindValidation))

		n, err := s.service.CountContributions(s.ctx, s.memberID)
		s.Require().NoError(err)
		s.Equal(1, n)
	})

	s.Run("voluntary in the same month is accepted", func() {
		_, err := s.post(models.TypeVoluntary, "50.25", day(2024, 1, 28), "VOL1")
		s.Require().NoError(err)
	})

	s.Run("monthly in the same month of another year is accepted", func() {
		_, err := s.post(models.TypeMonthly, "100", day(2025, 1, 15), "REF3")
		s.Require().NoError(err)
	})

	s.Run("invalid amount writes nothing", func() {
		before := s.history.Count(s.ctx)
		_, err := s.post(models.TypeVoluntary, "-5", day(2024, 2, 1), "BAD")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Equal(before, s.history.Count(s.ctx))
	})
}

func (s *ServiceSuite) TestConcurrentPeriodicPostings() {
	const goroutines = 50
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		rejected  atomic.Int32
	)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.post(models.TypeMonthly, "1000", day(2024, 3, 5), "RACE")
			switch {
			case err == nil:
				succeeded.Add(1)
			case dErrors.HasCode(err, dErrors.CodeDuplicatePeriodicContribution):
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), succeeded.Load(), "exactly one posting should succeed")
	s.Equal(int32(goroutines-1), rejected.Load())

	n, err := s.service.CountContributions(s.ctx, s.memberID)
	s.Require().NoError(err)
	s.Equal(1, n)
	s.Equal(1, s.history.Count(s.ctx), "only the stored contribution has a history entry")
}

type failingTrail struct{ AuditTrail }

func (failingTrail) Record(context.Context, audit.Entry) (*audit.TransactionHistory, error) {
	return nil, dErrors.New(dErrors.CodePersistence, "history unavailable")
}

func (s *ServiceSuite) TestAuditFailureRollsBackPosting() {
	svc := New(s.store, failingTrail{}, WithTx(tx.NewMemoryRunner()))
	_, err := svc.PostContribution(s.ctx, models.PostRequest{
		MemberID:         s.memberID,
		Type:             models.TypeMonthly,
		Amount:           decimal.NewFromInt(100),
		ContributionDate: day(2024, 4, 1),
		ReferenceNumber:  "R",
	})
	s.True(dErrors.HasCode(err, dErrors.CodePersistence))

	n, err := s.service.CountContributions(s.ctx, s.memberID)
	s.Require().NoError(err)
	s.Zero(n, "contribution must not survive a failed history write")
}

func (s *ServiceSuite) TestListContributions() {
	_, err := s.post(models.TypeMonthly, "1", day(2024, 1, 15), "A")
	s.Require().NoError(err)
	_, err = s.post(models.TypeMonthly, "2", day(2024, 3, 15), "C")
	s.Require().NoError(err)
	_, err = s.post(models.TypeMonthly, "3", day(2024, 2, 15), "B")
	s.Require().NoError(err)

	s.Run("most recent contribution date first", func() {
		got, err := s.service.ListContributions(s.ctx, s.memberID, paging.Default())
		s.Require().NoError(err)
		s.Equal([]string{"C", "B", "A"}, refs(got))
	})

	s.Run("offset and size", func() {
		got, err := s.service.ListContributions(s.ctx, s.memberID, paging.Page{Size: 1, Offset: 1})
		s.Require().NoError(err)
		s.Equal([]string{"B"}, refs(got))
	})

	s.Run("unknown member is empty", func() {
		got, err := s.service.ListContributions(s.ctx, id.NewMemberID(), paging.Default())
		s.Require().NoError(err)
		s.Empty(got)
	})

	s.Run("large page sizes are accepted", func() {
		got, err := s.service.ListContributions(s.ctx, s.memberID, paging.Page{Size: 500})
		s.Require().NoError(err)
		s.Equal([]string{"C", "B", "A"}, refs(got))
	})

	s.Run("invalid page", func() {
		_, err := s.service.ListContributions(s.ctx, s.memberID, paging.Page{Size: 5, Offset: -1})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestTotalContributions() {
	total, err := s.service.TotalContributions(s.ctx, s.memberID)
	s.Require().NoError(err)
	s.True(total.IsZero())

	_, err = s.post(models.TypeMonthly, "100.10", day(2024, 1, 1), "A")
	s.Require().NoError(err)
	_, err = s.post(models.TypeVoluntary, "0.15", day(2024, 1, 2), "B")
	s.Require().NoError(err)

	total, err = s.service.TotalContributions(s.ctx, s.memberID)
	s.Require().NoError(err)
	s.Equal("100.25", total.StringFixed(2))
}

func (s *ServiceSuite) TestGetTransactionHistory() {
	_, err := s.service.GetTransactionHistory(s.ctx, s.memberID, paging.Default())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.post(models.TypeMonthly, "1", day(2024, 1, 1), "A")
	s.Require().NoError(err)

	entries, err := s.service.GetTransactionHistory(s.ctx, s.memberID, paging.Default())
	s.Require().NoError(err)
	s.Len(entries, 1)

	entries, err = s.service.GetTransactionHistory(s.ctx, s.memberID, paging.Page{Size: 1000})
	s.Require().NoError(err)
	s.Len(entries, 1)
}

func (s *ServiceSuite) TestAccrueMonthlyInterest() {
	first, err := s.post(models.TypeMonthly, "120000", day(2024, 1, 15), "REF1")
	s.Require().NoError(err)
	second, err := s.post(models.TypeVoluntary, "10.09", day(2024, 1, 20), "REF2")
	s.Require().NoError(err)

	result, err := s.service.AccrueMonthlyInterest(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, result.Total)
	s.Equal(2, result.Succeeded)
	s.Zero(result.Failed)

	got, err := s.store.FindByID(s.ctx, first.ID)
	s.Require().NoError(err)
	s.Equal("126000.00", got.Amount.StringFixed(2))

	got, err = s.store.FindByID(s.ctx, second.ID)
	s.Require().NoError(err)
	s.True(decimal.RequireFromString("10.5945").Equal(got.Amount), "got %s", got.Amount)

	entries, err := s.trail.ListForEntity(s.ctx, uuid.UUID(s.memberID), paging.Default())
	s.Require().NoError(err)
	var updates []string
	for _, e := range entries {
		if e.ChangeType == audit.ChangeUpdated {
			updates = append(updates, e.ChangeDetails)
		}
	}
	s.ElementsMatch([]string{"Interest calculated: 6000.00", "Interest calculated: 0.5045"}, updates)
}

func (s *ServiceSuite) TestAccrualCollectsFailuresAndContinues() {
	_, err := s.post(models.TypeMonthly, "100", day(2024, 1, 15), "A")
	s.Require().NoError(err)
	_, err = s.post(models.TypeMonthly, "200", day(2024, 2, 15), "B")
	s.Require().NoError(err)

	flaky := &flakyTrail{Trail: s.trail, failOn: 1}
	svc := New(s.store, flaky, WithTx(tx.NewMemoryRunner()))

	result, err := svc.AccrueMonthlyInterest(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, result.Total)
	s.Equal(1, result.Succeeded)
	s.Equal(1, result.Failed)
	s.Equal("1 succeeded, 1 failed", result.Summary())

	total, err := s.service.TotalContributions(s.ctx, s.memberID)
	s.Require().NoError(err)
	// one of the two got 5%, the other was rolled back
	s.True(total.Equal(decimal.RequireFromString("305")) || total.Equal(decimal.RequireFromString("310")))
}

func (s *ServiceSuite) TestAccrualStopsOnCancellation() {
	_, err := s.post(models.TypeMonthly, "100", day(2024, 1, 15), "A")
	s.Require().NoError(err)

	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	result, err := s.service.AccrueMonthlyInterest(ctx)
	s.Require().NoError(err)
	s.Zero(result.Total)
}

type flakyTrail struct {
	*audit.Trail
	calls  atomic.Int32
	failOn int32
}

func (f *flakyTrail) Record(ctx context.Context, e audit.Entry) (*audit.TransactionHistory, error) {
	if f.calls.Add(1) == f.failOn {
		return nil, errors.New("history write failed")
	}
	return f.Trail.Record(ctx, e)
}

func refs(cs []*models.Contribution) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ReferenceNumber
	}
	return out
}

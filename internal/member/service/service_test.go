package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"pension/internal/audit"
	auditstore "pension/internal/audit/store"
	"pension/internal/member/models"
	memberstore "pension/internal/member/store"
	id "pension/pkg/domain"
	dErrors "pension/pkg/domain-errors"
	"pension/pkg/platform/paging"
	"pension/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	ctx     context.Context
	history *auditstore.InMemory
	service *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	s.history = auditstore.NewInMemory()
	s.service = New(memberstore.NewInMemory(), audit.NewTrail(s.history))
}

func (s *ServiceSuite) register(first, email string) (*models.Member, error) {
	return s.service.Register(s.ctx, models.RegisterRequest{FirstName: first, LastName: "Doe", Email: email})
}

func (s *ServiceSuite) historyFor(memberID id.MemberID) []*audit.TransactionHistory {
	entries, err := s.history.ListByEntity(s.ctx, uuid.UUID(memberID), paging.Unbounded())
	s.Require().NoError(err)
	return entries
}

func ptr(v string) *string { return &v }

func (s *ServiceSuite) TestRegister() {
	s.Run("creates member with a Created entry", func() {
		m, err := s.register("Jane", "jane@example.com")
		s.Require().NoError(err)

		entries := s.historyFor(m.ID)
		s.Require().Len(entries, 1)
		s.Equal(audit.EntityMember, entries[0].EntityType)
		s.Equal(audit.ChangeCreated, entries[0].ChangeType)
	})

	s.Run("email is unique regardless of case", func() {
		_, err := s.register("Janet", "JANE@example.com")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("missing name is a validation error", func() {
		_, err := s.register("", "other@example.com")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestConcurrentRegistrationSameEmail() {
	const goroutines = 50
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		conflicts atomic.Int32
	)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.register("Jane", "race@example.com")
			switch {
			case err == nil:
				succeeded.Add(1)
			case dErrors.HasCode(err, dErrors.CodeConflict):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), succeeded.Load())
	s.Equal(int32(goroutines-1), conflicts.Load())
}

func (s *ServiceSuite) TestUpdate() {
	m, err := s.register("Jane", "jane@example.com")
	s.Require().NoError(err)
	other, err := s.register("John", "john@example.com")
	s.Require().NoError(err)

	s.Run("partial update writes an Updated entry", func() {
		updated, err := s.service.Update(s.ctx, m.ID, models.UpdateRequest{LastName: ptr("Smith")})
		s.Require().NoError(err)
		s.Equal("Jane", updated.FirstName)
		s.Equal("Smith", updated.LastName)

		entries := s.historyFor(m.ID)
		s.Require().Len(entries, 2)
		s.Equal(audit.ChangeUpdated, entries[0].ChangeType)
		s.Equal("Member updated: last_name", entries[0].ChangeDetails)
	})

	s.Run("taking another member's email conflicts", func() {
		_, err := s.service.Update(s.ctx, other.ID, models.UpdateRequest{Email: ptr("Jane@Example.com")})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Len(s.historyFor(other.ID), 1)
	})

	s.Run("empty update is rejected", func() {
		_, err := s.service.Update(s.ctx, m.ID, models.UpdateRequest{})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown member is not found", func() {
		_, err := s.service.Update(s.ctx, id.NewMemberID(), models.UpdateRequest{FirstName: ptr("X")})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestDelete() {
	m, err := s.register("Jane", "jane@example.com")
	s.Require().NoError(err)

	s.Require().NoError(s.service.Delete(s.ctx, m.ID))

	_, err = s.service.Get(s.ctx, m.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	err = s.service.Delete(s.ctx, m.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.service.Update(s.ctx, m.ID, models.UpdateRequest{FirstName: ptr("X")})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	entries := s.historyFor(m.ID)
	s.Require().Len(entries, 2)
	s.Equal(audit.ChangeDeleted, entries[0].ChangeType)

	s.Run("email is free again after deletion", func() {
		_, err := s.register("Jane", "jane@example.com")
		s.NoError(err)
	})
}

func (s *ServiceSuite) TestListActive() {
	a, err := s.register("Ann", "ann@example.com")
	s.Require().NoError(err)
	b, err := s.register("Bob", "bob@example.com")
	s.Require().NoError(err)
	s.Require().NoError(s.service.Delete(s.ctx, a.ID))

	members, err := s.service.ListActive(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(members, 1)
	s.Equal(b.ID, members[0].ID)
}

func (s *ServiceSuite) TestListAllIncludesDeleted() {
	a, err := s.register("Ann", "ann@example.com")
	s.Require().NoError(err)
	_, err = s.register("Bob", "bob@example.com")
	s.Require().NoError(err)
	s.Require().NoError(s.service.Delete(s.ctx, a.ID))

	members, err := s.service.ListAll(s.ctx)
	s.Require().NoError(err)
	s.Len(members, 2)
}

type knownEmployers map[string]bool

func (k knownEmployers) Exists(_ context.Context, employerID string) error {
	if !k[employerID] {
		return dErrors.New(dErrors.CodeNotFound, "employer not found")
	}
	return nil
}

func (s *ServiceSuite) TestEmployerReferences() {
	svc := New(memberstore.NewInMemory(), audit.NewTrail(s.history),
		WithEmployers(knownEmployers{"acme": true}))

	s.Run("unknown employer is rejected", func() {
		_, err := svc.Register(s.ctx, models.RegisterRequest{
			FirstName: "Jane", LastName: "Doe", Email: "jane@example.com", EmployerID: "globex",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("registered employer is accepted and listed", func() {
		m, err := svc.Register(s.ctx, models.RegisterRequest{
			FirstName: "Jane", LastName: "Doe", Email: "jane@example.com", EmployerID: "acme",
		})
		s.Require().NoError(err)
		_, err = svc.Register(s.ctx, models.RegisterRequest{FirstName: "Bob", LastName: "Roe", Email: "bob@example.com"})
		s.Require().NoError(err)

		members, err := svc.ListByEmployer(s.ctx, "acme")
		s.Require().NoError(err)
		s.Require().Len(members, 1)
		s.Equal(m.ID, members[0].ID)
	})

	s.Run("update to an unknown employer is rejected", func() {
		m, err := svc.Register(s.ctx, models.RegisterRequest{FirstName: "Al", LastName: "Poe", Email: "al@example.com"})
		s.Require().NoError(err)
		_, err = svc.Update(s.ctx, m.ID, models.UpdateRequest{EmployerID: ptr("globex")})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("employer id is required for the roster", func() {
		_, err := svc.ListByEmployer(s.ctx, " ")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

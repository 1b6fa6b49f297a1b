package store

import (
	"context"

	"pension/internal/member/models"
	id "pension/pkg/domain"
	"pension/pkg/email"
	"pension/pkg/platform/memstore"
	"pension/pkg/platform/paging"
)

type InMemory struct {
	rows *memstore.Table[id.MemberID, models.Member]
}

func NewInMemory() *InMemory {
	return &InMemory{rows: memstore.NewTable[id.MemberID, models.Member]()}
}

func emailClash(other, m models.Member) bool {
	return other.IsActive() && m.IsActive() && email.Equal(other.Email, m.Email)
}

// CreateIfEmailAvailable inserts m unless an active member already uses the
// email. ErrAlreadyUsed otherwise.
func (s *InMemory) CreateIfEmailAvailable(ctx context.Context, m *models.Member) error {
	return s.rows.InsertUnless(ctx, m.ID, *m, func(existing models.Member) bool {
		return emailClash(existing, *m)
	})
}

// FindByID returns the member, soft-deleted ones included.
func (s *InMemory) FindByID(ctx context.Context, memberID id.MemberID) (*models.Member, error) {
	m, err := s.rows.Get(ctx, memberID)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// List returns the members matching filter, oldest registration first.
func (s *InMemory) List(ctx context.Context, filter models.ListFilter, page paging.Page) ([]*models.Member, error) {
	rows := s.rows.Select(ctx, memstore.Query[models.Member]{
		Where: filter.Matches,
		Less:  func(a, b models.Member) bool { return a.CreatedAt.Before(b.CreatedAt) },
		Page:  page,
	})
	out := make([]*models.Member, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out, nil
}

func (s *InMemory) Execute(ctx context.Context, memberID id.MemberID, mutate func(*models.Member) error) (*models.Member, error) {
	updated, err := s.rows.UpdateUnless(ctx, memberID, mutate, emailClash)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

package store

import (
	"context"

	"pension/internal/benefit/models"
	id "pension/pkg/domain"
	"pension/pkg/platform/memstore"
	"pension/pkg/platform/paging"
)

type InMemory struct {
	rows *memstore.Table[id.BenefitID, models.Benefit]
}

func NewInMemory() *InMemory {
	return &InMemory{rows: memstore.NewTable[id.BenefitID, models.Benefit]()}
}

func (s *InMemory) Create(ctx context.Context, b *models.Benefit) error {
	return s.rows.Insert(ctx, b.ID, *b)
}

func (s *InMemory) FindByID(ctx context.Context, benefitID id.BenefitID) (*models.Benefit, error) {
	b, err := s.rows.Get(ctx, benefitID)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *InMemory) ListByMember(ctx context.Context, memberID id.MemberID, page paging.Page) ([]*models.Benefit, error) {
	rows := s.rows.Select(ctx, memstore.Query[models.Benefit]{
		Where: func(b models.Benefit) bool { return b.MemberID == memberID },
		Less:  func(a, b models.Benefit) bool { return a.CalculationDate.After(b.CalculationDate) },
		Page:  page,
	})
	out := make([]*models.Benefit, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out, nil
}

func (s *InMemory) ListIDs(ctx context.Context) ([]id.BenefitID, error) {
	return s.rows.Keys(ctx), nil
}

func (s *InMemory) Execute(ctx context.Context, benefitID id.BenefitID, mutate func(*models.Benefit)) (*models.Benefit, error) {
	updated, err := s.rows.Update(ctx, benefitID, func(b *models.Benefit) error {
		mutate(b)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

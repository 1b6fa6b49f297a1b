package store

import (
	"context"

	"pension/internal/employer/models"
	id "pension/pkg/domain"
	"pension/pkg/platform/memstore"
)

type InMemory struct {
	rows *memstore.Table[id.EmployerID, models.Employer]
}

func NewInMemory() *InMemory {
	return &InMemory{rows: memstore.NewTable[id.EmployerID, models.Employer]()}
}

// CreateIfRegistrationAvailable inserts e unless another employer holds the
// registration number. ErrAlreadyUsed otherwise.
func (s *InMemory) CreateIfRegistrationAvailable(ctx context.Context, e *models.Employer) error {
	return s.rows.InsertUnless(ctx, e.ID, *e, func(existing models.Employer) bool {
		return existing.RegistrationNumber == e.RegistrationNumber
	})
}

func (s *InMemory) FindByID(ctx context.Context, employerID id.EmployerID) (*models.Employer, error) {
	e, err := s.rows.Get(ctx, employerID)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

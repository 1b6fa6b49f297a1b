package store

import (
	"context"

	"github.com/shopspring/decimal"

	"pension/internal/contribution/models"
	id "pension/pkg/domain"
	"pension/pkg/platform/memstore"
	"pension/pkg/platform/paging"
)

// InMemory keeps contributions in process memory. The periodic uniqueness
// check and the insert happen under the table lock.
type InMemory struct {
	rows *memstore.Table[id.ContributionID, models.Contribution]
}

func NewInMemory() *InMemory {
	return &InMemory{rows: memstore.NewTable[id.ContributionID, models.Contribution]()}
}

func (s *InMemory) CreateIfPeriodAvailable(ctx context.Context, c *models.Contribution) error {
	return s.rows.InsertUnless(ctx, c.ID, *c, func(existing models.Contribution) bool {
		return c.ClashesWith(&existing)
	})
}

func (s *InMemory) FindByID(ctx context.Context, contributionID id.ContributionID) (*models.Contribution, error) {
	c, err := s.rows.Get(ctx, contributionID)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *InMemory) ListByMember(ctx context.Context, memberID id.MemberID, page paging.Page) ([]*models.Contribution, error) {
	rows := s.rows.Select(ctx, memstore.Query[models.Contribution]{
		Where: func(c models.Contribution) bool { return c.MemberID == memberID },
		Less:  newestFirst,
		Page:  page,
	})
	return pointers(rows), nil
}

func (s *InMemory) SumByMember(ctx context.Context, memberID id.MemberID) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, c := range s.rows.Select(ctx, memstore.Query[models.Contribution]{
		Where: func(c models.Contribution) bool { return c.MemberID == memberID },
	}) {
		total = total.Add(c.Amount)
	}
	return total, nil
}

func (s *InMemory) CountByMember(ctx context.Context, memberID id.MemberID) (int, error) {
	return s.rows.Count(ctx, func(c models.Contribution) bool { return c.MemberID == memberID }), nil
}

func (s *InMemory) ListIDs(ctx context.Context) ([]id.ContributionID, error) {
	return s.rows.Keys(ctx), nil
}

func (s *InMemory) Summarize(ctx context.Context) (models.Summary, error) {
	summary := models.Summary{Total: decimal.Zero}
	members := make(map[id.MemberID]struct{})
	for _, c := range s.rows.Select(ctx, memstore.Query[models.Contribution]{}) {
		summary.Count++
		summary.Total = summary.Total.Add(c.Amount)
		members[c.MemberID] = struct{}{}
	}
	summary.Members = len(members)
	return summary, nil
}

func (s *InMemory) Execute(ctx context.Context, contributionID id.ContributionID, validate func(*models.Contribution) error, mutate func(*models.Contribution)) (*models.Contribution, error) {
	updated, err := s.rows.Update(ctx, contributionID, func(c *models.Contribution) error {
		if err := validate(c); err != nil {
			return err
		}
		mutate(c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// newestFirst orders by contribution date, then creation time, descending,
// with the id as a final tie-break.
func newestFirst(a, b models.Contribution) bool {
	if !a.ContributionDate.Equal(b.ContributionDate) {
		return a.ContributionDate.After(b.ContributionDate)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID.String() < b.ID.String()
}

func pointers(rows []models.Contribution) []*models.Contribution {
	out := make([]*models.Contribution, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out
}

package store

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"

	"pension/internal/audit"
	id "pension/pkg/domain"
	"pension/pkg/platform/memstore"
	"pension/pkg/platform/paging"
)

// InMemory keeps history entries in process memory.
type InMemory struct {
	entries *memstore.Table[id.HistoryID, audit.TransactionHistory]
	seq     atomic.Int64
}

func NewInMemory() *InMemory {
	return &InMemory{entries: memstore.NewTable[id.HistoryID, audit.TransactionHistory]()}
}

func (s *InMemory) Append(ctx context.Context, entry *audit.TransactionHistory) error {
	entry.Seq = s.seq.Add(1)
	return s.entries.Insert(ctx, entry.ID, *entry)
}

func (s *InMemory) ListByEntity(ctx context.Context, entityID uuid.UUID, page paging.Page) ([]*audit.TransactionHistory, error) {
	rows := s.entries.Select(ctx, memstore.Query[audit.TransactionHistory]{
		Where: func(h audit.TransactionHistory) bool { return h.EntityID == entityID },
		Less:  func(a, b audit.TransactionHistory) bool { return a.NewerThan(&b) },
		Page:  page,
	})
	out := make([]*audit.TransactionHistory, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out, nil
}

// Count returns the number of stored entries.
func (s *InMemory) Count(ctx context.Context) int {
	return s.entries.Count(ctx, nil)
}

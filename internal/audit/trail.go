package audit

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	auditmetrics "pension/internal/audit/metrics"
	id "pension/pkg/domain"
	dErrors "pension/pkg/domain-errors"
	"pension/pkg/platform/paging"
	"pension/pkg/platform/tx"
	"pension/pkg/requestcontext"
)

// Store appends and lists history entries. Entries are immutable, so the
// store exposes no update or delete. Append assigns Seq.
type Store interface {
	Append(ctx context.Context, entry *TransactionHistory) error
	ListByEntity(ctx context.Context, entityID uuid.UUID, page paging.Page) ([]*TransactionHistory, error)
}

// Streamer receives entries once the unit of work that wrote them commits.
type Streamer interface {
	Enqueue(entry TransactionHistory)
}

// Trail is the append-only transaction history shared by every mutating
// service. Record joins the unit of work carried by ctx, so a history entry
// commits or rolls back together with the change it describes.
type Trail struct {
	store    Store
	streamer Streamer
	logger   *slog.Logger
	metrics  *auditmetrics.Metrics
}

type Option func(*Trail)

func WithLogger(logger *slog.Logger) Option {
	return func(t *Trail) {
		t.logger = logger
	}
}

func WithMetrics(m *auditmetrics.Metrics) Option {
	return func(t *Trail) {
		t.metrics = m
	}
}

// WithStreamer fans committed entries out to s.
func WithStreamer(s Streamer) Option {
	return func(t *Trail) {
		t.streamer = s
	}
}

func NewTrail(store Store, opts ...Option) *Trail {
	t := &Trail{store: store}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Record validates e, stamps it and appends it to the store.
func (t *Trail) Record(ctx context.Context, e Entry) (*TransactionHistory, error) {
	if err := e.validate(); err != nil {
		return nil, err
	}
	entry := &TransactionHistory{
		ID:            id.NewHistoryID(),
		EntityID:      e.EntityID,
		EntityType:    e.EntityType,
		ChangeType:    e.ChangeType,
		ChangeDetails: e.Details,
		CreatedAt:     requestcontext.Now(ctx),
	}
	if err := t.store.Append(ctx, entry); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to record transaction history")
	}
	if t.metrics != nil {
		t.metrics.IncRecorded(string(entry.EntityType), string(entry.ChangeType))
	}

	if t.streamer != nil {
		committed := *entry
		tx.AfterCommit(ctx, func() { t.streamer.Enqueue(committed) })
	}
	return entry, nil
}

// ListForEntity returns entries for entityID, newest first. No entries is
// an empty result.
func (t *Trail) ListForEntity(ctx context.Context, entityID uuid.UUID, page paging.Page) ([]*TransactionHistory, error) {
	if err := page.Validate(); err != nil {
		return nil, err
	}
	entries, err := t.store.ListByEntity(ctx, entityID, page)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to list transaction history")
	}
	return entries, nil
}

// RequireForEntity is ListForEntity but treats an empty page as NotFound.
func (t *Trail) RequireForEntity(ctx context.Context, entityID uuid.UUID, page paging.Page) ([]*TransactionHistory, error) {
	entries, err := t.ListForEntity(ctx, entityID, page)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		if t.logger != nil {
			t.logger.InfoContext(ctx, "no transaction history",
				"entity_id", entityID,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		return nil, dErrors.New(dErrors.CodeNotFound, "no transaction history found")
	}
	return entries, nil
}

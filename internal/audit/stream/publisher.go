// Package stream fans committed transaction history out to an external log.
// Publishing is best effort: failures are logged and counted and never reach
// the services that recorded the entries.
package stream

import (
	"context"
	"log/slog"

	"pension/internal/audit"
	auditmetrics "pension/internal/audit/metrics"
	"pension/pkg/platform/circuit"
)

const defaultBufferSize = 1024

// Sink delivers one entry to the external log.
type Sink interface {
	Publish(ctx context.Context, entry audit.TransactionHistory) error
}

// Publisher buffers committed entries and drains them to a Sink from Run.
// Enqueue never blocks; a full buffer drops the entry.
type Publisher struct {
	sink    Sink
	inbox   chan audit.TransactionHistory
	breaker *circuit.Breaker
	logger  *slog.Logger
	metrics *auditmetrics.Metrics
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m *auditmetrics.Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

func WithBufferSize(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.inbox = make(chan audit.TransactionHistory, n)
		}
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(p *Publisher) {
		p.breaker = b
	}
}

func NewPublisher(sink Sink, opts ...Option) *Publisher {
	p := &Publisher{
		sink:    sink,
		inbox:   make(chan audit.TransactionHistory, defaultBufferSize),
		breaker: circuit.New("history-stream"),
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Publisher) Enqueue(entry audit.TransactionHistory) {
	select {
	case p.inbox <- entry:
	default:
		p.logger.Warn("history stream buffer full, dropping entry", "history_id", entry.ID)
		if p.metrics != nil {
			p.metrics.IncDropped()
		}
	}
}

// Pending returns the number of buffered entries.
func (p *Publisher) Pending() int {
	return len(p.inbox)
}

// Run drains the buffer until ctx is cancelled, then flushes what is left
// with a detached context.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			p.flush(context.WithoutCancel(ctx))
			return nil
		case entry := <-p.inbox:
			p.deliver(ctx, entry)
		}
	}
}

func (p *Publisher) flush(ctx context.Context) {
	for {
		select {
		case entry := <-p.inbox:
			p.deliver(ctx, entry)
		default:
			return
		}
	}
}

func (p *Publisher) deliver(ctx context.Context, entry audit.TransactionHistory) {
	if !p.breaker.Allow() {
		p.logger.DebugContext(ctx, "history stream circuit open, dropping entry", "history_id", entry.ID)
		if p.metrics != nil {
			p.metrics.IncDropped()
		}
		return
	}

	if err := p.sink.Publish(ctx, entry); err != nil {
		if _, change := p.breaker.RecordFailure(); change.Opened {
			p.logger.WarnContext(ctx, "history stream circuit opened", "error", err)
			p.setCircuit(true)
		}
		p.drop(ctx, entry, err)
		return
	}
	if _, change := p.breaker.RecordSuccess(); change.Closed {
		p.logger.InfoContext(ctx, "history stream recovered")
		p.setCircuit(false)
	}
	p.published()
}

func (p *Publisher) drop(ctx context.Context, entry audit.TransactionHistory, err error) {
	p.logger.ErrorContext(ctx, "failed to publish history entry",
		"history_id", entry.ID,
		"entity_id", entry.EntityID,
		"error", err,
	)
	if p.metrics != nil {
		p.metrics.IncFailure()
	}
}

func (p *Publisher) published() {
	if p.metrics != nil {
		p.metrics.IncPublished()
	}
}

func (p *Publisher) setCircuit(open bool) {
	if p.metrics != nil {
		p.metrics.SetCircuitOpen(open)
	}
}

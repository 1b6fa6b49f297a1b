// Package scheduler runs the recurring ledger jobs on cron schedules.
//
// Each task has at most one execution in flight: a local TryLock guards this
// instance and an optional Locker guards the fleet. A firing that finds the
// task busy is skipped and logged; the next firing is the retry.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"

	schedulermetrics "pension/internal/scheduler/metrics"
	dErrors "pension/pkg/domain-errors"
	"pension/pkg/platform/batch"
	"pension/pkg/platform/tracing"
	"pension/pkg/requestcontext"
)

// JobFunc is the work of one task. Per-record failures belong in the
// Result; the error is for failures of the run as a whole.
type JobFunc func(ctx context.Context) (batch.Result, error)

// Task binds a name to a standard five-field cron expression.
type Task struct {
	Name string
	Spec string
	Run  JobFunc
}

// Triggers.
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

// Statuses of a RunRecord.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// ErrTaskBusy is returned by RunNow when the task is already executing.
var ErrTaskBusy = dErrors.New(dErrors.CodeConflict, "task is already running")

// RunRecord describes one execution attempt.
type RunRecord struct {
	Task       string        `json:"task"`
	Trigger    string        `json:"trigger"`
	Status     string        `json:"status"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration_ns"`
	Result     batch.Result  `json:"result"`
	Error      string        `json:"error,omitempty"`
}

// TaskInfo is the listing view of a task.
type TaskInfo struct {
	Name    string     `json:"name"`
	Spec    string     `json:"spec"`
	Next    time.Time  `json:"next"`
	Running bool       `json:"running"`
	LastRun *RunRecord `json:"last_run,omitempty"`
}

type task struct {
	Task
	schedule cron.Schedule
	running  sync.Mutex

	mu      sync.Mutex
	lastRun *RunRecord
	busy    bool
}

type Scheduler struct {
	tasks    map[string]*task
	order    []string
	cron     *cron.Cron
	location *time.Location
	locker   Locker
	logger   *slog.Logger
	metrics  *schedulermetrics.Metrics

	mu      sync.Mutex
	baseCtx context.Context
}

type Option func(*Scheduler)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

func WithMetrics(m *schedulermetrics.Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// WithLocker adds a cross-instance guard. Without one only the local guard
// applies.
func WithLocker(l Locker) Option {
	return func(s *Scheduler) {
		s.locker = l
	}
}

// WithLocation sets the zone cron expressions are evaluated in. Defaults to UTC.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		s.location = loc
	}
}

// New validates the tasks and parses their cron expressions.
func New(tasks []Task, opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		tasks:    make(map[string]*task, len(tasks)),
		location: time.UTC,
		logger:   slog.New(slog.DiscardHandler),
		baseCtx:  context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, t := range tasks {
		if t.Name == "" {
			return nil, errors.New("task name is required")
		}
		if t.Run == nil {
			return nil, fmt.Errorf("task %s has no job", t.Name)
		}
		if _, dup := s.tasks[t.Name]; dup {
			return nil, fmt.Errorf("duplicate task %s", t.Name)
		}
		sched, err := cron.ParseStandard(t.Spec)
		if err != nil {
			return nil, fmt.Errorf("task %s: invalid cron %q: %w", t.Name, t.Spec, err)
		}
		s.tasks[t.Name] = &task{Task: t, schedule: sched}
		s.order = append(s.order, t.Name)
	}

	s.cron = cron.New(cron.WithLocation(s.location))
	for _, name := range s.order {
		t := s.tasks[name]
		s.cron.Schedule(t.schedule, cron.FuncJob(func() {
			_, _ = s.execute(s.context(), t, TriggerSchedule)
		}))
	}
	return s, nil
}

// Run starts the timer loop and blocks until ctx is cancelled. Executions in
// flight see the cancellation and Run waits for them to return.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "scheduler started", "tasks", len(s.order), "location", s.location.String())
	s.cron.Start()
	<-ctx.Done()

	<-s.cron.Stop().Done()
	s.logger.InfoContext(ctx, "scheduler stopped")
	return nil
}

func (s *Scheduler) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseCtx
}

// RunNow executes the named task immediately on the caller's goroutine.
// NotFound for an unknown task; ErrTaskBusy when an execution is in flight.
func (s *Scheduler) RunNow(ctx context.Context, name string) (RunRecord, error) {
	t, ok := s.tasks[name]
	if !ok {
		return RunRecord{}, dErrors.New(dErrors.CodeNotFound, "unknown task "+name)
	}
	rec, err := s.execute(ctx, t, TriggerManual)
	if err != nil {
		return rec, err
	}
	if rec.Status == StatusSkipped {
		return rec, ErrTaskBusy
	}
	return rec, nil
}

// Tasks lists the tasks in registration order with their next fire time.
func (s *Scheduler) Tasks() []TaskInfo {
	now := time.Now().In(s.location)
	out := make([]TaskInfo, 0, len(s.order))
	for _, name := range s.order {
		t := s.tasks[name]
		t.mu.Lock()
		info := TaskInfo{
			Name:    t.Name,
			Spec:    t.Spec,
			Next:    t.schedule.Next(now),
			Running: t.busy,
		}
		if t.lastRun != nil {
			last := *t.lastRun
			info.LastRun = &last
		}
		t.mu.Unlock()
		out = append(out, info)
	}
	return out
}

// Names returns the task names in registration order.
func (s *Scheduler) Names() []string {
	return slices.Clone(s.order)
}

// execute runs t once under both guards. A skipped run is not an error.
// The returned error is set only when the job itself failed.
func (s *Scheduler) execute(ctx context.Context, t *task, trigger string) (rec RunRecord, err error) {
	start := time.Now()
	rec = RunRecord{Task: t.Name, Trigger: trigger, StartedAt: start}
	ctx = requestcontext.WithJob(ctx, t.Name)

	if !t.running.TryLock() {
		return s.skip(ctx, t, rec, "previous execution still running"), nil
	}
	defer t.running.Unlock()

	if s.locker != nil {
		unlock, acquired, lockErr := s.locker.TryLock(ctx, t.Name)
		if lockErr != nil {
			// an unreachable lock store means the task does not run
			rec = s.finish(ctx, t, rec, batch.Result{}, lockErr)
			return rec, lockErr
		}
		if !acquired {
			return s.skip(ctx, t, rec, "held by another instance"), nil
		}
		defer unlock()
	}

	ctx, span := tracing.Start(ctx, "scheduler.task",
		attribute.String("task", t.Name),
		attribute.String("trigger", trigger),
	)
	defer func() { tracing.End(span, err) }()

	// one timestamp for every record the run touches
	ctx = requestcontext.WithTime(ctx, start.UTC())

	s.setBusy(t, true)
	defer s.setBusy(t, false)
	s.logger.InfoContext(ctx, "task started", "task", t.Name, "trigger", trigger)

	result, err := s.invoke(ctx, t)
	span.SetAttributes(attribute.Int("succeeded", result.Succeeded), attribute.Int("failed", result.Failed))
	rec = s.finish(ctx, t, rec, result, err)
	return rec, err
}

func (s *Scheduler) invoke(ctx context.Context, t *task) (result batch.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = dErrors.New(dErrors.CodeInternal, fmt.Sprintf("task panicked: %v", r))
		}
	}()
	return t.Run(ctx)
}

func (s *Scheduler) skip(ctx context.Context, t *task, rec RunRecord, reason string) RunRecord {
	rec.Status = StatusSkipped
	rec.FinishedAt = time.Now()
	s.logger.WarnContext(ctx, "task skipped", "task", t.Name, "trigger", rec.Trigger, "reason", reason)
	if s.metrics != nil {
		s.metrics.IncRun(t.Name, schedulermetrics.ResultSkipped)
	}
	return rec
}

func (s *Scheduler) finish(ctx context.Context, t *task, rec RunRecord, result batch.Result, err error) RunRecord {
	rec.FinishedAt = time.Now()
	rec.Duration = rec.FinishedAt.Sub(rec.StartedAt)
	rec.Result = result

	outcome := schedulermetrics.ResultSuccess
	if err != nil {
		rec.Status = StatusFailed
		rec.Error = err.Error()
		outcome = schedulermetrics.ResultFailure
		s.logger.ErrorContext(ctx, "task failed",
			"task", t.Name,
			"trigger", rec.Trigger,
			"duration", rec.Duration,
			"error", err,
		)
	} else {
		rec.Status = StatusSucceeded
		s.logger.InfoContext(ctx, "task finished",
			"task", t.Name,
			"trigger", rec.Trigger,
			"duration", rec.Duration,
			"outcome", result.Summary(),
		)
	}
	if s.metrics != nil {
		s.metrics.IncRun(t.Name, outcome)
		s.metrics.ObserveRun(t.Name, rec.StartedAt, result.Failed)
	}

	t.mu.Lock()
	last := rec
	t.lastRun = &last
	t.mu.Unlock()
	return rec
}

func (s *Scheduler) setBusy(t *task, busy bool) {
	t.mu.Lock()
	t.busy = busy
	t.mu.Unlock()
	if s.metrics != nil {
		s.metrics.SetRunning(t.Name, busy)
	}
}

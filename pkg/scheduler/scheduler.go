// Package scheduler implements the polling trigger scheduler: every tick it
// finds due time-based triggers, takes an exclusive execution lock per
// trigger, runs its actions and reschedules it. Multiple worker processes run
// the same poller against the same store; the lock guarantees at most one
// executor per due occurrence.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/practiq/automation/pkg/models"
	"github.com/practiq/automation/pkg/otelhelper"
	"github.com/practiq/automation/pkg/persistence"
	"github.com/practiq/automation/pkg/protocol"
)

const (
	// DefaultPollInterval is how often each worker checks for due triggers.
	DefaultPollInterval = time.Minute

	// LockStalenessWindow is the fixed duration after which a held lock is
	// considered abandoned and reclaimable by another worker.
	LockStalenessWindow = 5 * time.Minute
)

// TriggerScheduler polls for due triggers on a fixed interval. Construct one
// per process and start it from the process's startup routine.
type TriggerScheduler struct {
	workerID string
	triggers persistence.TriggerRepository
	executor protocol.ActionExecutor
	logger   *slog.Logger
	tracer   trace.Tracer
	interval time.Duration

	ticker  *time.Ticker
	done    chan bool
	started bool
	mu      sync.RWMutex
}

// Option configures a TriggerScheduler.
type Option func(*TriggerScheduler)

// WithPollInterval overrides the default 60s poll interval.
func WithPollInterval(interval time.Duration) Option {
	return func(s *TriggerScheduler) {
		s.interval = interval
	}
}

// WithTracer sets the tracer used for per-trigger spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *TriggerScheduler) {
		s.tracer = tracer
	}
}

// NewTriggerScheduler creates a scheduler bound to a trigger store and an
// action-execution collaborator.
func NewTriggerScheduler(
	workerID string,
	triggers persistence.TriggerRepository,
	executor protocol.ActionExecutor,
	logger *slog.Logger,
	opts ...Option,
) *TriggerScheduler {
	scheduler := &TriggerScheduler{
		workerID: workerID,
		triggers: triggers,
		executor: executor,
		logger:   logger.With("module", "trigger_scheduler", "worker_id", workerID),
		tracer:   otel.Tracer("trigger-scheduler"),
		interval: DefaultPollInterval,
	}

	for _, opt := range opts {
		opt(scheduler)
	}

	return scheduler
}

// Start begins the polling loop. Starting an already-started scheduler is a
// no-op.
func (s *TriggerScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.InfoContext(ctx, "Starting trigger scheduler", "poll_interval", s.interval)

	s.ticker = time.NewTicker(s.interval)
	s.done = make(chan bool)
	s.started = true

	go s.poll(ctx)

	return nil
}

// Stop shuts the polling loop down. Stopping a stopped scheduler is a no-op.
func (s *TriggerScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger.InfoContext(ctx, "Stopping trigger scheduler")

	if s.ticker != nil {
		s.ticker.Stop()
	}

	select {
	case s.done <- true:
	default:
	}

	s.started = false

	return nil
}

func (s *TriggerScheduler) poll(ctx context.Context) {
	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-s.ticker.C:
			s.ProcessDueTriggers(ctx)
		}
	}
}

// ProcessDueTriggers runs one tick: it queries every due trigger and
// processes each independently, in the order the store returned them. A
// failure in one trigger never aborts the others; a failing due query skips
// the tick entirely and the next tick retries naturally.
func (s *TriggerScheduler) ProcessDueTriggers(ctx context.Context) {
	now := time.Now().UTC()

	due, err := s.triggers.DueTriggers(ctx, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to query due triggers", "error", err)

		return
	}

	if len(due) > 0 {
		s.logger.InfoContext(ctx, "Processing due triggers", "count", len(due))
	}

	for _, trigger := range due {
		s.processTrigger(ctx, trigger, now)
	}
}

// processTrigger executes one due trigger under the execution lock. The lock,
// once acquired, is always released before returning, with one of three
// outcomes: a freshly computed next execution, a fallback next execution
// recomputed from "now" after an action failure, or the stored value
// preserved unchanged when no schedule can be computed.
func (s *TriggerScheduler) processTrigger(ctx context.Context, trigger *models.Trigger, now time.Time) {
	logger := s.logger.With("trigger_id", trigger.ID, "trigger_name", trigger.Name)

	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "scheduler.process_trigger",
		attribute.String(otelhelper.TriggerIDKey, trigger.ID),
		attribute.String(otelhelper.TriggerNameKey, trigger.Name),
		attribute.String(otelhelper.ScheduleTypeKey, string(trigger.ScheduleType)),
		attribute.String(otelhelper.WorkerIDKey, s.workerID),
	)
	defer span.End()

	acquired, err := s.triggers.AcquireTriggerLock(ctx, trigger.ID, now, now.Add(-LockStalenessWindow))
	if err != nil {
		logger.ErrorContext(ctx, "Failed to acquire trigger lock", "error", err)
		otelhelper.SetError(span, err)

		return
	}

	if !acquired {
		// Another worker owns this trigger; treat it like "not due yet".
		logger.DebugContext(ctx, "Trigger locked by another worker, skipping")

		return
	}

	executedAt := time.Now().UTC()

	execErr := s.executor.ExecuteActions(ctx, trigger.Actions, protocol.ExecutionContext{
		TriggerID:      trigger.ID,
		TriggerName:    trigger.Name,
		OrganizationID: trigger.OrganizationID,
		WorkflowID:     stringValue(trigger.WorkflowID),
		Event:          string(trigger.ScheduleType),
		ExecutedAt:     executedAt,
	})
	if execErr != nil {
		logger.ErrorContext(ctx, "Trigger action execution failed", "error", execErr)
		otelhelper.SetError(span, execErr)
	}

	release := s.releaseOutcome(ctx, trigger, executedAt, execErr)

	if err := s.triggers.ReleaseTriggerLock(ctx, trigger.ID, release); err != nil {
		// The staleness window lets another worker reclaim the trigger.
		logger.ErrorContext(ctx, "Failed to release trigger lock", "error", err)
		otelhelper.SetError(span, err)

		return
	}

	if execErr == nil {
		logger.InfoContext(ctx, "Trigger executed",
			"schedule_type", trigger.ScheduleType,
			"next_execution", release.NextExecution)
	}
}

// releaseOutcome decides how the lock is released after an execution attempt.
func (s *TriggerScheduler) releaseOutcome(ctx context.Context, trigger *models.Trigger, executedAt time.Time, execErr error) persistence.TriggerLockRelease {
	release := persistence.TriggerLockRelease{LastExecuted: &executedAt}

	if trigger.ScheduleType == models.ScheduleTypeOneTime {
		// One-shot: disabled after its single run, successful or not.
		release.Disable = true
		release.PreserveNextExecution = true

		return release
	}

	reference := executedAt
	if execErr != nil {
		// Fallback: recompute from "now" so one failed run does not stall a
		// recurring trigger.
		reference = time.Now().UTC()
	}

	next, ok := models.NextCronExecution(trigger.CronExpression, reference)
	if !ok {
		// Malformed expression: keep the stored next execution unchanged so
		// the trigger stays eligible for a later tick instead of vanishing.
		s.logger.WarnContext(ctx, "Cannot compute next execution, preserving schedule",
			"trigger_id", trigger.ID,
			"cron_expression", trigger.CronExpression)

		release.PreserveNextExecution = true

		return release
	}

	release.NextExecution = &next

	return release
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}

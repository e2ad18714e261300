package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/practiq/automation/pkg/mocks"
	"github.com/practiq/automation/pkg/models"
	"github.com/practiq/automation/pkg/persistence/memory"
	"github.com/practiq/automation/pkg/protocol"
)

func newTestScheduler(store *memory.Persistence, executor *mocks.MockActionExecutor) *TriggerScheduler {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	return NewTriggerScheduler("worker-test", store, executor, logger)
}

func seedDueCronTrigger(t *testing.T, store *memory.Persistence, id, expr string) *models.Trigger {
	t.Helper()

	yesterday := time.Now().UTC().Add(-24 * time.Hour)
	trigger := &models.Trigger{
		ID:             id,
		OrganizationID: "org-1",
		Name:           "nightly digest",
		Enabled:        true,
		ScheduleType:   models.ScheduleTypeCron,
		CronExpression: expr,
		NextExecution:  &yesterday,
		Actions:        []models.ActionConfig{{Type: "send_email"}},
	}
	require.NoError(t, store.SaveTrigger(context.Background(), trigger))

	return trigger
}

func TestProcessDueTriggersExecutesAndReschedules(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()
	executor := new(mocks.MockActionExecutor)

	seedDueCronTrigger(t, store, "trg-1", "0 0 * * *")

	executor.On("ExecuteActions", mock.Anything, mock.Anything, mock.MatchedBy(func(execCtx protocol.ExecutionContext) bool {
		return execCtx.TriggerID == "trg-1" &&
			execCtx.OrganizationID == "org-1" &&
			execCtx.Event == string(models.ScheduleTypeCron)
	})).Return(nil).Once()

	scheduler := newTestScheduler(store, executor)
	scheduler.ProcessDueTriggers(ctx)

	executor.AssertExpectations(t)

	stored, err := store.TriggerByID(ctx, "trg-1")
	require.NoError(t, err)

	assert.Nil(t, stored.LockedAt, "lock is always released")
	assert.NotNil(t, stored.LastExecuted)
	require.NotNil(t, stored.NextExecution)
	assert.True(t, stored.NextExecution.After(time.Now().UTC()),
		"next execution is strictly after the run: got %v", stored.NextExecution)

	// The next midnight after execution.
	expected, ok := models.NextCronExecution("0 0 * * *", *stored.LastExecuted)
	require.True(t, ok)
	assert.Equal(t, expected, *stored.NextExecution)

	// No longer due; a second tick must not re-execute.
	scheduler.ProcessDueTriggers(ctx)
	executor.AssertNumberOfCalls(t, "ExecuteActions", 1)
}

func TestOneTimeTriggerDisabledAfterRun(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()
	executor := new(mocks.MockActionExecutor)

	due := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, store.SaveTrigger(ctx, &models.Trigger{
		ID:             "trg-once",
		OrganizationID: "org-1",
		Name:           "welcome email",
		Enabled:        true,
		ScheduleType:   models.ScheduleTypeOneTime,
		NextExecution:  &due,
	}))

	executor.On("ExecuteActions", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	scheduler := newTestScheduler(store, executor)
	scheduler.ProcessDueTriggers(ctx)

	stored, err := store.TriggerByID(ctx, "trg-once")
	require.NoError(t, err)
	assert.False(t, stored.Enabled)
	assert.Nil(t, stored.LockedAt)

	due2, err := store.DueTriggers(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Empty(t, due2, "a one-time trigger never comes back after its run")
}

func TestOneTimeTriggerDisabledEvenOnFailure(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()
	executor := new(mocks.MockActionExecutor)

	due := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, store.SaveTrigger(ctx, &models.Trigger{
		ID:             "trg-once",
		OrganizationID: "org-1",
		Name:           "welcome email",
		Enabled:        true,
		ScheduleType:   models.ScheduleTypeOneTime,
		NextExecution:  &due,
	}))

	executor.On("ExecuteActions", mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("smtp unavailable")).Once()

	newTestScheduler(store, executor).ProcessDueTriggers(ctx)

	stored, err := store.TriggerByID(ctx, "trg-once")
	require.NoError(t, err)
	assert.False(t, stored.Enabled)
}

func TestExecutionFailureFallsBackToFreshSchedule(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()
	executor := new(mocks.MockActionExecutor)

	seedDueCronTrigger(t, store, "trg-1", "0 0 * * *")

	executor.On("ExecuteActions", mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("action engine down")).Once()

	newTestScheduler(store, executor).ProcessDueTriggers(ctx)

	stored, err := store.TriggerByID(ctx, "trg-1")
	require.NoError(t, err)

	assert.Nil(t, stored.LockedAt)
	assert.True(t, stored.Enabled, "a failed run never disables a cron trigger")
	require.NotNil(t, stored.NextExecution)
	assert.True(t, stored.NextExecution.After(time.Now().UTC().Add(-time.Minute)),
		"fallback schedule is recomputed from now")
}

func TestMalformedCronPreservesNextExecution(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()
	executor := new(mocks.MockActionExecutor)

	trigger := seedDueCronTrigger(t, store, "trg-bad", "not a cron")
	previous := *trigger.NextExecution

	executor.On("ExecuteActions", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	newTestScheduler(store, executor).ProcessDueTriggers(ctx)

	stored, err := store.TriggerByID(ctx, "trg-bad")
	require.NoError(t, err)

	assert.Nil(t, stored.LockedAt)
	assert.True(t, stored.Enabled)
	require.NotNil(t, stored.NextExecution)
	assert.Equal(t, previous, *stored.NextExecution,
		"a trigger whose schedule cannot be recomputed keeps its stored value and is retried later")
}

func TestLockedTriggerIsSkippedSilently(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()
	executor := new(mocks.MockActionExecutor)

	trigger := seedDueCronTrigger(t, store, "trg-1", "0 0 * * *")

	// Simulate another worker holding a fresh lock.
	now := time.Now().UTC()
	ok, err := store.AcquireTriggerLock(ctx, trigger.ID, now, now.Add(-LockStalenessWindow))
	require.NoError(t, err)
	require.True(t, ok)

	newTestScheduler(store, executor).ProcessDueTriggers(ctx)

	executor.AssertNotCalled(t, "ExecuteActions", mock.Anything, mock.Anything, mock.Anything)
}

func TestFailureInOneTriggerDoesNotAbortOthers(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()
	executor := new(mocks.MockActionExecutor)

	first := seedDueCronTrigger(t, store, "trg-a", "0 0 * * *")
	// Make trg-a due earlier so the tick processes it first.
	earlier := first.NextExecution.Add(-time.Hour)
	first.NextExecution = &earlier
	require.NoError(t, store.SaveTrigger(ctx, first))

	seedDueCronTrigger(t, store, "trg-b", "0 0 * * *")

	executor.On("ExecuteActions", mock.Anything, mock.Anything, mock.MatchedBy(func(execCtx protocol.ExecutionContext) bool {
		return execCtx.TriggerID == "trg-a"
	})).Return(errors.New("boom")).Once()
	executor.On("ExecuteActions", mock.Anything, mock.Anything, mock.MatchedBy(func(execCtx protocol.ExecutionContext) bool {
		return execCtx.TriggerID == "trg-b"
	})).Return(nil).Once()

	newTestScheduler(store, executor).ProcessDueTriggers(ctx)

	executor.AssertExpectations(t)
}

func TestStartStopLifecycle(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPersistence()
	executor := new(mocks.MockActionExecutor)

	scheduler := NewTriggerScheduler("worker-test", store, executor,
		slog.New(slog.NewTextHandler(os.Stdout, nil)),
		WithPollInterval(10*time.Millisecond))

	require.NoError(t, scheduler.Start(ctx))
	require.NoError(t, scheduler.Start(ctx), "double start is a no-op")

	time.Sleep(30 * time.Millisecond)

	require.NoError(t, scheduler.Stop(ctx))
	require.NoError(t, scheduler.Stop(ctx), "double stop is a no-op")
}

package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/practiq/automation/pkg/models"
	"github.com/practiq/automation/pkg/persistence"
)

func TestAcquireTriggerLockIsExclusive(t *testing.T) {
	ctx := context.Background()
	store := NewPersistence()

	trigger, err := models.NewTrigger("trg-1", "org-1", "nightly report", models.ScheduleTypeCron, "0 0 * * *", nil)
	require.NoError(t, err)
	require.NoError(t, store.SaveTrigger(ctx, trigger))

	now := time.Now().UTC()
	staleBefore := now.Add(-5 * time.Minute)

	const workers = 16

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		acquired int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			ok, err := store.AcquireTriggerLock(ctx, trigger.ID, now, staleBefore)
			assert.NoError(t, err)

			if ok {
				mu.Lock()
				acquired++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, 1, acquired, "exactly one concurrent acquire must win")
}

func TestAcquireTriggerLockReclaimsStaleLock(t *testing.T) {
	ctx := context.Background()
	store := NewPersistence()

	trigger, err := models.NewTrigger("trg-1", "org-1", "nightly report", models.ScheduleTypeCron, "0 0 * * *", nil)
	require.NoError(t, err)

	stale := time.Now().UTC().Add(-10 * time.Minute)
	trigger.LockedAt = &stale
	require.NoError(t, store.SaveTrigger(ctx, trigger))

	now := time.Now().UTC()

	ok, err := store.AcquireTriggerLock(ctx, trigger.ID, now, now.Add(-5*time.Minute))
	require.NoError(t, err)
	assert.True(t, ok, "a lock older than the staleness window is reclaimable")
}

func TestReleaseTriggerLockOutcomes(t *testing.T) {
	ctx := context.Background()
	executedAt := time.Now().UTC()

	t.Run("fresh next execution", func(t *testing.T) {
		store := NewPersistence()
		trigger := seedLockedTrigger(t, store)

		next := executedAt.Add(24 * time.Hour)
		err := store.ReleaseTriggerLock(ctx, trigger.ID, persistence.TriggerLockRelease{
			NextExecution: &next,
			LastExecuted:  &executedAt,
		})
		require.NoError(t, err)

		stored, err := store.TriggerByID(ctx, trigger.ID)
		require.NoError(t, err)
		assert.Nil(t, stored.LockedAt)
		assert.True(t, stored.Enabled)
		require.NotNil(t, stored.NextExecution)
		assert.Equal(t, next, *stored.NextExecution)
	})

	t.Run("preserve keeps stored value", func(t *testing.T) {
		store := NewPersistence()
		trigger := seedLockedTrigger(t, store)
		previous := *trigger.NextExecution

		err := store.ReleaseTriggerLock(ctx, trigger.ID, persistence.TriggerLockRelease{
			PreserveNextExecution: true,
			LastExecuted:          &executedAt,
		})
		require.NoError(t, err)

		stored, err := store.TriggerByID(ctx, trigger.ID)
		require.NoError(t, err)
		assert.Nil(t, stored.LockedAt)
		require.NotNil(t, stored.NextExecution)
		assert.Equal(t, previous, *stored.NextExecution)
	})

	t.Run("disable flips enabled off", func(t *testing.T) {
		store := NewPersistence()
		trigger := seedLockedTrigger(t, store)

		err := store.ReleaseTriggerLock(ctx, trigger.ID, persistence.TriggerLockRelease{
			PreserveNextExecution: true,
			Disable:               true,
			LastExecuted:          &executedAt,
		})
		require.NoError(t, err)

		stored, err := store.TriggerByID(ctx, trigger.ID)
		require.NoError(t, err)
		assert.False(t, stored.Enabled)

		due, err := store.DueTriggers(ctx, executedAt.Add(48*time.Hour))
		require.NoError(t, err)
		assert.Empty(t, due, "a disabled trigger is never returned as due")
	})
}

func TestDueTriggersOrdering(t *testing.T) {
	ctx := context.Background()
	store := NewPersistence()
	now := time.Now().UTC()

	later := now.Add(-time.Minute)
	earlier := now.Add(-time.Hour)

	require.NoError(t, store.SaveTrigger(ctx, &models.Trigger{
		ID: "trg-later", OrganizationID: "org-1", Name: "later", Enabled: true,
		ScheduleType: models.ScheduleTypeCron, CronExpression: "* * * * *", NextExecution: &later,
	}))
	require.NoError(t, store.SaveTrigger(ctx, &models.Trigger{
		ID: "trg-earlier", OrganizationID: "org-1", Name: "earlier", Enabled: true,
		ScheduleType: models.ScheduleTypeCron, CronExpression: "* * * * *", NextExecution: &earlier,
	}))

	due, err := store.DueTriggers(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "trg-earlier", due[0].ID)
	assert.Equal(t, "trg-later", due[1].ID)
}

func seedLockedTrigger(t *testing.T, store *Persistence) *models.Trigger {
	t.Helper()

	ctx := context.Background()

	trigger, err := models.NewTrigger("trg-1", "org-1", "nightly report", models.ScheduleTypeCron, "0 0 * * *", nil)
	require.NoError(t, err)
	require.NoError(t, store.SaveTrigger(ctx, trigger))

	now := time.Now().UTC()

	ok, err := store.AcquireTriggerLock(ctx, trigger.ID, now, now.Add(-5*time.Minute))
	require.NoError(t, err)
	require.True(t, ok)

	stored, err := store.TriggerByID(ctx, trigger.ID)
	require.NoError(t, err)

	return stored
}

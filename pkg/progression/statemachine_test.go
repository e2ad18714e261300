package progression

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/practiq/automation/pkg/models"
	"github.com/practiq/automation/pkg/persistence"
	"github.com/practiq/automation/pkg/persistence/memory"
)

func newTestMachine() (*StateMachine, *memory.Persistence) {
	store := memory.NewPersistence()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	return NewStateMachine(store, logger), store
}

// Builds: workflow wf-1 > stage stg-1 > step stp-1 > tasks per the caller.
func seedHierarchy(store *memory.Persistence) {
	store.AddWorkflow(&models.Workflow{ID: "wf-1", Name: "Tax return", Status: models.NodeStatusPending})
	store.AddStage(&models.Stage{ID: "stg-1", WorkflowID: "wf-1", Position: 0, Status: models.NodeStatusPending})
	store.AddStep(&models.Step{ID: "stp-1", StageID: "stg-1", Position: 0, Status: models.NodeStatusPending})
}

func TestCompleteTaskIdempotent(t *testing.T) {
	machine, store := newTestMachine()
	ctx := context.Background()

	seedHierarchy(store)
	store.AddTask(&models.Task{ID: "tsk-1", StepID: "stp-1", Status: models.NodeStatusPending})

	first, err := machine.CompleteTask(ctx, "tsk-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.NodeStatusCompleted, first.Status)

	second, err := machine.CompleteTask(ctx, "tsk-1", "user-2")
	require.NoError(t, err)
	assert.Equal(t, models.NodeStatusCompleted, second.Status)

	stored, err := store.TaskByID(ctx, "tsk-1")
	require.NoError(t, err)
	require.NotNil(t, stored.CompletedBy)
	assert.Equal(t, "user-1", *stored.CompletedBy, "second call must not restamp the task")
}

func TestCompleteTaskNotFound(t *testing.T) {
	machine, _ := newTestMachine()

	_, err := machine.CompleteTask(context.Background(), "missing", "user-1")
	assert.ErrorIs(t, err, persistence.ErrTaskNotFound)
}

func TestCascadeRequiresEveryTask(t *testing.T) {
	// Step with T1 (subtasks S1, S2) and T2 (no sub-work). The step completes
	// only once T1 auto-completed via its subtasks AND T2 completed directly.
	machine, store := newTestMachine()
	ctx := context.Background()

	seedHierarchy(store)
	store.AddTask(&models.Task{ID: "t1", StepID: "stp-1", Status: models.NodeStatusPending})
	store.AddTask(&models.Task{ID: "t2", StepID: "stp-1", Status: models.NodeStatusPending})
	store.AddSubtask(&models.Subtask{ID: "s1", TaskID: "t1", Status: models.NodeStatusPending})
	store.AddSubtask(&models.Subtask{ID: "s2", TaskID: "t1", Status: models.NodeStatusPending})

	_, err := machine.CompleteSubtask(ctx, "s1", "user-1")
	require.NoError(t, err)

	_, err = machine.CompleteSubtask(ctx, "s2", "user-1")
	require.NoError(t, err)

	t1, err := store.TaskByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.NodeStatusCompleted, t1.Status, "t1 auto-completes from its subtasks")

	t2, err := store.TaskByID(ctx, "t2")
	require.NoError(t, err)
	assert.Equal(t, models.NodeStatusPending, t2.Status, "a task with no sub-work is never auto-completed")

	step, err := store.StepByID(ctx, "stp-1")
	require.NoError(t, err)
	assert.Equal(t, models.NodeStatusPending, step.Status, "step stays pending while t2 is open")

	_, err = machine.CompleteTask(ctx, "t2", "user-1")
	require.NoError(t, err)

	step, err = store.StepByID(ctx, "stp-1")
	require.NoError(t, err)
	assert.Equal(t, models.NodeStatusCompleted, step.Status)

	stage, err := store.StageByID(ctx, "stg-1")
	require.NoError(t, err)
	assert.Equal(t, models.NodeStatusCompleted, stage.Status)

	workflow, err := store.WorkflowByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, models.NodeStatusCompleted, workflow.Status)
}

func TestStepEscapeHatchNeverAutoCompletes(t *testing.T) {
	machine, store := newTestMachine()
	ctx := context.Background()

	manual := false

	seedHierarchy(store)
	store.AddStep(&models.Step{
		ID: "stp-manual", StageID: "stg-1", Position: 1,
		Status:                     models.NodeStatusPending,
		RequireAllChildrenComplete: &manual,
	})
	store.AddTask(&models.Task{ID: "t1", StepID: "stp-manual", Status: models.NodeStatusPending})

	_, err := machine.CompleteTask(ctx, "t1", "user-1")
	require.NoError(t, err)

	step, err := store.StepByID(ctx, "stp-manual")
	require.NoError(t, err)
	assert.Equal(t, models.NodeStatusPending, step.Status,
		"a step with require_all_children_complete=false must be completed directly")
}

func TestChecklistGateAndUncheck(t *testing.T) {
	machine, store := newTestMachine()
	ctx := context.Background()

	seedHierarchy(store)
	store.AddTask(&models.Task{ID: "t1", StepID: "stp-1", Status: models.NodeStatusPending})
	store.AddChecklistItem(&models.ChecklistItem{ID: "c1", TaskID: "t1"})
	store.AddChecklistItem(&models.ChecklistItem{ID: "c2", TaskID: "t1"})

	_, err := machine.ToggleChecklistItem(ctx, "c1", "user-1")
	require.NoError(t, err)

	task, err := store.TaskByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.NodeStatusPending, task.Status)

	_, err = machine.ToggleChecklistItem(ctx, "c2", "user-1")
	require.NoError(t, err)

	task, err = store.TaskByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.NodeStatusCompleted, task.Status)

	// Unchecking afterwards must not un-complete the task.
	item, err := machine.ToggleChecklistItem(ctx, "c1", "user-1")
	require.NoError(t, err)
	assert.False(t, item.Checked)

	task, err = store.TaskByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.NodeStatusCompleted, task.Status)
}

func TestSubtasksAndChecklistBothGateTheTask(t *testing.T) {
	machine, store := newTestMachine()
	ctx := context.Background()

	seedHierarchy(store)
	store.AddTask(&models.Task{ID: "t1", StepID: "stp-1", Status: models.NodeStatusPending})
	store.AddSubtask(&models.Subtask{ID: "s1", TaskID: "t1", Status: models.NodeStatusPending})
	store.AddChecklistItem(&models.ChecklistItem{ID: "c1", TaskID: "t1"})

	_, err := machine.CompleteSubtask(ctx, "s1", "user-1")
	require.NoError(t, err)

	task, err := store.TaskByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.NodeStatusPending, task.Status, "open checklist item keeps the task pending")

	_, err = machine.ToggleChecklistItem(ctx, "c1", "user-1")
	require.NoError(t, err)

	task, err = store.TaskByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.NodeStatusCompleted, task.Status)
}

func TestEmptyStepIsNeverAutoCompleted(t *testing.T) {
	machine, store := newTestMachine()
	ctx := context.Background()

	seedHierarchy(store)
	store.AddStep(&models.Step{ID: "stp-empty", StageID: "stg-1", Position: 1, Status: models.NodeStatusPending})
	store.AddTask(&models.Task{ID: "t1", StepID: "stp-1", Status: models.NodeStatusPending})

	_, err := machine.CompleteTask(ctx, "t1", "user-1")
	require.NoError(t, err)

	// stp-1 completed, but the stage holds an empty pending step.
	stage, err := store.StageByID(ctx, "stg-1")
	require.NoError(t, err)
	assert.Equal(t, models.NodeStatusPending, stage.Status)
}

// Package memory provides an in-memory persistence implementation for tests
// and local development. Lock and completion writes keep the same
// compare-and-set semantics as the SQL backend.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/practiq/automation/pkg/models"
	"github.com/practiq/automation/pkg/persistence"
)

// Persistence implements persistence.Persistence with mutex-guarded maps.
type Persistence struct {
	mu sync.Mutex

	triggers       map[string]*models.Trigger
	workflows      map[string]*models.Workflow
	stages         map[string]*models.Stage
	steps          map[string]*models.Step
	tasks          map[string]*models.Task
	subtasks       map[string]*models.Subtask
	checklistItems map[string]*models.ChecklistItem
	assignments    map[string]*models.WorkflowAssignment
	notifications  []*models.Notification
}

// NewPersistence creates an empty in-memory store.
func NewPersistence() *Persistence {
	return &Persistence{
		triggers:       make(map[string]*models.Trigger),
		workflows:      make(map[string]*models.Workflow),
		stages:         make(map[string]*models.Stage),
		steps:          make(map[string]*models.Step),
		tasks:          make(map[string]*models.Task),
		subtasks:       make(map[string]*models.Subtask),
		checklistItems: make(map[string]*models.ChecklistItem),
		assignments:    make(map[string]*models.WorkflowAssignment),
	}
}

func (p *Persistence) HealthCheck(_ context.Context) error { return nil }
func (p *Persistence) Close(_ context.Context) error       { return nil }

// Trigger repository

func (p *Persistence) DueTriggers(_ context.Context, now time.Time) ([]*models.Trigger, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	due := make([]*models.Trigger, 0)

	for _, trigger := range p.triggers {
		if trigger.IsDue(now) {
			copied := *trigger
			due = append(due, &copied)
		}
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].NextExecution.Before(*due[j].NextExecution)
	})

	return due, nil
}

func (p *Persistence) TriggerByID(_ context.Context, id string) (*models.Trigger, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	trigger, ok := p.triggers[id]
	if !ok {
		return nil, nil
	}

	copied := *trigger

	return &copied, nil
}

func (p *Persistence) SaveTrigger(_ context.Context, trigger *models.Trigger) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now().UTC()
	if trigger.CreatedAt.IsZero() {
		trigger.CreatedAt = now
	}

	trigger.UpdatedAt = now

	copied := *trigger
	p.triggers[trigger.ID] = &copied

	return nil
}

func (p *Persistence) AcquireTriggerLock(_ context.Context, id string, now, staleBefore time.Time) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	trigger, ok := p.triggers[id]
	if !ok {
		return false, nil
	}

	if trigger.LockedAt != nil && !trigger.LockedAt.Before(staleBefore) {
		return false, nil
	}

	stamp := now
	trigger.LockedAt = &stamp

	return true, nil
}

func (p *Persistence) ReleaseTriggerLock(_ context.Context, id string, release persistence.TriggerLockRelease) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	trigger, ok := p.triggers[id]
	if !ok {
		return persistence.NewTriggerError("ReleaseLock", id, persistence.ErrTriggerNotFound)
	}

	trigger.LockedAt = nil

	if !release.PreserveNextExecution {
		trigger.NextExecution = release.NextExecution
	}

	if release.Disable {
		trigger.Enabled = false
	}

	if release.LastExecuted != nil {
		trigger.LastExecuted = release.LastExecuted
	}

	trigger.UpdatedAt = time.Now().UTC()

	return nil
}

// Hierarchy repository

func (p *Persistence) AddWorkflow(workflow *models.Workflow) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.workflows[workflow.ID] = workflow
}

func (p *Persistence) AddStage(stage *models.Stage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stages[stage.ID] = stage
}

func (p *Persistence) AddStep(step *models.Step) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.steps[step.ID] = step
}

func (p *Persistence) AddTask(task *models.Task) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tasks[task.ID] = task
}

func (p *Persistence) AddSubtask(subtask *models.Subtask) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subtasks[subtask.ID] = subtask
}

func (p *Persistence) AddChecklistItem(item *models.ChecklistItem) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checklistItems[item.ID] = item
}

func (p *Persistence) WorkflowByID(_ context.Context, id string) (*models.Workflow, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	workflow, ok := p.workflows[id]
	if !ok {
		return nil, nil
	}

	copied := *workflow

	return &copied, nil
}

func (p *Persistence) MarkWorkflowCompleted(_ context.Context, id string, at time.Time) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	workflow, ok := p.workflows[id]
	if !ok || workflow.Status == models.NodeStatusCompleted {
		return false, nil
	}

	workflow.Status = models.NodeStatusCompleted
	workflow.CompletedAt = &at

	return true, nil
}

func (p *Persistence) StagesByWorkflow(_ context.Context, workflowID string) ([]*models.Stage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	stages := make([]*models.Stage, 0)

	for _, stage := range p.stages {
		if stage.WorkflowID == workflowID {
			copied := *stage
			stages = append(stages, &copied)
		}
	}

	sort.Slice(stages, func(i, j int) bool { return stages[i].Position < stages[j].Position })

	return stages, nil
}

func (p *Persistence) StageByID(_ context.Context, id string) (*models.Stage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	stage, ok := p.stages[id]
	if !ok {
		return nil, nil
	}

	copied := *stage

	return &copied, nil
}

func (p *Persistence) MarkStageCompleted(_ context.Context, id string, at time.Time, by string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	stage, ok := p.stages[id]
	if !ok || stage.Status == models.NodeStatusCompleted {
		return false, nil
	}

	stage.Status = models.NodeStatusCompleted
	stage.CompletedAt = &at
	stage.CompletedBy = completedBy(by)

	return true, nil
}

func (p *Persistence) StepsByStage(_ context.Context, stageID string) ([]*models.Step, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	steps := make([]*models.Step, 0)

	for _, step := range p.steps {
		if step.StageID == stageID {
			copied := *step
			steps = append(steps, &copied)
		}
	}

	sort.Slice(steps, func(i, j int) bool { return steps[i].Position < steps[j].Position })

	return steps, nil
}

func (p *Persistence) StepByID(_ context.Context, id string) (*models.Step, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	step, ok := p.steps[id]
	if !ok {
		return nil, nil
	}

	copied := *step

	return &copied, nil
}

func (p *Persistence) MarkStepCompleted(_ context.Context, id string, at time.Time, by string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	step, ok := p.steps[id]
	if !ok || step.Status == models.NodeStatusCompleted {
		return false, nil
	}

	step.Status = models.NodeStatusCompleted
	step.CompletedAt = &at
	step.CompletedBy = completedBy(by)

	return true, nil
}

func (p *Persistence) TasksByStep(_ context.Context, stepID string) ([]*models.Task, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tasks := make([]*models.Task, 0)

	for _, task := range p.tasks {
		if task.StepID == stepID {
			copied := *task
			tasks = append(tasks, &copied)
		}
	}

	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Position < tasks[j].Position })

	return tasks, nil
}

func (p *Persistence) TaskByID(_ context.Context, id string) (*models.Task, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	task, ok := p.tasks[id]
	if !ok {
		return nil, nil
	}

	copied := *task

	return &copied, nil
}

func (p *Persistence) MarkTaskCompleted(_ context.Context, id string, at time.Time, by string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	task, ok := p.tasks[id]
	if !ok || task.Status == models.NodeStatusCompleted {
		return false, nil
	}

	task.Status = models.NodeStatusCompleted
	task.CompletedAt = &at
	task.CompletedBy = completedBy(by)

	return true, nil
}

func (p *Persistence) SubtasksByTask(_ context.Context, taskID string) ([]*models.Subtask, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	subtasks := make([]*models.Subtask, 0)

	for _, subtask := range p.subtasks {
		if subtask.TaskID == taskID {
			copied := *subtask
			subtasks = append(subtasks, &copied)
		}
	}

	sort.Slice(subtasks, func(i, j int) bool { return subtasks[i].ID < subtasks[j].ID })

	return subtasks, nil
}

func (p *Persistence) SubtaskByID(_ context.Context, id string) (*models.Subtask, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	subtask, ok := p.subtasks[id]
	if !ok {
		return nil, nil
	}

	copied := *subtask

	return &copied, nil
}

func (p *Persistence) MarkSubtaskCompleted(_ context.Context, id string, at time.Time, by string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	subtask, ok := p.subtasks[id]
	if !ok || subtask.Status == models.NodeStatusCompleted {
		return false, nil
	}

	subtask.Status = models.NodeStatusCompleted
	subtask.CompletedAt = &at
	subtask.CompletedBy = completedBy(by)

	return true, nil
}

func (p *Persistence) ChecklistItemsByTask(_ context.Context, taskID string) ([]*models.ChecklistItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	items := make([]*models.ChecklistItem, 0)

	for _, item := range p.checklistItems {
		if item.TaskID == taskID {
			copied := *item
			items = append(items, &copied)
		}
	}

	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })

	return items, nil
}

func (p *Persistence) ChecklistItemByID(_ context.Context, id string) (*models.ChecklistItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	item, ok := p.checklistItems[id]
	if !ok {
		return nil, nil
	}

	copied := *item

	return &copied, nil
}

func (p *Persistence) SetChecklistItemChecked(_ context.Context, id string, checked bool, at time.Time, by string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	item, ok := p.checklistItems[id]
	if !ok {
		return persistence.ErrChecklistItemNotFound
	}

	item.Checked = checked

	if checked {
		item.CheckedAt = &at
		item.CheckedBy = completedBy(by)
	} else {
		item.CheckedAt = nil
		item.CheckedBy = nil
	}

	return nil
}

// Assignment repository

func (p *Persistence) AssignmentByID(_ context.Context, id string) (*models.WorkflowAssignment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	assignment, ok := p.assignments[id]
	if !ok {
		return nil, nil
	}

	copied := *assignment

	return &copied, nil
}

func (p *Persistence) SaveAssignment(_ context.Context, assignment *models.WorkflowAssignment) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now().UTC()
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = now
	}

	assignment.UpdatedAt = now

	copied := *assignment
	p.assignments[assignment.ID] = &copied

	return nil
}

// Notification repository

func (p *Persistence) CreateNotification(_ context.Context, notification *models.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if notification.ID == "" {
		notification.ID = uuid.New().String()
	}

	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}

	copied := *notification
	p.notifications = append(p.notifications, &copied)

	return nil
}

// Notifications exposes stored notifications for test assertions.
func (p *Persistence) Notifications() []*models.Notification {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]*models.Notification, len(p.notifications))
	copy(out, p.notifications)

	return out
}

func completedBy(by string) *string {
	if by == "" {
		return nil
	}

	return &by
}

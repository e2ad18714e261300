// Package models defines the core domain models for workflow automation and
// progression: time-based triggers, event subscriptions, assignments and the
// stage/step/task hierarchy.
package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

// ScheduleType distinguishes recurring cron triggers from one-shot triggers.
type ScheduleType string

const (
	ScheduleTypeCron    ScheduleType = "cron"
	ScheduleTypeOneTime ScheduleType = "one_time"
)

var (
	// ErrInvalidTrigger is returned when trigger validation fails.
	ErrInvalidTrigger = errors.New("invalid trigger configuration")

	// ErrNotRecurring is returned when a next execution is requested for a
	// trigger that has no cron schedule.
	ErrNotRecurring = errors.New("trigger has no recurring schedule")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Trigger is a persisted time-based automation. It carries a precomputed
// NextExecution so the poller can query due triggers efficiently, and a
// LockedAt stamp used as the optimistic execution lock across workers.
type Trigger struct {
	// ID uniquely identifies this trigger.
	ID string `json:"id" validate:"required"`

	// OrganizationID scopes the trigger to one organization.
	OrganizationID string `json:"organization_id" validate:"required"`

	// WorkflowID optionally ties the trigger to a single workflow.
	WorkflowID *string `json:"workflow_id,omitempty"`

	Name string `json:"name" validate:"required,min=3"`

	// Enabled triggers are the only ones the due-trigger query may return.
	// A one_time trigger flips to false right after its single run.
	Enabled bool `json:"enabled"`

	ScheduleType ScheduleType `json:"schedule_type" validate:"required,oneof=cron one_time"`

	// CronExpression uses the standard 5-field format
	// (minute hour day month weekday). Required for cron triggers.
	CronExpression string `json:"cron_expression,omitempty"`

	Actions []ActionConfig `json:"actions"`

	// NextExecution is the precomputed next due time. Nil means the trigger
	// is never selected by the due query.
	NextExecution *time.Time `json:"next_execution,omitempty"`

	// LastExecuted is stamped after every execution attempt.
	LastExecuted *time.Time `json:"last_executed,omitempty"`

	// LockedAt is set while a worker owns the execution lock. A lock older
	// than the staleness window is treated as abandoned and reclaimable.
	LockedAt *time.Time `json:"locked_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewTrigger creates an enabled trigger and, for cron schedules, computes the
// first execution time from now.
func NewTrigger(id, organizationID, name string, scheduleType ScheduleType, cronExpression string, actions []ActionConfig) (*Trigger, error) {
	now := time.Now().UTC()
	trigger := &Trigger{
		ID:             id,
		OrganizationID: organizationID,
		Name:           name,
		Enabled:        true,
		ScheduleType:   scheduleType,
		CronExpression: cronExpression,
		Actions:        actions,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := trigger.Validate(); err != nil {
		return nil, err
	}

	if scheduleType == ScheduleTypeCron {
		if err := trigger.ComputeNextExecution(now); err != nil {
			return nil, err
		}
	}

	return trigger, nil
}

// ComputeNextExecution recalculates NextExecution from the reference time
// using the trigger's own cron expression. The result is always strictly
// after the reference time.
func (t *Trigger) ComputeNextExecution(reference time.Time) error {
	if t.ScheduleType != ScheduleTypeCron {
		return ErrNotRecurring
	}

	next, ok := NextCronExecution(t.CronExpression, reference)
	if !ok {
		return fmt.Errorf("%w: cannot parse cron expression %q", ErrInvalidTrigger, t.CronExpression)
	}

	t.NextExecution = &next
	t.UpdatedAt = time.Now().UTC()

	return nil
}

// IsDue reports whether this trigger should execute at the given time.
func (t *Trigger) IsDue(now time.Time) bool {
	return t.Enabled && t.NextExecution != nil && !t.NextExecution.After(now)
}

// Validate performs validation on the trigger fields, including the cron
// expression for recurring triggers and every action configuration.
func (t *Trigger) Validate() error {
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTrigger, err)
	}

	if t.ScheduleType == ScheduleTypeCron {
		if err := ValidateCronExpression(t.CronExpression); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidTrigger, err)
		}
	}

	return ValidateActionConfigs(t.Actions)
}

func cronParser() cron.Parser {
	return cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
}

// NextCronExecution computes the next occurrence of a cron expression
// strictly after the reference time. It reports false for malformed
// expressions instead of returning an error.
func NextCronExecution(expression string, reference time.Time) (time.Time, bool) {
	schedule, err := cronParser().Parse(expression)
	if err != nil {
		return time.Time{}, false
	}

	return schedule.Next(reference), true
}

// ValidateCronExpression checks that a cron expression is syntactically
// well-formed. Used by authoring-time validation.
func ValidateCronExpression(expression string) error {
	if expression == "" {
		return errors.New("cron expression is required")
	}

	if _, err := cronParser().Parse(expression); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	return nil
}

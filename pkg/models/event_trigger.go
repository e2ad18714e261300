package models

import "fmt"

// DomainEvent names a business event that event subscriptions can react to.
type DomainEvent string

const (
	EventPaymentReceived    DomainEvent = "payment_received"
	EventInvoicePaid        DomainEvent = "invoice_paid"
	EventDocumentUploaded   DomainEvent = "document_uploaded"
	EventOrganizerSubmitted DomainEvent = "organizer_submitted"
	EventFormSubmitted      DomainEvent = "form_submitted"
	EventProposalAccepted   DomainEvent = "proposal_accepted"
	EventTaskCompleted      DomainEvent = "task_completed"
	EventStepCompleted      DomainEvent = "step_completed"
	EventStageCompleted     DomainEvent = "stage_completed"
)

// AutoAdvance tells the event engine to move the assignment named in the
// payload after the subscription's actions ran. With no TargetStageID the
// assignment moves to the structurally next stage.
type AutoAdvance struct {
	Enabled       bool    `json:"enabled"`
	TargetStageID *string `json:"target_stage_id,omitempty"`
}

// EventTriggerConfig is a process-lifetime subscription to a domain event.
// Configs live only in memory; bootstrap code re-registers them on startup.
type EventTriggerConfig struct {
	ID string `json:"id" validate:"required"`

	Event DomainEvent `json:"event" validate:"required"`

	// WorkflowID, when set, restricts the subscription to events carrying a
	// matching workflow id.
	WorkflowID *string `json:"workflow_id,omitempty"`
	StageID    *string `json:"stage_id,omitempty"`
	StepID     *string `json:"step_id,omitempty"`

	Conditions []Condition    `json:"conditions,omitempty"`
	Actions    []ActionConfig `json:"actions"`

	AutoAdvance *AutoAdvance `json:"auto_advance,omitempty"`
}

// Validate checks the subscription before the registry accepts it.
func (c *EventTriggerConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid event trigger config: %w", err)
	}

	return ValidateActionConfigs(c.Actions)
}

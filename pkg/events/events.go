// Package events defines the domain event payloads consumed by the event
// trigger engine.
package events

import (
	"github.com/practiq/automation/pkg/models"
)

// Topic is the bus topic every domain event is published on.
const Topic = "practiq.automation.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

// Event is any domain event payload.
type Event interface {
	GetType() models.DomainEvent
}

// Base carries the identifiers shared by every domain event. AssignmentID,
// when present, makes the event eligible for assignment auto-advance.
type Base struct {
	OrganizationID string `json:"organization_id"`
	WorkflowID     string `json:"workflow_id,omitempty"`
	ClientID       string `json:"client_id,omitempty"`
	UserID         string `json:"user_id,omitempty"`
	AssignmentID   string `json:"assignment_id,omitempty"`
}

type PaymentReceived struct {
	Base

	InvoiceID string  `json:"invoice_id"`
	Amount    float64 `json:"amount"`
}

func (PaymentReceived) GetType() models.DomainEvent { return models.EventPaymentReceived }

type DocumentUploaded struct {
	Base

	DocumentID string `json:"document_id"`
	FileName   string `json:"file_name,omitempty"`
}

func (DocumentUploaded) GetType() models.DomainEvent { return models.EventDocumentUploaded }

type OrganizerSubmitted struct {
	Base

	OrganizerID string `json:"organizer_id"`
}

func (OrganizerSubmitted) GetType() models.DomainEvent { return models.EventOrganizerSubmitted }

type ProposalAccepted struct {
	Base

	ProposalID string  `json:"proposal_id"`
	Amount     float64 `json:"amount,omitempty"`
}

func (ProposalAccepted) GetType() models.DomainEvent { return models.EventProposalAccepted }

type TaskCompleted struct {
	Base

	TaskID string `json:"task_id"`
	StepID string `json:"step_id,omitempty"`
}

func (TaskCompleted) GetType() models.DomainEvent { return models.EventTaskCompleted }

type StepCompleted struct {
	Base

	StepID  string `json:"step_id"`
	StageID string `json:"stage_id,omitempty"`
}

func (StepCompleted) GetType() models.DomainEvent { return models.EventStepCompleted }

type StageCompleted struct {
	Base

	StageID string `json:"stage_id"`
}

func (StageCompleted) GetType() models.DomainEvent { return models.EventStageCompleted }

// NewByType returns an empty event value for a domain event name, used by
// bus subscribers to unmarshal incoming messages.
func NewByType(eventType models.DomainEvent) (Event, bool) {
	switch eventType {
	case models.EventPaymentReceived:
		return &PaymentReceived{}, true
	case models.EventDocumentUploaded:
		return &DocumentUploaded{}, true
	case models.EventOrganizerSubmitted:
		return &OrganizerSubmitted{}, true
	case models.EventProposalAccepted:
		return &ProposalAccepted{}, true
	case models.EventTaskCompleted:
		return &TaskCompleted{}, true
	case models.EventStepCompleted:
		return &StepCompleted{}, true
	case models.EventStageCompleted:
		return &StageCompleted{}, true
	default:
		return nil, false
	}
}

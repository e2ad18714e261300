// Package eventtrigger implements the in-memory event subscription registry
// and the assignment auto-advance paths. Domain events are matched against
// registered configs; each config is evaluated in isolation so one failing
// subscription never starves the others.
package eventtrigger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/practiq/automation/pkg/events"
	"github.com/practiq/automation/pkg/models"
	"github.com/practiq/automation/pkg/otelhelper"
	"github.com/practiq/automation/pkg/persistence"
	"github.com/practiq/automation/pkg/protocol"
)

// Store is the persistence surface the engine needs: assignments for
// auto-advance, the hierarchy for stage lookups and payload enrichment.
type Store interface {
	persistence.AssignmentRepository

	WorkflowByID(ctx context.Context, id string) (*models.Workflow, error)
	StagesByWorkflow(ctx context.Context, workflowID string) ([]*models.Stage, error)
	StageByID(ctx context.Context, id string) (*models.Stage, error)
}

// Engine is an explicitly constructed registry of event subscriptions with a
// process lifetime. Bootstrap code re-registers configs on startup; nothing
// here is persisted.
type Engine struct {
	mu       sync.RWMutex
	registry map[models.DomainEvent][]*models.EventTriggerConfig

	store    Store
	executor protocol.ActionExecutor
	notifier protocol.Notifier
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewEngine creates an empty event trigger engine.
func NewEngine(store Store, executor protocol.ActionExecutor, notifier protocol.Notifier, logger *slog.Logger) *Engine {
	return &Engine{
		registry: make(map[models.DomainEvent][]*models.EventTriggerConfig),
		store:    store,
		executor: executor,
		notifier: notifier,
		logger:   logger.With("module", "event_trigger_engine"),
		tracer:   otel.Tracer("event-trigger-engine"),
	}
}

// RegisterTrigger adds a subscription to its event's list.
func (e *Engine) RegisterTrigger(config *models.EventTriggerConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.registry[config.Event] = append(e.registry[config.Event], config)

	e.logger.Info("Event trigger registered", "config_id", config.ID, "event", config.Event)

	return nil
}

// UnregisterTrigger removes the subscription with the given id from every
// event's list.
func (e *Engine) UnregisterTrigger(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for event, configs := range e.registry {
		kept := configs[:0]

		for _, config := range configs {
			if config.ID != id {
				kept = append(kept, config)
			}
		}

		e.registry[event] = kept
	}
}

// ClearAllTriggers resets the registry. Used for test isolation and
// process-restart re-bootstrap.
func (e *Engine) ClearAllTriggers() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.registry = make(map[models.DomainEvent][]*models.EventTriggerConfig)
}

// HandlePaymentReceived reacts to a client payment. The event is dispatched
// under both payment_received and invoice_paid.
func (e *Engine) HandlePaymentReceived(ctx context.Context, event events.PaymentReceived) {
	payload := e.enrichedPayload(ctx, event, event.Base)

	e.dispatch(ctx, models.EventPaymentReceived, payload, event.Base)
	e.dispatch(ctx, models.EventInvoicePaid, payload, event.Base)

	e.advanceIfAssigned(ctx, event.Base, string(models.EventPaymentReceived))
}

// HandleDocumentUploaded reacts to a client document upload.
func (e *Engine) HandleDocumentUploaded(ctx context.Context, event events.DocumentUploaded) {
	payload := e.enrichedPayload(ctx, event, event.Base)

	e.dispatch(ctx, models.EventDocumentUploaded, payload, event.Base)

	e.advanceIfAssigned(ctx, event.Base, string(models.EventDocumentUploaded))
}

// HandleOrganizerSubmitted reacts to an organizer submission. The event is
// dispatched under both organizer_submitted and form_submitted.
func (e *Engine) HandleOrganizerSubmitted(ctx context.Context, event events.OrganizerSubmitted) {
	payload := e.enrichedPayload(ctx, event, event.Base)

	e.dispatch(ctx, models.EventOrganizerSubmitted, payload, event.Base)
	e.dispatch(ctx, models.EventFormSubmitted, payload, event.Base)

	e.advanceIfAssigned(ctx, event.Base, string(models.EventOrganizerSubmitted))
}

// HandleProposalAccepted reacts to a client accepting a proposal.
func (e *Engine) HandleProposalAccepted(ctx context.Context, event events.ProposalAccepted) {
	payload := e.enrichedPayload(ctx, event, event.Base)

	e.dispatch(ctx, models.EventProposalAccepted, payload, event.Base)

	e.advanceIfAssigned(ctx, event.Base, string(models.EventProposalAccepted))
}

// HandleTaskCompleted reacts to a task completing in the work hierarchy.
func (e *Engine) HandleTaskCompleted(ctx context.Context, event events.TaskCompleted) {
	payload := e.enrichedPayload(ctx, event, event.Base)

	e.dispatch(ctx, models.EventTaskCompleted, payload, event.Base)

	e.advanceIfAssigned(ctx, event.Base, string(models.EventTaskCompleted))
}

// HandleStepCompleted reacts to a step completing in the work hierarchy.
func (e *Engine) HandleStepCompleted(ctx context.Context, event events.StepCompleted) {
	payload := e.enrichedPayload(ctx, event, event.Base)

	e.dispatch(ctx, models.EventStepCompleted, payload, event.Base)

	e.advanceIfAssigned(ctx, event.Base, string(models.EventStepCompleted))
}

// HandleStageCompleted reacts to a stage completing in the work hierarchy.
func (e *Engine) HandleStageCompleted(ctx context.Context, event events.StageCompleted) {
	payload := e.enrichedPayload(ctx, event, event.Base)

	e.dispatch(ctx, models.EventStageCompleted, payload, event.Base)

	e.advanceIfAssigned(ctx, event.Base, string(models.EventStageCompleted))
}

// dispatch evaluates every registered config for one event name. Scoping,
// condition and execution failures are contained per config.
func (e *Engine) dispatch(ctx context.Context, eventName models.DomainEvent, payload map[string]any, base events.Base) {
	e.mu.RLock()
	configs := make([]*models.EventTriggerConfig, len(e.registry[eventName]))
	copy(configs, e.registry[eventName])
	e.mu.RUnlock()

	if len(configs) == 0 {
		return
	}

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "eventtrigger.dispatch",
		attribute.String(otelhelper.EventKey, string(eventName)),
		attribute.String(otelhelper.WorkflowIDKey, base.WorkflowID),
		attribute.Int("automation.config_count", len(configs)),
	)
	defer span.End()

	for _, config := range configs {
		e.processConfig(ctx, config, eventName, payload, base)
	}
}

func (e *Engine) processConfig(ctx context.Context, config *models.EventTriggerConfig, eventName models.DomainEvent, payload map[string]any, base events.Base) {
	logger := e.logger.With("config_id", config.ID, "event", eventName)

	if config.WorkflowID != nil && *config.WorkflowID != base.WorkflowID {
		return
	}

	if len(config.Conditions) > 0 {
		matched, err := e.executor.EvaluateConditions(ctx, config.Conditions, payload)
		if err != nil {
			logger.ErrorContext(ctx, "Condition evaluation failed", "error", err)

			return
		}

		if !matched {
			return
		}
	}

	execCtx := protocol.ExecutionContext{
		OrganizationID: base.OrganizationID,
		WorkflowID:     base.WorkflowID,
		StageID:        stringValue(config.StageID),
		StepID:         stringValue(config.StepID),
		UserID:         base.UserID,
		ClientID:       base.ClientID,
		AssignmentID:   base.AssignmentID,
		Event:          string(eventName),
		ExecutedAt:     time.Now().UTC(),
		Data:           payload,
	}

	if err := e.executor.ExecuteActions(ctx, config.Actions, execCtx); err != nil {
		logger.ErrorContext(ctx, "Action execution failed", "error", err)

		return
	}

	if config.AutoAdvance != nil && config.AutoAdvance.Enabled && base.AssignmentID != "" {
		if err := e.AutoAdvanceToStage(ctx, base.AssignmentID, config.AutoAdvance.TargetStageID, string(eventName)); err != nil {
			logger.ErrorContext(ctx, "Config auto-advance failed", "error", err)
		}
	}
}

// advanceIfAssigned runs the default auto-advance when the event names an
// assignment, regardless of whether any registered config matched.
func (e *Engine) advanceIfAssigned(ctx context.Context, base events.Base, reason string) {
	if base.AssignmentID == "" {
		return
	}

	if err := e.AutoAdvanceAssignment(ctx, base.AssignmentID, reason); err != nil {
		e.logger.ErrorContext(ctx, "Assignment auto-advance failed",
			"assignment_id", base.AssignmentID,
			"reason", reason,
			"error", err)
	}
}

// AutoAdvanceAssignment moves an assignment to the structurally next stage of
// its workflow. Missing assignments, unknown current stages and
// already-at-last-stage are all normal no-ops.
func (e *Engine) AutoAdvanceAssignment(ctx context.Context, assignmentID, reason string) error {
	assignment, err := e.store.AssignmentByID(ctx, assignmentID)
	if err != nil {
		return fmt.Errorf("failed to load assignment %s: %w", assignmentID, err)
	}

	if assignment == nil {
		e.logger.WarnContext(ctx, "Auto-advance for unknown assignment", "assignment_id", assignmentID)

		return nil
	}

	stages, err := e.store.StagesByWorkflow(ctx, assignment.WorkflowID)
	if err != nil {
		return fmt.Errorf("failed to load stages for workflow %s: %w", assignment.WorkflowID, err)
	}

	currentIndex := -1

	for i, stage := range stages {
		if stage.ID == assignment.CurrentStageID {
			currentIndex = i

			break
		}
	}

	if currentIndex < 0 || currentIndex >= len(stages)-1 {
		// Unknown current stage or already at the last one.
		return nil
	}

	next := stages[currentIndex+1]

	assignment.CurrentStageID = next.ID
	assignment.CurrentStepID = nil
	assignment.Status = models.AssignmentStatusActive
	assignment.CompletedStages++
	assignment.RecomputeProgress()

	if err := e.store.SaveAssignment(ctx, assignment); err != nil {
		return fmt.Errorf("failed to save assignment %s: %w", assignmentID, err)
	}

	e.logger.InfoContext(ctx, "Assignment advanced",
		"assignment_id", assignmentID,
		"stage_id", next.ID,
		"progress", assignment.Progress,
		"reason", reason)

	e.notifyAdvance(ctx, assignment, next, reason)

	return nil
}

// AutoAdvanceToStage jumps an assignment to a specific stage. CompletedStages
// is set to the target's ordinal rather than incremented, so a target earlier
// than the current stage regresses the counter; that matches the manual
// correction semantics of the advance configuration.
func (e *Engine) AutoAdvanceToStage(ctx context.Context, assignmentID string, targetStageID *string, reason string) error {
	if targetStageID == nil {
		return e.AutoAdvanceAssignment(ctx, assignmentID, reason)
	}

	assignment, err := e.store.AssignmentByID(ctx, assignmentID)
	if err != nil {
		return fmt.Errorf("failed to load assignment %s: %w", assignmentID, err)
	}

	if assignment == nil {
		e.logger.WarnContext(ctx, "Targeted advance for unknown assignment", "assignment_id", assignmentID)

		return nil
	}

	target, err := e.store.StageByID(ctx, *targetStageID)
	if err != nil {
		return fmt.Errorf("failed to load stage %s: %w", *targetStageID, err)
	}

	if target == nil {
		e.logger.WarnContext(ctx, "Targeted advance to unknown stage",
			"assignment_id", assignmentID,
			"target_stage_id", *targetStageID)

		return nil
	}

	stages, err := e.store.StagesByWorkflow(ctx, assignment.WorkflowID)
	if err != nil {
		return fmt.Errorf("failed to load stages for workflow %s: %w", assignment.WorkflowID, err)
	}

	ordinal := -1

	for i, stage := range stages {
		if stage.ID == target.ID {
			ordinal = i

			break
		}
	}

	if ordinal < 0 {
		e.logger.WarnContext(ctx, "Target stage belongs to another workflow",
			"assignment_id", assignmentID,
			"target_stage_id", target.ID)

		return nil
	}

	assignment.CurrentStageID = target.ID
	assignment.CurrentStepID = nil
	assignment.Status = models.AssignmentStatusActive
	assignment.CompletedStages = ordinal
	assignment.RecomputeProgress()

	if err := e.store.SaveAssignment(ctx, assignment); err != nil {
		return fmt.Errorf("failed to save assignment %s: %w", assignmentID, err)
	}

	e.logger.InfoContext(ctx, "Assignment jumped to stage",
		"assignment_id", assignmentID,
		"stage_id", target.ID,
		"progress", assignment.Progress,
		"reason", reason)

	e.notifyAdvance(ctx, assignment, target, reason)

	return nil
}

func (e *Engine) notifyAdvance(ctx context.Context, assignment *models.WorkflowAssignment, stage *models.Stage, reason string) {
	notification := &models.Notification{
		UserID:  assignment.AssignedTo,
		Title:   "Workflow advanced",
		Message: fmt.Sprintf("Your workflow moved to %q (%s)", stage.Name, reason),
		Type:    "workflow_progress",
		Metadata: map[string]any{
			"assignment_id": assignment.ID,
			"workflow_id":   assignment.WorkflowID,
			"stage_id":      stage.ID,
			"reason":        reason,
			"progress":      assignment.Progress,
		},
	}

	if err := e.notifier.CreateNotification(ctx, notification); err != nil {
		e.logger.ErrorContext(ctx, "Failed to notify assignee",
			"assignment_id", assignment.ID,
			"error", err)
	}
}

// enrichedPayload flattens the event into a map and denormalizes referenced
// context the condition DSL commonly needs: workflow name and the
// assignment's current position.
func (e *Engine) enrichedPayload(ctx context.Context, event events.Event, base events.Base) map[string]any {
	payload := make(map[string]any)

	raw, err := json.Marshal(event)
	if err == nil {
		_ = json.Unmarshal(raw, &payload)
	}

	payload["event"] = string(event.GetType())

	if base.WorkflowID != "" {
		if workflow, err := e.store.WorkflowByID(ctx, base.WorkflowID); err == nil && workflow != nil {
			payload["workflow_name"] = workflow.Name
		}
	}

	if base.AssignmentID != "" {
		if assignment, err := e.store.AssignmentByID(ctx, base.AssignmentID); err == nil && assignment != nil {
			payload["current_stage_id"] = assignment.CurrentStageID
			payload["completed_stages"] = assignment.CompletedStages
			payload["total_stages"] = assignment.TotalStages
			payload["progress"] = assignment.Progress
		}
	}

	return payload
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}

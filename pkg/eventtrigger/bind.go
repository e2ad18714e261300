package eventtrigger

import (
	"context"
	"fmt"

	"github.com/practiq/automation/pkg/eventbus"
	"github.com/practiq/automation/pkg/events"
	"github.com/practiq/automation/pkg/models"
)

// Bind registers the engine's handlers on the bus, one per publishable
// domain event. invoice_paid and form_submitted are alias events produced by
// the engine itself and have no bus binding of their own.
func (e *Engine) Bind(bus eventbus.EventSubscriber) error {
	bindings := map[models.DomainEvent]eventbus.EventHandler{
		models.EventPaymentReceived: func(ctx context.Context, event events.Event) error {
			payment, ok := event.(*events.PaymentReceived)
			if !ok {
				return fmt.Errorf("unexpected payload %T for %s", event, models.EventPaymentReceived)
			}

			e.HandlePaymentReceived(ctx, *payment)

			return nil
		},
		models.EventDocumentUploaded: func(ctx context.Context, event events.Event) error {
			upload, ok := event.(*events.DocumentUploaded)
			if !ok {
				return fmt.Errorf("unexpected payload %T for %s", event, models.EventDocumentUploaded)
			}

			e.HandleDocumentUploaded(ctx, *upload)

			return nil
		},
		models.EventOrganizerSubmitted: func(ctx context.Context, event events.Event) error {
			organizer, ok := event.(*events.OrganizerSubmitted)
			if !ok {
				return fmt.Errorf("unexpected payload %T for %s", event, models.EventOrganizerSubmitted)
			}

			e.HandleOrganizerSubmitted(ctx, *organizer)

			return nil
		},
		models.EventProposalAccepted: func(ctx context.Context, event events.Event) error {
			proposal, ok := event.(*events.ProposalAccepted)
			if !ok {
				return fmt.Errorf("unexpected payload %T for %s", event, models.EventProposalAccepted)
			}

			e.HandleProposalAccepted(ctx, *proposal)

			return nil
		},
		models.EventTaskCompleted: func(ctx context.Context, event events.Event) error {
			task, ok := event.(*events.TaskCompleted)
			if !ok {
				return fmt.Errorf("unexpected payload %T for %s", event, models.EventTaskCompleted)
			}

			e.HandleTaskCompleted(ctx, *task)

			return nil
		},
		models.EventStepCompleted: func(ctx context.Context, event events.Event) error {
			step, ok := event.(*events.StepCompleted)
			if !ok {
				return fmt.Errorf("unexpected payload %T for %s", event, models.EventStepCompleted)
			}

			e.HandleStepCompleted(ctx, *step)

			return nil
		},
		models.EventStageCompleted: func(ctx context.Context, event events.Event) error {
			stage, ok := event.(*events.StageCompleted)
			if !ok {
				return fmt.Errorf("unexpected payload %T for %s", event, models.EventStageCompleted)
			}

			e.HandleStageCompleted(ctx, *stage)

			return nil
		},
	}

	for eventType, handler := range bindings {
		if err := bus.Handle(eventType, handler); err != nil {
			return fmt.Errorf("failed to bind handler for %s: %w", eventType, err)
		}
	}

	return nil
}

// Package logexec is the built-in action executor. It evaluates the condition
// predicates against the event payload and "executes" actions by logging
// them. Deployments with a real action runtime swap in their own
// protocol.ActionExecutor.
package logexec

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/practiq/automation/pkg/models"
	"github.com/practiq/automation/pkg/protocol"
)

type Executor struct {
	logger *slog.Logger
}

func NewExecutor(logger *slog.Logger) *Executor {
	return &Executor{logger: logger.With("module", "log_executor")}
}

var _ protocol.ActionExecutor = (*Executor)(nil)

// EvaluateConditions evaluates every predicate against the payload. An empty
// condition list matches.
func (e *Executor) EvaluateConditions(_ context.Context, conditions []models.Condition, payload map[string]any) (bool, error) {
	for _, condition := range conditions {
		matched, err := evaluate(condition, payload)
		if err != nil {
			return false, fmt.Errorf("failed to evaluate condition on %q: %w", condition.Field, err)
		}

		if !matched {
			return false, nil
		}
	}

	return true, nil
}

// ExecuteActions logs each action in order.
func (e *Executor) ExecuteActions(ctx context.Context, actions []models.ActionConfig, execCtx protocol.ExecutionContext) error {
	for _, action := range actions {
		e.logger.InfoContext(ctx, "Executing action",
			"action_type", action.Type,
			"action_name", action.Name,
			"event", execCtx.Event,
			"workflow_id", execCtx.WorkflowID,
			"trigger_id", execCtx.TriggerID)
	}

	return nil
}

func evaluate(condition models.Condition, payload map[string]any) (bool, error) {
	value, present := payload[condition.Field]

	switch condition.Operator {
	case "exists":
		return present && value != nil, nil
	case "eq", "neq":
		equal := compareEqual(value, condition.Value)
		if condition.Operator == "neq" {
			return !equal, nil
		}

		return equal, nil
	case "contains":
		haystack, ok := value.(string)
		if !ok {
			return false, nil
		}

		needle, ok := condition.Value.(string)
		if !ok {
			return false, fmt.Errorf("contains needs a string value, got %T", condition.Value)
		}

		return strings.Contains(haystack, needle), nil
	case "gt", "gte", "lt", "lte":
		left, ok := toFloat(value)
		if !ok {
			return false, nil
		}

		right, ok := toFloat(condition.Value)
		if !ok {
			return false, fmt.Errorf("%s needs a numeric value, got %T", condition.Operator, condition.Value)
		}

		switch condition.Operator {
		case "gt":
			return left > right, nil
		case "gte":
			return left >= right, nil
		case "lt":
			return left < right, nil
		default:
			return left <= right, nil
		}
	default:
		return false, fmt.Errorf("unknown operator %q", condition.Operator)
	}
}

// compareEqual compares numerically when both sides coerce to numbers, so a
// JSON-decoded float64 payload field still equals an int condition value.
func compareEqual(left, right any) bool {
	leftNum, leftOK := toFloat(left)
	rightNum, rightOK := toFloat(right)

	if leftOK && rightOK {
		return leftNum == rightNum
	}

	return fmt.Sprintf("%v", left) == fmt.Sprintf("%v", right)
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}

		return parsed, true
	default:
		return 0, false
	}
}

package logexec

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/practiq/automation/pkg/models"
	"github.com/practiq/automation/pkg/protocol"
)

func newTestExecutor() *Executor {
	return NewExecutor(slog.New(slog.NewTextHandler(os.Stdout, nil)))
}

func TestEvaluateConditions(t *testing.T) {
	payload := map[string]any{
		"amount":    float64(1500),
		"file_name": "w2-2025.pdf",
		"client_id": "cli-1",
	}

	tests := []struct {
		name       string
		conditions []models.Condition
		want       bool
		wantErr    bool
	}{
		{
			name: "empty list matches",
			want: true,
		},
		{
			name:       "eq string",
			conditions: []models.Condition{{Field: "client_id", Operator: "eq", Value: "cli-1"}},
			want:       true,
		},
		{
			name:       "eq numeric across types",
			conditions: []models.Condition{{Field: "amount", Operator: "eq", Value: 1500}},
			want:       true,
		},
		{
			name:       "neq",
			conditions: []models.Condition{{Field: "client_id", Operator: "neq", Value: "cli-2"}},
			want:       true,
		},
		{
			name:       "gte boundary",
			conditions: []models.Condition{{Field: "amount", Operator: "gte", Value: 1500}},
			want:       true,
		},
		{
			name:       "gt boundary fails",
			conditions: []models.Condition{{Field: "amount", Operator: "gt", Value: 1500}},
			want:       false,
		},
		{
			name:       "lt",
			conditions: []models.Condition{{Field: "amount", Operator: "lt", Value: 2000}},
			want:       true,
		},
		{
			name:       "contains",
			conditions: []models.Condition{{Field: "file_name", Operator: "contains", Value: "w2"}},
			want:       true,
		},
		{
			name:       "exists",
			conditions: []models.Condition{{Field: "client_id", Operator: "exists"}},
			want:       true,
		},
		{
			name:       "exists on missing field",
			conditions: []models.Condition{{Field: "missing", Operator: "exists"}},
			want:       false,
		},
		{
			name: "all conditions must match",
			conditions: []models.Condition{
				{Field: "amount", Operator: "gte", Value: 1000},
				{Field: "client_id", Operator: "eq", Value: "cli-other"},
			},
			want: false,
		},
		{
			name:       "comparison on non-numeric field misses",
			conditions: []models.Condition{{Field: "file_name", Operator: "gt", Value: 10}},
			want:       false,
		},
		{
			name:       "non-numeric condition value errors",
			conditions: []models.Condition{{Field: "amount", Operator: "gt", Value: []string{"no"}}},
			wantErr:    true,
		},
	}

	executor := newTestExecutor()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := executor.EvaluateConditions(context.Background(), tt.conditions, payload)
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExecuteActionsLogsAndSucceeds(t *testing.T) {
	executor := newTestExecutor()

	actions := []models.ActionConfig{
		{Type: "send_email", Name: "welcome"},
		{Type: "webhook", Name: "crm sync"},
	}

	err := executor.ExecuteActions(context.Background(), actions, protocol.ExecutionContext{Event: "payment_received"})
	assert.NoError(t, err)
}

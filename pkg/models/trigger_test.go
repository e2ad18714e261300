package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextCronExecution(t *testing.T) {
	reference := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name       string
		expression string
		expectOK   bool
		expected   time.Time
	}{
		{
			name:       "daily at midnight",
			expression: "0 0 * * *",
			expectOK:   true,
			expected:   time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC),
		},
		{
			name:       "every five minutes",
			expression: "*/5 * * * *",
			expectOK:   true,
			expected:   time.Date(2025, 3, 10, 14, 35, 0, 0, time.UTC),
		},
		{
			name:       "every minute",
			expression: "* * * * *",
			expectOK:   true,
			expected:   time.Date(2025, 3, 10, 14, 31, 0, 0, time.UTC),
		},
		{
			name:       "malformed expression",
			expression: "not a cron",
			expectOK:   false,
		},
		{
			name:       "six fields rejected",
			expression: "0 0 0 * * *",
			expectOK:   false,
		},
		{
			name:       "empty expression",
			expression: "",
			expectOK:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, ok := NextCronExecution(tt.expression, reference)
			assert.Equal(t, tt.expectOK, ok)

			if tt.expectOK {
				assert.Equal(t, tt.expected, next)
				assert.True(t, next.After(reference), "next execution must be strictly after the reference time")
			}
		})
	}
}

func TestNextCronExecutionStrictlyAfterReference(t *testing.T) {
	// Reference exactly on a boundary must still move forward.
	reference := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	next, ok := NextCronExecution("0 0 * * *", reference)
	require.True(t, ok)
	assert.True(t, next.After(reference))
	assert.Equal(t, time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC), next)
}

func TestValidateCronExpression(t *testing.T) {
	assert.NoError(t, ValidateCronExpression("0 9 * * 1"))
	assert.Error(t, ValidateCronExpression(""))
	assert.Error(t, ValidateCronExpression("61 * * * *"))
}

func TestNewTrigger(t *testing.T) {
	actions := []ActionConfig{{Type: "send_email", Name: "Weekly digest"}}

	trigger, err := NewTrigger("trg-1", "org-1", "weekly digest", ScheduleTypeCron, "0 9 * * 1", actions)
	require.NoError(t, err)

	assert.True(t, trigger.Enabled)
	require.NotNil(t, trigger.NextExecution)
	assert.True(t, trigger.NextExecution.After(trigger.CreatedAt))
}

func TestNewTriggerInvalidCron(t *testing.T) {
	_, err := NewTrigger("trg-1", "org-1", "broken", ScheduleTypeCron, "bogus", nil)
	require.Error(t, err)
}

func TestNewTriggerOneTimeNeedsNoCron(t *testing.T) {
	trigger, err := NewTrigger("trg-2", "org-1", "welcome email", ScheduleTypeOneTime, "", nil)
	require.NoError(t, err)

	assert.Nil(t, trigger.NextExecution)
	assert.NoError(t, trigger.Validate())
}

func TestTriggerIsDue(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name    string
		trigger Trigger
		due     bool
	}{
		{"due and enabled", Trigger{Enabled: true, NextExecution: &past}, true},
		{"due but disabled", Trigger{Enabled: false, NextExecution: &past}, false},
		{"not yet due", Trigger{Enabled: true, NextExecution: &future}, false},
		{"no next execution", Trigger{Enabled: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.due, tt.trigger.IsDue(now))
		})
	}
}

func TestComputeNextExecutionRejectsOneTime(t *testing.T) {
	trigger := Trigger{ScheduleType: ScheduleTypeOneTime}

	err := trigger.ComputeNextExecution(time.Now().UTC())
	assert.ErrorIs(t, err, ErrNotRecurring)
}

func TestValidateActionConfigs(t *testing.T) {
	assert.NoError(t, ValidateActionConfigs(nil))
	assert.NoError(t, ValidateActionConfigs([]ActionConfig{
		{Type: "send_email", Configuration: map[string]any{"template": "digest"}},
	}))
	assert.Error(t, ValidateActionConfigs([]ActionConfig{{Name: "missing type"}}))
}

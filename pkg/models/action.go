package models

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// ActionConfig describes one action an automation runs. The core never
// interprets the configuration itself; it is handed verbatim to the
// action-execution collaborator.
type ActionConfig struct {
	ID            string         `json:"id"`
	Type          string         `json:"type"          validate:"required"`
	Name          string         `json:"name"`
	Configuration map[string]any `json:"configuration"`
}

// actionConfigSchema is the authoring-time shape every action configuration
// must satisfy before a trigger or event subscription accepts it.
const actionConfigSchema = `{
	"type": "object",
	"required": ["type"],
	"properties": {
		"id": {"type": "string"},
		"type": {"type": "string", "minLength": 1},
		"name": {"type": "string"},
		"configuration": {"type": "object"}
	}
}`

// ValidateActionConfigs checks every action against the action config schema.
// Used by authoring-time validation; the scheduler and event engine assume
// configurations already passed it.
func ValidateActionConfigs(actions []ActionConfig) error {
	schemaLoader := gojsonschema.NewStringLoader(actionConfigSchema)

	for i, action := range actions {
		document := map[string]any{
			"id":            action.ID,
			"type":          action.Type,
			"name":          action.Name,
			"configuration": action.Configuration,
		}
		if action.Configuration == nil {
			document["configuration"] = map[string]any{}
		}

		result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(document))
		if err != nil {
			return fmt.Errorf("failed to validate action %d: %w", i, err)
		}

		if !result.Valid() {
			return fmt.Errorf("action %d is invalid: %s", i, result.Errors()[0].String())
		}
	}

	return nil
}

package models

// Condition is a single predicate evaluated against an event payload before
// an event subscription's actions run. Evaluation is delegated to the
// action-execution collaborator; this core only carries the configuration.
type Condition struct {
	Field    string `json:"field"    validate:"required"`
	Operator string `json:"operator" validate:"required,oneof=eq neq gt gte lt lte contains exists"`
	Value    any    `json:"value"`
}

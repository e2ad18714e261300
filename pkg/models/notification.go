package models

import "time"

// Notification is the payload handed to the notification collaborator when
// an assignment advances.
type Notification struct {
	ID       string         `json:"id"`
	UserID   string         `json:"user_id" validate:"required"`
	Title    string         `json:"title"   validate:"required"`
	Message  string         `json:"message"`
	Type     string         `json:"type"`
	Metadata map[string]any `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

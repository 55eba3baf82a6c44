package model

import "time"

// Alert priorities.
const (
	PriorityLow      = "LOW"
	PriorityMedium   = "MEDIUM"
	PriorityHigh     = "HIGH"
	PriorityCritical = "CRITICAL"
)

// Alert statuses.
const (
	AlertActive   = "ACTIVE"
	AlertResolved = "RESOLVED"
)

// Delivery statuses reported for manager notifications.
const (
	DeliverySent    = "sent"
	DeliveryFailed  = "failed"
	DeliverySkipped = "skipped"
)

// Alert is a row raised for a manager's attention.
type Alert struct {
	ID               string    `json:"id"`
	Type             string    `json:"alert_type"`
	Priority         string    `json:"priority"`
	EntityType       string    `json:"entity_type"`
	EntityID         string    `json:"entity_id,omitempty"`
	Title            string    `json:"title"`
	Message          string    `json:"message"`
	ActionRequired   string    `json:"action_required"`
	AssignedTo       string    `json:"assigned_to,omitempty"`
	Status           string    `json:"status"`
	NotificationSent bool      `json:"notification_sent"`
	CreatedAt        time.Time `json:"created_at"`
}

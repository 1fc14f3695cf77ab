package model

import "time"

// Persisted notification types
const (
	NotifTypeDueDateReminder   = "due_date_reminder"
	NotifTypeApprovalRequired  = "approval_required"
	NotifTypeSystemMaintenance = "system_maintenance"
	NotifTypeEquipmentAlert    = "equipment_alert"
	NotifTypeSafetyCompliance  = "safety_compliance"
)

// Notification priorities
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Notification is an in-app message stored for a user.
type Notification struct {
	ID        string         `json:"id"`
	UserID    *string        `json:"user_id"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	IsRead    bool           `json:"is_read"`
	Priority  string         `json:"priority"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	ReadAt    *time.Time     `json:"read_at"`
}

type PushSubscription struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Endpoint   string    `json:"endpoint"`
	P256dhKey  string    `json:"p256dh_key"`
	AuthKey    string    `json:"auth_key"`
	DeviceName string    `json:"device_name"`
	CreatedAt  time.Time `json:"created_at"`
}

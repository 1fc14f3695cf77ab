package notify

import (
	"fmt"
	"strings"
	"time"
)

// TransactionsURL is where overdue toasts point their action.
const TransactionsURL = "/dashboard/transactions"

// Realtime wraps a Center with the canned messages for inventory events.
type Realtime struct {
	center *Center
}

func NewRealtime(c *Center) *Realtime {
	return &Realtime{center: c}
}

type canned struct {
	t       Type
	title   string
	message string
}

// EquipmentUpdate announces that equipment was created, updated or deleted.
func (r *Realtime) EquipmentUpdate(name, action string) string {
	var m canned
	switch action {
	case "created":
		m = canned{TypeSuccess, "Equipment Added", name + " has been added to inventory"}
	case "updated":
		m = canned{TypeInfo, "Equipment Updated", name + " has been updated"}
	case "deleted":
		m = canned{TypeWarning, "Equipment Deleted", name + " has been removed from inventory"}
	default:
		return ""
	}
	return r.center.Add(m.t, m.title, WithMessage(m.message), WithDuration(4*time.Second))
}

// BorrowingUpdate announces a borrow, a return or an overdue item.
func (r *Realtime) BorrowingUpdate(equipment, user, action string) string {
	var m canned
	opts := []AddOption{WithDuration(6 * time.Second)}
	switch action {
	case "borrowed":
		m = canned{TypeInfo, "Equipment Borrowed", fmt.Sprintf("%s borrowed %s", user, equipment)}
	case "returned":
		m = canned{TypeSuccess, "Equipment Returned", fmt.Sprintf("%s returned %s", user, equipment)}
	case "overdue":
		m = canned{TypeWarning, "Equipment Overdue", equipment + " is overdue for return"}
		opts = append(opts, WithAction("View Transactions", TransactionsURL, nil))
	default:
		return ""
	}
	opts = append(opts, WithMessage(m.message))
	return r.center.Add(m.t, m.title, opts...)
}

// MaintenanceUpdate announces maintenance being scheduled, completed or required.
func (r *Realtime) MaintenanceUpdate(name, action string) string {
	var m canned
	switch action {
	case "scheduled":
		m = canned{TypeInfo, "Maintenance Scheduled", "Maintenance has been scheduled for " + name}
	case "completed":
		m = canned{TypeSuccess, "Maintenance Completed", "Maintenance has been completed for " + name}
	case "required":
		m = canned{TypeWarning, "Maintenance Required", name + " requires maintenance"}
	default:
		return ""
	}
	return r.center.Add(m.t, m.title, WithMessage(m.message), WithDuration(5*time.Second))
}

// SystemError reports err, prefixed with context when given.
func (r *Realtime) SystemError(err error, context string) string {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	if context != "" {
		msg = context + ": " + msg
	}
	return r.center.Add(TypeError, "System Error", WithMessage(msg), WithDuration(8*time.Second))
}

// BulkOperation reports the outcome of a batch action over count items.
func (r *Realtime) BulkOperation(action string, count int, success bool) string {
	t, verb := TypeSuccess, "Successfully"
	if !success {
		t, verb = TypeError, "Failed to"
	}
	noun := "item"
	if count > 1 {
		noun = "items"
	}
	msg := fmt.Sprintf("%s %s %d %s", verb, strings.ToLower(action), count, noun)
	return r.center.Add(t, "Bulk "+action, WithMessage(msg), WithDuration(4*time.Second))
}

// Package reminder derives due-date reminders from active borrowings and
// keeps a polled, dismissable feed of them for student accounts.
package reminder

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/dukerupert/labbo/internal/model"
)

const (
	// Window is how far ahead of now a due date triggers a reminder.
	Window = 72 * time.Hour
	// PollInterval is how often a running Feed refreshes.
	PollInterval = 30 * time.Minute
	// DisplayCap bounds how many reminders Active returns.
	DisplayCap = 3

	UnknownEquipment = "Unknown Equipment"
)

// Source lists a user's active borrowings due on or before through.
type Source interface {
	ListDueBorrowings(ctx context.Context, userID string, through time.Time) ([]model.BorrowingTransaction, error)
}

// Reminder is a read-only projection of one borrowing.
type Reminder struct {
	ID            string    `json:"id"`
	EquipmentName string    `json:"equipment_name"`
	DueDate       string    `json:"due_date"`
	Due           time.Time `json:"-"`
	DaysUntilDue  int       `json:"days_until_due"`
	IsOverdue     bool      `json:"is_overdue"`
}

// DaysUntil returns the whole days from now to due, rounded up.
// Negative values mean overdue.
func DaysUntil(due, now time.Time) int {
	return int(math.Ceil(due.Sub(now).Hours() / 24))
}

// Derive projects borrowing records into reminders sorted by earliest due
// date. Records with an unparseable due date are skipped.
func Derive(records []model.BorrowingTransaction, now time.Time) []Reminder {
	out := make([]Reminder, 0, len(records))
	for _, rec := range records {
		due, err := rec.DueDate()
		if err != nil {
			continue
		}
		name := rec.EquipmentName
		if name == "" {
			name = UnknownEquipment
		}
		days := DaysUntil(due, now)
		out = append(out, Reminder{
			ID:            rec.ID,
			EquipmentName: name,
			DueDate:       rec.ExpectedReturnDate,
			Due:           due,
			DaysUntilDue:  days,
			IsOverdue:     days < 0,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Due.Before(out[j].Due) })
	return out
}

// UrgencyText is the short label shown next to a reminder.
func UrgencyText(days int) string {
	switch {
	case days < 0:
		return fmt.Sprintf("%d days overdue", -days)
	case days == 0:
		return "Due today"
	case days == 1:
		return "Due in 1 day"
	default:
		return fmt.Sprintf("Due in %d days", days)
	}
}

// Urgency buckets
const (
	UrgencyOverdue  = "overdue"
	UrgencyToday    = "today"
	UrgencySoon     = "soon"
	UrgencyUpcoming = "upcoming"
)

// Urgency classifies days for styling and notification priority.
func Urgency(days int) string {
	switch {
	case days < 0:
		return UrgencyOverdue
	case days == 0:
		return UrgencyToday
	case days <= 2:
		return UrgencySoon
	}
	return UrgencyUpcoming
}

// FormatDueDate renders a due date like "Wed, Oct 21".
func FormatDueDate(due time.Time) string {
	return due.Format("Mon, Jan 2")
}

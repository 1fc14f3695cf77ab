package model

import "time"

// Borrowing status constants
const (
	BorrowingActive   = "active"
	BorrowingReturned = "returned"
	BorrowingOverdue  = "overdue"
)

// DateLayout is the calendar-date format used for expected return dates.
const DateLayout = "2006-01-02"

type BorrowingTransaction struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"user_id"`
	EquipmentID        string     `json:"equipment_id"`
	EquipmentName      string     `json:"equipment_name,omitempty"`
	BorrowDate         time.Time  `json:"borrow_date"`
	ExpectedReturnDate string     `json:"expected_return_date"`
	ActualReturnDate   *time.Time `json:"actual_return_date,omitempty"`
	Status             string     `json:"status"`
	Notes              string     `json:"notes,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// DueDate parses ExpectedReturnDate as a UTC calendar date.
func (b *BorrowingTransaction) DueDate() (time.Time, error) {
	return time.Parse(DateLayout, b.ExpectedReturnDate)
}

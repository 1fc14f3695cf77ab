package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/labbo/internal/model"
	"github.com/google/uuid"
)

var (
	// ErrEquipmentUnavailable is returned when borrowing equipment that is not available.
	ErrEquipmentUnavailable = errors.New("equipment is not available")
	// ErrAlreadyReturned is returned when returning a closed transaction.
	ErrAlreadyReturned = errors.New("borrowing already returned")
)

type BorrowingStore struct {
	db *sql.DB
}

func NewBorrowingStore(db *sql.DB) *BorrowingStore {
	return &BorrowingStore{db: db}
}

func scanBorrowing(scanner interface{ Scan(...any) error }) (*model.BorrowingTransaction, error) {
	var b model.BorrowingTransaction
	var name, notes sql.NullString
	var returned sql.NullTime
	err := scanner.Scan(
		&b.ID, &b.UserID, &b.EquipmentID, &name, &b.BorrowDate, &b.ExpectedReturnDate,
		&returned, &b.Status, &notes, &b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.EquipmentName = name.String
	b.Notes = notes.String
	b.ActualReturnDate = nullTimePtr(returned)
	return &b, nil
}

const borrowingSelect = `SELECT b.id, b.user_id, b.equipment_id, e.name, b.borrow_date, b.expected_return_date,
	b.actual_return_date, b.status, b.notes, b.created_at
	FROM borrowing_transactions b LEFT JOIN equipment e ON e.id = b.equipment_id`

// Borrow opens a transaction for equipmentID and marks the equipment borrowed.
func (s *BorrowingStore) Borrow(userID, equipmentID string, expectedReturn time.Time, notes string) (*model.BorrowingTransaction, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var status string
	err = tx.QueryRow(`SELECT status FROM equipment WHERE id = ?`, equipmentID).Scan(&status)
	if err == sql.ErrNoRows {
		return nil, ErrEquipmentUnavailable
	}
	if err != nil {
		return nil, fmt.Errorf("get equipment status: %w", err)
	}
	if status != model.EquipmentAvailable {
		return nil, ErrEquipmentUnavailable
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	_, err = tx.Exec(
		`INSERT INTO borrowing_transactions (id, user_id, equipment_id, borrow_date, expected_return_date, status, notes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, userID, equipmentID, now, expectedReturn.Format(model.DateLayout), model.BorrowingActive, nullString(notes), now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert borrowing: %w", err)
	}
	if _, err := tx.Exec(`UPDATE equipment SET status = ?, updated_at = ? WHERE id = ?`, model.EquipmentBorrowed, now, equipmentID); err != nil {
		return nil, fmt.Errorf("mark equipment borrowed: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit borrow: %w", err)
	}
	return s.GetByID(id)
}

// Return closes an open transaction and frees the equipment.
func (s *BorrowingStore) Return(id string, at time.Time) (*model.BorrowingTransaction, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var status, equipmentID string
	err = tx.QueryRow(`SELECT status, equipment_id FROM borrowing_transactions WHERE id = ?`, id).Scan(&status, &equipmentID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get borrowing: %w", err)
	}
	if status == model.BorrowingReturned {
		return nil, ErrAlreadyReturned
	}

	at = at.UTC()
	if _, err := tx.Exec(
		`UPDATE borrowing_transactions SET status = ?, actual_return_date = ? WHERE id = ?`,
		model.BorrowingReturned, at, id,
	); err != nil {
		return nil, fmt.Errorf("close borrowing: %w", err)
	}
	if _, err := tx.Exec(`UPDATE equipment SET status = ?, updated_at = ? WHERE id = ?`, model.EquipmentAvailable, at, equipmentID); err != nil {
		return nil, fmt.Errorf("free equipment: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit return: %w", err)
	}
	return s.GetByID(id)
}

func (s *BorrowingStore) GetByID(id string) (*model.BorrowingTransaction, error) {
	row := s.db.QueryRow(borrowingSelect+` WHERE b.id = ?`, id)
	b, err := scanBorrowing(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get borrowing: %w", err)
	}
	return b, nil
}

// ListByUser returns a user's transactions, newest first. An empty status matches all.
func (s *BorrowingStore) ListByUser(userID, status string) ([]model.BorrowingTransaction, error) {
	query := borrowingSelect + ` WHERE b.user_id = ?`
	args := []any{userID}
	if status != "" {
		query += ` AND b.status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY b.borrow_date DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list borrowings by user: %w", err)
	}
	defer rows.Close()
	return scanBorrowings(rows)
}

// ListDueBorrowings returns the user's active transactions whose expected
// return date is on or before through, earliest first.
func (s *BorrowingStore) ListDueBorrowings(ctx context.Context, userID string, through time.Time) ([]model.BorrowingTransaction, error) {
	rows, err := s.db.QueryContext(ctx,
		borrowingSelect+` WHERE b.user_id = ? AND b.status = ? AND b.expected_return_date <= ?
		 ORDER BY b.expected_return_date`,
		userID, model.BorrowingActive, through.Format(model.DateLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("list due borrowings: %w", err)
	}
	defer rows.Close()
	return scanBorrowings(rows)
}

// ListAllDue returns every active transaction due on or before through.
func (s *BorrowingStore) ListAllDue(ctx context.Context, through time.Time) ([]model.BorrowingTransaction, error) {
	rows, err := s.db.QueryContext(ctx,
		borrowingSelect+` WHERE b.status = ? AND b.expected_return_date <= ?
		 ORDER BY b.expected_return_date`,
		model.BorrowingActive, through.Format(model.DateLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("list all due borrowings: %w", err)
	}
	defer rows.Close()
	return scanBorrowings(rows)
}

func scanBorrowings(rows *sql.Rows) ([]model.BorrowingTransaction, error) {
	var items []model.BorrowingTransaction
	for rows.Next() {
		b, err := scanBorrowing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan borrowing: %w", err)
		}
		items = append(items, *b)
	}
	return items, rows.Err()
}

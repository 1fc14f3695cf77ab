package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dukerupert/labbo/internal/model"
	"github.com/google/uuid"
)

type NotificationStore struct {
	db *sql.DB
}

func NewNotificationStore(db *sql.DB) *NotificationStore {
	return &NotificationStore{db: db}
}

func scanNotification(scanner interface{ Scan(...any) error }) (*model.Notification, error) {
	var n model.Notification
	var userID, data sql.NullString
	var isRead int
	var readAt sql.NullTime
	err := scanner.Scan(&n.ID, &userID, &n.Type, &n.Title, &n.Message, &isRead, &n.Priority, &data, &n.CreatedAt, &readAt)
	if err != nil {
		return nil, err
	}
	n.UserID = nullStringPtr(userID)
	n.IsRead = isRead != 0
	n.ReadAt = nullTimePtr(readAt)
	if data.Valid && data.String != "" {
		if err := json.Unmarshal([]byte(data.String), &n.Data); err != nil {
			return nil, fmt.Errorf("decode notification data: %w", err)
		}
	}
	return &n, nil
}

const notificationCols = `id, user_id, type, title, message, is_read, priority, data, created_at, read_at`

// Create persists n. A nil UserID makes it a broadcast visible to everyone.
func (s *NotificationStore) Create(n model.Notification) (*model.Notification, error) {
	if n.Priority == "" {
		n.Priority = model.PriorityMedium
	}
	var data sql.NullString
	if len(n.Data) > 0 {
		b, err := json.Marshal(n.Data)
		if err != nil {
			return nil, fmt.Errorf("encode notification data: %w", err)
		}
		data = sql.NullString{String: string(b), Valid: true}
	}
	var userID sql.NullString
	if n.UserID != nil {
		userID = sql.NullString{String: *n.UserID, Valid: true}
	}

	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO notifications (id, user_id, type, title, message, priority, data, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, userID, n.Type, n.Title, n.Message, n.Priority, data, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+notificationCols+` FROM notifications WHERE id = ?`, id)
	return scanNotification(row)
}

// ListForUser returns notifications addressed to userID plus broadcasts, newest first.
func (s *NotificationStore) ListForUser(userID string, unreadOnly bool, limit int) ([]model.Notification, error) {
	query := `SELECT ` + notificationCols + ` FROM notifications WHERE (user_id = ? OR user_id IS NULL)`
	if unreadOnly {
		query += ` AND is_read = 0`
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var items []model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		items = append(items, *n)
	}
	return items, rows.Err()
}

func (s *NotificationStore) UnreadCount(userID string) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM notifications WHERE (user_id = ? OR user_id IS NULL) AND is_read = 0`, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead marks one notification read. Returns false if it does not belong to userID.
func (s *NotificationStore) MarkRead(id, userID string) (bool, error) {
	now := time.Now().UTC()
	result, err := s.db.Exec(
		`UPDATE notifications SET is_read = 1, read_at = COALESCE(read_at, ?)
		 WHERE id = ? AND (user_id = ? OR user_id IS NULL)`,
		now, id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *NotificationStore) MarkAllRead(userID string) (int64, error) {
	result, err := s.db.Exec(
		`UPDATE notifications SET is_read = 1, read_at = ? WHERE user_id = ? AND is_read = 0`,
		time.Now().UTC(), userID,
	)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return result.RowsAffected()
}

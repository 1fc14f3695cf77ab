package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/labbo/internal/model"
	"github.com/google/uuid"
)

// AuditStore records security-relevant events and failed sign-ins.
type AuditStore struct {
	db *sql.DB
}

func NewAuditStore(db *sql.DB) *AuditStore {
	return &AuditStore{db: db}
}

func (s *AuditStore) Record(entry model.AuditLog) error {
	var userID, resourceID sql.NullString
	if entry.UserID != nil {
		userID = sql.NullString{String: *entry.UserID, Valid: true}
	}
	if entry.ResourceID != nil {
		resourceID = sql.NullString{String: *entry.ResourceID, Valid: true}
	}
	_, err := s.db.Exec(
		`INSERT INTO audit_logs (id, user_id, action, resource_type, resource_id, details, ip_address, user_agent, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), userID, entry.Action, entry.ResourceType, resourceID,
		nullString(entry.Details), nullString(entry.IPAddress), nullString(entry.UserAgent), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func (s *AuditStore) ListByUser(userID string, limit int) ([]model.AuditLog, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, action, resource_type, resource_id, details, ip_address, user_agent, created_at
		 FROM audit_logs WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	var logs []model.AuditLog
	for rows.Next() {
		var l model.AuditLog
		var uid, rid, details, ip, ua sql.NullString
		if err := rows.Scan(&l.ID, &uid, &l.Action, &l.ResourceType, &rid, &details, &ip, &ua, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		l.UserID = nullStringPtr(uid)
		l.ResourceID = nullStringPtr(rid)
		l.Details = details.String
		l.IPAddress = ip.String
		l.UserAgent = ua.String
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (s *AuditStore) RecordFailedLogin(email, ip, userAgent string, at time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO failed_login_attempts (id, email, ip_address, user_agent, attempted_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), normalizeEmail(email), ip, nullString(userAgent), at.UTC(), at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert failed login: %w", err)
	}
	return nil
}

// CountFailedLogins returns attempts for email at or after since.
func (s *AuditStore) CountFailedLogins(email string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM failed_login_attempts WHERE email = ? AND attempted_at >= ?`,
		normalizeEmail(email), since.UTC(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count failed logins: %w", err)
	}
	return count, nil
}

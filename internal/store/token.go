package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/labbo/internal/model"
	"github.com/google/uuid"
)

const (
	PasswordResetTTL     = time.Hour
	EmailVerificationTTL = 24 * time.Hour
)

// TokenStore manages single-use user tokens in one of the token tables.
type TokenStore struct {
	db    *sql.DB
	table string
	ttl   time.Duration
}

func NewPasswordResetStore(db *sql.DB) *TokenStore {
	return &TokenStore{db: db, table: "password_reset_tokens", ttl: PasswordResetTTL}
}

func NewEmailVerificationStore(db *sql.DB) *TokenStore {
	return &TokenStore{db: db, table: "email_verification_tokens", ttl: EmailVerificationTTL}
}

func scanUserToken(scanner interface{ Scan(...any) error }) (*model.UserToken, error) {
	var t model.UserToken
	var usedAt sql.NullTime
	if err := scanner.Scan(&t.ID, &t.UserID, &t.Token, &t.ExpiresAt, &usedAt, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.UsedAt = nullTimePtr(usedAt)
	return &t, nil
}

const userTokenCols = `id, user_id, token, expires_at, used_at, created_at`

// Create issues a new token for userID. Previous unused tokens for the
// user are invalidated first.
func (s *TokenStore) Create(userID string) (*model.UserToken, error) {
	now := time.Now().UTC()
	_, err := s.db.Exec(
		`UPDATE `+s.table+` SET used_at = ?, updated_at = ? WHERE user_id = ? AND used_at IS NULL`,
		now, now, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("invalidate previous tokens: %w", err)
	}

	token, err := randomToken()
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	_, err = s.db.Exec(
		`INSERT INTO `+s.table+` (id, user_id, token, expires_at, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, userID, token, now.Add(s.ttl), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert token: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+userTokenCols+` FROM `+s.table+` WHERE id = ?`, id)
	return scanUserToken(row)
}

// Consume marks a valid token as used and returns it. Returns nil if the
// token is unknown, expired or already used.
func (s *TokenStore) Consume(token string) (*model.UserToken, error) {
	now := time.Now().UTC()
	row := s.db.QueryRow(
		`SELECT `+userTokenCols+` FROM `+s.table+` WHERE token = ? AND used_at IS NULL AND expires_at > ?`,
		token, now,
	)
	t, err := scanUserToken(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}

	if _, err := s.db.Exec(`UPDATE `+s.table+` SET used_at = ?, updated_at = ? WHERE id = ?`, now, now, t.ID); err != nil {
		return nil, fmt.Errorf("mark token used: %w", err)
	}
	t.UsedAt = &now
	return t, nil
}

func (s *TokenStore) DeleteExpired() (int64, error) {
	result, err := s.db.Exec(`DELETE FROM `+s.table+` WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}

package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/labbo/internal/model"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ErrEmailTaken is returned when registering an email that already exists.
var ErrEmailTaken = errors.New("email already registered")

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

// NewUser holds the fields required to create an account.
type NewUser struct {
	Email      string
	FullName   string
	Role       string
	Department string
	Password   string
	Verified   bool
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var nim, nip, phone, level, rank sql.NullString
	var verified int
	var verifiedAt, lastLogin, lockedUntil sql.NullTime
	err := scanner.Scan(
		&u.ID, &u.Email, &u.FullName, &u.Role, &u.Department,
		&nim, &nip, &phone, &level, &rank,
		&verified, &verifiedAt, &lastLogin, &u.LoginCount, &lockedUntil, &u.FailedLoginAttempts,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.NIM = nullStringPtr(nim)
	u.NIP = nullStringPtr(nip)
	u.Phone = nullStringPtr(phone)
	u.StudentLevel = nullStringPtr(level)
	u.LecturerRank = nullStringPtr(rank)
	u.EmailVerified = verified != 0
	u.EmailVerifiedAt = nullTimePtr(verifiedAt)
	u.LastLoginAt = nullTimePtr(lastLogin)
	u.LockedUntil = nullTimePtr(lockedUntil)
	return &u, nil
}

const userCols = `id, email, full_name, role, department, nim, nip, phone, student_level, lecturer_rank,
	email_verified, email_verified_at, last_login_at, login_count, locked_until, failed_login_attempts,
	created_at, updated_at`

// Create inserts a user with a bcrypt-hashed password.
func (s *UserStore) Create(nu NewUser) (*model.User, error) {
	email := normalizeEmail(nu.Email)
	role := nu.Role
	if role == "" {
		role = model.RoleStudent
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(nu.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	existing, err := s.GetByEmail(email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	var verified int
	var verifiedAt sql.NullTime
	if nu.Verified {
		verified = 1
		verifiedAt = sql.NullTime{Time: now, Valid: true}
	}

	_, err = s.db.Exec(
		`INSERT INTO users (id, email, full_name, role, department, password_hash, email_verified, email_verified_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, email, strings.TrimSpace(nu.FullName), role, nu.Department, string(hash), verified, verifiedAt, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(email string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE email = ?`, normalizeEmail(email))
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// ListByEmails returns users matching any of the given emails, newest first.
func (s *UserStore) ListByEmails(emails []string) ([]model.User, error) {
	if len(emails) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(emails)), ",")
	args := make([]any, len(emails))
	for i, e := range emails {
		args[i] = normalizeEmail(e)
	}

	rows, err := s.db.Query(
		`SELECT `+userCols+` FROM users WHERE email IN (`+placeholders+`) ORDER BY created_at DESC LIMIT 10`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list users by email: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// CheckPassword reports whether password matches the stored hash for id.
func (s *UserStore) CheckPassword(id, password string) (bool, error) {
	var hash string
	err := s.db.QueryRow(`SELECT password_hash FROM users WHERE id = ?`, id).Scan(&hash)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get password hash: %w", err)
	}
	if hash == "" {
		return false, nil
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil, nil
}

func (s *UserStore) SetPassword(id, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	_, err = s.db.Exec(
		`UPDATE users SET password_hash = ?, failed_login_attempts = 0, locked_until = NULL, updated_at = ? WHERE id = ?`,
		string(hash), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	return nil
}

// RecordLoginSuccess resets the failure counter and bumps login stats.
func (s *UserStore) RecordLoginSuccess(id string, at time.Time) error {
	_, err := s.db.Exec(
		`UPDATE users SET last_login_at = ?, login_count = login_count + 1, failed_login_attempts = 0, locked_until = NULL, updated_at = ?
		 WHERE id = ?`,
		at.UTC(), at.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("record login success: %w", err)
	}
	return nil
}

// RecordLoginFailure increments the failure counter and locks the account
// once maxAttempts is reached. Returns the new attempt count.
func (s *UserStore) RecordLoginFailure(id string, at time.Time, maxAttempts int, lockFor time.Duration) (int, error) {
	_, err := s.db.Exec(
		`UPDATE users SET failed_login_attempts = failed_login_attempts + 1, updated_at = ? WHERE id = ?`,
		at.UTC(), id,
	)
	if err != nil {
		return 0, fmt.Errorf("increment failed logins: %w", err)
	}

	var attempts int
	if err := s.db.QueryRow(`SELECT failed_login_attempts FROM users WHERE id = ?`, id).Scan(&attempts); err != nil {
		return 0, fmt.Errorf("read failed logins: %w", err)
	}

	if attempts >= maxAttempts {
		_, err := s.db.Exec(
			`UPDATE users SET locked_until = ?, failed_login_attempts = 0 WHERE id = ?`,
			at.Add(lockFor).UTC(), id,
		)
		if err != nil {
			return 0, fmt.Errorf("lock user: %w", err)
		}
	}
	return attempts, nil
}

func (s *UserStore) MarkEmailVerified(id string, at time.Time) error {
	_, err := s.db.Exec(
		`UPDATE users SET email_verified = 1, email_verified_at = ?, updated_at = ? WHERE id = ?`,
		at.UTC(), at.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("mark email verified: %w", err)
	}
	return nil
}

func (s *UserStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func nullTimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	v := nt.Time
	return &v
}

// EnsureDemoAccounts creates any missing demo users with verified emails.
// Returns how many were created.
func (s *UserStore) EnsureDemoAccounts(accounts []model.DemoAccount) (int, error) {
	created := 0
	for _, a := range accounts {
		existing, err := s.GetByEmail(a.Email)
		if err != nil {
			return created, err
		}
		if existing != nil {
			continue
		}
		_, err = s.Create(NewUser{
			Email:      a.Email,
			FullName:   a.FullName,
			Role:       a.Role,
			Department: "Demo",
			Password:   a.Password,
			Verified:   true,
		})
		if err != nil {
			return created, fmt.Errorf("seed %s: %w", a.Email, err)
		}
		created++
	}
	return created, nil
}

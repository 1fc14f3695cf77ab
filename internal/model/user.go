package model

import "time"

// Role constants
const (
	RoleAdmin    = "admin"
	RoleLabStaff = "lab_staff"
	RoleLecturer = "lecturer"
	RoleStudent  = "student"
)

// ValidRole reports whether r is one of the known user roles.
func ValidRole(r string) bool {
	switch r {
	case RoleAdmin, RoleLabStaff, RoleLecturer, RoleStudent:
		return true
	}
	return false
}

type User struct {
	ID                  string     `json:"id"`
	Email               string     `json:"email"`
	FullName            string     `json:"full_name"`
	Role                string     `json:"role"`
	Department          string     `json:"department"`
	NIM                 *string    `json:"nim,omitempty"`
	NIP                 *string    `json:"nip,omitempty"`
	Phone               *string    `json:"phone,omitempty"`
	StudentLevel        *string    `json:"student_level,omitempty"`
	LecturerRank        *string    `json:"lecturer_rank,omitempty"`
	EmailVerified       bool       `json:"email_verified"`
	EmailVerifiedAt     *time.Time `json:"email_verified_at,omitempty"`
	LastLoginAt         *time.Time `json:"last_login_at,omitempty"`
	LoginCount          int        `json:"login_count"`
	LockedUntil         *time.Time `json:"locked_until,omitempty"`
	FailedLoginAttempts int        `json:"failed_login_attempts"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// IsStaff reports whether the user may manage inventory.
func (u *User) IsStaff() bool {
	return u.Role == RoleAdmin || u.Role == RoleLabStaff
}

// DemoAccount is a preconfigured login shown on the sign-in screen.
type DemoAccount struct {
	Email       string     `json:"email"`
	Password    string     `json:"password"`
	Role        string     `json:"role"`
	Description string     `json:"description"`
	FullName    string     `json:"full_name"`
	IsDatabase  bool       `json:"isDatabase"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
}

type FailedLoginAttempt struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	IPAddress   string    `json:"ip_address"`
	UserAgent   string    `json:"user_agent,omitempty"`
	AttemptedAt time.Time `json:"attempted_at"`
}

type AuditLog struct {
	ID           string    `json:"id"`
	UserID       *string   `json:"user_id,omitempty"`
	Action       string    `json:"action"`
	ResourceType string    `json:"resource_type"`
	ResourceID   *string   `json:"resource_id,omitempty"`
	Details      string    `json:"details,omitempty"`
	IPAddress    string    `json:"ip_address,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// DefaultDemoAccounts is the built-in list shown when no demo users exist.
func DefaultDemoAccounts() []DemoAccount {
	return []DemoAccount{
		{Email: "admin@example.com", Password: "admin123", Role: RoleAdmin, Description: "Akses penuh sistem", FullName: "Demo Admin"},
		{Email: "student@example.com", Password: "student123", Role: RoleStudent, Description: "Mahasiswa biasa", FullName: "Demo Student"},
		{Email: "lecturer@example.com", Password: "lecturer123", Role: RoleLecturer, Description: "Dosen pengajar", FullName: "Demo Lecturer"},
		{Email: "labstaff@example.com", Password: "labstaff123", Role: RoleLabStaff, Description: "Staff laboratorium", FullName: "Demo Lab Staff"},
	}
}

// DemoPassword returns the well-known password for a demo email, or
// "<role>123" for anything else.
func DemoPassword(email, role string) string {
	for _, a := range DefaultDemoAccounts() {
		if a.Email == email {
			return a.Password
		}
	}
	return role + "123"
}

// RoleDescription returns the sign-in screen blurb for a role.
func RoleDescription(role string) string {
	switch role {
	case RoleAdmin:
		return "Akses penuh sistem"
	case RoleLabStaff:
		return "Staff laboratorium"
	case RoleLecturer:
		return "Dosen pengajar"
	case RoleStudent:
		return "Mahasiswa biasa"
	}
	return "Pengguna sistem"
}

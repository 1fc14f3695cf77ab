package apiclient

import (
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/labbo/internal/model"
)

// Session is the result of a successful login.
type Session struct {
	User  model.User
	Token string
}

type RegisterRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterResult struct {
	User                 *model.User
	RequiresVerification bool
	Message              string
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenRequest struct {
	SessionToken string `json:"sessionToken"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type resetRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type verifyEmailRequest struct {
	Token string `json:"token"`
}

type errorBody struct {
	Success *bool  `json:"success,omitempty"`
	Error   string `json:"error"`
}

type loginResponse struct {
	Success      bool        `json:"success"`
	User         *model.User `json:"user"`
	SessionToken string      `json:"sessionToken"`
	Error        string      `json:"error"`
}

func (r *loginResponse) validate() error {
	if !r.Success {
		return nil
	}
	if r.SessionToken == "" {
		return errors.New("missing sessionToken")
	}
	if r.User == nil {
		return errors.New("missing user")
	}
	return validateUser(r.User)
}

type verifyResponse struct {
	User *model.User `json:"user"`
}

func (r *verifyResponse) validate() error {
	if r.User == nil {
		return errors.New("missing user")
	}
	return validateUser(r.User)
}

type registerResponse struct {
	Success              bool        `json:"success"`
	User                 *model.User `json:"user"`
	RequiresVerification bool        `json:"requiresVerification"`
	Message              string      `json:"message"`
	Error                string      `json:"error"`
}

func (r *registerResponse) validate() error {
	if r.User != nil {
		return validateUser(r.User)
	}
	return nil
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (r *messageResponse) validate() error { return nil }

type demoAccountsResponse struct {
	DemoAccounts []model.DemoAccount `json:"demoAccounts"`
}

func (r *demoAccountsResponse) validate() error {
	if r.DemoAccounts == nil {
		return errors.New("missing demoAccounts")
	}
	for i, a := range r.DemoAccounts {
		if a.Email == "" || a.Password == "" {
			return fmt.Errorf("demoAccounts[%d]: missing credentials", i)
		}
		if !model.ValidRole(a.Role) {
			return fmt.Errorf("demoAccounts[%d]: unknown role %q", i, a.Role)
		}
	}
	return nil
}

type equipmentResponse struct {
	Equipment *model.Equipment `json:"equipment"`
}

func (r *equipmentResponse) validate() error {
	e := r.Equipment
	if e == nil {
		return errors.New("missing equipment")
	}
	if e.ID == "" || e.Name == "" {
		return errors.New("equipment: missing id or name")
	}
	if !model.ValidEquipmentStatus(e.Status) {
		return fmt.Errorf("equipment: unknown status %q", e.Status)
	}
	return nil
}

type borrowingsResponse struct {
	Borrowings []model.BorrowingTransaction `json:"borrowings"`
}

func (r *borrowingsResponse) validate() error {
	for i, b := range r.Borrowings {
		if b.ID == "" {
			return fmt.Errorf("borrowings[%d]: missing id", i)
		}
		if _, err := time.Parse(model.DateLayout, b.ExpectedReturnDate); err != nil {
			return fmt.Errorf("borrowings[%d]: bad expected_return_date %q", i, b.ExpectedReturnDate)
		}
	}
	return nil
}

func validateUser(u *model.User) error {
	if u.ID == "" || u.Email == "" {
		return errors.New("user: missing id or email")
	}
	if !model.ValidRole(u.Role) {
		return fmt.Errorf("user: unknown role %q", u.Role)
	}
	return nil
}

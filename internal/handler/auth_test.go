package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukerupert/labbo/internal/middleware"
	"github.com/dukerupert/labbo/internal/model"
	"github.com/dukerupert/labbo/internal/store"
)

type loginBody struct {
	Success      bool        `json:"success"`
	User         *model.User `json:"user"`
	SessionToken string      `json:"sessionToken"`
	Error        string      `json:"error"`
}

func newAuthHandler(f *fixture, mailer Mailer) *AuthHandler {
	return NewAuthHandler(f.users, f.sessions, f.resets, f.verifications, f.audit, mailer, false, f.logger)
}

func login(h *AuthHandler, email, password string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.Login(rec, jsonRequest("POST", "/api/auth/login", map[string]string{"email": email, "password": password}))
	return rec
}

func TestLoginSuccess(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "student@example.com", model.RoleStudent)
	h := newAuthHandler(f, nil)

	rec := login(h, "Student@Example.com", "secret123")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	var body loginBody
	decodeBody(t, rec, &body)
	if !body.Success || body.SessionToken == "" {
		t.Fatalf("body = %+v, want success with token", body)
	}
	if body.User == nil || body.User.ID != u.ID {
		t.Errorf("user = %+v, want %s", body.User, u.ID)
	}
	if body.User.LoginCount != 1 {
		t.Errorf("login_count = %d, want 1", body.User.LoginCount)
	}

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value != body.SessionToken || !cookie.HttpOnly {
		t.Errorf("session cookie = %+v", cookie)
	}

	logs, err := f.audit.ListByUser(u.ID, 10)
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(logs) != 1 || logs[0].Action != "login" {
		t.Errorf("audit logs = %+v, want one login entry", logs)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	f := newFixture(t)
	f.user(t, "student@example.com", model.RoleStudent)
	h := newAuthHandler(f, nil)

	tests := []struct {
		name     string
		email    string
		password string
		status   int
	}{
		{"wrong password", "student@example.com", "nope", http.StatusUnauthorized},
		{"unknown email", "ghost@example.com", "secret123", http.StatusUnauthorized},
		{"missing password", "student@example.com", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := login(h, tt.email, tt.password)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			var body loginBody
			decodeBody(t, rec, &body)
			if body.Success || body.Error == "" {
				t.Errorf("body = %+v, want failure with error", body)
			}
		})
	}

	n, err := f.audit.CountFailedLogins("student@example.com", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("count failed logins: %v", err)
	}
	if n != 1 {
		t.Errorf("failed logins recorded = %d, want 1", n)
	}
}

func TestLoginLockout(t *testing.T) {
	f := newFixture(t)
	f.user(t, "student@example.com", model.RoleStudent)
	h := newAuthHandler(f, nil)

	for i := 1; i < MaxFailedLogins; i++ {
		if rec := login(h, "student@example.com", "wrong"); rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d status = %d, want 401", i, rec.Code)
		}
	}
	if rec := login(h, "student@example.com", "wrong"); rec.Code != http.StatusLocked {
		t.Fatalf("final attempt status = %d, want 423", rec.Code)
	}
	if rec := login(h, "student@example.com", "secret123"); rec.Code != http.StatusLocked {
		t.Errorf("correct password while locked status = %d, want 423", rec.Code)
	}

	h.now = func() time.Time { return time.Now().Add(LockoutDuration + time.Minute) }
	if rec := login(h, "student@example.com", "secret123"); rec.Code != http.StatusOK {
		t.Errorf("after lockout status = %d, want 200", rec.Code)
	}
}

func TestLoginUnverifiedRejected(t *testing.T) {
	f := newFixture(t)
	if _, err := f.users.Create(store.NewUser{Email: "new@example.com", Password: "secret123"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	h := newAuthHandler(f, newFakeMailer())

	rec := login(h, "new@example.com", "secret123")
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestVerifyAndLogout(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "lecturer@example.com", model.RoleLecturer)
	h := newAuthHandler(f, nil)

	var body loginBody
	decodeBody(t, login(h, u.Email, "secret123"), &body)

	rec := httptest.NewRecorder()
	h.Verify(rec, jsonRequest("POST", "/api/auth/verify", map[string]string{"sessionToken": body.SessionToken}))
	if rec.Code != http.StatusOK {
		t.Fatalf("verify status = %d, want 200", rec.Code)
	}
	var verified struct {
		User *model.User `json:"user"`
	}
	decodeBody(t, rec, &verified)
	if verified.User == nil || verified.User.ID != u.ID {
		t.Errorf("verified user = %+v", verified.User)
	}

	rec = httptest.NewRecorder()
	req := jsonRequest("POST", "/api/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+body.SessionToken)
	h.Logout(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Verify(rec, jsonRequest("POST", "/api/auth/verify", map[string]string{"sessionToken": body.SessionToken}))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("verify after logout status = %d, want 401", rec.Code)
	}

	logs, _ := f.audit.ListByUser(u.ID, 10)
	if len(logs) != 2 {
		t.Errorf("audit entries = %d, want login and logout", len(logs))
	}
}

func TestLogoutWithoutTokenSucceeds(t *testing.T) {
	f := newFixture(t)
	h := newAuthHandler(f, nil)

	rec := httptest.NewRecorder()
	h.Logout(rec, httptest.NewRequest("POST", "/api/auth/logout", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRegisterAndVerifyEmail(t *testing.T) {
	f := newFixture(t)
	mailer := newFakeMailer()
	h := newAuthHandler(f, mailer)

	rec := httptest.NewRecorder()
	h.Register(rec, jsonRequest("POST", "/api/auth/register", map[string]string{
		"full_name": "Ada Lovelace",
		"email":     "ada@example.com",
		"password":  "engine42",
		"role":      model.RoleAdmin,
	}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}

	var body struct {
		Success              bool        `json:"success"`
		User                 *model.User `json:"user"`
		RequiresVerification bool        `json:"requiresVerification"`
	}
	decodeBody(t, rec, &body)
	if !body.Success || !body.RequiresVerification {
		t.Errorf("body = %+v, want success requiring verification", body)
	}
	if body.User.Role != model.RoleStudent {
		t.Errorf("role = %q, want student", body.User.Role)
	}

	token := mailer.verifications["ada@example.com"]
	if token == "" {
		t.Fatal("expected verification email")
	}

	rec = httptest.NewRecorder()
	h.VerifyEmail(rec, jsonRequest("POST", "/api/auth/verify-email", map[string]string{"token": token}))
	if rec.Code != http.StatusOK {
		t.Fatalf("verify-email status = %d, want 200", rec.Code)
	}

	u, _ := f.users.GetByEmail("ada@example.com")
	if !u.EmailVerified {
		t.Error("expected email verified")
	}

	rec = httptest.NewRecorder()
	h.VerifyEmail(rec, jsonRequest("POST", "/api/auth/verify-email", map[string]string{"token": token}))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("reused token status = %d, want 400", rec.Code)
	}
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	f.user(t, "taken@example.com", model.RoleStudent)
	h := newAuthHandler(f, nil)

	tests := []struct {
		name   string
		body   map[string]string
		status int
	}{
		{"missing name", map[string]string{"email": "a@example.com", "password": "secret123"}, http.StatusBadRequest},
		{"bad email", map[string]string{"full_name": "A", "email": "nope", "password": "secret123"}, http.StatusBadRequest},
		{"short password", map[string]string{"full_name": "A", "email": "a@example.com", "password": "123"}, http.StatusBadRequest},
		{"duplicate", map[string]string{"full_name": "A", "email": "taken@example.com", "password": "secret123"}, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Register(rec, jsonRequest("POST", "/api/auth/register", tt.body))
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
		})
	}
}

func TestForgotAndResetPassword(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "student@example.com", model.RoleStudent)
	mailer := newFakeMailer()
	h := newAuthHandler(f, mailer)

	rec := httptest.NewRecorder()
	h.ForgotPassword(rec, jsonRequest("POST", "/api/auth/forgot-password", map[string]string{"email": "ghost@example.com"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("unknown email status = %d, want 200", rec.Code)
	}
	if len(mailer.resets) != 0 {
		t.Error("expected no mail for unknown email")
	}

	rec = httptest.NewRecorder()
	h.ForgotPassword(rec, jsonRequest("POST", "/api/auth/forgot-password", map[string]string{"email": u.Email}))
	if rec.Code != http.StatusOK {
		t.Fatalf("forgot status = %d, want 200", rec.Code)
	}
	token := mailer.resets[u.Email]
	if token == "" {
		t.Fatal("expected reset email")
	}

	rec = httptest.NewRecorder()
	h.ResetPassword(rec, jsonRequest("POST", "/api/auth/reset-password", map[string]string{"token": token, "password": "brandnew1"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("reset status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	ok, err := f.users.CheckPassword(u.ID, "brandnew1")
	if err != nil || !ok {
		t.Errorf("new password check = %v, %v", ok, err)
	}

	rec = httptest.NewRecorder()
	h.ResetPassword(rec, jsonRequest("POST", "/api/auth/reset-password", map[string]string{"token": token, "password": "another1"}))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("reused token status = %d, want 400", rec.Code)
	}
}

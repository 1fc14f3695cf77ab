package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/labbo/internal/middleware"
	"github.com/dukerupert/labbo/internal/model"
	"github.com/dukerupert/labbo/internal/store"
)

const (
	// MaxFailedLogins is how many consecutive bad passwords lock an account.
	MaxFailedLogins = 5
	// LockoutDuration is how long a locked account stays locked.
	LockoutDuration = 15 * time.Minute

	minPasswordLength = 6
)

// Mailer delivers account emails. *email.Client implements it.
type Mailer interface {
	SendPasswordReset(ctx context.Context, toEmail, token string) error
	SendEmailVerification(ctx context.Context, toEmail, token string) error
}

type AuthHandler struct {
	userStore         *store.UserStore
	sessionStore      *store.SessionStore
	resetStore        *store.TokenStore
	verificationStore *store.TokenStore
	auditStore        *store.AuditStore
	mailer            Mailer
	requireVerified   bool
	secureCookies     bool
	logger            *slog.Logger
	now               func() time.Time
}

// NewAuthHandler wires the auth endpoints. When mailer is nil, new accounts
// are created verified and reset links are only logged.
func NewAuthHandler(
	us *store.UserStore,
	ss *store.SessionStore,
	resets *store.TokenStore,
	verifications *store.TokenStore,
	as *store.AuditStore,
	mailer Mailer,
	secureCookies bool,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		userStore:         us,
		sessionStore:      ss,
		resetStore:        resets,
		verificationStore: verifications,
		auditStore:        as,
		mailer:            mailer,
		requireVerified:   mailer != nil,
		secureCookies:     secureCookies,
		logger:            logger,
		now:               time.Now,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAuthError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		writeAuthError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	now := h.now().UTC()
	user, err := h.userStore.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("login lookup", "error", err)
		writeAuthError(w, http.StatusInternalServerError, "Login failed")
		return
	}
	if user == nil {
		h.recordFailure(r, req.Email, now)
		writeAuthError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	if user.LockedUntil != nil && user.LockedUntil.After(now) {
		writeAuthError(w, http.StatusLocked, "Account is temporarily locked. Try again later.")
		return
	}

	ok, err := h.userStore.CheckPassword(user.ID, req.Password)
	if err != nil {
		h.logger.Error("check password", "error", err)
		writeAuthError(w, http.StatusInternalServerError, "Login failed")
		return
	}
	if !ok {
		h.recordFailure(r, req.Email, now)
		attempts, err := h.userStore.RecordLoginFailure(user.ID, now, MaxFailedLogins, LockoutDuration)
		if err != nil {
			h.logger.Error("record login failure", "error", err)
		}
		if attempts >= MaxFailedLogins {
			h.audit(r, user.ID, "account_locked", "user", user.ID, "")
			writeAuthError(w, http.StatusLocked, "Too many failed attempts. Account locked for 15 minutes.")
			return
		}
		writeAuthError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	if h.requireVerified && !user.EmailVerified {
		writeAuthError(w, http.StatusForbidden, "Please verify your email before signing in")
		return
	}

	if err := h.userStore.RecordLoginSuccess(user.ID, now); err != nil {
		h.logger.Error("record login success", "error", err)
	}

	sess, err := h.sessionStore.Create(user.ID)
	if err != nil {
		h.logger.Error("create session", "error", err)
		writeAuthError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	h.audit(r, user.ID, "login", "session", sess.ID, "")
	h.setSessionCookie(w, sess)

	if fresh, err := h.userStore.GetByID(user.ID); err == nil && fresh != nil {
		user = fresh
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"user":         user,
		"sessionToken": sess.Token,
	})
}

type tokenRequest struct {
	SessionToken string `json:"sessionToken"`
}

// sessionTokenFrom prefers the body token and falls back to header or cookie.
func sessionTokenFrom(w http.ResponseWriter, r *http.Request) string {
	var req tokenRequest
	if r.Body != nil && r.ContentLength != 0 {
		decodeJSON(w, r, &req)
	}
	if req.SessionToken != "" {
		return req.SessionToken
	}
	return middleware.SessionToken(r)
}

// Logout handles POST /api/auth/logout. It always succeeds.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := sessionTokenFrom(w, r)
	if token != "" {
		sess, err := h.sessionStore.GetByToken(token)
		if err != nil {
			h.logger.Error("logout lookup", "error", err)
		}
		if sess != nil {
			h.audit(r, sess.UserID, "logout", "session", sess.ID, "")
		}
		if err := h.sessionStore.DeleteByToken(token); err != nil {
			h.logger.Error("delete session", "error", err)
		}
	}

	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// Verify handles POST /api/auth/verify
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	token := sessionTokenFrom(w, r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "Invalid session")
		return
	}

	sess, err := h.sessionStore.GetByToken(token)
	if err != nil {
		h.logger.Error("verify session", "error", err)
		writeError(w, http.StatusInternalServerError, "Session verification failed")
		return
	}
	if sess == nil {
		writeError(w, http.StatusUnauthorized, "Invalid session")
		return
	}

	user, err := h.userStore.GetByID(sess.UserID)
	if err != nil || user == nil {
		writeError(w, http.StatusUnauthorized, "Invalid session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

type registerRequest struct {
	FullName   string `json:"full_name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Role       string `json:"role"`
	Department string `json:"department"`
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAuthError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.TrimSpace(req.Email)
	switch {
	case req.FullName == "":
		writeAuthError(w, http.StatusBadRequest, "Full name is required")
		return
	case !strings.Contains(req.Email, "@"):
		writeAuthError(w, http.StatusBadRequest, "A valid email is required")
		return
	case len(req.Password) < minPasswordLength:
		writeAuthError(w, http.StatusBadRequest, "Password must be at least 6 characters")
		return
	}

	// Self-registration never grants staff roles.
	role := req.Role
	if role != model.RoleLecturer {
		role = model.RoleStudent
	}

	user, err := h.userStore.Create(store.NewUser{
		Email:      req.Email,
		FullName:   req.FullName,
		Role:       role,
		Department: req.Department,
		Password:   req.Password,
		Verified:   !h.requireVerified,
	})
	if errors.Is(err, store.ErrEmailTaken) {
		writeAuthError(w, http.StatusConflict, "Email already registered")
		return
	}
	if err != nil {
		h.logger.Error("register user", "error", err)
		writeAuthError(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	h.audit(r, user.ID, "register", "user", user.ID, "")

	message := "Registration successful. You can now sign in."
	if h.requireVerified {
		message = "Registration successful. Check your email to verify your account."
		tok, err := h.verificationStore.Create(user.ID)
		if err != nil {
			h.logger.Error("create verification token", "error", err)
		} else if err := h.mailer.SendEmailVerification(r.Context(), user.Email, tok.Token); err != nil {
			h.logger.Error("send verification email", "error", err)
		}
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success":              true,
		"user":                 user,
		"requiresVerification": h.requireVerified,
		"message":              message,
	})
}

type verifyEmailRequest struct {
	Token string `json:"token"`
}

// VerifyEmail handles POST /api/auth/verify-email
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Token == "" {
		writeAuthError(w, http.StatusBadRequest, "Verification token is required")
		return
	}

	tok, err := h.verificationStore.Consume(req.Token)
	if err != nil {
		h.logger.Error("consume verification token", "error", err)
		writeAuthError(w, http.StatusInternalServerError, "Email verification failed")
		return
	}
	if tok == nil {
		writeAuthError(w, http.StatusBadRequest, "Invalid or expired verification link")
		return
	}

	if err := h.userStore.MarkEmailVerified(tok.UserID, h.now()); err != nil {
		h.logger.Error("mark email verified", "error", err)
		writeAuthError(w, http.StatusInternalServerError, "Email verification failed")
		return
	}

	h.audit(r, tok.UserID, "email_verified", "user", tok.UserID, "")
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Email verified. You can now sign in.",
	})
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// ForgotPassword handles POST /api/auth/forgot-password. The response is
// the same whether or not the account exists.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil || !strings.Contains(req.Email, "@") {
		writeAuthError(w, http.StatusBadRequest, "A valid email is required")
		return
	}

	defer writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "If an account exists for that email, a reset link has been sent.",
	})

	user, err := h.userStore.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("forgot password lookup", "error", err)
		return
	}
	if user == nil {
		return
	}

	tok, err := h.resetStore.Create(user.ID)
	if err != nil {
		h.logger.Error("create reset token", "error", err)
		return
	}
	if h.mailer == nil {
		h.logger.Warn("email not configured, reset link not sent", "user_id", user.ID)
		return
	}
	if err := h.mailer.SendPasswordReset(r.Context(), user.Email, tok.Token); err != nil {
		h.logger.Error("send reset email", "error", err)
	}
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// ResetPassword handles POST /api/auth/reset-password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Token == "" {
		writeAuthError(w, http.StatusBadRequest, "Reset token is required")
		return
	}
	if len(req.Password) < minPasswordLength {
		writeAuthError(w, http.StatusBadRequest, "Password must be at least 6 characters")
		return
	}

	tok, err := h.resetStore.Consume(req.Token)
	if err != nil {
		h.logger.Error("consume reset token", "error", err)
		writeAuthError(w, http.StatusInternalServerError, "Failed to reset password")
		return
	}
	if tok == nil {
		writeAuthError(w, http.StatusBadRequest, "Invalid or expired reset link")
		return
	}

	if err := h.userStore.SetPassword(tok.UserID, req.Password); err != nil {
		h.logger.Error("set password", "error", err)
		writeAuthError(w, http.StatusInternalServerError, "Failed to reset password")
		return
	}
	if err := h.sessionStore.DeleteByUserID(tok.UserID); err != nil {
		h.logger.Error("revoke sessions", "error", err)
	}

	h.audit(r, tok.UserID, "password_reset", "user", tok.UserID, "")
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Password updated. You can now sign in.",
	})
}

func (h *AuthHandler) recordFailure(r *http.Request, email string, at time.Time) {
	if err := h.auditStore.RecordFailedLogin(email, middleware.RealIP(r), r.UserAgent(), at); err != nil {
		h.logger.Error("record failed login", "error", err)
	}
}

func (h *AuthHandler) audit(r *http.Request, userID, action, resourceType, resourceID, details string) {
	if err := h.auditStore.Record(auditEntry(r, userID, action, resourceType, resourceID, details)); err != nil {
		h.logger.Error("record audit log", "action", action, "error", err)
	}
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, sess *model.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

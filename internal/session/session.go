// Package session holds the signed-in user for a client process and the
// token that proves it.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/dukerupert/labbo/internal/apiclient"
	"github.com/dukerupert/labbo/internal/model"
)

// User-facing error strings.
const (
	MsgConnectionError   = "Terjadi kesalahan koneksi"
	MsgLoginFailed       = "Login failed"
	MsgRegisterFailed    = "Registration failed"
	MsgResetFailed       = "Failed to reset password"
	MsgVerifyFailed      = "Email verification failed"
	MsgPasswordsMismatch = "Passwords do not match"
)

// Authenticator is the remote side of authentication.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*apiclient.Session, error)
	Logout(ctx context.Context, token string) error
	Verify(ctx context.Context, token string) (*model.User, error)
	Register(ctx context.Context, r apiclient.RegisterRequest) (*apiclient.RegisterResult, error)
	RequestPasswordReset(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, token, password string) (string, error)
	VerifyEmail(ctx context.Context, token string) (string, error)
}

// Result is the outcome of a user action. Error is set only when Success
// is false.
type Result struct {
	Success              bool
	Error                string
	Message              string
	RequiresVerification bool
}

// Context is the process-wide session. Construct one at startup and call
// Init before use.
type Context struct {
	api    Authenticator
	tokens TokenStore
	logger *slog.Logger

	mu      sync.RWMutex
	user    *model.User
	token   string
	loading bool
}

func New(api Authenticator, tokens TokenStore, logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.Default()
	}
	return &Context{
		api:     api,
		tokens:  tokens,
		logger:  logger,
		loading: true,
	}
}

// Init verifies a previously stored token once. Any failure clears it.
func (c *Context) Init(ctx context.Context) {
	defer func() {
		c.mu.Lock()
		c.loading = false
		c.mu.Unlock()
	}()

	token, err := c.tokens.Load()
	if err != nil {
		c.logger.Warn("load session token", "error", err)
		return
	}
	if token == "" {
		return
	}

	user, err := c.api.Verify(ctx, token)
	if err != nil {
		c.logger.Info("stored session rejected", "error", err)
		if err := c.tokens.Clear(); err != nil {
			c.logger.Warn("clear session token", "error", err)
		}
		return
	}

	c.mu.Lock()
	c.user = user
	c.token = token
	c.mu.Unlock()
}

// Login never returns an error; failures are reported in the Result.
func (c *Context) Login(ctx context.Context, email, password string) Result {
	sess, err := c.api.Login(ctx, email, password)
	if err != nil {
		c.logger.Info("login failed", "email", email, "error", err)
		return failure(err, MsgLoginFailed)
	}

	if err := c.tokens.Save(sess.Token); err != nil {
		c.logger.Warn("save session token", "error", err)
	}
	user := sess.User
	c.mu.Lock()
	c.user = &user
	c.token = sess.Token
	c.mu.Unlock()
	return Result{Success: true}
}

// Logout tells the server to drop the session and always clears local state.
func (c *Context) Logout(ctx context.Context) {
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token == "" {
		token, _ = c.tokens.Load()
	}

	if token != "" {
		if err := c.api.Logout(ctx, token); err != nil {
			c.logger.Warn("remote logout", "error", err)
		}
	}

	c.mu.Lock()
	c.user = nil
	c.token = ""
	c.mu.Unlock()
	if err := c.tokens.Clear(); err != nil {
		c.logger.Warn("clear session token", "error", err)
	}
}

// Register creates an account. The passwords are compared before any
// request is made.
func (c *Context) Register(ctx context.Context, fullName, email, password, repeat string) Result {
	if password != repeat {
		return Result{Error: MsgPasswordsMismatch}
	}
	res, err := c.api.Register(ctx, apiclient.RegisterRequest{FullName: fullName, Email: email, Password: password})
	if err != nil {
		return failure(err, MsgRegisterFailed)
	}
	return Result{Success: true, Message: res.Message, RequiresVerification: res.RequiresVerification}
}

func (c *Context) RequestPasswordReset(ctx context.Context, email string) Result {
	msg, err := c.api.RequestPasswordReset(ctx, email)
	if err != nil {
		return failure(err, MsgResetFailed)
	}
	return Result{Success: true, Message: msg}
}

func (c *Context) ResetPassword(ctx context.Context, token, password, confirm string) Result {
	if password != confirm {
		return Result{Error: MsgPasswordsMismatch}
	}
	msg, err := c.api.ResetPassword(ctx, token, password)
	if err != nil {
		return failure(err, MsgResetFailed)
	}
	return Result{Success: true, Message: msg}
}

func (c *Context) VerifyEmail(ctx context.Context, token string) Result {
	msg, err := c.api.VerifyEmail(ctx, token)
	if err != nil {
		return failure(err, MsgVerifyFailed)
	}
	return Result{Success: true, Message: msg}
}

// User returns a copy of the signed-in user, or nil.
func (c *Context) User() *model.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil {
		return nil
	}
	u := *c.user
	return &u
}

func (c *Context) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Context) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user != nil
}

// Loading reports whether Init has not finished yet.
func (c *Context) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

// failure maps a client error to a user-facing Result. Server messages
// pass through verbatim; anything else is a connection problem.
func failure(err error, fallback string) Result {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = fallback
		}
		return Result{Error: msg}
	}
	return Result{Error: MsgConnectionError}
}

// Package apiclient talks to the labbo HTTP API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dukerupert/labbo/internal/model"
)

const maxBodySize = 1 << 20

// Client is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type validator interface {
	validate() error
}

func (c *Client) do(ctx context.Context, method, path, token string, body any, out validator) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", ErrUnavailable, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		_ = json.Unmarshal(data, &eb)
		return &APIError{Status: resp.StatusCode, Message: eb.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &SchemaError{Endpoint: path, Reason: err.Error()}
	}
	if err := out.validate(); err != nil {
		return &SchemaError{Endpoint: path, Reason: err.Error()}
	}
	return nil
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	var resp loginResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/login", "", credentials{Email: email, Password: password}, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &APIError{Status: http.StatusOK, Message: resp.Error}
	}
	return &Session{User: *resp.User, Token: resp.SessionToken}, nil
}

// Logout invalidates token on the server.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/api/auth/logout", "", tokenRequest{SessionToken: token}, nil)
}

// Verify returns the user that owns token.
func (c *Client) Verify(ctx context.Context, token string) (*model.User, error) {
	var resp verifyResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/verify", "", tokenRequest{SessionToken: token}, &resp); err != nil {
		return nil, err
	}
	return resp.User, nil
}

func (c *Client) Register(ctx context.Context, r RegisterRequest) (*RegisterResult, error) {
	var resp registerResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", "", r, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &APIError{Status: http.StatusOK, Message: resp.Error}
	}
	return &RegisterResult{
		User:                 resp.User,
		RequiresVerification: resp.RequiresVerification,
		Message:              resp.Message,
	}, nil
}

func (c *Client) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	return c.message(ctx, "/api/auth/forgot-password", emailRequest{Email: email})
}

func (c *Client) ResetPassword(ctx context.Context, token, password string) (string, error) {
	return c.message(ctx, "/api/auth/reset-password", resetRequest{Token: token, Password: password})
}

func (c *Client) VerifyEmail(ctx context.Context, token string) (string, error) {
	return c.message(ctx, "/api/auth/verify-email", verifyEmailRequest{Token: token})
}

func (c *Client) message(ctx context.Context, path string, body any) (string, error) {
	var resp messageResponse
	if err := c.do(ctx, http.MethodPost, path, "", body, &resp); err != nil {
		return "", err
	}
	if !resp.Success {
		return "", &APIError{Status: http.StatusOK, Message: resp.Error}
	}
	return resp.Message, nil
}

func (c *Client) DemoAccounts(ctx context.Context) ([]model.DemoAccount, error) {
	var resp demoAccountsResponse
	if err := c.do(ctx, http.MethodGet, "/api/demo-accounts", "", nil, &resp); err != nil {
		return nil, err
	}
	return resp.DemoAccounts, nil
}

func (c *Client) Equipment(ctx context.Context, token, id string) (*model.Equipment, error) {
	var resp equipmentResponse
	if err := c.do(ctx, http.MethodGet, "/api/equipment/"+url.PathEscape(id), token, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Equipment, nil
}

// DueBorrowings lists the session user's active borrowings due on or before through.
func (c *Client) DueBorrowings(ctx context.Context, token string, through time.Time) ([]model.BorrowingTransaction, error) {
	q := url.Values{"through": {through.Format(model.DateLayout)}}
	var resp borrowingsResponse
	if err := c.do(ctx, http.MethodGet, "/api/borrowings/due?"+q.Encode(), token, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Borrowings, nil
}

// DueSource adapts the client to a reminder source bound to one session.
type DueSource struct {
	client *Client
	token  string
}

func (c *Client) DueSource(token string) *DueSource {
	return &DueSource{client: c, token: token}
}

// ListDueBorrowings ignores userID: the server scopes results to the token's user.
func (s *DueSource) ListDueBorrowings(ctx context.Context, userID string, through time.Time) ([]model.BorrowingTransaction, error) {
	return s.client.DueBorrowings(ctx, s.token, through)
}

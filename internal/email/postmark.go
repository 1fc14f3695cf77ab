package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
)

const postmarkURL = "https://api.postmarkapp.com/email"

// ErrNotConfigured is returned when no server token is set.
var ErrNotConfigured = errors.New("email client not configured: missing server token")

// Client sends transactional mail through Postmark.
type Client struct {
	mu          sync.RWMutex
	serverToken string
	fromEmail   string
	baseURL     string
	apiURL      string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithAPIURL points the client at a different Postmark-compatible endpoint.
func WithAPIURL(u string) Option {
	return func(cl *Client) {
		cl.apiURL = u
	}
}

func NewClient(serverToken, fromEmail, baseURL string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		baseURL:     baseURL,
		apiURL:      postmarkURL,
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token is set.
func (c *Client) Configured() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverToken != ""
}

// UpdateConfig replaces the credentials and link base at runtime.
func (c *Client) UpdateConfig(serverToken, fromEmail, baseURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.serverToken = serverToken
	c.fromEmail = fromEmail
	c.baseURL = baseURL
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

// SendPasswordReset mails a link to the reset form.
func (c *Client) SendPasswordReset(ctx context.Context, toEmail, token string) error {
	return c.sendLink(ctx, toEmail, "Reset your Labbo password", "reset your password", "/reset-password", token, "1 hour")
}

// SendEmailVerification mails a link that confirms the address of a new account.
func (c *Client) SendEmailVerification(ctx context.Context, toEmail, token string) error {
	return c.sendLink(ctx, toEmail, "Verify your Labbo email", "verify your email address", "/verify-email", token, "24 hours")
}

func (c *Client) sendLink(ctx context.Context, toEmail, subject, action, path, token, expiry string) error {
	c.mu.RLock()
	serverToken, from, base, apiURL := c.serverToken, c.fromEmail, c.baseURL, c.apiURL
	c.mu.RUnlock()

	if serverToken == "" {
		return ErrNotConfigured
	}

	link := fmt.Sprintf("%s%s?token=%s", base, path, token)
	textBody := fmt.Sprintf("Click the link below to %s:\n\n%s\n\nThis link expires in %s.", action, link, expiry)
	htmlBody := fmt.Sprintf(
		`<p>Click the link below to %s:</p><p><a href="%s">%s</a></p><p>This link expires in %s.</p>`,
		action, link, action, expiry,
	)

	body, err := json.Marshal(postmarkEmail{
		From:     from,
		To:       toEmail,
		Subject:  subject,
		HtmlBody: htmlBody,
		TextBody: textBody,
	})
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}

	return nil
}

package email

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestServer(t *testing.T, received *postmarkEmail, gotToken *string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gotToken != nil {
			*gotToken = r.Header.Get("X-Postmark-Server-Token")
		}
		if received != nil {
			if err := json.NewDecoder(r.Body).Decode(received); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"MessageID": "test-id"}`))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestSendPasswordReset(t *testing.T) {
	var received postmarkEmail
	var gotToken string
	server := newTestServer(t, &received, &gotToken)

	client := NewClient("test-token", "noreply@example.com", "https://labbo.test", WithAPIURL(server.URL))
	if err := client.SendPasswordReset(context.Background(), "alice@example.com", "abc123"); err != nil {
		t.Fatalf("send password reset: %v", err)
	}

	if gotToken != "test-token" {
		t.Errorf("server token = %q, want %q", gotToken, "test-token")
	}
	if received.To != "alice@example.com" {
		t.Errorf("To = %q, want %q", received.To, "alice@example.com")
	}
	if received.From != "noreply@example.com" {
		t.Errorf("From = %q, want %q", received.From, "noreply@example.com")
	}
	if received.Subject != "Reset your Labbo password" {
		t.Errorf("Subject = %q", received.Subject)
	}
	if !strings.Contains(received.TextBody, "https://labbo.test/reset-password?token=abc123") {
		t.Errorf("TextBody missing reset link: %q", received.TextBody)
	}
}

func TestSendEmailVerification(t *testing.T) {
	var received postmarkEmail
	server := newTestServer(t, &received, nil)

	client := NewClient("test-token", "noreply@example.com", "https://labbo.test", WithAPIURL(server.URL))
	if err := client.SendEmailVerification(context.Background(), "bob@example.com", "xyz789"); err != nil {
		t.Fatalf("send verification: %v", err)
	}

	if received.Subject != "Verify your Labbo email" {
		t.Errorf("Subject = %q", received.Subject)
	}
	if !strings.Contains(received.HtmlBody, "https://labbo.test/verify-email?token=xyz789") {
		t.Errorf("HtmlBody missing verification link: %q", received.HtmlBody)
	}
}

func TestSendNotConfigured(t *testing.T) {
	client := NewClient("", "noreply@example.com", "https://labbo.test")

	err := client.SendPasswordReset(context.Background(), "alice@example.com", "abc123")
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

func TestSendAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := NewClient("test-token", "noreply@example.com", "https://labbo.test", WithAPIURL(server.URL))
	if err := client.SendPasswordReset(context.Background(), "alice@example.com", "abc123"); err == nil {
		t.Fatal("expected error for API failure")
	}
}

func TestUpdateConfig(t *testing.T) {
	client := NewClient("", "", "")
	if client.Configured() {
		t.Error("expected Configured() = false initially")
	}

	var gotToken string
	server := newTestServer(t, nil, &gotToken)
	client = NewClient("", "", "", WithHTTPClient(server.Client()), WithAPIURL(server.URL))

	client.UpdateConfig("new-token", "new@example.com", "https://new.example.com")
	if !client.Configured() {
		t.Error("expected Configured() = true after UpdateConfig")
	}
	if err := client.SendEmailVerification(context.Background(), "alice@example.com", "tok123"); err != nil {
		t.Fatalf("send after update: %v", err)
	}
	if gotToken != "new-token" {
		t.Errorf("server token = %q, want %q", gotToken, "new-token")
	}

	client.UpdateConfig("", "", "")
	if client.Configured() {
		t.Error("expected Configured() = false after clearing")
	}
}

package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/dukerupert/labbo/internal/auth"
	"github.com/dukerupert/labbo/internal/database"
	"github.com/dukerupert/labbo/internal/model"
	"github.com/dukerupert/labbo/internal/notify"
	"github.com/dukerupert/labbo/internal/store"
)

type fixture struct {
	db            *sql.DB
	users         *store.UserStore
	sessions      *store.SessionStore
	resets        *store.TokenStore
	verifications *store.TokenStore
	audit         *store.AuditStore
	equipment     *store.EquipmentStore
	borrowings    *store.BorrowingStore
	notifications *store.NotificationStore
	push          *store.PushStore
	center        *notify.Center
	realtime      *notify.Realtime
	logger        *slog.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	center := notify.New(nil)
	t.Cleanup(center.Close)

	return &fixture{
		db:            db,
		users:         store.NewUserStore(db),
		sessions:      store.NewSessionStore(db),
		resets:        store.NewPasswordResetStore(db),
		verifications: store.NewEmailVerificationStore(db),
		audit:         store.NewAuditStore(db),
		equipment:     store.NewEquipmentStore(db),
		borrowings:    store.NewBorrowingStore(db),
		notifications: store.NewNotificationStore(db),
		push:          store.NewPushStore(db),
		center:        center,
		realtime:      notify.NewRealtime(center),
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func (f *fixture) user(t *testing.T, email, role string) *model.User {
	t.Helper()
	u, err := f.users.Create(store.NewUser{
		Email:    email,
		FullName: "Test User",
		Role:     role,
		Password: "secret123",
		Verified: true,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func (f *fixture) equip(t *testing.T, name string) *model.Equipment {
	t.Helper()
	e, err := f.equipment.Create(model.Equipment{Name: name, SerialNumber: name + "-001", Location: "Lab 1"})
	if err != nil {
		t.Fatalf("create equipment: %v", err)
	}
	return e
}

func (f *fixture) toastTitles() []string {
	var titles []string
	for _, n := range f.center.List() {
		titles = append(titles, n.Title)
	}
	return titles
}

func jsonRequest(method, target string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func asUser(r *http.Request, u *model.User) *http.Request {
	ctx := auth.WithAuth(r.Context(), auth.AuthContext{UserID: u.ID, Email: u.Email, Role: u.Role})
	return r.WithContext(ctx)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
}

type fakeMailer struct {
	mu            sync.Mutex
	resets        map[string]string
	verifications map[string]string
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{resets: map[string]string{}, verifications: map[string]string{}}
}

func (m *fakeMailer) SendPasswordReset(ctx context.Context, to, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets[to] = token
	return nil
}

func (m *fakeMailer) SendEmailVerification(ctx context.Context, to, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifications[to] = token
	return nil
}

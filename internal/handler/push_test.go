package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukerupert/labbo/internal/model"
	"github.com/dukerupert/labbo/internal/push"
)

func TestPushSubscriptions(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "student@example.com", model.RoleStudent)
	other := f.user(t, "other@example.com", model.RoleStudent)
	h := NewPushHandler(f.push, push.NewService("pub", "priv", "mailto:test@example.com"), f.logger)

	rec := httptest.NewRecorder()
	h.Subscribe(rec, asUser(jsonRequest("POST", "/api/push/subscribe", map[string]string{"endpoint": "https://push.example.com/1"}), u))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing keys status = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Subscribe(rec, asUser(jsonRequest("POST", "/api/push/subscribe", map[string]string{
		"endpoint":    "https://push.example.com/1",
		"p256dh":      "key",
		"auth":        "secret",
		"device_name": "Phone",
	}), u))
	if rec.Code != http.StatusCreated {
		t.Fatalf("subscribe status = %d, want 201", rec.Code)
	}
	var sub model.PushSubscription
	decodeBody(t, rec, &sub)

	unsubscribe := func(as *model.User) int {
		req := asUser(httptest.NewRequest("DELETE", "/api/push/subscriptions/"+sub.ID, nil), as)
		req.SetPathValue("id", sub.ID)
		rec := httptest.NewRecorder()
		h.Unsubscribe(rec, req)
		return rec.Code
	}

	if code := unsubscribe(other); code != http.StatusNotFound {
		t.Errorf("other user unsubscribe = %d, want 404", code)
	}
	if code := unsubscribe(u); code != http.StatusNoContent {
		t.Errorf("unsubscribe = %d, want 204", code)
	}
	subs, _ := f.push.ListByUser(u.ID)
	if len(subs) != 0 {
		t.Errorf("subscriptions left = %d, want 0", len(subs))
	}
}

func TestVAPIDKey(t *testing.T) {
	f := newFixture(t)
	h := NewPushHandler(f.push, push.NewService("pub-key", "priv", "mailto:test@example.com"), f.logger)

	rec := httptest.NewRecorder()
	h.GetVAPIDKey(rec, httptest.NewRequest("GET", "/api/push/vapid-key", nil))
	var body struct {
		PublicKey string `json:"public_key"`
		Enabled   bool   `json:"enabled"`
	}
	decodeBody(t, rec, &body)
	if body.PublicKey != "pub-key" || !body.Enabled {
		t.Errorf("body = %+v", body)
	}
}

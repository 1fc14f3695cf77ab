package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukerupert/labbo/internal/model"
)

func TestNotifications(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "student@example.com", model.RoleStudent)
	for _, title := range []string{"One", "Two"} {
		if _, err := f.notifications.Create(model.Notification{UserID: &u.ID, Type: model.NotifTypeDueDateReminder, Title: title, Message: "m"}); err != nil {
			t.Fatalf("create notification: %v", err)
		}
	}
	h := NewNotificationHandler(f.notifications, f.logger)

	list := func() (int, []model.Notification) {
		rec := httptest.NewRecorder()
		h.List(rec, asUser(httptest.NewRequest("GET", "/api/notifications", nil), u))
		var body struct {
			Notifications []model.Notification `json:"notifications"`
			UnreadCount   int                  `json:"unread_count"`
		}
		decodeBody(t, rec, &body)
		return body.UnreadCount, body.Notifications
	}

	unread, items := list()
	if unread != 2 || len(items) != 2 {
		t.Fatalf("unread = %d, items = %d, want 2/2", unread, len(items))
	}

	req := asUser(httptest.NewRequest("POST", "/api/notifications/x/read", nil), u)
	req.SetPathValue("id", items[0].ID)
	rec := httptest.NewRecorder()
	h.MarkRead(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("mark read status = %d, want 204", rec.Code)
	}

	req = asUser(httptest.NewRequest("POST", "/api/notifications/x/read", nil), u)
	req.SetPathValue("id", "missing")
	rec = httptest.NewRecorder()
	h.MarkRead(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing status = %d, want 404", rec.Code)
	}

	if unread, _ := list(); unread != 1 {
		t.Errorf("unread after mark = %d, want 1", unread)
	}

	rec = httptest.NewRecorder()
	h.MarkAllRead(rec, asUser(httptest.NewRequest("POST", "/api/notifications/read-all", nil), u))
	var body struct {
		Updated int64 `json:"updated"`
	}
	decodeBody(t, rec, &body)
	if body.Updated != 1 {
		t.Errorf("updated = %d, want 1", body.Updated)
	}
	if unread, _ := list(); unread != 0 {
		t.Errorf("unread after read-all = %d, want 0", unread)
	}
}

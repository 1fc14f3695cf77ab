package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukerupert/labbo/internal/notify"
)

func TestToasts(t *testing.T) {
	f := newFixture(t)
	h := NewToastHandler(f.center)
	first := f.center.Add(notify.TypeInfo, "First")
	f.center.Add(notify.TypeWarning, "Second")

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest("GET", "/api/toasts", nil))
	var body struct {
		Toasts []notify.Notification `json:"toasts"`
	}
	decodeBody(t, rec, &body)
	if len(body.Toasts) != 2 || body.Toasts[0].Title != "First" {
		t.Fatalf("toasts = %+v", body.Toasts)
	}

	req := httptest.NewRequest("DELETE", "/api/toasts/"+first, nil)
	req.SetPathValue("id", first)
	rec = httptest.NewRecorder()
	h.Dismiss(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("dismiss status = %d, want 204", rec.Code)
	}
	if got := f.center.List(); len(got) != 1 || got[0].Title != "Second" {
		t.Errorf("after dismiss = %+v", got)
	}

	rec = httptest.NewRecorder()
	h.Clear(rec, httptest.NewRequest("DELETE", "/api/toasts", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("clear status = %d, want 204", rec.Code)
	}
	if got := f.center.List(); len(got) != 0 {
		t.Errorf("after clear = %+v", got)
	}
}

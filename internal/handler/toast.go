package handler

import (
	"net/http"

	"github.com/dukerupert/labbo/internal/notify"
)

// ToastHandler exposes the server's notification center.
type ToastHandler struct {
	center *notify.Center
}

func NewToastHandler(c *notify.Center) *ToastHandler {
	return &ToastHandler{center: c}
}

// List handles GET /api/toasts
func (h *ToastHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"toasts": h.center.List()})
}

// Dismiss handles DELETE /api/toasts/{id}
func (h *ToastHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	h.center.Remove(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

// Clear handles DELETE /api/toasts
func (h *ToastHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.center.ClearAll()
	w.WriteHeader(http.StatusNoContent)
}

package handler

import (
	"encoding/json"
	"net/http"

	"github.com/dukerupert/labbo/internal/middleware"
	"github.com/dukerupert/labbo/internal/model"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeAuthError uses the {success, error} envelope the auth endpoints share.
func writeAuthError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

// auditEntry fills the request metadata of an audit record.
func auditEntry(r *http.Request, userID, action, resourceType, resourceID, details string) model.AuditLog {
	entry := model.AuditLog{
		Action:       action,
		ResourceType: resourceType,
		Details:      details,
		IPAddress:    middleware.RealIP(r),
		UserAgent:    r.UserAgent(),
	}
	if userID != "" {
		entry.UserID = &userID
	}
	if resourceID != "" {
		entry.ResourceID = &resourceID
	}
	return entry
}

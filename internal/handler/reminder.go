package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/labbo/internal/auth"
	"github.com/dukerupert/labbo/internal/model"
	"github.com/dukerupert/labbo/internal/reminder"
)

type ReminderHandler struct {
	source reminder.Source
	logger *slog.Logger
	now    func() time.Time
}

func NewReminderHandler(src reminder.Source, logger *slog.Logger) *ReminderHandler {
	return &ReminderHandler{source: src, logger: logger, now: time.Now}
}

// List handles GET /api/reminders. Only students receive reminders.
func (h *ReminderHandler) List(w http.ResponseWriter, r *http.Request) {
	if auth.Role(r.Context()) != model.RoleStudent {
		writeJSON(w, http.StatusOK, map[string]any{"reminders": []reminder.Reminder{}})
		return
	}

	now := h.now().UTC()
	records, err := h.source.ListDueBorrowings(r.Context(), auth.UserID(r.Context()), now.Add(reminder.Window))
	if err != nil {
		h.logger.Error("list reminders", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load reminders")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"reminders": reminder.Derive(records, now)})
}

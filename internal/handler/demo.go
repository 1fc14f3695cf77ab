package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/labbo/internal/model"
	"github.com/dukerupert/labbo/internal/store"
)

type DemoHandler struct {
	userStore *store.UserStore
	logger    *slog.Logger
}

func NewDemoHandler(us *store.UserStore, logger *slog.Logger) *DemoHandler {
	return &DemoHandler{userStore: us, logger: logger}
}

// List handles GET /api/demo-accounts. The built-in accounts are returned
// when the lookup fails or finds nothing.
func (h *DemoHandler) List(w http.ResponseWriter, r *http.Request) {
	defaults := model.DefaultDemoAccounts()
	emails := make([]string, len(defaults))
	for i, a := range defaults {
		emails[i] = a.Email
	}

	users, err := h.userStore.ListByEmails(emails)
	if err != nil {
		h.logger.Error("list demo accounts", "error", err)
		writeJSON(w, http.StatusOK, map[string]any{"demoAccounts": defaults})
		return
	}
	if len(users) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{"demoAccounts": defaults})
		return
	}

	accounts := make([]model.DemoAccount, 0, len(users))
	for _, u := range users {
		createdAt := u.CreatedAt
		accounts = append(accounts, model.DemoAccount{
			Email:       u.Email,
			Password:    model.DemoPassword(u.Email, u.Role),
			Role:        u.Role,
			Description: model.RoleDescription(u.Role),
			FullName:    u.FullName,
			IsDatabase:  true,
			CreatedAt:   &createdAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"demoAccounts": accounts})
}

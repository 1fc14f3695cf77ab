package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/labbo/internal/auth"
	"github.com/dukerupert/labbo/internal/model"
	"github.com/dukerupert/labbo/internal/notify"
	"github.com/dukerupert/labbo/internal/reminder"
	"github.com/dukerupert/labbo/internal/store"
	"github.com/dukerupert/labbo/internal/websocket"
)

type BorrowingHandler struct {
	borrowingStore *store.BorrowingStore
	equipmentStore *store.EquipmentStore
	userStore      *store.UserStore
	auditStore     *store.AuditStore
	realtime       *notify.Realtime
	hub            *websocket.Hub
	logger         *slog.Logger
	now            func() time.Time
}

func NewBorrowingHandler(
	bs *store.BorrowingStore,
	es *store.EquipmentStore,
	us *store.UserStore,
	as *store.AuditStore,
	rt *notify.Realtime,
	hub *websocket.Hub,
	logger *slog.Logger,
) *BorrowingHandler {
	return &BorrowingHandler{
		borrowingStore: bs,
		equipmentStore: es,
		userStore:      us,
		auditStore:     as,
		realtime:       rt,
		hub:            hub,
		logger:         logger,
		now:            time.Now,
	}
}

func (h *BorrowingHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

func (h *BorrowingHandler) audit(r *http.Request, action, resourceID, details string) {
	entry := auditEntry(r, auth.UserID(r.Context()), action, "borrowing_transaction", resourceID, details)
	if err := h.auditStore.Record(entry); err != nil {
		h.logger.Error("record audit log", "action", action, "error", err)
	}
}

// displayName is the name shown in toasts for the acting user.
func (h *BorrowingHandler) displayName(userID string) string {
	u, err := h.userStore.GetByID(userID)
	if err != nil || u == nil {
		return "Someone"
	}
	if u.FullName != "" {
		return u.FullName
	}
	return u.Email
}

// List handles GET /api/borrowings. Staff may pass user_id to view another
// user's history.
func (h *BorrowingHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if other := r.URL.Query().Get("user_id"); other != "" && other != userID {
		if !auth.IsStaff(r.Context()) {
			writeError(w, http.StatusForbidden, "Forbidden")
			return
		}
		userID = other
	}

	list, err := h.borrowingStore.ListByUser(userID, r.URL.Query().Get("status"))
	if err != nil {
		h.logger.Error("list borrowings", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list borrowings")
		return
	}
	if list == nil {
		list = []model.BorrowingTransaction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"borrowings": list})
}

// Due handles GET /api/borrowings/due?through=YYYY-MM-DD. Without through,
// the reminder window from now is used.
func (h *BorrowingHandler) Due(w http.ResponseWriter, r *http.Request) {
	through := h.now().UTC().Add(reminder.Window)
	if v := r.URL.Query().Get("through"); v != "" {
		t, err := time.Parse(model.DateLayout, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "through must be YYYY-MM-DD")
			return
		}
		through = t
	}

	list, err := h.borrowingStore.ListDueBorrowings(r.Context(), auth.UserID(r.Context()), through)
	if err != nil {
		h.logger.Error("list due borrowings", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list borrowings")
		return
	}
	if list == nil {
		list = []model.BorrowingTransaction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"borrowings": list})
}

type borrowRequest struct {
	EquipmentID        string `json:"equipment_id"`
	ExpectedReturnDate string `json:"expected_return_date"`
	Notes              string `json:"notes"`
}

// Borrow handles POST /api/borrowings
func (h *BorrowingHandler) Borrow(w http.ResponseWriter, r *http.Request) {
	var req borrowRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.EquipmentID == "" {
		writeError(w, http.StatusBadRequest, "equipment_id is required")
		return
	}
	due, err := time.Parse(model.DateLayout, req.ExpectedReturnDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "expected_return_date must be YYYY-MM-DD")
		return
	}
	if due.Format(model.DateLayout) < h.now().UTC().Format(model.DateLayout) {
		writeError(w, http.StatusBadRequest, "expected_return_date cannot be in the past")
		return
	}

	e, err := h.equipmentStore.GetByID(req.EquipmentID)
	if err != nil {
		h.logger.Error("get equipment", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get equipment")
		return
	}
	if e == nil {
		writeError(w, http.StatusNotFound, "Equipment not found")
		return
	}

	userID := auth.UserID(r.Context())
	b, err := h.borrowingStore.Borrow(userID, e.ID, due, req.Notes)
	if errors.Is(err, store.ErrEquipmentUnavailable) {
		writeError(w, http.StatusConflict, "Equipment is not available")
		return
	}
	if err != nil {
		h.logger.Error("borrow equipment", "error", err)
		h.systemError(w, e.Name, "failed to borrow equipment")
		return
	}

	h.audit(r, "borrow", b.ID, e.Name)
	h.realtime.BorrowingUpdate(e.Name, h.displayName(userID), "borrowed")
	h.broadcast(websocket.NewMessage("equipment", "updated", e.ID, map[string]any{"status": model.EquipmentBorrowed}))

	writeJSON(w, http.StatusCreated, map[string]any{"borrowing": b})
}

// Return handles POST /api/borrowings/{id}/return
func (h *BorrowingHandler) Return(w http.ResponseWriter, r *http.Request) {
	existing, err := h.borrowingStore.GetByID(r.PathValue("id"))
	if err != nil {
		h.logger.Error("get borrowing", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get borrowing")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "Borrowing not found")
		return
	}

	userID := auth.UserID(r.Context())
	if existing.UserID != userID && !auth.IsStaff(r.Context()) {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}

	b, err := h.borrowingStore.Return(existing.ID, h.now())
	if errors.Is(err, store.ErrAlreadyReturned) {
		writeError(w, http.StatusConflict, "Equipment already returned")
		return
	}
	name := existing.EquipmentName
	if name == "" {
		name = reminder.UnknownEquipment
	}
	if err != nil {
		h.logger.Error("return equipment", "error", err)
		h.systemError(w, name, "failed to return equipment")
		return
	}
	h.audit(r, "return", b.ID, name)
	h.realtime.BorrowingUpdate(name, h.displayName(existing.UserID), "returned")
	h.broadcast(websocket.NewMessage("equipment", "updated", existing.EquipmentID, map[string]any{"status": model.EquipmentAvailable}))

	writeJSON(w, http.StatusOK, map[string]any{"borrowing": b})
}

// systemError answers 500 and raises a toast for staff watching the
// dashboard. Store errors stay in the log.
func (h *BorrowingHandler) systemError(w http.ResponseWriter, equipment, msg string) {
	h.realtime.SystemError(errors.New(msg), equipment)
	writeError(w, http.StatusInternalServerError, msg)
}

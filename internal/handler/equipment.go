package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/labbo/internal/media"
	"github.com/dukerupert/labbo/internal/model"
	"github.com/dukerupert/labbo/internal/notify"
	"github.com/dukerupert/labbo/internal/store"
	"github.com/dukerupert/labbo/internal/websocket"
)

type EquipmentHandler struct {
	equipmentStore *store.EquipmentStore
	media          *media.Store
	realtime       *notify.Realtime
	hub            *websocket.Hub
	logger         *slog.Logger
}

func NewEquipmentHandler(es *store.EquipmentStore, ms *media.Store, rt *notify.Realtime, hub *websocket.Hub, logger *slog.Logger) *EquipmentHandler {
	return &EquipmentHandler{equipmentStore: es, media: ms, realtime: rt, hub: hub, logger: logger}
}

func (h *EquipmentHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

// withImageURL resolves the stored image key to a fetchable URL.
func (h *EquipmentHandler) withImageURL(ctx context.Context, e *model.Equipment) {
	if h.media == nil || e.ImageKey == "" {
		return
	}
	u, err := h.media.ImageURL(ctx, e.ImageKey)
	if err != nil {
		h.logger.Warn("resolve image url", "equipment_id", e.ID, "error", err)
		return
	}
	e.ImageURL = u
}

// List handles GET /api/equipment
func (h *EquipmentHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := h.equipmentStore.List(store.EquipmentFilter{
		Status:   q.Get("status"),
		Category: q.Get("category"),
		Search:   q.Get("search"),
	})
	if err != nil {
		h.logger.Error("list equipment", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list equipment")
		return
	}
	if items == nil {
		items = []model.Equipment{}
	}
	for i := range items {
		h.withImageURL(r.Context(), &items[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"equipment": items})
}

// Get handles GET /api/equipment/{id}
func (h *EquipmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	e, err := h.equipmentStore.GetByID(r.PathValue("id"))
	if err != nil {
		h.logger.Error("get equipment", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get equipment")
		return
	}
	if e == nil {
		writeError(w, http.StatusNotFound, "Equipment not found")
		return
	}
	h.withImageURL(r.Context(), e)
	writeJSON(w, http.StatusOK, map[string]any{"equipment": e})
}

type equipmentRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	Category     string `json:"category"`
	SerialNumber string `json:"serial_number"`
	Condition    string `json:"condition"`
	Location     string `json:"location"`
	ImageURL     string `json:"image_url"`
}

// Create handles POST /api/equipment
func (h *EquipmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req equipmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.SerialNumber = strings.TrimSpace(req.SerialNumber)
	if req.Name == "" || req.SerialNumber == "" {
		writeError(w, http.StatusBadRequest, "name and serial_number are required")
		return
	}
	if req.Condition != "" && !model.ValidCondition(req.Condition) {
		writeError(w, http.StatusBadRequest, "invalid condition")
		return
	}

	e, err := h.equipmentStore.Create(model.Equipment{
		Name:         req.Name,
		Description:  req.Description,
		Category:     req.Category,
		SerialNumber: req.SerialNumber,
		Condition:    req.Condition,
		Location:     req.Location,
		ImageKey:     req.ImageURL,
	})
	if err != nil {
		h.logger.Error("create equipment", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create equipment")
		return
	}

	h.withImageURL(r.Context(), e)
	h.realtime.EquipmentUpdate(e.Name, "created")
	h.broadcast(websocket.NewMessage("equipment", "created", e.ID, nil))

	writeJSON(w, http.StatusCreated, map[string]any{"equipment": e})
}

type statusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus handles PUT /api/equipment/{id}/status
func (h *EquipmentHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if !model.ValidEquipmentStatus(req.Status) {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	e, err := h.equipmentStore.GetByID(r.PathValue("id"))
	if err != nil {
		h.logger.Error("get equipment", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get equipment")
		return
	}
	if e == nil {
		writeError(w, http.StatusNotFound, "Equipment not found")
		return
	}

	previous := e.Status
	e.Status = req.Status
	updated, err := h.equipmentStore.Update(*e)
	if err != nil {
		h.logger.Error("update equipment status", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update equipment")
		return
	}

	switch {
	case req.Status == model.EquipmentMaintenance && previous != model.EquipmentMaintenance:
		h.realtime.MaintenanceUpdate(updated.Name, "scheduled")
	case previous == model.EquipmentMaintenance && req.Status == model.EquipmentAvailable:
		h.realtime.MaintenanceUpdate(updated.Name, "completed")
	default:
		h.realtime.EquipmentUpdate(updated.Name, "updated")
	}
	h.broadcast(websocket.NewMessage("equipment", "updated", updated.ID, map[string]any{"status": updated.Status}))

	h.withImageURL(r.Context(), updated)
	writeJSON(w, http.StatusOK, map[string]any{"equipment": updated})
}

type imageUploadRequest struct {
	ContentType string `json:"content_type"`
}

// ImageUpload handles POST /api/equipment/{id}/image. It returns a presigned
// PUT and records the new object key on the equipment.
func (h *EquipmentHandler) ImageUpload(w http.ResponseWriter, r *http.Request) {
	var req imageUploadRequest
	if err := decodeJSON(w, r, &req); err != nil || !strings.HasPrefix(req.ContentType, "image/") {
		writeError(w, http.StatusBadRequest, "content_type must be an image type")
		return
	}

	e, err := h.equipmentStore.GetByID(r.PathValue("id"))
	if err != nil {
		h.logger.Error("get equipment", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get equipment")
		return
	}
	if e == nil {
		writeError(w, http.StatusNotFound, "Equipment not found")
		return
	}

	if h.media == nil {
		writeError(w, http.StatusServiceUnavailable, "image storage is not configured")
		return
	}
	up, err := h.media.UploadURL(r.Context(), e.ID, req.ContentType)
	if errors.Is(err, media.ErrDisabled) {
		writeError(w, http.StatusServiceUnavailable, "image storage is not configured")
		return
	}
	if err != nil {
		h.logger.Error("presign image upload", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to prepare upload")
		return
	}

	old := e.ImageKey
	e.ImageKey = up.Key
	if _, err := h.equipmentStore.Update(*e); err != nil {
		h.logger.Error("save image key", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update equipment")
		return
	}
	if err := h.media.Delete(r.Context(), old); err != nil {
		h.logger.Warn("delete old image", "key", old, "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{"upload": up})
}

// Delete handles DELETE /api/equipment/{id}
func (h *EquipmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	e, err := h.equipmentStore.GetByID(r.PathValue("id"))
	if err != nil {
		h.logger.Error("get equipment", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get equipment")
		return
	}
	if e == nil {
		writeError(w, http.StatusNotFound, "Equipment not found")
		return
	}
	if e.Status == model.EquipmentBorrowed {
		writeError(w, http.StatusConflict, "equipment is currently borrowed")
		return
	}

	if err := h.equipmentStore.Delete(e.ID); err != nil {
		h.logger.Error("delete equipment", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete equipment")
		return
	}
	if h.media != nil {
		if err := h.media.Delete(r.Context(), e.ImageKey); err != nil {
			h.logger.Warn("delete image", "key", e.ImageKey, "error", err)
		}
	}

	h.realtime.EquipmentUpdate(e.Name, "deleted")
	h.broadcast(websocket.NewMessage("equipment", "deleted", e.ID, nil))

	w.WriteHeader(http.StatusNoContent)
}

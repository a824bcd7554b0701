package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/renex/internal/model"
	"github.com/dukerupert/renex/internal/push"
)

// PushStore saves browser push subscriptions.
type PushStore interface {
	Upsert(endpoint, p256dh, auth string) (*model.PushSubscription, error)
	DeleteByEndpoint(endpoint string) error
}

type PushHandler struct {
	pushStore PushStore
	service   *push.Service
	logger    *slog.Logger
}

func NewPushHandler(ps PushStore, svc *push.Service, logger *slog.Logger) *PushHandler {
	return &PushHandler{pushStore: ps, service: svc, logger: logger}
}

// pushSubscribeRequest accepts both the flat form and the browser's
// PushSubscription.toJSON() shape.
type pushSubscribeRequest struct {
	Endpoint string `json:"endpoint"`
	P256dh   string `json:"p256dh"`
	Auth     string `json:"auth"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

func (r *pushSubscribeRequest) normalize() {
	if r.P256dh == "" {
		r.P256dh = r.Keys.P256dh
	}
	if r.Auth == "" {
		r.Auth = r.Keys.Auth
	}
}

// GetVAPIDKey handles GET /api/push/key
func (h *PushHandler) GetVAPIDKey(w http.ResponseWriter, r *http.Request) {
	if !h.service.Configured() {
		writeError(w, http.StatusServiceUnavailable, "push notifications are not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"public_key": h.service.VAPIDPublicKey()})
}

// Subscribe handles POST /api/push/subscribe
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req pushSubscribeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.normalize()

	if req.Endpoint == "" || req.P256dh == "" || req.Auth == "" {
		writeError(w, http.StatusBadRequest, "endpoint, p256dh, and auth are required")
		return
	}

	sub, err := h.pushStore.Upsert(req.Endpoint, req.P256dh, req.Auth)
	if err != nil {
		h.logger.Error("save push subscription", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save subscription")
		return
	}

	writeJSON(w, http.StatusCreated, sub)
}

// Unsubscribe handles POST /api/push/unsubscribe
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req pushSubscribeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Endpoint == "" {
		writeError(w, http.StatusBadRequest, "endpoint is required")
		return
	}

	if err := h.pushStore.DeleteByEndpoint(req.Endpoint); err != nil {
		h.logger.Error("delete push subscription", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete subscription")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/renex/internal/subscription"
)

type SubscriptionHandler struct {
	manager *subscription.Manager
	logger  *slog.Logger
}

func NewSubscriptionHandler(m *subscription.Manager, logger *slog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{manager: m, logger: logger}
}

type subscribeRequest struct {
	Email      string            `json:"email"`
	Consent    bool              `json:"consent"`
	FirstName  string            `json:"firstName"`
	LastName   string            `json:"lastName"`
	Source     string            `json:"source"`
	Attributes map[string]string `json:"attributes"`
}

// Subscribe handles POST /api/subscribe
func (h *SubscriptionHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.manager.Subscribe(r.Context(), strings.TrimSpace(req.Email), req.Consent, subscription.Details{
		FirstName:  strings.TrimSpace(req.FirstName),
		LastName:   strings.TrimSpace(req.LastName),
		Source:     req.Source,
		Attributes: req.Attributes,
	})
	if err != nil {
		h.writeSubscriptionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

type unsubscribeRequest struct {
	Email string `json:"email"`
}

// Unsubscribe handles POST /api/unsubscribe
func (h *SubscriptionHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req unsubscribeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.manager.Unsubscribe(r.Context(), strings.TrimSpace(req.Email))
	if err != nil {
		h.writeSubscriptionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Count handles GET /api/subscribers/count
func (h *SubscriptionHandler) Count(w http.ResponseWriter, r *http.Request) {
	n := h.manager.Count()
	writeJSON(w, http.StatusOK, map[string]any{
		"count": n,
		"label": subscription.CountLabel(n),
	})
}

func (h *SubscriptionHandler) writeSubscriptionError(w http.ResponseWriter, err error) {
	var serr *subscription.Error
	if !errors.As(err, &serr) {
		h.logger.Error("subscription request", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	switch {
	case errors.Is(err, subscription.ErrDuplicate):
		writeError(w, http.StatusConflict, serr.Message)
	case errors.Is(err, subscription.ErrNotFound):
		writeError(w, http.StatusNotFound, serr.Message)
	default:
		writeError(w, http.StatusBadRequest, serr.Message)
	}
}

package handler

import (
	"errors"
	"net/http"

	"github.com/dukerupert/renex/internal/calculator"
	"github.com/dukerupert/renex/internal/chat"
)

type ChatHandler struct {
	agent *chat.Agent
}

func NewChatHandler(agent *chat.Agent) *ChatHandler {
	return &ChatHandler{agent: agent}
}

type chatRequest struct {
	Message string `json:"message"`
	Lang    string `json:"lang"`
}

// Reply handles POST /api/chat
func (h *ChatHandler) Reply(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	reply, err := h.agent.Respond(req.Message, req.Lang)
	if errors.Is(err, chat.ErrEmptyMessage) {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

// Greeting handles GET /api/chat/greeting?lang=de
func (h *ChatHandler) Greeting(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.agent.Greeting(r.URL.Query().Get("lang")))
}

type calculatorRequest struct {
	KWh  float64 `json:"kwh"`
	Type string  `json:"type"`
}

const msgInvalidUsage = "Please enter a valid energy usage number"

// Calculate handles POST /api/calculator
func Calculate(w http.ResponseWriter, r *http.Request) {
	var req calculatorRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := calculator.Calculate(req.KWh, req.Type)
	if errors.Is(err, calculator.ErrInvalidUsage) {
		writeError(w, http.StatusBadRequest, msgInvalidUsage)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "calculation failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

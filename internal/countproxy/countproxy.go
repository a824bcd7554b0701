// Package countproxy serves the public subscriber count without exposing the
// provider credential. It answers 200 on every GET, substituting a fixed
// fallback count whenever the provider cannot be reached.
package countproxy

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/renex/internal/brevo"
)

const (
	SourceBrevo    = "brevo"
	SourceFallback = "fallback"

	// DefaultFallbackCount is shown while the real count is unavailable.
	DefaultFallbackCount = 2

	defaultListName = "Newsletter"
)

// ListCounter fetches the newsletter list statistics.
type ListCounter interface {
	Configured() bool
	ListCount(ctx context.Context) (*brevo.ListInfo, error)
}

// Response is the JSON body of a GET.
type Response struct {
	Count    int    `json:"count"`
	Source   string `json:"source"`
	Message  string `json:"message,omitempty"`
	ListName string `json:"listName,omitempty"`
}

type Handler struct {
	counter  ListCounter
	fallback int
	logger   *slog.Logger
}

func NewHandler(counter ListCounter, fallback int, logger *slog.Logger) *Handler {
	return &Handler{
		counter:  counter,
		fallback: fallback,
		logger:   logger.With("component", "countproxy"),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	header := w.Header()
	header.Set("Access-Control-Allow-Origin", "*")
	header.Set("Access-Control-Allow-Headers", "Content-Type")
	header.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	header.Set("Content-Type", "application/json")

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.Count(r.Context()))
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
	}
}

// Count resolves the current count, never failing.
func (h *Handler) Count(ctx context.Context) Response {
	if h.counter == nil || !h.counter.Configured() {
		return h.fallbackResponse("API key not configured, using fallback count")
	}

	info, err := h.counter.ListCount(ctx)
	if err != nil {
		var apiErr *brevo.APIError
		if errors.As(err, &apiErr) {
			h.logger.Error("brevo list count", "status", apiErr.Status, "error", err)
			return h.fallbackResponse("API error, using fallback count")
		}
		h.logger.Error("fetch subscriber count", "error", err)
		return h.fallbackResponse("Network error, using fallback count")
	}

	count := info.UniqueSubscribers
	if count == 0 {
		count = info.TotalSubscribers
	}
	name := info.Name
	if name == "" {
		name = defaultListName
	}
	return Response{Count: count, Source: SourceBrevo, ListName: name}
}

func (h *Handler) fallbackResponse(msg string) Response {
	return Response{Count: h.fallback, Source: SourceFallback, Message: msg}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

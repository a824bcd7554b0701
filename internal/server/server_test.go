package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dukerupert/renex/internal/brevo"
	"github.com/dukerupert/renex/internal/chat"
	"github.com/dukerupert/renex/internal/countproxy"
	"github.com/dukerupert/renex/internal/database"
	"github.com/dukerupert/renex/internal/logging"
	"github.com/dukerupert/renex/internal/offline"
	"github.com/dukerupert/renex/internal/push"
	"github.com/dukerupert/renex/internal/store"
	"github.com/dukerupert/renex/internal/subscription"
	ws "github.com/dukerupert/renex/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupServer(t *testing.T, cfg Config) http.Handler {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := logging.Discard()
	hub := ws.NewHub(logger)
	subs := store.NewSubscriberStore(store.NewKVStore(db), logger)
	manager := subscription.NewManager(subs, nil, logger, subscription.WithListener(hub.OnSubscriberChange))

	agent, err := chat.New("")
	require.NoError(t, err)
	script, err := offline.NewScript("renex-test-v1", []string{"/"})
	require.NoError(t, err)

	site := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(site, "index.html"), []byte("<h1>Renewable Energy Nexus</h1>"), 0o644))

	srv := New(cfg, Deps{
		Manager:   manager,
		Hub:       hub,
		Counter:   countproxy.NewHandler(brevo.NewClient(brevo.Config{}), countproxy.DefaultFallbackCount, logger),
		Chat:      agent,
		PushStore: store.NewPushStore(db),
		Push:      push.NewService(push.Config{VAPIDPublicKey: "pub", VAPIDPrivateKey: "priv"}),
		Script:    script,
		Site:      SiteHandler(nil, site, logger),
	}, logger)
	return srv.Router()
}

func serve(h http.Handler, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRoutes(t *testing.T) {
	h := setupServer(t, Config{})

	tests := []struct {
		name       string
		method     string
		target     string
		body       string
		wantStatus int
		wantBody   string
	}{
		{"health", "GET", "/health", "", http.StatusOK, `"status":"ok"`},
		{"subscribe", "POST", "/api/subscribe", `{"email":"ada@example.com","consent":true}`, http.StatusCreated, `"success":true`},
		{"local count", "GET", "/api/subscribers/count", "", http.StatusOK, `"count":1`},
		{"proxy count fallback", "GET", "/api/subscriber-count", "", http.StatusOK, `"source":"fallback"`},
		{"netlify path", "GET", "/.netlify/functions/get-subscriber-count", "", http.StatusOK, `"count":2`},
		{"proxy rejects post", "POST", "/api/subscriber-count", "", http.StatusMethodNotAllowed, "Method not allowed"},
		{"chat", "POST", "/api/chat", `{"message":"wind?","lang":"en"}`, http.StatusOK, `"topic":"wind"`},
		{"calculator", "POST", "/api/calculator", `{"kwh":100,"type":"hybrid"}`, http.StatusOK, `"annualCO2Kg":`},
		{"push key", "GET", "/api/push/key", "", http.StatusOK, `"public_key":"pub"`},
		{"service worker", "GET", "/sw.js", "", http.StatusOK, "renex-test-v1"},
		{"site", "GET", "/", "", http.StatusOK, "Renewable Energy Nexus"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(h, tt.method, tt.target, tt.body, nil)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}

func TestServiceWorkerHeaders(t *testing.T) {
	h := setupServer(t, Config{})
	rec := serve(h, "GET", "/sw.js", "", nil)
	assert.Equal(t, "/", rec.Header().Get("Service-Worker-Allowed"))
	assert.Contains(t, rec.Header().Get("Content-Type"), "javascript")
}

func TestCORS(t *testing.T) {
	h := setupServer(t, Config{CORSOrigins: []string{"https://renex.example"}})

	rec := serve(h, "OPTIONS", "/api/subscribe", "", map[string]string{
		"Origin":                        "https://renex.example",
		"Access-Control-Request-Method": "POST",
	})
	assert.Equal(t, "https://renex.example", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = serve(h, "GET", "/api/subscribers/count", "", map[string]string{"Origin": "https://evil.example"})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	// The count proxy stays open to any origin.
	rec = serve(h, "OPTIONS", "/api/subscriber-count", "", map[string]string{"Origin": "https://evil.example"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestWriteRateLimit(t *testing.T) {
	h := setupServer(t, Config{RateLimit: 2})
	header := map[string]string{"X-Forwarded-For": "203.0.113.5"}

	for i := 0; i < 2; i++ {
		rec := serve(h, "POST", "/api/unsubscribe", `{"email":"nobody@example.com"}`, header)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}
	rec := serve(h, "POST", "/api/unsubscribe", `{"email":"nobody@example.com"}`, header)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])

	// Reads are not limited.
	rec = serve(h, "GET", "/api/subscribers/count", "", header)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOriginHosts(t *testing.T) {
	got := originHosts([]string{"https://renex.example", "*", "localhost:8080"})
	assert.Equal(t, []string{"renex.example", "*", "localhost:8080"}, got)
}

package countproxy

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukerupert/renex/internal/brevo"
	"github.com/dukerupert/renex/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCounter struct {
	configured bool
	info       *brevo.ListInfo
	err        error
	calls      int
}

func (f *fakeCounter) Configured() bool { return f.configured }

func (f *fakeCounter) ListCount(context.Context) (*brevo.ListInfo, error) {
	f.calls++
	return f.info, f.err
}

func get(t *testing.T, h http.Handler, method string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, "/api/subscriber-count", nil))

	var body Response
	if method == http.MethodGet {
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	}
	return rec, body
}

func assertCORS(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Content-Type", rec.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "GET, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestUnconfiguredAlwaysFallsBack(t *testing.T) {
	counter := &fakeCounter{}
	h := NewHandler(counter, DefaultFallbackCount, logging.Discard())

	for i := 0; i < 3; i++ {
		rec, body := get(t, h, http.MethodGet)
		assert.Equal(t, http.StatusOK, rec.Code)
		assertCORS(t, rec)
		assert.Equal(t, Response{
			Count:   DefaultFallbackCount,
			Source:  SourceFallback,
			Message: "API key not configured, using fallback count",
		}, body)
	}
	assert.Zero(t, counter.calls)
}

func TestRealBrevoClientWithPlaceholderKey(t *testing.T) {
	client := brevo.NewClient(brevo.Config{APIKey: brevo.PlaceholderKey})
	_, body := get(t, NewHandler(client, 5, logging.Discard()), http.MethodGet)
	assert.Equal(t, 5, body.Count)
	assert.Equal(t, SourceFallback, body.Source)
}

func TestUpstreamFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		msg  string
	}{
		{"api error", &brevo.APIError{Status: 401, Message: "Key not found"}, "API error, using fallback count"},
		{"network error", errors.New("dial tcp: i/o timeout"), "Network error, using fallback count"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(&fakeCounter{configured: true, err: tt.err}, DefaultFallbackCount, logging.Discard())
			rec, body := get(t, h, http.MethodGet)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, DefaultFallbackCount, body.Count)
			assert.Equal(t, SourceFallback, body.Source)
			assert.Equal(t, tt.msg, body.Message)
		})
	}
}

func TestSuccess(t *testing.T) {
	tests := []struct {
		name  string
		info  brevo.ListInfo
		count int
		list  string
	}{
		{"unique preferred", brevo.ListInfo{Name: "Main", UniqueSubscribers: 10, TotalSubscribers: 12}, 10, "Main"},
		{"total when no unique", brevo.ListInfo{TotalSubscribers: 12}, 12, "Newsletter"},
		{"empty list", brevo.ListInfo{Name: "Fresh"}, 0, "Fresh"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := tt.info
			h := NewHandler(&fakeCounter{configured: true, info: &info}, DefaultFallbackCount, logging.Discard())
			_, body := get(t, h, http.MethodGet)
			assert.Equal(t, Response{Count: tt.count, Source: SourceBrevo, ListName: tt.list}, body)
		})
	}
}

func TestAgainstBrevoServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/contacts/lists/2", r.URL.Path)
		io.WriteString(w, `{"id":2,"name":"Newsletter","uniqueSubscribers":37}`)
	}))
	defer server.Close()

	client := brevo.NewClient(brevo.Config{APIKey: "xkeysib-1", BaseURL: server.URL, ListID: 2}, brevo.WithHTTPClient(server.Client()))
	_, body := get(t, NewHandler(client, DefaultFallbackCount, logging.Discard()), http.MethodGet)
	assert.Equal(t, 37, body.Count)
	assert.Equal(t, SourceBrevo, body.Source)
}

func TestOptions(t *testing.T) {
	rec, _ := get(t, NewHandler(&fakeCounter{}, 2, logging.Discard()), http.MethodOptions)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
	assertCORS(t, rec)
}

func TestMethodNotAllowed(t *testing.T) {
	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		rec, _ := get(t, NewHandler(&fakeCounter{}, 2, logging.Discard()), method)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		assert.JSONEq(t, `{"error":"Method not allowed"}`, rec.Body.String())
		assertCORS(t, rec)
	}
}

package offline

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/dukerupert/renex/internal/database"
	"github.com/dukerupert/renex/internal/logging"
	"github.com/dukerupert/renex/internal/model"
	"github.com/dukerupert/renex/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const origin = "https://renex.example"

var errOffline = errors.New("dial tcp: network is unreachable")

// fakeNetwork serves canned bodies by path and can be switched offline.
type fakeNetwork struct {
	mu      sync.Mutex
	offline bool
	pages   map[string]string
	status  map[string]int
	header  map[string]http.Header
	calls   []string
}

func (n *fakeNetwork) RoundTrip(req *http.Request) (*http.Response, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, req.Method+" "+req.URL.String())
	if n.offline {
		return nil, errOffline
	}
	body, found := n.pages[req.URL.Path]
	status := http.StatusOK
	if s, ok := n.status[req.URL.Path]; ok {
		status = s
	} else if !found {
		status = http.StatusNotFound
	}
	header := http.Header{"Content-Type": {"text/html"}}
	for k, v := range n.header[req.URL.Path] {
		header[k] = v
	}
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}, nil
}

func (n *fakeNetwork) setOffline(v bool) {
	n.mu.Lock()
	n.offline = v
	n.mu.Unlock()
}

func newWorker(t *testing.T, storage Storage, network *fakeNetwork, precache ...string) *Worker {
	t.Helper()
	w, err := NewWorker(Config{CacheName: "renewable-energy-nexus-v4", PrecacheURLs: precache, Origin: origin}, storage, network, logging.Discard())
	require.NoError(t, err)
	return w
}

func fetch(t *testing.T, w http.RoundTripper, method, url string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)
	resp, err := w.RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestNewWorkerValidation(t *testing.T) {
	_, err := NewWorker(Config{Origin: origin}, NewMemoryStorage(), nil, logging.Discard())
	assert.Error(t, err)
	_, err = NewWorker(Config{CacheName: "c", Origin: "/relative"}, NewMemoryStorage(), nil, logging.Discard())
	assert.Error(t, err)
}

func TestInstallToleratesPartialFailures(t *testing.T) {
	storage := NewMemoryStorage()
	network := &fakeNetwork{pages: map[string]string{"/": "home", "/index.html": "index"}}
	w := newWorker(t, storage, network, "/", "/index.html", "/missing.css")

	require.NoError(t, w.Install(context.Background()))
	assert.Equal(t, StateInstalled, w.State())

	ctx := context.Background()
	home, err := storage.Match(ctx, w.CacheName(), origin+"/")
	require.NoError(t, err)
	require.NotNil(t, home)
	assert.Equal(t, "home", string(home.Body))

	missing, err := storage.Match(ctx, w.CacheName(), origin+"/missing.css")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestActivateRequiresInstall(t *testing.T) {
	w := newWorker(t, NewMemoryStorage(), &fakeNetwork{})
	assert.ErrorIs(t, w.Activate(context.Background()), ErrNotInstalled)
	assert.Equal(t, StateParsed, w.State())
}

func testActivationLeavesOnlyCurrent(t *testing.T, storage Storage) {
	ctx := context.Background()
	for _, name := range []string{"renewable-energy-nexus-v2", "renewable-energy-nexus-v3"} {
		require.NoError(t, storage.Put(ctx, name, model.CacheEntry{URL: origin + "/", Status: 200, Body: []byte("old")}))
	}

	w := newWorker(t, storage, &fakeNetwork{pages: map[string]string{"/": "new"}}, "/")
	require.NoError(t, w.Start(ctx))
	assert.Equal(t, StateActive, w.State())

	keys, err := storage.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"renewable-energy-nexus-v4"}, keys)
}

func TestActivationLeavesOnlyCurrentGeneration(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		testActivationLeavesOnlyCurrent(t, NewMemoryStorage())
	})
	t.Run("sqlite", func(t *testing.T) {
		db, err := database.Open(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		testActivationLeavesOnlyCurrent(t, store.NewCacheStore(db))
	})
}

func TestOfflineServesCachedBody(t *testing.T) {
	network := &fakeNetwork{pages: map[string]string{"/articles.html": "<h1>Articles</h1>"}}
	w := newWorker(t, NewMemoryStorage(), network)
	require.NoError(t, w.Start(context.Background()))

	resp, body := fetch(t, w, http.MethodGet, origin+"/articles.html")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "<h1>Articles</h1>", body, "live response still readable after caching")

	network.setOffline(true)
	resp, body = fetch(t, w, http.MethodGet, origin+"/articles.html")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "<h1>Articles</h1>", body)
	assert.Equal(t, "text/html", resp.Header.Get("Content-Type"))
}

func TestOfflineWithoutCacheIs503(t *testing.T) {
	network := &fakeNetwork{offline: true}
	w := newWorker(t, NewMemoryStorage(), network)
	require.NoError(t, w.Start(context.Background()))

	resp, body := fetch(t, w, http.MethodGet, origin+"/never-seen.html")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "Network error", body)
}

func TestErrorResponsesAreNotCached(t *testing.T) {
	network := &fakeNetwork{
		pages:  map[string]string{"/flaky": "oops"},
		status: map[string]int{"/flaky": http.StatusInternalServerError},
	}
	w := newWorker(t, NewMemoryStorage(), network)
	require.NoError(t, w.Start(context.Background()))

	resp, _ := fetch(t, w, http.MethodGet, origin+"/flaky")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	network.setOffline(true)
	resp, _ = fetch(t, w, http.MethodGet, origin+"/flaky")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestPassThrough(t *testing.T) {
	network := &fakeNetwork{offline: true}
	w := newWorker(t, NewMemoryStorage(), network)

	req, err := http.NewRequest(http.MethodGet, origin+"/", nil)
	require.NoError(t, err)
	_, err = w.RoundTrip(req)
	assert.ErrorIs(t, err, errOffline, "not intercepted before activation")

	require.NoError(t, w.Start(context.Background()))

	for _, tc := range []struct{ method, url string }{
		{http.MethodPost, origin + "/api/subscribe"},
		{http.MethodGet, "https://cdn.example.net/lib.js"},
		{http.MethodGet, "http://renex.example/"},
	} {
		req, err := http.NewRequest(tc.method, tc.url, nil)
		require.NoError(t, err)
		_, err = w.RoundTrip(req)
		assert.ErrorIs(t, err, errOffline, "%s %s", tc.method, tc.url)
	}
}

func TestCacheKeyIgnoresFragment(t *testing.T) {
	network := &fakeNetwork{pages: map[string]string{"/": "home"}}
	w := newWorker(t, NewMemoryStorage(), network)
	require.NoError(t, w.Start(context.Background()))

	fetch(t, w, http.MethodGet, origin+"/")
	network.setOffline(true)

	_, body := fetch(t, w, http.MethodGet, origin+"/#calculator")
	assert.Equal(t, "home", body)
}

func TestEncodedResponsesAreNotCached(t *testing.T) {
	network := &fakeNetwork{
		pages:  map[string]string{"/style.css": "\x1f\x8b compressed"},
		header: map[string]http.Header{"/style.css": {"Content-Encoding": {"gzip"}}},
	}
	w := newWorker(t, NewMemoryStorage(), network)
	require.NoError(t, w.Start(context.Background()))

	resp, _ := fetch(t, w, http.MethodGet, origin+"/style.css")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))

	network.setOffline(true)
	resp, _ = fetch(t, w, http.MethodGet, origin+"/style.css")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

// Package offline keeps the site usable when its origin is unreachable.
//
// A Worker is an http.RoundTripper applying a network-first policy: successful
// same-origin GETs are copied into the current cache generation, and when the
// network fails the cached copy is served instead. Browsers get the same policy
// through the generated service worker script.
package offline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/dukerupert/renex/internal/model"
)

type State string

const (
	StateParsed     State = "parsed"
	StateInstalling State = "installing"
	StateInstalled  State = "installed"
	StateActivating State = "activating"
	StateActive     State = "active"
)

var ErrNotInstalled = errors.New("offline: worker not installed")

type Config struct {
	CacheName    string
	PrecacheURLs []string
	// Origin is the scheme and host requests are intercepted for.
	Origin string
}

type Worker struct {
	cacheName string
	precache  []string
	origin    *url.URL
	network   http.RoundTripper
	storage   Storage
	logger    *slog.Logger

	mu    sync.RWMutex
	state State
}

// NewWorker creates a worker in the parsed state. network performs the real
// requests; nil means http.DefaultTransport.
func NewWorker(cfg Config, storage Storage, network http.RoundTripper, logger *slog.Logger) (*Worker, error) {
	if cfg.CacheName == "" {
		return nil, errors.New("offline: cache name required")
	}
	origin, err := url.Parse(cfg.Origin)
	if err != nil {
		return nil, fmt.Errorf("parse origin: %w", err)
	}
	if origin.Scheme == "" || origin.Host == "" {
		return nil, fmt.Errorf("origin %q must be absolute", cfg.Origin)
	}
	if network == nil {
		network = http.DefaultTransport
	}
	return &Worker{
		cacheName: cfg.CacheName,
		precache:  append([]string(nil), cfg.PrecacheURLs...),
		origin:    &url.URL{Scheme: origin.Scheme, Host: origin.Host},
		network:   network,
		storage:   storage,
		logger:    logger.With("component", "offline", "cache", cfg.CacheName),
		state:     StateParsed,
	}, nil
}

func (w *Worker) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

func (w *Worker) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
	w.logger.Debug("worker state", "state", s)
}

// Origin returns the scheme://host the worker serves.
func (w *Worker) Origin() *url.URL {
	u := *w.origin
	return &u
}

func (w *Worker) CacheName() string {
	return w.cacheName
}

// Start installs and activates the worker, returning once it is active.
func (w *Worker) Start(ctx context.Context) error {
	if err := w.Install(ctx); err != nil {
		return err
	}
	return w.Activate(ctx)
}

// Install opens the current cache generation and pre-populates it. A URL that
// cannot be fetched is logged and skipped. On return the worker skips waiting
// and is immediately eligible for activation.
func (w *Worker) Install(ctx context.Context) error {
	w.setState(StateInstalling)

	if err := w.storage.Open(ctx, w.cacheName); err != nil {
		w.setState(StateParsed)
		return fmt.Errorf("install: %w", err)
	}

	cached := 0
	for _, raw := range w.precache {
		if err := w.precacheOne(ctx, raw); err != nil {
			w.logger.Warn("precache failed", "url", raw, "error", err)
			continue
		}
		cached++
	}
	w.logger.Info("worker installed", "precached", cached, "requested", len(w.precache))

	w.setState(StateInstalled)
	return nil
}

func (w *Worker) precacheOne(ctx context.Context, raw string) error {
	ref, err := url.Parse(raw)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.origin.ResolveReference(ref).String(), nil)
	if err != nil {
		return err
	}
	resp, err := w.network.RoundTrip(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if !ok(resp.StatusCode) {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return w.put(ctx, req, resp, body)
}

// Activate deletes every other cache generation and claims all traffic.
func (w *Worker) Activate(ctx context.Context) error {
	switch w.State() {
	case StateActive:
		return nil
	case StateInstalled:
	default:
		return ErrNotInstalled
	}

	w.setState(StateActivating)
	removed, err := w.storage.Prune(ctx, w.cacheName)
	if err != nil {
		w.setState(StateInstalled)
		return fmt.Errorf("activate: %w", err)
	}
	for _, name := range removed {
		w.logger.Info("deleted stale cache", "name", name)
	}

	w.setState(StateActive)
	return nil
}

// RoundTrip implements http.RoundTripper. Only same-origin GETs made while the
// worker is active are intercepted; everything else goes straight to the network.
func (w *Worker) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet || !w.sameOrigin(req.URL) || w.State() != StateActive {
		return w.network.RoundTrip(req)
	}

	resp, err := w.network.RoundTrip(req)
	if err == nil {
		if cacheable(resp) {
			w.store(req, resp)
		}
		return resp, nil
	}

	w.logger.Debug("network failed, trying cache", "url", req.URL.String(), "error", err)
	entry, matchErr := w.storage.Match(req.Context(), w.cacheName, cacheKey(req.URL))
	if matchErr != nil {
		w.logger.Error("cache match", "url", req.URL.String(), "error", matchErr)
	}
	if entry != nil {
		return cachedResponse(req, entry), nil
	}
	return unavailable(req), nil
}

// store copies a live response into the cache, leaving resp readable.
func (w *Worker) store(req *http.Request, resp *http.Response) {
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		w.logger.Warn("read response for cache", "url", req.URL.String(), "error", err)
		resp.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), errReader{err}))
		return
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	if err := w.put(req.Context(), req, resp, body); err != nil {
		w.logger.Warn("cache put", "url", req.URL.String(), "error", err)
	}
}

func (w *Worker) put(ctx context.Context, req *http.Request, resp *http.Response, body []byte) error {
	return w.storage.Put(ctx, w.cacheName, model.CacheEntry{
		URL:      cacheKey(req.URL),
		Status:   resp.StatusCode,
		Header:   resp.Header.Clone(),
		Body:     body,
		StoredAt: time.Now().UTC(),
	})
}

func (w *Worker) sameOrigin(u *url.URL) bool {
	return u.Scheme == w.origin.Scheme && u.Host == w.origin.Host
}

func cacheKey(u *url.URL) string {
	k := *u
	k.Fragment = ""
	k.RawFragment = ""
	return k.String()
}

func ok(status int) bool {
	return status >= 200 && status <= 299
}

// cacheable reports whether resp can be replayed to any client. Encoded
// bodies depend on the Accept-Encoding of the request that fetched them.
func cacheable(resp *http.Response) bool {
	return ok(resp.StatusCode) && resp.Header.Get("Content-Encoding") == ""
}

func cachedResponse(req *http.Request, e *model.CacheEntry) *http.Response {
	header := e.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	header.Set("Content-Length", strconv.Itoa(len(e.Body)))
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", e.Status, http.StatusText(e.Status)),
		StatusCode:    e.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: int64(len(e.Body)),
		Request:       req,
	}
}

func unavailable(req *http.Request) *http.Response {
	body := []byte("Network error")
	return &http.Response{
		Status:     "503 Service Unavailable",
		StatusCode: http.StatusServiceUnavailable,
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header: http.Header{
			"Content-Type":   {"text/plain; charset=utf-8"},
			"Content-Length": {strconv.Itoa(len(body))},
		},
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

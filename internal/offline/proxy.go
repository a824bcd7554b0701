package offline

import (
	"log/slog"
	"net/http"
	"net/http/httputil"
)

// NewProxy returns a reverse proxy to the worker's origin that sends every
// request through the worker, so pages already seen keep loading while the
// origin is down.
func NewProxy(w *Worker, logger *slog.Logger) *httputil.ReverseProxy {
	target := w.Origin()
	logger = logger.With("component", "offline-proxy")

	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			// Cached bodies are shared by every client, so fetch them unencoded.
			pr.Out.Header.Del("Accept-Encoding")
		},
		Transport: w,
		ErrorHandler: func(rw http.ResponseWriter, r *http.Request, err error) {
			logger.Error("proxy request", "method", r.Method, "path", r.URL.Path, "error", err)
			http.Error(rw, "Bad gateway", http.StatusBadGateway)
		},
	}
}

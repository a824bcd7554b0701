package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/renex/internal/app"
	"github.com/dukerupert/renex/internal/chat"
	"github.com/dukerupert/renex/internal/config"
	"github.com/dukerupert/renex/internal/countproxy"
	"github.com/dukerupert/renex/internal/logging"
	"github.com/dukerupert/renex/internal/offline"
	"github.com/dukerupert/renex/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	agent, err := chat.New(cfg.ChatResponses)
	if err != nil {
		logger.Error("failed to load chat responses", "error", err)
		os.Exit(1)
	}

	script, err := offline.NewScript(cfg.CacheName, cfg.PrecacheURLs)
	if err != nil {
		logger.Error("failed to render service worker", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var worker *offline.Worker
	if cfg.SiteOrigin != "" {
		worker, err = offline.NewWorker(offline.Config{
			CacheName:    cfg.CacheName,
			PrecacheURLs: cfg.PrecacheURLs,
			Origin:       cfg.SiteOrigin,
		}, a.CacheStore, nil, logger)
		if err != nil {
			logger.Error("failed to create offline worker", "error", err)
			os.Exit(1)
		}
		go func() {
			if err := worker.Start(ctx); err != nil {
				logger.Error("offline worker", "error", err)
			}
		}()
	}

	if err := a.Backups.Start(ctx); err != nil {
		logger.Error("failed to schedule backups", "error", err)
	}
	defer a.Backups.Stop()

	srv := server.New(server.Config{
		CORSOrigins: cfg.CORSOrigins,
		RateLimit:   cfg.RateLimit,
	}, server.Deps{
		Manager:   a.Manager,
		Hub:       a.Hub,
		Counter:   countproxy.NewHandler(a.Brevo, cfg.FallbackCount, logger),
		Chat:      agent,
		PushStore: a.PushStore,
		Push:      a.Push,
		Script:    script,
		Site:      server.SiteHandler(worker, cfg.SiteDir, logger),
	}, logger)

	httpServer := newHTTPServer(":"+cfg.Port, srv.Router())

	go func() {
		logger.Info("renex running", "url", cfg.BaseURL, "subscribers", a.Subscribers.Count())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

// newHTTPServer builds the listener for h. Request contexts are not derived
// from the signal context so Shutdown can drain in-flight requests.
func newHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(_ net.Listener) context.Context { return context.Background() },
	}
}

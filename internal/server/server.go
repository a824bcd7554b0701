package server

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/dukerupert/renex/internal/chat"
	"github.com/dukerupert/renex/internal/countproxy"
	"github.com/dukerupert/renex/internal/handler"
	"github.com/dukerupert/renex/internal/middleware"
	"github.com/dukerupert/renex/internal/offline"
	"github.com/dukerupert/renex/internal/push"
	"github.com/dukerupert/renex/internal/subscription"
	ws "github.com/dukerupert/renex/internal/websocket"
)

// Config holds the HTTP-level settings.
type Config struct {
	CORSOrigins []string
	// RateLimit is the number of write requests one client may make per minute.
	RateLimit int
}

// Deps are the components the router exposes.
type Deps struct {
	Manager   *subscription.Manager
	Hub       *ws.Hub
	Counter   *countproxy.Handler
	Chat      *chat.Agent
	PushStore handler.PushStore
	Push      *push.Service
	Script    *offline.Script
	// Site serves every path the API does not claim.
	Site http.Handler
}

type Server struct {
	cfg    Config
	deps   Deps
	subH   *handler.SubscriptionHandler
	chatH  *handler.ChatHandler
	pushH  *handler.PushHandler
	logger *slog.Logger
}

func New(cfg Config, deps Deps, logger *slog.Logger) *Server {
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 10
	}

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		subH:   handler.NewSubscriptionHandler(deps.Manager, logger.With("component", "subscribe_handler")),
		logger: logger,
	}
	if deps.Chat != nil {
		s.chatH = handler.NewChatHandler(deps.Chat)
	}
	if deps.Push != nil && deps.PushStore != nil {
		s.pushH = handler.NewPushHandler(deps.PushStore, deps.Push, logger.With("component", "push_handler"))
	}
	return s
}

// SiteHandler serves the static site through the offline worker when one is
// given, otherwise straight from dir.
func SiteHandler(worker *offline.Worker, dir string, logger *slog.Logger) http.Handler {
	if worker != nil {
		return offline.NewProxy(worker, logger)
	}
	return http.FileServer(http.Dir(dir))
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(s.logger.With("component", "http")))

	r.Get("/health", handler.Health)

	// The count proxy answers its own CORS preflight.
	if s.deps.Counter != nil {
		r.Handle("/api/subscriber-count", s.deps.Counter)
		r.Handle("/.netlify/functions/get-subscriber-count", s.deps.Counter)
	}

	if s.deps.Hub != nil {
		r.Get("/ws", ws.HandleWebSocket(s.deps.Hub, s.deps.Manager.Count, originHosts(s.cfg.CORSOrigins)))
	}
	if s.deps.Script != nil {
		r.Method(http.MethodGet, "/sw.js", s.deps.Script)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))

		r.Get("/subscribers/count", s.subH.Count)
		r.Post("/calculator", handler.Calculate)
		if s.chatH != nil {
			r.Get("/chat/greeting", s.chatH.Greeting)
		}
		if s.pushH != nil {
			r.Get("/push/key", s.pushH.GetVAPIDKey)
		}

		// Writes are rate limited per client IP.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(s.cfg.RateLimit, time.Minute))

			r.Post("/subscribe", s.subH.Subscribe)
			r.Post("/unsubscribe", s.subH.Unsubscribe)
			if s.chatH != nil {
				r.Post("/chat", s.chatH.Reply)
			}
			if s.pushH != nil {
				r.Post("/push/subscribe", s.pushH.Subscribe)
				r.Post("/push/unsubscribe", s.pushH.Unsubscribe)
			}
		})
	})

	if s.deps.Site != nil {
		r.Handle("/*", s.deps.Site)
	}

	return r
}

// originHosts turns CORS origins like https://example.com into the host
// patterns the websocket handshake checks.
func originHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			hosts = append(hosts, u.Host)
			continue
		}
		hosts = append(hosts, o)
	}
	return hosts
}

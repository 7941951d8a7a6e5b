package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/summitroofing/beacon/internal/api/ws"
	"github.com/summitroofing/beacon/internal/config"
	"github.com/summitroofing/beacon/internal/ingest"
	"github.com/summitroofing/beacon/internal/metrics"
	"github.com/summitroofing/beacon/internal/server/middleware"
	"github.com/summitroofing/beacon/internal/store/postgres"
	redisstore "github.com/summitroofing/beacon/internal/store/redis"
)

// Server is the HTTP server that wires all application routes and middleware.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	store      *postgres.Store
	pubsub     *redisstore.PubSub // nil when Redis is not configured
	wsHub      *ws.Hub
	cfg        *config.Config
}

// New creates a Server with all routes wired. pubsub may be nil; live
// websocket routes then answer 503 and ingestion skips fan-out.
func New(cfg *config.Config, store *postgres.Store, pubsub *redisstore.PubSub, svc *ingest.Service, m *metrics.Metrics) *Server {
	router := chi.NewRouter()

	// Global middleware stack.
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(chimw.Logger)
	router.Use(chimw.Recoverer)
	router.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}).Handler)

	var hub *ws.Hub
	if pubsub != nil {
		hub = ws.NewHub(pubsub)
	}

	s := &Server{
		router: router,
		store:  store,
		pubsub: pubsub,
		wsHub:  hub,
		cfg:    cfg,
		httpServer: &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}

	ingestHandler := ingest.NewHandler(svc)

	// Mount API routes on /api/v1 with two sub-groups:
	// 1. Open ingestion endpoints every visitor's browser posts to,
	//    rate limited per IP.
	// 2. Authenticated dashboard read API.
	router.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(context.Background(), cfg.Server.IngestRPS, cfg.Server.IngestBurst))
			registerIngestRoutes(r, ingestHandler)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT.Secret))

			apiConfig := huma.DefaultConfig("Beacon Analytics API", "1.0.0")
			apiConfig.Servers = []*huma.Server{
				{URL: "/api/v1"},
			}
			api := humachi.New(r, apiConfig)
			registerAPIRoutes(api, store)
		})
	})

	// WebSocket routes for the live dashboard tail.
	router.Route("/ws", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT.Secret))
		if hub != nil {
			registerWSRoutes(r, hub)
		} else {
			unavailable := func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "live streaming unavailable", http.StatusServiceUnavailable)
			}
			r.Get("/live", unavailable)
			r.Get("/sessions/{sessionID}", unavailable)
		}
	})

	// Health check (unauthenticated).
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Prometheus scrape endpoint, backed by the service's private registry.
	router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))

	return s
}

// Start begins listening for HTTP requests.
func (s *Server) Start(_ context.Context) error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.Start: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

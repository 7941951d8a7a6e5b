package server

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	v1 "github.com/summitroofing/beacon/internal/api/v1"
	"github.com/summitroofing/beacon/internal/api/ws"
	"github.com/summitroofing/beacon/internal/ingest"
	"github.com/summitroofing/beacon/internal/store/postgres"
)

func registerIngestRoutes(r chi.Router, h *ingest.Handler) {
	r.Post("/beacon", h.Beacon)
	r.Post("/logs", h.Logs)
}

func registerAPIRoutes(api huma.API, store *postgres.Store) {
	v1.RegisterSessionRoutes(api, store)
	v1.RegisterFunnelRoutes(api, store)
	v1.RegisterLogRoutes(api, store)
}

func registerWSRoutes(r chi.Router, hub *ws.Hub) {
	r.Get("/live", hub.ServeLive)
	r.Get("/sessions/{sessionID}", hub.ServeSession)
}

package ingest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/summitroofing/beacon/internal/wire"
)

// maxBodyBytes bounds one flush request. A tracker batch of 50 events is a
// few tens of KB; 1MB leaves generous headroom.
const maxBodyBytes = 1 << 20

// Handler exposes the ingestion service over HTTP. These are plain chi
// handlers rather than typed API operations: the wire contract fixes the
// exact request and response JSON, error bodies included.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Beacon handles POST /api/v1/beacon.
func (h *Handler) Beacon(w http.ResponseWriter, r *http.Request) {
	var req wire.BeaconRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp, err := h.svc.Ingest(r.Context(), &req, geoFromRequest(r))
	if err != nil {
		writeIngestError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Logs handles POST /api/v1/logs.
func (h *Handler) Logs(w http.ResponseWriter, r *http.Request) {
	var req wire.LogRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp, err := h.svc.IngestLogs(r.Context(), &req)
	if err != nil {
		writeIngestError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, &wire.BeaconResponse{
			Success: false,
			Error:   "invalid JSON body",
		})
		return false
	}
	return true
}

func writeIngestError(w http.ResponseWriter, err error) {
	var badReq *BadRequestError
	if errors.As(err, &badReq) {
		writeJSON(w, http.StatusBadRequest, &wire.BeaconResponse{
			Success: false,
			Error:   badReq.Reason,
		})
		return
	}

	log.Error().Err(err).Msg("ingest: unexpected handler error")
	writeJSON(w, http.StatusInternalServerError, &wire.BeaconResponse{
		Success: false,
		Error:   "internal error",
	})
}

// geoFromRequest resolves the country code from trusted proxy headers.
func geoFromRequest(r *http.Request) ClientGeo {
	country := r.Header.Get("CF-IPCountry")
	if country == "" {
		country = r.Header.Get("X-Geo-Country")
	}
	return ClientGeo{CountryCode: country}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Debug().Err(err).Msg("ingest: response encode failed")
	}
}

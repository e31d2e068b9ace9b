package api

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mlenko/flightpath/internal/cache"
	"github.com/mlenko/flightpath/internal/flight"
	"github.com/mlenko/flightpath/internal/quota"
	"github.com/mlenko/flightpath/internal/refresh"
	"github.com/mlenko/flightpath/pkg/logger"
)

var serviceDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Handler holds the HTTP handlers for the engine's API surface.
type Handler struct {
	refreshSvc *refresh.Service
	governor   *quota.Governor
	statsCache *cache.Cache
	logger     *logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(refreshSvc *refresh.Service, governor *quota.Governor, statsCache *cache.Cache, log *logger.Logger) *Handler {
	return &Handler{
		refreshSvc: refreshSvc,
		governor:   governor,
		statsCache: statsCache,
		logger:     log.Named("api-handler"),
	}
}

// GetFlightProgress handles GET /flights/{carrier}/{number}/progress
func (h *Handler) GetFlightProgress(w http.ResponseWriter, r *http.Request) {
	key := flight.Key{
		Carrier:     strings.ToUpper(chi.URLParam(r, "carrier")),
		Number:      chi.URLParam(r, "number"),
		ServiceDate: r.URL.Query().Get("date"),
		OriginIATA:  strings.ToUpper(r.URL.Query().Get("origin")),
		DestIATA:    strings.ToUpper(r.URL.Query().Get("dest")),
	}

	if key.Carrier == "" || key.Number == "" {
		h.writeError(w, http.StatusBadRequest, "carrier and flight number are required")
		return
	}
	if !serviceDateRe.MatchString(key.ServiceDate) {
		h.writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	result, err := h.refreshSvc.Refresh(r.Context(), refresh.Request{Key: key})
	if err != nil {
		h.logger.Error("Flight refresh failed",
			logger.String("flight", key.String()),
			logger.Error(err))
		h.writeError(w, http.StatusInternalServerError, "refresh failed")
		return
	}

	if result.Failure == refresh.FailureQuotaExceeded {
		h.writeJSON(w, http.StatusTooManyRequests, result)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// bulkRefreshRequest is the POST body of the bulk endpoint.
type bulkRefreshRequest struct {
	Flights []flight.Key `json:"flights"`
}

// BulkRefresh handles POST /flights/refresh
func (h *Handler) BulkRefresh(w http.ResponseWriter, r *http.Request) {
	var body bulkRefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(body.Flights) == 0 {
		h.writeError(w, http.StatusBadRequest, "flights list is empty")
		return
	}

	reqs := make([]refresh.Request, 0, len(body.Flights))
	for _, key := range body.Flights {
		if !serviceDateRe.MatchString(key.ServiceDate) {
			h.writeError(w, http.StatusBadRequest, "every flight needs a YYYY-MM-DD service_date")
			return
		}
		reqs = append(reqs, refresh.Request{Key: key})
	}

	items := h.refreshSvc.RefreshMany(r.Context(), reqs)
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": items,
	})
}

// GetQuotaStatus handles GET /quota
func (h *Handler) GetQuotaStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.governor.Status()
	if err != nil {
		h.logger.Error("Failed to read quota status", logger.Error(err))
		h.writeError(w, http.StatusInternalServerError, "quota status unavailable")
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}

// GetCacheStats handles GET /cache/stats
func (h *Handler) GetCacheStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.statsCache.GetStats())
}

// GetHealth handles GET /health
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", logger.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

package spatial

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/propwatch/appraisal-cli/internal/model"
)

// Handler serves the read-side query API. It exposes one endpoint,
// GET /api/v1?method=landValue&lat=..&lon=.., and never leaks store errors
// to the caller beyond a generic failure message.
type Handler struct {
	svc *Service
}

// NewHandler creates the query API handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// errorBody is the client-error envelope: Completed mirrors the record
// source's own protocol so existing frontends can share response handling.
type errorBody struct {
	Completed bool   `json:"completed"`
	Message   string `json:"message"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("method") != "landValue" {
		writeError(w, http.StatusBadRequest, "unsupported method")
		return
	}

	latStr := r.URL.Query().Get("lat")
	lonStr := r.URL.Query().Get("lon")
	if latStr == "" || lonStr == "" {
		writeError(w, http.StatusBadRequest, "Missing latitude or longitude")
		return
	}

	lat, latErr := strconv.ParseFloat(latStr, 64)
	lon, lonErr := strconv.ParseFloat(lonStr, 64)
	if latErr != nil || lonErr != nil {
		writeError(w, http.StatusBadRequest, "Invalid latitude or longitude")
		return
	}

	values, err := h.svc.LandValue(r.Context(), lat, lon)
	if err != nil {
		zap.L().Error("land value query failed",
			zap.Float64("lat", lat), zap.Float64("lon", lon), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if values == nil {
		// An empty box match is a valid result, not an error.
		values = []model.LandValue{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(values)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Completed: false, Message: msg})
}

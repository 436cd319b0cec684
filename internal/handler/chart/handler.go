package chart

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/muni-health/muni/backend/pkg/utils"
)

// Source fetches chart data from the math-query API.
type Source interface {
	Fetch(ctx context.Context) (json.RawMessage, error)
	ImageURL(ctx context.Context) (string, error)
}

// Handler relays chart queries.
type Handler struct {
	source Source
}

// New creates a chart relay handler.
func New(source Source) *Handler {
	return &Handler{source: source}
}

// RegisterRoutes mounts the chart routes under the API prefix.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/chart", h.HandleRelay)
	r.Get("/chart/image", h.handleImage)
}

// HandleRelay returns the upstream JSON verbatim, or a plain-text 500.
func (h *Handler) HandleRelay(w http.ResponseWriter, r *http.Request) {
	raw, err := h.source.Fetch(r.Context())
	if err != nil {
		log.Printf("[chart] error fetching Wolfram data: %v", err)
		http.Error(w, "Error fetching Wolfram data", http.StatusInternalServerError)
		return
	}
	utils.RespondRawJSON(w, http.StatusOK, raw)
}

func (h *Handler) handleImage(w http.ResponseWriter, r *http.Request) {
	src, err := h.source.ImageURL(r.Context())
	if err != nil {
		log.Printf("[chart] error extracting chart image: %v", err)
		utils.RespondError(w, http.StatusBadGateway, "chart image unavailable")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"src": src})
}

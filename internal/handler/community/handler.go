package community

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/muni-health/muni/backend/internal/model/community"
	"github.com/muni-health/muni/backend/pkg/utils"
)

// Handler serves community experiences.
type Handler struct {
	experiences community.Store
}

// New creates a community handler.
func New(experiences community.Store) *Handler {
	return &Handler{experiences: experiences}
}

// RegisterRoutes mounts the community routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/community", h.handleListExperiences)
}

// handleListExperiences lists experiences, optionally filtered by ?medication=.
func (h *Handler) handleListExperiences(w http.ResponseWriter, r *http.Request) {
	experiences := h.experiences.ByMedication(r.URL.Query().Get("medication"))
	utils.RespondJSON(w, http.StatusOK, experiences)
}

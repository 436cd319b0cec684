package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/muni-health/muni/backend/internal/handler/chart"
	"github.com/muni-health/muni/backend/internal/handler/chat"
	"github.com/muni-health/muni/backend/internal/handler/community"
	"github.com/muni-health/muni/backend/internal/handler/stream"
	"github.com/muni-health/muni/backend/internal/handler/ws"
	middlewarePkg "github.com/muni-health/muni/backend/internal/middleware"
	communityModel "github.com/muni-health/muni/backend/internal/model/community"
	checkinService "github.com/muni-health/muni/backend/internal/service/checkin"
	chatService "github.com/muni-health/muni/backend/internal/service/chat"
	"github.com/muni-health/muni/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services. checkinSvc may be nil when no
// chat model is configured; check-in routes then answer 503.
func NewRouter(chatSvc *chatService.Service, checkinSvc *checkinService.Service, experiences communityModel.Store, chartSrc chart.Source) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	chartHandler := chart.New(chartSrc)

	// Legacy relay path.
	r.Get("/wolfram", chartHandler.HandleRelay)

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]any{
				"status":  "ok",
				"checkin": checkinSvc != nil,
			})
		})

		chat.New(chatSvc).RegisterRoutes(api)
		community.New(experiences).RegisterRoutes(api)
		chartHandler.RegisterRoutes(api)

		if checkinSvc != nil {
			stream.New(checkinSvc).RegisterRoutes(api)
			ws.New(checkinSvc, chatSvc).RegisterRoutes(api)
			return
		}

		unavailable := func(w http.ResponseWriter, r *http.Request) {
			utils.RespondError(w, http.StatusServiceUnavailable, "check-in assistant unavailable")
		}
		api.Post("/checkin/{sessionID}", unavailable)
		api.Get("/ws/{sessionID}", unavailable)
	})

	return r
}

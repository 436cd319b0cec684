package stream

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/muni-health/muni/backend/internal/analysis/triage"
	"github.com/muni-health/muni/backend/internal/model/chat"
	"github.com/muni-health/muni/backend/internal/service/checkin"
	"github.com/muni-health/muni/backend/pkg/utils"
)

// Runner runs one check-in turn.
type Runner interface {
	Send(ctx context.Context, sessionID, text string, sink triage.Sink) (checkin.Result, error)
}

// Handler streams check-in replies via Server-Sent Events.
type Handler struct {
	runner Runner
}

// New creates a stream handler.
func New(runner Runner) *Handler {
	return &Handler{runner: runner}
}

// RegisterRoutes mounts the check-in streaming route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/checkin/{sessionID}", h.handleCheckin)
}

type checkinRequest struct {
	Text string `json:"text"`
}

func (h *Handler) handleCheckin(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var payload checkinRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sink := &sseSink{w: w, flusher: flusher}
	result, err := h.runner.Send(r.Context(), sessionID, payload.Text, sink)
	if err != nil {
		log.Printf("[stream] check-in rejected session=%s: %v", sessionID, err)
		if !sink.started {
			utils.RespondError(w, checkin.HTTPStatus(err), err.Error())
			return
		}
		utils.SendSSEEvent(w, flusher, "error", map[string]string{"error": err.Error()})
		return
	}

	sink.start()
	utils.SendSSEEvent(w, flusher, "end", result)
}

// sseSink writes each message as a "message" event. Headers are sent with
// the first message so that turns rejected up front still get a JSON error.
type sseSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func (s *sseSink) start() {
	if s.started {
		return
	}
	s.started = true
	utils.SetupSSEHeaders(s.w)
	s.w.WriteHeader(http.StatusOK)
}

func (s *sseSink) Emit(msg chat.Message) {
	s.start()
	utils.SendSSEEvent(s.w, s.flusher, "message", msg)
}

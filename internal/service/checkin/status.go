package checkin

import (
	"errors"
	"net/http"

	chatservice "github.com/muni-health/muni/backend/internal/service/chat"
)

// HTTPStatus maps an error returned by Send to a response status.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, chatservice.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, chatservice.ErrTurnInFlight):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/anirudh-m/gamehub/internal/realtime"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeLifecycleError maps the subsystem's error taxonomy onto HTTP.
// RoomUnavailable is a normal contention outcome (409, pick another room),
// StoreUnavailable is retryable infrastructure trouble (503).
func writeLifecycleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, realtime.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "not authenticated")
	case errors.Is(err, realtime.ErrRoomUnavailable):
		writeError(w, http.StatusConflict, "room is no longer available")
	case errors.Is(err, realtime.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "store unavailable, retry later")
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

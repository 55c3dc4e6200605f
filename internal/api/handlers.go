package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/anirudh-m/gamehub/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxStatePayload = 64 * 1024

// Realtime is the slice of the subsystem the HTTP layer needs.
type Realtime interface {
	CreateRoom(ctx context.Context, callerID uuid.UUID, gameType string) (*models.GameRoom, error)
	JoinRoom(ctx context.Context, callerID, roomID uuid.UUID) error
	LeaveRoom(ctx context.Context, callerID, roomID uuid.UUID) error
	CompleteRoom(ctx context.Context, callerID, roomID uuid.UUID, winnerID *uuid.UUID) error
	UpdateRoomState(ctx context.Context, callerID, roomID uuid.UUID, state json.RawMessage) error
	Heartbeat(ctx context.Context, playerID uuid.UUID, status models.PresenceStatus, currentRoom *uuid.UUID) error
	Room(ctx context.Context, id uuid.UUID) (*models.GameRoom, error)
	AvailableRooms() []models.GameRoom
	OnlinePlayers() []models.PresenceRecord
}

type Handler struct {
	realtime Realtime
	logger   *zap.Logger
}

func NewHandler(rt Realtime, logger *zap.Logger) *Handler {
	return &Handler{realtime: rt, logger: logger}
}

// Router builds the service's HTTP surface. Everything except /health sits
// behind bearer auth.
func (h *Handler) Router(jwtSecret string) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(jwtSecret))

		r.Post("/rooms", h.createRoom)
		r.Get("/rooms/available", h.availableRooms)
		r.Get("/rooms/{id}", h.getRoom)
		r.Post("/rooms/{id}/join", h.joinRoom)
		r.Post("/rooms/{id}/leave", h.leaveRoom)
		r.Post("/rooms/{id}/complete", h.completeRoom)
		r.Put("/rooms/{id}/state", h.updateRoomState)

		r.Get("/players/online", h.onlinePlayers)
		r.Post("/presence/heartbeat", h.heartbeat)
	})

	return r
}

type createRoomRequest struct {
	GameType string `json:"game_type"`
}

func (h *Handler) createRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	room, err := h.realtime.CreateRoom(r.Context(), PlayerID(r.Context()), req.GameType)
	if err != nil {
		writeLifecycleError(w, err)
		return
	}

	h.logger.Info("room created",
		zap.String("room_id", room.ID.String()),
		zap.String("game_type", room.GameType),
		zap.String("host", room.Player1ID.String()))
	writeJSON(w, http.StatusCreated, room)
}

func (h *Handler) joinRoom(w http.ResponseWriter, r *http.Request) {
	roomID, ok := roomIDParam(w, r)
	if !ok {
		return
	}

	if err := h.realtime.JoinRoom(r.Context(), PlayerID(r.Context()), roomID); err != nil {
		writeLifecycleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) leaveRoom(w http.ResponseWriter, r *http.Request) {
	roomID, ok := roomIDParam(w, r)
	if !ok {
		return
	}

	if err := h.realtime.LeaveRoom(r.Context(), PlayerID(r.Context()), roomID); err != nil {
		writeLifecycleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type completeRoomRequest struct {
	WinnerID *uuid.UUID `json:"winner_id"`
}

func (h *Handler) completeRoom(w http.ResponseWriter, r *http.Request) {
	roomID, ok := roomIDParam(w, r)
	if !ok {
		return
	}

	var req completeRoomRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	if err := h.realtime.CompleteRoom(r.Context(), PlayerID(r.Context()), roomID, req.WinnerID); err != nil {
		writeLifecycleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) updateRoomState(w http.ResponseWriter, r *http.Request) {
	roomID, ok := roomIDParam(w, r)
	if !ok {
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxStatePayload))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	if !json.Valid(payload) {
		writeError(w, http.StatusBadRequest, "state must be valid JSON")
		return
	}

	if err := h.realtime.UpdateRoomState(r.Context(), PlayerID(r.Context()), roomID, payload); err != nil {
		writeLifecycleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getRoom(w http.ResponseWriter, r *http.Request) {
	roomID, ok := roomIDParam(w, r)
	if !ok {
		return
	}

	room, err := h.realtime.Room(r.Context(), roomID)
	if err != nil {
		writeLifecycleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (h *Handler) availableRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.realtime.AvailableRooms())
}

func (h *Handler) onlinePlayers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.realtime.OnlinePlayers())
}

type heartbeatRequest struct {
	Status      models.PresenceStatus `json:"status"`
	CurrentRoom *uuid.UUID            `json:"current_room"`
}

func (h *Handler) heartbeat(w http.ResponseWriter, r *http.Request) {
	var req heartbeatRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	if err := h.realtime.Heartbeat(r.Context(), PlayerID(r.Context()), req.Status, req.CurrentRoom); err != nil {
		writeLifecycleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func roomIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	roomID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid room id")
		return uuid.Nil, false
	}
	return roomID, true
}

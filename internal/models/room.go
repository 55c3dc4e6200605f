package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type RoomStatus string

// Room status moves strictly forward: waiting -> playing -> finished.
// No transition ever re-enters an earlier state.
const (
	RoomWaiting  RoomStatus = "waiting"
	RoomPlaying  RoomStatus = "playing"
	RoomFinished RoomStatus = "finished"
)

// GameRoom is a two-player matchmaking unit. Player2ID is set exactly once,
// at the waiting -> playing transition. CurrentState is owned entirely by
// the mini-game hosting the room; this service never inspects it.
type GameRoom struct {
	ID           uuid.UUID       `json:"id"`
	GameType     string          `json:"game_type"`
	Status       RoomStatus      `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	CreatedBy    uuid.UUID       `json:"created_by"`
	Player1ID    uuid.UUID       `json:"player1_id"`
	Player2ID    *uuid.UUID      `json:"player2_id,omitempty"`
	CurrentState json.RawMessage `json:"current_state,omitempty"`
	WinnerID     *uuid.UUID      `json:"winner_id,omitempty"`
}

// HasPlayer reports whether id occupies either seat in the room.
func (r *GameRoom) HasPlayer(id uuid.UUID) bool {
	return r.Player1ID == id || (r.Player2ID != nil && *r.Player2ID == id)
}

package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anirudh-m/gamehub/internal/models"
	"github.com/anirudh-m/gamehub/internal/store"
	"github.com/google/uuid"
)

// RoomManager implements the create/join/leave state machine:
//
//	waiting --join--> playing --leave/complete--> finished
//	waiting --leave (host abandons)--> finished
//
// Cross-process races are resolved entirely by the store's conditional
// updates; this type never reads a row to decide whether a write is safe.
type RoomManager struct {
	store store.Store
	cache *ReplicaCache
}

func NewRoomManager(st store.Store, cache *ReplicaCache) *RoomManager {
	return &RoomManager{store: st, cache: cache}
}

// CreateRoom opens a new waiting room hosted by callerID. The created room
// is placed in the cache optimistically so the caller's own views show it
// before the change feed confirms it.
func (m *RoomManager) CreateRoom(ctx context.Context, callerID uuid.UUID, gameType string) (*models.GameRoom, error) {
	if callerID == uuid.Nil {
		return nil, ErrUnauthenticated
	}
	if gameType == "" {
		return nil, fmt.Errorf("game type is required")
	}

	room := &models.GameRoom{
		ID:        uuid.New(),
		GameType:  gameType,
		Status:    models.RoomWaiting,
		CreatedBy: callerID,
		Player1ID: callerID,
	}

	if err := m.store.InsertRoom(ctx, room); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	m.cache.ApplyOptimisticRoom(*room)
	return room, nil
}

// JoinRoom claims the second seat of a waiting room. When two players race
// for the same room the store's conditional update lets exactly one claim
// through; the loser gets ErrRoomUnavailable, which is authoritative and
// must not be retried.
func (m *RoomManager) JoinRoom(ctx context.Context, callerID, roomID uuid.UUID) error {
	if callerID == uuid.Nil {
		return ErrUnauthenticated
	}

	affected, err := m.store.ClaimRoomSeat(ctx, roomID, callerID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if affected == 0 {
		return ErrRoomUnavailable
	}

	// Best-effort local echo; a feed-confirmed entry is left for its next
	// feed event to update.
	if room, ok := m.cache.Room(roomID); ok {
		player2 := callerID
		room.Status = models.RoomPlaying
		room.Player2ID = &player2
		m.cache.ApplyOptimisticRoom(room)
	}
	return nil
}

// LeaveRoom finishes any room the caller occupies. Idempotent: leaving an
// already-finished room, or a room the caller is not part of, is a no-op
// success.
func (m *RoomManager) LeaveRoom(ctx context.Context, callerID, roomID uuid.UUID) error {
	return m.finish(ctx, callerID, roomID, nil)
}

// CompleteRoom is LeaveRoom plus a recorded winner. It is the call game
// logic makes when a match concludes.
func (m *RoomManager) CompleteRoom(ctx context.Context, callerID, roomID uuid.UUID, winnerID *uuid.UUID) error {
	return m.finish(ctx, callerID, roomID, winnerID)
}

func (m *RoomManager) finish(ctx context.Context, callerID, roomID uuid.UUID, winnerID *uuid.UUID) error {
	if callerID == uuid.Nil {
		return ErrUnauthenticated
	}

	affected, err := m.store.FinishRoom(ctx, roomID, callerID, winnerID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if affected == 0 {
		// Caller occupies no seat in the room (or the room is unknown).
		// Nothing to tear down.
		return nil
	}

	if room, ok := m.cache.Room(roomID); ok {
		room.Status = models.RoomFinished
		if winnerID != nil {
			room.WinnerID = winnerID
		}
		m.cache.ApplyOptimisticRoom(room)
	}
	return nil
}

// UpdateRoomState replaces the opaque game payload of a room the caller
// occupies. The payload belongs to the mini-game; it is stored and
// forwarded untouched.
func (m *RoomManager) UpdateRoomState(ctx context.Context, callerID, roomID uuid.UUID, state json.RawMessage) error {
	if callerID == uuid.Nil {
		return ErrUnauthenticated
	}

	affected, err := m.store.SetRoomState(ctx, roomID, callerID, state)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if affected == 0 {
		return ErrRoomUnavailable
	}
	return nil
}

package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/anirudh-m/gamehub/internal/models"
	"github.com/google/uuid"
)

var ErrNotFound = errors.New("not found")

// Collection names the two row sets this service mediates.
type Collection string

const (
	CollectionRooms    Collection = "game_rooms"
	CollectionPresence Collection = "player_presence"
)

// Event is a single change-feed notification: the post-image of an inserted
// or updated row. Exactly one of Room/Presence is non-nil, matching
// Collection.
type Event struct {
	Collection Collection
	Room       *models.GameRoom
	Presence   *models.PresenceRecord
}

// Store is the contract against the backing row store. The conditional
// updates (ClaimRoomSeat, FinishRoom, SetRoomState) report how many rows
// they affected; that count is the only cross-process concurrency primitive
// the rest of the service relies on.
type Store interface {
	// Bulk reads, used once per (re)connection to seed the replica cache.
	ListWaitingRooms(ctx context.Context) ([]models.GameRoom, error)
	ListOnlinePresence(ctx context.Context) ([]models.PresenceRecord, error)

	GetRoom(ctx context.Context, id uuid.UUID) (*models.GameRoom, error)
	InsertRoom(ctx context.Context, room *models.GameRoom) error

	// ClaimRoomSeat atomically sets player2 and moves the room to playing,
	// only if the room is still waiting and playerID is not already the
	// host. Returns the number of rows affected: 1 for the winner of a
	// join race, 0 for everyone else.
	ClaimRoomSeat(ctx context.Context, roomID, playerID uuid.UUID) (int64, error)

	// FinishRoom moves the room to finished for any room where callerID
	// occupies a seat. Naturally idempotent; finished is terminal, so no
	// status predicate is needed. winnerID, when non-nil, is recorded.
	FinishRoom(ctx context.Context, roomID, callerID uuid.UUID, winnerID *uuid.UUID) (int64, error)

	// SetRoomState replaces the opaque game payload for a room occupied by
	// callerID. The payload is never inspected.
	SetRoomState(ctx context.Context, roomID, callerID uuid.UUID, state json.RawMessage) (int64, error)

	UpsertPresence(ctx context.Context, rec *models.PresenceRecord) error

	// Subscribe opens the change feed for one collection. The returned
	// subscription's event channel closes on transport failure;
	// resubscription is the caller's responsibility.
	Subscribe(ctx context.Context, collection Collection) (*Subscription, error)
}

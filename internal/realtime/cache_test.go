package realtime

import (
	"testing"
	"time"

	"github.com/anirudh-m/gamehub/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitingRoom(createdAt time.Time) models.GameRoom {
	return models.GameRoom{
		ID:        uuid.New(),
		GameType:  "rock-paper-scissors",
		Status:    models.RoomWaiting,
		CreatedAt: createdAt,
		CreatedBy: uuid.New(),
		Player1ID: uuid.New(),
	}
}

func TestCache_AvailableRoomsOnlyWaiting(t *testing.T) {
	cache := NewReplicaCache()
	now := time.Now().UTC()

	waiting := waitingRoom(now)
	playing := waitingRoom(now.Add(time.Second))
	guest := uuid.New()
	playing.Status = models.RoomPlaying
	playing.Player2ID = &guest

	cache.ApplyRoomEvent(waiting)
	cache.ApplyRoomEvent(playing)

	available := cache.AvailableRooms()
	require.Len(t, available, 1)
	assert.Equal(t, waiting.ID, available[0].ID)

	// The playing room is gone from the view but stays addressable for
	// in-progress-game consumers.
	cached, ok := cache.Room(playing.ID)
	require.True(t, ok)
	assert.Equal(t, models.RoomPlaying, cached.Status)
}

func TestCache_AvailableRoomsOrdering(t *testing.T) {
	cache := NewReplicaCache()
	now := time.Now().UTC()

	newer := waitingRoom(now.Add(time.Minute))
	older := waitingRoom(now)
	cache.ApplyRoomEvent(newer)
	cache.ApplyRoomEvent(older)

	available := cache.AvailableRooms()
	require.Len(t, available, 2)
	assert.Equal(t, older.ID, available[0].ID, "oldest room first")
}

// TestCache_LastWriteWinsByDeliveryOrder pins the merge policy: events are
// applied in the order delivered, not reordered by timestamp.
func TestCache_LastWriteWinsByDeliveryOrder(t *testing.T) {
	cache := NewReplicaCache()
	room := waitingRoom(time.Now().UTC())

	updated := room
	guest := uuid.New()
	updated.Status = models.RoomPlaying
	updated.Player2ID = &guest

	cache.ApplyRoomEvent(room)
	cache.ApplyRoomEvent(updated)

	cached, ok := cache.Room(room.ID)
	require.True(t, ok)
	assert.Equal(t, models.RoomPlaying, cached.Status)
}

func TestCache_FeedSupersedesOptimistic(t *testing.T) {
	cache := NewReplicaCache()
	room := waitingRoom(time.Now().UTC())

	// Optimistic local copy lands first, then the feed confirms with the
	// authoritative row (which meanwhile gained a second player).
	cache.ApplyOptimisticRoom(room)

	confirmed := room
	guest := uuid.New()
	confirmed.Status = models.RoomPlaying
	confirmed.Player2ID = &guest
	cache.ApplyRoomEvent(confirmed)

	cached, ok := cache.Room(room.ID)
	require.True(t, ok)
	assert.Equal(t, models.RoomPlaying, cached.Status)
	require.NotNil(t, cached.Player2ID)
	assert.Equal(t, guest, *cached.Player2ID)
}

// TestCache_OptimisticNeverRegressesFeedRow pins the other direction of the
// precedence rule: once the feed has delivered a row, a late optimistic
// write for the same id is discarded rather than rolling the status back.
func TestCache_OptimisticNeverRegressesFeedRow(t *testing.T) {
	cache := NewReplicaCache()
	room := waitingRoom(time.Now().UTC())
	winner := room.Player1ID

	finished := room
	finished.Status = models.RoomFinished
	finished.WinnerID = &winner
	cache.ApplyRoomEvent(finished)

	stale := room
	guest := uuid.New()
	stale.Status = models.RoomPlaying
	stale.Player2ID = &guest
	cache.ApplyOptimisticRoom(stale)

	cached, ok := cache.Room(room.ID)
	require.True(t, ok)
	assert.Equal(t, models.RoomFinished, cached.Status)
	require.NotNil(t, cached.WinnerID)
	assert.Equal(t, winner, *cached.WinnerID)
}

func TestCache_ReplaceWaitingRoomsDropsVanished(t *testing.T) {
	cache := NewReplicaCache()
	now := time.Now().UTC()

	vanished := waitingRoom(now)
	kept := waitingRoom(now.Add(time.Second))
	playing := waitingRoom(now.Add(2 * time.Second))
	guest := uuid.New()
	playing.Status = models.RoomPlaying
	playing.Player2ID = &guest
	local := waitingRoom(now.Add(3 * time.Second))

	cache.ApplyRoomEvent(vanished)
	cache.ApplyRoomEvent(kept)
	cache.ApplyRoomEvent(playing)
	cache.ApplyOptimisticRoom(local)

	fresh := waitingRoom(now.Add(4 * time.Second))
	cache.ReplaceWaitingRooms([]models.GameRoom{kept, fresh})

	// The waiting room absent from the bulk read is gone; non-waiting and
	// provisional entries are untouched.
	_, ok := cache.Room(vanished.ID)
	assert.False(t, ok, "stale waiting room removed")
	_, ok = cache.Room(playing.ID)
	assert.True(t, ok)
	_, ok = cache.Room(local.ID)
	assert.True(t, ok, "provisional entry left for its feed event")

	available := cache.AvailableRooms()
	ids := make([]uuid.UUID, 0, len(available))
	for _, room := range available {
		ids = append(ids, room.ID)
	}
	assert.ElementsMatch(t, []uuid.UUID{kept.ID, fresh.ID, local.ID}, ids)
}

func TestCache_OnlinePlayersFreshness(t *testing.T) {
	cache := NewReplicaCache()
	now := time.Now().UTC()
	window := 90 * time.Second

	fresh := models.PresenceRecord{ID: uuid.New(), LastSeenAt: now.Add(-10 * time.Second), Status: models.StatusOnline}
	inGame := models.PresenceRecord{ID: uuid.New(), LastSeenAt: now.Add(-20 * time.Second), Status: models.StatusInGame}
	// Stored status still says online, but the record is past the
	// freshness window and must be classified stale.
	stale := models.PresenceRecord{ID: uuid.New(), LastSeenAt: now.Add(-5 * time.Minute), Status: models.StatusOnline}
	offline := models.PresenceRecord{ID: uuid.New(), LastSeenAt: now, Status: models.StatusOffline}

	for _, rec := range []models.PresenceRecord{fresh, inGame, stale, offline} {
		cache.ApplyPresenceEvent(rec)
	}

	online := cache.OnlinePlayers(now, window)
	ids := make([]uuid.UUID, 0, len(online))
	for _, rec := range online {
		ids = append(ids, rec.ID)
	}
	assert.ElementsMatch(t, []uuid.UUID{fresh.ID, inGame.ID}, ids)

	// The stale record is still cached, just filtered at read time.
	assert.Len(t, cache.AllPresence(), 4)
}

func TestCache_WatchNotifies(t *testing.T) {
	cache := NewReplicaCache()
	watch, cancel := cache.Watch()
	defer cancel()

	cache.ApplyRoomEvent(waitingRoom(time.Now().UTC()))

	select {
	case _, ok := <-watch:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("expected a watch tick after a cache change")
	}
}

func TestCache_WatchCancelDetaches(t *testing.T) {
	cache := NewReplicaCache()
	watch, cancel := cache.Watch()

	cancel()
	cancel() // safe to call twice

	_, ok := <-watch
	assert.False(t, ok, "cancelled watch channel closes")

	// A detached watcher no longer holds a slot in the cache.
	cache.mu.RLock()
	defer cache.mu.RUnlock()
	assert.Empty(t, cache.watchers)
}

// TestCache_CloseDiscardsLateResults covers teardown: once the owning scope
// exits, results of in-flight calls must be discarded, not applied.
func TestCache_CloseDiscardsLateResults(t *testing.T) {
	cache := NewReplicaCache()
	watch, cancel := cache.Watch()
	defer cancel()

	cache.Close()
	cache.ApplyRoomEvent(waitingRoom(time.Now().UTC()))

	assert.Empty(t, cache.AvailableRooms())

	_, ok := <-watch
	assert.False(t, ok, "watch channels close on shutdown")
}

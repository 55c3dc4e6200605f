package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/anirudh-m/gamehub/internal/models"
	"github.com/anirudh-m/gamehub/internal/store"
	"github.com/google/uuid"
)

var errFakeStoreDown = errors.New("fake store down")

// fakeStore is an in-memory store.Store with the same conditional-update
// semantics as the Postgres implementation. Every write publishes its
// post-image to open subscriptions, mirroring the real change feed.
type fakeStore struct {
	mu       sync.Mutex
	rooms    map[uuid.UUID]models.GameRoom
	presence map[uuid.UUID]models.PresenceRecord
	subs     map[store.Collection][]*fakeSub

	failWrites  bool
	upsertCount int
}

type fakeSub struct {
	ch     chan store.Event
	closed bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rooms:    make(map[uuid.UUID]models.GameRoom),
		presence: make(map[uuid.UUID]models.PresenceRecord),
		subs:     make(map[store.Collection][]*fakeSub),
	}
}

func (f *fakeStore) setFailWrites(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWrites = fail
}

func (f *fakeStore) room(id uuid.UUID) (models.GameRoom, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[id]
	return room, ok
}

func (f *fakeStore) presenceOf(id uuid.UUID) (models.PresenceRecord, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.presence[id]
	return rec, ok
}

func (f *fakeStore) upserts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.upsertCount
}

// dropFeeds simulates a transport failure: every open subscription's
// channel closes, as the real pub/sub connection dropping would.
func (f *fakeStore) dropFeeds() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, subs := range f.subs {
		for _, sub := range subs {
			if !sub.closed {
				sub.closed = true
				close(sub.ch)
			}
		}
	}
	f.subs = make(map[store.Collection][]*fakeSub)
}

func (f *fakeStore) ListWaitingRooms(ctx context.Context) ([]models.GameRoom, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return nil, errFakeStoreDown
	}
	var out []models.GameRoom
	for _, room := range f.rooms {
		if room.Status == models.RoomWaiting {
			out = append(out, room)
		}
	}
	return out, nil
}

func (f *fakeStore) ListOnlinePresence(ctx context.Context) ([]models.PresenceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return nil, errFakeStoreDown
	}
	var out []models.PresenceRecord
	for _, rec := range f.presence {
		if rec.Status != models.StatusOffline {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeStore) GetRoom(ctx context.Context, id uuid.UUID) (*models.GameRoom, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &room, nil
}

func (f *fakeStore) InsertRoom(ctx context.Context, room *models.GameRoom) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return errFakeStoreDown
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = nowIndexed(len(f.rooms))
	}
	room.Status = models.RoomWaiting
	f.rooms[room.ID] = *room
	f.publishRoomLocked(*room)
	return nil
}

func (f *fakeStore) ClaimRoomSeat(ctx context.Context, roomID, playerID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return 0, errFakeStoreDown
	}
	room, ok := f.rooms[roomID]
	if !ok || room.Status != models.RoomWaiting || room.Player1ID == playerID {
		return 0, nil
	}
	player2 := playerID
	room.Player2ID = &player2
	room.Status = models.RoomPlaying
	f.rooms[roomID] = room
	f.publishRoomLocked(room)
	return 1, nil
}

func (f *fakeStore) FinishRoom(ctx context.Context, roomID, callerID uuid.UUID, winnerID *uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return 0, errFakeStoreDown
	}
	room, ok := f.rooms[roomID]
	if !ok || !room.HasPlayer(callerID) {
		return 0, nil
	}
	room.Status = models.RoomFinished
	if winnerID != nil {
		room.WinnerID = winnerID
	}
	f.rooms[roomID] = room
	f.publishRoomLocked(room)
	return 1, nil
}

func (f *fakeStore) SetRoomState(ctx context.Context, roomID, callerID uuid.UUID, state json.RawMessage) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return 0, errFakeStoreDown
	}
	room, ok := f.rooms[roomID]
	if !ok || !room.HasPlayer(callerID) {
		return 0, nil
	}
	room.CurrentState = state
	f.rooms[roomID] = room
	f.publishRoomLocked(room)
	return 1, nil
}

func (f *fakeStore) UpsertPresence(ctx context.Context, rec *models.PresenceRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return errFakeStoreDown
	}
	f.upsertCount++
	// last_seen_at never moves backward, matching the GREATEST clause in
	// the Postgres upsert.
	if existing, ok := f.presence[rec.ID]; ok && existing.LastSeenAt.After(rec.LastSeenAt) {
		rec.LastSeenAt = existing.LastSeenAt
	}
	f.presence[rec.ID] = *rec
	f.publishPresenceLocked(*rec)
	return nil
}

func (f *fakeStore) Subscribe(ctx context.Context, collection store.Collection) (*store.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub := &fakeSub{ch: make(chan store.Event, 128)}
	f.subs[collection] = append(f.subs[collection], sub)
	return store.NewSubscription(sub.ch, func() error {
		f.mu.Lock()
		defer f.mu.Unlock()
		if !sub.closed {
			sub.closed = true
			close(sub.ch)
			subs := f.subs[collection]
			for i, s := range subs {
				if s == sub {
					f.subs[collection] = append(subs[:i], subs[i+1:]...)
					break
				}
			}
		}
		return nil
	}), nil
}

// nowIndexed spreads creation times so ordering by CreatedAt is
// deterministic even when rooms are created in the same wall-clock tick.
func nowIndexed(i int) time.Time {
	return time.Now().UTC().Add(time.Duration(i) * time.Millisecond)
}

func (f *fakeStore) publishRoomLocked(room models.GameRoom) {
	for _, sub := range f.subs[store.CollectionRooms] {
		r := room
		sub.ch <- store.Event{Collection: store.CollectionRooms, Room: &r}
	}
}

func (f *fakeStore) publishPresenceLocked(rec models.PresenceRecord) {
	for _, sub := range f.subs[store.CollectionPresence] {
		p := rec
		sub.ch <- store.Event{Collection: store.CollectionPresence, Presence: &p}
	}
}

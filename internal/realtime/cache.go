package realtime

import (
	"sort"
	"sync"
	"time"

	"github.com/anirudh-m/gamehub/internal/models"
	"github.com/google/uuid"
)

type roomEntry struct {
	room models.GameRoom
	seq  uint64
	// provisional marks a local optimistic write that has not yet been
	// confirmed by the change feed. The first feed event for the id
	// supersedes it.
	provisional bool
}

type presenceEntry struct {
	rec models.PresenceRecord
	seq uint64
}

// ReplicaCache is the process-local, eventually-consistent copy of store
// state. It is written by the reconciler (feed events, seeds) and by the
// room manager (optimistic updates), and read by everyone else through
// snapshot copies. Merge policy is last-write-wins by delivery order; each
// entry carries the delivery sequence that produced it.
type ReplicaCache struct {
	mu       sync.RWMutex
	seq      uint64
	rooms    map[uuid.UUID]roomEntry
	presence map[uuid.UUID]presenceEntry
	watchers []chan struct{}
	closed   bool
}

func NewReplicaCache() *ReplicaCache {
	return &ReplicaCache{
		rooms:    make(map[uuid.UUID]roomEntry),
		presence: make(map[uuid.UUID]presenceEntry),
	}
}

// ApplyRoomEvent merges a feed-delivered room row: replace in place if the
// id is known, append otherwise. Feed events always win over whatever is
// cached, including optimistic local writes.
func (c *ReplicaCache) ApplyRoomEvent(room models.GameRoom) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.seq++
	c.rooms[room.ID] = roomEntry{room: room, seq: c.seq}
	c.notifyLocked()
}

func (c *ReplicaCache) ApplyPresenceEvent(rec models.PresenceRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.seq++
	c.presence[rec.ID] = presenceEntry{rec: rec, seq: c.seq}
	c.notifyLocked()
}

// ApplyOptimisticRoom records the local outcome of a lifecycle call before
// the change feed confirms it, so callers never observe a gap between a
// successful write and its feed event. Feed-delivered rows always win: an
// optimistic copy may replace another provisional entry or fill a vacant
// id, but never a row the feed has already delivered — otherwise a late
// local write could regress a status the feed moved forward.
func (c *ReplicaCache) ApplyOptimisticRoom(room models.GameRoom) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	entry := roomEntry{room: room, provisional: true}
	if existing, ok := c.rooms[room.ID]; ok {
		if !existing.provisional {
			return
		}
		entry.seq = existing.seq
	}
	c.rooms[room.ID] = entry
	c.notifyLocked()
}

// ReplaceWaitingRooms reconciles a bulk read of waiting rooms against the
// cache. Rows in the result count as feed deliveries. Cached waiting rooms
// absent from the result transitioned away while the feed was down, so they
// are dropped; their current state is unknown until the feed delivers it
// again. Provisional entries are left alone — their own feed event settles
// them.
func (c *ReplicaCache) ReplaceWaitingRooms(rooms []models.GameRoom) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	seen := make(map[uuid.UUID]struct{}, len(rooms))
	for _, room := range rooms {
		seen[room.ID] = struct{}{}
		c.seq++
		c.rooms[room.ID] = roomEntry{room: room, seq: c.seq}
	}
	for id, entry := range c.rooms {
		if entry.room.Status != models.RoomWaiting || entry.provisional {
			continue
		}
		if _, ok := seen[id]; !ok {
			delete(c.rooms, id)
		}
	}
	c.notifyLocked()
}

// SeedPresence loads bulk-read presence rows. Seeds count as feed
// deliveries: they overwrite cached records and bump sequences.
func (c *ReplicaCache) SeedPresence(recs []models.PresenceRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	for _, rec := range recs {
		c.seq++
		c.presence[rec.ID] = presenceEntry{rec: rec, seq: c.seq}
	}
	c.notifyLocked()
}

// AvailableRooms returns the rooms still awaiting a second player, oldest
// first. Rooms that left waiting stay cached (addressable by id) but drop
// out of this view.
func (c *ReplicaCache) AvailableRooms() []models.GameRoom {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.GameRoom, 0, len(c.rooms))
	for _, entry := range c.rooms {
		if entry.room.Status == models.RoomWaiting {
			out = append(out, entry.room)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// Room returns a copy of the cached row for id, if known.
func (c *ReplicaCache) Room(id uuid.UUID) (models.GameRoom, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.rooms[id]
	return entry.room, ok
}

// OnlinePlayers returns presence records that are fresh within window and
// not explicitly offline. Staleness is judged here, at read time; the
// cache never demotes records itself.
func (c *ReplicaCache) OnlinePlayers(now time.Time, window time.Duration) []models.PresenceRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.PresenceRecord, 0, len(c.presence))
	for _, entry := range c.presence {
		if entry.rec.Status == models.StatusOffline {
			continue
		}
		if entry.rec.IsStale(now, window) {
			continue
		}
		out = append(out, entry.rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// AllPresence returns every cached presence record, fresh or not.
func (c *ReplicaCache) AllPresence() []models.PresenceRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.PresenceRecord, 0, len(c.presence))
	for _, entry := range c.presence {
		out = append(out, entry.rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// Watch returns a channel that receives a tick after every cache change,
// plus a cancel func that detaches and closes the channel. Ticks are
// coalesced; consumers re-read the snapshots they care about. The channel
// is also closed when the cache shuts down.
func (c *ReplicaCache) Watch() (<-chan struct{}, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan struct{}, 1)
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	c.watchers = append(c.watchers, ch)
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, w := range c.watchers {
				if w == ch {
					c.watchers = append(c.watchers[:i], c.watchers[i+1:]...)
					close(ch)
					return
				}
			}
		})
	}
	return ch, cancel
}

// Close stops the cache: further applies are discarded (results of in-flight
// store calls at teardown must not land in a cache that no longer exists)
// and watcher channels are closed.
func (c *ReplicaCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for _, ch := range c.watchers {
		close(ch)
	}
	c.watchers = nil
}

func (c *ReplicaCache) notifyLocked() {
	for _, ch := range c.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

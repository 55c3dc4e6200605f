package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/anirudh-m/gamehub/internal/models"
	"github.com/anirudh-m/gamehub/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultHeartbeatInterval is how often a player re-asserts liveness.
// DefaultFreshnessWindow is three missed heartbeats; consumers treat older
// records as stale regardless of their stored status.
const (
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultFreshnessWindow   = 90 * time.Second
)

// Tracker periodically upserts the local player's presence record.
// Heartbeats are fire-and-forget: a failed beat is logged and retried on
// the next tick, never surfaced as an error. No "going offline" write is
// issued on shutdown; stopping the beats is itself the offline signal.
type Tracker struct {
	store    store.Store
	logger   *zap.Logger
	playerID uuid.UUID
	interval time.Duration

	mu          sync.Mutex
	status      models.PresenceStatus
	currentRoom *uuid.UUID
}

func NewTracker(st store.Store, playerID uuid.UUID, interval time.Duration, logger *zap.Logger) *Tracker {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return &Tracker{
		store:    st,
		logger:   logger,
		playerID: playerID,
		interval: interval,
		status:   models.StatusOnline,
	}
}

// Run beats immediately, then on every tick until ctx is cancelled. With no
// local player (playerID unset) it idles until cancellation.
func (t *Tracker) Run(ctx context.Context) error {
	if t.playerID == uuid.Nil {
		<-ctx.Done()
		return ctx.Err()
	}

	t.beat(ctx)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			t.beat(ctx)
		}
	}
}

// SetInGame flips the advertised status to in_game with the given room and
// pushes a beat straight away so observers see the transition before the
// next tick.
func (t *Tracker) SetInGame(ctx context.Context, roomID uuid.UUID) {
	t.mu.Lock()
	room := roomID
	t.status = models.StatusInGame
	t.currentRoom = &room
	t.mu.Unlock()
	t.beat(ctx)
}

// SetOnline reverts the advertised status to plain online.
func (t *Tracker) SetOnline(ctx context.Context) {
	t.mu.Lock()
	t.status = models.StatusOnline
	t.currentRoom = nil
	t.mu.Unlock()
	t.beat(ctx)
}

func (t *Tracker) beat(ctx context.Context) {
	if t.playerID == uuid.Nil {
		return
	}

	t.mu.Lock()
	rec := models.PresenceRecord{
		ID:          t.playerID,
		LastSeenAt:  time.Now().UTC(),
		Status:      t.status,
		CurrentRoom: t.currentRoom,
	}
	t.mu.Unlock()

	if err := t.store.UpsertPresence(ctx, &rec); err != nil {
		// One missed beat only makes the record look stale a bit
		// sooner; the next tick retries.
		t.logger.Warn("presence heartbeat failed",
			zap.String("player_id", t.playerID.String()),
			zap.Error(err))
	}
}

package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/anirudh-m/gamehub/internal/models"
	"github.com/anirudh-m/gamehub/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Options tune the per-process subsystem. Zero values take the defaults.
type Options struct {
	// PlayerID is the local authenticated player whose liveness the
	// tracker asserts. Leave unset for processes (such as an API gateway)
	// that relay heartbeats for remote players instead of beating for
	// themselves.
	PlayerID uuid.UUID

	HeartbeatInterval time.Duration
	FreshnessWindow   time.Duration
}

// Client composes the whole presence/matchmaking subsystem for one process:
// the replica cache, the reconciler that keeps it current, the heartbeat
// tracker, and the room lifecycle manager.
type Client struct {
	store      store.Store
	cache      *ReplicaCache
	reconciler *Reconciler
	tracker    *Tracker
	rooms      *RoomManager
	window     time.Duration
}

func NewClient(st store.Store, opts Options, logger *zap.Logger) *Client {
	window := opts.FreshnessWindow
	if window <= 0 {
		window = DefaultFreshnessWindow
	}

	cache := NewReplicaCache()
	return &Client{
		store:      st,
		cache:      cache,
		reconciler: NewReconciler(st, cache, logger),
		tracker:    NewTracker(st, opts.PlayerID, opts.HeartbeatInterval, logger),
		rooms:      NewRoomManager(st, cache),
		window:     window,
	}
}

// Run drives the background loops until ctx is cancelled, then shuts the
// cache so results of any still-in-flight store calls are discarded rather
// than applied. Cancellation is reported as a clean stop.
func (c *Client) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.reconciler.Run(ctx) })
	g.Go(func() error { return c.tracker.Run(ctx) })

	err := g.Wait()
	c.cache.Close()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (c *Client) CreateRoom(ctx context.Context, callerID uuid.UUID, gameType string) (*models.GameRoom, error) {
	room, err := c.rooms.CreateRoom(ctx, callerID, gameType)
	if err != nil {
		return nil, err
	}
	if callerID == c.tracker.playerID {
		c.tracker.SetInGame(ctx, room.ID)
	}
	return room, nil
}

func (c *Client) JoinRoom(ctx context.Context, callerID, roomID uuid.UUID) error {
	if err := c.rooms.JoinRoom(ctx, callerID, roomID); err != nil {
		return err
	}
	if callerID == c.tracker.playerID {
		c.tracker.SetInGame(ctx, roomID)
	}
	return nil
}

func (c *Client) LeaveRoom(ctx context.Context, callerID, roomID uuid.UUID) error {
	if err := c.rooms.LeaveRoom(ctx, callerID, roomID); err != nil {
		return err
	}
	if callerID == c.tracker.playerID {
		c.tracker.SetOnline(ctx)
	}
	return nil
}

func (c *Client) CompleteRoom(ctx context.Context, callerID, roomID uuid.UUID, winnerID *uuid.UUID) error {
	if err := c.rooms.CompleteRoom(ctx, callerID, roomID, winnerID); err != nil {
		return err
	}
	if callerID == c.tracker.playerID {
		c.tracker.SetOnline(ctx)
	}
	return nil
}

func (c *Client) UpdateRoomState(ctx context.Context, callerID, roomID uuid.UUID, state json.RawMessage) error {
	return c.rooms.UpdateRoomState(ctx, callerID, roomID, state)
}

// Heartbeat records a liveness assertion on behalf of a remote player, for
// processes relaying beats instead of running a local tracker. The server
// stamps the time; clients only say who and what status.
func (c *Client) Heartbeat(ctx context.Context, playerID uuid.UUID, status models.PresenceStatus, currentRoom *uuid.UUID) error {
	if playerID == uuid.Nil {
		return ErrUnauthenticated
	}
	switch status {
	case models.StatusOnline, models.StatusInGame, models.StatusOffline:
	case "":
		status = models.StatusOnline
	default:
		return fmt.Errorf("unknown presence status %q", status)
	}

	rec := models.PresenceRecord{
		ID:          playerID,
		LastSeenAt:  time.Now().UTC(),
		Status:      status,
		CurrentRoom: currentRoom,
	}
	if err := c.store.UpsertPresence(ctx, &rec); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	c.cache.ApplyPresenceEvent(rec)
	return nil
}

// AvailableRooms is the rooms-awaiting-a-second-player view.
func (c *Client) AvailableRooms() []models.GameRoom {
	return c.cache.AvailableRooms()
}

// Room returns the cached row for id, falling back to a point read for
// rooms this replica has not seen yet.
func (c *Client) Room(ctx context.Context, id uuid.UUID) (*models.GameRoom, error) {
	if room, ok := c.cache.Room(id); ok {
		return &room, nil
	}
	room, err := c.store.GetRoom(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrRoomUnavailable
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return room, nil
}

// OnlinePlayers returns presence records fresh within the configured
// window.
func (c *Client) OnlinePlayers() []models.PresenceRecord {
	return c.cache.OnlinePlayers(time.Now().UTC(), c.window)
}

// Watch exposes the cache's change-notification channel for UI-style
// consumers that want pushes instead of polling. The cancel func detaches
// the watcher; call it when done to avoid accumulating dead channels.
func (c *Client) Watch() (<-chan struct{}, func()) {
	return c.cache.Watch()
}

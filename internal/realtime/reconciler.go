package realtime

import (
	"context"
	"errors"
	"time"

	"github.com/anirudh-m/gamehub/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	feedInitialBackoff = 500 * time.Millisecond
	feedMaxBackoff     = 30 * time.Second
)

var errFeedClosed = errors.New("change feed closed")

// Reconciler drains the store's change feeds into the replica cache. It
// never propagates feed errors upward: a dropped subscription is retried
// with exponential backoff, and each reconnect re-seeds the cache from a
// bulk read to heal whatever was missed during the outage.
type Reconciler struct {
	store  store.Store
	cache  *ReplicaCache
	logger *zap.Logger
}

func NewReconciler(st store.Store, cache *ReplicaCache, logger *zap.Logger) *Reconciler {
	return &Reconciler{store: st, cache: cache, logger: logger}
}

// Run blocks until ctx is cancelled, consuming both collection feeds.
func (r *Reconciler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.runFeed(ctx, store.CollectionRooms) })
	g.Go(func() error { return r.runFeed(ctx, store.CollectionPresence) })
	return g.Wait()
}

func (r *Reconciler) runFeed(ctx context.Context, collection store.Collection) error {
	backoff := feedInitialBackoff
	for {
		started := time.Now()
		err := r.consume(ctx, collection)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// A feed that stayed up for a while was healthy; start the
		// backoff ladder over.
		if time.Since(started) > feedMaxBackoff {
			backoff = feedInitialBackoff
		}

		r.logger.Warn("change feed interrupted, reconnecting",
			zap.String("collection", string(collection)),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > feedMaxBackoff {
			backoff = feedMaxBackoff
		}
	}
}

// consume runs one subscription until it fails. Subscribing happens before
// the seed read so no event can land in the gap between the two; any event
// that races the seed is simply applied twice, which the last-write-wins
// merge absorbs.
func (r *Reconciler) consume(ctx context.Context, collection store.Collection) error {
	sub, err := r.store.Subscribe(ctx, collection)
	if err != nil {
		return err
	}
	defer sub.Close()

	if err := r.seed(ctx, collection); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-sub.Events():
			if !ok {
				return errFeedClosed
			}
			r.apply(ev)
		}
	}
}

func (r *Reconciler) seed(ctx context.Context, collection store.Collection) error {
	switch collection {
	case store.CollectionRooms:
		rooms, err := r.store.ListWaitingRooms(ctx)
		if err != nil {
			return err
		}
		r.cache.ReplaceWaitingRooms(rooms)
	case store.CollectionPresence:
		recs, err := r.store.ListOnlinePresence(ctx)
		if err != nil {
			return err
		}
		r.cache.SeedPresence(recs)
	}
	return nil
}

func (r *Reconciler) apply(ev store.Event) {
	switch {
	case ev.Room != nil:
		r.cache.ApplyRoomEvent(*ev.Room)
	case ev.Presence != nil:
		r.cache.ApplyPresenceEvent(*ev.Presence)
	}
}

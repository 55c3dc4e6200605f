package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/anirudh-m/gamehub/internal/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const feedChannelPrefix = "feed:"

func feedChannel(collection Collection) string {
	return feedChannelPrefix + string(collection)
}

// Subscription is one open change feed. Events() closes when the transport
// drops or Close is called; the consumer reconnects by calling Subscribe
// again.
type Subscription struct {
	events chan Event
	stop   func() error
}

// NewSubscription wraps an event channel in a Subscription. The channel is
// owned by the producer, which must close it after stop is called. Store
// implementations (and test doubles) build their feeds with this.
func NewSubscription(events chan Event, stop func() error) *Subscription {
	if stop == nil {
		stop = func() error { return nil }
	}
	return &Subscription{events: events, stop: stop}
}

func (s *Subscription) Events() <-chan Event { return s.events }

func (s *Subscription) Close() error { return s.stop() }

func (s *PGStore) Subscribe(ctx context.Context, collection Collection) (*Subscription, error) {
	pubsub := s.rdb.Subscribe(ctx, feedChannel(collection))

	// Wait for the subscription confirmation so no event published after
	// this call returns can be missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s feed: %w", collection, err)
	}

	events := make(chan Event, 64)
	done := make(chan struct{})
	var once sync.Once
	stop := func() error {
		once.Do(func() { close(done) })
		return pubsub.Close()
	}
	go pump(collection, pubsub.Channel(), events, done, s.logger)
	return NewSubscription(events, stop), nil
}

// pump decodes feed messages into events until the transport channel closes
// or done is signalled. The done select keeps the goroutine from blocking
// forever on a consumer that stopped reading.
func pump(collection Collection, ch <-chan *redis.Message, events chan<- Event, done <-chan struct{}, logger *zap.Logger) {
	defer close(events)
	for msg := range ch {
		ev, err := decodeEvent(collection, []byte(msg.Payload))
		if err != nil {
			logger.Warn("dropping undecodable feed event",
				zap.String("collection", string(collection)),
				zap.Error(err))
			continue
		}
		select {
		case events <- ev:
		case <-done:
			return
		}
	}
}

func decodeEvent(collection Collection, payload []byte) (Event, error) {
	switch collection {
	case CollectionRooms:
		var room models.GameRoom
		if err := json.Unmarshal(payload, &room); err != nil {
			return Event{}, fmt.Errorf("failed to unmarshal room event: %w", err)
		}
		return Event{Collection: collection, Room: &room}, nil
	case CollectionPresence:
		var rec models.PresenceRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			return Event{}, fmt.Errorf("failed to unmarshal presence event: %w", err)
		}
		return Event{Collection: collection, Presence: &rec}, nil
	default:
		return Event{}, fmt.Errorf("unknown collection %q", collection)
	}
}

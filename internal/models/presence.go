package models

import (
	"time"

	"github.com/google/uuid"
)

type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusInGame  PresenceStatus = "in_game"
	StatusOffline PresenceStatus = "offline"
)

// PresenceRecord is a player's liveness entry. It is upserted on every
// heartbeat and never hard-deleted; a record that stops being refreshed
// simply goes stale.
type PresenceRecord struct {
	ID          uuid.UUID      `json:"id"`
	LastSeenAt  time.Time      `json:"last_seen_at"`
	Status      PresenceStatus `json:"status"`
	CurrentRoom *uuid.UUID     `json:"current_room,omitempty"`
}

// IsStale reports whether the record has missed enough heartbeats that
// consumers should treat the player as offline, whatever the stored
// status field says.
func (p *PresenceRecord) IsStale(now time.Time, window time.Duration) bool {
	return now.Sub(p.LastSeenAt) > window
}

package realtime

import "errors"

var (
	// ErrUnauthenticated means no caller identity was supplied. Not
	// retryable without re-authenticating externally.
	ErrUnauthenticated = errors.New("no authenticated player")

	// ErrRoomUnavailable means a join race was lost or the room is no
	// longer joinable. This is an expected outcome under contention and is
	// authoritative: retrying the same room will not help.
	ErrRoomUnavailable = errors.New("room is no longer available")

	// ErrStoreUnavailable wraps a transport or infrastructure failure.
	// Safe to retry with backoff.
	ErrStoreUnavailable = errors.New("store unavailable")
)

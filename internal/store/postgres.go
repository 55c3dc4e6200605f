package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anirudh-m/gamehub/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const roomColumns = "id, game_type, status, created_at, created_by, player1_id, player2_id, current_state, winner_id"

// PGStore keeps rows in Postgres and publishes the post-image of every
// successful write to a per-collection Redis channel, which is how remote
// replicas hear about changes.
type PGStore struct {
	pool   *pgxpool.Pool
	rdb    *redis.Client
	logger *zap.Logger
}

func NewPGStore(pool *pgxpool.Pool, rdb *redis.Client, logger *zap.Logger) *PGStore {
	return &PGStore{pool: pool, rdb: rdb, logger: logger}
}

func (s *PGStore) ListWaitingRooms(ctx context.Context) ([]models.GameRoom, error) {
	query := `SELECT ` + roomColumns + ` FROM game_rooms WHERE status = $1 ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, query, models.RoomWaiting)
	if err != nil {
		return nil, fmt.Errorf("failed to query waiting rooms: %w", err)
	}
	defer rows.Close()

	var out []models.GameRoom
	for rows.Next() {
		var room models.GameRoom
		if err := scanRoom(rows, &room); err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		out = append(out, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rooms: %w", err)
	}
	return out, nil
}

func (s *PGStore) ListOnlinePresence(ctx context.Context) ([]models.PresenceRecord, error) {
	query := `SELECT id, last_seen_at, status, current_room
	          FROM player_presence
	          WHERE status != $1
	          ORDER BY last_seen_at DESC`

	rows, err := s.pool.Query(ctx, query, models.StatusOffline)
	if err != nil {
		return nil, fmt.Errorf("failed to query presence: %w", err)
	}
	defer rows.Close()

	var out []models.PresenceRecord
	for rows.Next() {
		var rec models.PresenceRecord
		if err := rows.Scan(&rec.ID, &rec.LastSeenAt, &rec.Status, &rec.CurrentRoom); err != nil {
			return nil, fmt.Errorf("failed to scan presence: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating presence: %w", err)
	}
	return out, nil
}

func (s *PGStore) GetRoom(ctx context.Context, id uuid.UUID) (*models.GameRoom, error) {
	query := `SELECT ` + roomColumns + ` FROM game_rooms WHERE id = $1`

	var room models.GameRoom
	err := scanRoom(s.pool.QueryRow(ctx, query, id), &room)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return &room, nil
}

func (s *PGStore) InsertRoom(ctx context.Context, room *models.GameRoom) error {
	query := `INSERT INTO game_rooms (id, game_type, status, created_by, player1_id)
	          VALUES ($1, $2, $3, $4, $5)
	          RETURNING created_at`

	err := s.pool.QueryRow(ctx, query,
		room.ID,
		room.GameType,
		models.RoomWaiting,
		room.CreatedBy,
		room.Player1ID,
	).Scan(&room.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert room: %w", err)
	}
	room.Status = models.RoomWaiting

	s.publishRoom(ctx, room)
	return nil
}

// ClaimRoomSeat is the join-race arbiter. The status predicate is evaluated
// by Postgres at write time, so of any number of concurrent claims on the
// same waiting room exactly one affects a row.
func (s *PGStore) ClaimRoomSeat(ctx context.Context, roomID, playerID uuid.UUID) (int64, error) {
	query := `UPDATE game_rooms
	          SET player2_id = $2, status = $3
	          WHERE id = $1 AND status = $4 AND player1_id <> $2
	          RETURNING ` + roomColumns

	var room models.GameRoom
	err := scanRoom(s.pool.QueryRow(ctx, query, roomID, playerID, models.RoomPlaying, models.RoomWaiting), &room)
	if errors.Is(err, pgx.ErrNoRows) {
		// Lost the race, or the room is finished or unknown.
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to claim room seat: %w", err)
	}

	s.publishRoom(ctx, &room)
	return 1, nil
}

func (s *PGStore) FinishRoom(ctx context.Context, roomID, callerID uuid.UUID, winnerID *uuid.UUID) (int64, error) {
	query := `UPDATE game_rooms
	          SET status = $3, winner_id = COALESCE($4, winner_id)
	          WHERE id = $1 AND (player1_id = $2 OR player2_id = $2)
	          RETURNING ` + roomColumns

	var room models.GameRoom
	err := scanRoom(s.pool.QueryRow(ctx, query, roomID, callerID, models.RoomFinished, winnerID), &room)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to finish room: %w", err)
	}

	s.publishRoom(ctx, &room)
	return 1, nil
}

func (s *PGStore) SetRoomState(ctx context.Context, roomID, callerID uuid.UUID, state json.RawMessage) (int64, error) {
	query := `UPDATE game_rooms
	          SET current_state = $3
	          WHERE id = $1 AND (player1_id = $2 OR player2_id = $2)
	          RETURNING ` + roomColumns

	var room models.GameRoom
	err := scanRoom(s.pool.QueryRow(ctx, query, roomID, callerID, state), &room)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to set room state: %w", err)
	}

	s.publishRoom(ctx, &room)
	return 1, nil
}

// UpsertPresence refreshes a player's liveness row. GREATEST keeps
// last_seen_at from moving backward if heartbeats are delivered out of
// order.
func (s *PGStore) UpsertPresence(ctx context.Context, rec *models.PresenceRecord) error {
	query := `INSERT INTO player_presence (id, last_seen_at, status, current_room)
	          VALUES ($1, $2, $3, $4)
	          ON CONFLICT (id) DO UPDATE
	          SET last_seen_at = GREATEST(player_presence.last_seen_at, EXCLUDED.last_seen_at),
	              status = EXCLUDED.status,
	              current_room = EXCLUDED.current_room
	          RETURNING last_seen_at`

	err := s.pool.QueryRow(ctx, query, rec.ID, rec.LastSeenAt, rec.Status, rec.CurrentRoom).
		Scan(&rec.LastSeenAt)
	if err != nil {
		return fmt.Errorf("failed to upsert presence: %w", err)
	}

	s.publishPresence(ctx, rec)
	return nil
}

// publishRoom and publishPresence are best-effort: the row is already
// committed, and replicas that miss the notification heal on their next
// reconnect re-seed.
func (s *PGStore) publishRoom(ctx context.Context, room *models.GameRoom) {
	payload, err := json.Marshal(room)
	if err != nil {
		s.logger.Error("failed to marshal room event", zap.Error(err))
		return
	}
	if err := s.rdb.Publish(ctx, feedChannel(CollectionRooms), payload).Err(); err != nil {
		s.logger.Warn("failed to publish room event",
			zap.String("room_id", room.ID.String()),
			zap.Error(err))
	}
}

func (s *PGStore) publishPresence(ctx context.Context, rec *models.PresenceRecord) {
	payload, err := json.Marshal(rec)
	if err != nil {
		s.logger.Error("failed to marshal presence event", zap.Error(err))
		return
	}
	if err := s.rdb.Publish(ctx, feedChannel(CollectionPresence), payload).Err(); err != nil {
		s.logger.Warn("failed to publish presence event",
			zap.String("player_id", rec.ID.String()),
			zap.Error(err))
	}
}

func scanRoom(row pgx.Row, room *models.GameRoom) error {
	return row.Scan(
		&room.ID,
		&room.GameType,
		&room.Status,
		&room.CreatedAt,
		&room.CreatedBy,
		&room.Player1ID,
		&room.Player2ID,
		&room.CurrentState,
		&room.WinnerID,
	)
}

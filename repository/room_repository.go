package repository

import (
	"context"
	"errors"
	"fmt"

	"coino/database"
	"coino/models"
	"coino/service"

	"github.com/jackc/pgx/v5"
)

// RoomRepository implements the RoomRepository interface
type RoomRepository struct {
	q queryable
}

var _ service.RoomRepository = (*RoomRepository)(nil)

// NewRoomRepository creates a new room repository
func NewRoomRepository(db *database.DB) *RoomRepository {
	return &RoomRepository{q: db.Pool}
}

// newRoomRepositoryWithTx creates a new room repository with a transaction
func newRoomRepositoryWithTx(tx queryable) *RoomRepository {
	return &RoomRepository{q: tx}
}

// Create inserts the room and registers its creator as first participant
func (r *RoomRepository) Create(ctx context.Context, room *models.Room) error {
	query := `
		INSERT INTO rooms (id, creator_id, name)
		VALUES ($1, $2, $3)
		RETURNING started, earnings, created_at
	`

	err := r.q.QueryRow(ctx, query, room.ID, room.CreatorID, room.Name).
		Scan(&room.Started, &room.Earnings, &room.CreatedAt)
	if err != nil {
		return storeError(err, "failed to create room %s", room.ID)
	}

	if err := r.AddParticipant(ctx, room.ID, room.CreatorID); err != nil {
		return err
	}
	room.Participants = []string{room.CreatorID}

	return nil
}

func (r *RoomRepository) getRoom(ctx context.Context, query, roomID string) (*models.Room, error) {
	var room models.Room
	err := r.q.QueryRow(ctx, query, roomID).Scan(
		&room.ID,
		&room.CreatorID,
		&room.Name,
		&room.Started,
		&room.Earnings,
		&room.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError(err, "failed to get room %s", roomID)
	}

	participants, err := r.participants(ctx, roomID)
	if err != nil {
		return nil, err
	}
	room.Participants = participants

	return &room, nil
}

func (r *RoomRepository) participants(ctx context.Context, roomID string) ([]string, error) {
	rows, err := r.q.Query(ctx, `SELECT user_id FROM room_participants WHERE room_id = $1 ORDER BY joined_at, user_id`, roomID)
	if err != nil {
		return nil, storeError(err, "failed to list participants of room %s", roomID)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		users = append(users, userID)
	}

	if err := rows.Err(); err != nil {
		return nil, storeError(err, "failed to iterate participants of room %s", roomID)
	}
	return users, nil
}

// GetByID retrieves a room with its participants
func (r *RoomRepository) GetByID(ctx context.Context, roomID string) (*models.Room, error) {
	return r.getRoom(ctx, `SELECT id, creator_id, name, started, earnings, created_at FROM rooms WHERE id = $1`, roomID)
}

// GetByIDForUpdate retrieves a room and locks its row
func (r *RoomRepository) GetByIDForUpdate(ctx context.Context, roomID string) (*models.Room, error) {
	return r.getRoom(ctx, `SELECT id, creator_id, name, started, earnings, created_at FROM rooms WHERE id = $1 FOR UPDATE`, roomID)
}

// AddParticipant adds a user to the room; joining twice is a no-op
func (r *RoomRepository) AddParticipant(ctx context.Context, roomID, userID string) error {
	query := `
		INSERT INTO room_participants (room_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (room_id, user_id) DO NOTHING
	`

	if _, err := r.q.Exec(ctx, query, roomID, userID); err != nil {
		return storeError(err, "failed to add user %s to room %s", userID, roomID)
	}
	return nil
}

// MarkStarted sets the started flag
func (r *RoomRepository) MarkStarted(ctx context.Context, roomID string) error {
	result, err := r.q.Exec(ctx, `UPDATE rooms SET started = TRUE WHERE id = $1`, roomID)
	if err != nil {
		return storeError(err, "failed to start room %s", roomID)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("room %s: %w", roomID, service.ErrRoomNotFound)
	}
	return nil
}

// AddEarnings adds a house share to the room's earnings
func (r *RoomRepository) AddEarnings(ctx context.Context, roomID string, amount int64) error {
	result, err := r.q.Exec(ctx, `UPDATE rooms SET earnings = earnings + $2 WHERE id = $1`, roomID, amount)
	if err != nil {
		return storeError(err, "failed to add earnings to room %s", roomID)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("room %s: %w", roomID, service.ErrRoomNotFound)
	}
	return nil
}

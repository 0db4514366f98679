package postgres

import (
	"context"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

type RoomRepository struct {
	db querier
}

func NewRoomRepository(db querier) *RoomRepository {
	return &RoomRepository{db: db}
}

// CreateForTeam returns the team's room, creating it on first call.
func (r *RoomRepository) CreateForTeam(ctx context.Context, teamID string) (*domain.Room, error) {
	const q = `
		INSERT INTO chat_rooms (team_id)
		VALUES ($1)
		ON CONFLICT (team_id) DO UPDATE SET team_id = EXCLUDED.team_id
		RETURNING id, team_id, created_at`

	var rm domain.Room
	if err := r.db.QueryRow(ctx, q, teamID).Scan(&rm.ID, &rm.TeamID, &rm.CreatedAt); err != nil {
		return nil, err
	}
	return &rm, nil
}

func (r *RoomRepository) FindRoom(ctx context.Context, id string) (*domain.Room, error) {
	var rm domain.Room
	err := r.db.QueryRow(ctx, `SELECT id, team_id, created_at FROM chat_rooms WHERE id=$1`, id).
		Scan(&rm.ID, &rm.TeamID, &rm.CreatedAt)
	if err != nil {
		return nil, mapPgError(err)
	}
	return &rm, nil
}

func (r *RoomRepository) FindByTeam(ctx context.Context, teamID string) (*domain.Room, error) {
	var rm domain.Room
	err := r.db.QueryRow(ctx, `SELECT id, team_id, created_at FROM chat_rooms WHERE team_id=$1`, teamID).
		Scan(&rm.ID, &rm.TeamID, &rm.CreatedAt)
	if err != nil {
		return nil, mapPgError(err)
	}
	return &rm, nil
}

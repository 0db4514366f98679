package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

// Repository is the durable room record the live path appends to.
type Repository interface {
	CreateForTeam(ctx context.Context, teamID string) (*domain.Room, error)
	FindRoom(ctx context.Context, id string) (*domain.Room, error)
	FindByTeam(ctx context.Context, teamID string) (*domain.Room, error)
	History(ctx context.Context, roomID, before string, limit int) ([]domain.Message, string, error)
	UpsertReadStatus(ctx context.Context, roomID, userID string, at time.Time) error
	ReadStatuses(ctx context.Context, roomID string) ([]domain.ReadStatus, error)
	UnreadCount(ctx context.Context, roomID, userID string) (int, error)
}

type ChatService struct {
	repo Repository
	now  func() time.Time
}

func NewChatService(repo Repository) *ChatService {
	return &ChatService{repo: repo, now: time.Now}
}

// CreateRoom returns the team's room, creating it on first use.
func (s *ChatService) CreateRoom(ctx context.Context, teamID string) (*domain.Room, error) {
	teamID = strings.TrimSpace(teamID)
	if teamID == "" {
		return nil, domain.ErrInvalidTeam
	}
	room, err := s.repo.CreateForTeam(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("create room for team %s: %w", teamID, err)
	}
	return room, nil
}

func (s *ChatService) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	if roomID == "" {
		return nil, domain.ErrEmptyRoomID
	}
	return s.repo.FindRoom(ctx, roomID)
}

// RoomForTeam looks a room up without creating it.
func (s *ChatService) RoomForTeam(ctx context.Context, teamID string) (*domain.Room, error) {
	teamID = strings.TrimSpace(teamID)
	if teamID == "" {
		return nil, domain.ErrInvalidTeam
	}
	return s.repo.FindByTeam(ctx, teamID)
}

// History pages through a room newest first. An empty next cursor means
// there is nothing older.
func (s *ChatService) History(ctx context.Context, roomID, before string, limit int) ([]domain.Message, string, error) {
	if _, err := s.GetRoom(ctx, roomID); err != nil {
		return nil, "", err
	}
	return s.repo.History(ctx, roomID, before, limit)
}

func (s *ChatService) UnreadCount(ctx context.Context, roomID, userID string) (int, error) {
	if _, err := s.GetRoom(ctx, roomID); err != nil {
		return 0, err
	}
	return s.repo.UnreadCount(ctx, roomID, userID)
}

// MarkRead moves the user's read mark to now. It writes the same record the
// socket read event does.
func (s *ChatService) MarkRead(ctx context.Context, roomID, userID string) (time.Time, error) {
	if userID == "" {
		return time.Time{}, domain.ErrUnauthenticated
	}
	if _, err := s.GetRoom(ctx, roomID); err != nil {
		return time.Time{}, err
	}
	at := s.now().UTC().Truncate(time.Millisecond)
	if err := s.repo.UpsertReadStatus(ctx, roomID, userID, at); err != nil {
		return time.Time{}, fmt.Errorf("mark read: %w", err)
	}
	return at, nil
}

func (s *ChatService) ReadStatuses(ctx context.Context, roomID string) ([]domain.ReadStatus, error) {
	if _, err := s.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	return s.repo.ReadStatuses(ctx, roomID)
}

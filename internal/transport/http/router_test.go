package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/postgres"
	"github.com/cwrk-planet/chat-service/internal/realtime"
	"github.com/cwrk-planet/chat-service/pkg/logger"
)

type stubVerifier struct{}

func (stubVerifier) Verify(token string) (domain.Identity, error) {
	if token != "good" {
		return domain.Identity{}, errors.New("bad token")
	}
	return domain.Identity{ID: "alice", FirstName: "Alice"}, nil
}

type stubChat struct {
	rooms    map[string]*domain.Room
	messages []domain.Message
	marked   []string
	fail     error
}

func (s *stubChat) CreateRoom(_ context.Context, teamID string) (*domain.Room, error) {
	if teamID == "" {
		return nil, domain.ErrInvalidTeam
	}
	if s.fail != nil {
		return nil, s.fail
	}
	return &domain.Room{ID: "r-" + teamID, TeamID: teamID}, nil
}

func (s *stubChat) GetRoom(_ context.Context, id string) (*domain.Room, error) {
	room, ok := s.rooms[id]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return room, nil
}

func (s *stubChat) RoomForTeam(_ context.Context, teamID string) (*domain.Room, error) {
	for _, room := range s.rooms {
		if room.TeamID == teamID {
			return room, nil
		}
	}
	return nil, domain.ErrRoomNotFound
}

func (s *stubChat) History(ctx context.Context, roomID, before string, limit int) ([]domain.Message, string, error) {
	if _, err := s.GetRoom(ctx, roomID); err != nil {
		return nil, "", err
	}
	if before == "garbage" {
		return nil, "", postgres.ErrInvalidCursor
	}
	if limit < len(s.messages) {
		return s.messages[:limit], "cursor-1", nil
	}
	return s.messages, "", nil
}

func (s *stubChat) UnreadCount(ctx context.Context, roomID, userID string) (int, error) {
	if _, err := s.GetRoom(ctx, roomID); err != nil {
		return 0, err
	}
	return len(s.messages), nil
}

func (s *stubChat) MarkRead(ctx context.Context, roomID, userID string) (time.Time, error) {
	if _, err := s.GetRoom(ctx, roomID); err != nil {
		return time.Time{}, err
	}
	s.marked = append(s.marked, roomID+"/"+userID)
	return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), nil
}

func (s *stubChat) ReadStatuses(ctx context.Context, roomID string) ([]domain.ReadStatus, error) {
	if _, err := s.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	out := make([]domain.ReadStatus, 0, len(s.marked))
	for _, m := range s.marked {
		user := strings.TrimPrefix(m, roomID+"/")
		out = append(out, domain.ReadStatus{RoomID: roomID, UserID: user, LastReadAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)})
	}
	return out, nil
}

type stubPresence map[string][]realtime.Member

func (p stubPresence) Participants(roomID string) []realtime.Member { return p[roomID] }

func newTestRouter(chat *stubChat, presence stubPresence) http.Handler {
	return NewRouter(Deps{
		Handler:  NewHandler(chat, presence),
		Verifier: stubVerifier{},
		Log:      logger.Discard(),
	})
}

func do(t *testing.T, h http.Handler, method, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if authed {
		req.Header.Set("Authorization", "Bearer good")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestRouter_Health(t *testing.T) {
	rec := do(t, newTestRouter(&stubChat{}, nil), http.MethodGet, "/healthz", "", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestRouter_RequiresAuth(t *testing.T) {
	h := newTestRouter(&stubChat{}, nil)

	rec := do(t, h, http.MethodGet, "/api/v1/rooms/r1", "", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rooms/r1", nil)
	req.Header.Set("Authorization", "Bearer bad")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_CreateRoom(t *testing.T) {
	chat := &stubChat{}
	h := newTestRouter(chat, nil)

	tests := []struct {
		name   string
		body   string
		fail   error
		status int
	}{
		{"created", `{"teamId":"t1"}`, nil, http.StatusCreated},
		{"bad json", `{`, nil, http.StatusBadRequest},
		{"missing team", `{}`, nil, http.StatusBadRequest},
		{"store failure", `{"teamId":"t1"}`, errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			chat.fail = tc.fail
			rec := do(t, h, http.MethodPost, "/api/v1/rooms", tc.body, true)
			assert.Equal(t, tc.status, rec.Code)
		})
	}

	chat.fail = nil
	rec := do(t, h, http.MethodPost, "/api/v1/rooms", `{"teamId":"t1"}`, true)
	room := decode[RoomItem](t, rec)
	assert.Equal(t, "r-t1", room.ID)
	assert.Equal(t, "t1", room.TeamID)
}

func TestRouter_History(t *testing.T) {
	ts := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	chat := &stubChat{
		rooms: map[string]*domain.Room{"r1": {ID: "r1"}},
		messages: []domain.Message{
			{ID: "m2", Content: "second", Sender: domain.Identity{ID: "bob", FirstName: "Bob"}, Timestamp: ts.Add(time.Minute)},
			{ID: "m1", Content: "first", Sender: domain.Identity{ID: "alice"}, Timestamp: ts},
		},
	}
	h := newTestRouter(chat, nil)

	rec := do(t, h, http.MethodGet, "/api/v1/rooms/r1/messages?limit=1", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[HistoryResponse](t, rec)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "m2", resp.Items[0].ID)
	assert.Equal(t, "Bob", resp.Items[0].Sender.FirstName)
	assert.Equal(t, "cursor-1", resp.NextCursor)

	rec = do(t, h, http.MethodGet, "/api/v1/rooms/r1/messages?before=garbage", "", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/rooms/missing/messages", "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_UnreadAndRead(t *testing.T) {
	chat := &stubChat{
		rooms:    map[string]*domain.Room{"r1": {ID: "r1"}},
		messages: []domain.Message{{ID: "m1"}, {ID: "m2"}},
	}
	h := newTestRouter(chat, nil)

	rec := do(t, h, http.MethodGet, "/api/v1/rooms/r1/unread", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[UnreadResponse](t, rec).Unread)

	rec = do(t, h, http.MethodPost, "/api/v1/rooms/r1/read", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"r1/alice"}, chat.marked, "identity comes from the token")
}

func TestRouter_Participants(t *testing.T) {
	joined := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	presence := stubPresence{"r1": {
		{Identity: domain.Identity{ID: "alice", FirstName: "Alice"}, ConnID: "c1", JoinedAt: joined},
	}}
	h := newTestRouter(&stubChat{}, presence)

	rec := do(t, h, http.MethodGet, "/api/v1/rooms/r1/participants", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ParticipantsResponse](t, rec)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "alice", resp.Items[0].UserID)

	rec = do(t, h, http.MethodGet, "/api/v1/rooms/empty/participants", "", true)
	assert.Empty(t, decode[ParticipantsResponse](t, rec).Items)
}

func TestRouter_TeamRoom(t *testing.T) {
	chat := &stubChat{rooms: map[string]*domain.Room{"r1": {ID: "r1", TeamID: "t1"}}}
	h := newTestRouter(chat, nil)

	rec := do(t, h, http.MethodGet, "/api/v1/teams/t1/room", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "r1", decode[RoomItem](t, rec).ID)

	rec = do(t, h, http.MethodGet, "/api/v1/teams/t2/room", "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_ReadStatuses(t *testing.T) {
	chat := &stubChat{rooms: map[string]*domain.Room{"r1": {ID: "r1"}}}
	h := newTestRouter(chat, nil)

	rec := do(t, h, http.MethodGet, "/api/v1/rooms/r1/read-status", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[ReadStatusResponse](t, rec).Items)

	do(t, h, http.MethodPost, "/api/v1/rooms/r1/read", "", true)
	rec = do(t, h, http.MethodGet, "/api/v1/rooms/r1/read-status", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ReadStatusResponse](t, rec)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "alice", resp.Items[0].UserID)

	rec = do(t, h, http.MethodGet, "/api/v1/rooms/missing/read-status", "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

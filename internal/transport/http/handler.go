package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/postgres"
	"github.com/cwrk-planet/chat-service/internal/realtime"
	httpmw "github.com/cwrk-planet/chat-service/internal/transport/http/middleware"
)

type ChatService interface {
	CreateRoom(ctx context.Context, teamID string) (*domain.Room, error)
	GetRoom(ctx context.Context, roomID string) (*domain.Room, error)
	RoomForTeam(ctx context.Context, teamID string) (*domain.Room, error)
	History(ctx context.Context, roomID, before string, limit int) ([]domain.Message, string, error)
	UnreadCount(ctx context.Context, roomID, userID string) (int, error)
	MarkRead(ctx context.Context, roomID, userID string) (time.Time, error)
	ReadStatuses(ctx context.Context, roomID string) ([]domain.ReadStatus, error)
}

// Presence reports who is connected to a room right now.
type Presence interface {
	Participants(roomID string) []realtime.Member
}

type Handler struct {
	chat     ChatService
	presence Presence
}

func NewHandler(chat ChatService, presence Presence) *Handler {
	return &Handler{chat: chat, presence: presence}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to status codes; anything unknown is a 500.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		status, msg = http.StatusNotFound, "room not found"
	case errors.Is(err, domain.ErrInvalidTeam), errors.Is(err, domain.ErrEmptyRoomID):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, postgres.ErrInvalidCursor):
		status, msg = http.StatusBadRequest, "invalid_cursor"
	case errors.Is(err, domain.ErrUnauthenticated):
		status, msg = http.StatusUnauthorized, "unauthenticated"
	}
	if status >= 500 {
		httpmw.L(r.Context()).Error("handler."+op, "err", err)
	}
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func toRoomItem(room *domain.Room) RoomItem {
	return RoomItem{ID: room.ID, TeamID: room.TeamID, CreatedAt: room.CreatedAt}
}

// POST /rooms
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}
	room, err := h.chat.CreateRoom(r.Context(), req.TeamID)
	if err != nil {
		writeError(w, r, "CreateRoom", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRoomItem(room))
}

// GET /rooms/{id}
func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	room, err := h.chat.GetRoom(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "GetRoom", err)
		return
	}
	writeJSON(w, http.StatusOK, toRoomItem(room))
}

// GET /teams/{teamId}/room
func (h *Handler) TeamRoom(w http.ResponseWriter, r *http.Request) {
	room, err := h.chat.RoomForTeam(r.Context(), chi.URLParam(r, "teamId"))
	if err != nil {
		writeError(w, r, "TeamRoom", err)
		return
	}
	writeJSON(w, http.StatusOK, toRoomItem(room))
}

// GET /rooms/{id}/messages?before=&limit=
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			limit = n
		}
	}

	items, next, err := h.chat.History(r.Context(), roomID, r.URL.Query().Get("before"), limit)
	if err != nil {
		writeError(w, r, "History", err)
		return
	}
	resp := HistoryResponse{Items: make([]MessageItem, 0, len(items)), NextCursor: next}
	for _, m := range items {
		resp.Items = append(resp.Items, MessageItem{
			ID:      m.ID,
			Content: m.Content,
			Sender: SenderItem{
				ID:        m.Sender.ID,
				FirstName: m.Sender.FirstName,
				LastName:  m.Sender.LastName,
			},
			Timestamp: m.Timestamp.UTC().Truncate(time.Millisecond),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /rooms/{id}/unread
func (h *Handler) Unread(w http.ResponseWriter, r *http.Request) {
	id, _ := httpmw.IdentityFromCtx(r.Context())
	roomID := chi.URLParam(r, "id")

	n, err := h.chat.UnreadCount(r.Context(), roomID, id.ID)
	if err != nil {
		writeError(w, r, "Unread", err)
		return
	}
	writeJSON(w, http.StatusOK, UnreadResponse{RoomID: roomID, Unread: n})
}

// POST /rooms/{id}/read
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, _ := httpmw.IdentityFromCtx(r.Context())
	roomID := chi.URLParam(r, "id")

	at, err := h.chat.MarkRead(r.Context(), roomID, id.ID)
	if err != nil {
		writeError(w, r, "MarkRead", err)
		return
	}
	writeJSON(w, http.StatusOK, ReadResponse{RoomID: roomID, LastReadAt: at})
}

// GET /rooms/{id}/read-status
func (h *Handler) ReadStatuses(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")
	statuses, err := h.chat.ReadStatuses(r.Context(), roomID)
	if err != nil {
		writeError(w, r, "ReadStatuses", err)
		return
	}

	resp := ReadStatusResponse{RoomID: roomID, Items: make([]ReadStatusItem, 0, len(statuses))}
	for _, st := range statuses {
		resp.Items = append(resp.Items, ReadStatusItem{
			UserID:     st.UserID,
			LastReadAt: st.LastReadAt.UTC().Truncate(time.Millisecond),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /rooms/{id}/participants
func (h *Handler) Participants(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")
	members := h.presence.Participants(roomID)

	resp := ParticipantsResponse{RoomID: roomID, Items: make([]ParticipantItem, 0, len(members))}
	for _, m := range members {
		resp.Items = append(resp.Items, ParticipantItem{
			UserID:    m.Identity.ID,
			FirstName: m.Identity.FirstName,
			LastName:  m.Identity.LastName,
			JoinedAt:  m.JoinedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

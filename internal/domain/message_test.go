package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessage(t *testing.T) {
	alice := Identity{ID: "u1", FirstName: "alice"}
	now := time.Date(2026, 1, 2, 3, 4, 5, 123456789, time.FixedZone("X", 3600))

	tests := []struct {
		name    string
		roomID  string
		sender  Identity
		content string
		wantErr error
	}{
		{name: "ok", roomID: "team-1", sender: alice, content: "  hi  "},
		{name: "empty room", roomID: "", sender: alice, content: "hi", wantErr: ErrEmptyRoomID},
		{name: "no sender", roomID: "team-1", content: "hi", wantErr: ErrUnauthenticated},
		{name: "blank content", roomID: "team-1", sender: alice, content: " \n\t", wantErr: ErrEmptyContent},
		{name: "too long", roomID: "team-1", sender: alice, content: strings.Repeat("я", 11), wantErr: ErrContentTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NewMessage(tt.roomID, tt.sender, tt.content, 10, now)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, msg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "hi", msg.Content)
			assert.NotEmpty(t, msg.ID)
			assert.Equal(t, time.UTC, msg.Timestamp.Location())
			assert.Equal(t, 123*int(time.Millisecond), msg.Timestamp.Nanosecond())
		})
	}
}

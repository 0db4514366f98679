package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	in := Cursor{CreatedAt: time.Date(2026, 5, 1, 10, 0, 0, 123000000, time.UTC), ID: "m-1"}
	s, err := EncodeCursor(in)
	require.NoError(t, err)

	out, err := DecodeCursor(s)
	require.NoError(t, err)
	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
	assert.Equal(t, in.ID, out.ID)
}

func TestDecodeCursor_Invalid(t *testing.T) {
	c, err := DecodeCursor("")
	assert.NoError(t, err)
	assert.Nil(t, c)

	for _, s := range []string{"%%%", "bm90LWpzb24", "e30"} {
		_, err := DecodeCursor(s)
		assert.ErrorIs(t, err, ErrInvalidCursor, s)
	}
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 50, clampLimit(0, 50, 100))
	assert.Equal(t, 50, clampLimit(-3, 50, 100))
	assert.Equal(t, 7, clampLimit(7, 50, 100))
	assert.Equal(t, 100, clampLimit(1000, 50, 100))
}

func TestMapPgError(t *testing.T) {
	other := errors.New("boom")

	assert.NoError(t, mapPgError(nil))
	assert.ErrorIs(t, mapPgError(pgx.ErrNoRows), domain.ErrRoomNotFound)
	assert.ErrorIs(t, mapPgError(&pgconn.PgError{Code: pgForeignKeyViolation}), domain.ErrRoomNotFound)
	assert.ErrorIs(t, mapPgError(&pgconn.PgError{Code: pgCheckViolation}), domain.ErrEmptyContent)
	assert.ErrorIs(t, mapPgError(other), other)
}

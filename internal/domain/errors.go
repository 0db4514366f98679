package domain

import "errors"

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrNotMember       = errors.New("user is not a member of the room")
	ErrEmptyRoomID     = errors.New("empty room id")
	ErrEmptyContent    = errors.New("empty message")
	ErrContentTooLong  = errors.New("message too long")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrInvalidTeam     = errors.New("invalid team id")
)

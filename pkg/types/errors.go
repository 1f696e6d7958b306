package types

import "errors"

var (
	ErrInvalidRoomName = errors.New("room name must be 1-20 characters after normalization")
	ErrRoomExists      = errors.New("room already exists")
	ErrRoomNotFound    = errors.New("room does not exist")
)

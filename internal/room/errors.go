package room

import "errors"

var (
	ErrRoomClosed = errors.New("room is closed")
)

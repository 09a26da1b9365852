package websocket

import "errors"

var (
	ErrConnectionClosed = errors.New("connection is closed")
	ErrInvalidJSON      = errors.New("message cannot be encoded as JSON")
	ErrWriteTimeout     = errors.New("write timeout")
	ErrJoinRequired     = errors.New("first frame must be a join request")
)

package store

import "errors"

var (
	ErrStoreClosed  = errors.New("board store is closed")
	ErrWriteTimeout = errors.New("board store write timeout")
)

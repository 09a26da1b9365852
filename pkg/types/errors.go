package types

import "errors"

var (
	ErrInvalidOp           = errors.New("invalid action op")
	ErrMissingNodeIdentity = errors.New("action data missing node id or type")
)

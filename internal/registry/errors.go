package registry

import "errors"

var (
	ErrAccessDenied  = errors.New("access denied")
	ErrBoardNotFound = errors.New("board not found")
)

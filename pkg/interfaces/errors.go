package interfaces

import "errors"

var (
	// ErrNotFound is returned by a BoardStore when no document exists
	// for the requested board id.
	ErrNotFound = errors.New("board document not found")
	// ErrBoardNotFound is returned by a Directory for an unknown board.
	ErrBoardNotFound = errors.New("board not found")
	// ErrInvalidCredential is returned by an IdentityProvider when the
	// credential cannot be verified.
	ErrInvalidCredential = errors.New("invalid credential")
)

package protocol

import "errors"

var (
	ErrMalformedBatch = errors.New("malformed action batch")
	ErrEmptyBatch     = errors.New("empty action batch")
	ErrMalformedFrame = errors.New("malformed envelope frame")
)

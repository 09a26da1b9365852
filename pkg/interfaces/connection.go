package interfaces

// Connection is the transport-facing surface a session writes to. The
// concrete implementation serializes writes behind a single goroutine.
type Connection interface {
	// WriteJSON queues one JSON message for delivery.
	WriteJSON(v any) error
	// CloseWithCode sends a close frame carrying a status code from
	// types (CloseNormal, CloseUnauthorized, CloseAccessRevoked, ...)
	// and then closes the connection.
	CloseWithCode(code int, reason string) error
	// Close tears the connection down without a close frame.
	Close() error
}

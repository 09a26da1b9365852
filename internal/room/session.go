package room

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"boardsync/pkg/interfaces"
	"boardsync/pkg/types"
)

// Session wraps one authenticated connection's membership in a room.
// Outbound envelopes are buffered and flushed on a fixed short tick so rapid
// successive pushes coalesce into a single frame. There is no compaction on
// this side: compaction only pays off at the producer, where redundant
// intent exists.
type Session struct {
	ID       string
	Identity types.Identity
	BoardID  string
	IsAdmin  bool
	IsOwner  bool

	conn      interfaces.Connection
	mu        sync.Mutex
	queue     []types.Envelope
	done      chan struct{}
	closeOnce sync.Once
	log       *zap.Logger
}

// NewSession creates a session and starts its flush loop.
func NewSession(conn interfaces.Connection, ident types.Identity, boardID string, flushInterval time.Duration, log *zap.Logger) *Session {
	s := &Session{
		ID:       uuid.New().String(),
		Identity: ident,
		BoardID:  boardID,
		conn:     conn,
		done:     make(chan struct{}),
		log:      log,
	}
	go s.flushLoop(flushInterval)
	return s
}

// Push appends envelopes to the outbound queue. They leave on the next tick.
func (s *Session) Push(envs ...types.Envelope) {
	s.mu.Lock()
	s.queue = append(s.queue, envs...)
	s.mu.Unlock()
}

func (s *Session) flushLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.flush()
		case <-s.done:
			return
		}
	}
}

func (s *Session) flush() {
	s.mu.Lock()
	if len(s.queue) == 0 {
		s.mu.Unlock()
		return
	}
	batch := s.queue
	s.queue = nil
	s.mu.Unlock()

	if err := s.conn.WriteJSON(batch); err != nil {
		s.log.Debug("session flush failed",
			zap.String("session", s.ID), zap.Error(err))
	}
}

// Close drains the outbound queue, sends a close frame with the given
// status, and stops the flush loop. Safe to call more than once.
func (s *Session) Close(code int, reason string) {
	s.closeOnce.Do(func() {
		close(s.done)
		s.flush()
		if err := s.conn.CloseWithCode(code, reason); err != nil {
			s.log.Debug("session close failed",
				zap.String("session", s.ID), zap.Error(err))
		}
	})
}

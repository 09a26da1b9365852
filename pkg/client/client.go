// Package client is the consumer-side mirror of the room: it holds a local
// copy of the board state, applies the same pure diff engine optimistically,
// keeps an undo/redo history for locally-initiated mutations, and runs the
// outbound compaction loop.
package client

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"boardsync/pkg/protocol"
	"boardsync/pkg/state"
	"boardsync/pkg/types"
)

// Conn is the transport the facade writes batches to. The real
// implementation is a websocket (see Dial); tests inject a fake.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// HistoryEntry pairs a locally-applied batch with the batch that undoes it.
type HistoryEntry struct {
	Forward []types.StateAction
	Inverse []types.StateAction
}

// Options tune the facade. Zero values fall back to defaults.
type Options struct {
	FlushInterval time.Duration
	Logger        *zap.Logger
}

const defaultFlushInterval = 50 * time.Millisecond

// Client mirrors one board. All exported methods are safe for concurrent
// use; state snapshots returned by State never alias internal storage.
type Client struct {
	conn Conn
	log  *zap.Logger

	mu      sync.Mutex
	state   types.BoardState
	undo    []HistoryEntry
	redo    []HistoryEntry
	pending []types.StateAction

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a facade over an established connection and starts the
// outbound flush loop.
func New(conn Conn, opts Options) *Client {
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = defaultFlushInterval
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	c := &Client{
		conn: conn,
		log:  opts.Logger,
		done: make(chan struct{}),
	}
	go c.flushLoop(opts.FlushInterval)
	return c
}

// State returns a deep copy of the local board state.
func (c *Client) State() types.BoardState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return state.Clone(c.state)
}

// Mutate applies a locally-initiated batch optimistically, records its
// inverse on the undo stack, clears the redo stack, and queues the batch
// for the next outbound flush.
func (c *Client) Mutate(actions ...types.StateAction) {
	if len(actions) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	inverse := state.InvertAll(c.state, actions)
	c.state = state.ApplyAll(c.state, actions)
	c.undo = append(c.undo, HistoryEntry{Forward: actions, Inverse: inverse})
	c.redo = nil
	c.pending = append(c.pending, actions...)
}

// Undo reverts the most recent local mutation. The inverse batch is applied
// locally without re-recording and forwarded to the room as a normal
// mutation batch. Returns false when there is nothing to undo.
func (c *Client) Undo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.undo)
	if n == 0 {
		return false
	}
	entry := c.undo[n-1]
	c.undo = c.undo[:n-1]
	c.state = state.ApplyAll(c.state, entry.Inverse)
	c.pending = append(c.pending, entry.Inverse...)
	c.redo = append(c.redo, entry)
	return true
}

// Redo re-applies the most recently undone mutation. Symmetric to Undo.
func (c *Client) Redo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.redo)
	if n == 0 {
		return false
	}
	entry := c.redo[n-1]
	c.redo = c.redo[:n-1]
	c.state = state.ApplyAll(c.state, entry.Forward)
	c.pending = append(c.pending, entry.Forward...)
	c.undo = append(c.undo, entry)
	return true
}

// CanUndo reports whether the undo stack is non-empty.
func (c *Client) CanUndo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.undo) > 0
}

// CanRedo reports whether the redo stack is non-empty.
func (c *Client) CanRedo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.redo) > 0
}

// ApplyRemote folds a server frame into local state. Remote diffs are never
// pushed onto the undo stack: only locally-initiated mutations are
// undoable.
func (c *Client) ApplyRemote(frame []byte) error {
	envs, err := protocol.DecodeEnvelopes(frame)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, env := range envs {
		switch env.Type {
		case types.EnvelopeSetState:
			var st types.BoardState
			if err := unmarshalData(env.Data, &st); err != nil {
				return err
			}
			c.state = st
		case types.EnvelopeDiff:
			var actions []types.StateAction
			if err := unmarshalData(env.Data, &actions); err != nil {
				return err
			}
			c.state = state.ApplyAll(c.state, actions)
		case types.EnvelopeBoardRenamed:
			var name string
			if err := unmarshalData(env.Data, &name); err != nil {
				return err
			}
			c.state.Name = name
		default:
			c.log.Debug("ignoring unknown envelope", zap.String("type", env.Type))
		}
	}
	return nil
}

// flushLoop compacts and sends the pending queue on a fixed tick so bursts
// of edits within one tick window are batched naturally.
func (c *Client) flushLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.Flush()
		case <-c.done:
			return
		}
	}
}

// Flush compacts and transmits the pending outbound queue immediately.
// Exposed so callers can force a send before shutdown. The write happens
// under the mutex: the underlying websocket does not allow two writers.
func (c *Client) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()

	batch := protocol.Compact(c.pending)
	c.pending = nil
	if len(batch) == 0 {
		return
	}
	if err := c.conn.WriteJSON(batch); err != nil {
		c.log.Debug("outbound flush failed", zap.Error(err))
	}
}

// Close stops the flush loop after a final flush and closes the transport.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.Flush()
		err = c.conn.Close()
	})
	return err
}

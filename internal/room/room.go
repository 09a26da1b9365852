// Package room owns one board's live authoritative state and its connected
// sessions. All mutation flows through a single run goroutine, so two
// inbound batches are never applied interleaved and no lock guards the
// state itself.
package room

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"boardsync/internal/guard"
	"boardsync/internal/metrics"
	"boardsync/pkg/interfaces"
	"boardsync/pkg/state"
	"boardsync/pkg/types"
)

// DropEvent reports an action the permission guard rejected. The sender
// gets no signal on the wire; this hook is the observable trace.
type DropEvent struct {
	BoardID string
	UserID  string
	Action  types.StateAction
}

// SessionInfo is the identity snapshot the registry uses for revalidation.
type SessionInfo struct {
	SessionID string
	UserID    string
}

// Options tune a room. Zero values fall back to the defaults below.
type Options struct {
	PersistDelay  time.Duration
	FlushInterval time.Duration
	Logger        *zap.Logger
	OnEmpty       func(boardID string)
	OnDrop        func(DropEvent)
}

const (
	DefaultPersistDelay  = 500 * time.Millisecond
	DefaultFlushInterval = 50 * time.Millisecond
)

type joinReq struct {
	sess  *Session
	reply chan error
}

type inboundBatch struct {
	sess    *Session
	actions []types.StateAction
}

type kickReq struct {
	sessionID string
	code      int
	reason    string
}

// Room is one board's in-memory source of truth between hydration and
// eviction. The board store remains the durable copy.
type Room struct {
	boardID string
	store   interfaces.BoardStore
	opts    Options

	// Owned by the run goroutine.
	state          types.BoardState
	sessions       map[string]*Session
	dirty          bool
	persistPending bool

	joinCh    chan joinReq
	leaveCh   chan *Session
	batchCh   chan inboundBatch
	renameCh  chan string
	kickCh    chan kickReq
	infoCh    chan chan []SessionInfo
	stateCh   chan chan types.BoardState
	persistCh chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
}

// New creates a room around an already-hydrated state and starts its run
// loop. Hydration is the registry's job: the room is Live from birth.
func New(boardID string, st types.BoardState, store interfaces.BoardStore, opts Options) *Room {
	if opts.PersistDelay <= 0 {
		opts.PersistDelay = DefaultPersistDelay
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = DefaultFlushInterval
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	r := &Room{
		boardID:   boardID,
		store:     store,
		opts:      opts,
		state:     st,
		sessions:  make(map[string]*Session),
		joinCh:    make(chan joinReq),
		leaveCh:   make(chan *Session, 16),
		batchCh:   make(chan inboundBatch, 64),
		renameCh:  make(chan string, 4),
		kickCh:    make(chan kickReq, 16),
		infoCh:    make(chan chan []SessionInfo),
		stateCh:   make(chan chan types.BoardState),
		persistCh: make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	metrics.ActiveRooms.Inc()
	go r.run()
	return r
}

func (r *Room) BoardID() string { return r.boardID }

// NewSession creates a session bound to this room's flush interval.
func (r *Room) NewSession(conn interfaces.Connection, ident types.Identity) *Session {
	return NewSession(conn, ident, r.boardID, r.opts.FlushInterval, r.opts.Logger)
}

// Join adds a session: merges its presence node, broadcasts the presence
// diff to existing sessions, and sends the joiner one full snapshot.
func (r *Room) Join(ctx context.Context, sess *Session) error {
	req := joinReq{sess: sess, reply: make(chan error, 1)}
	select {
	case r.joinCh <- req:
	case <-r.done:
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Leave removes a session after its connection is gone.
func (r *Room) Leave(sess *Session) {
	select {
	case r.leaveCh <- sess:
	case <-r.done:
	}
}

// Submit hands one inbound action batch to the room.
func (r *Room) Submit(sess *Session, actions []types.StateAction) error {
	select {
	case r.batchCh <- inboundBatch{sess: sess, actions: actions}:
		return nil
	case <-r.done:
		return ErrRoomClosed
	}
}

// Rename updates the board name and echoes the event to every session.
func (r *Room) Rename(name string) {
	select {
	case r.renameCh <- name:
	case <-r.done:
	}
}

// Kick force-closes one session with a distinguishable close status.
func (r *Room) Kick(sessionID string, code int, reason string) {
	select {
	case r.kickCh <- kickReq{sessionID: sessionID, code: code, reason: reason}:
	case <-r.done:
	}
}

// Sessions snapshots the connected sessions for access revalidation.
func (r *Room) Sessions() []SessionInfo {
	reply := make(chan []SessionInfo, 1)
	select {
	case r.infoCh <- reply:
		return <-reply
	case <-r.done:
		return nil
	}
}

// State returns a deep copy of the current authoritative state.
func (r *Room) State() types.BoardState {
	reply := make(chan types.BoardState, 1)
	select {
	case r.stateCh <- reply:
		return <-reply
	case <-r.done:
		return types.BoardState{}
	}
}

// Stop ends the run loop. A scheduled persist that already fired still
// completes against its detached snapshot.
func (r *Room) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
		metrics.ActiveRooms.Dec()
	})
}

func (r *Room) run() {
	for {
		select {
		case req := <-r.joinCh:
			req.reply <- r.handleJoin(req.sess)
		case sess := <-r.leaveCh:
			r.handleLeave(sess, types.CloseNormal, "")
		case b := <-r.batchCh:
			r.handleBatch(b)
		case name := <-r.renameCh:
			r.handleRename(name)
		case k := <-r.kickCh:
			if sess, ok := r.sessions[k.sessionID]; ok {
				r.handleLeave(sess, k.code, k.reason)
			}
		case reply := <-r.stateCh:
			reply <- state.Clone(r.state)
		case reply := <-r.infoCh:
			infos := make([]SessionInfo, 0, len(r.sessions))
			for _, s := range r.sessions {
				infos = append(infos, SessionInfo{SessionID: s.ID, UserID: s.Identity.Sub})
			}
			reply <- infos
		case <-r.persistCh:
			r.persistPending = false
			r.persistNow()
		case <-r.done:
			return
		}
	}
}

func (r *Room) handleJoin(sess *Session) error {
	presence := r.presenceAction(sess.Identity, true)
	r.state = state.Apply(r.state, presence)
	r.broadcast(nil, presence)

	snapshot, err := types.NewEnvelope(types.EnvelopeSetState, r.state)
	if err != nil {
		return err
	}
	sess.Push(snapshot)

	r.sessions[sess.ID] = sess
	metrics.ActiveSessions.Inc()
	r.markDirty()
	r.opts.Logger.Info("session joined",
		zap.String("board", r.boardID),
		zap.String("user", sess.Identity.Sub),
		zap.String("session", sess.ID))
	return nil
}

func (r *Room) handleLeave(sess *Session, code int, reason string) {
	if _, ok := r.sessions[sess.ID]; !ok {
		return
	}
	delete(r.sessions, sess.ID)
	metrics.ActiveSessions.Dec()
	sess.Close(code, reason)

	presence := r.presenceAction(sess.Identity, false)
	r.state = state.Apply(r.state, presence)
	r.broadcast(nil, presence)
	r.markDirty()
	r.opts.Logger.Info("session left",
		zap.String("board", r.boardID),
		zap.String("user", sess.Identity.Sub),
		zap.String("session", sess.ID))

	if len(r.sessions) == 0 {
		// Evicted: flush the latest state now, the store stays durable.
		if r.dirty {
			r.persistNow()
		}
		if r.opts.OnEmpty != nil {
			r.opts.OnEmpty(r.boardID)
		}
	}
}

func (r *Room) handleBatch(b inboundBatch) {
	allowed := guard.Filter(r.state, b.actions, b.sess.Identity.Sub, func(a types.StateAction) {
		metrics.ActionsDropped.Inc()
		if r.opts.OnDrop != nil {
			r.opts.OnDrop(DropEvent{BoardID: r.boardID, UserID: b.sess.Identity.Sub, Action: a})
		}
		r.opts.Logger.Debug("action denied",
			zap.String("board", r.boardID),
			zap.String("user", b.sess.Identity.Sub),
			zap.String("op", string(a.Op)),
			zap.String("node", a.Data.ID))
	})
	if len(allowed) == 0 {
		return
	}
	r.state = state.ApplyAll(r.state, allowed)
	metrics.BatchesApplied.Inc()
	// The sender already applied this batch optimistically; echoing it back
	// would double-apply.
	r.broadcast(b.sess, allowed...)
	r.markDirty()
}

func (r *Room) handleRename(name string) {
	r.state.Name = name
	env, err := types.NewEnvelope(types.EnvelopeBoardRenamed, name)
	if err != nil {
		return
	}
	for _, s := range r.sessions {
		s.Push(env)
	}
	r.markDirty()
}

// broadcast sends a diff envelope to every session except the originator.
func (r *Room) broadcast(from *Session, actions ...types.StateAction) {
	if len(r.sessions) == 0 {
		return
	}
	env, err := types.NewEnvelope(types.EnvelopeDiff, actions)
	if err != nil {
		r.opts.Logger.Error("encode diff", zap.Error(err))
		return
	}
	for _, s := range r.sessions {
		if from != nil && s.ID == from.ID {
			continue
		}
		s.Push(env)
	}
}

func (r *Room) presenceAction(ident types.Identity, connected bool) types.StateAction {
	if state.Find(&r.state, ident.Sub, types.NodeTypeUser) != nil {
		return types.StateAction{
			Op: types.OpPatch,
			Data: types.Node{
				ID:      ident.Sub,
				Type:    types.NodeTypeUser,
				Content: map[string]any{"name": ident.Name, "connected": connected},
			},
		}
	}
	return types.StateAction{
		Op: types.OpAdd,
		Data: types.Node{
			ID:   ident.Sub,
			Type: types.NodeTypeUser,
			Content: map[string]any{
				"name":      ident.Name,
				"connected": connected,
				"visible":   true,
			},
		},
	}
}

// markDirty schedules one debounced persist. Further mutations inside the
// window ride the same write.
func (r *Room) markDirty() {
	r.dirty = true
	if r.persistPending {
		return
	}
	r.persistPending = true
	time.AfterFunc(r.opts.PersistDelay, func() {
		select {
		case r.persistCh <- struct{}{}:
		case <-r.done:
			// Eviction already flushed the final state.
		}
	})
}

// persistNow writes the current state, not a captured-at-flag-time snapshot:
// the clone happens when the debounce fires, so the window collapses bursts
// into one write of the latest state. The write itself is fire-and-forget;
// broadcasts never wait on it, and a failure is logged without retry.
func (r *Room) persistNow() {
	r.dirty = false
	snapshot := state.Clone(r.state)
	boardID := r.boardID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := r.store.Set(ctx, boardID, &snapshot); err != nil {
			metrics.PersistFailures.Inc()
			r.opts.Logger.Error("persist board",
				zap.String("board", boardID), zap.Error(err))
		}
	}()
}

// Package registry maps board ids to live rooms. It creates rooms lazily on
// first join, hydrates them from the board store, evicts them when their
// last session leaves, and force-closes sessions whose access is revoked
// externally.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"boardsync/internal/metrics"
	"boardsync/internal/room"
	"boardsync/pkg/interfaces"
	"boardsync/pkg/state"
	"boardsync/pkg/types"
)

// Options tune rooms created by the registry.
type Options struct {
	PersistDelay  time.Duration
	FlushInterval time.Duration
	OnDrop        func(room.DropEvent)
}

// Registry is constructed once per process and passed by reference; it is
// the single owner of room lifecycles, never ambient module state.
type Registry struct {
	store     interfaces.BoardStore
	directory interfaces.Directory
	opts      Options
	log       *zap.Logger

	mu    sync.Mutex
	rooms map[string]*roomEntry
}

// roomEntry hydrates at most once even when several sessions join a cold
// board at the same time.
type roomEntry struct {
	once sync.Once
	room *room.Room
	err  error
}

func New(store interfaces.BoardStore, directory interfaces.Directory, opts Options, log *zap.Logger) *Registry {
	return &Registry{
		store:     store,
		directory: directory,
		opts:      opts,
		log:       log,
		rooms:     make(map[string]*roomEntry),
	}
}

// Join validates access, hydrates the room if this is the first joiner, and
// binds a new session to it. The returned room is what the read pump
// submits batches to.
func (g *Registry) Join(ctx context.Context, conn interfaces.Connection, boardID string, ident types.Identity) (*room.Session, *room.Room, error) {
	ok, err := g.directory.HasAccess(ctx, boardID, ident.Sub)
	if err != nil {
		return nil, nil, fmt.Errorf("access check: %w", err)
	}
	if !ok {
		return nil, nil, ErrAccessDenied
	}

	r, err := g.roomFor(ctx, boardID)
	if err != nil {
		return nil, nil, err
	}

	sess := r.NewSession(conn, ident)
	g.applyRole(ctx, boardID, sess)

	if err := r.Join(ctx, sess); err != nil {
		sess.Close(types.CloseNormal, "")
		return nil, nil, err
	}
	return sess, r, nil
}

// Leave detaches a session after its connection closed.
func (g *Registry) Leave(r *room.Room, sess *room.Session) {
	r.Leave(sess)
}

func (g *Registry) roomFor(ctx context.Context, boardID string) (*room.Room, error) {
	g.mu.Lock()
	entry, ok := g.rooms[boardID]
	if !ok {
		entry = &roomEntry{}
		g.rooms[boardID] = entry
	}
	g.mu.Unlock()

	entry.once.Do(func() {
		entry.room, entry.err = g.hydrate(ctx, boardID)
		if entry.err != nil {
			g.mu.Lock()
			delete(g.rooms, boardID)
			g.mu.Unlock()
		}
	})
	if entry.err != nil {
		return nil, entry.err
	}
	return entry.room, nil
}

// hydrate loads the durable document, falling back to the directory for an
// empty board that exists but was never persisted. A board unknown to both
// terminates the join without creating a room.
func (g *Registry) hydrate(ctx context.Context, boardID string) (*room.Room, error) {
	var st types.BoardState
	doc, err := g.store.Get(ctx, boardID)
	switch {
	case err == nil:
		st = state.Clone(*doc)
	case errors.Is(err, interfaces.ErrNotFound):
		board, dirErr := g.directory.GetBoard(ctx, boardID)
		if dirErr != nil {
			return nil, ErrBoardNotFound
		}
		st = types.BoardState{Name: board.Name, Nodes: []types.Node{}}
	default:
		return nil, fmt.Errorf("hydrate board %s: %w", boardID, err)
	}

	g.log.Info("room hydrated", zap.String("board", boardID), zap.Int("nodes", len(st.Nodes)))
	return room.New(boardID, st, g.store, room.Options{
		PersistDelay:  g.opts.PersistDelay,
		FlushInterval: g.opts.FlushInterval,
		Logger:        g.log,
		OnDrop:        g.opts.OnDrop,
		OnEmpty:       g.evict,
	}), nil
}

func (g *Registry) evict(boardID string) {
	g.mu.Lock()
	entry, ok := g.rooms[boardID]
	if ok {
		delete(g.rooms, boardID)
	}
	g.mu.Unlock()
	if ok && entry.room != nil {
		entry.room.Stop()
		g.log.Info("room evicted", zap.String("board", boardID))
	}
}

// RevalidateBoard re-runs the directory access check for every live session
// on the board and force-closes the ones that no longer qualify. Called when
// an external event (role change, board made private, membership change)
// invalidates previously granted access.
func (g *Registry) RevalidateBoard(ctx context.Context, boardID string) {
	r := g.lookup(boardID)
	if r == nil {
		return
	}
	g.revalidateRoom(ctx, r, func(string) bool { return true })
}

// RevalidateUser re-checks one user's access on every board they are
// currently connected to, for user-scoped events like leaving a team.
func (g *Registry) RevalidateUser(ctx context.Context, userID string) {
	g.mu.Lock()
	rooms := make([]*room.Room, 0, len(g.rooms))
	for _, entry := range g.rooms {
		if entry.room != nil {
			rooms = append(rooms, entry.room)
		}
	}
	g.mu.Unlock()

	for _, r := range rooms {
		g.revalidateRoom(ctx, r, func(uid string) bool { return uid == userID })
	}
}

func (g *Registry) revalidateRoom(ctx context.Context, r *room.Room, match func(userID string) bool) {
	for _, info := range r.Sessions() {
		if !match(info.UserID) {
			continue
		}
		ok, err := g.directory.HasAccess(ctx, r.BoardID(), info.UserID)
		if err != nil {
			g.log.Error("revalidation check failed",
				zap.String("board", r.BoardID()),
				zap.String("user", info.UserID),
				zap.Error(err))
			continue
		}
		if !ok {
			metrics.SessionsRevoked.Inc()
			g.log.Info("session access revoked",
				zap.String("board", r.BoardID()),
				zap.String("user", info.UserID))
			r.Kick(info.SessionID, types.CloseAccessRevoked, "access revoked")
		}
	}
}

func (g *Registry) lookup(boardID string) *room.Room {
	g.mu.Lock()
	defer g.mu.Unlock()
	if entry, ok := g.rooms[boardID]; ok {
		return entry.room
	}
	return nil
}

// Stats reports live room and session counts.
func (g *Registry) Stats() map[string]int {
	g.mu.Lock()
	rooms := make([]*room.Room, 0, len(g.rooms))
	for _, entry := range g.rooms {
		if entry.room != nil {
			rooms = append(rooms, entry.room)
		}
	}
	g.mu.Unlock()

	sessions := 0
	for _, r := range rooms {
		sessions += len(r.Sessions())
	}
	return map[string]int{
		"rooms":    len(rooms),
		"sessions": sessions,
	}
}

// Shutdown stops every live room. Scheduled persists already in flight
// still complete against their detached snapshots.
func (g *Registry) Shutdown() {
	g.mu.Lock()
	entries := make([]*roomEntry, 0, len(g.rooms))
	for _, e := range g.rooms {
		entries = append(entries, e)
	}
	g.rooms = make(map[string]*roomEntry)
	g.mu.Unlock()

	for _, e := range entries {
		if e.room != nil {
			e.room.Stop()
		}
	}
}

// applyRole folds the directory role into the session's permission flags.
func (g *Registry) applyRole(ctx context.Context, boardID string, sess *room.Session) {
	board, err := g.directory.GetBoard(ctx, boardID)
	if err == nil && board.OwnerID == sess.Identity.Sub {
		sess.IsOwner = true
	}
	users, err := g.directory.GetBoardUsers(ctx, boardID)
	if err != nil {
		return
	}
	for _, u := range users {
		if u.ID != sess.Identity.Sub {
			continue
		}
		switch u.Role {
		case types.RoleAdmin:
			sess.IsAdmin = true
		case types.RoleOwner:
			sess.IsOwner = true
		}
	}
}

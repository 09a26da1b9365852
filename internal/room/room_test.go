package room

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boardsync/internal/store"
	"boardsync/pkg/types"
)

type fakeConn struct {
	mu        sync.Mutex
	frames    [][]types.Envelope
	closeCode int
	closed    bool
}

func (f *fakeConn) WriteJSON(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if envs, ok := v.([]types.Envelope); ok {
		frame := make([]types.Envelope, len(envs))
		copy(frame, envs)
		f.frames = append(f.frames, frame)
	}
	return nil
}

func (f *fakeConn) CloseWithCode(code int, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCode = code
	f.closed = true
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) envelopes() []types.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.Envelope
	for _, frame := range f.frames {
		out = append(out, frame...)
	}
	return out
}

func (f *fakeConn) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = nil
}

func (f *fakeConn) firstOfType(typ string) (types.Envelope, bool) {
	for _, env := range f.envelopes() {
		if env.Type == typ {
			return env, true
		}
	}
	return types.Envelope{}, false
}

// countingStore wraps a store so tests can observe persist coalescing.
type countingStore struct {
	*store.MemoryStore
	mu   sync.Mutex
	sets int
}

func (c *countingStore) Set(ctx context.Context, boardID string, doc *types.BoardDocument) error {
	c.mu.Lock()
	c.sets++
	c.mu.Unlock()
	return c.MemoryStore.Set(ctx, boardID, doc)
}

func (c *countingStore) setCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sets
}

const (
	testFlush   = 5 * time.Millisecond
	testPersist = 25 * time.Millisecond
	waitFor     = 2 * time.Second
	pollEvery   = 2 * time.Millisecond
)

func newTestRoom(t *testing.T, st types.BoardState, opts Options) (*Room, *countingStore) {
	t.Helper()
	cs := &countingStore{MemoryStore: store.NewMemoryStore()}
	opts.FlushInterval = testFlush
	opts.PersistDelay = testPersist
	r := New("board-1", st, cs, opts)
	t.Cleanup(r.Stop)
	return r, cs
}

func join(t *testing.T, r *Room, sub, name string) (*Session, *fakeConn) {
	t.Helper()
	conn := &fakeConn{}
	sess := r.NewSession(conn, types.Identity{Sub: sub, Name: name})
	require.NoError(t, r.Join(context.Background(), sess))
	return sess, conn
}

func diffActions(t *testing.T, env types.Envelope) []types.StateAction {
	t.Helper()
	var actions []types.StateAction
	require.NoError(t, json.Unmarshal(env.Data, &actions))
	return actions
}

func seededNote(owner string) types.BoardState {
	return types.BoardState{Name: "b", Nodes: []types.Node{{
		ID:      "n1",
		Type:    types.NodeTypeNote,
		Content: map[string]any{"text": "original", "ownerId": owner},
	}}}
}

func TestJoinReceivesSnapshotWithOwnPresence(t *testing.T) {
	r, _ := newTestRoom(t, types.BoardState{Name: "b"}, Options{})
	_, conn := join(t, r, "alice", "Alice")

	require.Eventually(t, func() bool {
		_, ok := conn.firstOfType(types.EnvelopeSetState)
		return ok
	}, waitFor, pollEvery)

	env, _ := conn.firstOfType(types.EnvelopeSetState)
	var st types.BoardState
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Equal(t, "b", st.Name)
	require.Len(t, st.Nodes, 1)
	assert.Equal(t, "alice", st.Nodes[0].ID)
	assert.Equal(t, types.NodeTypeUser, st.Nodes[0].Type)
	assert.Equal(t, true, st.Nodes[0].Content["connected"])
}

func TestJoinBroadcastsPresenceToOthers(t *testing.T) {
	r, _ := newTestRoom(t, types.BoardState{}, Options{})
	_, aliceConn := join(t, r, "alice", "Alice")
	aliceConn.reset()

	join(t, r, "bob", "Bob")

	require.Eventually(t, func() bool {
		env, ok := aliceConn.firstOfType(types.EnvelopeDiff)
		if !ok {
			return false
		}
		actions := diffActions(t, env)
		return len(actions) == 1 && actions[0].Data.ID == "bob"
	}, waitFor, pollEvery)

	env, _ := aliceConn.firstOfType(types.EnvelopeDiff)
	actions := diffActions(t, env)
	assert.Equal(t, types.OpAdd, actions[0].Op)
	assert.Equal(t, "Bob", actions[0].Data.Content["name"])
}

func TestBroadcastExcludesSender(t *testing.T) {
	r, _ := newTestRoom(t, types.BoardState{}, Options{})
	aliceSess, aliceConn := join(t, r, "alice", "Alice")
	_, bobConn := join(t, r, "bob", "Bob")
	aliceConn.reset()
	bobConn.reset()

	batch := []types.StateAction{{Op: types.OpAdd, Data: types.Node{
		ID: "n1", Type: types.NodeTypeNote,
		Content: map[string]any{"text": "hi", "ownerId": "alice"},
	}}}
	require.NoError(t, r.Submit(aliceSess, batch))

	require.Eventually(t, func() bool {
		env, ok := bobConn.firstOfType(types.EnvelopeDiff)
		return ok && diffActions(t, env)[0].Data.ID == "n1"
	}, waitFor, pollEvery)

	for _, env := range aliceConn.envelopes() {
		if env.Type != types.EnvelopeDiff {
			continue
		}
		for _, a := range diffActions(t, env) {
			assert.NotEqual(t, "n1", a.Data.ID, "sender must not receive its own batch back")
		}
	}
}

func TestDeniedActionDroppedSilently(t *testing.T) {
	var mu sync.Mutex
	var drops []DropEvent
	r, _ := newTestRoom(t, seededNote("alice"), Options{OnDrop: func(e DropEvent) {
		mu.Lock()
		drops = append(drops, e)
		mu.Unlock()
	}})
	bobSess, _ := join(t, r, "bob", "Bob")

	require.NoError(t, r.Submit(bobSess, []types.StateAction{{
		Op: types.OpPatch,
		Data: types.Node{
			ID: "n1", Type: types.NodeTypeNote,
			Content: map[string]any{"text": "vandalized"},
		},
	}}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(drops) == 1
	}, waitFor, pollEvery)

	mu.Lock()
	assert.Equal(t, "bob", drops[0].UserID)
	assert.Equal(t, "board-1", drops[0].BoardID)
	mu.Unlock()

	st := r.State()
	require.NotEmpty(t, st.Nodes)
	assert.Equal(t, "original", st.Nodes[0].Content["text"])
}

func TestPersistDebounceCoalescesBurst(t *testing.T) {
	r, cs := newTestRoom(t, types.BoardState{Name: "b"}, Options{})
	sess, _ := join(t, r, "alice", "Alice")

	// The join itself dirties state (presence); wait for that write to land.
	require.Eventually(t, func() bool { return cs.setCount() == 1 }, waitFor, pollEvery)

	for i, text := range []string{"a", "ab", "abc"} {
		op := types.OpPatch
		if i == 0 {
			op = types.OpAdd
		}
		require.NoError(t, r.Submit(sess, []types.StateAction{{Op: op, Data: types.Node{
			ID: "n1", Type: types.NodeTypeNote,
			Content: map[string]any{"text": text, "ownerId": "alice"},
		}}}))
	}

	require.Eventually(t, func() bool { return cs.setCount() >= 2 }, waitFor, pollEvery)

	doc, err := cs.Get(context.Background(), "board-1")
	require.NoError(t, err)
	var node *types.Node
	for i := range doc.Nodes {
		if doc.Nodes[i].ID == "n1" {
			node = &doc.Nodes[i]
		}
	}
	require.NotNil(t, node)
	assert.Equal(t, "abc", node.Content["text"], "one write carries the latest state")
}

func TestLastLeaveFlushesAndEvicts(t *testing.T) {
	emptied := make(chan string, 1)
	r, cs := newTestRoom(t, types.BoardState{Name: "b"}, Options{OnEmpty: func(id string) {
		emptied <- id
	}})
	sess, conn := join(t, r, "alice", "Alice")

	r.Leave(sess)

	select {
	case id := <-emptied:
		assert.Equal(t, "board-1", id)
	case <-time.After(waitFor):
		t.Fatal("OnEmpty was not called")
	}

	require.Eventually(t, func() bool {
		doc, err := cs.Get(context.Background(), "board-1")
		if err != nil {
			return false
		}
		for _, n := range doc.Nodes {
			if n.ID == "alice" && n.Content["connected"] == false {
				return true
			}
		}
		return false
	}, waitFor, pollEvery, "eviction flushes the final state, presence marked disconnected")

	conn.mu.Lock()
	defer conn.mu.Unlock()
	assert.True(t, conn.closed)
	assert.Equal(t, types.CloseNormal, conn.closeCode)
}

func TestRenameBroadcastsToEveryone(t *testing.T) {
	r, _ := newTestRoom(t, types.BoardState{Name: "old"}, Options{})
	_, aliceConn := join(t, r, "alice", "Alice")
	_, bobConn := join(t, r, "bob", "Bob")

	r.Rename("new")

	for _, conn := range []*fakeConn{aliceConn, bobConn} {
		require.Eventually(t, func() bool {
			env, ok := conn.firstOfType(types.EnvelopeBoardRenamed)
			if !ok {
				return false
			}
			var name string
			return json.Unmarshal(env.Data, &name) == nil && name == "new"
		}, waitFor, pollEvery)
	}
	assert.Equal(t, "new", r.State().Name)
}

func TestKickClosesWithGivenCode(t *testing.T) {
	r, _ := newTestRoom(t, types.BoardState{}, Options{})
	sess, conn := join(t, r, "alice", "Alice")

	r.Kick(sess.ID, types.CloseAccessRevoked, "access revoked")

	require.Eventually(t, func() bool {
		conn.mu.Lock()
		defer conn.mu.Unlock()
		return conn.closed
	}, waitFor, pollEvery)

	conn.mu.Lock()
	defer conn.mu.Unlock()
	assert.Equal(t, types.CloseAccessRevoked, conn.closeCode)
}

func TestSubmitAfterStop(t *testing.T) {
	r, _ := newTestRoom(t, types.BoardState{}, Options{})
	sess, _ := join(t, r, "alice", "Alice")
	r.Stop()

	assert.ErrorIs(t, r.Submit(sess, []types.StateAction{{
		Op:   types.OpAdd,
		Data: types.Node{ID: "x", Type: types.NodeTypeNote},
	}}), ErrRoomClosed)
}

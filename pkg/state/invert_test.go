package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boardsync/pkg/types"
)

func TestInvertAdd(t *testing.T) {
	s := types.BoardState{}
	add := addAction(note("n1", "hi", "u1"))

	inv, ok := Invert(s, add)
	require.True(t, ok)
	assert.Equal(t, types.OpRemove, inv.Op)

	after := Apply(s, add)
	restored := Apply(after, inv)
	assert.Equal(t, s.Nodes, restored.Nodes)
}

func TestInvertRemoveRestoresPosition(t *testing.T) {
	s := types.BoardState{}
	s = Apply(s, addAction(note("a", "", "")))
	s = Apply(s, addAction(note("b", "", "")))
	s = Apply(s, addAction(note("c", "", "")))

	remove := types.StateAction{Op: types.OpRemove, Data: types.Node{ID: "b", Type: types.NodeTypeNote}}
	inv, ok := Invert(s, remove)
	require.True(t, ok)
	require.Equal(t, types.OpAdd, inv.Op)
	require.NotNil(t, inv.Position)
	assert.Equal(t, 1, *inv.Position)

	restored := Apply(Apply(s, remove), inv)
	assert.Equal(t, s, restored)
}

func TestInvertPatchRestoresPriorValues(t *testing.T) {
	s := Apply(types.BoardState{}, addAction(note("n1", "old", "u1")))
	patch := types.StateAction{
		Op:   types.OpPatch,
		Data: types.Node{ID: "n1", Type: types.NodeTypeNote, Content: map[string]any{"text": "new", "color": "red"}},
	}

	inv, ok := Invert(s, patch)
	require.True(t, ok)

	restored := Apply(Apply(s, patch), inv)
	n := Find(&restored, "n1", types.NodeTypeNote)
	require.NotNil(t, n)
	assert.Equal(t, "old", n.Content["text"])
	_, hasColor := n.Content["color"]
	assert.False(t, hasColor, "field that did not exist before must be deleted on undo")
}

func TestInvertNoOpActions(t *testing.T) {
	s := types.BoardState{}

	_, ok := Invert(s, types.StateAction{Op: types.OpRemove, Data: types.Node{ID: "ghost", Type: types.NodeTypeNote}})
	assert.False(t, ok)

	_, ok = Invert(s, types.StateAction{
		Op:   types.OpPatch,
		Data: types.Node{ID: "ghost", Type: types.NodeTypeNote, Content: map[string]any{"text": "x"}},
	})
	assert.False(t, ok)
}

func TestInvertAllRoundTrip(t *testing.T) {
	s := Apply(types.BoardState{}, addAction(note("n1", "v0", "u1")))
	batch := []types.StateAction{
		{Op: types.OpPatch, Data: types.Node{ID: "n1", Type: types.NodeTypeNote, Content: map[string]any{"text": "v1"}}},
		addAction(note("n2", "x", "u2")),
		{Op: types.OpPatch, Data: types.Node{ID: "n2", Type: types.NodeTypeNote, Content: map[string]any{"text": "y"}}},
		{Op: types.OpRemove, Data: types.Node{ID: "n1", Type: types.NodeTypeNote}},
	}

	inverse := InvertAll(s, batch)
	forwarded := ApplyAll(s, batch)
	restored := ApplyAll(forwarded, inverse)

	assert.Equal(t, s, restored)
}

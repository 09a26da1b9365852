package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boardsync/pkg/state"
	"boardsync/pkg/types"
)

func ownedNote(id, owner string) types.StateAction {
	return types.StateAction{Op: types.OpAdd, Data: types.Node{
		ID:      id,
		Type:    types.NodeTypeNote,
		Content: map[string]any{"text": "original", "ownerId": owner},
	}}
}

func textPatch(id, text string) types.StateAction {
	return types.StateAction{Op: types.OpPatch, Data: types.Node{
		ID:      id,
		Type:    types.NodeTypeNote,
		Content: map[string]any{"text": text},
	}}
}

func TestOwnerMayEditNoteText(t *testing.T) {
	s := state.Apply(types.BoardState{}, ownedNote("n1", "alice"))
	assert.True(t, Allowed(&s, textPatch("n1", "edited"), "alice"))
}

func TestNonOwnerMayNotEditNoteText(t *testing.T) {
	s := state.Apply(types.BoardState{}, ownedNote("n1", "alice"))
	assert.False(t, Allowed(&s, textPatch("n1", "vandalized"), "bob"))
}

func TestUnownedNoteEditableByAnyone(t *testing.T) {
	s := state.Apply(types.BoardState{}, ownedNote("n1", ""))
	assert.True(t, Allowed(&s, textPatch("n1", "edited"), "bob"))
}

func TestNonTextPatchUnrestricted(t *testing.T) {
	s := state.Apply(types.BoardState{}, ownedNote("n1", "alice"))
	move := types.StateAction{Op: types.OpPatch, Data: types.Node{
		ID:      "n1",
		Type:    types.NodeTypeNote,
		Content: map[string]any{"x": 10.0, "y": 20.0},
	}}
	assert.True(t, Allowed(&s, move, "bob"))
}

func TestAddAndRemoveUnrestricted(t *testing.T) {
	s := state.Apply(types.BoardState{}, ownedNote("n1", "alice"))
	assert.True(t, Allowed(&s, ownedNote("n2", "bob"), "bob"))
	assert.True(t, Allowed(&s, types.StateAction{
		Op:   types.OpRemove,
		Data: types.Node{ID: "n1", Type: types.NodeTypeNote},
	}, "bob"))
}

func TestUnknownOpDenied(t *testing.T) {
	s := types.BoardState{}
	assert.False(t, Allowed(&s, types.StateAction{Op: "teleport"}, "alice"))
}

func TestFilterDropsOnlyOffendingActions(t *testing.T) {
	s := state.Apply(types.BoardState{}, ownedNote("n1", "alice"))

	var dropped []types.StateAction
	batch := []types.StateAction{
		textPatch("n1", "denied"),
		ownedNote("n2", "bob"),
	}
	allowed := Filter(s, batch, "bob", func(a types.StateAction) {
		dropped = append(dropped, a)
	})

	require.Len(t, allowed, 1)
	assert.Equal(t, "n2", allowed[0].Data.ID)
	require.Len(t, dropped, 1)
	assert.Equal(t, "n1", dropped[0].Data.ID)

	// The surviving remainder still applies; the denied text is never visible.
	out := state.ApplyAll(s, allowed)
	n := state.Find(&out, "n1", types.NodeTypeNote)
	require.NotNil(t, n)
	assert.Equal(t, "original", n.Content["text"])
}

func TestFilterEvaluatesAgainstEvolvingState(t *testing.T) {
	// A note added earlier in the same batch is owned by its content, so a
	// later text patch by the same user passes.
	batch := []types.StateAction{
		ownedNote("n1", "bob"),
		textPatch("n1", "bob edits his own new note"),
	}
	allowed := Filter(types.BoardState{}, batch, "bob", nil)
	assert.Len(t, allowed, 2)

	// The same batch submitted by someone else keeps the add but loses the
	// text patch: ownership is read from the state the add just produced.
	allowed = Filter(types.BoardState{}, batch, "alice", nil)
	require.Len(t, allowed, 1)
	assert.Equal(t, types.OpAdd, allowed[0].Op)
}

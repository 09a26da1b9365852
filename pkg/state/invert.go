package state

import "boardsync/pkg/types"

// Invert computes the action that undoes a against the given pre-state.
// The second return is false when a would be a no-op (patching or removing
// an absent node, re-adding an existing id), in which case there is nothing
// to undo.
func Invert(s types.BoardState, a types.StateAction) (types.StateAction, bool) {
	switch a.Op {
	case types.OpAdd:
		if Find(&s, a.Data.ID, a.Data.Type) != nil {
			return types.StateAction{}, false
		}
		return types.StateAction{
			Op:   types.OpRemove,
			Data: types.Node{ID: a.Data.ID, Type: a.Data.Type},
		}, true

	case types.OpRemove:
		node := Find(&s, a.Data.ID, a.Data.Type)
		if node == nil {
			return types.StateAction{}, false
		}
		parent, pos, _ := locate(&s, a.Data.ID, a.Data.Type)
		p := pos
		return types.StateAction{
			Op:       types.OpAdd,
			Data:     cloneNode(*node),
			Parent:   parent,
			Position: &p,
		}, true

	case types.OpPatch:
		node := Find(&s, a.Data.ID, a.Data.Type)
		if node == nil {
			return types.StateAction{}, false
		}
		prev := make(map[string]any, len(a.Data.Content))
		for k := range a.Data.Content {
			if old, ok := node.Content[k]; ok {
				prev[k] = cloneValue(old)
			} else {
				prev[k] = nil // field did not exist; nil deletes it on undo
			}
		}
		return types.StateAction{
			Op:   types.OpPatch,
			Data: types.Node{ID: a.Data.ID, Type: a.Data.Type, Content: prev},
		}, true
	}
	return types.StateAction{}, false
}

// InvertAll computes the inverse batch for a forward batch: per-action
// inverses against the successively applied state, in reverse order.
func InvertAll(s types.BoardState, actions []types.StateAction) []types.StateAction {
	inverses := make([]types.StateAction, 0, len(actions))
	cur := s
	for _, a := range actions {
		if inv, ok := Invert(cur, a); ok {
			inverses = append(inverses, inv)
		}
		cur = Apply(cur, a)
	}
	for i, j := 0, len(inverses)-1; i < j; i, j = i+1, j-1 {
		inverses[i], inverses[j] = inverses[j], inverses[i]
	}
	return inverses
}

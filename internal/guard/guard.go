// Package guard gates individual mutations before the room applies them.
// It is a stateless predicate so finer-grained rules (board roles, per-type
// ACLs) can grow here without touching the diff engine.
package guard

import (
	"boardsync/pkg/state"
	"boardsync/pkg/types"
)

// Allowed reports whether userID may apply the action to the current state.
// The switch over ops is exhaustive: a new op must make an explicit
// authorization decision here before it can pass.
//
// Current rule set: editing the text of a note is restricted to the note's
// recorded owner; every other action/type combination is allowed.
func Allowed(s *types.BoardState, a types.StateAction, userID string) bool {
	switch a.Op {
	case types.OpAdd:
		return true
	case types.OpRemove:
		return true
	case types.OpPatch:
		if a.Data.Type != types.NodeTypeNote {
			return true
		}
		if _, touchesText := a.Data.Content["text"]; !touchesText {
			return true
		}
		node := state.Find(s, a.Data.ID, a.Data.Type)
		if node == nil {
			return true // absent target: the diff engine drops it anyway
		}
		owner, _ := node.Content["ownerId"].(string)
		return owner == "" || owner == userID
	default:
		return false
	}
}

// Filter applies Allowed to a batch against an evolving state and returns
// the surviving actions. Dropped actions are reported through onDrop; the
// rest of the batch still applies, and no signal reaches the sender.
func Filter(s types.BoardState, actions []types.StateAction, userID string, onDrop func(types.StateAction)) []types.StateAction {
	allowed := make([]types.StateAction, 0, len(actions))
	cur := s
	for _, a := range actions {
		if !Allowed(&cur, a, userID) {
			if onDrop != nil {
				onDrop(a)
			}
			continue
		}
		allowed = append(allowed, a)
		cur = state.Apply(cur, a)
	}
	return allowed
}

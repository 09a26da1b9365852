// Package protocol carries the wire vocabulary of the sync engine: the
// JSON-array batch codec and the outbound compaction algorithm.
package protocol

import (
	"boardsync/pkg/state"
	"boardsync/pkg/types"
)

// Compact shrinks a pending outbound queue without changing what a remote
// peer will observe after applying it. Actions are partitioned by
// (id, type); within a partition later patches fold into one (later field
// values win), a patch after an add folds into the add, and an add followed
// by a remove collapses to nothing together with every patch between them.
// A remove supersedes earlier actions for its node and is kept alone.
// Relative order of the surviving actions is preserved.
func Compact(actions []types.StateAction) []types.StateAction {
	type slot struct {
		act  types.StateAction
		dead bool
	}
	slots := make([]*slot, 0, len(actions))
	byNode := make(map[string][]*slot)

	key := func(a types.StateAction) string {
		return a.Data.ID + "\x00" + a.Data.Type
	}

	for _, a := range actions {
		k := key(a)
		live := byNode[k]

		switch a.Op {
		case types.OpPatch:
			if n := len(live); n > 0 && !live[n-1].dead {
				prev := live[n-1]
				switch prev.act.Op {
				case types.OpAdd:
					prev.act.Data.Content = mergeContent(prev.act.Data.Content, a.Data.Content)
					continue
				case types.OpPatch:
					// Keep the most recent patch, carrying the merged content.
					merged := mergeContent(prev.act.Data.Content, a.Data.Content)
					prev.dead = true
					ns := &slot{act: a}
					ns.act.Data.Content = merged
					slots = append(slots, ns)
					byNode[k] = append(live, ns)
					continue
				}
			}
			ns := &slot{act: a}
			slots = append(slots, ns)
			byNode[k] = append(live, ns)

		case types.OpAdd:
			ns := &slot{act: a}
			slots = append(slots, ns)
			byNode[k] = append(live, ns)

		case types.OpRemove:
			createdHere := false
			for _, s := range live {
				if !s.dead && s.act.Op == types.OpAdd {
					createdHere = true
				}
				s.dead = true
			}
			byNode[k] = nil
			if createdHere {
				// The node was created and destroyed inside this window;
				// no remote peer ever observed it.
				continue
			}
			ns := &slot{act: a}
			slots = append(slots, ns)
			byNode[k] = append(byNode[k], ns)
		}
	}

	out := make([]types.StateAction, 0, len(slots))
	for _, s := range slots {
		if !s.dead {
			out = append(out, s.act)
		}
	}
	return out
}

func mergeContent(base, over map[string]any) map[string]any {
	out := state.CloneContent(base)
	if out == nil {
		out = make(map[string]any, len(over))
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

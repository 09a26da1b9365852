// Package state is the pure diff engine shared by the authoritative room and
// the client sync facade. Both sides link the same Apply so their semantics
// can never drift.
package state

import "boardsync/pkg/types"

// Apply returns the state produced by one action. It never mutates its input:
// callers may hold the previous state for comparison or undo. Unresolvable
// actions (patch or remove of an absent node, add with a duplicate id, add
// under a missing parent) are silently dropped and the input state is
// returned unchanged, as an equal clone.
func Apply(s types.BoardState, a types.StateAction) types.BoardState {
	out := Clone(s)
	switch a.Op {
	case types.OpAdd:
		applyAdd(&out, a)
	case types.OpPatch:
		applyPatch(&out, a)
	case types.OpRemove:
		applyRemove(&out, a)
	}
	return out
}

// ApplyAll folds a batch through Apply in order. Order matters: an add
// followed by a patch of the same node within one batch must see the add.
func ApplyAll(s types.BoardState, actions []types.StateAction) types.BoardState {
	out := s
	for _, a := range actions {
		out = Apply(out, a)
	}
	return out
}

func applyAdd(s *types.BoardState, a types.StateAction) {
	if Find(s, a.Data.ID, a.Data.Type) != nil {
		return // node ids are unique within a board
	}
	siblings := &s.Nodes
	if a.Parent != "" {
		parent := findByID(s, a.Parent)
		if parent == nil {
			return
		}
		siblings = &parent.Children
	}
	pos := len(*siblings)
	if a.Position != nil {
		pos = *a.Position
		if pos < 0 {
			pos = 0
		}
		if pos > len(*siblings) {
			pos = len(*siblings)
		}
	}
	node := cloneNode(a.Data)
	*siblings = append(*siblings, types.Node{})
	copy((*siblings)[pos+1:], (*siblings)[pos:])
	(*siblings)[pos] = node
}

func applyPatch(s *types.BoardState, a types.StateAction) {
	node := Find(s, a.Data.ID, a.Data.Type)
	if node == nil {
		return // a patch never creates a node
	}
	if node.Content == nil {
		node.Content = make(map[string]any, len(a.Data.Content))
	}
	// Shallow per-field overwrite; array and object values replace wholesale.
	// A nil value deletes the field, which is how undo reverts fields that
	// did not exist before the forward patch.
	for k, v := range a.Data.Content {
		if v == nil {
			delete(node.Content, k)
			continue
		}
		node.Content[k] = cloneValue(v)
	}
}

func applyRemove(s *types.BoardState, a types.StateAction) {
	removeFrom(&s.Nodes, a.Data.ID, a.Data.Type)
}

func removeFrom(nodes *[]types.Node, id, typ string) bool {
	for i := range *nodes {
		n := &(*nodes)[i]
		if n.ID == id && n.Type == typ {
			*nodes = append((*nodes)[:i], (*nodes)[i+1:]...)
			return true
		}
		if removeFrom(&n.Children, id, typ) {
			return true
		}
	}
	return false
}

// Find locates a node by id and type anywhere in the tree. The returned
// pointer aliases the given state; callers that need isolation clone first.
func Find(s *types.BoardState, id, typ string) *types.Node {
	return findIn(s.Nodes, func(n *types.Node) bool { return n.ID == id && n.Type == typ })
}

func findByID(s *types.BoardState, id string) *types.Node {
	return findIn(s.Nodes, func(n *types.Node) bool { return n.ID == id })
}

func findIn(nodes []types.Node, match func(*types.Node) bool) *types.Node {
	for i := range nodes {
		if match(&nodes[i]) {
			return &nodes[i]
		}
		if found := findIn(nodes[i].Children, match); found != nil {
			return found
		}
	}
	return nil
}

// locate returns the parent id ("" for root) and sibling index of a node,
// which is what an inverse add needs to restore it in place.
func locate(s *types.BoardState, id, typ string) (parent string, pos int, ok bool) {
	return locateIn(s.Nodes, "", id, typ)
}

func locateIn(nodes []types.Node, parent, id, typ string) (string, int, bool) {
	for i := range nodes {
		if nodes[i].ID == id && nodes[i].Type == typ {
			return parent, i, true
		}
		if p, pos, ok := locateIn(nodes[i].Children, nodes[i].ID, id, typ); ok {
			return p, pos, ok
		}
	}
	return "", 0, false
}

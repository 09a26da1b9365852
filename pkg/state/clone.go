package state

import "boardsync/pkg/types"

// Clone deep-copies a board state, including nested content values, so the
// authoritative tree is never aliased by an outbound copy.
func Clone(s types.BoardState) types.BoardState {
	return types.BoardState{Name: s.Name, Nodes: cloneNodes(s.Nodes)}
}

func cloneNodes(nodes []types.Node) []types.Node {
	if nodes == nil {
		return nil
	}
	out := make([]types.Node, len(nodes))
	for i, n := range nodes {
		out[i] = cloneNode(n)
	}
	return out
}

func cloneNode(n types.Node) types.Node {
	return types.Node{
		ID:       n.ID,
		Type:     n.Type,
		Content:  CloneContent(n.Content),
		Children: cloneNodes(n.Children),
	}
}

// CloneContent deep-copies a content record. Values are the JSON scalar
// types plus nested map[string]any and []any.
func CloneContent(c map[string]any) map[string]any {
	if c == nil {
		return nil
	}
	out := make(map[string]any, len(c))
	for k, v := range c {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneContent(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

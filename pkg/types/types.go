package types

import "encoding/json"

// Op is the closed set of mutations the sync protocol understands.
type Op string

const (
	OpAdd    Op = "add"
	OpPatch  Op = "patch"
	OpRemove Op = "remove"
)

// Well-known node types. The set is open: unknown types flow through the
// diff pipeline untouched, only the permission guard cares about "note".
const (
	NodeTypeNote    = "note"
	NodeTypePanel   = "panel"
	NodeTypeGroup   = "group"
	NodeTypeDrawing = "drawing"
	NodeTypeUser    = "user"
)

// Directory roles for board membership.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleEditor = "editor"
)

// Close codes sent on the websocket close frame. Clients branch on these:
// a normal close may retry, unauthorized and revoked must navigate away.
const (
	CloseNormal        = 1000
	CloseUnauthorized  = 4001
	CloseAccessRevoked = 4003
	CloseBoardNotFound = 4004
)

// Node is one typed unit of board content. Identity is ID; Type is read by
// content-specific logic elsewhere. Children are ordered, order is z-order.
type Node struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Content  map[string]any `json:"content,omitempty"`
	Children []Node         `json:"children,omitempty"`
}

// BoardState is the full document for one room. Presence is folded in as
// "user" nodes so it moves through the same diff pipeline as content.
type BoardState struct {
	Name  string `json:"name"`
	Nodes []Node `json:"nodes"`
}

// BoardDocument is the durable form of a BoardState held by the board store.
type BoardDocument = BoardState

// StateAction describes one change to the node tree.
//
// add inserts Data under Parent (root when empty) at Position, appending when
// Position is nil. patch shallow-merges Data.Content into the node identified
// by Data.ID+Data.Type; a nil field value deletes that field. remove deletes
// the node and its subtree, and is idempotent.
type StateAction struct {
	Op       Op     `json:"op"`
	Data     Node   `json:"data"`
	Parent   string `json:"parent,omitempty"`
	Position *int   `json:"position,omitempty"`
}

// Identity is a verified user as reported by the identity provider.
type Identity struct {
	Sub   string `json:"sub"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Board is directory metadata about a board, not its content.
type Board struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	OwnerID string `json:"ownerId"`
	Public  bool   `json:"public"`
}

// UserInfo is one board member as reported by the directory.
type UserInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// Envelope types for server-to-client frames.
const (
	EnvelopeSetState     = "setState"
	EnvelopeDiff         = "diff"
	EnvelopeBoardRenamed = "boardRenamed"
)

// Envelope is one server-to-client message. Frames on the wire are JSON
// arrays of envelopes so rapid pushes coalesce into a single write.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals data into a typed envelope.
func NewEnvelope(typ string, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: typ, Data: raw}, nil
}

// Client request actions sent as JSON objects (everything else a client
// sends is a JSON array of StateAction).
const (
	RequestJoin   = "join"
	RequestRename = "rename"
)

// ClientRequest is a client-to-server control message. The first frame on a
// connection must be a join; rename may follow at any point.
type ClientRequest struct {
	Action  string `json:"action"`
	BoardID string `json:"boardId,omitempty"`
	Token   string `json:"token,omitempty"`
	Name    string `json:"name,omitempty"`
}

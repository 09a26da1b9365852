// Package interfaces defines the seams between the sync engine and its
// external collaborators, so components depend on behavior rather than on
// each other's concrete types.
package interfaces

import (
	"context"

	"boardsync/pkg/types"
)

// IdentityProvider turns an opaque credential into a verified identity.
type IdentityProvider interface {
	Verify(ctx context.Context, credential string) (*types.Identity, error)
}

// Directory is the board/team membership service. It answers access
// questions and board metadata; it never sees board content.
type Directory interface {
	HasAccess(ctx context.Context, boardID, userID string) (bool, error)
	GetBoard(ctx context.Context, boardID string) (*types.Board, error)
	GetBoardUsers(ctx context.Context, boardID string) ([]types.UserInfo, error)
}

// BoardStore is the durable document store keyed by board id.
type BoardStore interface {
	Get(ctx context.Context, boardID string) (*types.BoardDocument, error)
	Set(ctx context.Context, boardID string, doc *types.BoardDocument) error
	Ping(ctx context.Context) error
	Close() error
}

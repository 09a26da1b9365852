package directory

import (
	"context"
	"sync"

	"boardsync/pkg/interfaces"
	"boardsync/pkg/types"
)

// Static is an in-memory directory. Boards and members are registered up
// front; access can be flipped at runtime, which is what the registry
// revalidation tests exercise.
type Static struct {
	mu     sync.RWMutex
	boards map[string]types.Board
	users  map[string]map[string]types.UserInfo // boardID -> userID -> info
}

func NewStatic() *Static {
	return &Static{
		boards: make(map[string]types.Board),
		users:  make(map[string]map[string]types.UserInfo),
	}
}

// AddBoard registers a board.
func (s *Static) AddBoard(b types.Board) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.boards[b.ID] = b
	if s.users[b.ID] == nil {
		s.users[b.ID] = make(map[string]types.UserInfo)
	}
}

// AddUser grants a user membership on a board.
func (s *Static) AddUser(boardID string, u types.UserInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users[boardID] == nil {
		s.users[boardID] = make(map[string]types.UserInfo)
	}
	s.users[boardID][u.ID] = u
}

// RemoveUser revokes a user's membership on a board.
func (s *Static) RemoveUser(boardID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users[boardID], userID)
}

func (s *Static) HasAccess(ctx context.Context, boardID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.boards[boardID]
	if !ok {
		return false, nil
	}
	if b.Public || b.OwnerID == userID {
		return true, nil
	}
	_, member := s.users[boardID][userID]
	return member, nil
}

func (s *Static) GetBoard(ctx context.Context, boardID string) (*types.Board, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.boards[boardID]
	if !ok {
		return nil, interfaces.ErrBoardNotFound
	}
	return &b, nil
}

func (s *Static) GetBoardUsers(ctx context.Context, boardID string) ([]types.UserInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]types.UserInfo, 0, len(s.users[boardID]))
	for _, u := range s.users[boardID] {
		users = append(users, u)
	}
	return users, nil
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"boardsync/pkg/interfaces"
	"boardsync/pkg/types"
)

// RedisStore keeps board documents as JSON values keyed by board id. It
// suits deployments that already run redis and want the store off-box.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(addr string) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connect redis store: %w", err)
	}
	return &RedisStore{rdb: rdb}, nil
}

func boardKey(boardID string) string { return "board:" + boardID }

func (r *RedisStore) Get(ctx context.Context, boardID string) (*types.BoardDocument, error) {
	data, err := r.rdb.Get(ctx, boardKey(boardID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get board %s: %w", boardID, err)
	}
	var doc types.BoardDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode board %s: %w", boardID, err)
	}
	return &doc, nil
}

func (r *RedisStore) Set(ctx context.Context, boardID string, doc *types.BoardDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode board %s: %w", boardID, err)
	}
	if err := r.rdb.Set(ctx, boardKey(boardID), data, 0).Err(); err != nil {
		return fmt.Errorf("set board %s: %w", boardID, err)
	}
	return nil
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	return r.rdb.Close()
}

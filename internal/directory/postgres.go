// Package directory answers board access and membership questions. The
// postgres implementation backs production; Static backs tests and
// single-box deployments.
package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"boardsync/pkg/interfaces"
	"boardsync/pkg/types"
)

// PostgresDirectory reads board and membership rows from postgres.
type PostgresDirectory struct {
	pool *pgxpool.Pool
}

func NewPostgresDirectory(ctx context.Context, dsn string) (*PostgresDirectory, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect directory: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping directory: %w", err)
	}
	return &PostgresDirectory{pool: pool}, nil
}

// Migrate creates the directory schema if it does not exist.
func (d *PostgresDirectory) Migrate(ctx context.Context) error {
	_, err := d.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS boards (
	id       TEXT PRIMARY KEY,
	name     TEXT NOT NULL,
	owner_id TEXT NOT NULL,
	public   BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE TABLE IF NOT EXISTS board_users (
	board_id TEXT NOT NULL REFERENCES boards(id) ON DELETE CASCADE,
	user_id  TEXT NOT NULL,
	name     TEXT NOT NULL DEFAULT '',
	role     TEXT NOT NULL DEFAULT 'editor',
	PRIMARY KEY (board_id, user_id)
);`)
	if err != nil {
		return fmt.Errorf("migrate directory: %w", err)
	}
	return nil
}

func (d *PostgresDirectory) HasAccess(ctx context.Context, boardID, userID string) (bool, error) {
	var ok bool
	err := d.pool.QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1 FROM boards b
	LEFT JOIN board_users bu ON bu.board_id = b.id AND bu.user_id = $2
	WHERE b.id = $1 AND (b.public OR b.owner_id = $2 OR bu.user_id IS NOT NULL)
)`, boardID, userID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("has access %s/%s: %w", boardID, userID, err)
	}
	return ok, nil
}

func (d *PostgresDirectory) GetBoard(ctx context.Context, boardID string) (*types.Board, error) {
	var b types.Board
	err := d.pool.QueryRow(ctx,
		`SELECT id, name, owner_id, public FROM boards WHERE id = $1`, boardID).
		Scan(&b.ID, &b.Name, &b.OwnerID, &b.Public)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, interfaces.ErrBoardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get board %s: %w", boardID, err)
	}
	return &b, nil
}

func (d *PostgresDirectory) GetBoardUsers(ctx context.Context, boardID string) ([]types.UserInfo, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT user_id, name, role FROM board_users WHERE board_id = $1 ORDER BY user_id`, boardID)
	if err != nil {
		return nil, fmt.Errorf("get board users %s: %w", boardID, err)
	}
	defer rows.Close()

	var users []types.UserInfo
	for rows.Next() {
		var u types.UserInfo
		if err := rows.Scan(&u.ID, &u.Name, &u.Role); err != nil {
			return nil, fmt.Errorf("scan board user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (d *PostgresDirectory) Close() {
	d.pool.Close()
}

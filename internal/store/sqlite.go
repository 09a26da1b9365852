// Package store holds the board store backends. The sqlite backend is the
// default; redis and memory are selected through configuration.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"boardsync/pkg/interfaces"
	"boardsync/pkg/types"
)

// SQLiteStore persists board documents in a local SQLite file. All writes
// funnel through a single goroutine; SQLite allows one writer at a time and
// serializing here avoids busy-lock churn under concurrent room persists.
type SQLiteStore struct {
	db      *sql.DB
	writeCh chan writeOp
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	log     *zap.Logger
}

type writeOp struct {
	fn     func(*sql.DB) error
	result chan error
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS boards (
	id         TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`

func NewSQLiteStore(path string, log *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite store: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		writeCh: make(chan writeOp, 100),
		done:    make(chan struct{}),
		log:     log,
	}
	s.wg.Add(1)
	go s.writeLoop()
	return s, nil
}

func (s *SQLiteStore) writeLoop() {
	defer s.wg.Done()
	for {
		select {
		case op := <-s.writeCh:
			err := op.fn(s.db)
			if err != nil {
				// Retry once; transient busy errors clear quickly.
				s.log.Warn("store write failed, retrying", zap.Error(err))
				time.Sleep(100 * time.Millisecond)
				err = op.fn(s.db)
			}
			op.result <- err
		case <-s.done:
			return
		}
	}
}

func (s *SQLiteStore) executeWrite(fn func(*sql.DB) error) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrStoreClosed
	}
	s.mu.RUnlock()

	result := make(chan error, 1)
	select {
	case s.writeCh <- writeOp{fn: fn, result: result}:
		return <-result
	case <-time.After(30 * time.Second):
		return ErrWriteTimeout
	case <-s.done:
		return ErrStoreClosed
	}
}

func (s *SQLiteStore) Get(ctx context.Context, boardID string) (*types.BoardDocument, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM boards WHERE id = ?`, boardID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get board %s: %w", boardID, err)
	}
	var doc types.BoardDocument
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return nil, fmt.Errorf("decode board %s: %w", boardID, err)
	}
	return &doc, nil
}

func (s *SQLiteStore) Set(ctx context.Context, boardID string, doc *types.BoardDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode board %s: %w", boardID, err)
	}
	return s.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`INSERT INTO boards (id, data, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
			 ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = CURRENT_TIMESTAMP`,
			boardID, string(data))
		return err
	})
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.done)
	s.wg.Wait()
	return s.db.Close()
}

package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"chatrelay/internal/config"
	"chatrelay/pkg/types"
)

// Log is the SQLite-backed message log. All writes funnel through a
// single goroutine; SQLite serializes writers anyway, and the single
// write loop keeps retry handling in one place. Reads run concurrently
// on the connection pool.
type Log struct {
	db       *sql.DB
	writeCh  chan writeOp
	shutdown chan struct{}
	wg       sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

type writeOp struct {
	operation func(*sql.DB) error
	result    chan error
}

// retryDelay is the pause before the single retry of a failed write.
const retryDelay = time.Second

// NewLog opens the database, applies pragmas, ensures the schema, and
// starts the write loop.
func NewLog(cfg config.DatabaseConfig) (*Log, error) {
	dsn := fmt.Sprintf("%s?_busy_timeout=%d&_journal_mode=WAL&_foreign_keys=on",
		cfg.Path, cfg.BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConns)

	if err := applyPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	l := &Log{
		db:       db,
		writeCh:  make(chan writeOp, 100),
		shutdown: make(chan struct{}),
	}

	l.wg.Add(1)
	go l.writeLoop()

	return l, nil
}

func (l *Log) writeLoop() {
	defer l.wg.Done()

	for {
		select {
		case op := <-l.writeCh:
			err := op.operation(l.db)
			if err != nil {
				log.Printf("database write failed, retrying: %v", err)
				time.Sleep(retryDelay)
				err = op.operation(l.db)
				if err != nil {
					log.Printf("database write failed after retry: %v", err)
				}
			}
			op.result <- err

		case <-l.shutdown:
			return
		}
	}
}

func (l *Log) executeWrite(ctx context.Context, operation func(*sql.DB) error) error {
	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		return fmt.Errorf("message log is closed")
	}
	l.mu.RUnlock()

	result := make(chan error, 1)
	select {
	case l.writeCh <- writeOp{operation: operation, result: result}:
		select {
		case err := <-result:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	case <-ctx.Done():
		return ctx.Err()
	case <-l.shutdown:
		return fmt.Errorf("message log is shutting down")
	}
}

// Append persists a message and assigns its sequential identifier.
func (l *Log) Append(ctx context.Context, msg *types.Message) error {
	return l.executeWrite(ctx, func(db *sql.DB) error {
		res, err := db.ExecContext(ctx, `
			INSERT INTO messages (message_id, username, body, room_name, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, msg.ID, msg.Username, msg.Body, msg.RoomName, msg.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
		seq, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read message seq: %w", err)
		}
		msg.Seq = seq
		return nil
	})
}

// RecentByRoom returns up to limit most recent messages for a room,
// ordered oldest first. The query walks newest first for the LIMIT and
// the slice is reversed in memory.
func (l *Log) RecentByRoom(ctx context.Context, roomName string, limit int) ([]*types.Message, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT seq, message_id, username, body, room_name, created_at
		FROM messages
		WHERE room_name = ?
		ORDER BY created_at DESC, seq DESC
		LIMIT ?
	`, roomName, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query room history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var messages []*types.Message
	for rows.Next() {
		var msg types.Message
		if err := rows.Scan(&msg.Seq, &msg.ID, &msg.Username, &msg.Body, &msg.RoomName, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message rows: %w", err)
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// HealthCheck validates connectivity and a basic read.
func (l *Log) HealthCheck(ctx context.Context) error {
	if err := l.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if _, err := l.db.ExecContext(ctx, "SELECT COUNT(*) FROM messages LIMIT 1"); err != nil {
		return fmt.Errorf("database read test failed: %w", err)
	}
	return nil
}

// Close drains the write loop and closes the database.
func (l *Log) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	close(l.shutdown)
	l.wg.Wait()

	if err := l.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}
	return nil
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			message_id TEXT NOT NULL,
			username   TEXT NOT NULL,
			body       TEXT NOT NULL,
			room_name  TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_room_name ON messages(room_name)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_created_at ON messages(created_at)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

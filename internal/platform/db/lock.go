package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionLock holds a session-level Postgres advisory lock on a dedicated
// connection. It outlives individual transactions, which lets a multi-stage
// pipeline keep the lock across its per-stage commits.
type SessionLock struct {
	conn *pgxpool.Conn
	key  int64
}

// TryAcquireLock attempts to take the advisory lock identified by key
// without blocking. It returns (nil, nil) when another session holds it.
func TryAcquireLock(ctx context.Context, pool *pgxpool.Pool, key int64) (*SessionLock, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	var ok bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&ok); err != nil {
		conn.Release()
		return nil, fmt.Errorf("try advisory lock %d: %w", key, err)
	}
	if !ok {
		conn.Release()
		return nil, nil
	}

	return &SessionLock{conn: conn, key: key}, nil
}

// Release unlocks the advisory lock and returns the connection to the pool.
func (l *SessionLock) Release(ctx context.Context) {
	if l == nil || l.conn == nil {
		return
	}
	_, _ = l.conn.Exec(ctx, `SELECT pg_advisory_unlock($1)`, l.key)
	l.conn.Release()
	l.conn = nil
}

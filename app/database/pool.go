package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const DefaultMaxConnections = 5

// Pool hands out a bounded number of SQLite connections. Acquire fails fast
// with ErrPoolExhausted instead of blocking when every slot is in use, so a
// busy sync pass can never deadlock a UI caller.
//
// The free list and the outstanding count are the only shared state; the
// mutex is held for the pop/push only, never across the lifetime of a
// borrowed connection.
type Pool struct {
	db   *sql.DB
	mu   sync.Mutex
	free []*Conn
	open int
	max  int
}

// Conn is a borrowed database connection. Callers must Release it on every
// exit path, typically via defer.
type Conn struct {
	sc       *sql.Conn
	pool     *Pool
	released bool
}

// Open opens (or creates) the SQLite database at path, applies the full
// idempotent schema and any pending migrations on the first connection, and
// returns a pool bounded at maxConns connections.
func Open(path string, maxConns int) (*Pool, error) {
	if maxConns <= 0 {
		maxConns = DefaultMaxConnections
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	p := &Pool{db: db, max: maxConns}

	// The first connection initializes the schema; later connections see the
	// tables already in place.
	conn, err := p.Acquire(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}
	defer conn.Release()

	if err := initSchema(ctx, conn); err != nil {
		db.Close()
		return nil, fmt.Errorf("schema initialization: %w", err)
	}
	if err := runMigrations(ctx, conn); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	slog.Debug("Database opened", "path", path, "max_connections", maxConns)
	return p, nil
}

// Acquire returns an idle connection if one exists, opens a new one while
// under the limit, and otherwise fails immediately with ErrPoolExhausted.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	p.mu.Lock()
	if n := len(p.free); n > 0 {
		conn := p.free[n-1]
		p.free = p.free[:n-1]
		p.mu.Unlock()
		conn.released = false
		return conn, nil
	}
	if p.open >= p.max {
		p.mu.Unlock()
		return nil, ErrPoolExhausted
	}
	p.open++
	p.mu.Unlock()

	sc, err := p.db.Conn(ctx)
	if err != nil {
		p.mu.Lock()
		p.open--
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return &Conn{sc: sc, pool: p}, nil
}

// Close releases all idle connections and the underlying database handle.
func (p *Pool) Close() error {
	p.mu.Lock()
	free := p.free
	p.free = nil
	p.mu.Unlock()

	for _, conn := range free {
		conn.sc.Close()
	}
	return p.db.Close()
}

// Release returns the connection to the free list. Releasing twice is a
// no-op, so defer conn.Release() is always safe.
func (c *Conn) Release() {
	if c == nil || c.released {
		return
	}
	c.released = true
	c.pool.mu.Lock()
	c.pool.free = append(c.pool.free, c)
	c.pool.mu.Unlock()
}

func (c *Conn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.sc.ExecContext(ctx, query, args...)
}

func (c *Conn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.sc.QueryContext(ctx, query, args...)
}

func (c *Conn) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return c.sc.QueryRowContext(ctx, query, args...)
}

func (c *Conn) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return c.sc.BeginTx(ctx, opts)
}

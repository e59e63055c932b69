package storage

import (
	"RC/configs"
	"RC/utils"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4/pgxpool"
)

const pgUniqueViolation = "23505"

type SQLDB struct {
	mu       sync.Mutex
	dsn      string
	maxConns int
	pool     *pgxpool.Pool
}

func (c *SQLDB) connect(ctx context.Context) error {
	config, err := pgxpool.ParseConfig(c.dsn)
	if err != nil {
		return configs.Errorf("parsing pg.dsn: %v", err)
	}
	config.MaxConns = int32(c.maxConns)
	pool, err := pgxpool.ConnectConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("unable to connect to database: %w", err)
	}
	c.pool = pool
	return nil
}

func (c *SQLDB) init(ctx context.Context) error {
	if err := c.connect(ctx); err != nil {
		return err
	}
	_, err := c.pool.Exec(ctx, "CREATE TABLE IF NOT EXISTS race_user ("+
		"id BIGSERIAL PRIMARY KEY, login VARCHAR(255) NOT NULL UNIQUE, password VARCHAR(255) NOT NULL)")
	if err != nil {
		c.pool.Close()
		return fmt.Errorf("creating race_user: %w", err)
	}
	return nil
}

func (c *SQLDB) getPool() *pgxpool.Pool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pool
}

func (c *SQLDB) Write(ctx context.Context, login string) error {
	_, err := c.getPool().Exec(ctx, "insert into race_user (login, password) values ($1, $2)", login, NewPassword())
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%w: %s", utils.ErrUniquenessConflict, login)
	}
	return fmt.Errorf("inserting %s: %w", login, err)
}

// NewLock pins a pooled connection; advisory locks belong to the session
// that took them.
func (c *SQLDB) NewLock(ctx context.Context, key string) (Lock, error) {
	conn, err := c.getPool().Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: connection for %s: %v", utils.ErrLockAcquisition, key, err)
	}
	return &sqlLock{key: key, conn: conn}, nil
}

// Refresh closes the pool and connects again.
func (c *SQLDB) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pool.Close()
	return c.connect(ctx)
}

func (c *SQLDB) Close() error {
	c.getPool().Close()
	return nil
}

type sqlLock struct {
	key  string
	conn *pgxpool.Conn
	held bool
}

func (l *sqlLock) Acquire(ctx context.Context) error {
	if _, err := l.conn.Exec(ctx, "select pg_advisory_lock(hashtext($1))", l.key); err != nil {
		return fmt.Errorf("%w: %s: %v", utils.ErrLockAcquisition, l.key, err)
	}
	l.held = true
	return nil
}

func (l *sqlLock) Release() error {
	if l.conn == nil {
		return nil
	}
	defer func() {
		l.conn.Release()
		l.conn = nil
	}()
	if !l.held {
		return nil
	}
	l.held = false
	if _, err := l.conn.Exec(context.Background(), "select pg_advisory_unlock(hashtext($1))", l.key); err != nil {
		return fmt.Errorf("releasing %s: %w", l.key, err)
	}
	return nil
}

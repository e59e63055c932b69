package storage

import (
	"RC/configs"
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// Store is the record store the strategies run against. Write fails with
// utils.ErrUniquenessConflict when the login already exists; any other error
// is fatal to the caller.
type Store interface {
	Write(ctx context.Context, login string) error
	// NewLock prepares an exclusive lock handle keyed by a record identifier.
	// Nothing is held until Acquire returns.
	NewLock(ctx context.Context, key string) (Lock, error)
	// Refresh drops and re-establishes any cached session state.
	Refresh(ctx context.Context) error
	Close() error
}

type Lock interface {
	// Acquire blocks until the lock is held or ctx is done.
	Acquire(ctx context.Context) error
	// Release is safe to call on a lock that was never acquired.
	Release() error
}

// NewStore opens the record store of the given kind.
func NewStore(ctx context.Context, kind string, props *configs.StoreProps) (Store, error) {
	switch kind {
	case configs.BenchmarkStorage:
		return NewMemStore(), nil
	case configs.FileStorage:
		return NewFileStore(props.FileDir)
	case configs.MongoDB:
		c := &MongoDB{uri: props.MongoURI, database: props.MongoDatabase}
		if err := c.init(ctx); err != nil {
			return nil, err
		}
		return c, nil
	case configs.PostgreSQL:
		c := &SQLDB{dsn: props.PGDSN, maxConns: props.PGMaxConns}
		if err := c.init(ctx); err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, configs.Errorf("unknown store %q", kind)
	}
}

// NewPassword the random secret stored next to every login.
func NewPassword() string {
	buf := make([]byte, configs.PasswordBytes)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("reading random bytes: %v", err))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

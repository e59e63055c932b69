package storage

import (
	"RC/configs"
	"RC/utils"
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type MongoDB struct {
	mu       sync.Mutex
	uri      string
	database string
	client   *mongo.Client
	users    *mongo.Collection
	locks    *mongo.Collection
}

type userDocument struct {
	Login    string `bson:"_id"`
	Password string `bson:"password"`
}

type lockDocument struct {
	Key   string `bson:"_id"`
	Owner string `bson:"owner"`
}

func (c *MongoDB) connect(ctx context.Context) error {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(c.uri))
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", c.uri, err)
	}
	if err = client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return fmt.Errorf("pinging %s: %w", c.uri, err)
	}
	c.client = client
	c.users = client.Database(c.database).Collection("race_user")
	c.locks = client.Database(c.database).Collection("race_lock")
	return nil
}

func (c *MongoDB) init(ctx context.Context) error {
	return c.connect(ctx)
}

func (c *MongoDB) collections() (*mongo.Collection, *mongo.Collection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.users, c.locks
}

func (c *MongoDB) Write(ctx context.Context, login string) error {
	users, _ := c.collections()
	_, err := users.InsertOne(ctx, userDocument{Login: login, Password: NewPassword()})
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %s", utils.ErrUniquenessConflict, login)
	}
	return fmt.Errorf("inserting %s: %w", login, err)
}

// NewLock the lock is a document in race_lock; whoever inserts it first holds it.
func (c *MongoDB) NewLock(ctx context.Context, key string) (Lock, error) {
	_, locks := c.collections()
	return &mongoLock{
		coll:  locks,
		key:   key,
		owner: fmt.Sprintf("%d-%s", os.Getpid(), uuid.NewString()),
	}, nil
}

// Refresh disconnects the client and connects again.
func (c *MongoDB) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnecting: %w", err)
	}
	return c.connect(ctx)
}

func (c *MongoDB) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client.Disconnect(context.Background())
}

type mongoLock struct {
	coll  *mongo.Collection
	key   string
	owner string
	held  bool
}

func (l *mongoLock) Acquire(ctx context.Context) error {
	for {
		_, err := l.coll.InsertOne(ctx, lockDocument{Key: l.key, Owner: l.owner})
		if err == nil {
			l.held = true
			return nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s: %v", utils.ErrLockAcquisition, l.key, err)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s: %v", utils.ErrLockAcquisition, l.key, ctx.Err())
		case <-time.After(configs.LockPollInterval):
		}
	}
}

func (l *mongoLock) Release() error {
	if !l.held {
		return nil
	}
	l.held = false
	_, err := l.coll.DeleteOne(context.Background(), bson.M{"_id": l.key, "owner": l.owner})
	if err != nil {
		return fmt.Errorf("releasing %s: %w", l.key, err)
	}
	return nil
}

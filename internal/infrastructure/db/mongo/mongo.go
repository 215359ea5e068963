package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	defaultTimeout     = 10 * time.Second
	defaultMaxPoolSize = 20
	appName            = "structo-api"
)

// Config describes the accounts database.
type Config struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
	MaxPoolSize    uint64
}

// Store owns the client and the accounts database.
type Store struct {
	client *mongo.Client
	DB     *mongo.Database
}

// Open connects and pings the primary before returning.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	opts := clientOptions(cfg)

	connectCtx, cancel := context.WithTimeout(ctx, *opts.ServerSelectionTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("mongo ping %s: %w", cfg.Database, err)
	}
	return &Store{client: client, DB: client.Database(cfg.Database)}, nil
}

func clientOptions(cfg Config) *options.ClientOptions {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	pool := cfg.MaxPoolSize
	if pool == 0 {
		pool = defaultMaxPoolSize
	}
	return options.Client().
		ApplyURI(cfg.URI).
		SetAppName(appName).
		SetRetryWrites(true).
		SetMaxPoolSize(pool).
		SetServerSelectionTimeout(timeout)
}

// Ping backs the readiness check.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects, waiting at most timeout for in-flight operations.
func (s *Store) Close(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

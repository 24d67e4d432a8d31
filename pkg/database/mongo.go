package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/stonexiaolei/tuzhan-data/pkg/config"
)

// DB wraps the mongo client and the report database handle
// ⭐ SSOT: MongoDB 连接只在这个包里创建
type DB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

// New establishes a MongoDB session and verifies it with a ping.
// Both the connect timeout and the server selection timeout come from config;
// exceeding either fails the whole run,和单个查询超时无关.
func New(ctx context.Context, cfg *config.Config) (*DB, error) {
	opts := options.Client().
		ApplyURI(cfg.Mongo.URI()).
		SetConnectTimeout(cfg.Mongo.ConnectTimeout).
		SetServerSelectionTimeout(cfg.Mongo.ServerSelectionTimeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	// Verify connection; release the session on failure so a broken run
	// never leaks the client
	pingCtx, cancel := context.WithTimeout(ctx, cfg.Mongo.ServerSelectionTimeout)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb %s:%s: %w", cfg.Mongo.Host, cfg.Mongo.Port, err)
	}

	return &DB{
		Client:   client,
		Database: client.Database(cfg.Mongo.Database),
	}, nil
}

// Close releases the session
func (db *DB) Close(ctx context.Context) error {
	if db.Client == nil {
		return nil
	}
	if err := db.Client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect mongodb: %w", err)
	}
	return nil
}

// Ping checks if the server is reachable
func (db *DB) Ping(ctx context.Context) error {
	return db.Client.Ping(ctx, readpref.Primary())
}

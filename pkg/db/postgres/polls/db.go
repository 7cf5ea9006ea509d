package polls

import (
	"context"
	"fmt"

	"github.com/groupchat/pollbot/pkg/db/postgres"
	"go.uber.org/zap"
)

// DB is the PostgreSQL poll store.
type DB struct {
	postgres.Client
	Name string
}

// NewWithPoolConfig connects, creates the database when missing and ensures the schema.
func NewWithPoolConfig(ctx context.Context, logger *zap.Logger, name string, poolConfig postgres.PoolConfig) (*DB, error) {
	client, err := postgres.New(ctx, logger.With(
		zap.String("db", name),
		zap.String("component", poolConfig.Component),
	), name, &poolConfig)
	if err != nil {
		return nil, err
	}

	return newDB(ctx, client, name)
}

// NewFromClient wraps an already connected client and ensures the schema.
func NewFromClient(ctx context.Context, client postgres.Client) (*DB, error) {
	return newDB(ctx, client, client.TargetDatabase)
}

func newDB(ctx context.Context, client postgres.Client, name string) (*DB, error) {
	pollDB := &DB{
		Client: client,
		Name:   name,
	}

	if err := pollDB.InitializeDB(ctx); err != nil {
		client.Close()
		return nil, err
	}

	return pollDB, nil
}

// Close terminates the underlying PostgreSQL connection
func (db *DB) Close() error {
	db.Pool.Close()
	return nil
}

// DatabaseName returns the name of the poll database
func (db *DB) DatabaseName() string {
	return db.Name
}

// InitializeDB ensures the required tables exist. Order follows the foreign keys.
func (db *DB) InitializeDB(ctx context.Context) error {
	db.Logger.Info("Initializing poll database", zap.String("database", db.Name))

	steps := []struct {
		table string
		init  func(context.Context) error
	}{
		{"polls", db.initPolls},
		{"poll_option", db.initOptions},
		{"mentions", db.initMentions},
		{"votes", db.initVotes},
		{"poll_overview", db.initOverview},
	}

	for _, step := range steps {
		db.Logger.Debug("Initialize table", zap.String("database", db.Name), zap.String("table", step.table))
		if err := step.init(ctx); err != nil {
			return fmt.Errorf("initialize %s: %w", step.table, err)
		}
	}

	return nil
}

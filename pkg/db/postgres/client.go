package postgres

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/groupchat/pollbot/pkg/retry"
	"github.com/groupchat/pollbot/pkg/utils"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Executor is an interface that both *pgxpool.Pool and pgx.Tx implement.
// This allows methods to work with either a connection pool or a transaction.
type Executor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Client wraps a PostgreSQL connection pool bound to the target database.
type Client struct {
	Logger         *zap.Logger
	Pool           *pgxpool.Pool
	TargetDatabase string
}

// PoolConfig defines connection pool settings for a specific component
type PoolConfig struct {
	MinConns        int32
	MaxConns        int32
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	Component       string // For logging/debugging
}

// New connects to POSTGRES_URL, creates dbName when it is missing and returns a
// pool connected to dbName. Connection attempts are retried with backoff.
func New(ctx context.Context, logger *zap.Logger, dbName string, poolConfig *PoolConfig) (Client, error) {
	connCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbURL := utils.Env("POSTGRES_URL", "postgres://localhost:5432/postgres")
	return NewFromURL(connCtx, logger, dbURL, dbName, poolConfig)
}

// NewFromURL is New with an explicit server URL. Tests use it directly.
func NewFromURL(ctx context.Context, logger *zap.Logger, dbURL, dbName string, poolConfig *PoolConfig) (Client, error) {
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return Client{}, fmt.Errorf("failed to parse POSTGRES_URL: %w", err)
	}

	poolConf := PoolConfig{
		MinConns:        2,
		MaxConns:        20,
		ConnMaxLifetime: 1 * time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
		Component:       "unknown",
	}
	if poolConfig != nil {
		poolConf = *poolConfig
	}

	config.MinConns = poolConf.MinConns
	config.MaxConns = poolConf.MaxConns
	config.MaxConnLifetime = poolConf.ConnMaxLifetime
	config.MaxConnIdleTime = poolConf.ConnMaxIdleTime

	client := Client{Logger: logger, TargetDatabase: dbName}

	if dbName != "" && dbName != config.ConnConfig.Database {
		// bootstrap through the server database, then switch to the target
		bootstrap, err := connect(ctx, logger, config.Copy(), poolConf.Component)
		if err != nil {
			return Client{}, err
		}
		bootClient := Client{Logger: logger, Pool: bootstrap}
		err = bootClient.CreateDbIfNotExists(ctx, dbName)
		bootstrap.Close()
		if err != nil {
			return Client{}, err
		}
		config.ConnConfig.Database = dbName
	}

	pool, err := connect(ctx, logger, config, poolConf.Component)
	if err != nil {
		return Client{}, err
	}
	client.Pool = pool

	logger.Info("PostgreSQL connection pool configured",
		zap.String("database", config.ConnConfig.Database),
		zap.String("component", poolConf.Component),
		zap.Int32("min_conns", poolConf.MinConns),
		zap.Int32("max_conns", poolConf.MaxConns),
		zap.Duration("conn_max_lifetime", poolConf.ConnMaxLifetime),
		zap.Duration("conn_max_idle_time", poolConf.ConnMaxIdleTime),
	)

	return client, nil
}

func connect(ctx context.Context, logger *zap.Logger, config *pgxpool.Config, component string) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool
	err := retry.WithBackoff(ctx, retry.DefaultConfig(), logger, "postgres_connection", func() error {
		p, openErr := pgxpool.NewWithConfig(ctx, config)
		if openErr != nil {
			return fmt.Errorf("failed to create postgres connection pool: %w", openErr)
		}

		logger.Debug("Pinging PostgreSQL connection",
			zap.String("db", config.ConnConfig.Database),
			zap.String("component", component),
		)

		if pingErr := p.Ping(ctx); pingErr != nil {
			p.Close()
			return fmt.Errorf("failed to ping postgres: %w", pingErr)
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pool, nil
}

// CreateDbIfNotExists ensures that the specified database exists by creating it if it does not already exist.
func (c *Client) CreateDbIfNotExists(ctx context.Context, dbName string) error {
	var exists bool
	query := "SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)"
	err := c.Pool.QueryRow(ctx, query, dbName).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check if database exists: %w", err)
	}

	if !exists {
		// Cannot use parameterized query for CREATE DATABASE
		query := fmt.Sprintf("CREATE DATABASE %s", pgx.Identifier{dbName}.Sanitize())
		c.Logger.Info("Creating database", zap.String("database", dbName))
		if _, err = c.Pool.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to create database: %w", err)
		}
	}

	return nil
}

// Exec executes a query without returning any rows, inside the context transaction if any.
func (c *Client) Exec(ctx context.Context, query string, args ...any) error {
	_, err := c.GetExecutor(ctx).Exec(ctx, query, args...)
	return err
}

// ExecRows executes a query and returns the number of affected rows.
func (c *Client) ExecRows(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := c.GetExecutor(ctx).Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Query executes a query that returns rows
// IMPORTANT: Caller MUST call rows.Close() when done to release the connection
func (c *Client) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return c.GetExecutor(ctx).Query(ctx, query, args...)
}

// QueryRow executes a query that is expected to return at most one row
func (c *Client) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	return c.GetExecutor(ctx).QueryRow(ctx, query, args...)
}

// BeginFunc runs fn in a transaction. The transaction is also placed in the
// context handed to fn so Client helpers pick it up.
// If fn returns an error the transaction is rolled back, otherwise committed.
func (c *Client) BeginFunc(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return pgx.BeginFunc(ctx, c.Pool, func(tx pgx.Tx) error {
		return fn(c.WithTx(ctx, tx), tx)
	})
}

// SendBatch sends a batch of queries
func (c *Client) SendBatch(ctx context.Context, batch *pgx.Batch) pgx.BatchResults {
	return c.GetExecutor(ctx).SendBatch(ctx, batch)
}

// Ping verifies the pool can reach the server.
func (c *Client) Ping(ctx context.Context) error {
	return c.Pool.Ping(ctx)
}

// Close closes the connection pool
func (c *Client) Close() {
	c.Pool.Close()
}

// ctxKey is the type used for context keys to avoid collisions
type ctxKey string

// txKey is the context key for storing the transaction
const txKey ctxKey = "pgx_tx"

// WithTx returns a new context with the transaction embedded
func (c *Client) WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txKey, tx)
}

// GetExecutor returns the transaction stored in ctx, or the pool when there is none.
func (c *Client) GetExecutor(ctx context.Context) Executor {
	if tx, ok := ctx.Value(txKey).(pgx.Tx); ok {
		return tx
	}
	return c.Pool
}

// IsNoRows checks if the error is a "no rows" error
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// GetPoolConfigForComponent returns deterministic pool settings for each component
func GetPoolConfigForComponent(component string) *PoolConfig {
	var minConns, maxConns int32
	switch component {
	case "pollbot":
		// one connection per worker at peak, capped
		minConns = 2
		maxConns = int32(min(utils.EnvInt("WORKERS", 4*runtime.NumCPU()), 64))
	case "test":
		minConns = 1
		maxConns = 4
	default:
		minConns = 2
		maxConns = 20
	}

	return &PoolConfig{
		MinConns:        minConns,
		MaxConns:        maxConns,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 2 * time.Minute,
		Component:       component,
	}
}

package pollbot

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/groupchat/pollbot/app/pollbot/events"
	"github.com/groupchat/pollbot/app/pollbot/types"
	"github.com/groupchat/pollbot/pkg/actions"
	"github.com/groupchat/pollbot/pkg/db"
	"github.com/groupchat/pollbot/pkg/db/memory"
	"github.com/groupchat/pollbot/pkg/db/postgres"
	pgpolls "github.com/groupchat/pollbot/pkg/db/postgres/polls"
	"github.com/groupchat/pollbot/pkg/gateway"
	"github.com/groupchat/pollbot/pkg/logging"
	"github.com/groupchat/pollbot/pkg/polls"
	"github.com/groupchat/pollbot/pkg/redis"
	"github.com/groupchat/pollbot/pkg/utils"
	"github.com/groupchat/pollbot/pkg/version"
	"go.uber.org/zap"
)

const (
	defaultResyncSpec = "0 * * * * *"
	defaultStream     = "pollbot:events"
)

// Initialize initializes the application.
func Initialize(ctx context.Context) *types.App {
	logger, err := logging.New("pollbot")
	if err != nil {
		// nothing else to do here, we'll just log to stderr'
		panic(err)
	}

	store, err := NewStore(ctx, logger, utils.Env("STORE_DRIVER", "postgres"))
	if err != nil {
		logger.Fatal("Unable to initialize poll store", zap.Error(err))
	}

	// Redis backs the member-count cache and, optionally, event delivery
	var redisClient *redis.Client
	if utils.EnvBool("REDIS_ENABLED", false) {
		redisClient, err = redis.NewClient(ctx, logger)
		if err != nil {
			logger.Warn("Failed to initialize Redis client - falling back to in-process cache and queue",
				zap.Error(err))
			redisClient = nil
		} else {
			logger.Info("Redis client initialized")
		}
	} else {
		logger.Info("Redis disabled - member counts are cached in process")
	}

	var cache gateway.MemberCountCache = gateway.NewLocalMemberCache()
	if redisClient != nil {
		cache = redisClient
	}
	gw := gateway.NewCachedGateway(
		NewGateway(logger),
		cache,
		utils.EnvDuration("MEMBERS_CACHE_TTL", 5*time.Minute),
		logger,
	)

	appVersion := utils.Env("APP_VERSION", version.Version)
	service := polls.NewService(store, gw, logger, appVersion)
	classifier := actions.NewClassifier(store, logger)
	dispatcher := events.NewDispatcher(service, classifier, gw, logger)

	workers := min(utils.EnvInt("WORKERS", 4*runtime.NumCPU()), 64)
	pool := pond.NewPool(workers, pond.WithQueueSize(utils.EnvInt("WORKER_QUEUE", 1024)))
	queue := events.NewQueue(ctx, pool, dispatcher, utils.EnvDuration("EVENT_TIMEOUT", events.DefaultTimeout), logger)

	app := &types.App{
		Store:    store,
		Gateway:  gw,
		Service:  service,
		Pool:     pool,
		Queue:    queue,
		Inbox:    queue,
		Redis:    redisClient,
		CronSpec: utils.Env("RESYNC_CRON", defaultResyncSpec),
		Version:  appVersion,
		Logger:   logger,
	}

	if redisClient != nil {
		stream := utils.Env("EVENTS_STREAM", defaultStream)
		consumer, err := redis.NewStreamConsumer(redisClient, redis.StreamConsumerConfig{
			Stream:   stream,
			Group:    utils.Env("EVENTS_GROUP", "pollbot"),
			Consumer: utils.Env("EVENTS_CONSUMER", hostname()),
			Logger:   logger,
		})
		if err != nil {
			logger.Fatal("Unable to initialize stream consumer", zap.Error(err))
		}
		app.Consumer = consumer
		app.Inbox = events.NewStreamInbox(redisClient, stream)
		logger.Info("Events are delivered through the redis stream", zap.String("stream", stream))
	}

	if err := SetupScheduler(ctx, app); err != nil {
		logger.Fatal("Unable to schedule overview resync", zap.Error(err))
	}

	logger.Info("Pollbot initialized",
		zap.String("version", appVersion),
		zap.Int("workers", workers))

	return app
}

// NewStore opens the poll store named by driver: "postgres" or "memory".
func NewStore(ctx context.Context, logger *zap.Logger, driver string) (db.PollStore, error) {
	switch driver {
	case "postgres":
		return pgpolls.NewWithPoolConfig(ctx, logger,
			utils.Env("POSTGRES_DB", "pollbot"),
			*postgres.GetPoolConfigForComponent("pollbot"))
	case "memory":
		logger.Warn("Using the in-memory poll store, polls are lost on restart")
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", driver)
	}
}

// NewGateway returns the HTTP gateway, or a log-only gateway when GATEWAY_URL is unset.
func NewGateway(logger *zap.Logger) gateway.Gateway {
	baseURL := utils.Env("GATEWAY_URL", "")
	if baseURL == "" {
		logger.Warn("GATEWAY_URL not set - outgoing messages are only logged")
		return gateway.NewLogGateway(logger)
	}
	return gateway.NewHTTPClient(gateway.Opts{
		BaseURL: baseURL,
		Token:   utils.Env("GATEWAY_TOKEN", ""),
		Timeout: utils.EnvDuration("GATEWAY_TIMEOUT", 10*time.Second),
		Logger:  logger,
	})
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "pollbot"
	}
	return name
}

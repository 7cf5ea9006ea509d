package types

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/groupchat/pollbot/app/pollbot/events"
	"github.com/groupchat/pollbot/pkg/db"
	"github.com/groupchat/pollbot/pkg/gateway"
	"github.com/groupchat/pollbot/pkg/polls"
	"github.com/groupchat/pollbot/pkg/redis"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Inbox accepts webhook events for asynchronous handling.
type Inbox interface {
	Enqueue(ctx context.Context, evt gateway.Event) error
}

type App struct {
	// Store persists polls, votes and overview state.
	Store db.PollStore
	// Gateway is the messaging backend with the member-count cache in front.
	Gateway *gateway.CachedGateway
	Service *polls.Service

	// Pool runs one task per inbound event.
	Pool  pond.Pool
	Queue *events.Queue
	// Inbox is Queue, or the Redis stream when events go through a consumer group.
	Inbox Inbox

	// Redis is nil when REDIS_ENABLED is false.
	Redis    *redis.Client
	Consumer *redis.StreamConsumer

	// Cron triggers the overview resync according to CronSpec.
	Cron     *cron.Cron
	CronSpec string

	// Version is the build reported by /poll version and GET /version.
	Version string

	// Zap Logger
	Logger *zap.Logger
	// Server represents the HTTP server instance used to receive webhook events.
	Server *http.Server

	ready atomic.Bool
}

// Ready reports whether the app accepts events.
func (a *App) Ready() bool {
	return a.ready.Load()
}

func (a *App) SetReady(ready bool) {
	a.ready.Store(ready)
}

// Start starts the application and blocks until ctx is cancelled.
func (a *App) Start(ctx context.Context) {
	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error("Server stopped", zap.Error(err))
		}
	}()

	if a.Consumer != nil {
		go func() {
			if err := a.Consumer.Run(ctx, events.StreamHandler(a.Queue, a.Logger)); err != nil && !errors.Is(err, context.Canceled) {
				a.Logger.Error("Stream consumer stopped", zap.Error(err))
			}
		}()
	}

	if a.Cron != nil {
		a.Cron.Start()
		a.Logger.Info("Cron started", zap.String("cronSpec", a.CronSpec))
	}

	a.SetReady(true)
	<-ctx.Done()
	a.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = a.Server.Shutdown(shutdownCtx)

	if a.Cron != nil {
		<-a.Cron.Stop().Done()
	}
	// drain accepted events before the store goes away
	a.Pool.StopAndWait()

	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}
	if err := a.Store.Close(); err != nil {
		a.Logger.Error("Failed to close database connection", zap.Error(err))
	}

	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
}

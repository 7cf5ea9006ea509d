package pollbot

import (
	"context"
	"time"

	"github.com/groupchat/pollbot/app/pollbot/types"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	// resyncAge leaves fresh polls to the request that created them.
	resyncAge   = time.Minute
	resyncBatch = 100
)

// Resyncer is implemented by polls.Service.
type Resyncer interface {
	ResyncPending(ctx context.Context, olderThan time.Time, limit int) (int, error)
}

// SetupScheduler sets up the cron scheduler.
func SetupScheduler(ctx context.Context, app *types.App) error {
	logger := cronLogger{app.Logger.Sugar()}
	// Seconds field, optional
	app.Cron = cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	_, err := app.Cron.AddFunc(app.CronSpec, ResyncJob(ctx, app.Service, app.Logger, time.Now))
	return err
}

// ResyncJob refreshes polls whose initial overview never made it out.
func ResyncJob(ctx context.Context, resyncer Resyncer, logger *zap.Logger, now func() time.Time) func() {
	return func() {
		// keep each run bounded
		rctx, cancel := context.WithTimeout(ctx, 50*time.Second)
		defer cancel()

		n, err := resyncer.ResyncPending(rctx, now().Add(-resyncAge), resyncBatch)
		if err != nil {
			logger.Error("Overview resync failed", zap.Error(err))
			return
		}
		if n > 0 {
			logger.Info("Overviews resynced", zap.Int("polls", n))
		}
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	*zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.Errorw(msg, append(keysAndValues, "error", err)...)
}

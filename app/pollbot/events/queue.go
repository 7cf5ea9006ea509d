package events

import (
	"context"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/groupchat/pollbot/pkg/db"
	"github.com/groupchat/pollbot/pkg/gateway"
	"go.uber.org/zap"
)

// DefaultTimeout bounds the handling of one event.
const DefaultTimeout = 30 * time.Second

// Queue runs dispatches on a bounded worker pool.
type Queue struct {
	// base outlives the request that enqueued the event
	base       context.Context
	pool       pond.Pool
	dispatcher *Dispatcher
	timeout    time.Duration
	logger     *zap.Logger
}

func NewQueue(base context.Context, pool pond.Pool, dispatcher *Dispatcher, timeout time.Duration, logger *zap.Logger) *Queue {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Queue{
		base:       base,
		pool:       pool,
		dispatcher: dispatcher,
		timeout:    timeout,
		logger:     logger.With(zap.String("component", "queue")),
	}
}

// Enqueue schedules the event and returns without waiting. It blocks only
// while the pool queue is full.
func (q *Queue) Enqueue(_ context.Context, evt gateway.Event) error {
	q.pool.Submit(func() {
		if err := q.run(q.base, evt); err != nil {
			q.logFailure(evt, err)
		}
	})
	return nil
}

// logFailure keeps store rejections (a vote for an unknown option or poll) apart
// from infrastructure failures.
func (q *Queue) logFailure(evt gateway.Event, err error) {
	fields := []zap.Field{
		zap.String("event_id", evt.ID),
		zap.String("type", string(evt.Type)),
		zap.String("conversation_id", evt.ConversationID),
		zap.Error(err),
	}
	if db.IsConstraintViolation(err) {
		q.logger.Warn("Event rejected by store constraint", fields...)
		return
	}
	q.logger.Error("Event failed", fields...)
}

// Process runs the event on the pool and waits for the outcome.
func (q *Queue) Process(ctx context.Context, evt gateway.Event) error {
	return q.pool.SubmitErr(func() error {
		return q.run(ctx, evt)
	}).Wait()
}

func (q *Queue) run(ctx context.Context, evt gateway.Event) error {
	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()
	return q.dispatcher.Dispatch(ctx, evt)
}

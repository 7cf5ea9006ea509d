package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/groupchat/pollbot/app/pollbot/events"
	"github.com/groupchat/pollbot/pkg/db"
	"github.com/groupchat/pollbot/pkg/gateway"
	"github.com/groupchat/pollbot/pkg/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func newQueue(t *testing.T, service *fakeService) *events.Queue {
	return newQueueWithLogger(t, service, zaptest.NewLogger(t))
}

func newQueueWithLogger(t *testing.T, service *fakeService, logger *zap.Logger) *events.Queue {
	pool := pond.NewPool(2, pond.WithQueueSize(8))
	t.Cleanup(pool.StopAndWait)
	d := events.NewDispatcher(service, &fakeClassifier{}, nil, logger)
	return events.NewQueue(context.Background(), pool, d, time.Second, logger)
}

func textEvent(id string) gateway.Event {
	return gateway.Event{ID: id, Type: gateway.EventText, ConversationID: "c1", Sender: alice, Text: "hello"}
}

func TestQueueEnqueue(t *testing.T) {
	service := &fakeService{}
	q := newQueue(t, service)

	for _, id := range []string{"e1", "e2", "e3"} {
		require.NoError(t, q.Enqueue(context.Background(), textEvent(id)))
	}

	assert.Eventually(t, func() bool { return service.textCount() == 3 }, time.Second, 10*time.Millisecond)
}

func TestQueueProcessReturnsError(t *testing.T) {
	service := &fakeService{handleErr: errors.New("store down")}
	q := newQueue(t, service)

	err := q.Process(context.Background(), textEvent("e1"))
	assert.EqualError(t, err, "store down")
}

func TestQueueLogsConstraintViolationsAsWarnings(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	service := &fakeService{handleErr: fmt.Errorf("save vote: %w", db.ErrConstraintViolation)}
	q := newQueueWithLogger(t, service, zap.New(core))

	require.NoError(t, q.Enqueue(context.Background(), textEvent("e1")))
	assert.Eventually(t, func() bool {
		return logs.FilterMessage("Event rejected by store constraint").Len() == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, zapcore.WarnLevel, logs.FilterMessage("Event rejected by store constraint").All()[0].Level)

	service.mu.Lock()
	service.handleErr = errors.New("store down")
	service.mu.Unlock()
	require.NoError(t, q.Enqueue(context.Background(), textEvent("e2")))
	assert.Eventually(t, func() bool {
		return logs.FilterMessage("Event failed").FilterLevelExact(zapcore.ErrorLevel).Len() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestStreamInbox(t *testing.T) {
	publisher := &fakePublisher{}
	inbox := events.NewStreamInbox(publisher, "pollbot:events")

	require.NoError(t, inbox.Enqueue(context.Background(), textEvent("e1")))

	assert.Equal(t, "pollbot:events", publisher.stream)
	require.Len(t, publisher.data, 1)
	var decoded gateway.Event
	require.NoError(t, json.Unmarshal(publisher.data[0], &decoded))
	assert.Equal(t, textEvent("e1"), decoded)

	publisher.err = errors.New("redis down")
	assert.Error(t, inbox.Enqueue(context.Background(), textEvent("e2")))
}

func TestStreamHandler(t *testing.T) {
	service := &fakeService{}
	q := newQueue(t, service)
	handler := events.StreamHandler(q, zaptest.NewLogger(t))
	ctx := context.Background()

	data, err := json.Marshal(gateway.Event{Type: gateway.EventText, ConversationID: "c1", Sender: alice, Text: "hi"})
	require.NoError(t, err)

	require.NoError(t, handler(ctx, redis.Message{ID: "5-0", Values: map[string]interface{}{"data": string(data)}}))
	require.Equal(t, 1, service.textCount())

	// undecodable and invalid entries are acknowledged
	assert.NoError(t, handler(ctx, redis.Message{ID: "6-0", Values: map[string]interface{}{"data": "{"}}))
	invalid, err := json.Marshal(gateway.Event{Type: gateway.EventText})
	require.NoError(t, err)
	assert.NoError(t, handler(ctx, redis.Message{ID: "7-0", Values: map[string]interface{}{"data": string(invalid)}}))

	// a store constraint rejection never succeeds on replay
	service.handleErr = fmt.Errorf("save vote: %w", db.ErrConstraintViolation)
	assert.NoError(t, handler(ctx, redis.Message{ID: "8-0", Values: map[string]interface{}{"data": string(data)}}))

	service.handleErr = errors.New("store down")
	assert.Error(t, handler(ctx, redis.Message{ID: "9-0", Values: map[string]interface{}{"data": string(data)}}))
}

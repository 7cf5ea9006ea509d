package gateway

import (
	"context"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
)

// MemberCountCache stores conversation sizes for a limited time.
type MemberCountCache interface {
	MemberCount(ctx context.Context, conversationID string) (int, bool, error)
	SetMemberCount(ctx context.Context, conversationID string, n int, ttl time.Duration) error
}

// CachedGateway serves member counts from a cache and forwards everything else.
type CachedGateway struct {
	Gateway
	cache  MemberCountCache
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedGateway(inner Gateway, cache MemberCountCache, ttl time.Duration, logger *zap.Logger) *CachedGateway {
	return &CachedGateway{
		Gateway: inner,
		cache:   cache,
		ttl:     ttl,
		logger:  logger.With(zap.String("component", "member_cache")),
	}
}

// ConversationMemberCount answers from the cache and falls back to the backend on a miss.
// Cache failures only cost a backend lookup.
func (g *CachedGateway) ConversationMemberCount(ctx context.Context, conversationID string) (int, error) {
	n, ok, err := g.cache.MemberCount(ctx, conversationID)
	if err != nil {
		g.logger.Warn("Member cache read failed", zap.String("conversation_id", conversationID), zap.Error(err))
	} else if ok {
		return n, nil
	}

	n, err = g.Gateway.ConversationMemberCount(ctx, conversationID)
	if err != nil {
		return 0, err
	}
	g.store(ctx, conversationID, n)
	return n, nil
}

// SeedMemberCount records a count learnt from an inbound event.
func (g *CachedGateway) SeedMemberCount(ctx context.Context, conversationID string, n int) {
	g.store(ctx, conversationID, n)
}

func (g *CachedGateway) store(ctx context.Context, conversationID string, n int) {
	if err := g.cache.SetMemberCount(ctx, conversationID, n, g.ttl); err != nil {
		g.logger.Warn("Member cache write failed", zap.String("conversation_id", conversationID), zap.Error(err))
	}
}

type cachedCount struct {
	n       int
	expires time.Time
}

// LocalMemberCache is the in-process MemberCountCache used when redis is disabled.
type LocalMemberCache struct {
	entries *xsync.Map[string, cachedCount]
	now     func() time.Time
}

func NewLocalMemberCache() *LocalMemberCache {
	return &LocalMemberCache{
		entries: xsync.NewMap[string, cachedCount](),
		now:     time.Now,
	}
}

func (c *LocalMemberCache) MemberCount(_ context.Context, conversationID string) (int, bool, error) {
	entry, ok := c.entries.Load(conversationID)
	if !ok {
		return 0, false, nil
	}
	if !c.now().Before(entry.expires) {
		c.entries.Delete(conversationID)
		return 0, false, nil
	}
	return entry.n, true, nil
}

func (c *LocalMemberCache) SetMemberCount(_ context.Context, conversationID string, n int, ttl time.Duration) error {
	c.entries.Store(conversationID, cachedCount{n: n, expires: c.now().Add(ttl)})
	return nil
}

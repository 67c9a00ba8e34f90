package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-dashboard/internal/domain"
)

const cachePrefix = "ticketgw:"

// PageKey identifies a cached ticket listing.
type PageKey struct {
	Page    int
	PerPage int
	GroupID *int64
}

func (k PageKey) String() string {
	group := "all"
	if k.GroupID != nil && *k.GroupID != 0 {
		group = fmt.Sprint(*k.GroupID)
	}
	return fmt.Sprintf("%spage:%s:%d:%d", cachePrefix, group, k.Page, k.PerPage)
}

func ticketKey(id int64, withConversations bool) string {
	if withConversations {
		return fmt.Sprintf("%sticket:%d:full", cachePrefix, id)
	}
	return fmt.Sprintf("%sticket:%d", cachePrefix, id)
}

// TicketCache keeps recent upstream answers. Implementations fail open: any
// backend error is a miss.
type TicketCache interface {
	GetPage(ctx context.Context, key PageKey) (*domain.TicketPage, bool)
	SetPage(ctx context.Context, key PageKey, page *domain.TicketPage)
	GetTicket(ctx context.Context, id int64, withConversations bool) (*domain.Ticket, bool)
	SetTicket(ctx context.Context, ticket *domain.Ticket, withConversations bool)
	InvalidateTicket(ctx context.Context, id int64)
}

type redisTicketCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewTicketCache returns a Redis backed cache, or a no-op cache when client is
// nil or ttl is not positive.
func NewTicketCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) TicketCache {
	if client == nil || ttl <= 0 {
		return nopTicketCache{}
	}
	return &redisTicketCache{client: client, ttl: ttl, logger: logger.Named("ticket_cache")}
}

func (c *redisTicketCache) GetPage(ctx context.Context, key PageKey) (*domain.TicketPage, bool) {
	var page domain.TicketPage
	if !c.get(ctx, key.String(), &page) {
		return nil, false
	}
	if page.Tickets == nil {
		page.Tickets = []domain.Ticket{}
	}
	return &page, true
}

func (c *redisTicketCache) SetPage(ctx context.Context, key PageKey, page *domain.TicketPage) {
	c.set(ctx, key.String(), page)
}

func (c *redisTicketCache) GetTicket(ctx context.Context, id int64, withConversations bool) (*domain.Ticket, bool) {
	var ticket domain.Ticket
	if !c.get(ctx, ticketKey(id, withConversations), &ticket) {
		return nil, false
	}
	return &ticket, true
}

func (c *redisTicketCache) SetTicket(ctx context.Context, ticket *domain.Ticket, withConversations bool) {
	c.set(ctx, ticketKey(ticket.ID, withConversations), ticket)
}

func (c *redisTicketCache) InvalidateTicket(ctx context.Context, id int64) {
	if err := c.client.Del(ctx, ticketKey(id, false), ticketKey(id, true)).Err(); err != nil {
		c.logger.Warn("cache invalidate failed", zap.Int64("ticket_id", id), zap.Error(err))
	}
}

func (c *redisTicketCache) get(ctx context.Context, key string, out any) bool {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.logger.Warn("cache entry corrupt", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (c *redisTicketCache) set(ctx context.Context, key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

type nopTicketCache struct{}

func (nopTicketCache) GetPage(context.Context, PageKey) (*domain.TicketPage, bool) { return nil, false }
func (nopTicketCache) SetPage(context.Context, PageKey, *domain.TicketPage)          {}
func (nopTicketCache) GetTicket(context.Context, int64, bool) (*domain.Ticket, bool) {
	return nil, false
}
func (nopTicketCache) SetTicket(context.Context, *domain.Ticket, bool) {}
func (nopTicketCache) InvalidateTicket(context.Context, int64)         {}

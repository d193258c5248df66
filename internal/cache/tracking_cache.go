// Package cache keeps rendered tracking views in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"flipbook-fulfillment-service/internal/dto"

	"github.com/redis/go-redis/v9"
)

// flipbook:tracking:{ORDER_NUMBER} -> TrackingView JSON
const keyTrackingView = "flipbook:tracking:%s"

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

type TrackingCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewTrackingCache(rdb *redis.Client, ttl time.Duration) *TrackingCache {
	return &TrackingCache{rdb: rdb, ttl: ttl}
}

func Key(orderNumber string) string {
	return fmt.Sprintf(keyTrackingView, orderNumber)
}

func (c *TrackingCache) Get(ctx context.Context, orderNumber string) (*dto.TrackingView, bool, error) {
	b, err := c.rdb.Get(ctx, Key(orderNumber)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var v dto.TrackingView
	if err := json.Unmarshal(b, &v); err != nil {
		// stale shape from an older release; treat as a miss
		_ = c.rdb.Del(ctx, Key(orderNumber)).Err()
		return nil, false, nil
	}
	return &v, true, nil
}

func (c *TrackingCache) Set(ctx context.Context, v *dto.TrackingView) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, Key(v.OrderNumber), b, c.ttl).Err()
}

func (c *TrackingCache) Invalidate(ctx context.Context, orderNumber string) error {
	return c.rdb.Del(ctx, Key(orderNumber)).Err()
}

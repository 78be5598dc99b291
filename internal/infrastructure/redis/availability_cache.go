package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("キャッシュが見つかりません")

// AvailabilityCacheInterface はイベント残席数キャッシュ
type AvailabilityCacheInterface interface {
	Get(ctx context.Context, eventID string) (int, error)
	Set(ctx context.Context, eventID string, available int, ttl time.Duration) error
	Invalidate(ctx context.Context, eventID string) error
}

var _ AvailabilityCacheInterface = (*AvailabilityCache)(nil)

// AvailabilityCache は残席数を Redis に保持する。正は台帳側で、ここは読み取り用
type AvailabilityCache struct {
	client *redis.Client
}

func NewAvailabilityCache(client *redis.Client) *AvailabilityCache {
	return &AvailabilityCache{client: client}
}

// Get はキャッシュされた残席数を返す。無い場合は ErrCacheMiss
func (c *AvailabilityCache) Get(ctx context.Context, eventID string) (int, error) {
	val, err := c.client.Get(ctx, availableKey(eventID)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrCacheMiss
		}
		return 0, fmt.Errorf("キャッシュ取得に失敗: %w", err)
	}
	return val, nil
}

func (c *AvailabilityCache) Set(ctx context.Context, eventID string, available int, ttl time.Duration) error {
	if err := c.client.Set(ctx, availableKey(eventID), available, ttl).Err(); err != nil {
		return fmt.Errorf("キャッシュ保存に失敗: %w", err)
	}
	return nil
}

// Invalidate は予約・キャンセルの後に呼ばれる
func (c *AvailabilityCache) Invalidate(ctx context.Context, eventID string) error {
	if err := c.client.Del(ctx, availableKey(eventID)).Err(); err != nil {
		return fmt.Errorf("キャッシュ無効化に失敗: %w", err)
	}
	return nil
}

func availableKey(eventID string) string {
	return fmt.Sprintf("event:available:%s", eventID)
}

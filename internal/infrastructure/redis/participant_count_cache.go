package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrCacheMiss = errors.New("キャッシュが見つかりません")
)

// ParticipantCountCache はイベントの参加者数をキャッシュする
type ParticipantCountCache struct {
	client *redis.Client
}

// NewParticipantCountCache は新しいParticipantCountCacheインスタンスを作成する
func NewParticipantCountCache(client *redis.Client) *ParticipantCountCache {
	return &ParticipantCountCache{client: client}
}

// GetCount はイベントの参加者数をキャッシュから取得する
func (c *ParticipantCountCache) GetCount(ctx context.Context, eventID string) (int, error) {
	val, err := c.client.Get(ctx, countKey(eventID)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrCacheMiss
		}
		return 0, fmt.Errorf("キャッシュ取得に失敗: %w", err)
	}
	return val, nil
}

// SetCount はイベントの参加者数をキャッシュに保存する
func (c *ParticipantCountCache) SetCount(ctx context.Context, eventID string, count int, ttl time.Duration) error {
	if err := c.client.Set(ctx, countKey(eventID), count, ttl).Err(); err != nil {
		return fmt.Errorf("キャッシュ保存に失敗: %w", err)
	}
	return nil
}

// Invalidate はイベントのキャッシュを無効化する
func (c *ParticipantCountCache) Invalidate(ctx context.Context, eventID string) error {
	if err := c.client.Del(ctx, countKey(eventID)).Err(); err != nil {
		return fmt.Errorf("キャッシュ無効化に失敗: %w", err)
	}
	return nil
}

func countKey(eventID string) string {
	return fmt.Sprintf("participants:count:%s", eventID)
}

package cache

import (
	"context"

	"github.com/go-redis/redis/v8"
	"github.com/thereayou/matchmaker/internal/matchmaking"
)

// WaitQueue очередь ожидания на основе Redis-списка: RPUSH в хвост, LRANGE для обхода.
type WaitQueue struct {
	client *redis.Client
	key    string
}

func NewWaitQueue(client *redis.Client, key string) *WaitQueue {
	if key == "" {
		key = DefaultPrefix + "queue"
	}
	return &WaitQueue{client: client, key: key}
}

func (q *WaitQueue) PushBack(ctx context.Context, name string) error {
	if name == "" {
		return nil
	}
	return q.client.RPush(ctx, q.key, name).Err()
}

// RemoveAll удаляет все вхождения имени (LREM с count = 0).
func (q *WaitQueue) RemoveAll(ctx context.Context, name string) error {
	return q.client.LRem(ctx, q.key, 0, name).Err()
}

func (q *WaitQueue) Snapshot(ctx context.Context) ([]string, error) {
	return q.client.LRange(ctx, q.key, 0, -1).Result()
}

func (q *WaitQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

var _ matchmaking.WaitQueue = (*WaitQueue)(nil)

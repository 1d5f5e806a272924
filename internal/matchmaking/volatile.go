package matchmaking

import (
	"context"
	"errors"
)

// Ошибки кэша и очереди никогда не прерывают запрос: они логируются,
// а движок продолжает работу через хранилище.

func roomKey(name string) string {
	return "room:" + name
}

func playerKey(playerID string) string {
	return "player:" + playerID
}

func cacheKeys(roomName string, members []string) []string {
	keys := make([]string, 0, len(members)+1)
	keys = append(keys, roomKey(roomName))
	for _, m := range members {
		keys = append(keys, playerKey(m))
	}
	return keys
}

// remember кэширует пару для комнаты и всех ее участников.
func (e *Engine) remember(ctx context.Context, roomName string, members []string, target string) {
	for _, key := range cacheKeys(roomName, members) {
		e.cacheSet(ctx, key, target)
	}
}

func (e *Engine) cacheGet(ctx context.Context, key string) (string, bool) {
	if e.cache == nil {
		return "", false
	}
	ctx, cancel := context.WithTimeout(ctx, e.opts.CacheTimeout)
	defer cancel()

	value, ok, err := e.cache.Get(ctx, key)
	if err != nil {
		e.log.Warn("match cache read failed", "key", key, "error", errors.Join(ErrCacheUnavailable, err))
		return "", false
	}
	return value, ok && value != ""
}

func (e *Engine) cacheSet(ctx context.Context, key, value string) {
	if e.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, e.opts.CacheTimeout)
	defer cancel()

	if err := e.cache.Set(ctx, key, value, e.opts.CacheTTL); err != nil {
		e.log.Warn("match cache write failed", "key", key, "error", errors.Join(ErrCacheUnavailable, err))
	}
}

func (e *Engine) cacheDelete(ctx context.Context, keys ...string) {
	if e.cache == nil || len(keys) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, e.opts.CacheTimeout)
	defer cancel()

	if err := e.cache.Delete(ctx, keys...); err != nil {
		e.log.Warn("match cache delete failed", "keys", keys, "error", errors.Join(ErrCacheUnavailable, err))
	}
}

func (e *Engine) queueSnapshot(ctx context.Context) ([]string, error) {
	if e.queue == nil {
		return nil, ErrQueueUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, e.opts.CacheTimeout)
	defer cancel()

	names, err := e.queue.Snapshot(ctx)
	if err != nil {
		return nil, errors.Join(ErrQueueUnavailable, err)
	}
	return names, nil
}

func (e *Engine) queuePush(ctx context.Context, name string) error {
	if e.queue == nil {
		return ErrQueueUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, e.opts.CacheTimeout)
	defer cancel()

	if err := e.queue.PushBack(ctx, name); err != nil {
		return errors.Join(ErrQueueUnavailable, err)
	}
	return nil
}

func (e *Engine) dequeue(ctx context.Context, name string) {
	if e.queue == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, e.opts.CacheTimeout)
	defer cancel()

	if err := e.queue.RemoveAll(ctx, name); err != nil {
		e.log.Warn("wait queue remove failed", "room", name, "error", errors.Join(ErrQueueUnavailable, err))
	}
}

package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

// Фиксированное окно: счетчик живет ровно одно окно.
//
// KEYS[1]: ключ счетчика
// ARGV[1]: длина окна в миллисекундах
var fixedWindowScript = redis.NewScript(`
local current = redis.call('INCR', KEYS[1])
if current == 1 then
    redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return current
`)

type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
	prefix string
	log    *slog.Logger
}

// NewRateLimiter ограничивает число запросов limit на окно window для одного IP.
func NewRateLimiter(client *redis.Client, limit int, window time.Duration, log *slog.Logger) *RateLimiter {
	if log == nil {
		log = slog.Default()
	}
	return &RateLimiter{
		client: client,
		limit:  int64(limit),
		window: window,
		prefix: "matchmaking:ratelimit:",
		log:    log,
	}
}

// Allow увеличивает счетчик ключа и сообщает, укладывается ли запрос в лимит.
func (l *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	count, err := fixedWindowScript.Run(ctx, l.client, []string{l.prefix + key}, l.window.Milliseconds()).Int64()
	if err != nil {
		return true, err
	}
	return count <= l.limit, nil
}

// Middleware при недоступном Redis пропускает запрос.
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 100*time.Millisecond)
		defer cancel()

		allowed, err := l.Allow(ctx, c.ClientIP())
		if err != nil {
			l.log.Warn("rate limiter unavailable", "error", err)
			c.Next()
			return
		}

		if !allowed {
			c.Header("Retry-After", strconv.Itoa(int(l.window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/thereayou/matchmaker/internal/handlers/dto"
)

// Pinger проверка доступности зависимости.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	store   Pinger
	cache   Pinger
	timeout time.Duration
}

// NewHealthHandler принимает nil для зависимостей, работающих в процессе:
// они всегда считаются доступными.
func NewHealthHandler(store, cache Pinger) *HealthHandler {
	return &HealthHandler{store: store, cache: cache, timeout: time.Second}
}

// Health обрабатывает GET /health. Недоступный кэш не делает сервис нерабочим.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	resp := dto.HealthResponse{
		Status:         "ok",
		Timestamp:      time.Now().UTC(),
		StoreConnected: alive(ctx, h.store),
		CacheConnected: alive(ctx, h.cache),
	}

	code := http.StatusOK
	if !resp.StoreConnected {
		resp.Status = "degraded"
		code = http.StatusServiceUnavailable
	} else if !resp.CacheConnected {
		resp.Status = "degraded"
	}

	c.JSON(code, resp)
}

// Ping обрабатывает GET /ping
func (h *HealthHandler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, dto.PingResponse{Status: "pong", Timestamp: time.Now().UTC()})
}

func alive(ctx context.Context, p Pinger) bool {
	if p == nil {
		return true
	}
	return p.Ping(ctx) == nil
}

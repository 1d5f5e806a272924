package server

import (
	"github.com/gin-gonic/gin"
	"github.com/thereayou/matchmaker/internal/handlers"
	"github.com/thereayou/matchmaker/internal/middleware"
)

type Handlers struct {
	Matchmaking *handlers.MatchmakingHandler
	Health      *handlers.HealthHandler
	WebSocket   *handlers.WebSocketHandler
}

func APIEndpoints(r *gin.Engine, h Handlers) {
	r.GET("/health", h.Health.Health)
	r.GET("/ping", h.Health.Ping)

	// Matchmaking endpoints
	mm := r.Group("/matchmaking")
	{
		mm.POST("", middleware.BodyLimit(middleware.DefaultBodyLimit), h.Matchmaking.Handle)
		mm.GET("/rooms/:name", h.Matchmaking.GetRoom)
		mm.GET("/ws", h.WebSocket.HandleWebSocket)
	}
}

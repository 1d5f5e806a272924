package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/thereayou/matchmaker/internal/handlers/dto"
	"github.com/thereayou/matchmaker/internal/middleware"
	ws "github.com/thereayou/matchmaker/internal/websocket"
)

// WebSocketHandler управляет WebSocket соединениями
type WebSocketHandler struct {
	hub            *ws.Hub
	messageHandler *MessageHandler
	upgrader       websocket.Upgrader
	ctx            context.Context
}

// NewWebSocketHandler создает новый WebSocket handler. ctx ограничивает
// время жизни обработки входящих сообщений.
func NewWebSocketHandler(ctx context.Context, hub *ws.Hub, messageHandler *MessageHandler, allowedOrigins []string) *WebSocketHandler {
	return &WebSocketHandler{
		hub:            hub,
		messageHandler: messageHandler,
		ctx:            ctx,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || middleware.OriginAllowed(allowedOrigins, origin)
			},
		},
	}
}

// HandleWebSocket обрабатывает GET /matchmaking/ws?playerId=
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	playerID := strings.TrimSpace(c.Query("playerId"))
	if playerID == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "playerId is required"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := ws.NewClient(h.hub, conn, playerID)
	if !h.hub.Register(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump(h.ctx, h.messageHandler)
}

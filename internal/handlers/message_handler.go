package handlers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/thereayou/matchmaker/internal/websocket"
)

var errInternal = errors.New("internal server error")

// MessageHandler отвечает на запросы, пришедшие по websocket.
type MessageHandler struct {
	engine Matchmaker
	log    *slog.Logger
}

func NewMessageHandler(engine Matchmaker, log *slog.Logger) *MessageHandler {
	if log == nil {
		log = slog.Default()
	}
	return &MessageHandler{engine: engine, log: log}
}

func (h *MessageHandler) HandleMessage(ctx context.Context, client *websocket.Client, msg *websocket.Message) error {
	switch msg.Type {
	case websocket.TypeCheckRoom:
		return h.handleCheckRoom(ctx, client)

	default:
		return websocket.ErrUnknownMessage
	}
}

// handleCheckRoom повторяет action=check_room для игрока соединения.
func (h *MessageHandler) handleCheckRoom(ctx context.Context, client *websocket.Client) error {
	res, err := h.engine.CheckRoom(ctx, client.PlayerID)
	if err != nil {
		h.log.Error("websocket check_room failed", "player", client.PlayerID, "error", err)
		return errInternal
	}
	return client.SendMessage(websocket.TypeRoomStatus, toResponse(res))
}

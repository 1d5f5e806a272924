package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Время ожидания записи
	writeWait = 10 * time.Second

	// Время ожидания pong от клиента
	pongWait = 60 * time.Second

	// Интервал отправки ping
	pingPeriod = (pongWait * 9) / 10

	// Максимальный размер сообщения
	maxMessageSize = 4 * 1024
)

// MessageHandler обрабатывает прикладные сообщения клиента.
type MessageHandler interface {
	HandleMessage(ctx context.Context, client *Client, msg *Message) error
}

func NewClient(hub *Hub, conn *websocket.Conn, playerID string) *Client {
	return &Client{
		ID:       uuid.New(),
		PlayerID: playerID,
		Conn:     conn,
		Send:     make(chan []byte, 64),
		Hub:      hub,
		log:      hub.log,
	}
}

// ReadPump читает сообщения от клиента
func (c *Client) ReadPump(ctx context.Context, handler MessageHandler) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Message
		err := c.Conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("websocket read failed", "client", c.ID, "error", err)
			}
			break
		}

		msg.PlayerID = c.PlayerID

		switch msg.Type {
		case TypePong:
			continue
		case TypePing:
			c.SendMessage(TypePong, nil)
			continue
		}

		if handler != nil {
			if err := handler.HandleMessage(ctx, c, &msg); err != nil {
				c.log.Warn("websocket message failed", "client", c.ID, "type", msg.Type, "error", err)
				c.SendError(err.Error())
			}
		}
	}
}

// WritePump отправляет сообщения клиенту
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub закрыл канал
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) SendMessage(msgType MessageType, data interface{}) error {
	msgData, err := encode(msgType, c.PlayerID, data)
	if err != nil {
		return err
	}

	return c.Hub.sendTo(c, msgData)
}

func (c *Client) SendError(errorMsg string) {
	c.SendMessage(TypeError, map[string]string{
		"error": errorMsg,
	})
}

// Decode разбирает Data сообщения в v.
func (m *Message) Decode(v interface{}) error {
	if len(m.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return ErrInvalidMessage
	}
	return nil
}

package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/thereayou/matchmaker/internal/matchmaking"
)

// MessageType определяет типы сообщений
type MessageType string

const (
	// Системные типы
	TypeConnect MessageType = "connect"
	TypePing    MessageType = "ping"
	TypePong    MessageType = "pong"
	TypeError   MessageType = "error"

	// Типы подбора
	TypeMatchFound MessageType = "match_found"
	TypeCheckRoom  MessageType = "check_room"
	TypeRoomStatus MessageType = "room_status"
)

type Message struct {
	Type      MessageType     `json:"type"`
	PlayerID  string          `json:"player_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// MatchPayload тело сообщения match_found для одного игрока.
type MatchPayload struct {
	Room       string    `json:"room"`
	TargetRoom string    `json:"targetRoom"`
	Opponents  []string  `json:"opponents"`
	MatchedAt  time.Time `json:"matchedAt"`
}

type Client struct {
	ID       uuid.UUID
	PlayerID string
	Conn     *websocket.Conn
	Send     chan []byte
	Hub      *Hub
	log      *slog.Logger
}

type Hub struct {
	clients map[uuid.UUID]*Client

	// Клиенты по игроку (один игрок может иметь несколько соединений)
	playerClients map[string]map[uuid.UUID]*Client

	register   chan *Client
	unregister chan *Client

	mu   sync.RWMutex
	done chan struct{}
	log  *slog.Logger
}

// NewHub создает новый Hub
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		clients:       make(map[uuid.UUID]*Client),
		playerClients: make(map[string]map[uuid.UUID]*Client),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		done:          make(chan struct{}),
		log:           log.With("component", "ws_hub"),
	}
}

// Run обслуживает регистрацию клиентов до отмены ctx
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	defer h.stop()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-ticker.C:
			h.ping()
		}
	}
}

// stop закрывает каналы отправки всех клиентов; WritePump закроет соединения.
func (h *Hub) stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	close(h.done)
	for id, client := range h.clients {
		close(client.Send)
		delete(h.clients, id)
	}
	h.playerClients = make(map[string]map[uuid.UUID]*Client)
}

// Register регистрирует нового клиента
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister отменяет регистрацию клиента
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client

	if _, ok := h.playerClients[client.PlayerID]; !ok {
		h.playerClients[client.PlayerID] = make(map[uuid.UUID]*Client)
	}
	h.playerClients[client.PlayerID][client.ID] = client

	h.log.Debug("client registered", "client", client.ID, "player", client.PlayerID)

	if data, err := encode(TypeConnect, client.PlayerID, nil); err == nil {
		h.push(client, data)
	}
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}

	if clients, ok := h.playerClients[client.PlayerID]; ok {
		delete(clients, client.ID)
		if len(clients) == 0 {
			delete(h.playerClients, client.PlayerID)
		}
	}

	delete(h.clients, client.ID)
	close(client.Send)

	h.log.Debug("client unregistered", "client", client.ID, "player", client.PlayerID)
}

// SendToPlayer отправляет сообщение во все соединения игрока
func (h *Hub) SendToPlayer(playerID string, message []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for _, client := range h.playerClients[playerID] {
		if h.push(client, message) {
			sent++
		}
	}
	return sent
}

// MatchFound рассылает событие участникам обеих комнат пары.
func (h *Hub) MatchFound(_ context.Context, event matchmaking.MatchEvent) error {
	sides := []struct {
		room, target string
		members      []string
		opponents    []string
	}{
		{event.Room, event.Target, event.Members, event.TargetIDs},
		{event.Target, event.Room, event.TargetIDs, event.Members},
	}

	for _, side := range sides {
		for _, playerID := range side.members {
			data, err := encode(TypeMatchFound, playerID, MatchPayload{
				Room:       side.room,
				TargetRoom: side.target,
				Opponents:  side.opponents,
				MatchedAt:  event.MatchedAt,
			})
			if err != nil {
				return err
			}
			h.SendToPlayer(playerID, data)
		}
	}
	return nil
}

// OnlinePlayers возвращает число игроков с открытым соединением
func (h *Hub) OnlinePlayers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.playerClients)
}

// sendTo пишет клиенту, только пока он зарегистрирован: канал Send
// закрывается под той же блокировкой.
func (h *Hub) sendTo(client *Client, message []byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.clients[client.ID]; !ok {
		return ErrClientGone
	}
	if !h.push(client, message) {
		return ErrClientQueueFull
	}
	return nil
}

func (h *Hub) push(client *Client, message []byte) bool {
	select {
	case client.Send <- message:
		return true
	default:
		h.log.Warn("client send channel full", "client", client.ID, "player", client.PlayerID)
		return false
	}
}

func (h *Hub) ping() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := encode(TypePing, "", nil)
	if err != nil {
		return
	}
	for _, client := range h.clients {
		select {
		case client.Send <- data:
		default:
		}
	}
}

func encode(msgType MessageType, playerID string, data interface{}) ([]byte, error) {
	msg := Message{
		Type:      msgType,
		PlayerID:  playerID,
		Timestamp: time.Now().UTC(),
	}

	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		msg.Data = raw
	}

	return json.Marshal(msg)
}

var _ matchmaking.Notifier = (*Hub)(nil)

package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis/v8"
	"github.com/thereayou/matchmaker/internal/matchmaking"
)

const DefaultChannel = "matchmaking:matches"

// Relay публикует события о парах в Redis и раздает полученные события
// локальному Hub. Так игрок получает уведомление, к какому бы экземпляру
// сервиса он ни был подключен.
type Relay struct {
	client  *redis.Client
	channel string
	hub     *Hub
	log     *slog.Logger
}

func NewRelay(client *redis.Client, channel string, hub *Hub, log *slog.Logger) *Relay {
	if channel == "" {
		channel = DefaultChannel
	}
	if log == nil {
		log = slog.Default()
	}
	return &Relay{
		client:  client,
		channel: channel,
		hub:     hub,
		log:     log.With("component", "match_relay"),
	}
}

// MatchFound публикует событие. При ошибке публикации событие доставляется
// только локальным клиентам.
func (r *Relay) MatchFound(ctx context.Context, event matchmaking.MatchEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		r.log.Warn("match publish failed, delivering locally", "room", event.Room, "error", err)
		return r.hub.MatchFound(ctx, event)
	}
	return nil
}

// Start подписывается на канал и в фоне пересылает события в Hub до отмены ctx.
func (r *Relay) Start(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}

	go r.forward(ctx, sub)
	return nil
}

func (r *Relay) forward(ctx context.Context, sub *redis.PubSub) {
	defer sub.Close()

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}

			var event matchmaking.MatchEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				r.log.Warn("malformed match event", "error", err)
				continue
			}
			if err := r.hub.MatchFound(ctx, event); err != nil {
				r.log.Warn("match delivery failed", "room", event.Room, "error", err)
			}
		}
	}
}

var _ matchmaking.Notifier = (*Relay)(nil)

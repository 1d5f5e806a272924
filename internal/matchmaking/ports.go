package matchmaking

import (
	"context"
	"time"

	"github.com/thereayou/matchmaker/internal/models"
)

// RoomStore долговременное хранилище комнат, источник истины.
//
// SetTarget обязан изменить обе строки или ни одной и назначать соперника
// только комнатам с пустым target_room; иначе возвращает ErrConflictLost.
// Методы поиска возвращают ErrRoomNotFound, если подходящей строки нет.
type RoomStore interface {
	Upsert(ctx context.Context, room models.Room) (*models.Room, error)
	Get(ctx context.Context, name string) (*models.Room, error)
	FindOldestWaiting(ctx context.Context, excludingName string) (*models.Room, error)
	SetTarget(ctx context.Context, nameA, nameB string) error
	ClearTarget(ctx context.Context, name, formerTarget string) (*models.Room, error)
	FindByPlayer(ctx context.Context, playerID string) (*models.Room, error)
	DeleteByCreator(ctx context.Context, playerID string) ([]models.Room, error)
	DeleteByName(ctx context.Context, name string) (*models.Room, error)
	DeleteOlderThan(ctx context.Context, age time.Duration) ([]models.Room, error)
}

// WaitQueue FIFO имён комнат, ждущих соперника. Дубликаты подавляет движок.
type WaitQueue interface {
	PushBack(ctx context.Context, name string) error
	RemoveAll(ctx context.Context, name string) error
	Snapshot(ctx context.Context) ([]string, error)
}

// MatchCache производное представление пар, которое можно потерять в любой момент.
type MatchCache interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, keys ...string) error
	ExpireSweep(ctx context.Context) (int, error)
}

// Notifier доставляет событие о найденной паре подписчикам (websocket).
type Notifier interface {
	MatchFound(ctx context.Context, event MatchEvent) error
}

type MatchEvent struct {
	Room      string    `json:"room"`
	Members   []string  `json:"members"`
	Target    string    `json:"target"`
	TargetIDs []string  `json:"target_members"`
	MatchedAt time.Time `json:"matched_at"`
}

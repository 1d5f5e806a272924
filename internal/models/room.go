package models

import (
	"time"

	"github.com/lib/pq"
)

// Room одна сторона будущего матча: группа игроков, ожидающая соперника.
type Room struct {
	Name       string         `gorm:"primaryKey"`
	MemberIDs  pq.StringArray `gorm:"type:text[];not null"`
	CreatedBy  string         `gorm:"index;not null"`
	TargetRoom *string        `gorm:"index"`
	LastUpdate time.Time      `gorm:"index;not null"`
	CreatedAt  time.Time
}

func (Room) TableName() string {
	return "matchmaking_rooms"
}

// Matched сообщает, назначен ли комнате соперник.
func (r *Room) Matched() bool {
	return r.TargetRoom != nil && *r.TargetRoom != ""
}

// Target возвращает имя комнаты-соперника или пустую строку.
func (r *Room) Target() string {
	if r.TargetRoom == nil {
		return ""
	}
	return *r.TargetRoom
}

// HasMember сообщает, состоит ли игрок в комнате.
func (r *Room) HasMember(playerID string) bool {
	for _, id := range r.MemberIDs {
		if id == playerID {
			return true
		}
	}
	return false
}

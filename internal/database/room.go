package database

import (
	"context"
	"errors"
	"time"

	"github.com/thereayou/matchmaker/internal/matchmaking"
	"github.com/thereayou/matchmaker/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Upsert создает комнату или обновляет список участников и last_update.
// created_by и target_room существующей строки не перезаписываются.
func (d *Database) Upsert(ctx context.Context, room models.Room) (*models.Room, error) {
	now := d.clock()
	room.TargetRoom = nil
	room.LastUpdate = now
	room.CreatedAt = now

	err := d.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "name"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"member_ids":  gorm.Expr("EXCLUDED.member_ids"),
				"last_update": gorm.Expr("GREATEST(matchmaking_rooms.last_update, EXCLUDED.last_update)"),
			}),
		}).
		Create(&room).Error
	if err != nil {
		return nil, err
	}

	return d.Get(ctx, room.Name)
}

func (d *Database) Get(ctx context.Context, name string) (*models.Room, error) {
	var room models.Room
	if err := d.db.WithContext(ctx).Take(&room, "name = ?", name).Error; err != nil {
		return nil, notFound(err)
	}
	return &room, nil
}

// FindOldestWaiting ищет самую старую комнату без соперника, кроме excludingName.
func (d *Database) FindOldestWaiting(ctx context.Context, excludingName string) (*models.Room, error) {
	var room models.Room
	err := d.db.WithContext(ctx).
		Where("target_room IS NULL AND name <> ?", excludingName).
		Order("created_at ASC, name ASC").
		Take(&room).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &room, nil
}

// SetTarget связывает две комнаты в одной транзакции. Обе строки блокируются
// в порядке имени, поэтому встречные попытки не взаимоблокируются.
func (d *Database) SetTarget(ctx context.Context, nameA, nameB string) error {
	if nameA == nameB {
		return matchmaking.ErrInvalidPairing
	}

	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rooms []models.Room
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("name IN ?", []string{nameA, nameB}).
			Order("name").
			Find(&rooms).Error
		if err != nil {
			return err
		}
		if len(rooms) != 2 {
			return matchmaking.ErrRoomNotFound
		}
		for i := range rooms {
			if rooms[i].Matched() {
				return matchmaking.ErrConflictLost
			}
		}

		now := d.clock()
		for _, pair := range [][2]string{{nameA, nameB}, {nameB, nameA}} {
			res := tx.Model(&models.Room{}).
				Where("name = ? AND target_room IS NULL", pair[0]).
				Updates(map[string]interface{}{
					"target_room": pair[1],
					"last_update": gorm.Expr("GREATEST(last_update, ?)", now),
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected != 1 {
				return matchmaking.ErrConflictLost
			}
		}
		return nil
	})
}

// ClearTarget снимает назначение соперника, только если оно все еще указывает на formerTarget.
func (d *Database) ClearTarget(ctx context.Context, name, formerTarget string) (*models.Room, error) {
	var rooms []models.Room
	res := d.db.WithContext(ctx).
		Model(&rooms).
		Clauses(clause.Returning{}).
		Where("name = ? AND target_room = ?", name, formerTarget).
		Updates(map[string]interface{}{
			"target_room": nil,
			"last_update": gorm.Expr("GREATEST(last_update, ?)", d.clock()),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 || len(rooms) == 0 {
		return nil, matchmaking.ErrRoomNotFound
	}
	return &rooms[0], nil
}

// FindByPlayer ищет уже сопоставленную комнату, в которой состоит игрок.
func (d *Database) FindByPlayer(ctx context.Context, playerID string) (*models.Room, error) {
	var room models.Room
	err := d.db.WithContext(ctx).
		Where("? = ANY(member_ids) AND target_room IS NOT NULL", playerID).
		Order("last_update DESC").
		Take(&room).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &room, nil
}

func (d *Database) DeleteByCreator(ctx context.Context, playerID string) ([]models.Room, error) {
	var rooms []models.Room
	err := d.db.WithContext(ctx).
		Clauses(clause.Returning{}).
		Where("created_by = ?", playerID).
		Delete(&rooms).Error
	if err != nil {
		return nil, err
	}
	return rooms, nil
}

func (d *Database) DeleteByName(ctx context.Context, name string) (*models.Room, error) {
	var rooms []models.Room
	err := d.db.WithContext(ctx).
		Clauses(clause.Returning{}).
		Where("name = ?", name).
		Delete(&rooms).Error
	if err != nil {
		return nil, err
	}
	if len(rooms) == 0 {
		return nil, matchmaking.ErrRoomNotFound
	}
	return &rooms[0], nil
}

// DeleteOlderThan удаляет комнаты, не обновлявшиеся дольше age.
func (d *Database) DeleteOlderThan(ctx context.Context, age time.Duration) ([]models.Room, error) {
	var rooms []models.Room
	err := d.db.WithContext(ctx).
		Clauses(clause.Returning{}).
		Where("last_update < ?", d.clock().Add(-age)).
		Delete(&rooms).Error
	if err != nil {
		return nil, err
	}
	return rooms, nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return matchmaking.ErrRoomNotFound
	}
	return err
}

var _ matchmaking.RoomStore = (*Database)(nil)

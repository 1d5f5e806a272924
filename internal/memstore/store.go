// Package memstore содержит реализации хранилища, кэша и очереди в памяти процесса.
// Подходит для одного экземпляра сервиса (STORE_DRIVER=memory) и для тестов.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/thereayou/matchmaker/internal/matchmaking"
	"github.com/thereayou/matchmaker/internal/models"
)

type Store struct {
	mu    sync.RWMutex
	rooms map[string]*models.Room
	now   func() time.Time
}

func NewStore() *Store {
	return &Store{
		rooms: make(map[string]*models.Room),
		now:   time.Now,
	}
}

// WithClock подменяет источник времени.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Upsert(ctx context.Context, room models.Room) (*models.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	existing, ok := s.rooms[room.Name]
	if !ok {
		stored := &models.Room{
			Name:       room.Name,
			MemberIDs:  append([]string(nil), room.MemberIDs...),
			CreatedBy:  room.CreatedBy,
			LastUpdate: now,
			CreatedAt:  now,
		}
		s.rooms[room.Name] = stored
		return clone(stored), nil
	}

	existing.MemberIDs = append([]string(nil), room.MemberIDs...)
	if now.After(existing.LastUpdate) {
		existing.LastUpdate = now
	}
	return clone(existing), nil
}

func (s *Store) Get(ctx context.Context, name string) (*models.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[name]
	if !ok {
		return nil, matchmaking.ErrRoomNotFound
	}
	return clone(room), nil
}

func (s *Store) FindOldestWaiting(ctx context.Context, excludingName string) (*models.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var oldest *models.Room
	for _, room := range s.sorted() {
		if room.Name == excludingName || room.Matched() {
			continue
		}
		oldest = room
		break
	}
	if oldest == nil {
		return nil, matchmaking.ErrRoomNotFound
	}
	return clone(oldest), nil
}

// SetTarget сравнивает и назначает под одной блокировкой: обе комнаты или ни одна.
func (s *Store) SetTarget(ctx context.Context, nameA, nameB string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if nameA == nameB {
		return matchmaking.ErrInvalidPairing
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, okA := s.rooms[nameA]
	b, okB := s.rooms[nameB]
	if !okA || !okB {
		return matchmaking.ErrRoomNotFound
	}
	if a.Matched() || b.Matched() {
		return matchmaking.ErrConflictLost
	}

	now := s.now()
	targetA, targetB := nameB, nameA
	a.TargetRoom, b.TargetRoom = &targetA, &targetB
	for _, r := range []*models.Room{a, b} {
		if now.After(r.LastUpdate) {
			r.LastUpdate = now
		}
	}
	return nil
}

func (s *Store) ClearTarget(ctx context.Context, name, formerTarget string) (*models.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[name]
	if !ok || room.Target() != formerTarget {
		return nil, matchmaking.ErrRoomNotFound
	}
	room.TargetRoom = nil
	if now := s.now(); now.After(room.LastUpdate) {
		room.LastUpdate = now
	}
	return clone(room), nil
}

func (s *Store) FindByPlayer(ctx context.Context, playerID string) (*models.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *models.Room
	for _, room := range s.rooms {
		if !room.Matched() || !room.HasMember(playerID) {
			continue
		}
		if found == nil || room.LastUpdate.After(found.LastUpdate) {
			found = room
		}
	}
	if found == nil {
		return nil, matchmaking.ErrRoomNotFound
	}
	return clone(found), nil
}

func (s *Store) DeleteByCreator(ctx context.Context, playerID string) ([]models.Room, error) {
	return s.deleteWhere(ctx, func(r *models.Room) bool { return r.CreatedBy == playerID })
}

func (s *Store) DeleteByName(ctx context.Context, name string) (*models.Room, error) {
	rooms, err := s.deleteWhere(ctx, func(r *models.Room) bool { return r.Name == name })
	if err != nil {
		return nil, err
	}
	if len(rooms) == 0 {
		return nil, matchmaking.ErrRoomNotFound
	}
	return &rooms[0], nil
}

func (s *Store) DeleteOlderThan(ctx context.Context, age time.Duration) ([]models.Room, error) {
	cutoff := s.now().Add(-age)
	return s.deleteWhere(ctx, func(r *models.Room) bool { return r.LastUpdate.Before(cutoff) })
}

// Len возвращает число комнат.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

func (s *Store) deleteWhere(ctx context.Context, match func(*models.Room) bool) ([]models.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []models.Room
	for _, room := range s.sorted() {
		if match(room) {
			removed = append(removed, *clone(room))
			delete(s.rooms, room.Name)
		}
	}
	return removed, nil
}

// sorted возвращает комнаты в порядке создания; вызывать под блокировкой.
func (s *Store) sorted() []*models.Room {
	rooms := make([]*models.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		rooms = append(rooms, room)
	}
	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].CreatedAt.Equal(rooms[j].CreatedAt) {
			return rooms[i].Name < rooms[j].Name
		}
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})
	return rooms
}

func clone(room *models.Room) *models.Room {
	c := *room
	c.MemberIDs = append([]string(nil), room.MemberIDs...)
	if room.TargetRoom != nil {
		target := *room.TargetRoom
		c.TargetRoom = &target
	}
	return &c
}

var _ matchmaking.RoomStore = (*Store)(nil)

// Package matchmaking реализует движок подбора пар комнат.
//
// Postgres (RoomStore) является источником истины, Redis используется как
// кэш найденных пар и очередь ожидания. Атомарность назначения пары
// обеспечивает RoomStore.SetTarget, поэтому несколько экземпляров сервиса
// могут работать с одним хранилищем одновременно.
package matchmaking

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/thereayou/matchmaker/internal/models"
)

type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusMatchFound Status = "match_found"
	StatusReadySet   Status = "ready_set"
	StatusFound      Status = "found"
	StatusNotFound   Status = "not_found"
	StatusUnset      Status = "unset"
)

type Result struct {
	Status Status
	Room   string
}

type ReadyRequest struct {
	RoomName    string
	MemberIDs   []string
	RequesterID string
}

type UnsetRequest struct {
	PlayerID string
	RoomName string
}

type Options struct {
	CacheTTL      time.Duration
	StoreTimeout  time.Duration
	CacheTimeout  time.Duration
	StoreRetries  int
	RetryInterval time.Duration
}

func DefaultOptions() Options {
	return Options{
		CacheTTL:      10 * time.Minute,
		StoreTimeout:  3 * time.Second,
		CacheTimeout:  500 * time.Millisecond,
		StoreRetries:  3,
		RetryInterval: 100 * time.Millisecond,
	}
}

type Engine struct {
	store    RoomStore
	queue    WaitQueue
	cache    MatchCache
	notifier Notifier
	opts     Options
	log      *slog.Logger
}

// New создает движок. queue и cache могут быть nil: тогда движок работает
// только через хранилище.
func New(store RoomStore, queue WaitQueue, cache MatchCache, opts Options, log *slog.Logger) *Engine {
	def := DefaultOptions()
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = def.CacheTTL
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = def.StoreTimeout
	}
	if opts.CacheTimeout <= 0 {
		opts.CacheTimeout = def.CacheTimeout
	}
	if opts.StoreRetries <= 0 {
		opts.StoreRetries = def.StoreRetries
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = def.RetryInterval
	}
	if log == nil {
		log = slog.Default()
	}

	return &Engine{
		store: store,
		queue: queue,
		cache: cache,
		opts:  opts,
		log:   log.With("component", "matchmaking"),
	}
}

// WithNotifier подключает доставку событий о найденных парах.
func (e *Engine) WithNotifier(n Notifier) *Engine {
	e.notifier = n
	return e
}

// SetReady регистрирует комнату как готовую и пытается подобрать ей соперника.
func (e *Engine) SetReady(ctx context.Context, req ReadyRequest) (Result, error) {
	roomName := strings.TrimSpace(req.RoomName)
	requester := strings.TrimSpace(req.RequesterID)
	members := NormalizeMembers(req.MemberIDs)

	switch {
	case roomName == "":
		return Result{}, missing("roomName")
	case len(members) == 0:
		return Result{}, missing("players")
	case requester == "":
		return Result{}, missing("playerId")
	}

	room, err := storeCall(ctx, e, func(ctx context.Context) (*models.Room, error) {
		return e.store.Upsert(ctx, models.Room{
			Name:      roomName,
			MemberIDs: members,
			CreatedBy: requester,
		})
	})
	if err != nil {
		return Result{}, err
	}

	// Повторный SetReady для уже сопоставленной комнаты только обновляет ее.
	if room.Matched() {
		e.remember(ctx, room.Name, room.MemberIDs, room.Target())
		return Result{Status: StatusReadySet, Room: room.Target()}, nil
	}

	var target string
	snapshot, qerr := e.enqueue(ctx, room.Name)
	if qerr != nil {
		e.log.Warn("wait queue unavailable, pairing from store", "room", room.Name, "error", qerr)
		target, err = e.pairFromStore(ctx, room)
	} else {
		target, err = e.pairFromQueue(ctx, room, snapshot)
	}
	if err != nil {
		return Result{}, err
	}

	if target == "" {
		return Result{Status: StatusWaiting}, nil
	}
	return Result{Status: StatusMatchFound, Room: target}, nil
}

// CheckRoom возвращает комнату-соперника для игрока. Отрицательный ответ не кэшируется.
func (e *Engine) CheckRoom(ctx context.Context, playerID string) (Result, error) {
	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return Result{}, missing("playerId")
	}

	if target, ok := e.cacheGet(ctx, playerKey(playerID)); ok {
		return Result{Status: StatusFound, Room: target}, nil
	}

	room, err := storeCall(ctx, e, func(ctx context.Context) (*models.Room, error) {
		return e.store.FindByPlayer(ctx, playerID)
	})
	if errors.Is(err, ErrRoomNotFound) {
		return Result{Status: StatusNotFound}, nil
	}
	if err != nil {
		return Result{}, err
	}

	live, err := e.reconcile(ctx, room)
	if err != nil {
		return Result{}, err
	}
	if !live {
		return Result{Status: StatusNotFound}, nil
	}

	e.cacheSet(ctx, playerKey(playerID), room.Target())
	return Result{Status: StatusFound, Room: room.Target()}, nil
}

// LookupRoom возвращает состояние комнаты по имени: found, waiting или not_found.
func (e *Engine) LookupRoom(ctx context.Context, roomName string) (Result, error) {
	roomName = strings.TrimSpace(roomName)
	if roomName == "" {
		return Result{}, missing("roomName")
	}

	if target, ok := e.cacheGet(ctx, roomKey(roomName)); ok {
		return Result{Status: StatusFound, Room: target}, nil
	}

	room, err := storeCall(ctx, e, func(ctx context.Context) (*models.Room, error) {
		return e.store.Get(ctx, roomName)
	})
	if errors.Is(err, ErrRoomNotFound) {
		return Result{Status: StatusNotFound}, nil
	}
	if err != nil {
		return Result{}, err
	}
	if !room.Matched() {
		return Result{Status: StatusWaiting}, nil
	}

	e.cacheSet(ctx, roomKey(room.Name), room.Target())
	return Result{Status: StatusFound, Room: room.Target()}, nil
}

// UnsetReady удаляет комнаты игрока (и/или комнату по имени) из хранилища,
// очереди и кэша. Идемпотентен.
func (e *Engine) UnsetReady(ctx context.Context, req UnsetRequest) (Result, error) {
	playerID := strings.TrimSpace(req.PlayerID)
	roomName := strings.TrimSpace(req.RoomName)
	if playerID == "" && roomName == "" {
		return Result{}, missing("playerId")
	}

	var removed []models.Room
	if playerID != "" {
		rooms, err := storeCall(ctx, e, func(ctx context.Context) ([]models.Room, error) {
			return e.store.DeleteByCreator(ctx, playerID)
		})
		if err != nil {
			return Result{}, err
		}
		removed = append(removed, rooms...)
	}

	if roomName != "" && !containsRoom(removed, roomName) {
		room, err := storeCall(ctx, e, func(ctx context.Context) (*models.Room, error) {
			return e.store.DeleteByName(ctx, roomName)
		})
		switch {
		case errors.Is(err, ErrRoomNotFound):
		case err != nil:
			return Result{}, err
		default:
			removed = append(removed, *room)
		}
	}

	if playerID != "" {
		e.cacheDelete(ctx, playerKey(playerID))
	}
	if err := e.Evict(ctx, removed); err != nil {
		e.log.Warn("counterpart cleanup incomplete", "player", playerID, "error", err)
	}

	return Result{Status: StatusUnset}, nil
}

// Evict убирает следы удаленных комнат: записи очереди, ключи кэша и
// назначение соперника у второй стороны пары.
func (e *Engine) Evict(ctx context.Context, rooms []models.Room) error {
	var errs []error
	for i := range rooms {
		room := &rooms[i]
		e.dequeue(ctx, room.Name)
		e.cacheDelete(ctx, cacheKeys(room.Name, room.MemberIDs)...)

		if !room.Matched() {
			continue
		}

		counterpart, err := storeCall(ctx, e, func(ctx context.Context) (*models.Room, error) {
			return e.store.ClearTarget(ctx, room.Target(), room.Name)
		})
		if errors.Is(err, ErrRoomNotFound) {
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		e.cacheDelete(ctx, cacheKeys(counterpart.Name, counterpart.MemberIDs)...)
		e.log.Info("counterpart released", "room", counterpart.Name, "former_target", room.Name)
	}
	return errors.Join(errs...)
}

// enqueue ставит комнату в хвост очереди, если ее там нет, и возвращает
// снимок очереди, сделанный уже после вставки.
func (e *Engine) enqueue(ctx context.Context, name string) ([]string, error) {
	snapshot, err := e.queueSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	if contains(snapshot, name) {
		return snapshot, nil
	}
	if err := e.queuePush(ctx, name); err != nil {
		return nil, err
	}
	return e.queueSnapshot(ctx)
}

func (e *Engine) pairFromQueue(ctx context.Context, room *models.Room, snapshot []string) (string, error) {
	for _, name := range snapshot {
		if name == room.Name {
			continue
		}
		target, done, err := e.tryPair(ctx, room, name)
		if err != nil {
			return "", err
		}
		if done {
			return target, nil
		}
	}
	return "", nil
}

func (e *Engine) pairFromStore(ctx context.Context, room *models.Room) (string, error) {
	candidate, err := storeCall(ctx, e, func(ctx context.Context) (*models.Room, error) {
		return e.store.FindOldestWaiting(ctx, room.Name)
	})
	if errors.Is(err, ErrRoomNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	target, _, err := e.tryPair(ctx, room, candidate.Name)
	return target, err
}

// tryPair пытается связать room с кандидатом. done == true означает, что
// перебор закончен: пара найдена или комната исчезла.
func (e *Engine) tryPair(ctx context.Context, room *models.Room, candidateName string) (target string, done bool, err error) {
	candidate, err := storeCall(ctx, e, func(ctx context.Context) (*models.Room, error) {
		return e.store.Get(ctx, candidateName)
	})
	if errors.Is(err, ErrRoomNotFound) {
		e.dequeue(ctx, candidateName)
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if candidate.Matched() {
		e.dequeue(ctx, candidate.Name)
		return "", false, nil
	}

	err = storeCallErr(ctx, e, func(ctx context.Context) error {
		return e.store.SetTarget(ctx, room.Name, candidate.Name)
	})
	undone := false
	switch {
	case err == nil:
		if e.commit(ctx, room, candidate) {
			return candidate.Name, true, nil
		}
		undone = true
		e.log.Info("pairing undone before commit finished", "room", room.Name, "candidate", candidate.Name)
	case errors.Is(err, ErrConflictLost), errors.Is(err, ErrRoomNotFound):
		e.log.Debug("pairing conflict lost", "room", room.Name, "candidate", candidate.Name)
	default:
		return "", false, err
	}

	// Пока мы перебирали очередь, нашу комнату мог забрать другой запрос.
	current, err := storeCall(ctx, e, func(ctx context.Context) (*models.Room, error) {
		return e.store.Get(ctx, room.Name)
	})
	if errors.Is(err, ErrRoomNotFound) {
		return "", true, nil
	}
	if err != nil {
		return "", false, err
	}
	if current.Matched() {
		return e.adoptPair(ctx, current, candidate.Name)
	}

	// Разорванная пара уже сняла комнату с очереди.
	if undone {
		if _, err := e.enqueue(ctx, current.Name); err != nil {
			e.log.Warn("wait queue requeue failed", "room", current.Name, "error", err)
		}
	}
	return "", false, nil
}

// adoptPair принимает пару, уже записанную в хранилище. Если соперник тот
// кандидат, которого мы пытались занять, SetTarget мог выполниться при
// оборванном ответе: тогда пара доводится через commit.
func (e *Engine) adoptPair(ctx context.Context, current *models.Room, candidateName string) (string, bool, error) {
	target := current.Target()
	if target != candidateName {
		e.remember(ctx, current.Name, current.MemberIDs, target)
		return target, true, nil
	}

	counterpart, err := storeCall(ctx, e, func(ctx context.Context) (*models.Room, error) {
		return e.store.Get(ctx, target)
	})
	if errors.Is(err, ErrRoomNotFound) {
		return "", true, nil
	}
	if err != nil {
		return "", false, err
	}
	if counterpart.Target() != current.Name {
		return "", true, nil
	}
	if !e.commit(ctx, current, counterpart) {
		return "", true, nil
	}
	return target, true, nil
}

// commit доводит записанную пару: снимает обе комнаты с очереди, кэширует
// пару и уведомляет игроков. Возвращает false, если пару успели разорвать.
func (e *Engine) commit(ctx context.Context, room, candidate *models.Room) bool {
	e.dequeue(ctx, room.Name)
	e.dequeue(ctx, candidate.Name)
	e.remember(ctx, room.Name, room.MemberIDs, candidate.Name)
	e.remember(ctx, candidate.Name, candidate.MemberIDs, room.Name)

	// UnsetReady или Sweeper между SetTarget и записью в кэш удаляют ключи
	// раньше нас, поэтому пара перепроверяется после записи.
	if !e.pairHolds(ctx, room.Name, candidate.Name) {
		e.cacheDelete(ctx, cacheKeys(room.Name, room.MemberIDs)...)
		e.cacheDelete(ctx, cacheKeys(candidate.Name, candidate.MemberIDs)...)
		return false
	}

	e.log.Info("rooms paired", "room", room.Name, "target", candidate.Name)

	if e.notifier == nil {
		return true
	}
	event := MatchEvent{
		Room:      room.Name,
		Members:   append([]string(nil), room.MemberIDs...),
		Target:    candidate.Name,
		TargetIDs: append([]string(nil), candidate.MemberIDs...),
		MatchedAt: time.Now().UTC(),
	}
	if err := e.notifier.MatchFound(ctx, event); err != nil {
		e.log.Warn("match notification failed", "room", room.Name, "target", candidate.Name, "error", err)
	}
	return true
}

// pairHolds сообщает, что обе строки существуют и указывают друг на друга.
// Ошибка хранилища считается разрывом: кэш восстановится при следующем CheckRoom.
func (e *Engine) pairHolds(ctx context.Context, nameA, nameB string) bool {
	for _, pair := range [][2]string{{nameA, nameB}, {nameB, nameA}} {
		row, err := storeCall(ctx, e, func(ctx context.Context) (*models.Room, error) {
			return e.store.Get(ctx, pair[0])
		})
		if err != nil || row.Target() != pair[1] {
			return false
		}
	}
	return true
}

// reconcile проверяет, что соперник найденной комнаты еще существует.
// Висячее назначение снимается.
func (e *Engine) reconcile(ctx context.Context, room *models.Room) (bool, error) {
	_, err := storeCall(ctx, e, func(ctx context.Context) (*models.Room, error) {
		return e.store.Get(ctx, room.Target())
	})
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, ErrRoomNotFound) {
		return false, err
	}

	_, err = storeCall(ctx, e, func(ctx context.Context) (*models.Room, error) {
		return e.store.ClearTarget(ctx, room.Name, room.Target())
	})
	if err != nil && !errors.Is(err, ErrRoomNotFound) {
		return false, err
	}
	e.cacheDelete(ctx, cacheKeys(room.Name, room.MemberIDs)...)
	e.log.Info("dangling target cleared", "room", room.Name, "former_target", room.Target())
	return false, nil
}

// NormalizeMembers обрезает пробелы, убирает пустые и повторяющиеся идентификаторы,
// сохраняя порядок.
func NormalizeMembers(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

func containsRoom(rooms []models.Room, name string) bool {
	for i := range rooms {
		if rooms[i].Name == name {
			return true
		}
	}
	return false
}

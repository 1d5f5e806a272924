package sweeper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/thereayou/matchmaker/internal/matchmaking"
	"github.com/thereayou/matchmaker/internal/models"
)

// Store часть хранилища, нужная для очистки.
type Store interface {
	Get(ctx context.Context, name string) (*models.Room, error)
	DeleteOlderThan(ctx context.Context, age time.Duration) ([]models.Room, error)
}

// Evictor снимает удаленные комнаты с очереди и кэша и освобождает соперников.
type Evictor interface {
	Evict(ctx context.Context, rooms []models.Room) error
}

type KeySweeper interface {
	ExpireSweep(ctx context.Context) (int, error)
}

type Report struct {
	Rooms        int `json:"rooms"`
	Keys         int `json:"keys"`
	QueueEntries int `json:"queueEntries"`
}

type Sweeper struct {
	store      Store
	evictor    Evictor
	queue      matchmaking.WaitQueue
	keys       KeySweeper
	interval   time.Duration
	staleAfter time.Duration
	log        *slog.Logger
}

// New создает очиститель. queue и keys могут быть nil.
func New(store Store, evictor Evictor, queue matchmaking.WaitQueue, keys KeySweeper, interval, staleAfter time.Duration, log *slog.Logger) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{
		store:      store,
		evictor:    evictor,
		queue:      queue,
		keys:       keys,
		interval:   interval,
		staleAfter: staleAfter,
		log:        log.With("component", "sweeper"),
	}
}

// Run запускает очистку каждые interval до отмены ctx.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("sweeper started", "interval", s.interval, "stale_after", s.staleAfter)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweeper stopped")
			return
		case <-ticker.C:
			report, err := s.RunOnce(ctx)
			if err != nil {
				s.log.Error("sweep failed", "error", err, "rooms", report.Rooms, "keys", report.Keys)
				continue
			}
			if report != (Report{}) {
				s.log.Info("sweep finished", "rooms", report.Rooms, "keys", report.Keys, "queue_entries", report.QueueEntries)
			}
		}
	}
}

// RunOnce выполняет один проход. Сбой одного шага не отменяет остальные.
func (s *Sweeper) RunOnce(ctx context.Context) (Report, error) {
	var (
		report Report
		errs   []error
	)

	rooms, err := s.store.DeleteOlderThan(ctx, s.staleAfter)
	if err != nil {
		errs = append(errs, err)
	} else {
		report.Rooms = len(rooms)
		if len(rooms) > 0 && s.evictor != nil {
			if err := s.evictor.Evict(ctx, rooms); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if s.keys != nil {
		n, err := s.keys.ExpireSweep(ctx)
		if err != nil {
			errs = append(errs, errors.Join(matchmaking.ErrCacheUnavailable, err))
		}
		report.Keys = n
	}

	if s.queue != nil {
		n, err := s.pruneQueue(ctx)
		if err != nil {
			errs = append(errs, err)
		}
		report.QueueEntries = n
	}

	return report, errors.Join(errs...)
}

// pruneQueue убирает из очереди имена удаленных и уже сопоставленных комнат.
func (s *Sweeper) pruneQueue(ctx context.Context) (int, error) {
	names, err := s.queue.Snapshot(ctx)
	if err != nil {
		return 0, errors.Join(matchmaking.ErrQueueUnavailable, err)
	}

	pruned := 0
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}

		room, err := s.store.Get(ctx, name)
		switch {
		case errors.Is(err, matchmaking.ErrRoomNotFound):
		case err != nil:
			return pruned, err
		case !room.Matched():
			continue
		}

		if err := s.queue.RemoveAll(ctx, name); err != nil {
			return pruned, errors.Join(matchmaking.ErrQueueUnavailable, err)
		}
		pruned++
	}
	return pruned, nil
}

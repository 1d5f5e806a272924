package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/thereayou/matchmaker/internal/cache"
	"github.com/thereayou/matchmaker/internal/config"
	"github.com/thereayou/matchmaker/internal/database"
	"github.com/thereayou/matchmaker/internal/handlers"
	"github.com/thereayou/matchmaker/internal/matchmaking"
	"github.com/thereayou/matchmaker/internal/memstore"
	"github.com/thereayou/matchmaker/internal/middleware"
	"github.com/thereayou/matchmaker/internal/sweeper"
	"github.com/thereayou/matchmaker/internal/websocket"
)

type Server struct {
	Router  *gin.Engine
	DB      *database.Database
	Redis   *redis.Client
	Engine  *matchmaking.Engine
	Hub     *websocket.Hub
	Relay   *websocket.Relay
	Sweeper *sweeper.Sweeper

	cfg    *config.Config
	log    *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer собирает зависимости. Недоступный Redis не мешает старту:
// движок работает через хранилище, пока Redis не вернется.
func NewServer(cfg *config.Config, log *slog.Logger) (*Server, error) {
	gin.SetMode(cfg.GinMode)
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{cfg: cfg, log: log, ctx: ctx, cancel: cancel}

	var (
		store       matchmaking.RoomStore
		sweepStore  sweeper.Store
		queue       matchmaking.WaitQueue
		matchCache  matchmaking.MatchCache
		keySweeper  sweeper.KeySweeper
		storePinger handlers.Pinger
		cachePinger handlers.Pinger
	)

	if cfg.Memory() {
		mem := memstore.NewStore()
		memCache := memstore.NewCache()
		store, sweepStore = mem, mem
		queue = memstore.NewQueue()
		matchCache, keySweeper = memCache, memCache
		log.Info("using in-process store, cache and queue")
	} else {
		db := &database.Database{}
		if err := db.Connect(cfg.DatabaseURL); err != nil {
			cancel()
			return nil, fmt.Errorf("postgres connect: %w", err)
		}
		s.DB = db
		store, sweepStore, storePinger = db, db, db

		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		s.Redis = redis.NewClient(redisOpts)

		pingCtx, pingCancel := context.WithTimeout(ctx, cfg.CacheTimeout)
		if err := s.Redis.Ping(pingCtx).Err(); err != nil {
			log.Warn("redis unavailable at start-up, running store-only until it recovers", "error", err)
		}
		pingCancel()

		redisCache := cache.NewMatchCache(s.Redis, cache.DefaultPrefix)
		queue = cache.NewWaitQueue(s.Redis, "")
		matchCache, keySweeper, cachePinger = redisCache, redisCache, redisCache
	}

	s.Engine = matchmaking.New(store, queue, matchCache, matchmaking.Options{
		CacheTTL:      cfg.CacheTTL,
		StoreTimeout:  cfg.StoreTimeout,
		CacheTimeout:  cfg.CacheTimeout,
		StoreRetries:  cfg.StoreRetries,
		RetryInterval: cfg.RetryInterval,
	}, log)

	s.Hub = websocket.NewHub(log)
	s.Engine.WithNotifier(s.Hub)
	if s.Redis != nil {
		s.Relay = websocket.NewRelay(s.Redis, websocket.DefaultChannel, s.Hub, log)
	}

	s.Sweeper = sweeper.New(sweepStore, s.Engine, queue, keySweeper, cfg.SweepInterval, cfg.StaleAfter, log)

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(log), middleware.SecurityHeaders(), middleware.CORS(cfg.AllowedOrigins))
	if cfg.RateLimit > 0 && s.Redis != nil {
		router.Use(middleware.NewRateLimiter(s.Redis, cfg.RateLimit, time.Minute, log).Middleware())
	}

	APIEndpoints(router, Handlers{
		Matchmaking: handlers.NewMatchmakingHandler(s.Engine, log),
		Health:      handlers.NewHealthHandler(storePinger, cachePinger),
		WebSocket:   handlers.NewWebSocketHandler(ctx, s.Hub, handlers.NewMessageHandler(s.Engine, log), cfg.AllowedOrigins),
	})
	s.Router = router

	return s, nil
}

// Run запускает фоновые задачи и HTTP сервер до отмены ctx.
func (s *Server) Run(ctx context.Context) error {
	go s.Hub.Run(s.ctx)
	go s.Sweeper.Run(s.ctx)

	if s.Relay != nil {
		if err := s.Relay.Start(s.ctx); err != nil {
			s.log.Warn("match relay disabled, notifying local clients only", "error", err)
		} else {
			s.Engine.WithNotifier(s.Relay)
		}
	}

	srv := &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.Router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server starting", "port", s.cfg.Port, "store", s.cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server run error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) Close() error {
	s.cancel()

	var errs []error
	if s.Redis != nil {
		errs = append(errs, s.Redis.Close())
	}
	if s.DB != nil {
		errs = append(errs, s.DB.Close())
	}
	return errors.Join(errs...)
}

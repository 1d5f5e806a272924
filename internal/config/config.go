package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Port           string        `env:"PORT" envDefault:"8080"`
	StoreDriver    string        `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL    string        `env:"DATABASE_URL"`
	RedisURL       string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	SweepInterval  time.Duration `env:"SWEEP_INTERVAL" envDefault:"5m"`
	StaleAfter     time.Duration `env:"STALE_AFTER" envDefault:"10m"`
	CacheTTL       time.Duration `env:"CACHE_TTL" envDefault:"10m"`
	StoreTimeout   time.Duration `env:"STORE_TIMEOUT" envDefault:"3s"`
	CacheTimeout   time.Duration `env:"CACHE_TIMEOUT" envDefault:"500ms"`
	StoreRetries   int           `env:"STORE_RETRIES" envDefault:"3"`
	RetryInterval  time.Duration `env:"RETRY_INTERVAL" envDefault:"100ms"`
	AllowedOrigins []string      `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	RateLimit      int           `env:"RATE_LIMIT" envDefault:"120"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	GinMode        string        `env:"GIN_MODE" envDefault:"release"`
}

// Load читает .env.local и .env (если есть), затем переменные окружения.
func Load() (*Config, error) {
	for _, file := range []string{".env.local", ".env"} {
		// godotenv не перезаписывает уже заданные переменные
		_ = godotenv.Load(file)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}

	if c.SweepInterval <= 0 {
		errs = append(errs, errors.New("SWEEP_INTERVAL must be positive"))
	}
	if c.StaleAfter < 2*c.SweepInterval {
		errs = append(errs, fmt.Errorf("STALE_AFTER (%s) must be at least twice SWEEP_INTERVAL (%s)", c.StaleAfter, c.SweepInterval))
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, errors.New("CACHE_TTL must be positive"))
	}
	if c.StoreRetries < 1 {
		errs = append(errs, errors.New("STORE_RETRIES must be at least 1"))
	}
	if c.RateLimit < 0 {
		errs = append(errs, errors.New("RATE_LIMIT must not be negative"))
	}
	for _, origin := range c.AllowedOrigins {
		origin = strings.TrimSpace(origin)
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			errs = append(errs, fmt.Errorf("invalid origin %q in ALLOWED_ORIGINS", origin))
		}
	}
	switch c.GinMode {
	case "debug", "release", "test":
	default:
		errs = append(errs, fmt.Errorf("invalid GIN_MODE %q", c.GinMode))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Level переводит LOG_LEVEL в уровень slog.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q", c.LogLevel)
	}
	return level, nil
}

// Memory сообщает, что сервис работает без внешних хранилищ.
func (c *Config) Memory() bool {
	return c.StoreDriver == DriverMemory
}

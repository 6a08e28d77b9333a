package internal

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	LogLevel             string        `env:"LOG_LEVEL,default=INFO"`
	Host                 string        `env:"HOST,default=0.0.0.0"`
	HTTPPort             int           `env:"HTTP_PORT,default=5000"`
	GRPCPort             int           `env:"GRPC_PORT,default=50051"`
	DebugPort            int           `env:"DEBUG_PORT,default=8081"`
	StoreDriver          string        `env:"STORE_DRIVER,default=badger"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,default=./data/badger"`
	SQLiteDSN            string        `env:"SQLITE_DSN,default=./data/messages.db"`
	PostgresDSN          string        `env:"POSTGRES_DSN"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	DeliveryTimeout      time.Duration `env:"DELIVERY_TIMEOUT,default=2s"`
	ReadTimeout          time.Duration `env:"READ_TIMEOUT,default=60s"`
	RequestTimeout       time.Duration `env:"REQUEST_TIMEOUT,default=5s"`
	MaxContentLength     int           `env:"MAX_CONTENT_LENGTH,default=4096"`
	HistoryConcurrency   int           `env:"HISTORY_CONCURRENCY,default=8"`
	HistoryPageLimit     int           `env:"HISTORY_PAGE_LIMIT,default=50"`
	MaxPageLimit         int           `env:"MAX_PAGE_LIMIT,default=500"`
	StorageRetries       int           `env:"STORAGE_RETRIES,default=1"`
	AuthSecret           string        `env:"AUTH_SECRET"`
	RedisURL             string        `env:"REDIS_URL"`
	InstanceID           string        `env:"INSTANCE_ID"`
	StatsInterval        time.Duration `env:"STATS_INTERVAL,default=30s"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=1s"`
}

// Load decodes the configuration from the process environment and validates it.
func Load() (Config, error) {
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// StoreLocation is the badger directory, the sqlite DSN or the postgres DSN, depending on the driver.
func (c Config) StoreLocation() string {
	switch c.StoreDriver {
	case "sqlite":
		return c.SQLiteDSN
	case "postgres":
		return c.PostgresDSN
	}
	return c.BadgerFilepath
}

func (c Config) Validate() error {
	switch c.StoreDriver {
	case "badger", "sqlite":
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required with STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be badger, sqlite or postgres, got %q", c.StoreDriver)
	}
	positives := []struct {
		name  string
		value int
	}{
		{"HTTP_PORT", c.HTTPPort},
		{"GRPC_PORT", c.GRPCPort},
		{"CONNECTION_BUFFER_SIZE", c.ConnectionBufferSize},
		{"MAX_CONTENT_LENGTH", c.MaxContentLength},
		{"HISTORY_CONCURRENCY", c.HistoryConcurrency},
		{"HISTORY_PAGE_LIMIT", c.HistoryPageLimit},
		{"MAX_PAGE_LIMIT", c.MaxPageLimit},
	}
	for _, p := range positives {
		if p.value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", p.name, p.value)
		}
	}
	if c.HistoryPageLimit > c.MaxPageLimit {
		return fmt.Errorf("HISTORY_PAGE_LIMIT (%d) exceeds MAX_PAGE_LIMIT (%d)", c.HistoryPageLimit, c.MaxPageLimit)
	}
	if c.StorageRetries < 0 {
		return fmt.Errorf("STORAGE_RETRIES must not be negative, got %d", c.StorageRetries)
	}
	durations := map[string]time.Duration{
		"DELIVERY_TIMEOUT": c.DeliveryTimeout,
		"READ_TIMEOUT":     c.ReadTimeout,
		"STATS_INTERVAL":   c.StatsInterval,
		"RESTART_INTERVAL": c.RestartInterval,
	}
	for name, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	return nil
}

// Package config loads server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Server captures process level configuration.
type Server struct {
	Addr            string        `env:"DIRECTORY_ADDR" envDefault:":8080"`
	DatabaseURL     string        `env:"DATABASE_URL"`
	Database        DatabaseConfig
	Redis           RedisConfig
	Kafka           KafkaConfig
	CacheTTLMinutes int           `env:"CACHE_TTL_MINUTES" envDefault:"5"`
	MaxPageSize     int           `env:"MAX_PAGE_SIZE" envDefault:"100"`
	TransferTimeout time.Duration `env:"TRANSFER_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"json"`
}

// DatabaseConfig tunes the PostgreSQL connection pool.
type DatabaseConfig struct {
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"5m"`
}

// RedisConfig configures the cache backend. An empty URL keeps the cache in process.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// KafkaConfig configures the change-event publisher. No brokers means events are only logged.
type KafkaConfig struct {
	Brokers           []string `env:"KAFKA_BROKERS" envSeparator:","`
	Topic             string   `env:"KAFKA_TOPIC" envDefault:"directory.events"`
	ClientID          string   `env:"KAFKA_CLIENT_ID" envDefault:"directory"`
	Partitions        int32    `env:"KAFKA_TOPIC_PARTITIONS" envDefault:"3"`
	ReplicationFactor int16    `env:"KAFKA_REPLICATION_FACTOR" envDefault:"1"`
	BufferSize        int      `env:"KAFKA_BUFFER_SIZE" envDefault:"1024"`
}

// Enabled reports whether brokers were configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// CacheTTL returns the default cache entry lifetime.
func (s Server) CacheTTL() time.Duration {
	return time.Duration(s.CacheTTLMinutes) * time.Minute
}

// Validate rejects settings the server cannot run with.
func (s Server) Validate() error {
	var errs []error
	if s.CacheTTLMinutes < 1 {
		errs = append(errs, fmt.Errorf("CACHE_TTL_MINUTES must be at least 1, got %d", s.CacheTTLMinutes))
	}
	if s.MaxPageSize < 1 {
		errs = append(errs, fmt.Errorf("MAX_PAGE_SIZE must be at least 1, got %d", s.MaxPageSize))
	}
	if s.TransferTimeout < 0 {
		errs = append(errs, fmt.Errorf("TRANSFER_TIMEOUT must not be negative, got %s", s.TransferTimeout))
	}
	switch strings.ToLower(s.LogFormat) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or text, got %q", s.LogFormat))
	}
	if s.Kafka.Enabled() && s.Kafka.Topic == "" {
		errs = append(errs, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set"))
	}
	return errors.Join(errs...)
}

// Load reads the given .env files when they exist, then parses the environment.
func Load(envFiles ...string) (Server, error) {
	var present []string
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) > 0 {
		if err := godotenv.Load(present...); err != nil {
			return Server{}, fmt.Errorf("load env files: %w", err)
		}
	}

	var cfg Server
	if err := env.Parse(&cfg); err != nil {
		return Server{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

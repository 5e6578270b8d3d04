// Package server provides configuration helpers that define runtime defaults,
// validation, and rate-limiting parameters for the relay service.
package server

import (
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/cockroachdb/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/Tyrowin/relaychat/internal/logging"
)

// RateLimitConfig defines the parameters for per-connection frame rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the server configuration settings including security controls.
type Config struct {
	Port            string
	AllowedOrigins  []string
	MaxMessageSize  int64
	RateLimit       RateLimitConfig
	SendQueueSize   int
	BcryptCost      int
	ShutdownTimeout time.Duration
	Log             logging.Config
}

// environment is the flat view of Config read by go-env.
type environment struct {
	Port            string        `env:"SERVER_PORT,default=:8080"`
	AllowedOrigins  string        `env:"ALLOWED_ORIGINS,default=http://localhost:8080"`
	MaxMessageSize  int64         `env:"MAX_MESSAGE_SIZE,default=4096"`
	RateLimitBurst  int           `env:"RATE_LIMIT_BURST,default=5"`
	RefillInterval  time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL,default=1s"`
	SendQueueSize   int           `env:"SEND_QUEUE_SIZE,default=256"`
	BcryptCost      int           `env:"BCRYPT_COST,default=10"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`

	LogLevel      string `env:"LOG_LEVEL,default=info"`
	LogFormat     string `env:"LOG_FORMAT,default=json"`
	LogFile       string `env:"LOG_FILE"`
	LogMaxSizeMB  int    `env:"LOG_MAX_SIZE_MB,default=100"`
	LogMaxBackups int    `env:"LOG_MAX_BACKUPS,default=3"`
	LogMaxAgeDays int    `env:"LOG_MAX_AGE_DAYS,default=28"`
}

func defaultConfig() Config {
	return Config{
		Port: ":8080",
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxMessageSize: 4096,
		RateLimit: RateLimitConfig{
			Burst:          5,
			RefillInterval: time.Second,
		},
		SendQueueSize:   256,
		BcryptCost:      bcrypt.DefaultCost,
		ShutdownTimeout: 10 * time.Second,
		Log:             logging.DefaultConfig(),
	}
}

func sanitizeConfig(cfg Config) Config {
	def := defaultConfig()

	if cfg.Port == "" {
		cfg.Port = def.Port
	}

	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}

	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = def.RateLimit.Burst
	}

	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = def.RateLimit.RefillInterval
	}

	if cfg.SendQueueSize <= 0 {
		cfg.SendQueueSize = def.SendQueueSize
	}

	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		cfg.BcryptCost = def.BcryptCost
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}

	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() Config {
	return defaultConfig()
}

// NewConfigFromEnv creates a Config from environment variables. Unset keys
// take their defaults; a value that does not parse is an error, a value out
// of range falls back to the default.
func NewConfigFromEnv() (Config, error) {
	var e environment
	if _, err := env.UnmarshalFromEnviron(&e); err != nil {
		return Config{}, errors.Wrap(err, "read environment")
	}

	cfg := Config{
		Port:           e.Port,
		AllowedOrigins: parseOrigins(e.AllowedOrigins),
		MaxMessageSize: e.MaxMessageSize,
		RateLimit: RateLimitConfig{
			Burst:          e.RateLimitBurst,
			RefillInterval: e.RefillInterval,
		},
		SendQueueSize:   e.SendQueueSize,
		BcryptCost:      e.BcryptCost,
		ShutdownTimeout: e.ShutdownTimeout,
		Log: logging.Config{
			Level:  e.LogLevel,
			Format: logging.Format(e.LogFormat),
			File: logging.FileConfig{
				Filename:   e.LogFile,
				MaxSizeMB:  e.LogMaxSizeMB,
				MaxBackups: e.LogMaxBackups,
				MaxAgeDays: e.LogMaxAgeDays,
			},
		},
	}
	return sanitizeConfig(cfg), nil
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

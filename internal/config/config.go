package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
)

// Typing presence backends.
const (
	TypingBackendPostgres = "postgres"
	TypingBackendRedis    = "redis"
)

type Config struct {
	Port string `env:"PORT" envDefault:"4000"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	Env      string `env:"ENV" envDefault:"development"`

	DatabaseURL    string `env:"DATABASE_URL,required,notEmpty"`
	MigrateOnStart bool   `env:"MIGRATE_ON_START" envDefault:"true"`
	DBMaxConns     int32  `env:"DB_MAX_CONNS" envDefault:"20"`
	DBMinConns     int32  `env:"DB_MIN_CONNS" envDefault:"4"`

	JWTSecret string        `env:"JWT_SECRET" envDefault:"tradielink_dev_secret"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"168h"`

	// TypingBackend selects where typing intents live: "postgres" keeps
	// them in the typing_status table, "redis" uses expiring keys.
	TypingBackend string        `env:"TYPING_BACKEND" envDefault:"postgres"`
	TypingTTL     time.Duration `env:"TYPING_TTL" envDefault:"10s"`
	RedisURL      string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`
}

// LoadConfig reads an optional .env file and then the process environment.
// Values already present in the environment win over the file.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse builds a Config from the current environment only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	c.TypingBackend = strings.ToLower(strings.TrimSpace(c.TypingBackend))
	switch c.TypingBackend {
	case TypingBackendPostgres, TypingBackendRedis:
	default:
		return fmt.Errorf("invalid TYPING_BACKEND %q (want postgres or redis)", c.TypingBackend)
	}
	if c.TypingTTL <= 0 {
		return fmt.Errorf("TYPING_TTL must be positive, got %s", c.TypingTTL)
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("invalid pool size: DB_MIN_CONNS=%d DB_MAX_CONNS=%d", c.DBMinConns, c.DBMaxConns)
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive, got %s", c.JWTTTL)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

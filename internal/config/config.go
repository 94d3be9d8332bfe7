package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const envPrefix = "PHASETRACK_"

// Config defines server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" envPrefix:"SERVER_"`
	Store     StoreConfig     `yaml:"store" envPrefix:"STORE_"`
	Log       LogConfig       `yaml:"log" envPrefix:"LOG_"`
	Auth      AuthConfig      `yaml:"auth" envPrefix:"AUTH_"`
	RateLimit RateLimitConfig `yaml:"ratelimit" envPrefix:"RATELIMIT_"`
	Events    EventsConfig    `yaml:"events" envPrefix:"EVENTS_"`
	Catalog   CatalogConfig   `yaml:"catalog" envPrefix:"CATALOG_"`
	Autosave  AutosaveConfig  `yaml:"autosave" envPrefix:"AUTOSAVE_"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" env:"HOST"`
	Port            int           `yaml:"port" env:"PORT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	MCPEnabled      bool          `yaml:"mcp_enabled" env:"MCP_ENABLED"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Driver             string        `yaml:"driver" env:"DRIVER"`
	SQLitePath         string        `yaml:"sqlite_path" env:"SQLITE_PATH"`
	PostgresDSN        string        `yaml:"postgres_dsn" env:"POSTGRES_DSN"`
	MaxConns           int32         `yaml:"max_conns" env:"MAX_CONNS"`
	MinConns           int32         `yaml:"min_conns" env:"MIN_CONNS"`
	SlowQueryThreshold time.Duration `yaml:"slow_query_threshold" env:"SLOW_QUERY_THRESHOLD"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
	Path   string `yaml:"path" env:"PATH"`
}

// AuthConfig controls bearer token verification. With Enabled false every
// request acts as DefaultSubject.
type AuthConfig struct {
	Enabled        bool   `yaml:"enabled" env:"ENABLED"`
	JWTSecret      string `yaml:"jwt_secret" env:"JWT_SECRET"`
	DefaultSubject string `yaml:"default_subject" env:"DEFAULT_SUBJECT"`
}

type RateLimitConfig struct {
	Enabled       bool          `yaml:"enabled" env:"ENABLED"`
	Window        time.Duration `yaml:"window" env:"WINDOW"`
	Max           int           `yaml:"max" env:"MAX"`
	Store         string        `yaml:"store" env:"STORE"`
	RedisAddr     string        `yaml:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword string        `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int           `yaml:"redis_db" env:"REDIS_DB"`
}

// EventsConfig enables AMQP publishing when AMQPURL is set.
type EventsConfig struct {
	AMQPURL  string `yaml:"amqp_url" env:"AMQP_URL"`
	Exchange string `yaml:"exchange" env:"EXCHANGE"`
}

type CatalogConfig struct {
	Path string `yaml:"path" env:"PATH"`
}

// AutosaveConfig configures the edit command's client.
type AutosaveConfig struct {
	Delay     time.Duration `yaml:"delay" env:"DELAY"`
	ServerURL string        `yaml:"server_url" env:"SERVER_URL"`
	Token     string        `yaml:"token" env:"TOKEN"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: 5 * time.Second,
			MCPEnabled:      true,
		},
		Store: StoreConfig{
			Driver:             "memory",
			SQLitePath:         "phasetrack.db",
			MaxConns:           10,
			MinConns:           2,
			SlowQueryThreshold: 100 * time.Millisecond,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Auth: AuthConfig{
			DefaultSubject: "local",
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Window:  15 * time.Minute,
			Max:     100,
			Store:   "memory",
		},
		Events: EventsConfig{
			Exchange: "events",
		},
		Autosave: AutosaveConfig{
			Delay:     2 * time.Second,
			ServerURL: "http://localhost:8080",
		},
	}
}

// Load reads configuration from defaults, an optional YAML file and
// PHASETRACK_* environment variables, in that order. An empty path falls
// back to PHASETRACK_CONFIG_PATH.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(envPrefix + "CONFIG_PATH")
	}
	if path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.Store.Driver) {
	case "memory":
	case "sqlite":
		if c.Store.SQLitePath == "" {
			errs = append(errs, errors.New("store.sqlite_path is required for the sqlite driver"))
		}
	case "postgres":
		if c.Store.PostgresDSN == "" {
			errs = append(errs, errors.New("store.postgres_dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid server port %d", c.Server.Port))
	}
	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required when auth is enabled"))
	}
	if !c.Auth.Enabled && c.Auth.DefaultSubject == "" {
		errs = append(errs, errors.New("auth.default_subject is required when auth is disabled"))
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.Window <= 0 || c.RateLimit.Max <= 0 {
			errs = append(errs, errors.New("ratelimit.window and ratelimit.max must be positive"))
		}
		switch c.RateLimit.Store {
		case "memory":
		case "redis":
			if c.RateLimit.RedisAddr == "" {
				errs = append(errs, errors.New("ratelimit.redis_addr is required for the redis store"))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown rate limit store %q", c.RateLimit.Store))
		}
	}

	switch c.Log.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

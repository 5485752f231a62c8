// Package config loads cart settings from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

type Config struct {
	Storage StorageConfig `yaml:"storage"`
	NATS    NATSConfig    `yaml:"nats"`
	Cart    CartConfig    `yaml:"cart"`
	Logging LoggingConfig `yaml:"logging"`
}

type StorageConfig struct {
	Driver     string         `yaml:"driver"`
	SQLitePath string         `yaml:"sqlite_path"`
	Redis      RedisConfig    `yaml:"redis"`
	Postgres   PostgresConfig `yaml:"postgres"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// NATSConfig enables publishing of cart events when URL is set.
type NATSConfig struct {
	URL string `yaml:"url"`
}

type CartConfig struct {
	RefreshOnAdd bool          `yaml:"refresh_on_add"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Driver:     DriverSQLite,
			SQLitePath: filepath.Join(".gomarketplace", "cart.db"),
		},
		Cart: CartConfig{
			WriteTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads path (when not empty) over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("CART_STORAGE_DRIVER"); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv("CART_SQLITE_PATH"); v != "" {
		c.Storage.SQLitePath = v
	}
	if v := os.Getenv("CART_REDIS_ADDR"); v != "" {
		c.Storage.Redis.Addr = v
	}
	if v := os.Getenv("CART_REDIS_PASSWORD"); v != "" {
		c.Storage.Redis.Password = v
	}
	if v := os.Getenv("CART_POSTGRES_DSN"); v != "" {
		c.Storage.Postgres.DSN = v
	}
	if v := os.Getenv("CART_NATS_URL"); v != "" {
		c.NATS.URL = v
	}
	if v := os.Getenv("CART_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CART_REFRESH_ON_ADD"); v != "" {
		refresh, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid CART_REFRESH_ON_ADD %q: %w", v, err)
		}
		c.Cart.RefreshOnAdd = refresh
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			return errors.New("storage.sqlite_path is required for the sqlite driver")
		}
	case DriverRedis:
		if c.Storage.Redis.Addr == "" {
			return errors.New("storage.redis.addr is required for the redis driver")
		}
	case DriverPostgres:
		if c.Storage.Postgres.DSN == "" {
			return errors.New("storage.postgres.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.Cart.WriteTimeout < 0 {
		return errors.New("cart.write_timeout must not be negative")
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}
	return nil
}

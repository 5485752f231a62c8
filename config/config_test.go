package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CART_STORAGE_DRIVER",
		"CART_SQLITE_PATH",
		"CART_REDIS_ADDR",
		"CART_REDIS_PASSWORD",
		"CART_POSTGRES_DSN",
		"CART_NATS_URL",
		"CART_LOG_LEVEL",
		"CART_REFRESH_ON_ADD",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, 10*time.Second, cfg.Cart.WriteTimeout)
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "cart.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  driver: redis
  redis:
    addr: localhost:6379
    db: 2
nats:
  url: nats://localhost:4222
cart:
  refresh_on_add: true
  write_timeout: 3s
logging:
  level: debug
  format: console
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DriverRedis, cfg.Storage.Driver)
	assert.Equal(t, "localhost:6379", cfg.Storage.Redis.Addr)
	assert.Equal(t, 2, cfg.Storage.Redis.DB)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.True(t, cfg.Cart.RefreshOnAdd)
	assert.Equal(t, 3*time.Second, cfg.Cart.WriteTimeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	// unset keys keep their defaults
	assert.Equal(t, DefaultConfig().Storage.SQLitePath, cfg.Storage.SQLitePath)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("CART_STORAGE_DRIVER", "postgres")
	t.Setenv("CART_POSTGRES_DSN", "postgres://cart@localhost/cart")
	t.Setenv("CART_LOG_LEVEL", "warn")
	t.Setenv("CART_REFRESH_ON_ADD", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, "postgres://cart@localhost/cart", cfg.Storage.Postgres.DSN)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.True(t, cfg.Cart.RefreshOnAdd)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		clearEnv(t)
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})

	t.Run("bad yaml", func(t *testing.T) {
		clearEnv(t)
		path := filepath.Join(t.TempDir(), "cart.yaml")
		require.NoError(t, os.WriteFile(path, []byte("storage: ["), 0o644))
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("bad bool", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("CART_REFRESH_ON_ADD", "sometimes")
		_, err := Load("")
		assert.ErrorContains(t, err, "CART_REFRESH_ON_ADD")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "memory", mutate: func(c *Config) { c.Storage.Driver = DriverMemory }},
		{name: "unknown driver", mutate: func(c *Config) { c.Storage.Driver = "etcd" }, wantErr: "unknown storage driver"},
		{name: "sqlite without path", mutate: func(c *Config) { c.Storage.SQLitePath = "" }, wantErr: "sqlite_path"},
		{name: "redis without addr", mutate: func(c *Config) { c.Storage.Driver = DriverRedis }, wantErr: "redis.addr"},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Storage.Driver = DriverPostgres }, wantErr: "postgres.dsn"},
		{name: "negative timeout", mutate: func(c *Config) { c.Cart.WriteTimeout = -time.Second }, wantErr: "write_timeout"},
		{name: "bad format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: "log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "cart.yaml")

	cfg := DefaultConfig()
	cfg.Storage.Driver = DriverMemory
	cfg.Cart.RefreshOnAdd = true
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

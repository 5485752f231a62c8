package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresPool is an interface that represents a connection pool to a driver.
type PostgresPool interface {
	// BeginTx starts a new transaction and returns a Tx.
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)

	// Exec executes an SQL command and returns the command tag.
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)

	// QueryRow executes an SQL query and returns a single row.
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row

	// Close closes the pool and all its connections.
	Close()
}

// DB holds the driver connection pool
type DB struct {
	Pool PostgresPool
}

// maxOpenDbConn defines the maximum number of open driver connections.
const maxOpenDbConn = 10

// maxDbLifetime is the maximum lifetime of a driver connection in the pool.
// When a connection reaches its maximum lifetime, it will be closed and a new connection will be created.
const maxDbLifetime = 5 * time.Minute

// ConnectSQL parses dsn, creates a pgx pool capped at maxOpenDbConn
// connections and checks that a connection can be acquired.
func ConnectSQL(ctx context.Context, dsn string) (*DB, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	config.MaxConns = int32(maxOpenDbConn)
	config.MaxConnLifetime = maxDbLifetime

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}

	if err = testDB(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &DB{Pool: pool}, nil
}

// testDB acquires and releases a connection from the pool
func testDB(ctx context.Context, p *pgxpool.Pool) error {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()
	return nil
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS kv_store (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

var _ KeyValueStore = (*PostgresStore)(nil)

// PostgresStore keeps values in a kv_store table.
type PostgresStore struct {
	conn PostgresPool
	tm   *TransactionManager
}

// NewPostgresStore creates the kv_store table if it does not exist.
func NewPostgresStore(ctx context.Context, conn PostgresPool, tm *TransactionManager) (*PostgresStore, error) {
	if _, err := conn.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("failed to create kv_store table: %w", err)
	}
	return &PostgresStore{conn: conn, tm: tm}, nil
}

func (p *PostgresStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := p.conn.QueryRow(ctx, `SELECT value FROM kv_store WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, true, nil
}

func (p *PostgresStore) Set(ctx context.Context, key, value string) error {
	return p.tm.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO kv_store (key, value, updated_at) VALUES ($1, $2, now())
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
			key, value)
		if err != nil {
			return fmt.Errorf("failed to set %s: %w", key, err)
		}
		return nil
	})
}

func (p *PostgresStore) Remove(ctx context.Context, key string) error {
	if _, err := p.conn.Exec(ctx, `DELETE FROM kv_store WHERE key = $1`, key); err != nil {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}

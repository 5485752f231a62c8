package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

const defaultTxRetries = 3

type TransactionManager struct {
	conn   PostgresPool
	logger *zap.Logger
}

func NewTransactionManager(conn PostgresPool, logger *zap.Logger) *TransactionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransactionManager{
		conn:   conn,
		logger: logger,
	}
}

// ExecuteTransaction runs fn in a repeatable-read transaction, retrying on
// serialization failures and deadlocks.
func (m *TransactionManager) ExecuteTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return m.ExecuteTransactionWithRetry(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead}, fn, defaultTxRetries)
}

func (m *TransactionManager) ExecuteTransactionWithOptions(ctx context.Context, opts pgx.TxOptions, fn func(tx pgx.Tx) error) (err error) {
	dbTx, err := m.conn.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin transaction failed: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			m.rollback(ctx, dbTx)
			m.logger.Error("panic in transaction", zap.Any("panic", p))
			panic(p) // re-throw panic after Rollback
		} else if err != nil {
			m.rollback(ctx, dbTx)
		} else if err = dbTx.Commit(ctx); err != nil {
			m.logger.Error("commit transaction failed", zap.Error(err))
			err = fmt.Errorf("commit transaction failed: %w", err)
		}
	}()

	return fn(dbTx)
}

func (m *TransactionManager) ExecuteTransactionWithRetry(ctx context.Context, opts pgx.TxOptions, fn func(tx pgx.Tx) error, maxRetries int) error {
	var err error
	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			m.logger.Warn("Transaction failed, retrying", zap.Int("attempt", i+1), zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(i) * 100 * time.Millisecond):
			}
		}

		if err = m.ExecuteTransactionWithOptions(ctx, opts, fn); err == nil {
			return nil
		}
		if !isRetryableError(err) {
			return err
		}
	}
	return fmt.Errorf("transaction failed after %d attempts: %w", maxRetries, err)
}

func (m *TransactionManager) rollback(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		m.logger.Error("rollback failed", zap.Error(err))
	}
}

// isRetryableError reports serialization_failure (40001) and
// deadlock_detected (40P01).
func isRetryableError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

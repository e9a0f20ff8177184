// Package repository implements the domain store interfaces on PostgreSQL
// using pgx. A transaction started by TxRunner travels on the context, so
// every repository method transparently joins the ambient transaction.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/geraidev/checkout/db"
	"github.com/geraidev/checkout/internal/domain/order"
)

// NewPool creates a pgxpool.Pool configured with shopspring/decimal support
// for NUMERIC columns.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	return pool, nil
}

// RunMigrations executes the embedded DDL schema against the pool.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, db.Schema)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// querier is the subset of pgx operations shared by a pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// txKey carries the ambient pgx.Tx on the context.
type txKey struct{}

// q returns the ambient transaction when present, the pool otherwise.
func q(ctx context.Context, pool *pgxpool.Pool) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return pool
}

// TxConfig bounds the two blocking points of a checkout transaction: row
// lock acquisition and the overall transaction (including commit). Both
// bounds are finite so a stuck finalization fails with a retryable error
// instead of hanging.
type TxConfig struct {
	LockTimeout time.Duration
	TxTimeout   time.Duration
}

// TxRunner runs functions inside serializable transactions.
type TxRunner struct {
	pool *pgxpool.Pool
	cfg  TxConfig
}

var _ order.TxRunner = (*TxRunner)(nil)

// NewTxRunner returns a TxRunner over the given pool.
func NewTxRunner(pool *pgxpool.Pool, cfg TxConfig) *TxRunner {
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 3 * time.Second
	}
	if cfg.TxTimeout <= 0 {
		cfg.TxTimeout = 15 * time.Second
	}
	return &TxRunner{pool: pool, cfg: cfg}
}

// InSerializableTx executes fn inside one SERIALIZABLE transaction with a
// per-transaction lock timeout. Serialization failures, deadlocks, lock
// timeouts, and the transaction deadline all map to order.ErrConflict so
// callers can retry the whole operation.
func (r *TxRunner) InSerializableTx(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.TxTimeout)
	defer cancel()

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.cfg.LockTimeout.Milliseconds())); err != nil {
		return errors.Wrap(err, "set lock timeout")
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return mapTxError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return mapTxError(errors.Wrap(err, "commit"))
	}
	return nil
}

// Postgres error codes that make the whole transaction worth retrying.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

func mapTxError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
			return errors.Wrap(order.ErrConflict, pgErr.Message)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(order.ErrConflict, "transaction deadline exceeded")
	}
	return err
}

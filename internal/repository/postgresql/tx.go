package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"parkease/internal/repository"
	"time"

	log "github.com/sirupsen/logrus"
)

type txKey struct{}

// querier is the part of *sql.DB and *sql.Tx the repositories use.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn returns the transaction carried by ctx, or db when there is none.
func conn(ctx context.Context, db *sql.DB) querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return db
}

type pgTxManager struct {
	db          *sql.DB
	maxAttempts int
	backoff     time.Duration
}

// NewPgTxManager runs transactions at SERIALIZABLE isolation and retries
// serialization failures up to maxAttempts times.
func NewPgTxManager(db *sql.DB, maxAttempts int) repository.TxManager {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &pgTxManager{db: db, maxAttempts: maxAttempts, backoff: 20 * time.Millisecond}
}

func (m *pgTxManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, nested := ctx.Value(txKey{}).(*sql.Tx); nested {
		return fn(ctx)
	}

	return m.retry(ctx, func() error { return m.runOnce(ctx, fn) })
}

// retry runs attempt until it succeeds, fails with something other than a
// serialization failure, or maxAttempts is reached.
func (m *pgTxManager) retry(ctx context.Context, attempt func() error) error {
	var err error
	for n := 1; n <= m.maxAttempts; n++ {
		err = attempt()
		if err == nil || !errors.Is(err, repository.ErrSerialization) || n == m.maxAttempts {
			return err
		}
		log.WithFields(log.Fields{"attempt": n, "max_attempts": m.maxAttempts}).
			WithError(err).Debug("transaction serialization failure, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(n) * m.backoff):
		}
	}
	return err
}

func (m *pgTxManager) runOnce(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := m.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", classify(err))
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.WithError(rbErr).Warn("transaction rollback failed")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", classify(err))
	}
	return nil
}

package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type contextKey string

const DBTxKey contextKey = "db_tx"

// Querier is the subset of pgx shared by pools, connections and transactions.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Beginner starts transactions. *pgxpool.Pool satisfies it.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// txState is what travels in the context for the lifetime of a unit of work.
type txState struct {
	tx    pgx.Tx
	hooks []func()
}

func stateFromContext(ctx context.Context) *txState {
	if ctx == nil {
		return nil
	}
	st, _ := ctx.Value(DBTxKey).(*txState)
	return st
}

// TxFromContext returns the transaction bound to ctx, or nil.
func TxFromContext(ctx context.Context) pgx.Tx {
	if st := stateFromContext(ctx); st != nil {
		return st.tx
	}
	return nil
}

// Conn returns the transaction bound to ctx when there is one, otherwise
// fallback.
func Conn(ctx context.Context, fallback Querier) Querier {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}
	return fallback
}

// AfterCommit schedules fn to run once the outermost unit of work commits.
// Outside a unit of work fn runs immediately.
func AfterCommit(ctx context.Context, fn func()) {
	if st := stateFromContext(ctx); st != nil {
		st.hooks = append(st.hooks, fn)
		return
	}
	fn()
}

// WithTx begins a transaction on b and binds it to the returned context.
func WithTx(ctx context.Context, b Beginner) (context.Context, pgx.Tx, error) {
	if b == nil {
		return ctx, nil, errors.New("no database connection in context")
	}
	tx, err := b.Begin(ctx)
	if err != nil {
		return ctx, nil, err
	}
	return context.WithValue(ctx, DBTxKey, &txState{tx: tx}), tx, nil
}

// TxRunner runs fn as one atomic unit of work. Implementations join a unit
// of work already present in ctx.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// PgTxRunner runs units of work as PostgreSQL transactions.
type PgTxRunner struct {
	db Beginner
}

func NewTxRunner(b Beginner) *PgTxRunner {
	return &PgTxRunner{db: b}
}

func (r *PgTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if stateFromContext(ctx) != nil {
		return fn(ctx)
	}

	txCtx, tx, err := WithTx(ctx, r.db)
	if err != nil {
		return TranslateError(err, "")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(txCtx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return TranslateError(err, "")
	}
	runHooks(stateFromContext(txCtx))
	return nil
}

// NopTxRunner runs fn directly. It is used with in-memory repositories.
type NopTxRunner struct{}

func (NopTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if stateFromContext(ctx) != nil {
		return fn(ctx)
	}
	st := &txState{}
	if err := fn(context.WithValue(ctx, DBTxKey, st)); err != nil {
		return err
	}
	runHooks(st)
	return nil
}

func runHooks(st *txState) {
	if st == nil {
		return
	}
	for _, fn := range st.hooks {
		fn()
	}
}

package signage

import (
	"context"
	"database/sql"
	"fmt"
)

// TxRunner runs a unit of work against a Store.
type TxRunner interface {
	Run(ctx context.Context, fn func(ctx context.Context, store *Store) error) error
}

// DirectRunner runs work straight against a Store. Each repository call
// commits on its own, so a failing unit of work leaves its earlier steps
// persisted.
type DirectRunner struct {
	store *Store
}

// NewDirectRunner returns a runner that uses store without a transaction.
func NewDirectRunner(store *Store) *DirectRunner {
	return &DirectRunner{store: store}
}

// Run calls fn with the runner's store.
func (r *DirectRunner) Run(ctx context.Context, fn func(ctx context.Context, store *Store) error) error {
	return fn(ctx, r.store)
}

// SQLiteTxRunner runs each unit of work in one SQLite transaction, rolled
// back when fn fails.
//
// fn must only use the Store it is given. With a single-connection pool a
// call through any other handle blocks until the transaction ends.
type SQLiteTxRunner struct {
	db *sql.DB
}

// NewSQLiteTxRunner returns a transactional runner over db.
func NewSQLiteTxRunner(db *sql.DB) *SQLiteTxRunner {
	return &SQLiteTxRunner{db: db}
}

// Run begins a transaction, calls fn with a Store bound to it, and commits
// when fn returns nil.
func (r *SQLiteTxRunner) Run(ctx context.Context, fn func(ctx context.Context, store *Store) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr(err, "beginning transaction")
	}

	if err := fn(ctx, NewSQLiteStore(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return storageErr(err, "committing transaction")
	}
	return nil
}

package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// TxRunner wraps each state transition in a single database transaction.
type TxRunner struct {
	db *sqlx.DB
}

func NewTxRunner(db *sqlx.DB) *TxRunner {
	return &TxRunner{db: db}
}

// WithTx executes fn inside a transaction. Any error rolls back every write
// made by fn; a partial transition must never persist.
func (r *TxRunner) WithTx(ctx context.Context, fn func(ext sqlx.ExtContext) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

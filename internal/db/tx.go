package db

import (
	"context"
	"database/sql"
)

// Tx is an open transaction with the queries bound to it.
type Tx struct {
	*Queries
	sqltx *sql.Tx
}

func (t Tx) Commit() error {
	return t.sqltx.Commit()
}

// Discard rolls the transaction back, it does nothing once the transaction committed.
func (t Tx) Discard() {
	t.sqltx.Rollback()
}

// MakeTx opens a transaction, components hold one instead of the *sql.DB so tests
// can observe or fail transactions.
type MakeTx = func(ctx context.Context) (Tx, error)

func NewMakeTx(database *sql.DB) MakeTx {
	return func(ctx context.Context) (Tx, error) {
		sqltx, err := database.BeginTx(ctx, nil)
		if err != nil {
			return Tx{}, err
		}
		return Tx{Queries: New(sqltx), sqltx: sqltx}, nil
	}
}

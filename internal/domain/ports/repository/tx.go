package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an infra-defined transaction handle (pgx.Tx for Postgres).
// Repositories accept nil to run outside a transaction.
type Tx interface{}

var NoTX interface{}

// TransactionManager runs fn inside one database transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}

package store

import (
	"context"
	"database/sql"
)

// DBTX is the slice of database/sql behavior the stores need. Both *sql.DB
// and *sql.Tx satisfy it, which is what makes WithTx possible: a store
// rebinds itself to a transaction without changing any query code.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

package repository

import "context"

// LedgerRepository stores credit balances. Every mutation is a single atomic
// statement; callers never read a balance and write it back.
type LedgerRepository interface {
	// Balance returns domain.ErrNotFound when the user has no account.
	Balance(ctx context.Context, tx Tx, userID int64) (int, error)
	// EnsureAccount creates the account with grant credits if it does not exist.
	// created reports whether this call inserted the row.
	EnsureAccount(ctx context.Context, tx Tx, userID int64, grant int) (balance int, created bool, err error)
	// Add upserts the account and increments it, returning the new balance.
	Add(ctx context.Context, tx Tx, userID int64, amount int) (int, error)
	// DebitOne decrements by one only when the balance is positive.
	DebitOne(ctx context.Context, tx Tx, userID int64) (balance int, ok bool, err error)
}

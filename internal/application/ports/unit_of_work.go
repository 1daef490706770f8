package ports

import "context"

// UnitOfWork runs a function inside one database transaction: commit when fn
// returns nil, rollback otherwise.
//
// The context passed to fn carries the transaction. Every repository call made
// with that context joins the transaction; calls made with the outer context
// do not. Nested Execute calls reuse the ambient transaction rather than
// opening a second one.
type UnitOfWork interface {
	Execute(ctx context.Context, fn func(ctx context.Context) error) error

	// ExecuteWithResult is Execute for callers that need a value back out of
	// the transaction.
	ExecuteWithResult(ctx context.Context, fn func(ctx context.Context) (interface{}, error)) (interface{}, error)
}

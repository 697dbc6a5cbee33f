package repositories

import (
	"context"
)

// UnitOfWork defines the interface for atomic operations
type UnitOfWork interface {
	// Do executes the given function within a transaction scope. Nested calls
	// reuse the outer transaction.
	Do(ctx context.Context, fn func(ctx context.Context) error) error
	// WithLock marks ctx so that repository reads inside Do take row locks
	// (SELECT ... FOR UPDATE).
	WithLock(ctx context.Context) context.Context
}

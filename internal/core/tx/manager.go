// Package tx declares the transaction contracts domain services depend on.
// The PostgreSQL implementation lives in infrastructure/storage/postgres.
package tx

import (
	"context"
)

// Manager runs fn in one database transaction. An error from fn rolls it
// back. Nested calls join the transaction already in ctx.
type Manager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Snapshotter runs read-only work against one consistent snapshot, so a
// balance and the lines it sums cannot disagree.
type Snapshotter interface {
	Snapshot(ctx context.Context, fn func(ctx context.Context) error) error
}

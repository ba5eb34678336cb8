package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// BatchInserter bulk inserts rows with the COPY protocol. Charge issuance
// writes one row per unit of a building in a single call.
type BatchInserter struct {
	txManager *TxManager
}

// NewBatchInserter creates a new batch inserter.
func NewBatchInserter(txManager *TxManager) *BatchInserter {
	return &BatchInserter{txManager: txManager}
}

// CopyFromSlice inserts rows into table. Each row must match columns.
func (b *BatchInserter) CopyFromSlice(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	tx := b.txManager.GetTx(ctx)
	if tx == nil {
		return 0, fmt.Errorf("CopyFromSlice requires transaction context")
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return tx.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
}

// CopyStructs inserts items into table using their db tags for column order.
func CopyStructs[T any](ctx context.Context, b *BatchInserter, table string, items []T) (int64, error) {
	columns := ExtractDBColumns[T]()
	rows := make([][]any, 0, len(items))
	for _, item := range items {
		rows = append(rows, StructValues(item, columns))
	}
	return b.CopyFromSlice(ctx, table, columns, rows)
}

// BatchExecutor sends several statements in one round-trip.
type BatchExecutor struct {
	txManager *TxManager
}

// NewBatchExecutor creates a new batch executor.
func NewBatchExecutor(txManager *TxManager) *BatchExecutor {
	return &BatchExecutor{txManager: txManager}
}

// BatchQuery is one statement of a batch.
type BatchQuery struct {
	SQL  string
	Args []any
}

// ExecuteBatch runs queries in order and returns the total rows affected.
// The first failing statement aborts the batch.
func (e *BatchExecutor) ExecuteBatch(ctx context.Context, queries []BatchQuery) (int64, error) {
	tx := e.txManager.GetTx(ctx)
	if tx == nil {
		return 0, fmt.Errorf("ExecuteBatch requires transaction context")
	}
	if len(queries) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, q := range queries {
		batch.Queue(q.SQL, q.Args...)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	var affected int64
	for i := range queries {
		tag, err := results.Exec()
		if err != nil {
			return affected, fmt.Errorf("batch query %d failed: %w", i, err)
		}
		affected += tag.RowsAffected()
	}
	return affected, nil
}

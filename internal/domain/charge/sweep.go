package charge

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"condo/internal/core/id"
	"condo/internal/core/tx"
	"condo/internal/core/types"
	"condo/pkg/logger"
)

var tracer = otel.Tracer("condo/charge")

// DefaultSweepBatchSize bounds memory and lock time of one sweep chunk.
const DefaultSweepBatchSize = 500

// SweepResult summarizes one penalty sweep.
type SweepResult struct {
	Date    time.Time `json:"date"`
	Scanned int       `json:"scanned"`
	Updated int64     `json:"updated"`
	Chunks  int       `json:"chunks"`
}

// Sweeper runs the daily penalty recompute over overdue unpaid charges.
//
// Each chunk is read, recomputed in memory and written back in its own
// transaction with one bulk statement. Recompute is idempotent, so a sweep
// interrupted midway converges on the next run.
type Sweeper struct {
	charges   UnifiedChargeRepository
	txManager tx.Manager
	batchSize int
}

// NewSweeper creates a penalty sweeper. batchSize <= 0 uses DefaultSweepBatchSize.
func NewSweeper(charges UnifiedChargeRepository, txManager tx.Manager, batchSize int) *Sweeper {
	if batchSize <= 0 {
		batchSize = DefaultSweepBatchSize
	}
	return &Sweeper{charges: charges, txManager: txManager, batchSize: batchSize}
}

// Run recomputes penalties as of today.
func (s *Sweeper) Run(ctx context.Context, today time.Time) (SweepResult, error) {
	today = types.Date(today)
	res := SweepResult{Date: today}
	after := id.Nil()

	for {
		page, err := s.charges.ListOverdue(ctx, OverduePage{After: after, Today: today, Limit: s.batchSize})
		if err != nil {
			return res, fmt.Errorf("list overdue charges: %w", err)
		}
		if len(page) == 0 {
			break
		}
		after = page[len(page)-1].ID
		res.Scanned += len(page)
		res.Chunks++

		n, err := s.sweepChunk(ctx, res.Chunks, page, today)
		if err != nil {
			return res, err
		}
		res.Updated += n

		if len(page) < s.batchSize {
			break
		}
	}

	logger.Info(ctx, "penalty sweep finished",
		"date", today.Format(types.DateLayout),
		"scanned", res.Scanned,
		"updated", res.Updated,
		"chunks", res.Chunks,
	)
	return res, nil
}

func (s *Sweeper) sweepChunk(ctx context.Context, chunk int, page []*UnifiedCharge, today time.Time) (int64, error) {
	ctx, span := tracer.Start(ctx, "penalty_sweep.chunk",
		trace.WithAttributes(
			attribute.Int("sweep.chunk", chunk),
			attribute.Int("sweep.rows", len(page)),
		))
	defer span.End()

	var updates []PenaltyUpdate
	for _, c := range page {
		if c.RecomputePenalty(today) {
			updates = append(updates, PenaltyUpdate{
				ChargeID: c.ID,
				Penalty:  c.PenaltyAmount,
				Total:    c.TotalChargeMonth,
			})
		}
	}
	if len(updates) == 0 {
		return 0, nil
	}

	var written int64
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		n, err := s.charges.ApplyPenalties(ctx, updates)
		if err != nil {
			return fmt.Errorf("apply penalties: %w", err)
		}
		written = n
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	span.SetAttributes(attribute.Int64("sweep.updated", written))
	return written, nil
}

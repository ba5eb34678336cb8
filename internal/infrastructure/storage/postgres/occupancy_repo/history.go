package occupancy_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"condo/internal/core/id"
	"condo/internal/domain/occupancy"
	"condo/internal/infrastructure/storage/postgres"
)

const historyTable = "unit_residence_history"

// HistoryRepo implements occupancy.HistoryRepository.
type HistoryRepo struct {
	*postgres.BaseRepo[*occupancy.Residence]
	batch *postgres.BatchExecutor
}

var _ occupancy.HistoryRepository = (*HistoryRepo)(nil)

// NewHistoryRepo creates a new residence history repository.
func NewHistoryRepo(txm *postgres.TxManager) *HistoryRepo {
	return &HistoryRepo{
		BaseRepo: postgres.NewBaseRepo(txm, "Residence", historyTable, func() *occupancy.Residence { return &occupancy.Residence{} }),
		batch:    postgres.NewBatchExecutor(txm),
	}
}

// ListOpen returns the unit's intervals with no to_date.
func (r *HistoryRepo) ListOpen(ctx context.Context, unitID id.ID) ([]*occupancy.Residence, error) {
	return r.List(ctx, r.Select().
		Where(squirrel.Eq{"unit_id": unitID}).
		Where(squirrel.Eq{"to_date": nil}).
		OrderBy("from_date", "id"))
}

// ListByUnit returns the whole ledger ordered by from_date.
func (r *HistoryRepo) ListByUnit(ctx context.Context, unitID id.ID) ([]*occupancy.Residence, error) {
	return r.List(ctx, r.Select().
		Where(squirrel.Eq{"unit_id": unitID}).
		OrderBy("from_date", "id"))
}

// Apply writes closures, amendments and new intervals in one round-trip.
func (r *HistoryRepo) Apply(ctx context.Context, delta occupancy.HistoryDelta) error {
	if delta.IsEmpty() {
		return nil
	}
	queries, err := historyQueries(delta, r.Columns())
	if err != nil {
		return err
	}
	if _, err := r.batch.ExecuteBatch(ctx, queries); err != nil {
		return fmt.Errorf("apply residence history: %w", err)
	}
	return nil
}

// historyQueries builds the statements of a delta. Closures only touch
// intervals that are still open.
func historyQueries(delta occupancy.HistoryDelta, columns []string) ([]postgres.BatchQuery, error) {
	b := postgres.Builder()
	var queries []postgres.BatchQuery
	add := func(q squirrel.Sqlizer) error {
		sql, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("build history statement: %w", err)
		}
		queries = append(queries, postgres.BatchQuery{SQL: sql, Args: args})
		return nil
	}

	for _, c := range delta.Close {
		if err := add(b.Update(historyTable).
			Set("to_date", c.ToDate).
			Where(squirrel.Eq{"id": c.ResidenceID}).
			Where(squirrel.Eq{"to_date": nil})); err != nil {
			return nil, err
		}
	}
	for _, a := range delta.Amend {
		if err := add(b.Update(historyTable).
			Set("name", a.Name).
			Set("mobile", a.Mobile).
			Set("people_count", a.PeopleCount).
			Set("from_date", a.FromDate).
			Set("to_date", a.ToDate).
			Where(squirrel.Eq{"id": a.ID})); err != nil {
			return nil, err
		}
	}
	for _, o := range delta.Open {
		if err := add(b.Insert(historyTable).
			Columns(columns...).
			Values(postgres.StructValues(o, columns)...)); err != nil {
			return nil, err
		}
	}
	return queries, nil
}

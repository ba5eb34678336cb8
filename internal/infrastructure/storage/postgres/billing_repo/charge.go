package billing_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"condo/internal/core/apperror"
	"condo/internal/core/id"
	"condo/internal/domain/charge"
	"condo/internal/infrastructure/storage/postgres"
)

const (
	chargeTable = "unified_charges"

	// unique (unit_id, definition_id)
	chargePerUnitConstraint = "unified_charges_unit_definition_key"
)

// applyPenaltiesSQL writes a sweep chunk in one statement. Rows paid since
// they were read, or already holding the value, are left alone.
const applyPenaltiesSQL = `
	UPDATE unified_charges AS c
	SET penalty_amount     = u.penalty,
	    total_charge_month = u.total,
	    version            = c.version + 1,
	    updated_at         = NOW()
	FROM unnest($1::uuid[], $2::bigint[], $3::bigint[]) AS u(id, penalty, total)
	WHERE c.id = u.id
	  AND NOT c.is_paid
	  AND (c.penalty_amount <> u.penalty OR c.total_charge_month <> u.total)`

// ChargeRepo implements charge.UnifiedChargeRepository.
type ChargeRepo struct {
	*postgres.BaseRepo[*charge.UnifiedCharge]
	inserter *postgres.BatchInserter
}

var _ charge.UnifiedChargeRepository = (*ChargeRepo)(nil)

// NewChargeRepo creates a new unified charge repository.
func NewChargeRepo(txm *postgres.TxManager) *ChargeRepo {
	return &ChargeRepo{
		BaseRepo: postgres.NewBaseRepo(txm, "UnifiedCharge", chargeTable, func() *charge.UnifiedCharge { return &charge.UnifiedCharge{} }),
		inserter: postgres.NewBatchInserter(txm),
	}
}

// InsertMany bulk inserts charges with COPY.
func (r *ChargeRepo) InsertMany(ctx context.Context, charges []*charge.UnifiedCharge) (int64, error) {
	n, err := postgres.CopyStructs(ctx, r.inserter, chargeTable, charges)
	if postgres.IsUniqueViolation(err, chargePerUnitConstraint) {
		return 0, apperror.NewConflict("charge was issued concurrently for one of the units").WithCause(err)
	}
	if err != nil {
		return 0, fmt.Errorf("copy unified charges: %w", err)
	}
	return n, nil
}

// IssuedUnitIDs returns the units among unitIDs already charged for defID.
func (r *ChargeRepo) IssuedUnitIDs(ctx context.Context, defID id.ID, unitIDs []id.ID) (map[id.ID]bool, error) {
	out := make(map[id.ID]bool)
	if len(unitIDs) == 0 {
		return out, nil
	}
	sql, args, err := postgres.Builder().
		Select("unit_id").
		From(chargeTable).
		Where(squirrel.Eq{"definition_id": defID}).
		Where("unit_id = ANY(?)", unitIDs).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build issued query: %w", err)
	}

	rows, err := r.Querier(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query issued units: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var unitID id.ID
		if err := rows.Scan(&unitID); err != nil {
			return nil, fmt.Errorf("scan issued unit: %w", err)
		}
		out[unitID] = true
	}
	return out, rows.Err()
}

// ListOverdue returns one keyset page of sweep candidates ordered by id.
func (r *ChargeRepo) ListOverdue(ctx context.Context, page charge.OverduePage) ([]*charge.UnifiedCharge, error) {
	return r.List(ctx, overdueQuery(r.Select(), page))
}

func overdueQuery(q squirrel.SelectBuilder, page charge.OverduePage) squirrel.SelectBuilder {
	q = q.
		Where(squirrel.Eq{"is_paid": false}).
		Where(squirrel.Gt{"penalty_percent": 0}).
		Where(squirrel.Lt{"payment_deadline_date": page.Today}).
		OrderBy("id")
	if !id.IsNil(page.After) {
		q = q.Where(squirrel.Gt{"id": page.After})
	}
	if page.Limit > 0 {
		q = q.Limit(uint64(page.Limit))
	}
	return q
}

// ApplyPenalties writes changed penalties with a single unnest update.
func (r *ChargeRepo) ApplyPenalties(ctx context.Context, updates []charge.PenaltyUpdate) (int64, error) {
	if len(updates) == 0 {
		return 0, nil
	}
	ids, penalties, totals := penaltyArrays(updates)
	tag, err := r.Querier(ctx).Exec(ctx, applyPenaltiesSQL, ids, penalties, totals)
	if err != nil {
		return 0, fmt.Errorf("apply penalties: %w", err)
	}
	return tag.RowsAffected(), nil
}

func penaltyArrays(updates []charge.PenaltyUpdate) ([]id.ID, []int64, []int64) {
	ids := make([]id.ID, len(updates))
	penalties := make([]int64, len(updates))
	totals := make([]int64, len(updates))
	for i, u := range updates {
		ids[i] = u.ChargeID
		penalties[i] = u.Penalty.Int64()
		totals[i] = u.Total.Int64()
	}
	return ids, penalties, totals
}

// ListUnpaidByUnit returns the unit's open obligations, oldest first.
func (r *ChargeRepo) ListUnpaidByUnit(ctx context.Context, unitID id.ID) ([]*charge.UnifiedCharge, error) {
	return r.List(ctx, r.Select().
		Where(squirrel.Eq{"unit_id": unitID}).
		Where(squirrel.Eq{"is_paid": false}).
		OrderBy("created_at", "id"))
}

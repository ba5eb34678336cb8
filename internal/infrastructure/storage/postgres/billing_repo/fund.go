package billing_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"condo/internal/core/apperror"
	"condo/internal/core/id"
	"condo/internal/core/types"
	"condo/internal/domain/fund"
	"condo/internal/infrastructure/storage/postgres"
)

const (
	fundTable = "funds"

	// partial unique (unit_id, account_id, description) WHERE is_initial
	firstChargeConstraint = "funds_first_charge_once"
)

// FundRepo implements fund.Repository.
type FundRepo struct {
	*postgres.BaseRepo[*fund.Entry]
}

var _ fund.Repository = (*FundRepo)(nil)

// NewFundRepo creates a new fund ledger repository.
func NewFundRepo(txm *postgres.TxManager) *FundRepo {
	return &FundRepo{
		BaseRepo: postgres.NewBaseRepo(txm, "FundEntry", fundTable, func() *fund.Entry { return &fund.Entry{} }),
	}
}

// Create appends a ledger line.
func (r *FundRepo) Create(ctx context.Context, e *fund.Entry) error {
	err := r.BaseRepo.Create(ctx, e)
	if postgres.IsUniqueViolation(err, firstChargeConstraint) {
		return apperror.NewConcurrentModification("FundEntry", e.UnitID.String()).WithCause(err)
	}
	return err
}

// HasInitial reports whether the first-charge marker already exists.
func (r *FundRepo) HasInitial(ctx context.Context, unitID id.ID, accountID *id.ID, description string) (bool, error) {
	return r.Exists(ctx, initialWhere(unitID, accountID, description))
}

func initialWhere(unitID id.ID, accountID *id.ID, description string) squirrel.And {
	where := squirrel.And{
		squirrel.Eq{"unit_id": unitID},
		squirrel.Eq{"description": description},
		squirrel.Eq{"is_initial": true},
	}
	if accountID == nil {
		return append(where, squirrel.Eq{"account_id": nil})
	}
	return append(where, squirrel.Eq{"account_id": *accountID})
}

// ListByUnit returns the unit's ledger in posting order.
func (r *FundRepo) ListByUnit(ctx context.Context, unitID id.ID) ([]*fund.Entry, error) {
	return r.List(ctx, r.Select().
		Where(squirrel.Eq{"unit_id": unitID}).
		OrderBy("payment_date", "created_at", "id"))
}

// Balance sums both sides of the unit's ledger.
func (r *FundRepo) Balance(ctx context.Context, unitID id.ID) (fund.Balance, error) {
	b := fund.Balance{UnitID: unitID}
	sql, args, err := postgres.Builder().
		Select(
			"COALESCE(SUM(debtor_amount), 0)::bigint",
			"COALESCE(SUM(creditor_amount), 0)::bigint",
		).
		From(fundTable).
		Where(squirrel.Eq{"unit_id": unitID}).
		ToSql()
	if err != nil {
		return b, fmt.Errorf("build balance query: %w", err)
	}

	var debtor, creditor int64
	if err := r.Querier(ctx).QueryRow(ctx, sql, args...).Scan(&debtor, &creditor); err != nil {
		return b, fmt.Errorf("fund balance: %w", err)
	}
	b.Debtor, b.Creditor = types.Amount(debtor), types.Amount(creditor)
	return b, nil
}

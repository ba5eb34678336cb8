package billing_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"condo/internal/core/id"
	"condo/internal/domain/charge"
	"condo/internal/infrastructure/storage/postgres"
)

// TargetRepo implements charge.TargetSource over units and their active renters.
type TargetRepo struct {
	txManager *postgres.TxManager
}

var _ charge.TargetSource = (*TargetRepo)(nil)

// NewTargetRepo creates a new issuance target source.
func NewTargetRepo(txm *postgres.TxManager) *TargetRepo {
	return &TargetRepo{txManager: txm}
}

// IssueTargets returns the manager's active units with the person to notify:
// the active renter, else the owner.
func (r *TargetRepo) IssueTargets(ctx context.Context, managerID id.ID, houseID *id.ID, unitIDs []id.ID) ([]charge.IssueTarget, error) {
	sql, args, err := targetQuery(managerID, houseID, unitIDs).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build targets query: %w", err)
	}

	var targets []charge.IssueTarget
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &targets, sql, args...); err != nil {
		return nil, fmt.Errorf("query issue targets: %w", err)
	}
	return targets, nil
}

func targetQuery(managerID id.ID, houseID *id.ID, unitIDs []id.ID) squirrel.SelectBuilder {
	q := postgres.Builder().
		Select(
			"u.id AS unit_id",
			"u.area",
			"u.people_count",
			"COALESCE(r.renter_name, u.owner_name) AS recipient_name",
			"COALESCE(r.renter_mobile, u.owner_mobile) AS recipient_mobile",
		).
		From("units u").
		LeftJoin("renters r ON r.unit_id = u.id AND r.renter_is_active").
		Where(squirrel.Eq{"u.manager_id": managerID}).
		Where(squirrel.Eq{"u.is_active": true}).
		OrderBy("u.id")
	if houseID != nil {
		q = q.Where(squirrel.Eq{"u.house_id": *houseID})
	}
	if len(unitIDs) > 0 {
		q = q.Where("u.id = ANY(?)", unitIDs)
	}
	return q
}

package occupancy_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"condo/internal/core/apperror"
	"condo/internal/core/id"
	"condo/internal/domain/occupancy"
	"condo/internal/infrastructure/storage/postgres"
)

const (
	renterTable = "renters"

	// partial unique (unit_id) WHERE renter_is_active
	oneActiveRenterConstraint = "renters_one_active_per_unit"
)

// RenterRepo implements occupancy.RenterRepository.
type RenterRepo struct {
	*postgres.BaseRepo[*occupancy.Renter]
}

var _ occupancy.RenterRepository = (*RenterRepo)(nil)

// NewRenterRepo creates a new renter repository.
func NewRenterRepo(txm *postgres.TxManager) *RenterRepo {
	return &RenterRepo{
		BaseRepo: postgres.NewBaseRepo(txm, "Renter", renterTable, func() *occupancy.Renter { return &occupancy.Renter{} }),
	}
}

// Create inserts a tenancy. A second active tenancy of the same unit is a
// concurrent save that lost the race.
func (r *RenterRepo) Create(ctx context.Context, renter *occupancy.Renter) error {
	err := r.BaseRepo.Create(ctx, renter)
	if postgres.IsUniqueViolation(err, oneActiveRenterConstraint) {
		return apperror.NewConcurrentModification("Unit", renter.UnitID.String()).WithCause(err)
	}
	return err
}

// GetActive returns the unit's active renter or nil.
func (r *RenterRepo) GetActive(ctx context.Context, unitID id.ID) (*occupancy.Renter, error) {
	renter, ok, err := r.FindOne(ctx, r.Select().
		Where(squirrel.Eq{"unit_id": unitID}).
		Where(squirrel.Eq{"renter_is_active": true}).
		Limit(1))
	if err != nil || !ok {
		return nil, err
	}
	return renter, nil
}

// ListByUnit returns every tenancy of the unit, newest first.
func (r *RenterRepo) ListByUnit(ctx context.Context, unitID id.ID) ([]*occupancy.Renter, error) {
	return r.List(ctx, r.Select().Where(squirrel.Eq{"unit_id": unitID}).OrderBy("created_at DESC"))
}

// DeactivateAll ends every active tenancy of the unit at endDate.
func (r *RenterRepo) DeactivateAll(ctx context.Context, unitID id.ID, endDate time.Time) (int, error) {
	sql, args, err := postgres.Builder().
		Update(renterTable).
		Set("renter_is_active", false).
		Set("end_date", endDate).
		Set("updated_at", time.Now().UTC()).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"unit_id": unitID}).
		Where(squirrel.Eq{"renter_is_active": true}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build deactivate: %w", err)
	}

	tag, err := r.Querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("deactivate renters: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

package occupancy_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"condo/internal/core/apperror"
	"condo/internal/core/id"
	"condo/internal/domain"
	"condo/internal/domain/occupancy"
	"condo/internal/infrastructure/storage/postgres"
)

const (
	unitTable = "units"

	// unique (manager_id, unit_number)
	unitNumberConstraint = "units_manager_number_key"
)

var unitOrderable = map[string]bool{
	"unit_number": true,
	"owner_name":  true,
	"created_at":  true,
	"area":        true,
}

// UnitRepo implements occupancy.UnitRepository.
type UnitRepo struct {
	*postgres.BaseRepo[*occupancy.Unit]
}

var _ occupancy.UnitRepository = (*UnitRepo)(nil)

// NewUnitRepo creates a new unit repository.
func NewUnitRepo(txm *postgres.TxManager) *UnitRepo {
	return &UnitRepo{
		BaseRepo: postgres.NewBaseRepo(txm, "Unit", unitTable, func() *occupancy.Unit { return &occupancy.Unit{} }),
	}
}

// Create inserts a unit. A taken unit number maps to a duplicate error.
func (r *UnitRepo) Create(ctx context.Context, unit *occupancy.Unit) error {
	if err := r.BaseRepo.Create(ctx, unit); err != nil {
		return mapUnitError(err, unit)
	}
	return nil
}

// Update writes the unit with optimistic locking.
func (r *UnitRepo) Update(ctx context.Context, unit *occupancy.Unit) error {
	if err := r.BaseRepo.Update(ctx, unit); err != nil {
		return mapUnitError(err, unit)
	}
	return nil
}

// ListByManager returns one page of the manager's active units.
func (r *UnitRepo) ListByManager(ctx context.Context, managerID id.ID, filter domain.ListFilter) (domain.ListResult[*occupancy.Unit], error) {
	q := r.Select().
		Where(squirrel.Eq{"manager_id": managerID}).
		Where(squirrel.Eq{"is_active": true})

	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"unit_number": pattern},
			squirrel.ILike{"owner_name": pattern},
			squirrel.ILike{"owner_mobile": pattern},
		})
	}
	return r.Page(ctx, q, filter, unitOrderable)
}

// ExistsNumber reports whether the manager already uses unitNumber on another unit.
func (r *UnitRepo) ExistsNumber(ctx context.Context, managerID id.ID, unitNumber string, exclude id.ID) (bool, error) {
	return r.Exists(ctx, squirrel.And{
		squirrel.Eq{"manager_id": managerID},
		squirrel.Eq{"unit_number": unitNumber},
		squirrel.NotEq{"id": exclude},
	})
}

func mapUnitError(err error, unit *occupancy.Unit) error {
	if postgres.IsUniqueViolation(err, unitNumberConstraint) {
		return apperror.NewDuplicate("Unit", "unitNumber", unit.UnitNumber).WithCause(err)
	}
	if postgres.IsForeignKeyViolation(err) {
		return apperror.NewFieldValidation("houseId", "building does not exist").WithCause(err)
	}
	if apperror.IsAppError(err) {
		return err
	}
	return fmt.Errorf("unit %s: %w", unit.ID, err)
}

// Package occupancy_repo provides PostgreSQL repositories for buildings,
// units, tenancies and the residence history ledger.
package occupancy_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"condo/internal/core/apperror"
	"condo/internal/core/id"
	"condo/internal/domain/occupancy"
	"condo/internal/infrastructure/storage/postgres"
)

const houseTable = "houses"

// HouseRepo implements occupancy.HouseRepository.
type HouseRepo struct {
	*postgres.BaseRepo[*occupancy.House]
}

var _ occupancy.HouseRepository = (*HouseRepo)(nil)

// NewHouseRepo creates a new house repository.
func NewHouseRepo(txm *postgres.TxManager) *HouseRepo {
	return &HouseRepo{
		BaseRepo: postgres.NewBaseRepo(txm, "House", houseTable, func() *occupancy.House { return &occupancy.House{} }),
	}
}

// DefaultForManager returns the manager's oldest building.
func (r *HouseRepo) DefaultForManager(ctx context.Context, managerID id.ID) (*occupancy.House, error) {
	h, ok, err := r.FindOne(ctx, r.Select().
		Where(squirrel.Eq{"manager_id": managerID}).
		OrderBy("created_at", "id").
		Limit(1))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.NewNotFound("House", managerID.String())
	}
	return h, nil
}

// ListByManager returns the manager's buildings.
func (r *HouseRepo) ListByManager(ctx context.Context, managerID id.ID) ([]*occupancy.House, error) {
	return r.List(ctx, r.Select().Where(squirrel.Eq{"manager_id": managerID}).OrderBy("created_at", "id"))
}

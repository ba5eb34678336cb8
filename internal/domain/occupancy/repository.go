package occupancy

import (
	"context"
	"time"

	"condo/internal/core/id"
	"condo/internal/domain"
)

// HouseRepository reads buildings.
type HouseRepository interface {
	GetByID(ctx context.Context, houseID id.ID) (*House, error)

	// DefaultForManager returns the manager's first building.
	// Returns NotFound when the manager has none.
	DefaultForManager(ctx context.Context, managerID id.ID) (*House, error)
}

// UnitRepository persists units.
type UnitRepository interface {
	Create(ctx context.Context, unit *Unit) error

	// Update writes the unit with optimistic locking on Version.
	Update(ctx context.Context, unit *Unit) error

	GetByID(ctx context.Context, unitID id.ID) (*Unit, error)

	// GetForUpdate loads the unit with a row lock (SELECT ... FOR UPDATE).
	GetForUpdate(ctx context.Context, unitID id.ID) (*Unit, error)

	// ListByManager returns the units managed by managerID.
	ListByManager(ctx context.Context, managerID id.ID, filter domain.ListFilter) (domain.ListResult[*Unit], error)

	// ExistsNumber reports whether managerID already has a unit with this number.
	ExistsNumber(ctx context.Context, managerID id.ID, unitNumber string, exclude id.ID) (bool, error)
}

// RenterRepository persists tenancies.
type RenterRepository interface {
	Create(ctx context.Context, renter *Renter) error
	Update(ctx context.Context, renter *Renter) error

	// GetActive returns the unit's active renter or nil when there is none.
	GetActive(ctx context.Context, unitID id.ID) (*Renter, error)

	// DeactivateAll ends every active tenancy of the unit at endDate
	// and returns the number of rows changed.
	DeactivateAll(ctx context.Context, unitID id.ID, endDate time.Time) (int, error)
}

// HistoryRepository persists the residence ledger.
type HistoryRepository interface {
	// ListOpen returns the unit's intervals with no to_date.
	ListOpen(ctx context.Context, unitID id.ID) ([]*Residence, error)

	// ListByUnit returns the whole ledger ordered by from_date.
	ListByUnit(ctx context.Context, unitID id.ID) ([]*Residence, error)

	// Apply persists a delta. Must run inside a transaction.
	Apply(ctx context.Context, delta HistoryDelta) error
}

package charge

import (
	"context"
	"time"

	"condo/internal/core/id"
	"condo/internal/core/types"
)

// DefinitionRepository persists charge definitions.
type DefinitionRepository interface {
	Create(ctx context.Context, def *Definition) error
	GetByID(ctx context.Context, defID id.ID) (*Definition, error)
}

// IssueTarget is a unit as seen by issuance: formula inputs and the
// person to notify (active renter, else owner).
type IssueTarget struct {
	UnitID          id.ID      `db:"unit_id"`
	Area            types.Area `db:"area"`
	PeopleCount     int        `db:"people_count"`
	RecipientName   string     `db:"recipient_name"`
	RecipientMobile string     `db:"recipient_mobile"`
}

// Snapshot returns the formula inputs of the target.
func (t IssueTarget) Snapshot() UnitSnapshot {
	return UnitSnapshot{Area: t.Area, PeopleCount: t.PeopleCount}
}

// TargetSource resolves issuance targets.
type TargetSource interface {
	// IssueTargets returns the manager's active units. An empty unitIDs means
	// every unit (optionally limited to houseID).
	IssueTargets(ctx context.Context, managerID id.ID, houseID *id.ID, unitIDs []id.ID) ([]IssueTarget, error)
}

// PenaltyUpdate is one changed row of a penalty sweep.
type PenaltyUpdate struct {
	ChargeID id.ID
	Penalty  types.Amount
	Total    types.Amount
}

// OverduePage selects a keyset page of sweep candidates.
type OverduePage struct {
	After id.ID // exclusive; id.Nil() for the first page
	Today time.Time
	Limit int
}

// UnifiedChargeRepository persists unified charges.
type UnifiedChargeRepository interface {
	// InsertMany bulk inserts charges. Must run inside a transaction.
	InsertMany(ctx context.Context, charges []*UnifiedCharge) (int64, error)

	// IssuedUnitIDs returns the units among unitIDs already charged for defID.
	IssuedUnitIDs(ctx context.Context, defID id.ID, unitIDs []id.ID) (map[id.ID]bool, error)

	GetByID(ctx context.Context, chargeID id.ID) (*UnifiedCharge, error)

	// GetForUpdate loads the charge with a row lock.
	GetForUpdate(ctx context.Context, chargeID id.ID) (*UnifiedCharge, error)

	// Update writes the charge with optimistic locking on Version.
	Update(ctx context.Context, c *UnifiedCharge) error

	// ListOverdue returns unpaid charges with a positive rate and a deadline
	// before Today, ordered by id, starting after page.After.
	ListOverdue(ctx context.Context, page OverduePage) ([]*UnifiedCharge, error)

	// ApplyPenalties writes changed penalties in one statement, skipping rows
	// that got paid meanwhile or already hold the value. Returns rows written.
	ApplyPenalties(ctx context.Context, updates []PenaltyUpdate) (int64, error)

	// ListUnpaidByUnit returns the unit's open obligations, oldest first.
	ListUnpaidByUnit(ctx context.Context, unitID id.ID) ([]*UnifiedCharge, error)
}

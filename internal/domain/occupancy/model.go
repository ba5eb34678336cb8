// Package occupancy holds units, tenancies and the residence history ledger.
// It owns the truth of who lives in a unit and since when.
package occupancy

import (
	"context"
	"strings"
	"time"

	"condo/internal/core/apperror"
	"condo/internal/core/entity"
	"condo/internal/core/id"
	"condo/internal/core/types"
)

// House is a building administered by a middle admin (MyHouse).
type House struct {
	ID        id.ID     `db:"id" json:"id"`
	ManagerID id.ID     `db:"manager_id" json:"managerId"`
	Name      string    `db:"name" json:"name"`
	Address   string    `db:"address" json:"address"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Unit is a billable space inside a building.
type Unit struct {
	entity.BaseEntity

	ManagerID  id.ID  `db:"manager_id" json:"managerId"`
	HouseID    *id.ID `db:"house_id" json:"houseId,omitempty"`
	UnitNumber string `db:"unit_number" json:"unitNumber"`

	Area          types.Area `db:"area" json:"area"`
	BedroomsCount int        `db:"bedrooms_count" json:"bedroomsCount"`
	ParkingCount  int        `db:"parking_count" json:"parkingCount"`

	// Optional extra parking slots; ParkingAddonCount is derived from them.
	ExtraParkingFirst  string `db:"extra_parking_first" json:"extraParkingFirst,omitempty"`
	ExtraParkingSecond string `db:"extra_parking_second" json:"extraParkingSecond,omitempty"`
	ParkingAddonCount  int    `db:"parking_addon_count" json:"parkingAddonCount"`

	OwnerName         string       `db:"owner_name" json:"ownerName"`
	OwnerMobile       string       `db:"owner_mobile" json:"ownerMobile"`
	OwnerNationalCode string       `db:"owner_national_code" json:"ownerNationalCode,omitempty"`
	OwnerPeopleCount  string       `db:"owner_people_count" json:"ownerPeopleCount"`
	OwnerAccountID    *id.ID       `db:"owner_account_id" json:"ownerAccountId,omitempty"`
	OwnerFirstCharge  types.Amount `db:"owner_first_charge" json:"ownerFirstCharge"`

	IsRenter bool   `db:"is_renter" json:"isRenter"`
	BankID   *id.ID `db:"bank_id" json:"bankId,omitempty"`

	// PeopleCount is derived; see RecomputePeopleCount.
	PeopleCount int  `db:"people_count" json:"peopleCount"`
	IsActive    bool `db:"is_active" json:"isActive"`
}

// NewUnit creates a unit owned by managerID.
func NewUnit(managerID id.ID, unitNumber string) *Unit {
	return &Unit{
		BaseEntity: entity.NewBaseEntity(),
		ManagerID:  managerID,
		UnitNumber: unitNumber,
		IsActive:   true,
	}
}

// Validate implements entity.Validatable.
func (u *Unit) Validate(ctx context.Context) error {
	if strings.TrimSpace(u.UnitNumber) == "" {
		return apperror.NewFieldValidation("unitNumber", "unit number is required")
	}
	if u.Area.IsNegative() {
		return apperror.NewFieldValidation("area", "area must not be negative")
	}
	if strings.TrimSpace(u.OwnerName) == "" {
		return apperror.NewFieldValidation("ownerName", "owner name is required")
	}
	if strings.TrimSpace(u.OwnerMobile) == "" {
		return apperror.NewFieldValidation("ownerMobile", "owner mobile is required")
	}
	return nil
}

// RecomputeParkingAddon counts the filled extra parking slots.
func (u *Unit) RecomputeParkingAddon() {
	n := 0
	if strings.TrimSpace(u.ExtraParkingFirst) != "" {
		n++
	}
	if strings.TrimSpace(u.ExtraParkingSecond) != "" {
		n++
	}
	u.ParkingAddonCount = n
}

// RecomputePeopleCount sets PeopleCount from the active resident:
// the active renter when present, otherwise the owner.
func (u *Unit) RecomputePeopleCount(active *Renter) {
	u.PeopleCount = PeopleCount(u, active)
}

// PeopleCount returns the head count of whoever currently lives in the unit.
// Unparseable counts are treated as zero.
func PeopleCount(u *Unit, active *Renter) int {
	if active != nil && active.IsActive {
		return types.ParseCount(active.PeopleCount)
	}
	return types.ParseCount(u.OwnerPeopleCount)
}

// Renter is a tenancy attached to a unit.
type Renter struct {
	entity.BaseEntity

	UnitID       id.ID  `db:"unit_id" json:"unitId"`
	AccountID    *id.ID `db:"account_id" json:"accountId,omitempty"`
	Name         string `db:"renter_name" json:"name"`
	Mobile       string `db:"renter_mobile" json:"mobile"`
	NationalCode string `db:"renter_national_code" json:"nationalCode,omitempty"`
	PeopleCount  string `db:"renter_people_count" json:"peopleCount"`

	StartDate *time.Time `db:"start_date" json:"startDate,omitempty"`
	EndDate   *time.Time `db:"end_date" json:"endDate,omitempty"`

	FirstCharge types.Amount `db:"first_charge" json:"firstCharge"`
	IsActive    bool         `db:"renter_is_active" json:"isActive"`
}

// NewRenter creates an active tenancy for unitID.
func NewRenter(unitID id.ID) *Renter {
	return &Renter{
		BaseEntity: entity.NewBaseEntity(),
		UnitID:     unitID,
		IsActive:   true,
	}
}

// Validate implements entity.Validatable.
func (r *Renter) Validate(ctx context.Context) error {
	if strings.TrimSpace(r.Name) == "" {
		return apperror.NewFieldValidation("renterName", "renter name is required")
	}
	if strings.TrimSpace(r.Mobile) == "" {
		return apperror.NewFieldValidation("renterMobile", "renter mobile is required")
	}
	if r.StartDate != nil && r.EndDate != nil && r.StartDate.After(*r.EndDate) {
		return apperror.NewFieldValidation("renterEndDate", "end date must not be before start date")
	}
	return nil
}

// Deactivate ends the tenancy on the given day.
func (r *Renter) Deactivate(today time.Time) {
	r.IsActive = false
	r.EndDate = types.DatePtr(today)
	r.Touch()
}

// ResidentType identifies the history thread a residence row belongs to.
type ResidentType string

const (
	ResidentOwner  ResidentType = "owner"
	ResidentRenter ResidentType = "renter"
)

// Residence is one interval of the residence history ledger.
// ToDate nil means the interval is still open.
type Residence struct {
	entity.Record

	UnitID       id.ID        `db:"unit_id" json:"unitId"`
	ResidentType ResidentType `db:"resident_type" json:"residentType"`
	RenterID     *id.ID       `db:"renter_id" json:"renterId,omitempty"`
	Name         string       `db:"name" json:"name"`
	Mobile       string       `db:"mobile" json:"mobile"`
	PeopleCount  int          `db:"people_count" json:"peopleCount"`
	FromDate     time.Time    `db:"from_date" json:"fromDate"`
	ToDate       *time.Time   `db:"to_date" json:"toDate,omitempty"`
}

// IsOpen reports whether the interval has not been closed yet.
func (r *Residence) IsOpen() bool {
	return r.ToDate == nil
}

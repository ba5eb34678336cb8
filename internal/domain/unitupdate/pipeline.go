package unitupdate

import (
	"context"
	"fmt"
	"time"

	"condo/internal/core/apperror"
	"condo/internal/core/id"
	"condo/internal/core/types"
	"condo/internal/domain/account"
	"condo/internal/domain/fund"
	"condo/internal/domain/occupancy"
)

// The save runs as a fixed chain of stages. Each stage takes the previous
// stage's output, so the order owner -> account -> renter -> charges is
// carried by the types:
//
//	load/blank -> resolveOwner -> resolveAccount -> upsertRenter -> postFirstCharges -> finish

// loadedState is the unit as stored plus the submitted form.
type loadedState struct {
	form  *UnitForm
	today time.Time

	unit   *occupancy.Unit     // working copy, mutated by later stages
	before occupancy.Unit      // stored state, zero on create
	prev   *occupancy.Snapshot // nil on create
	active *occupancy.Renter   // active renter before the save
	isNew  bool
}

// ownerResolved knows how the owner identity moved and has applied the form.
type ownerResolved struct {
	loadedState
	change      occupancy.OwnerChange
	deactivated int
}

// accountResolved has the owner linked to a login account.
type accountResolved struct {
	ownerResolved
	owner *account.User
}

// renterResolved has the tenancy written: renter is the active tenancy after
// the save, nil when the unit is not rented.
type renterResolved struct {
	accountResolved
	renter *occupancy.Renter
}

// chargesPosted has the one-time opening balances on the ledger.
type chargesPosted struct {
	renterResolved
	posted int
}

// load is stage 1 of an update: lock the unit, check scope, default the building.
func (s *Service) load(ctx context.Context, unitID id.ID, form *UnitForm, today time.Time) (loadedState, error) {
	unit, err := s.units.GetForUpdate(ctx, unitID)
	if err != nil {
		return loadedState{}, err
	}
	if err := requireUnit(ctx, unit); err != nil {
		return loadedState{}, err
	}
	active, err := s.renters.GetActive(ctx, unit.ID)
	if err != nil {
		return loadedState{}, fmt.Errorf("load active renter: %w", err)
	}
	prev := occupancy.SnapshotOf(unit, active)

	st := loadedState{
		form:   form,
		today:  today,
		unit:   unit,
		before: *unit,
		prev:   &prev,
		active: active,
	}
	if err := s.resolveHouse(ctx, st); err != nil {
		return loadedState{}, err
	}
	return st, nil
}

// blank is stage 1 of a create: a fresh unit owned by the acting manager.
func (s *Service) blank(ctx context.Context, form *UnitForm, today time.Time) (loadedState, error) {
	managerID, err := actingManager(ctx, form.ManagerID)
	if err != nil {
		return loadedState{}, err
	}
	st := loadedState{
		form:  form,
		today: today,
		unit:  occupancy.NewUnit(managerID, form.UnitNumber),
		isNew: true,
	}
	if err := s.resolveHouse(ctx, st); err != nil {
		return loadedState{}, err
	}
	return st, nil
}

func (s *Service) resolveHouse(ctx context.Context, st loadedState) error {
	u := st.unit
	if st.form.HouseID != nil {
		house, err := s.houses.GetByID(ctx, *st.form.HouseID)
		if err != nil {
			return err
		}
		if house.ManagerID != u.ManagerID {
			return apperror.NewNotFound("House", house.ID.String())
		}
		u.HouseID = &house.ID
		return nil
	}
	if u.HouseID != nil {
		return nil
	}
	house, err := s.houses.DefaultForManager(ctx, u.ManagerID)
	switch {
	case err == nil:
		u.HouseID = &house.ID
	case !apperror.IsNotFound(err):
		return fmt.Errorf("default house: %w", err)
	}
	return nil
}

// resolveOwner is stage 2: detect the owner change before anything reads the
// owner account, and void the tenancy on a full replacement.
func (s *Service) resolveOwner(ctx context.Context, st loadedState) (ownerResolved, error) {
	f := st.form
	out := ownerResolved{loadedState: st, change: occupancy.OwnerReplaced}
	if !st.isNew {
		out.change = occupancy.ClassifyOwnerChange(st.before.OwnerName, st.before.OwnerMobile, f.OwnerName, f.OwnerMobile)
	}

	taken, err := s.units.ExistsNumber(ctx, st.unit.ManagerID, f.UnitNumber, st.unit.ID)
	if err != nil {
		return out, fmt.Errorf("check unit number: %w", err)
	}
	if taken {
		return out, apperror.NewDuplicate("Unit", "unitNumber", f.UnitNumber).
			WithField("unitNumber", "unit number is already used in this building")
	}

	if !st.isNew && out.change == occupancy.OwnerReplaced && st.active != nil {
		n, err := s.renters.DeactivateAll(ctx, st.unit.ID, st.today)
		if err != nil {
			return out, fmt.Errorf("deactivate renters: %w", err)
		}
		out.deactivated = n
		out.active = nil
	}

	if err := applyUnitFields(st.unit, f); err != nil {
		return out, err
	}
	if err := st.unit.Validate(ctx); err != nil {
		return out, err
	}
	if st.isNew {
		if err := s.units.Create(ctx, st.unit); err != nil {
			return out, fmt.Errorf("create unit: %w", err)
		}
	}
	return out, nil
}

// resolveAccount is stage 3: exactly one identity receives the submitted
// credential. The owner does when it changed or nobody keeps renting the
// unit, otherwise the active renter does.
func (s *Service) resolveAccount(ctx context.Context, st ownerResolved) (accountResolved, error) {
	f := st.form
	out := accountResolved{ownerResolved: st}
	u := st.unit

	ownerTargeted := st.change != occupancy.OwnerUnchanged || st.active == nil || !f.IsRenter
	password := ""
	if ownerTargeted {
		password = f.Password
	}

	var (
		owner *account.User
		err   error
	)
	if st.change == occupancy.OwnerReplaced || u.OwnerAccountID == nil {
		owner, err = s.findOrCreate(ctx, "ownerMobile", f.OwnerMobile, f.OwnerName, f.OwnerNationalCode, password)
	} else {
		owner, err = s.updateLinked(ctx, *u.OwnerAccountID, "ownerMobile", f.OwnerMobile, f.OwnerName, password)
	}
	if err != nil {
		return out, err
	}
	u.OwnerAccountID = &owner.ID
	out.owner = owner

	if ownerTargeted {
		return out, nil
	}

	// Owner unchanged and a renter is active: the renter's account follows the form.
	if st.active.AccountID == nil {
		acc, err := s.findOrCreate(ctx, "renterMobile", f.RenterMobile, f.RenterName, f.RenterNationalCode, f.Password)
		if err != nil {
			return out, err
		}
		st.active.AccountID = &acc.ID
		return out, nil
	}
	if _, err := s.updateLinked(ctx, *st.active.AccountID, "renterMobile", f.RenterMobile, f.RenterName, f.Password); err != nil {
		return out, err
	}
	return out, nil
}

// upsertRenter is stages 4 and 5: persist the renter flag and the single
// active tenancy.
func (s *Service) upsertRenter(ctx context.Context, st accountResolved) (renterResolved, error) {
	f := st.form
	u := st.unit
	out := renterResolved{accountResolved: st}

	u.IsRenter = f.IsRenter
	u.BankID = f.BankID

	if !f.IsRenter {
		if st.active != nil {
			st.active.Deactivate(st.today)
			if err := s.renters.Update(ctx, st.active); err != nil {
				return out, fmt.Errorf("end tenancy: %w", err)
			}
		}
		return out, nil
	}

	if st.active != nil {
		applyRenterFields(st.active, f)
		if err := st.active.Validate(ctx); err != nil {
			return out, err
		}
		st.active.Touch()
		if err := s.renters.Update(ctx, st.active); err != nil {
			return out, fmt.Errorf("update renter: %w", err)
		}
		out.renter = st.active
		return out, nil
	}

	acc, err := s.findOrCreate(ctx, "renterMobile", f.RenterMobile, f.RenterName, f.RenterNationalCode, "")
	if err != nil {
		return out, err
	}
	if id.Matches(u.OwnerAccountID, acc.ID) {
		return out, apperror.NewDuplicateMobile("renterMobile", f.RenterMobile)
	}

	r := occupancy.NewRenter(u.ID)
	r.AccountID = &acc.ID
	applyRenterFields(r, f)
	if err := r.Validate(ctx); err != nil {
		return out, err
	}
	if err := s.renters.Create(ctx, r); err != nil {
		return out, fmt.Errorf("create renter: %w", err)
	}
	out.renter = r
	return out, nil
}

// postFirstCharges is stages 6 and 7: one-time opening balances, renter first.
func (s *Service) postFirstCharges(ctx context.Context, st renterResolved) (chargesPosted, error) {
	out := chargesPosted{renterResolved: st}
	u := st.unit

	if st.renter != nil {
		wrote, err := s.ledger.PostFirstCharge(ctx, fund.NewFirstCharge(
			u.ManagerID, u.ID, st.renter.AccountID, fund.DescRenterFirstCharge, st.renter.FirstCharge, st.today))
		if err != nil {
			return out, err
		}
		if wrote {
			out.posted++
		}
	}

	wrote, err := s.ledger.PostFirstCharge(ctx, fund.NewFirstCharge(
		u.ManagerID, u.ID, u.OwnerAccountID, fund.DescOwnerFirstCharge, u.OwnerFirstCharge, st.today))
	if err != nil {
		return out, err
	}
	if wrote {
		out.posted++
	}
	return out, nil
}

// finish is stage 8: derived counts, the unit row, the residence ledger and the audit trail.
func (s *Service) finish(ctx context.Context, st chargesPosted) (*occupancy.Unit, error) {
	u := st.unit
	u.RecomputeParkingAddon()
	u.RecomputePeopleCount(st.renter)
	u.Touch()
	if err := s.units.Update(ctx, u); err != nil {
		return nil, fmt.Errorf("update unit: %w", err)
	}

	open, err := s.history.ListOpen(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("load open residences: %w", err)
	}
	delta := occupancy.PlanHistory(u.ID, st.prev, occupancy.SnapshotOf(u, st.renter), open, st.today)
	if !delta.IsEmpty() {
		if err := s.history.Apply(ctx, delta); err != nil {
			return nil, fmt.Errorf("apply residence history: %w", err)
		}
	}

	action := ActionUpdate
	if st.isNew {
		action = ActionCreate
	}
	if err := s.recordAudit(ctx, action, &st.before, u); err != nil {
		return nil, err
	}
	return u, nil
}

// findOrCreate links a resident account by mobile. An existing account is
// reused only when it is a resident and the same person: equal national codes
// when both sides know one, otherwise the same name. Anything else is a
// different person and the mobile is a duplicate.
func (s *Service) findOrCreate(ctx context.Context, field, mobile, name, nationalCode, password string) (*account.User, error) {
	existing, err := s.accounts.GetByMobile(ctx, mobile)
	switch {
	case err == nil:
		if existing.Role.IsStaff() || !samePerson(existing, name, nationalCode) {
			return nil, apperror.NewDuplicateMobile(field, mobile)
		}
		backfill := existing.NationalCode == "" && nationalCode != ""
		if password == "" && !backfill {
			return existing, nil
		}
		if backfill {
			existing.NationalCode = nationalCode
		}
		if err := existing.SetPassword(password); err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		if err := s.accounts.Update(ctx, existing); err != nil {
			return nil, fmt.Errorf("update account: %w", err)
		}
		return existing, nil
	case !apperror.IsNotFound(err):
		return nil, fmt.Errorf("find account by mobile: %w", err)
	}

	user := account.NewResident(mobile, name)
	user.NationalCode = nationalCode
	if err := user.Validate(ctx); err != nil {
		return nil, err
	}
	if err := user.SetPassword(password); err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if err := s.accounts.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	return user, nil
}

// updateLinked writes the submitted identity onto an already linked account.
func (s *Service) updateLinked(ctx context.Context, accountID id.ID, field, mobile, name, password string) (*account.User, error) {
	user, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("load linked account: %w", err)
	}
	if user.Mobile != mobile {
		other, err := s.accounts.GetByMobile(ctx, mobile)
		switch {
		case err == nil && other.ID != user.ID:
			return nil, apperror.NewDuplicateMobile(field, mobile)
		case err != nil && !apperror.IsNotFound(err):
			return nil, fmt.Errorf("find account by mobile: %w", err)
		}
	}

	changed := user.Mobile != mobile || user.FullName != name || password != ""
	if !changed {
		return user, nil
	}
	user.Mobile = mobile
	user.FullName = name
	if err := user.SetPassword(password); err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if err := s.accounts.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update account: %w", err)
	}
	return user, nil
}

func applyUnitFields(u *occupancy.Unit, f *UnitForm) error {
	area, err := types.NewAreaFromString(f.Area)
	if err != nil {
		return apperror.NewFieldValidation("area", "area must be a number")
	}
	u.UnitNumber = f.UnitNumber
	u.Area = area
	u.BedroomsCount = f.BedroomsCount
	u.ParkingCount = f.ParkingCount
	u.ExtraParkingFirst = f.ExtraParkingFirst
	u.ExtraParkingSecond = f.ExtraParkingSecond

	u.OwnerName = f.OwnerName
	u.OwnerMobile = f.OwnerMobile
	u.OwnerNationalCode = f.OwnerNationalCode
	u.OwnerPeopleCount = f.OwnerPeopleCount
	u.OwnerFirstCharge = types.Amount(f.OwnerFirstCharge)
	return nil
}

func applyRenterFields(r *occupancy.Renter, f *UnitForm) {
	r.Name = f.RenterName
	r.Mobile = f.RenterMobile
	r.NationalCode = f.RenterNationalCode
	r.PeopleCount = f.RenterPeopleCount
	r.StartDate, r.EndDate = f.RenterDates()
	r.FirstCharge = types.Amount(f.RenterFirstCharge)
}

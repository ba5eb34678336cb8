// Package unitupdate applies a unit save: owner, accounts, tenancy, opening
// balances, people count and the residence ledger in one transaction.
package unitupdate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"condo/internal/core/apperror"
	"condo/internal/core/id"
	"condo/internal/core/security"
	"condo/internal/core/tx"
	"condo/internal/core/types"
	"condo/internal/domain"
	"condo/internal/domain/account"
	"condo/internal/domain/fund"
	"condo/internal/domain/occupancy"
	"condo/pkg/logger"
)

// Audit actions recorded for units.
const (
	ActionCreate      = "create"
	ActionUpdate      = "update"
	ActionRenterEnded = "renter_deactivate"
)

const codeNoActiveRenter = "NO_ACTIVE_RENTER"

// Auditor records field-level changes of a unit.
type Auditor interface {
	LogChange(ctx context.Context, entityType string, entityID id.ID, action string, changes map[string]any) error
}

// Service is the single entry point for unit saves.
type Service struct {
	units    occupancy.UnitRepository
	renters  occupancy.RenterRepository
	history  occupancy.HistoryRepository
	houses   occupancy.HouseRepository
	accounts account.Repository
	ledger   *fund.Ledger
	audit    Auditor
	tx       tx.Manager
	now      func() time.Time
	loc      *time.Location
}

// ServiceConfig wires Service dependencies.
type ServiceConfig struct {
	Units     occupancy.UnitRepository
	Renters   occupancy.RenterRepository
	History   occupancy.HistoryRepository
	Houses    occupancy.HouseRepository
	Accounts  account.Repository
	Ledger    *fund.Ledger
	Audit     Auditor // optional
	TxManager tx.Manager
	Now       func() time.Time // optional, defaults to time.Now
	Location  *time.Location   // calendar of "today"; defaults to UTC
}

// NewService creates a unit update service.
func NewService(cfg ServiceConfig) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		units:    cfg.Units,
		renters:  cfg.Renters,
		history:  cfg.History,
		houses:   cfg.Houses,
		accounts: cfg.Accounts,
		ledger:   cfg.Ledger,
		audit:    cfg.Audit,
		tx:       cfg.TxManager,
		now:      now,
		loc:      loc,
	}
}

func (s *Service) today() time.Time {
	return types.DateIn(s.now(), s.loc)
}

// Update applies a submitted form to an existing unit. Any failure discards
// every write of the save.
func (s *Service) Update(ctx context.Context, unitID id.ID, form *UnitForm) (*occupancy.Unit, error) {
	if err := form.Validate(); err != nil {
		return nil, err
	}
	today := s.today()

	var saved *occupancy.Unit
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		loaded, err := s.load(ctx, unitID, form, today)
		if err != nil {
			return err
		}
		unit, posted, err := s.run(ctx, loaded)
		if err != nil {
			return err
		}
		saved = unit
		logger.Info(ctx, "unit updated", "unit_id", unit.ID, "first_charges", posted)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// Create registers a new unit with its owner and optional renter.
func (s *Service) Create(ctx context.Context, form *UnitForm) (*occupancy.Unit, error) {
	if err := form.Validate(); err != nil {
		return nil, err
	}
	today := s.today()

	var saved *occupancy.Unit
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		loaded, err := s.blank(ctx, form, today)
		if err != nil {
			return err
		}
		unit, posted, err := s.run(ctx, loaded)
		if err != nil {
			return err
		}
		saved = unit
		logger.Info(ctx, "unit created", "unit_id", unit.ID, "first_charges", posted)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (s *Service) run(ctx context.Context, loaded loadedState) (*occupancy.Unit, int, error) {
	owner, err := s.resolveOwner(ctx, loaded)
	if err != nil {
		return nil, 0, err
	}
	if owner.deactivated > 0 {
		logger.Info(ctx, "owner replaced, tenancy voided", "unit_id", owner.unit.ID, "renters", owner.deactivated)
	}
	acc, err := s.resolveAccount(ctx, owner)
	if err != nil {
		return nil, 0, err
	}
	renter, err := s.upsertRenter(ctx, acc)
	if err != nil {
		return nil, 0, err
	}
	posted, err := s.postFirstCharges(ctx, renter)
	if err != nil {
		return nil, 0, err
	}
	unit, err := s.finish(ctx, posted)
	if err != nil {
		return nil, 0, err
	}
	return unit, posted.posted, nil
}

// DeactivateRenter ends the active tenancy today and hands residency back to the owner.
func (s *Service) DeactivateRenter(ctx context.Context, unitID id.ID) (*occupancy.Unit, error) {
	today := s.today()

	var saved *occupancy.Unit
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		unit, err := s.units.GetForUpdate(ctx, unitID)
		if err != nil {
			return err
		}
		if err := requireUnit(ctx, unit); err != nil {
			return err
		}
		active, err := s.renters.GetActive(ctx, unit.ID)
		if err != nil {
			return fmt.Errorf("load active renter: %w", err)
		}
		if active == nil {
			return apperror.NewBusinessRule(codeNoActiveRenter, "unit has no active renter")
		}

		before := *unit
		prev := occupancy.SnapshotOf(unit, active)

		active.Deactivate(today)
		if err := s.renters.Update(ctx, active); err != nil {
			return fmt.Errorf("end tenancy: %w", err)
		}

		unit.IsRenter = false
		unit.RecomputePeopleCount(nil)
		unit.Touch()
		if err := s.units.Update(ctx, unit); err != nil {
			return fmt.Errorf("update unit: %w", err)
		}

		open, err := s.history.ListOpen(ctx, unit.ID)
		if err != nil {
			return fmt.Errorf("load open residences: %w", err)
		}
		delta := occupancy.PlanHistory(unit.ID, &prev, occupancy.SnapshotOf(unit, nil), open, today)
		if err := s.history.Apply(ctx, delta); err != nil {
			return fmt.Errorf("apply residence history: %w", err)
		}
		if err := s.recordAudit(ctx, ActionRenterEnded, &before, unit); err != nil {
			return err
		}
		saved = unit
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "renter deactivated", "unit_id", unitID)
	return saved, nil
}

// Get returns a unit visible to the caller.
func (s *Service) Get(ctx context.Context, unitID id.ID) (*occupancy.Unit, error) {
	unit, err := s.units.GetByID(ctx, unitID)
	if err != nil {
		return nil, err
	}
	if err := requireUnit(ctx, unit); err != nil {
		return nil, err
	}
	return unit, nil
}

// List returns the units of the acting manager. Admins pass managerID.
func (s *Service) List(ctx context.Context, managerID *id.ID, filter domain.ListFilter) (domain.ListResult[*occupancy.Unit], error) {
	acting, err := actingManager(ctx, managerID)
	if err != nil {
		return domain.ListResult[*occupancy.Unit]{}, err
	}
	return s.units.ListByManager(ctx, acting, filter.Normalize())
}

// History returns the residence ledger of a unit ordered by from_date.
func (s *Service) History(ctx context.Context, unitID id.ID) ([]*occupancy.Residence, error) {
	if _, err := s.Get(ctx, unitID); err != nil {
		return nil, err
	}
	return s.history.ListByUnit(ctx, unitID)
}

func (s *Service) recordAudit(ctx context.Context, action string, before, after *occupancy.Unit) error {
	if s.audit == nil {
		return nil
	}
	changes := unitChanges(before, after)
	if len(changes) == 0 {
		return nil
	}
	if err := s.audit.LogChange(ctx, "Unit", after.ID, action, changes); err != nil {
		return fmt.Errorf("audit unit: %w", err)
	}
	return nil
}

// unitChanges lists the audited fields that differ as {"old", "new"} pairs.
func unitChanges(before, after *occupancy.Unit) map[string]any {
	changes := map[string]any{}
	diff := func(field string, old, cur any) {
		if old != cur {
			changes[field] = map[string]any{"old": old, "new": cur}
		}
	}
	diff("unit_number", before.UnitNumber, after.UnitNumber)
	diff("area", before.Area.String(), after.Area.String())
	diff("owner_name", before.OwnerName, after.OwnerName)
	diff("owner_mobile", before.OwnerMobile, after.OwnerMobile)
	diff("owner_national_code", before.OwnerNationalCode, after.OwnerNationalCode)
	diff("owner_people_count", before.OwnerPeopleCount, after.OwnerPeopleCount)
	diff("owner_first_charge", before.OwnerFirstCharge.Int64(), after.OwnerFirstCharge.Int64())
	diff("is_renter", before.IsRenter, after.IsRenter)
	diff("people_count", before.PeopleCount, after.PeopleCount)
	diff("parking_addon_count", before.ParkingAddonCount, after.ParkingAddonCount)
	return changes
}

// requireUnit hides units of other managers.
func requireUnit(ctx context.Context, u *occupancy.Unit) error {
	return security.GetScope(ctx).RequireManager("Unit", u.ID.String(), u.ManagerID.String())
}

func actingManager(ctx context.Context, requested *id.ID) (id.ID, error) {
	return security.GetScope(ctx).ActingManager(requested)
}

func samePerson(u *account.User, name, nationalCode string) bool {
	if u.NationalCode != "" && nationalCode != "" {
		return u.NationalCode == nationalCode
	}
	return sameName(u.FullName, name)
}

func sameName(a, b string) bool {
	return strings.EqualFold(strings.Join(strings.Fields(a), " "), strings.Join(strings.Fields(b), " "))
}

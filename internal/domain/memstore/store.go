// Package memstore is an in-memory implementation of the domain repositories.
// Use in unit tests to avoid database dependencies.
//
// Transactions are emulated by snapshotting the whole store on begin and
// restoring it when the callback fails, so rollback behavior is observable.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"condo/internal/core/apperror"
	"condo/internal/core/id"
	"condo/internal/core/tx"
	"condo/internal/core/types"
	"condo/internal/domain"
	"condo/internal/domain/account"
	"condo/internal/domain/charge"
	"condo/internal/domain/fund"
	"condo/internal/domain/occupancy"
)

type state struct {
	houses      map[id.ID]occupancy.House
	units       map[id.ID]occupancy.Unit
	renters     map[id.ID]occupancy.Renter
	residences  map[id.ID]occupancy.Residence
	users       map[id.ID]account.User
	definitions map[id.ID]charge.Definition
	charges     map[id.ID]charge.UnifiedCharge
	entries     []fund.Entry
	events      []domain.Event
}

func newState() state {
	return state{
		houses:      map[id.ID]occupancy.House{},
		units:       map[id.ID]occupancy.Unit{},
		renters:     map[id.ID]occupancy.Renter{},
		residences:  map[id.ID]occupancy.Residence{},
		users:       map[id.ID]account.User{},
		definitions: map[id.ID]charge.Definition{},
		charges:     map[id.ID]charge.UnifiedCharge{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s state) clone() state {
	return state{
		houses:      cloneMap(s.houses),
		units:       cloneMap(s.units),
		renters:     cloneMap(s.renters),
		residences:  cloneMap(s.residences),
		users:       cloneMap(s.users),
		definitions: cloneMap(s.definitions),
		charges:     cloneMap(s.charges),
		entries:     append([]fund.Entry(nil), s.entries...),
		events:      append([]domain.Event(nil), s.events...),
	}
}

// Store holds every aggregate in memory.
type Store struct {
	mu   sync.Mutex
	data state

	// FailOn makes the named operation return the error, for rollback tests.
	FailOn map[string]error

	// Commits counts successful outermost transactions.
	Commits int
}

// New creates an empty store.
func New() *Store {
	return &Store{data: newState()}
}

func (s *Store) fail(op string) error {
	if s.FailOn == nil {
		return nil
	}
	return s.FailOn[op]
}

// --- Transactions ---

type txKey struct{}

// TxManager implements tx.Manager with snapshot rollback.
type TxManager struct{ s *Store }

// Tx returns the store's transaction manager.
func (s *Store) Tx() *TxManager { return &TxManager{s: s} }

// RunInTransaction implements tx.Manager. Nested calls join the outer transaction.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	m.s.mu.Lock()
	snapshot := m.s.data.clone()
	m.s.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		m.s.mu.Lock()
		m.s.data = snapshot
		m.s.mu.Unlock()
		return err
	}
	m.s.mu.Lock()
	m.s.Commits++
	m.s.mu.Unlock()
	return nil
}

// Snapshot implements tx.Snapshotter.
func (m *TxManager) Snapshot(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.RunInTransaction(ctx, fn)
}

var (
	_ tx.Manager     = (*TxManager)(nil)
	_ tx.Snapshotter = (*TxManager)(nil)
)

// --- Houses ---

// HouseRepo implements occupancy.HouseRepository.
type HouseRepo struct{ s *Store }

func (s *Store) Houses() *HouseRepo { return &HouseRepo{s: s} }

// AddHouse seeds a building.
func (s *Store) AddHouse(h occupancy.House) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.houses[h.ID] = h
}

func (r *HouseRepo) GetByID(ctx context.Context, houseID id.ID) (*occupancy.House, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	h, ok := r.s.data.houses[houseID]
	if !ok {
		return nil, apperror.NewNotFound("House", houseID.String())
	}
	return &h, nil
}

func (r *HouseRepo) DefaultForManager(ctx context.Context, managerID id.ID) (*occupancy.House, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var found *occupancy.House
	for _, h := range r.s.data.houses {
		if h.ManagerID != managerID {
			continue
		}
		if found == nil || h.CreatedAt.Before(found.CreatedAt) {
			h := h
			found = &h
		}
	}
	if found == nil {
		return nil, apperror.NewNotFound("House", managerID.String())
	}
	return found, nil
}

// --- Units ---

// UnitRepo implements occupancy.UnitRepository.
type UnitRepo struct{ s *Store }

func (s *Store) Units() *UnitRepo { return &UnitRepo{s: s} }

func (r *UnitRepo) Create(ctx context.Context, unit *occupancy.Unit) error {
	if err := r.s.fail("units.create"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.data.units[unit.ID] = *unit
	return nil
}

func (r *UnitRepo) Update(ctx context.Context, unit *occupancy.Unit) error {
	if err := r.s.fail("units.update"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.data.units[unit.ID]
	if !ok {
		return apperror.NewNotFound("Unit", unit.ID.String())
	}
	if cur.Version != unit.Version {
		return apperror.NewConcurrentModification("Unit", unit.ID.String())
	}
	unit.SetVersion(unit.Version + 1)
	r.s.data.units[unit.ID] = *unit
	return nil
}

func (r *UnitRepo) GetByID(ctx context.Context, unitID id.ID) (*occupancy.Unit, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.data.units[unitID]
	if !ok {
		return nil, apperror.NewNotFound("Unit", unitID.String())
	}
	return &u, nil
}

func (r *UnitRepo) GetForUpdate(ctx context.Context, unitID id.ID) (*occupancy.Unit, error) {
	return r.GetByID(ctx, unitID)
}

func (r *UnitRepo) ListByManager(ctx context.Context, managerID id.ID, filter domain.ListFilter) (domain.ListResult[*occupancy.Unit], error) {
	filter = filter.Normalize()
	r.s.mu.Lock()
	var all []*occupancy.Unit
	for _, u := range r.s.data.units {
		if u.ManagerID != managerID {
			continue
		}
		if filter.Search != "" && !strings.Contains(u.UnitNumber, filter.Search) && !strings.Contains(u.OwnerName, filter.Search) {
			continue
		}
		u := u
		all = append(all, &u)
	}
	r.s.mu.Unlock()

	sort.Slice(all, func(i, j int) bool { return all[i].UnitNumber < all[j].UnitNumber })
	res := domain.ListResult[*occupancy.Unit]{TotalCount: int64(len(all)), Limit: filter.Limit, Offset: filter.Offset}
	if filter.Offset < len(all) {
		end := min(filter.Offset+filter.Limit, len(all))
		res.Items = all[filter.Offset:end]
	}
	return res, nil
}

func (r *UnitRepo) ExistsNumber(ctx context.Context, managerID id.ID, unitNumber string, exclude id.ID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.data.units {
		if u.ManagerID == managerID && u.UnitNumber == unitNumber && u.ID != exclude {
			return true, nil
		}
	}
	return false, nil
}

// --- Renters ---

// RenterRepo implements occupancy.RenterRepository.
type RenterRepo struct{ s *Store }

func (s *Store) Renters() *RenterRepo { return &RenterRepo{s: s} }

func (r *RenterRepo) Create(ctx context.Context, renter *occupancy.Renter) error {
	if err := r.s.fail("renters.create"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.data.renters[renter.ID] = *renter
	return nil
}

func (r *RenterRepo) Update(ctx context.Context, renter *occupancy.Renter) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.data.renters[renter.ID]
	if !ok {
		return apperror.NewNotFound("Renter", renter.ID.String())
	}
	if cur.Version != renter.Version {
		return apperror.NewConcurrentModification("Renter", renter.ID.String())
	}
	renter.SetVersion(renter.Version + 1)
	r.s.data.renters[renter.ID] = *renter
	return nil
}

func (r *RenterRepo) GetActive(ctx context.Context, unitID id.ID) (*occupancy.Renter, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, rn := range r.s.data.renters {
		if rn.UnitID == unitID && rn.IsActive {
			return &rn, nil
		}
	}
	return nil, nil
}

func (r *RenterRepo) DeactivateAll(ctx context.Context, unitID id.ID, endDate time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for key, rn := range r.s.data.renters {
		if rn.UnitID != unitID || !rn.IsActive {
			continue
		}
		rn.IsActive = false
		rn.EndDate = types.DatePtr(endDate)
		rn.Version++
		r.s.data.renters[key] = rn
		n++
	}
	return n, nil
}

// AllRenters returns every tenancy of a unit, active or not.
func (s *Store) AllRenters(unitID id.ID) []occupancy.Renter {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []occupancy.Renter
	for _, rn := range s.data.renters {
		if rn.UnitID == unitID {
			out = append(out, rn)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// --- Residence history ---

// HistoryRepo implements occupancy.HistoryRepository.
type HistoryRepo struct{ s *Store }

func (s *Store) History() *HistoryRepo { return &HistoryRepo{s: s} }

func (r *HistoryRepo) ListOpen(ctx context.Context, unitID id.ID) ([]*occupancy.Residence, error) {
	all, _ := r.ListByUnit(ctx, unitID)
	var open []*occupancy.Residence
	for _, row := range all {
		if row.IsOpen() {
			open = append(open, row)
		}
	}
	return open, nil
}

func (r *HistoryRepo) ListByUnit(ctx context.Context, unitID id.ID) ([]*occupancy.Residence, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*occupancy.Residence
	for _, row := range r.s.data.residences {
		if row.UnitID == unitID {
			row := row
			out = append(out, &row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FromDate.Equal(out[j].FromDate) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].FromDate.Before(out[j].FromDate)
	})
	return out, nil
}

func (r *HistoryRepo) Apply(ctx context.Context, delta occupancy.HistoryDelta) error {
	if err := r.s.fail("history.apply"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range delta.Close {
		row, ok := r.s.data.residences[c.ResidenceID]
		if !ok {
			return apperror.NewNotFound("Residence", c.ResidenceID.String())
		}
		to := c.ToDate
		row.ToDate = &to
		r.s.data.residences[row.ID] = row
	}
	for _, a := range delta.Amend {
		r.s.data.residences[a.ID] = *a
	}
	for _, o := range delta.Open {
		r.s.data.residences[o.ID] = *o
	}
	return nil
}

// --- Accounts ---

// AccountRepo implements account.Repository.
type AccountRepo struct{ s *Store }

func (s *Store) Accounts() *AccountRepo { return &AccountRepo{s: s} }

func (r *AccountRepo) Create(ctx context.Context, user *account.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.data.users {
		if u.Mobile == user.Mobile {
			return apperror.NewDuplicateMobile("mobile", user.Mobile)
		}
	}
	r.s.data.users[user.ID] = *user
	return nil
}

func (r *AccountRepo) GetByID(ctx context.Context, userID id.ID) (*account.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.data.users[userID]
	if !ok {
		return nil, apperror.NewNotFound("User", userID.String())
	}
	return &u, nil
}

func (r *AccountRepo) GetByMobile(ctx context.Context, mobile string) (*account.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.data.users {
		if u.Mobile == mobile {
			return &u, nil
		}
	}
	return nil, apperror.NewNotFound("User", mobile)
}

func (r *AccountRepo) Update(ctx context.Context, user *account.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.data.users[user.ID]
	if !ok {
		return apperror.NewNotFound("User", user.ID.String())
	}
	if cur.Version != user.Version {
		return apperror.NewConcurrentModification("User", user.ID.String())
	}
	for _, u := range r.s.data.users {
		if u.ID != user.ID && u.Mobile == user.Mobile {
			return apperror.NewDuplicateMobile("mobile", user.Mobile)
		}
	}
	user.Version++
	user.UpdatedAt = time.Now().UTC()
	r.s.data.users[user.ID] = *user
	return nil
}

// UserCount returns the number of stored accounts.
func (s *Store) UserCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.users)
}

// --- Charge definitions ---

// DefinitionRepo implements charge.DefinitionRepository.
type DefinitionRepo struct{ s *Store }

func (s *Store) Definitions() *DefinitionRepo { return &DefinitionRepo{s: s} }

func (r *DefinitionRepo) Create(ctx context.Context, def *charge.Definition) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.data.definitions[def.ID] = *def
	return nil
}

func (r *DefinitionRepo) GetByID(ctx context.Context, defID id.ID) (*charge.Definition, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.data.definitions[defID]
	if !ok {
		return nil, apperror.NewNotFound("ChargeDefinition", defID.String())
	}
	return &d, nil
}

// --- Unified charges ---

// ChargeRepo implements charge.UnifiedChargeRepository.
type ChargeRepo struct{ s *Store }

func (s *Store) Charges() *ChargeRepo { return &ChargeRepo{s: s} }

func (r *ChargeRepo) InsertMany(ctx context.Context, charges []*charge.UnifiedCharge) (int64, error) {
	if err := r.s.fail("charges.insert"); err != nil {
		return 0, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range charges {
		r.s.data.charges[c.ID] = *c
	}
	return int64(len(charges)), nil
}

func (r *ChargeRepo) IssuedUnitIDs(ctx context.Context, defID id.ID, unitIDs []id.ID) (map[id.ID]bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	want := make(map[id.ID]bool, len(unitIDs))
	for _, u := range unitIDs {
		want[u] = true
	}
	out := map[id.ID]bool{}
	for _, c := range r.s.data.charges {
		if c.DefinitionID == defID && want[c.UnitID] {
			out[c.UnitID] = true
		}
	}
	return out, nil
}

func (r *ChargeRepo) GetByID(ctx context.Context, chargeID id.ID) (*charge.UnifiedCharge, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.data.charges[chargeID]
	if !ok {
		return nil, apperror.NewNotFound("UnifiedCharge", chargeID.String())
	}
	return &c, nil
}

func (r *ChargeRepo) GetForUpdate(ctx context.Context, chargeID id.ID) (*charge.UnifiedCharge, error) {
	return r.GetByID(ctx, chargeID)
}

func (r *ChargeRepo) Update(ctx context.Context, c *charge.UnifiedCharge) error {
	if err := r.s.fail("charges.update"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.data.charges[c.ID]
	if !ok {
		return apperror.NewNotFound("UnifiedCharge", c.ID.String())
	}
	if cur.Version != c.Version {
		return apperror.NewConcurrentModification("UnifiedCharge", c.ID.String())
	}
	c.SetVersion(c.Version + 1)
	r.s.data.charges[c.ID] = *c
	return nil
}

func (r *ChargeRepo) ListOverdue(ctx context.Context, page charge.OverduePage) ([]*charge.UnifiedCharge, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	after := page.After.String()
	var out []*charge.UnifiedCharge
	for _, c := range r.s.data.charges {
		if c.IsPaid || !c.PenaltyPercent.IsPositive() || c.PaymentDeadlineDate == nil {
			continue
		}
		if !c.PaymentDeadlineDate.Before(page.Today) {
			continue
		}
		if !id.IsNil(page.After) && c.ID.String() <= after {
			continue
		}
		c := c
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	if page.Limit > 0 && len(out) > page.Limit {
		out = out[:page.Limit]
	}
	return out, nil
}

func (r *ChargeRepo) ApplyPenalties(ctx context.Context, updates []charge.PenaltyUpdate) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, u := range updates {
		c, ok := r.s.data.charges[u.ChargeID]
		if !ok || c.IsPaid || (c.PenaltyAmount == u.Penalty && c.TotalChargeMonth == u.Total) {
			continue
		}
		c.PenaltyAmount = u.Penalty
		c.TotalChargeMonth = u.Total
		c.Version++
		r.s.data.charges[c.ID] = c
		n++
	}
	return n, nil
}

func (r *ChargeRepo) ListUnpaidByUnit(ctx context.Context, unitID id.ID) ([]*charge.UnifiedCharge, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*charge.UnifiedCharge
	for _, c := range r.s.data.charges {
		if c.UnitID == unitID && !c.IsPaid {
			c := c
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// --- Issue targets ---

// TargetRepo implements charge.TargetSource over the stored units.
type TargetRepo struct{ s *Store }

func (s *Store) Targets() *TargetRepo { return &TargetRepo{s: s} }

func (r *TargetRepo) IssueTargets(ctx context.Context, managerID id.ID, houseID *id.ID, unitIDs []id.ID) ([]charge.IssueTarget, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	want := map[id.ID]bool{}
	for _, u := range unitIDs {
		want[u] = true
	}
	var out []charge.IssueTarget
	for _, u := range r.s.data.units {
		if u.ManagerID != managerID || !u.IsActive {
			continue
		}
		if len(want) > 0 && !want[u.ID] {
			continue
		}
		if houseID != nil && (u.HouseID == nil || *u.HouseID != *houseID) {
			continue
		}
		t := charge.IssueTarget{
			UnitID:          u.ID,
			Area:            u.Area,
			PeopleCount:     u.PeopleCount,
			RecipientName:   u.OwnerName,
			RecipientMobile: u.OwnerMobile,
		}
		for _, rn := range r.s.data.renters {
			if rn.UnitID == u.ID && rn.IsActive {
				t.RecipientName = rn.Name
				t.RecipientMobile = rn.Mobile
			}
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UnitID.String() < out[j].UnitID.String() })
	return out, nil
}

// --- Fund ledger ---

// FundRepo implements fund.Repository.
type FundRepo struct{ s *Store }

func (s *Store) Funds() *FundRepo { return &FundRepo{s: s} }

func (r *FundRepo) Create(ctx context.Context, e *fund.Entry) error {
	if err := r.s.fail("funds.create"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.data.entries = append(r.s.data.entries, *e)
	return nil
}

func (r *FundRepo) HasInitial(ctx context.Context, unitID id.ID, accountID *id.ID, description string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.data.entries {
		if !e.IsInitial || e.UnitID != unitID || e.Description != description {
			continue
		}
		if sameID(e.AccountID, accountID) {
			return true, nil
		}
	}
	return false, nil
}

func (r *FundRepo) ListByUnit(ctx context.Context, unitID id.ID) ([]*fund.Entry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*fund.Entry
	for _, e := range r.s.data.entries {
		if e.UnitID == unitID {
			e := e
			out = append(out, &e)
		}
	}
	return out, nil
}

func (r *FundRepo) Balance(ctx context.Context, unitID id.ID) (fund.Balance, error) {
	entries, _ := r.ListByUnit(ctx, unitID)
	b := fund.Balance{UnitID: unitID}
	for _, e := range entries {
		b.Debtor += e.DebtorAmount
		b.Creditor += e.CreditorAmount
	}
	return b, nil
}

// Entries returns every ledger line.
func (s *Store) Entries() []fund.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]fund.Entry(nil), s.data.entries...)
}

// --- Events ---

// EventLog implements domain.EventPublisher by appending to the store.
type EventLog struct{ s *Store }

func (s *Store) Events() *EventLog { return &EventLog{s: s} }

func (l *EventLog) Publish(ctx context.Context, event domain.Event) error {
	return l.PublishBatch(ctx, []domain.Event{event})
}

func (l *EventLog) PublishBatch(ctx context.Context, events []domain.Event) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	l.s.data.events = append(l.s.data.events, events...)
	return nil
}

// Published returns the events recorded by committed (or open) transactions.
func (s *Store) Published() []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Event(nil), s.data.events...)
}

func sameID(a, b *id.ID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

var (
	_ occupancy.HouseRepository      = (*HouseRepo)(nil)
	_ occupancy.UnitRepository       = (*UnitRepo)(nil)
	_ occupancy.RenterRepository     = (*RenterRepo)(nil)
	_ occupancy.HistoryRepository    = (*HistoryRepo)(nil)
	_ account.Repository             = (*AccountRepo)(nil)
	_ charge.DefinitionRepository    = (*DefinitionRepo)(nil)
	_ charge.UnifiedChargeRepository = (*ChargeRepo)(nil)
	_ charge.TargetSource            = (*TargetRepo)(nil)
	_ fund.Repository                = (*FundRepo)(nil)
	_ domain.EventPublisher          = (*EventLog)(nil)
)

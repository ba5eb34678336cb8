package unitupdate_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"condo/internal/core/apperror"
	"condo/internal/core/id"
	"condo/internal/core/numerator"
	"condo/internal/core/security"
	"condo/internal/core/types"
	"condo/internal/domain/account"
	"condo/internal/domain/fund"
	"condo/internal/domain/memstore"
	"condo/internal/domain/occupancy"
	"condo/internal/domain/unitupdate"
)

func day(s string) time.Time {
	t, err := types.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

type auditCall struct {
	action  string
	changes map[string]any
}

type fakeAuditor struct{ calls []auditCall }

func (a *fakeAuditor) LogChange(ctx context.Context, entityType string, entityID id.ID, action string, changes map[string]any) error {
	a.calls = append(a.calls, auditCall{action: action, changes: changes})
	return nil
}

type fixture struct {
	store     *memstore.Store
	svc       *unitupdate.Service
	audit     *fakeAuditor
	ctx       context.Context
	managerID id.ID
	houseID   id.ID
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     memstore.New(),
		audit:     &fakeAuditor{},
		managerID: id.New(),
		houseID:   id.New(),
		now:       day("2024-01-01").Add(10 * time.Hour),
	}
	f.store.AddHouse(occupancy.House{ID: f.houseID, ManagerID: f.managerID, Name: "Maryam Tower", CreatedAt: time.Now()})
	f.svc = unitupdate.NewService(unitupdate.ServiceConfig{
		Units:     f.store.Units(),
		Renters:   f.store.Renters(),
		History:   f.store.History(),
		Houses:    f.store.Houses(),
		Accounts:  f.store.Accounts(),
		Ledger:    fund.NewLedger(f.store.Funds(), &numerator.MockGenerator{}),
		Audit:     f.audit,
		TxManager: f.store.Tx(),
		Now:       func() time.Time { return f.now },
	})
	f.ctx = security.WithScope(context.Background(), &security.AccessScope{
		UserID:    f.managerID.String(),
		ManagerID: f.managerID.String(),
	})
	return f
}

func ownerForm() *unitupdate.UnitForm {
	return &unitupdate.UnitForm{
		UnitNumber:       "12",
		Area:             "85.5",
		OwnerName:        "Ali Ahmadi",
		OwnerMobile:      "09121111111",
		OwnerPeopleCount: "3",
	}
}

func withRenter(f *unitupdate.UnitForm, start string) *unitupdate.UnitForm {
	f.IsRenter = true
	f.RenterName = "Reza Karimi"
	f.RenterMobile = "09122222222"
	f.RenterPeopleCount = "2"
	f.RenterStartDate = start
	return f
}

func (f *fixture) openRows(t *testing.T, unitID id.ID) []*occupancy.Residence {
	t.Helper()
	rows, err := f.store.History().ListOpen(context.Background(), unitID)
	require.NoError(t, err)
	return rows
}

func (f *fixture) reload(t *testing.T, unitID id.ID) *occupancy.Unit {
	t.Helper()
	u, err := f.store.Units().GetByID(context.Background(), unitID)
	require.NoError(t, err)
	return u
}

func TestCreate_OwnerOnly(t *testing.T) {
	f := newFixture(t)
	form := ownerForm()
	form.OwnerPeopleCount = "۳" // Persian digit
	form.OwnerFirstCharge = 500000
	form.ExtraParkingFirst = "B2-14"

	unit, err := f.svc.Create(f.ctx, form)
	require.NoError(t, err)

	assert.Equal(t, 3, unit.PeopleCount)
	assert.Equal(t, 1, unit.ParkingAddonCount)
	require.NotNil(t, unit.HouseID)
	assert.Equal(t, f.houseID, *unit.HouseID)
	require.NotNil(t, unit.OwnerAccountID)

	owner, err := f.store.Accounts().GetByID(context.Background(), *unit.OwnerAccountID)
	require.NoError(t, err)
	assert.Equal(t, "09121111111", owner.Mobile)
	assert.Equal(t, account.RoleResident, owner.Role)

	rows := f.openRows(t, unit.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, occupancy.ResidentOwner, rows[0].ResidentType)
	assert.Equal(t, day("2024-01-01"), rows[0].FromDate)

	entries := f.store.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, fund.DescOwnerFirstCharge, entries[0].Description)
	assert.Equal(t, types.Amount(500000), entries[0].DebtorAmount)

	require.Len(t, f.audit.calls, 1)
	assert.Equal(t, unitupdate.ActionCreate, f.audit.calls[0].action)
}

func TestCreate_WithRenter(t *testing.T) {
	f := newFixture(t)
	form := withRenter(ownerForm(), "2023-12-15")
	form.RenterFirstCharge = 120000
	form.OwnerFirstCharge = 80000

	unit, err := f.svc.Create(f.ctx, form)
	require.NoError(t, err)

	assert.True(t, unit.IsRenter)
	assert.Equal(t, 2, unit.PeopleCount, "active renter's head count wins")

	renters := f.store.AllRenters(unit.ID)
	require.Len(t, renters, 1)
	assert.True(t, renters[0].IsActive)
	require.NotNil(t, renters[0].AccountID)

	rows := f.openRows(t, unit.ID)
	assert.Len(t, rows, 2)
	assert.Len(t, f.store.Entries(), 2)
	assert.Equal(t, 2, f.store.UserCount())
}

func TestUpdate_PeopleCountFollowsOwner(t *testing.T) {
	f := newFixture(t)
	unit, err := f.svc.Create(f.ctx, ownerForm())
	require.NoError(t, err)

	form := ownerForm()
	form.OwnerPeopleCount = "five"
	unit, err = f.svc.Update(f.ctx, unit.ID, form)
	require.NoError(t, err)
	assert.Equal(t, 0, unit.PeopleCount)

	form.OwnerPeopleCount = "3"
	unit, err = f.svc.Update(f.ctx, unit.ID, form)
	require.NoError(t, err)
	assert.Equal(t, 3, unit.PeopleCount)
}

func TestUpdate_NewRenterClosesOwnerInterval(t *testing.T) {
	f := newFixture(t)
	unit, err := f.svc.Create(f.ctx, ownerForm())
	require.NoError(t, err)

	f.now = day("2024-03-05")
	unit, err = f.svc.Update(f.ctx, unit.ID, withRenter(ownerForm(), "2024-03-01"))
	require.NoError(t, err)

	rows, err := f.store.History().ListByUnit(context.Background(), unit.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	owner, renter := rows[0], rows[1]
	assert.Equal(t, occupancy.ResidentOwner, owner.ResidentType)
	require.NotNil(t, owner.ToDate)
	assert.Equal(t, day("2024-03-01"), *owner.ToDate)

	assert.Equal(t, occupancy.ResidentRenter, renter.ResidentType)
	assert.Equal(t, day("2024-03-01"), renter.FromDate)
	assert.True(t, renter.IsOpen())
	assert.Equal(t, 2, unit.PeopleCount)
}

func TestUpdate_SameRenterAmendsInterval(t *testing.T) {
	f := newFixture(t)
	unit, err := f.svc.Create(f.ctx, withRenter(ownerForm(), "2024-01-01"))
	require.NoError(t, err)

	form := withRenter(ownerForm(), "2024-01-01")
	form.RenterPeopleCount = "4"
	f.now = day("2024-02-01")
	unit, err = f.svc.Update(f.ctx, unit.ID, form)
	require.NoError(t, err)

	assert.Equal(t, 4, unit.PeopleCount)
	assert.Len(t, f.store.AllRenters(unit.ID), 1)
	for _, row := range f.openRows(t, unit.ID) {
		if row.ResidentType == occupancy.ResidentRenter {
			assert.Equal(t, 4, row.PeopleCount)
		}
	}
}

func TestUpdate_OwnerReplacedVoidsTenancy(t *testing.T) {
	f := newFixture(t)
	unit, err := f.svc.Create(f.ctx, withRenter(ownerForm(), "2024-01-01"))
	require.NoError(t, err)
	oldOwner := *unit.OwnerAccountID

	form := ownerForm()
	form.OwnerName = "Mina Sadeghi"
	form.OwnerMobile = "09123333333"
	form.OwnerPeopleCount = "1"
	f.now = day("2024-08-01")
	unit, err = f.svc.Update(f.ctx, unit.ID, form)
	require.NoError(t, err)

	for _, r := range f.store.AllRenters(unit.ID) {
		assert.False(t, r.IsActive)
		require.NotNil(t, r.EndDate)
		assert.Equal(t, day("2024-08-01"), *r.EndDate)
	}
	assert.NotEqual(t, oldOwner, *unit.OwnerAccountID)
	assert.Equal(t, 1, unit.PeopleCount)
	assert.False(t, unit.IsRenter)

	open := f.openRows(t, unit.ID)
	require.Len(t, open, 1)
	assert.Equal(t, "Mina Sadeghi", open[0].Name)
	assert.Equal(t, day("2024-08-01"), open[0].FromDate)
}

func TestUpdate_OwnerCorrectionKeepsAccount(t *testing.T) {
	f := newFixture(t)
	unit, err := f.svc.Create(f.ctx, ownerForm())
	require.NoError(t, err)
	accountID := *unit.OwnerAccountID

	form := ownerForm()
	form.OwnerMobile = "+989121111199"
	unit, err = f.svc.Update(f.ctx, unit.ID, form)
	require.NoError(t, err)

	assert.Equal(t, accountID, *unit.OwnerAccountID)
	owner, err := f.store.Accounts().GetByID(context.Background(), accountID)
	require.NoError(t, err)
	assert.Equal(t, "09121111199", owner.Mobile)
	assert.Equal(t, 1, f.store.UserCount())

	open := f.openRows(t, unit.ID)
	require.Len(t, open, 1)
	assert.Equal(t, "09121111199", open[0].Mobile)
	assert.Equal(t, day("2024-01-01"), open[0].FromDate)
}

func TestUpdate_CredentialGoesToActiveRenter(t *testing.T) {
	f := newFixture(t)
	unit, err := f.svc.Create(f.ctx, withRenter(ownerForm(), "2024-01-01"))
	require.NoError(t, err)

	form := withRenter(ownerForm(), "2024-01-01")
	form.RenterMobile = "09124444444"
	form.Password = "renter-secret"
	_, err = f.svc.Update(f.ctx, unit.ID, form)
	require.NoError(t, err)

	renter := f.store.AllRenters(unit.ID)[0]
	acc, err := f.store.Accounts().GetByID(context.Background(), *renter.AccountID)
	require.NoError(t, err)
	assert.Equal(t, "09124444444", acc.Mobile)
	assert.True(t, acc.CheckPassword("renter-secret"))

	owner, err := f.store.Accounts().GetByID(context.Background(), *unit.OwnerAccountID)
	require.NoError(t, err)
	assert.Empty(t, owner.PasswordHash)
}

func TestUpdate_DuplicateRenterMobileAbortsEverything(t *testing.T) {
	f := newFixture(t)
	unit, err := f.svc.Create(f.ctx, ownerForm())
	require.NoError(t, err)

	stranger := account.NewResident("09125555555", "Someone Else")
	require.NoError(t, f.store.Accounts().Create(context.Background(), stranger))
	entriesBefore := len(f.store.Entries())

	form := withRenter(ownerForm(), "2024-02-01")
	form.RenterMobile = "09125555555"
	form.RenterFirstCharge = 90000
	form.OwnerFirstCharge = 40000
	form.Password = "owner-secret"
	_, err = f.svc.Update(f.ctx, unit.ID, form)

	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicateMobile))
	appErr, _ := apperror.AsAppError(err)
	assert.Contains(t, appErr.Details["fields"], "renterMobile")

	assert.Empty(t, f.store.AllRenters(unit.ID))
	assert.Len(t, f.store.Entries(), entriesBefore)

	got, err := f.store.Accounts().GetByID(context.Background(), stranger.ID)
	require.NoError(t, err)
	assert.Equal(t, stranger.Version, got.Version)
	assert.Equal(t, "Someone Else", got.FullName)

	owner, err := f.store.Accounts().GetByID(context.Background(), *unit.OwnerAccountID)
	require.NoError(t, err)
	assert.Empty(t, owner.PasswordHash, "owner credential change must roll back")

	reloaded := f.reload(t, unit.ID)
	assert.False(t, reloaded.IsRenter)
	assert.Equal(t, unit.Version, reloaded.Version)
}

func TestUpdate_ActiveRenterMobileCollision(t *testing.T) {
	f := newFixture(t)
	unit, err := f.svc.Create(f.ctx, withRenter(ownerForm(), "2024-01-01"))
	require.NoError(t, err)
	require.NoError(t, f.store.Accounts().Create(context.Background(), account.NewResident("09126666666", "Other Person")))

	form := withRenter(ownerForm(), "2024-01-01")
	form.RenterMobile = "09126666666"
	_, err = f.svc.Update(f.ctx, unit.ID, form)

	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicateMobile))
	renter := f.store.AllRenters(unit.ID)[0]
	assert.Equal(t, "09122222222", renter.Mobile)
}

func TestCreate_NamesakeWithOtherNationalCodeIsDuplicate(t *testing.T) {
	f := newFixture(t)
	known := account.NewResident("09127777777", "Reza Karimi")
	known.NationalCode = "1111111111"
	require.NoError(t, f.store.Accounts().Create(context.Background(), known))

	form := withRenter(ownerForm(), "2024-01-01")
	form.RenterMobile = "09127777777"
	form.RenterNationalCode = "2222222222"
	_, err := f.svc.Create(f.ctx, form)

	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicateMobile))
	assert.Equal(t, 1, f.store.UserCount())
}

func TestCreate_NationalCodeIdentifiesReturningResident(t *testing.T) {
	f := newFixture(t)
	known := account.NewResident("09127777777", "Reza Karimi")
	known.NationalCode = "1111111111"
	require.NoError(t, f.store.Accounts().Create(context.Background(), known))

	form := withRenter(ownerForm(), "2024-01-01")
	form.RenterMobile = "09127777777"
	form.RenterName = "Reza Karimi-Zadeh"
	form.RenterNationalCode = "1111111111"
	unit, err := f.svc.Create(f.ctx, form)

	require.NoError(t, err)
	renters := f.store.AllRenters(unit.ID)
	require.Len(t, renters, 1)
	assert.Equal(t, known.ID, *renters[0].AccountID)
	assert.Equal(t, 2, f.store.UserCount())
}

func TestCreate_NationalCodeBackfilledOnNameMatch(t *testing.T) {
	f := newFixture(t)
	known := account.NewResident("09127777777", "Reza Karimi")
	require.NoError(t, f.store.Accounts().Create(context.Background(), known))

	form := withRenter(ownerForm(), "2024-01-01")
	form.RenterMobile = "09127777777"
	form.RenterNationalCode = "1111111111"
	_, err := f.svc.Create(f.ctx, form)

	require.NoError(t, err)
	got, err := f.store.Accounts().GetByID(context.Background(), known.ID)
	require.NoError(t, err)
	assert.Equal(t, "1111111111", got.NationalCode)
}

func TestUpdate_RollsBackOnLateFailure(t *testing.T) {
	f := newFixture(t)
	unit, err := f.svc.Create(f.ctx, ownerForm())
	require.NoError(t, err)

	f.store.FailOn = map[string]error{"history.apply": assert.AnError}
	form := withRenter(ownerForm(), "2024-01-10")
	form.RenterFirstCharge = 10000
	_, err = f.svc.Update(f.ctx, unit.ID, form)

	require.ErrorIs(t, err, assert.AnError)
	assert.Empty(t, f.store.AllRenters(unit.ID))
	assert.Empty(t, f.store.Entries())
	assert.Equal(t, 1, f.store.UserCount())
	assert.False(t, f.reload(t, unit.ID).IsRenter)
}

func TestUpdate_FirstChargeIsOneTime(t *testing.T) {
	f := newFixture(t)
	form := ownerForm()
	form.OwnerFirstCharge = 70000
	unit, err := f.svc.Create(f.ctx, form)
	require.NoError(t, err)

	_, err = f.svc.Update(f.ctx, unit.ID, form)
	require.NoError(t, err)

	assert.Len(t, f.store.Entries(), 1)
}

func TestUpdate_ForeignManagerSeesNotFound(t *testing.T) {
	f := newFixture(t)
	unit, err := f.svc.Create(f.ctx, ownerForm())
	require.NoError(t, err)

	other := security.WithScope(context.Background(), &security.AccessScope{ManagerID: id.New().String()})
	_, err = f.svc.Update(other, unit.ID, ownerForm())

	assert.True(t, apperror.IsNotFound(err))
}

func TestCreate_DuplicateUnitNumber(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(f.ctx, ownerForm())
	require.NoError(t, err)

	form := ownerForm()
	form.OwnerMobile = "09127777777"
	_, err = f.svc.Create(f.ctx, form)

	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate))
}

func TestDeactivateRenter(t *testing.T) {
	f := newFixture(t)
	unit, err := f.svc.Create(f.ctx, withRenter(ownerForm(), "2024-01-01"))
	require.NoError(t, err)

	f.now = day("2024-06-30")
	unit, err = f.svc.DeactivateRenter(f.ctx, unit.ID)
	require.NoError(t, err)

	assert.False(t, unit.IsRenter)
	assert.Equal(t, 3, unit.PeopleCount)

	renter := f.store.AllRenters(unit.ID)[0]
	assert.False(t, renter.IsActive)
	assert.Equal(t, day("2024-06-30"), *renter.EndDate)

	open := f.openRows(t, unit.ID)
	require.Len(t, open, 1)
	assert.Equal(t, occupancy.ResidentOwner, open[0].ResidentType)

	_, err = f.svc.DeactivateRenter(f.ctx, unit.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeBusinessRule))
}

func TestUpdate_UncheckingRenterEndsTenancy(t *testing.T) {
	f := newFixture(t)
	unit, err := f.svc.Create(f.ctx, withRenter(ownerForm(), "2024-01-01"))
	require.NoError(t, err)

	f.now = day("2024-04-01")
	unit, err = f.svc.Update(f.ctx, unit.ID, ownerForm())
	require.NoError(t, err)

	assert.False(t, unit.IsRenter)
	assert.False(t, f.store.AllRenters(unit.ID)[0].IsActive)
	open := f.openRows(t, unit.ID)
	require.Len(t, open, 1)
	assert.Equal(t, occupancy.ResidentOwner, open[0].ResidentType)
}

func TestHistory(t *testing.T) {
	f := newFixture(t)
	unit, err := f.svc.Create(f.ctx, ownerForm())
	require.NoError(t, err)
	f.now = day("2024-03-05")
	_, err = f.svc.Update(f.ctx, unit.ID, withRenter(ownerForm(), "2024-03-01"))
	require.NoError(t, err)

	rows, err := f.svc.History(f.ctx, unit.ID)

	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].FromDate.Before(rows[1].FromDate))
}

package charge_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"condo/internal/core/apperror"
	"condo/internal/core/id"
	"condo/internal/core/security"
	"condo/internal/core/types"
	"condo/internal/domain"
	"condo/internal/domain/charge"
	"condo/internal/domain/memstore"
	"condo/internal/domain/occupancy"
)

type fixture struct {
	store     *memstore.Store
	svc       *charge.Service
	managerID id.ID
	ctx       context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	managerID := id.New()
	now := time.Date(2024, 2, 20, 9, 0, 0, 0, time.UTC)

	svc := charge.NewService(charge.ServiceConfig{
		Definitions: store.Definitions(),
		Charges:     store.Charges(),
		Targets:     store.Targets(),
		Events:      store.Events(),
		TxManager:   store.Tx(),
		Now:         func() time.Time { return now },
	})
	ctx := security.WithScope(context.Background(), &security.AccessScope{ManagerID: managerID.String()})
	return &fixture{store: store, svc: svc, managerID: managerID, ctx: ctx}
}

func (f *fixture) addUnit(t *testing.T, number, area string, people int) *occupancy.Unit {
	t.Helper()
	u := occupancy.NewUnit(f.managerID, number)
	u.Area = types.MustArea(area)
	u.PeopleCount = people
	u.OwnerName = "Owner " + number
	u.OwnerMobile = "0912000" + number
	require.NoError(t, f.store.Units().Create(context.Background(), u))
	return u
}

func (f *fixture) areaDefinition(t *testing.T) *charge.Definition {
	t.Helper()
	def := charge.NewDefinition(f.managerID, "Farvardin", charge.KindArea)
	rate := types.Amount(5000)
	def.AreaAmount = &rate
	require.NoError(t, f.svc.CreateDefinition(f.ctx, def))
	return def
}

func TestIssue_ChargesEveryUnitOnce(t *testing.T) {
	f := newFixture(t)
	u1 := f.addUnit(t, "1001", "80", 2)
	f.addUnit(t, "1002", "100", 4)
	def := f.areaDefinition(t)

	res, err := f.svc.Issue(f.ctx, def.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Issued)
	assert.Equal(t, 0, res.Skipped)

	byUnit := map[id.ID]*charge.UnifiedCharge{}
	for _, c := range res.Charges {
		byUnit[c.UnitID] = c
	}
	require.Contains(t, byUnit, u1.ID)
	assert.Equal(t, types.Amount(400000), byUnit[u1.ID].BaseCharge)
	assert.Equal(t, types.Amount(400000), byUnit[u1.ID].TotalChargeMonth)

	events := f.store.Published()
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventChargeIssued, events[0].EventType)

	again, err := f.svc.Issue(f.ctx, def.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Issued)
	assert.Equal(t, 2, again.Skipped)
	assert.Len(t, f.store.Published(), 2)
}

func TestIssue_SelectedUnits(t *testing.T) {
	f := newFixture(t)
	u1 := f.addUnit(t, "1001", "80", 2)
	f.addUnit(t, "1002", "100", 4)
	def := f.areaDefinition(t)

	res, err := f.svc.Issue(f.ctx, def.ID, []id.ID{u1.ID})

	require.NoError(t, err)
	require.Len(t, res.Charges, 1)
	assert.Equal(t, u1.ID, res.Charges[0].UnitID)
}

func TestIssue_NoUnits(t *testing.T) {
	f := newFixture(t)
	def := f.areaDefinition(t)

	_, err := f.svc.Issue(f.ctx, def.ID, nil)

	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestIssue_UnknownKindIsConfigurationError(t *testing.T) {
	f := newFixture(t)
	f.addUnit(t, "1001", "80", 2)
	def := charge.NewDefinition(f.managerID, "Broken", charge.Kind("per_window"))
	require.NoError(t, f.store.Definitions().Create(context.Background(), def))

	_, err := f.svc.Issue(f.ctx, def.ID, nil)

	assert.True(t, apperror.HasCode(err, apperror.CodeConfiguration))
	assert.Empty(t, f.store.Published())
}

func TestIssue_RollsBackOnInsertFailure(t *testing.T) {
	f := newFixture(t)
	f.addUnit(t, "1001", "80", 2)
	def := f.areaDefinition(t)
	f.store.FailOn = map[string]error{"charges.insert": assert.AnError}

	_, err := f.svc.Issue(f.ctx, def.ID, nil)

	require.ErrorIs(t, err, assert.AnError)
	assert.Empty(t, f.store.Published())
}

func TestGetDefinition_ForeignManagerIsNotFound(t *testing.T) {
	f := newFixture(t)
	def := f.areaDefinition(t)

	other := security.WithScope(context.Background(), &security.AccessScope{ManagerID: id.New().String()})
	_, err := f.svc.GetDefinition(other, def.ID)

	assert.True(t, apperror.IsNotFound(err))
}

func TestPreview(t *testing.T) {
	f := newFixture(t)
	rate := types.Amount(5000)

	p, err := f.svc.Preview(charge.KindArea, charge.Coefficients{AreaAmount: &rate}, charge.UnitSnapshot{Area: types.MustArea("80")})

	require.NoError(t, err)
	assert.Equal(t, int64(400000), p.BaseCharge)
}

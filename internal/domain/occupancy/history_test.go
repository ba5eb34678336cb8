package occupancy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"condo/internal/core/entity"
	"condo/internal/core/id"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func openRow(unitID id.ID, typ ResidentType, o Occupant, from string) *Residence {
	return &Residence{
		Record:       entity.NewRecord(),
		UnitID:       unitID,
		ResidentType: typ,
		Name:         o.Name,
		Mobile:       o.Mobile,
		PeopleCount:  o.PeopleCount,
		FromDate:     day(from),
	}
}

var ali = Occupant{Name: "Ali", Mobile: "09120000001", PeopleCount: 3}

func TestPlanHistory_UnitCreated(t *testing.T) {
	unitID := id.New()

	delta := PlanHistory(unitID, nil, Snapshot{Owner: ali}, nil, day("2024-01-01"))

	require.Len(t, delta.Open, 1)
	assert.Empty(t, delta.Close)
	assert.Equal(t, ResidentOwner, delta.Open[0].ResidentType)
	assert.Equal(t, day("2024-01-01"), delta.Open[0].FromDate)
	assert.Equal(t, unitID, delta.Open[0].UnitID)
	assert.True(t, delta.Open[0].IsOpen())
}

func TestPlanHistory_UnitCreatedWithRenter(t *testing.T) {
	unitID := id.New()
	renterID := id.New()
	start := day("2023-12-15")

	next := Snapshot{
		Owner: ali,
		Renter: &TenancySnapshot{
			RenterID:  renterID,
			Occupant:  Occupant{Name: "Reza", Mobile: "09120000002", PeopleCount: 2},
			StartDate: &start,
		},
	}
	delta := PlanHistory(unitID, nil, next, nil, day("2024-01-01"))

	require.Len(t, delta.Open, 2)
	assert.Equal(t, ResidentOwner, delta.Open[0].ResidentType)
	assert.Equal(t, ResidentRenter, delta.Open[1].ResidentType)
	assert.Equal(t, start, delta.Open[1].FromDate)
	require.NotNil(t, delta.Open[1].RenterID)
	assert.Equal(t, renterID, *delta.Open[1].RenterID)
}

func TestPlanHistory_NewRenterClosesOwnerAtStartDate(t *testing.T) {
	unitID := id.New()
	owner := openRow(unitID, ResidentOwner, ali, "2024-01-01")
	start := day("2024-03-01")

	prev := Snapshot{Owner: ali}
	next := Snapshot{
		Owner: ali,
		Renter: &TenancySnapshot{
			RenterID:  id.New(),
			Occupant:  Occupant{Name: "Reza", Mobile: "09120000002", PeopleCount: 2},
			StartDate: &start,
		},
	}

	delta := PlanHistory(unitID, &prev, next, []*Residence{owner}, day("2024-03-05"))

	require.Len(t, delta.Close, 1)
	assert.Equal(t, owner.ID, delta.Close[0].ResidenceID)
	assert.Equal(t, day("2024-03-01"), delta.Close[0].ToDate)

	require.Len(t, delta.Open, 1)
	assert.Equal(t, ResidentRenter, delta.Open[0].ResidentType)
	assert.Equal(t, day("2024-03-01"), delta.Open[0].FromDate)
	assert.Equal(t, 2, delta.Open[0].PeopleCount)
}

func TestPlanHistory_NewRenterWithoutStartDateUsesToday(t *testing.T) {
	unitID := id.New()
	owner := openRow(unitID, ResidentOwner, ali, "2024-01-01")
	prev := Snapshot{Owner: ali}
	next := Snapshot{Owner: ali, Renter: &TenancySnapshot{RenterID: id.New(), Occupant: Occupant{Name: "Reza"}}}

	delta := PlanHistory(unitID, &prev, next, []*Residence{owner}, day("2024-04-10"))

	require.Len(t, delta.Close, 1)
	assert.Equal(t, day("2024-04-10"), delta.Close[0].ToDate)
	require.Len(t, delta.Open, 1)
	assert.Equal(t, day("2024-04-10"), delta.Open[0].FromDate)
}

func TestPlanHistory_CloseNeverPrecedesFromDate(t *testing.T) {
	unitID := id.New()
	owner := openRow(unitID, ResidentOwner, ali, "2024-05-01")
	start := day("2024-03-01")
	prev := Snapshot{Owner: ali}
	next := Snapshot{Owner: ali, Renter: &TenancySnapshot{RenterID: id.New(), StartDate: &start}}

	delta := PlanHistory(unitID, &prev, next, []*Residence{owner}, day("2024-05-10"))

	require.Len(t, delta.Close, 1)
	assert.Equal(t, day("2024-05-01"), delta.Close[0].ToDate)
}

func TestPlanHistory_SameRenterAmendsInPlace(t *testing.T) {
	unitID := id.New()
	renterID := id.New()
	occ := Occupant{Name: "Reza", Mobile: "09120000002", PeopleCount: 2}
	row := openRow(unitID, ResidentRenter, occ, "2024-03-01")
	row.RenterID = &renterID

	prev := Snapshot{Owner: ali, Renter: &TenancySnapshot{RenterID: renterID, Occupant: occ}}
	changed := occ
	changed.PeopleCount = 4
	next := Snapshot{Owner: ali, Renter: &TenancySnapshot{RenterID: renterID, Occupant: changed}}

	delta := PlanHistory(unitID, &prev, next, []*Residence{row}, day("2024-06-01"))

	assert.Empty(t, delta.Close)
	assert.Empty(t, delta.Open)
	require.Len(t, delta.Amend, 1)
	assert.Equal(t, row.ID, delta.Amend[0].ID)
	assert.Equal(t, 4, delta.Amend[0].PeopleCount)
	assert.Equal(t, 2, row.PeopleCount, "input rows must not be mutated")
}

func TestPlanHistory_DifferentRenterReplacesRenterThreadOnly(t *testing.T) {
	unitID := id.New()
	oldID := id.New()
	oldRow := openRow(unitID, ResidentRenter, Occupant{Name: "Reza"}, "2024-01-01")
	oldRow.RenterID = &oldID
	start := day("2024-07-01")

	prev := Snapshot{Owner: ali, Renter: &TenancySnapshot{RenterID: oldID}}
	next := Snapshot{Owner: ali, Renter: &TenancySnapshot{RenterID: id.New(), Occupant: Occupant{Name: "Sara"}, StartDate: &start}}

	delta := PlanHistory(unitID, &prev, next, []*Residence{oldRow}, day("2024-07-02"))

	require.Len(t, delta.Close, 1)
	assert.Equal(t, oldRow.ID, delta.Close[0].ResidenceID)
	assert.Equal(t, start, delta.Close[0].ToDate)
	require.Len(t, delta.Open, 1)
	assert.Equal(t, "Sara", delta.Open[0].Name)
}

func TestPlanHistory_OwnerCorrectionAmends(t *testing.T) {
	unitID := id.New()
	owner := openRow(unitID, ResidentOwner, ali, "2024-01-01")

	prev := Snapshot{Owner: ali}
	fixed := ali
	fixed.Name = "Ali Rezaei"
	delta := PlanHistory(unitID, &prev, Snapshot{Owner: fixed}, []*Residence{owner}, day("2024-02-01"))

	assert.Empty(t, delta.Close)
	assert.Empty(t, delta.Open)
	require.Len(t, delta.Amend, 1)
	assert.Equal(t, "Ali Rezaei", delta.Amend[0].Name)
}

func TestPlanHistory_OwnerReplacedClosesBothThreads(t *testing.T) {
	unitID := id.New()
	renterID := id.New()
	owner := openRow(unitID, ResidentOwner, ali, "2024-01-01")
	renter := openRow(unitID, ResidentRenter, Occupant{Name: "Reza"}, "2024-02-01")
	renter.RenterID = &renterID

	prev := Snapshot{Owner: ali, Renter: &TenancySnapshot{RenterID: renterID}}
	next := Snapshot{Owner: Occupant{Name: "Mina", Mobile: "09120000009", PeopleCount: 1}}

	delta := PlanHistory(unitID, &prev, next, []*Residence{owner, renter}, day("2024-08-01"))

	require.Len(t, delta.Close, 2)
	closed := map[id.ID]time.Time{}
	for _, c := range delta.Close {
		closed[c.ResidenceID] = c.ToDate
	}
	assert.Equal(t, day("2024-08-01"), closed[owner.ID])
	assert.Equal(t, day("2024-08-01"), closed[renter.ID])

	require.Len(t, delta.Open, 1)
	assert.Equal(t, ResidentOwner, delta.Open[0].ResidentType)
	assert.Equal(t, "Mina", delta.Open[0].Name)
	assert.Equal(t, day("2024-08-01"), delta.Open[0].FromDate)
}

func TestPlanHistory_OwnerReplacedWithNewRenter(t *testing.T) {
	unitID := id.New()
	owner := openRow(unitID, ResidentOwner, ali, "2024-01-01")
	prev := Snapshot{Owner: ali}
	mina := Occupant{Name: "Mina", Mobile: "09120000009", PeopleCount: 1}

	t.Run("renter already living there", func(t *testing.T) {
		start := day("2024-07-15")
		next := Snapshot{Owner: mina, Renter: &TenancySnapshot{RenterID: id.New(), Occupant: Occupant{Name: "Sara"}, StartDate: &start}}

		delta := PlanHistory(unitID, &prev, next, []*Residence{owner}, day("2024-08-01"))

		require.Len(t, delta.Close, 1)
		assert.Equal(t, owner.ID, delta.Close[0].ResidenceID)
		require.Len(t, delta.Open, 2)
		assert.Equal(t, ResidentOwner, delta.Open[0].ResidentType)
		assert.Equal(t, "Mina", delta.Open[0].Name)
		assert.Equal(t, day("2024-08-01"), delta.Open[0].FromDate)
		require.NotNil(t, delta.Open[0].ToDate)
		assert.Equal(t, day("2024-08-01"), *delta.Open[0].ToDate, "clamped to its own start")
		assert.Equal(t, ResidentRenter, delta.Open[1].ResidentType)
		assert.True(t, delta.Open[1].IsOpen())
	})

	t.Run("renter moving in later", func(t *testing.T) {
		start := day("2024-09-01")
		next := Snapshot{Owner: mina, Renter: &TenancySnapshot{RenterID: id.New(), Occupant: Occupant{Name: "Sara"}, StartDate: &start}}

		delta := PlanHistory(unitID, &prev, next, []*Residence{owner}, day("2024-08-01"))

		require.Len(t, delta.Open, 2)
		require.NotNil(t, delta.Open[0].ToDate)
		assert.Equal(t, day("2024-09-01"), *delta.Open[0].ToDate)
		assert.Equal(t, day("2024-09-01"), delta.Open[1].FromDate)
	})
}

func TestPlanHistory_NoChangeIsEmpty(t *testing.T) {
	unitID := id.New()
	owner := openRow(unitID, ResidentOwner, ali, "2024-01-01")
	prev := Snapshot{Owner: ali}

	delta := PlanHistory(unitID, &prev, Snapshot{Owner: ali}, []*Residence{owner}, day("2024-09-01"))

	assert.True(t, delta.IsEmpty())
}

func TestPlanHistory_RenterLeavesReopensOwner(t *testing.T) {
	unitID := id.New()
	renterID := id.New()
	renter := openRow(unitID, ResidentRenter, Occupant{Name: "Reza"}, "2024-03-01")
	renter.RenterID = &renterID

	prev := Snapshot{Owner: ali, Renter: &TenancySnapshot{RenterID: renterID}}
	delta := PlanHistory(unitID, &prev, Snapshot{Owner: ali}, []*Residence{renter}, day("2024-10-01"))

	require.Len(t, delta.Close, 1)
	assert.Equal(t, renter.ID, delta.Close[0].ResidenceID)
	assert.Equal(t, day("2024-10-01"), delta.Close[0].ToDate)
	require.Len(t, delta.Open, 1)
	assert.Equal(t, ResidentOwner, delta.Open[0].ResidentType)
	assert.Equal(t, day("2024-10-01"), delta.Open[0].FromDate)
}

func TestPlanHistory_RenterLeavesKeepsOpenOwner(t *testing.T) {
	unitID := id.New()
	renterID := id.New()
	owner := openRow(unitID, ResidentOwner, ali, "2024-01-01")
	renter := openRow(unitID, ResidentRenter, Occupant{Name: "Reza"}, "2024-01-01")
	renter.RenterID = &renterID

	prev := Snapshot{Owner: ali, Renter: &TenancySnapshot{RenterID: renterID}}
	delta := PlanHistory(unitID, &prev, Snapshot{Owner: ali}, []*Residence{owner, renter}, day("2024-10-01"))

	require.Len(t, delta.Close, 1)
	assert.Equal(t, renter.ID, delta.Close[0].ResidenceID)
	assert.Empty(t, delta.Open)
}

func TestClassifyOwnerChange(t *testing.T) {
	assert.Equal(t, OwnerUnchanged, ClassifyOwnerChange("a", "1", "a", "1"))
	assert.Equal(t, OwnerCorrected, ClassifyOwnerChange("a", "1", "b", "1"))
	assert.Equal(t, OwnerCorrected, ClassifyOwnerChange("a", "1", "a", "2"))
	assert.Equal(t, OwnerReplaced, ClassifyOwnerChange("a", "1", "b", "2"))
}

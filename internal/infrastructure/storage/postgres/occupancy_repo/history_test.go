package occupancy_repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"condo/internal/core/id"
	"condo/internal/domain/occupancy"
	"condo/internal/infrastructure/storage/postgres"
)

func TestHistoryQueries(t *testing.T) {
	unitID := id.New()
	today := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	closing := id.New()
	amended := &occupancy.Residence{
		UnitID: unitID, ResidentType: occupancy.ResidentOwner,
		Name: "Sara", Mobile: "09121111111", PeopleCount: 3, FromDate: today,
	}
	amended.ID = id.New()
	opened := &occupancy.Residence{
		UnitID: unitID, ResidentType: occupancy.ResidentRenter,
		Name: "Ali", Mobile: "09122222222", PeopleCount: 2, FromDate: today,
	}
	opened.ID = id.New()

	delta := occupancy.HistoryDelta{
		Close: []occupancy.Closure{{ResidenceID: closing, ToDate: today}},
		Amend: []*occupancy.Residence{amended},
		Open:  []*occupancy.Residence{opened},
	}
	columns := postgres.ExtractDBColumns[occupancy.Residence]()

	queries, err := historyQueries(delta, columns)
	require.NoError(t, err)
	require.Len(t, queries, 3)

	assert.Equal(t, "UPDATE unit_residence_history SET to_date = $1 WHERE id = $2 AND to_date IS NULL", queries[0].SQL)
	assert.Equal(t, []any{today, closing}, queries[0].Args)

	assert.Contains(t, queries[1].SQL, "SET name = $1, mobile = $2, people_count = $3")
	assert.Equal(t, amended.ID, queries[1].Args[len(queries[1].Args)-1])

	assert.Contains(t, queries[2].SQL, "INSERT INTO unit_residence_history (id,created_at,unit_id,resident_type,renter_id,name,mobile,people_count,from_date,to_date)")
	assert.Len(t, queries[2].Args, len(columns))
	assert.Equal(t, opened.ID, queries[2].Args[0])
}

func TestHistoryQueries_Empty(t *testing.T) {
	queries, err := historyQueries(occupancy.HistoryDelta{}, nil)

	require.NoError(t, err)
	assert.Empty(t, queries)
}

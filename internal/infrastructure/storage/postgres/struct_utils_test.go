package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"condo/internal/core/entity"
	"condo/internal/core/id"
	"condo/internal/core/types"
)

type sampleRow struct {
	entity.BaseEntity
	UnitID  id.ID        `db:"unit_id"`
	Amount  types.Amount `db:"amount"`
	Note    string       `db:"-"`
	Ignored string
}

func TestExtractDBColumns_IncludesEmbedded(t *testing.T) {
	cols := ExtractDBColumns[sampleRow]()

	assert.Equal(t, []string{"id", "version", "created_at", "updated_at", "unit_id", "amount"}, cols)
}

func TestStructToMap(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	row := sampleRow{
		BaseEntity: entity.BaseEntity{ID: id.New(), Version: 3, CreatedAt: now, UpdatedAt: now},
		UnitID:     id.New(),
		Amount:     1200000,
		Note:       "skipped",
	}

	m := StructToMap(&row)

	assert.Equal(t, row.ID, m["id"])
	assert.Equal(t, 3, m["version"])
	assert.Equal(t, row.UnitID, m["unit_id"])
	assert.Equal(t, types.Amount(1200000), m["amount"])
	assert.NotContains(t, m, "Note")
	assert.Len(t, m, 6)
}

func TestStructValues_FollowsColumnOrder(t *testing.T) {
	row := sampleRow{UnitID: id.New(), Amount: 5}

	vals := StructValues(row, []string{"amount", "unit_id", "missing"})

	assert.Equal(t, []any{types.Amount(5), row.UnitID, nil}, vals)
}

func TestStructToMap_NonStruct(t *testing.T) {
	assert.Nil(t, StructToMap(42))
}

type nestedRow struct {
	sampleRow
	Paid bool `db:"is_paid"`
}

func TestStructToMap_NestedEmbedding(t *testing.T) {
	row := nestedRow{Paid: true}
	row.Amount = 7
	row.Version = 2

	m := StructToMap(row)

	assert.Equal(t, []string{"id", "version", "created_at", "updated_at", "unit_id", "amount", "is_paid"}, ExtractDBColumns[nestedRow]())
	assert.Equal(t, 2, m["version"])
	assert.Equal(t, types.Amount(7), m["amount"])
	assert.Equal(t, true, m["is_paid"])
}

func TestStructToMap_NilPointer(t *testing.T) {
	var row *sampleRow
	assert.Nil(t, StructToMap(row))
}

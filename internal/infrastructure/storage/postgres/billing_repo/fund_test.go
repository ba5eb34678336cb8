package billing_repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"condo/internal/core/id"
	"condo/internal/domain/fund"
	"condo/internal/infrastructure/storage/postgres"
)

func TestInitialWhere_WithAccount(t *testing.T) {
	unitID, accountID := id.New(), id.New()

	sql, args, err := postgres.Builder().Select("1").From(fundTable).
		Where(initialWhere(unitID, &accountID, fund.DescOwnerFirstCharge)).ToSql()

	require.NoError(t, err)
	assert.Equal(t, "SELECT 1 FROM funds WHERE (unit_id = $1 AND description = $2 AND is_initial = $3 AND account_id = $4)", sql)
	assert.Equal(t, []any{unitID, fund.DescOwnerFirstCharge, true, accountID}, args)
}

func TestInitialWhere_WithoutAccount(t *testing.T) {
	unitID := id.New()

	sql, args, err := postgres.Builder().Select("1").From(fundTable).
		Where(initialWhere(unitID, nil, fund.DescRenterFirstCharge)).ToSql()

	require.NoError(t, err)
	assert.Contains(t, sql, "account_id IS NULL")
	assert.Len(t, args, 3)
}

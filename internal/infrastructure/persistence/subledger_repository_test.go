package persistence

import (
	"context"
	"testing"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormSubledgerRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("saves and sums balances per kind", func(t *testing.T) {
		db := setupLedgerTestDB(t)
		repo := NewGormSubledgerRepository(db)
		tenantID := uuid.New()

		for _, amount := range []int64{111000, 45000} {
			balance, err := ledger.NewSubledgerBalance(tenantID, ledger.SubledgerCustomer, uuid.New())
			require.NoError(t, err)
			balance.Apply(amount, 0, ledger.SideDebit)
			require.NoError(t, repo.Save(ctx, balance))
		}
		vendor, err := ledger.NewSubledgerBalance(tenantID, ledger.SubledgerVendor, uuid.New())
		require.NoError(t, err)
		vendor.Apply(0, 80000, ledger.SideCredit)
		require.NoError(t, repo.Save(ctx, vendor))

		total, err := repo.SumBalances(ctx, tenantID, ledger.SubledgerCustomer)
		require.NoError(t, err)
		assert.Equal(t, int64(156000), total)

		balances, err := repo.FindByKind(ctx, tenantID, ledger.SubledgerCustomer)
		require.NoError(t, err)
		assert.Len(t, balances, 2)
	})

	t.Run("returns nil for an entity never posted to", func(t *testing.T) {
		db := setupLedgerTestDB(t)
		repo := NewGormSubledgerRepository(db)

		balance, err := repo.FindByEntity(ctx, uuid.New(), ledger.SubledgerItem, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, balance)
	})

	t.Run("sums are tenant scoped", func(t *testing.T) {
		db := setupLedgerTestDB(t)
		repo := NewGormSubledgerRepository(db)
		tenantID := uuid.New()

		balance, err := ledger.NewSubledgerBalance(tenantID, ledger.SubledgerCustomer, uuid.New())
		require.NoError(t, err)
		balance.Apply(50000, 0, ledger.SideDebit)
		require.NoError(t, repo.Save(ctx, balance))

		total, err := repo.SumBalances(ctx, uuid.New(), ledger.SubledgerCustomer)
		require.NoError(t, err)
		assert.Zero(t, total)
	})
}

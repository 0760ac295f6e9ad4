package persistence

import (
	"context"
	"testing"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormSequenceRepository_NextNumber(t *testing.T) {
	ctx := context.Background()

	t.Run("allocates from one within a new series", func(t *testing.T) {
		db := setupLedgerTestDB(t)
		repo := NewGormSequenceRepository(db)
		tenantID := uuid.New()

		for want := int64(1); want <= 3; want++ {
			got, err := repo.NextNumber(ctx, tenantID, ledger.SeriesJournal, "202603")
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	})

	t.Run("periods count independently", func(t *testing.T) {
		db := setupLedgerTestDB(t)
		repo := NewGormSequenceRepository(db)
		tenantID := uuid.New()

		first, err := repo.NextNumber(ctx, tenantID, ledger.SeriesJournal, "202603")
		require.NoError(t, err)
		second, err := repo.NextNumber(ctx, tenantID, ledger.SeriesJournal, "202604")
		require.NoError(t, err)

		assert.Equal(t, int64(1), first)
		assert.Equal(t, int64(1), second)
	})

	t.Run("tenants count independently", func(t *testing.T) {
		db := setupLedgerTestDB(t)
		repo := NewGormSequenceRepository(db)

		first, err := repo.NextNumber(ctx, uuid.New(), ledger.SeriesJournal, "202603")
		require.NoError(t, err)
		second, err := repo.NextNumber(ctx, uuid.New(), ledger.SeriesJournal, "202603")
		require.NoError(t, err)

		assert.Equal(t, int64(1), first)
		assert.Equal(t, int64(1), second)
	})

	t.Run("a rolled-back transaction releases its number", func(t *testing.T) {
		db := setupLedgerTestDB(t)
		tenantID := uuid.New()

		tx := db.Begin()
		require.NoError(t, tx.Error)
		_, err := NewGormSequenceRepository(tx).NextNumber(ctx, tenantID, ledger.SeriesJournal, "202603")
		require.NoError(t, err)
		require.NoError(t, tx.Rollback().Error)

		got, err := NewGormSequenceRepository(db).NextNumber(ctx, tenantID, ledger.SeriesJournal, "202603")
		require.NoError(t, err)
		assert.Equal(t, int64(1), got)
	})

	t.Run("rejects an empty series", func(t *testing.T) {
		db := setupLedgerTestDB(t)
		repo := NewGormSequenceRepository(db)

		_, err := repo.NextNumber(ctx, uuid.New(), "", "202603")
		assert.Error(t, err)
	})
}

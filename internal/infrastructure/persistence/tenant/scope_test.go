package tenant

import (
	"context"
	"testing"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupScopeTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.LedgerAccountModel{}))
	return db
}

func seedAccount(t *testing.T, db *gorm.DB, tenantID uuid.UUID, code string) {
	t.Helper()
	account, err := ledger.NewLedgerAccount(tenantID, code, "Account "+code, ledger.RoleCash, ledger.SideDebit)
	require.NoError(t, err)
	var model models.LedgerAccountModel
	model.FromDomain(account)
	require.NoError(t, db.Create(&model).Error)
}

func TestDB_WithContext(t *testing.T) {
	t.Run("scopes queries to the context tenant", func(t *testing.T) {
		db := setupScopeTestDB(t)
		tenantA := uuid.New()
		tenantB := uuid.New()
		seedAccount(t, db, tenantA, "1000")
		seedAccount(t, db, tenantB, "1000")

		ctx, _ := logger.WithTenantID(context.Background(), zap.NewNop(), tenantA.String())

		var accounts []models.LedgerAccountModel
		err := NewDB(db, true).WithContext(ctx).Find(&accounts).Error
		require.NoError(t, err)
		require.Len(t, accounts, 1)
		assert.Equal(t, tenantA, accounts[0].TenantID)
	})

	t.Run("fails without a tenant when required", func(t *testing.T) {
		db := setupScopeTestDB(t)

		var accounts []models.LedgerAccountModel
		err := NewDB(db, true).WithContext(context.Background()).Find(&accounts).Error
		assert.ErrorIs(t, err, ErrTenantIDRequired)
	})

	t.Run("runs unscoped without a tenant when not required", func(t *testing.T) {
		db := setupScopeTestDB(t)
		seedAccount(t, db, uuid.New(), "1000")
		seedAccount(t, db, uuid.New(), "1000")

		var accounts []models.LedgerAccountModel
		err := NewDB(db, false).WithContext(context.Background()).Find(&accounts).Error
		require.NoError(t, err)
		assert.Len(t, accounts, 2)
	})

	t.Run("rejects a malformed tenant id", func(t *testing.T) {
		db := setupScopeTestDB(t)
		ctx, _ := logger.WithTenantID(context.Background(), zap.NewNop(), "not-a-uuid")

		var accounts []models.LedgerAccountModel
		err := NewDB(db, true).WithContext(ctx).Find(&accounts).Error
		assert.ErrorIs(t, err, ErrInvalidTenantID)
	})
}

func TestDB_WithTenant(t *testing.T) {
	t.Run("scopes to the given tenant", func(t *testing.T) {
		db := setupScopeTestDB(t)
		tenantA := uuid.New()
		seedAccount(t, db, tenantA, "1000")
		seedAccount(t, db, uuid.New(), "1000")

		var count int64
		err := NewDB(db, true).WithTenant(tenantA).Model(&models.LedgerAccountModel{}).Count(&count).Error
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("rejects the nil tenant when required", func(t *testing.T) {
		db := setupScopeTestDB(t)

		var accounts []models.LedgerAccountModel
		err := NewDB(db, true).WithTenant(uuid.Nil).Find(&accounts).Error
		assert.ErrorIs(t, err, ErrTenantIDRequired)
	})
}

func TestCallback(t *testing.T) {
	t.Run("injects the tenant predicate from context", func(t *testing.T) {
		db := setupScopeTestDB(t)
		tenantA := uuid.New()
		seedAccount(t, db, tenantA, "1000")
		seedAccount(t, db, uuid.New(), "1000")

		EnableAutoTenantFilter(db, false)
		ctx, _ := logger.WithTenantID(context.Background(), zap.NewNop(), tenantA.String())

		var accounts []models.LedgerAccountModel
		err := db.WithContext(ctx).Find(&accounts).Error
		require.NoError(t, err)
		require.Len(t, accounts, 1)
		assert.Equal(t, tenantA, accounts[0].TenantID)
	})

	t.Run("leaves explicitly scoped queries alone", func(t *testing.T) {
		db := setupScopeTestDB(t)
		tenantA := uuid.New()
		tenantB := uuid.New()
		seedAccount(t, db, tenantA, "1000")
		seedAccount(t, db, tenantB, "2000")

		EnableAutoTenantFilter(db, false)
		ctx, _ := logger.WithTenantID(context.Background(), zap.NewNop(), tenantA.String())

		var accounts []models.LedgerAccountModel
		err := db.WithContext(ctx).Where("tenant_id = ?", tenantB).Find(&accounts).Error
		require.NoError(t, err)
		require.Len(t, accounts, 1)
		assert.Equal(t, "2000", accounts[0].Code)
	})

	t.Run("errors on unscoped queries when required", func(t *testing.T) {
		db := setupScopeTestDB(t)
		EnableAutoTenantFilter(db, true)

		var accounts []models.LedgerAccountModel
		err := db.WithContext(context.Background()).Find(&accounts).Error
		assert.ErrorIs(t, err, ErrTenantIDRequired)
	})
}

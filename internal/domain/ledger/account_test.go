package ledger

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/ledger/internal/domain/shared"
)

func TestAccountRole(t *testing.T) {
	t.Run("control roles map to subledger kinds", func(t *testing.T) {
		kind, ok := RoleARControl.SubledgerKind()
		require.True(t, ok)
		assert.Equal(t, SubledgerCustomer, kind)

		kind, ok = RoleAPControl.SubledgerKind()
		require.True(t, ok)
		assert.Equal(t, SubledgerVendor, kind)

		kind, ok = RoleInventory.SubledgerKind()
		require.True(t, ok)
		assert.Equal(t, SubledgerItem, kind)
	})

	t.Run("non-control roles have no subledger", func(t *testing.T) {
		for _, role := range []AccountRole{RoleRevenue, RoleCash, RoleCOGS, RoleTaxOutput} {
			_, ok := role.SubledgerKind()
			assert.False(t, ok, "role %s", role)
			assert.False(t, role.IsControl())
		}
	})

	t.Run("IsValid rejects unknown roles", func(t *testing.T) {
		assert.True(t, RoleWorkInProgress.IsValid())
		assert.False(t, AccountRole("PETTY_CASH").IsValid())
	})
}

func TestAccountSide_Opposite(t *testing.T) {
	assert.Equal(t, SideCredit, SideDebit.Opposite())
	assert.Equal(t, SideDebit, SideCredit.Opposite())
}

func TestNewLedgerAccount(t *testing.T) {
	tenantID := uuid.New()

	t.Run("creates active account", func(t *testing.T) {
		account, err := NewLedgerAccount(tenantID, "1100", "Accounts Receivable", RoleARControl, SideDebit)

		require.NoError(t, err)
		assert.Equal(t, "1100", account.Code)
		assert.Equal(t, RoleARControl, account.Role)
		assert.Equal(t, SideDebit, account.NormalSide)
		assert.True(t, account.Active)
		assert.True(t, account.BelongsTo(tenantID))
		assert.False(t, account.BelongsTo(uuid.New()))
	})

	t.Run("rejects empty code", func(t *testing.T) {
		_, err := NewLedgerAccount(tenantID, "", "AR", RoleARControl, SideDebit)
		assert.Equal(t, CodeInvalidAccount, shared.ErrorCode(err))
	})

	t.Run("rejects invalid role", func(t *testing.T) {
		_, err := NewLedgerAccount(tenantID, "1100", "AR", AccountRole("bogus"), SideDebit)
		assert.Equal(t, CodeInvalidAccount, shared.ErrorCode(err))
	})

	t.Run("Deactivate closes the account", func(t *testing.T) {
		account, err := NewLedgerAccount(tenantID, "2100", "Accounts Payable", RoleAPControl, SideCredit)
		require.NoError(t, err)

		account.Deactivate()

		assert.False(t, account.Active)
		assert.Equal(t, 2, account.GetVersion())
	})
}

package ledger

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/ledger/internal/domain/shared"
)

func TestSubledgerKind_ControlRole(t *testing.T) {
	assert.Equal(t, RoleARControl, SubledgerCustomer.ControlRole())
	assert.Equal(t, RoleAPControl, SubledgerVendor.ControlRole())
	assert.Equal(t, RoleInventory, SubledgerItem.ControlRole())
}

func TestNewSubledgerBalance(t *testing.T) {
	t.Run("starts at zero", func(t *testing.T) {
		balance, err := NewSubledgerBalance(uuid.New(), SubledgerCustomer, uuid.New())

		require.NoError(t, err)
		assert.Equal(t, int64(0), balance.Balance)
	})

	t.Run("rejects invalid kind", func(t *testing.T) {
		_, err := NewSubledgerBalance(uuid.New(), SubledgerKind("EMPLOYEE"), uuid.New())
		assert.Equal(t, CodeValidation, shared.ErrorCode(err))
	})

	t.Run("rejects nil entity", func(t *testing.T) {
		_, err := NewSubledgerBalance(uuid.New(), SubledgerCustomer, uuid.Nil)
		assert.Equal(t, CodeValidation, shared.ErrorCode(err))
	})
}

func TestSubledgerBalance_Apply(t *testing.T) {
	t.Run("debit-normal grows on debits", func(t *testing.T) {
		balance, err := NewSubledgerBalance(uuid.New(), SubledgerCustomer, uuid.New())
		require.NoError(t, err)

		balance.Apply(111000, 0, SideDebit) // invoice
		assert.Equal(t, int64(111000), balance.Balance)

		balance.Apply(0, 111000, SideDebit) // payment
		assert.Equal(t, int64(0), balance.Balance)
	})

	t.Run("credit-normal grows on credits", func(t *testing.T) {
		balance, err := NewSubledgerBalance(uuid.New(), SubledgerVendor, uuid.New())
		require.NoError(t, err)

		balance.Apply(0, 222000, SideCredit) // bill
		assert.Equal(t, int64(222000), balance.Balance)

		balance.Apply(222000, 0, SideCredit) // payment
		assert.Equal(t, int64(0), balance.Balance)
	})

	t.Run("reversal nets the original to zero", func(t *testing.T) {
		balance, err := NewSubledgerBalance(uuid.New(), SubledgerItem, uuid.New())
		require.NoError(t, err)

		balance.Apply(70000, 0, SideDebit)
		balance.Apply(0, 70000, SideDebit) // mirrored line
		assert.Equal(t, int64(0), balance.Balance)
	})
}

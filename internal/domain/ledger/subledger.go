package ledger

import (
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// SubledgerKind identifies the entity population a subledger tracks
type SubledgerKind string

const (
	SubledgerCustomer SubledgerKind = "CUSTOMER" // reconciled against AR_CONTROL
	SubledgerVendor   SubledgerKind = "VENDOR"   // reconciled against AP_CONTROL
	SubledgerItem     SubledgerKind = "ITEM"     // reconciled against INVENTORY
)

// IsValid checks if the kind is a known SubledgerKind
func (k SubledgerKind) IsValid() bool {
	switch k {
	case SubledgerCustomer, SubledgerVendor, SubledgerItem:
		return true
	}
	return false
}

// String returns the string representation of the kind
func (k SubledgerKind) String() string {
	return string(k)
}

// ControlRole returns the control-account role this subledger reconciles
// against
func (k SubledgerKind) ControlRole() AccountRole {
	switch k {
	case SubledgerCustomer:
		return RoleARControl
	case SubledgerVendor:
		return RoleAPControl
	default:
		return RoleInventory
	}
}

// SubledgerBalance is the running balance of one customer, vendor or item,
// maintained inside the posting transaction and reconciled against the GL
// control account by the verifier. The balance is signed in the control
// account's normal-side convention.
type SubledgerBalance struct {
	shared.TenantAggregateRoot
	Kind     SubledgerKind `json:"kind"`
	EntityID uuid.UUID     `json:"entity_id"`
	Balance  int64         `json:"balance"`
}

// NewSubledgerBalance creates a zero balance for an entity
func NewSubledgerBalance(tenantID uuid.UUID, kind SubledgerKind, entityID uuid.UUID) (*SubledgerBalance, error) {
	if !kind.IsValid() {
		return nil, NewValidationError("Subledger kind is not valid")
	}
	if entityID == uuid.Nil {
		return nil, NewValidationError("Subledger entity ID cannot be empty")
	}

	return &SubledgerBalance{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Kind:                kind,
		EntityID:            entityID,
		Balance:             0,
	}, nil
}

// Apply updates the running balance for a posted line. The delta follows
// the control account's normal side: a debit-normal control (AR, inventory)
// grows on debits, a credit-normal control (AP) grows on credits.
func (s *SubledgerBalance) Apply(debit, credit int64, normalSide AccountSide) {
	if normalSide == SideDebit {
		s.Balance += debit - credit
	} else {
		s.Balance += credit - debit
	}
	s.Touch()
	s.IncrementVersion()
}

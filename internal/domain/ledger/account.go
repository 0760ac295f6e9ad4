package ledger

import (
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// AccountRole tags a chart-of-accounts entry with the function it serves in
// posting rules. Rules reference roles, never concrete account IDs; the
// tenant's chart decides which account carries each role.
type AccountRole string

const (
	RoleARControl         AccountRole = "AR_CONTROL"
	RoleAPControl         AccountRole = "AP_CONTROL"
	RoleRevenue           AccountRole = "REVENUE"
	RoleTaxOutput         AccountRole = "TAX_OUTPUT"
	RoleTaxInput          AccountRole = "TAX_INPUT"
	RoleCOGS              AccountRole = "COGS"
	RoleInventory         AccountRole = "INVENTORY"
	RoleCash              AccountRole = "CASH"
	RoleCustomerDeposits  AccountRole = "CUSTOMER_DEPOSITS"
	RoleAdjustmentExpense AccountRole = "ADJUSTMENT_EXPENSE"
	RoleInventoryTransit  AccountRole = "INVENTORY_IN_TRANSIT"
	RoleWorkInProgress    AccountRole = "WIP"
)

// IsValid checks if the role is a known AccountRole
func (r AccountRole) IsValid() bool {
	switch r {
	case RoleARControl, RoleAPControl, RoleRevenue, RoleTaxOutput, RoleTaxInput,
		RoleCOGS, RoleInventory, RoleCash, RoleCustomerDeposits,
		RoleAdjustmentExpense, RoleInventoryTransit, RoleWorkInProgress:
		return true
	}
	return false
}

// String returns the string representation of the role
func (r AccountRole) String() string {
	return string(r)
}

// SubledgerKind returns the subledger reconciled against this role's account,
// if the role designates a control account.
func (r AccountRole) SubledgerKind() (SubledgerKind, bool) {
	switch r {
	case RoleARControl:
		return SubledgerCustomer, true
	case RoleAPControl:
		return SubledgerVendor, true
	case RoleInventory:
		return SubledgerItem, true
	}
	return "", false
}

// IsControl reports whether the role designates a control account
func (r AccountRole) IsControl() bool {
	_, ok := r.SubledgerKind()
	return ok
}

// AccountSide is the debit or credit side of a ledger line
type AccountSide string

const (
	SideDebit  AccountSide = "DEBIT"
	SideCredit AccountSide = "CREDIT"
)

// IsValid checks if the side is valid
func (s AccountSide) IsValid() bool {
	return s == SideDebit || s == SideCredit
}

// Opposite returns the other side
func (s AccountSide) Opposite() AccountSide {
	if s == SideDebit {
		return SideCredit
	}
	return SideDebit
}

// LedgerAccount is a tenant-scoped chart-of-accounts entry.
// NormalSide is the side on which the account's balance grows; it determines
// the sign convention for GL and subledger balance comparisons.
type LedgerAccount struct {
	shared.TenantAggregateRoot
	Code       string      `json:"code"`
	Name       string      `json:"name"`
	Role       AccountRole `json:"role"`
	NormalSide AccountSide `json:"normal_side"`
	Active     bool        `json:"active"`
}

// NewLedgerAccount creates a new chart-of-accounts entry
func NewLedgerAccount(tenantID uuid.UUID, code, name string, role AccountRole, normalSide AccountSide) (*LedgerAccount, error) {
	if code == "" {
		return nil, shared.NewDomainError("INVALID_ACCOUNT", "Account code cannot be empty")
	}
	if name == "" {
		return nil, shared.NewDomainError("INVALID_ACCOUNT", "Account name cannot be empty")
	}
	if !role.IsValid() {
		return nil, shared.NewDomainError("INVALID_ACCOUNT", "Account role is not valid")
	}
	if !normalSide.IsValid() {
		return nil, shared.NewDomainError("INVALID_ACCOUNT", "Account normal side is not valid")
	}

	return &LedgerAccount{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Code:                code,
		Name:                name,
		Role:                role,
		NormalSide:          normalSide,
		Active:              true,
	}, nil
}

// Deactivate closes the account for new postings; history is untouched
func (a *LedgerAccount) Deactivate() {
	a.Active = false
	a.IncrementVersion()
}

// BelongsTo reports whether the account is owned by the given tenant
func (a *LedgerAccount) BelongsTo(tenantID uuid.UUID) bool {
	return a.TenantID == tenantID
}

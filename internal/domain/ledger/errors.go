package ledger

import (
	"fmt"

	"github.com/erp/ledger/internal/domain/shared"
)

// Error codes surfaced by the posting engine. Any of them aborts the
// enclosing document transition; no partial journal entry is ever persisted.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeUnmappedRole       = "UNMAPPED_ACCOUNT_ROLE"
	CodeUnbalancedEntry    = "UNBALANCED_ENTRY"
	CodeDuplicatePosting   = "DUPLICATE_POSTING"
	CodeInvalidAccount     = "INVALID_ACCOUNT"
	CodeInvariantViolation = "INVARIANT_VIOLATION"
)

// NewValidationError reports a malformed breakdown or request
func NewValidationError(message string) *shared.DomainError {
	return shared.NewDomainError(CodeValidation, message)
}

// NewUnmappedRoleError reports that the tenant's chart lacks a required role
func NewUnmappedRoleError(role AccountRole) *shared.DomainError {
	return shared.NewDomainError(CodeUnmappedRole,
		fmt.Sprintf("Tenant chart of accounts has no active account for role %s", role))
}

// NewUnbalancedEntryError reports a debit/credit mismatch in minor units
func NewUnbalancedEntryError(totalDebit, totalCredit int64) *shared.DomainError {
	return shared.NewDomainError(CodeUnbalancedEntry,
		fmt.Sprintf("Journal entry is unbalanced: debit total %d != credit total %d", totalDebit, totalCredit))
}

// NewDuplicatePostingError reports a conflicting reuse of an idempotency key
// or a second active posting for the same document transition
func NewDuplicatePostingError(message string) *shared.DomainError {
	return shared.NewDomainError(CodeDuplicatePosting, message)
}

// NewInvalidAccountError reports a line referencing an unusable account
func NewInvalidAccountError(message string) *shared.DomainError {
	return shared.NewDomainError(CodeInvalidAccount, message)
}

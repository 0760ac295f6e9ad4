package ledger

import (
	"fmt"

	"github.com/erp/ledger/internal/domain/shared/valueobject"
)

// AmountKind selects which part of a MonetaryBreakdown a line template draws
type AmountKind string

const (
	AmountTotal AmountKind = "TOTAL" // subtotal - discount + tax
	AmountNet   AmountKind = "NET"   // subtotal - discount
	AmountTax   AmountKind = "TAX"
	AmountCost  AmountKind = "COST"
)

// LineTemplate is one row of a posting rule: which account role to hit, on
// which side, with which slice of the breakdown.
type LineTemplate struct {
	Role        AccountRole
	Side        AccountSide
	Amount      AmountKind
	Description string
}

// RuleKey identifies a posting rule by document type and transition
type RuleKey struct {
	DocType    DocumentType
	Transition Transition
}

// defaultRules is the declarative posting-rule table. One generic resolver
// interprets it for every document type; adding a document type means adding
// rows here, not a new code path.
var defaultRules = map[RuleKey][]LineTemplate{
	{DocSalesInvoice, TransitionPost}: {
		{RoleARControl, SideDebit, AmountTotal, "Customer receivable"},
		{RoleRevenue, SideCredit, AmountNet, "Sales revenue"},
		{RoleTaxOutput, SideCredit, AmountTax, "Output VAT"},
		{RoleCOGS, SideDebit, AmountCost, "Cost of goods sold"},
		{RoleInventory, SideCredit, AmountCost, "Inventory issue"},
	},
	{DocSalesInvoice, TransitionApplyPayment}: {
		{RoleCash, SideDebit, AmountTotal, "Payment received"},
		{RoleARControl, SideCredit, AmountTotal, "Receivable settled"},
	},
	{DocPaymentReceipt, TransitionPost}: {
		{RoleCash, SideDebit, AmountTotal, "Payment received"},
		{RoleARControl, SideCredit, AmountTotal, "Receivable settled"},
	},
	{DocBill, TransitionPost}: {
		{RoleInventory, SideDebit, AmountNet, "Goods received"},
		{RoleTaxInput, SideDebit, AmountTax, "Input VAT"},
		{RoleAPControl, SideCredit, AmountTotal, "Vendor payable"},
	},
	{DocBill, TransitionApplyPayment}: {
		{RoleAPControl, SideDebit, AmountTotal, "Payable settled"},
		{RoleCash, SideCredit, AmountTotal, "Payment made"},
	},
	{DocBillPayment, TransitionPost}: {
		{RoleAPControl, SideDebit, AmountTotal, "Payable settled"},
		{RoleCash, SideCredit, AmountTotal, "Payment made"},
	},
	{DocCreditNote, TransitionPost}: {
		{RoleRevenue, SideDebit, AmountNet, "Revenue reversal"},
		{RoleTaxOutput, SideDebit, AmountTax, "Output VAT reversal"},
		{RoleARControl, SideCredit, AmountTotal, "Receivable credited"},
		{RoleInventory, SideDebit, AmountCost, "Inventory return"},
		{RoleCOGS, SideCredit, AmountCost, "Cost reversal"},
	},
	{DocVendorCredit, TransitionPost}: {
		{RoleAPControl, SideDebit, AmountTotal, "Payable credited"},
		{RoleInventory, SideCredit, AmountNet, "Goods returned"},
		{RoleTaxInput, SideCredit, AmountTax, "Input VAT reversal"},
	},
	{DocCustomerDeposit, TransitionPost}: {
		{RoleCash, SideDebit, AmountTotal, "Deposit received"},
		{RoleCustomerDeposits, SideCredit, AmountTotal, "Customer deposit liability"},
	},
	{DocCustomerDeposit, TransitionApplyPayment}: {
		{RoleCustomerDeposits, SideDebit, AmountTotal, "Deposit applied"},
		{RoleARControl, SideCredit, AmountTotal, "Receivable settled from deposit"},
	},
	{DocStockAdjustment, TransitionPost}: {
		{RoleInventory, SideDebit, AmountCost, "Stock adjustment"},
		{RoleAdjustmentExpense, SideCredit, AmountCost, "Stock adjustment offset"},
	},
	{DocStockTransfer, TransitionPost}: {
		{RoleInventoryTransit, SideDebit, AmountCost, "Stock in transit"},
		{RoleInventory, SideCredit, AmountCost, "Stock transferred out"},
	},
	{DocProductionOrder, TransitionPost}: {
		{RoleInventory, SideDebit, AmountCost, "Finished goods received"},
		{RoleWorkInProgress, SideCredit, AmountCost, "Work in progress consumed"},
	},
}

// ResolvedLine is a rule template bound to a concrete non-negative amount.
// The role still needs resolution to a concrete account via the tenant's
// chart-of-accounts role mapping.
type ResolvedLine struct {
	Role        AccountRole
	Side        AccountSide
	Amount      valueobject.Money
	Description string
}

// RuleResolver maps (document type, transition) to the ordered ledger-line
// templates for a concrete monetary breakdown
type RuleResolver struct {
	rules map[RuleKey][]LineTemplate
}

// NewRuleResolver creates a resolver over the default posting-rule table
func NewRuleResolver() *RuleResolver {
	return &RuleResolver{rules: defaultRules}
}

// NewRuleResolverWithRules creates a resolver over a custom rule table
func NewRuleResolverWithRules(rules map[RuleKey][]LineTemplate) *RuleResolver {
	return &RuleResolver{rules: rules}
}

// HasRule reports whether a rule exists for the document type and transition
func (r *RuleResolver) HasRule(docType DocumentType, transition Transition) bool {
	_, ok := r.rules[RuleKey{docType, transition}]
	return ok
}

// Resolve binds the rule for (docType, transition) to the breakdown.
// Zero-amount template lines are dropped; a negative computed amount flips
// the template's side, which is how a decreasing stock adjustment mirrors an
// increase with the same rule row. Every returned amount is non-negative.
func (r *RuleResolver) Resolve(docType DocumentType, transition Transition, b MonetaryBreakdown) ([]ResolvedLine, error) {
	if !docType.IsValid() {
		return nil, NewValidationError(fmt.Sprintf("Unknown document type %q", docType))
	}
	if !transition.IsValid() {
		return nil, NewValidationError(fmt.Sprintf("Unknown transition %q", transition))
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}

	templates, ok := r.rules[RuleKey{docType, transition}]
	if !ok {
		return nil, NewValidationError(
			fmt.Sprintf("No posting rule for document type %q transition %q", docType, transition))
	}

	resolved := make([]ResolvedLine, 0, len(templates))
	for _, tpl := range templates {
		amount := amountFor(tpl.Amount, b)
		if amount.IsZero() {
			continue
		}
		side := tpl.Side
		if amount.IsNegative() {
			side = side.Opposite()
			amount = amount.Abs()
		}
		resolved = append(resolved, ResolvedLine{
			Role:        tpl.Role,
			Side:        side,
			Amount:      amount,
			Description: tpl.Description,
		})
	}

	if len(resolved) < 2 {
		return nil, NewValidationError(
			fmt.Sprintf("Breakdown produces no balanced entry for %q %q", docType, transition))
	}

	return resolved, nil
}

// amountFor evaluates a template's amount expression against the breakdown
func amountFor(kind AmountKind, b MonetaryBreakdown) valueobject.Money {
	switch kind {
	case AmountTotal:
		return b.Total()
	case AmountNet:
		return b.Net()
	case AmountTax:
		return b.Tax
	case AmountCost:
		return b.Cost
	default:
		return valueobject.Zero()
	}
}

package ledger

import (
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// MonetaryBreakdown is the money decomposition of a document transition.
// Subtotal, tax and discount describe the commercial side; Cost carries the
// inventory valuation side. Cost may be negative for decreasing stock
// movements - the resolver mirrors the line sides in that case.
type MonetaryBreakdown struct {
	Subtotal valueobject.Money `json:"subtotal"`
	Tax      valueobject.Money `json:"tax"`
	Cost     valueobject.Money `json:"cost"`
	Discount valueobject.Money `json:"discount"`
}

// Validate checks the breakdown for internal consistency
func (b MonetaryBreakdown) Validate() error {
	if b.Subtotal.IsNegative() {
		return NewValidationError("Breakdown subtotal cannot be negative")
	}
	if b.Tax.IsNegative() {
		return NewValidationError("Breakdown tax cannot be negative")
	}
	if b.Discount.IsNegative() {
		return NewValidationError("Breakdown discount cannot be negative")
	}
	if b.Discount.GreaterThan(b.Subtotal) {
		return NewValidationError("Breakdown discount cannot exceed subtotal")
	}
	return nil
}

// Net returns subtotal less discount
func (b MonetaryBreakdown) Net() valueobject.Money {
	return b.Subtotal.Subtract(b.Discount)
}

// Total returns the gross document amount: subtotal - discount + tax
func (b MonetaryBreakdown) Total() valueobject.Money {
	return b.Net().Add(b.Tax)
}

// IsZero reports whether the breakdown carries no amounts at all
func (b MonetaryBreakdown) IsZero() bool {
	return b.Subtotal.IsZero() && b.Tax.IsZero() && b.Cost.IsZero() && b.Discount.IsZero()
}

// WithFlatVAT returns a copy of the breakdown with Tax computed from the net
// amount at the given flat rate, rounded half up to the minor unit.
func (b MonetaryBreakdown) WithFlatVAT(rate decimal.Decimal) MonetaryBreakdown {
	b.Tax = b.Net().ApplyRate(rate)
	return b
}

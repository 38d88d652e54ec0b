package commission

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ignite/affiliate-ledger/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Calculation is the priced result for one order line.
type Calculation struct {
	Type       domain.CommissionType
	Rate       decimal.Decimal
	Amount     decimal.Decimal
	SaleAmount decimal.Decimal
}

// Calculate prices a commission. Percentage commissions are rounded to the
// currency's minor unit with round-half-even. Fixed commissions never
// exceed the sale amount.
func Calculate(rule *domain.CommissionRule, line domain.OrderLine, minorUnits int32) (Calculation, error) {
	if line.Quantity <= 0 {
		return Calculation{}, fmt.Errorf("%w: order line quantity must be positive", ErrMalformedRule)
	}
	if line.UnitPrice.IsNegative() {
		return Calculation{}, fmt.Errorf("%w: order line price is negative", ErrMalformedRule)
	}
	if rule.Official {
		return Calculation{}, fmt.Errorf("%w: official promotion", ErrNoCommission)
	}

	calc := Calculation{Type: rule.Type, SaleAmount: line.SaleAmount()}
	switch rule.Type {
	case domain.CommissionPercentage:
		if rule.Rate == nil {
			return Calculation{}, fmt.Errorf("%w: percentage rule has no rate", ErrMalformedRule)
		}
		if rule.Rate.IsNegative() || rule.Rate.GreaterThan(hundred) {
			return Calculation{}, fmt.Errorf("%w: rate %s is outside 0-100", ErrMalformedRule, rule.Rate.String())
		}
		calc.Rate = *rule.Rate
		calc.Amount = calc.SaleAmount.Mul(calc.Rate).Div(hundred).RoundBank(minorUnits)
	case domain.CommissionFixed:
		if rule.Amount == nil {
			return Calculation{}, fmt.Errorf("%w: fixed rule has no amount", ErrMalformedRule)
		}
		if rule.Amount.IsNegative() {
			return Calculation{}, fmt.Errorf("%w: fixed amount is negative", ErrMalformedRule)
		}
		calc.Rate = decimal.Zero
		calc.Amount = decimal.Min(rule.Amount.RoundBank(minorUnits), calc.SaleAmount)
	default:
		return Calculation{}, fmt.Errorf("%w: unknown commission type %q", ErrMalformedRule, rule.Type)
	}

	if !calc.Amount.IsPositive() {
		return Calculation{}, fmt.Errorf("%w: commission rounds to zero", ErrNoCommission)
	}
	return calc, nil
}

package commission

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/affiliate-ledger/internal/domain"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func line(price string, qty int) domain.OrderLine {
	return domain.OrderLine{ProductID: "sku-1", UnitPrice: decimal.RequireFromString(price), Quantity: qty}
}

func TestCalculate(t *testing.T) {
	tests := []struct {
		name   string
		rule   domain.CommissionRule
		line   domain.OrderLine
		amount string
		err    error
	}{
		{"49.99 at 10% rounds to 5.00", domain.CommissionRule{Type: domain.CommissionPercentage, Rate: dec("10")}, line("49.99", 1), "5.00", nil},
		{"percentage on quantity", domain.CommissionRule{Type: domain.CommissionPercentage, Rate: dec("12.5")}, line("20.00", 3), "7.50", nil},
		{"banker's rounding down", domain.CommissionRule{Type: domain.CommissionPercentage, Rate: dec("5")}, line("0.50", 1), "0.02", nil},
		{"banker's rounding up", domain.CommissionRule{Type: domain.CommissionPercentage, Rate: dec("5")}, line("0.70", 1), "0.04", nil},
		{"fixed", domain.CommissionRule{Type: domain.CommissionFixed, Amount: dec("3.00")}, line("10.00", 2), "3.00", nil},
		{"fixed clamped to sale amount", domain.CommissionRule{Type: domain.CommissionFixed, Amount: dec("15.00")}, line("10.00", 1), "10.00", nil},
		{"official promotion pays nothing", domain.CommissionRule{Type: domain.CommissionPercentage, Rate: dec("10"), Official: true}, line("10.00", 1), "", ErrNoCommission},
		{"zero after rounding", domain.CommissionRule{Type: domain.CommissionPercentage, Rate: dec("1")}, line("0.40", 1), "", ErrNoCommission},
		{"missing rate", domain.CommissionRule{Type: domain.CommissionPercentage}, line("10.00", 1), "", ErrMalformedRule},
		{"rate above 100", domain.CommissionRule{Type: domain.CommissionPercentage, Rate: dec("150")}, line("10.00", 1), "", ErrMalformedRule},
		{"negative fixed", domain.CommissionRule{Type: domain.CommissionFixed, Amount: dec("-1")}, line("10.00", 1), "", ErrMalformedRule},
		{"unknown type", domain.CommissionRule{Type: "tiered"}, line("10.00", 1), "", ErrMalformedRule},
		{"zero quantity", domain.CommissionRule{Type: domain.CommissionFixed, Amount: dec("1")}, line("10.00", 0), "", ErrMalformedRule},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := tt.rule
			calc, err := Calculate(&rule, tt.line, 2)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.amount, calc.Amount.StringFixed(2))
			assert.True(t, calc.Amount.LessThanOrEqual(calc.SaleAmount))
		})
	}
}

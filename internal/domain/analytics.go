package domain

import "github.com/shopspring/decimal"

// PromoterAnalytics summarises a promoter's funnel over a trailing window.
type PromoterAnalytics struct {
	PromoterID        string          `json:"promoter_id"`
	Days              int             `json:"days"`
	Views             int             `json:"views"`
	Clicks            int             `json:"clicks"`
	Conversions       int             `json:"conversions"`
	ClickThroughRate  float64         `json:"ctr"`
	ConversionRate    float64         `json:"conversion_rate"`
	EarnedCommission  decimal.Decimal `json:"earned_commission"`
	UnreleasedAmount  decimal.Decimal `json:"unreleased_commission"`
	RejectedSaleCount int             `json:"rejected_sales"`
}

// SaleSummary aggregates a promoter's sales by commission status.
type SaleSummary struct {
	Count  map[CommissionStatus]int             `json:"count"`
	Amount map[CommissionStatus]decimal.Decimal `json:"amount"`
}

// Percent returns part/whole*100 rounded to two places, or 0.
func Percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	v := decimal.NewFromInt(int64(part)).Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(int64(whole))).Round(2)
	f, _ := v.Float64()
	return f
}

package policy

import (
	"fmt"

	"payment_validator/internal/counters"
	"payment_validator/internal/domain"

	"github.com/shopspring/decimal"
)

// LimitPolicy holds the numeric limits of one payment mode. A zero value
// means the bound is not enforced. All bounds are inclusive.
type LimitPolicy struct {
	MinPerTxn         decimal.Decimal
	MaxPerTxn         decimal.Decimal
	DailyMax          decimal.Decimal
	MonthlyMax        decimal.Decimal
	MonthlyByCategory map[domain.CustomerCategory]decimal.Decimal
}

func (p LimitPolicy) RuleID(mode domain.PaymentMode, kind string) string {
	return fmt.Sprintf("limit.%s.%s", mode, kind)
}

// MonthlyCeiling returns the monthly bound that applies to the category.
func (p LimitPolicy) MonthlyCeiling(category domain.CustomerCategory) decimal.Decimal {
	if v, ok := p.MonthlyByCategory[category]; ok {
		return v
	}
	return p.MonthlyMax
}

// CheckAmount applies the per-transaction floor and ceiling.
func (p LimitPolicy) CheckAmount(mode domain.PaymentMode, amount decimal.Decimal) []domain.ValidationError {
	var errs []domain.ValidationError

	if p.MaxPerTxn.IsPositive() && amount.GreaterThan(p.MaxPerTxn) {
		errs = append(errs, domain.ValidationError{
			Code:    domain.CodeAmountAboveLimit,
			Message: fmt.Sprintf("%s amount %s exceeds per-transaction limit %s", mode, amount.StringFixed(2), p.MaxPerTxn.StringFixed(2)),
		})
	}
	if p.MinPerTxn.IsPositive() && amount.LessThan(p.MinPerTxn) {
		errs = append(errs, domain.ValidationError{
			Code:    domain.CodeAmountBelowMinimum,
			Message: fmt.Sprintf("%s amount %s is below minimum %s", mode, amount.StringFixed(2), p.MinPerTxn.StringFixed(2)),
		})
	}
	return errs
}

// CheckAggregates compares current totals plus the candidate amount against
// the daily and monthly ceilings.
func (p LimitPolicy) CheckAggregates(
	mode domain.PaymentMode,
	totals counters.Totals,
	amount decimal.Decimal,
	category domain.CustomerCategory,
) []domain.ValidationError {
	var errs []domain.ValidationError

	if p.DailyMax.IsPositive() {
		if projected := totals.Daily.Add(amount); projected.GreaterThan(p.DailyMax) {
			errs = append(errs, domain.ValidationError{
				Code:    domain.CodeDailyLimitExceeded,
				Message: fmt.Sprintf("%s daily limit exceeded: %s/%s", mode, projected.StringFixed(2), p.DailyMax.StringFixed(2)),
			})
		}
	}

	if monthly := p.MonthlyCeiling(category); monthly.IsPositive() {
		if projected := totals.Monthly.Add(amount); projected.GreaterThan(monthly) {
			errs = append(errs, domain.ValidationError{
				Code:    domain.CodeMonthlyLimit,
				Message: fmt.Sprintf("%s monthly limit for %s customers exceeded: %s/%s", mode, category, projected.StringFixed(2), monthly.StringFixed(2)),
			})
		}
	}
	return errs
}

func DefaultLimits() map[domain.PaymentMode]LimitPolicy {
	d := decimal.NewFromInt
	return map[domain.PaymentMode]LimitPolicy{
		domain.ModeUPI: {
			MinPerTxn:  d(1),
			MaxPerTxn:  d(100_000),
			DailyMax:   d(100_000),
			MonthlyMax: d(1_000_000),
			MonthlyByCategory: map[domain.CustomerCategory]decimal.Decimal{
				domain.CategoryBasic:   d(200_000),
				domain.CategoryPremium: d(2_000_000),
			},
		},
		domain.ModeIMPS: {
			MinPerTxn:  d(1),
			MaxPerTxn:  d(500_000),
			DailyMax:   d(1_000_000),
			MonthlyMax: d(5_000_000),
			MonthlyByCategory: map[domain.CustomerCategory]decimal.Decimal{
				domain.CategoryBasic:   d(1_000_000),
				domain.CategoryPremium: d(10_000_000),
			},
		},
		domain.ModeNEFT: {
			MinPerTxn:  d(1),
			DailyMax:   d(2_500_000),
			MonthlyMax: d(10_000_000),
			MonthlyByCategory: map[domain.CustomerCategory]decimal.Decimal{
				domain.CategoryBasic:     d(2_500_000),
				domain.CategoryCorporate: d(100_000_000),
			},
		},
		domain.ModeRTGS: {
			MinPerTxn:  d(200_000),
			DailyMax:   d(10_000_000),
			MonthlyMax: d(50_000_000),
			MonthlyByCategory: map[domain.CustomerCategory]decimal.Decimal{
				domain.CategoryBasic:     d(10_000_000),
				domain.CategoryCorporate: d(500_000_000),
			},
		},
	}
}

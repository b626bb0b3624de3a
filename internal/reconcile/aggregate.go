package reconcile

import (
	"fmt"

	"github.com/shopspring/decimal"

	"fuelos/backend/internal/domain"
)

const (
	TierBalanced = "balanced"
	TierWarning  = "warning"
	TierAlert    = "alert"
)

// Policy holds the informational thresholds of the aggregator. None of them
// ever blocks a submission.
type Policy struct {
	VarianceWarnThreshold decimal.Decimal
}

func DefaultPolicy() Policy {
	return Policy{VarianceWarnThreshold: decimal.NewFromInt(300)}
}

// AggregateShift sums nozzle revenues into the shift totals with the default
// policy.
func AggregateShift(results []domain.NozzleResult, split domain.PaymentSplit) (domain.ShiftTotals, error) {
	return DefaultPolicy().Aggregate(results, split)
}

// Aggregate rounds total sales once, after summing unrounded nozzle revenue.
// Credit is a receivable and is not part of the collected amount.
func (p Policy) Aggregate(results []domain.NozzleResult, split domain.PaymentSplit) (domain.ShiftTotals, error) {
	if len(results) == 0 {
		return domain.ShiftTotals{}, &PreconditionError{Err: ErrIncompleteShift, Detail: "no nozzle readings"}
	}
	if err := validateSplit(split); err != nil {
		return domain.ShiftTotals{}, err
	}
	split = RoundSplit(split)

	revenue := decimal.Zero
	volume := decimal.Zero
	for _, res := range results {
		if !res.Complete {
			return domain.ShiftTotals{}, &PreconditionError{
				Err:    ErrIncompleteShift,
				PumpID: res.PumpID,
				Detail: fmt.Sprintf("nozzle %s: %s", res.NozzleID, res.Issue),
			}
		}
		revenue = revenue.Add(res.Revenue)
		volume = volume.Add(res.NetVolume)
	}

	totalSales := revenue.Round(0)
	collected := Collected(split)
	variance := collected.Sub(totalSales).Round(0)

	return domain.ShiftTotals{
		TotalSales:     totalSales,
		TotalVolume:    volume.Round(volumeScale),
		Collected:      collected,
		Credit:         split.Credit,
		Variance:       variance,
		VarianceStatus: ClassifyVariance(variance),
		VarianceTier:   p.Tier(variance),
	}, nil
}

// Collected is cash + card + upi.
func Collected(split domain.PaymentSplit) decimal.Decimal {
	return split.Cash.Add(split.Card).Add(split.UPI)
}

func ClassifyVariance(variance decimal.Decimal) domain.VarianceStatus {
	switch variance.Sign() {
	case 1:
		return domain.VarianceOver
	case -1:
		return domain.VarianceShort
	default:
		return domain.VarianceBalanced
	}
}

func (p Policy) Tier(variance decimal.Decimal) string {
	if variance.IsZero() {
		return TierBalanced
	}
	if variance.Abs().LessThan(p.VarianceWarnThreshold) {
		return TierWarning
	}
	return TierAlert
}

// RoundSplit rounds every payment channel to paise.
func RoundSplit(split domain.PaymentSplit) domain.PaymentSplit {
	return domain.PaymentSplit{
		Cash:   split.Cash.Round(moneyScale),
		Card:   split.Card.Round(moneyScale),
		UPI:    split.UPI.Round(moneyScale),
		Credit: split.Credit.Round(moneyScale),
	}
}

func validateSplit(split domain.PaymentSplit) error {
	fields := []struct {
		name  string
		value decimal.Decimal
	}{
		{"cash", split.Cash},
		{"card", split.Card},
		{"upi", split.UPI},
		{"credit", split.Credit},
	}
	for _, f := range fields {
		if f.value.IsNegative() {
			return &ValidationError{Err: ErrInvalidInput, Field: f.name, Issue: "must not be negative"}
		}
	}
	return nil
}

package reconcile

import (
	"github.com/shopspring/decimal"

	"fuelos/backend/internal/domain"
)

var (
	millilitresPerLitre = decimal.NewFromInt(1000)
	testPassMaxML       = decimal.NewFromInt(50)
	testWarningMaxML    = decimal.NewFromInt(100)
)

// TestVolumeFor sums the litres extracted for calibration on one exact
// (pump, nozzle, date, shift) key. The result is never negative.
func TestVolumeFor(tests []domain.MachineTest, pumpID, nozzleID, date string, shift domain.ShiftName) decimal.Decimal {
	total := decimal.Zero
	for _, t := range tests {
		if t.PumpID != pumpID || t.NozzleID != nozzleID || t.Date != date || t.Shift != shift {
			continue
		}
		if t.ExtractedQty.IsNegative() {
			continue
		}
		total = total.Add(t.ExtractedQty)
	}
	return total.Round(volumeScale)
}

// EvaluateTest compares the metered extraction with the calibrated jar, both
// in litres, and grades the difference in millilitres.
func EvaluateTest(extracted, jar decimal.Decimal) (decimal.Decimal, domain.TestResult) {
	varianceML := extracted.Sub(jar).Abs().Mul(millilitresPerLitre).Round(0)
	switch {
	case varianceML.LessThanOrEqual(testPassMaxML):
		return varianceML, domain.TestPass
	case varianceML.LessThanOrEqual(testWarningMaxML):
		return varianceML, domain.TestWarning
	default:
		return varianceML, domain.TestFail
	}
}

// ValidateTest checks a calibration record before it is stored and fills in
// its variance and result.
func ValidateTest(t domain.MachineTest) (domain.MachineTest, error) {
	key := func(field, issue string) error {
		return &ValidationError{Err: ErrInvalidInput, Field: field, Issue: issue, PumpID: t.PumpID, NozzleID: t.NozzleID, Date: t.Date, Shift: t.Shift}
	}
	if _, err := ParseDate(t.Date); err != nil {
		return domain.MachineTest{}, err
	}
	if ShiftIndex(t.Shift) < 0 {
		return domain.MachineTest{}, key("shift", "unknown shift")
	}
	if !t.ExtractedQty.IsPositive() {
		return domain.MachineTest{}, key("extracted_qty", "must be positive")
	}
	if t.JarReading.IsNegative() {
		return domain.MachineTest{}, key("jar_reading", "must not be negative")
	}
	if !t.MeterBefore.IsZero() || !t.MeterAfter.IsZero() {
		if t.MeterAfter.LessThan(t.MeterBefore) {
			return domain.MachineTest{}, key("meter_after", "below meter_before")
		}
	}
	t.ExtractedQty = t.ExtractedQty.Round(volumeScale)
	t.VarianceML, t.Result = EvaluateTest(t.ExtractedQty, t.JarReading)
	return t, nil
}

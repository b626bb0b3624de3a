package reconcile

import (
	"strings"

	"github.com/shopspring/decimal"

	"fuelos/backend/internal/domain"
)

// Volumes keep millilitre precision.
const (
	volumeScale = 3
	moneyScale  = 2
)

const (
	IssueMissingClose      = "missing_close"
	IssueInvalidClose      = "invalid_close"
	IssueCloseNotAboveOpen = "close_not_above_open"
)

// NozzleInput is everything the calculator needs for one nozzle in one shift.
type NozzleInput struct {
	PumpID      string
	NozzleID    string
	FuelType    domain.FuelType
	OpenReading decimal.Decimal
	OpenSource  string
	CloseInput  string
	TestVolume  decimal.Decimal
	Rate        decimal.Decimal
}

// ComputeNozzle derives gross, net and revenue for one nozzle. Revenue is
// left unrounded; rounding happens once when the shift is aggregated.
func ComputeNozzle(in NozzleInput) domain.NozzleResult {
	res := domain.NozzleResult{
		PumpID:      in.PumpID,
		NozzleID:    in.NozzleID,
		FuelType:    in.FuelType,
		OpenReading: in.OpenReading,
		OpenSource:  in.OpenSource,
		CloseInput:  in.CloseInput,
		TestVolume:  clampZero(in.TestVolume).Round(volumeScale),
		Rate:        in.Rate,
	}

	raw := strings.TrimSpace(in.CloseInput)
	if raw == "" {
		res.Issue = IssueMissingClose
		return res
	}
	closeReading, err := decimal.NewFromString(raw)
	if err != nil {
		res.Issue = IssueInvalidClose
		return res
	}
	closeReading = closeReading.Round(volumeScale)
	res.Close = closeReading
	if closeReading.LessThanOrEqual(in.OpenReading) {
		res.Issue = IssueCloseNotAboveOpen
		return res
	}

	res.GrossVolume = closeReading.Sub(in.OpenReading).Round(volumeScale)
	res.NetVolume = clampZero(res.GrossVolume.Sub(res.TestVolume))
	res.Revenue = res.NetVolume.Mul(in.Rate)
	res.Complete = true
	return res
}

// NozzleError turns an incomplete result into a ValidationError.
func NozzleError(res domain.NozzleResult, date string, shift domain.ShiftName) error {
	if res.Complete {
		return nil
	}
	return &ValidationError{
		Err:      ErrIncompleteReading,
		Field:    "close_reading",
		Issue:    res.Issue,
		PumpID:   res.PumpID,
		NozzleID: res.NozzleID,
		Date:     date,
		Shift:    shift,
	}
}

func clampZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

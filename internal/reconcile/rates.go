package reconcile

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"fuelos/backend/internal/domain"
)

// RateSource returns the unit price of a fuel at a point in time.
type RateSource interface {
	RateAt(ctx context.Context, fuel domain.FuelType, at time.Time) (decimal.Decimal, error)
}

// RateTable is a frozen fuel -> unit price mapping used for one computation.
type RateTable map[domain.FuelType]decimal.Decimal

func NewRateTable(rates []domain.FuelRate) RateTable {
	table := make(RateTable, len(rates))
	for _, r := range rates {
		table[r.FuelType] = r.Rate
	}
	return table
}

func (t RateTable) Lookup(fuel domain.FuelType) (decimal.Decimal, bool) {
	rate, ok := t[fuel]
	if !ok || !rate.IsPositive() {
		return decimal.Zero, false
	}
	return rate, true
}

// RateFor resolves a rate or returns a ValidationError naming the fuel.
func (t RateTable) RateFor(fuel domain.FuelType) (decimal.Decimal, error) {
	rate, ok := t.Lookup(fuel)
	if !ok {
		return decimal.Zero, &ValidationError{Err: ErrRateMissing, Field: "rate", Issue: string(fuel)}
	}
	return rate, nil
}

// RateAt lets a frozen table stand in wherever a RateSource is expected.
func (t RateTable) RateAt(_ context.Context, fuel domain.FuelType, _ time.Time) (decimal.Decimal, error) {
	return t.RateFor(fuel)
}

// CollectRates freezes the rates of the given fuels at one instant.
func CollectRates(ctx context.Context, src RateSource, fuels []domain.FuelType, at time.Time) (RateTable, error) {
	table := make(RateTable, len(fuels))
	for _, fuel := range fuels {
		if _, done := table[fuel]; done {
			continue
		}
		rate, err := src.RateAt(ctx, fuel, at)
		if err != nil {
			return nil, err
		}
		table[fuel] = rate
	}
	return table, nil
}

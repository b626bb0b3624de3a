package cache

import (
	"context"
	"time"

	"fuelos/backend/internal/domain"
)

const RatesKey = "fuelos:rates:current"

// RateCache holds the current fuel rate table between rate changes.
type RateCache interface {
	GetRates(ctx context.Context) ([]domain.FuelRate, bool, error)
	SetRates(ctx context.Context, rates []domain.FuelRate, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

type NoopRateCache struct{}

func (NoopRateCache) GetRates(_ context.Context) ([]domain.FuelRate, bool, error) {
	return nil, false, nil
}

func (NoopRateCache) SetRates(_ context.Context, _ []domain.FuelRate, _ time.Duration) error {
	return nil
}

func (NoopRateCache) Invalidate(_ context.Context) error {
	return nil
}

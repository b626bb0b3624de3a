package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fuelos/backend/internal/domain"
)

func TestNoopRateCacheAlwaysMisses(t *testing.T) {
	var c RateCache = NoopRateCache{}
	require.NoError(t, c.SetRates(context.Background(), []domain.FuelRate{{FuelType: domain.FuelPetrol}}, time.Minute))
	_, ok, err := c.GetRates(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisRateCacheRoundTrip(t *testing.T) {
	addr := os.Getenv("FUELOS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("FUELOS_TEST_REDIS_ADDR is not set")
	}
	client := NewRedisClient(addr, "", 0)
	defer client.Close()

	ctx := context.Background()
	c := NewRedisRateCache(client)
	c.key = "fuelos:test:rates"
	require.NoError(t, c.Ping(ctx))
	require.NoError(t, c.Invalidate(ctx))

	rates := []domain.FuelRate{{FuelType: domain.FuelDiesel, Rate: decimal.RequireFromString("89.62")}}
	require.NoError(t, c.SetRates(ctx, rates, time.Minute))

	got, ok, err := c.GetRates(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.True(t, got[0].Rate.Equal(rates[0].Rate))

	require.NoError(t, c.Invalidate(ctx))
	_, ok, err = c.GetRates(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

package inflation

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/basketcase/pkg/db/models"
)

func point(price string, at time.Time) models.PricePoint {
	return models.PricePoint{Price: decimal.RequireFromString(price), CapturedAt: at}
}

func TestSelectPricesUsesLatestBaseAtOrBeforeCreation(t *testing.T) {
	created := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	series := []models.PricePoint{
		point("9.00", created.Add(-72*time.Hour)),
		point("9.50", created),
		point("12.00", created.Add(24*time.Hour)),
	}

	base, current, ok := selectPrices(series, created)
	require.True(t, ok)
	assert.Equal(t, "9.5", base.Price.String())
	assert.Equal(t, "12", current.Price.String())
}

func TestSelectPricesWithoutQualifyingBase(t *testing.T) {
	created := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	_, _, ok := selectPrices([]models.PricePoint{point("3.00", created.Add(time.Second))}, created)
	assert.False(t, ok)

	_, _, ok = selectPrices(nil, created)
	assert.False(t, ok)
}

func TestCurrentMayPrecedeCreation(t *testing.T) {
	created := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	series := []models.PricePoint{point("4.00", created.Add(-time.Hour))}
	base, current, ok := selectPrices(series, created)
	require.True(t, ok)
	assert.True(t, base.CapturedAt.Equal(current.CapturedAt))
}

func TestAccumulatorWeightsByQuantity(t *testing.T) {
	t0 := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	var acc accumulator
	acc.add(point("10.00", t0), point("11.00", t0.Add(19*24*time.Hour)), 2)
	acc.add(point("5.00", t0.Add(-time.Hour)), point("5.00", t0), 1)

	// (22 + 5) / (20 + 5) = 1.08
	assert.InDelta(t, 8.0, acc.percent(), 1e-9)
	assert.True(t, acc.baseDate.Equal(t0.Add(-time.Hour)))
	assert.Equal(t, 2, acc.resolved)
}

func TestAccumulatorEmptyBaseIsZero(t *testing.T) {
	var acc accumulator
	acc.skip()
	fallback := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	row := acc.index(uuid.New(), models.ScopeOverall, nil, fallback, fallback)

	assert.Equal(t, 0.0, row.InflationPercent)
	assert.Equal(t, 100.0, row.CurrentIndex)
	assert.Equal(t, 100.0, row.BaseIndex)
	assert.True(t, row.BaseDate.Equal(fallback))
	assert.Equal(t, 1, row.ItemsSkipped)
}

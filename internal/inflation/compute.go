package inflation

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/basketcase/pkg/db/models"
)

// BaseIndex anchors every index at 100 regardless of absolute prices.
const BaseIndex = 100.0

var hundred = decimal.NewFromInt(100)

// selectPrices picks the base point (latest captured at or before createdAt) and the current
// point (latest overall) from an ascending series. ok is false when no base qualifies.
func selectPrices(series []models.PricePoint, createdAt time.Time) (base, current models.PricePoint, ok bool) {
	if len(series) == 0 {
		return base, current, false
	}
	found := false
	for _, point := range series {
		if point.CapturedAt.After(createdAt) {
			break
		}
		base = point
		found = true
	}
	return base, series[len(series)-1], found
}

// accumulator sums quantity-weighted base and current totals for one scope.
type accumulator struct {
	totalBase    decimal.Decimal
	totalCurrent decimal.Decimal
	baseDate     time.Time
	resolved     int
	skipped      int
}

func (a *accumulator) add(base, current models.PricePoint, quantity int) {
	qty := decimal.NewFromInt(int64(quantity))
	a.totalBase = a.totalBase.Add(base.Price.Mul(qty))
	a.totalCurrent = a.totalCurrent.Add(current.Price.Mul(qty))
	if a.baseDate.IsZero() || base.CapturedAt.Before(a.baseDate) {
		a.baseDate = base.CapturedAt
	}
	a.resolved++
}

func (a *accumulator) skip() {
	a.skipped++
}

// percent returns the signed change between the totals; an empty base yields zero.
func (a *accumulator) percent() float64 {
	if a.totalBase.IsZero() {
		return 0
	}
	return a.totalCurrent.Div(a.totalBase).Sub(decimal.NewFromInt(1)).Mul(hundred).InexactFloat64()
}

// index renders the accumulator as a row for scope, falling back to fallbackDate when no
// base price resolved.
func (a *accumulator) index(basketID uuid.UUID, scope string, categoryID *uuid.UUID, fallbackDate, calculatedAt time.Time) *models.InflationIndex {
	pct := a.percent()
	baseDate := a.baseDate
	if baseDate.IsZero() {
		baseDate = fallbackDate
	}
	return &models.InflationIndex{
		BasketID:         basketID,
		Scope:            scope,
		CategoryID:       categoryID,
		BaseIndex:        BaseIndex,
		CurrentIndex:     BaseIndex + pct,
		InflationPercent: pct,
		BaseDate:         baseDate.UTC(),
		CalculatedAt:     calculatedAt.UTC(),
		ItemsResolved:    a.resolved,
		ItemsSkipped:     a.skipped,
	}
}

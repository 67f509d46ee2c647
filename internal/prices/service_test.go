package prices

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/basketcase/pkg/db"
	"github.com/angelmondragon/basketcase/pkg/db/dbtest"
	"github.com/angelmondragon/basketcase/pkg/db/models"
	pkgerrors "github.com/angelmondragon/basketcase/pkg/errors"
)

const (
	testStore   = "01400943"
	testProduct = "0001111041700"
)

var t0 = time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (Service, *db.Client) {
	t.Helper()
	client := dbtest.Client(t, &models.PricePoint{})
	svc, err := NewService(client, NewRepository(client.DB()), func() time.Time { return t0.Add(48 * time.Hour) })
	require.NoError(t, err)
	return svc, client
}

func mustAppend(t *testing.T, svc Service, price string, at time.Time) *models.PricePoint {
	t.Helper()
	point, err := svc.Append(context.Background(), AppendInput{
		ProductID:  testProduct,
		StoreID:    testStore,
		Price:      decimal.RequireFromString(price),
		CapturedAt: at,
	})
	require.NoError(t, err)
	return point
}

func TestAppendRejectsNonPositivePrice(t *testing.T) {
	svc, _ := newTestService(t)
	for _, price := range []string{"0", "-1.25"} {
		_, err := svc.Append(context.Background(), AppendInput{
			ProductID:  testProduct,
			StoreID:    testStore,
			Price:      decimal.RequireFromString(price),
			CapturedAt: t0,
		})
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), price)
	}

	points, err := svc.Query(context.Background(), testProduct, testStore, TimeRange{})
	require.NoError(t, err)
	require.Empty(t, points)
}

func TestAppendDefaultsCaptureTimeAndDropsZeroPromo(t *testing.T) {
	svc, _ := newTestService(t)
	point, err := svc.Append(context.Background(), AppendInput{
		ProductID:  testProduct,
		StoreID:    testStore,
		Price:      decimal.RequireFromString("3.49"),
		PromoPrice: decimal.NewNullDecimal(decimal.Zero),
	})
	require.NoError(t, err)
	require.True(t, point.CapturedAt.Equal(t0.Add(48*time.Hour)))
	require.False(t, point.PromoPrice.Valid)
}

func TestQueryReturnsAscendingAndIsRestartable(t *testing.T) {
	svc, _ := newTestService(t)
	mustAppend(t, svc, "10.00", t0)
	mustAppend(t, svc, "10.50", t0.Add(24*time.Hour))
	mustAppend(t, svc, "11.00", t0.Add(19*24*time.Hour))

	first, err := svc.Query(context.Background(), testProduct, testStore, TimeRange{})
	require.NoError(t, err)
	require.Len(t, first, 3)
	for i := 1; i < len(first); i++ {
		require.False(t, first[i].CapturedAt.Before(first[i-1].CapturedAt))
	}
	require.True(t, first[0].Price.Equal(decimal.RequireFromString("10")))

	again, err := svc.Query(context.Background(), testProduct, testStore, TimeRange{})
	require.NoError(t, err)
	require.Equal(t, len(first), len(again))
	for i := range first {
		require.Equal(t, first[i].ID, again[i].ID)
	}
}

func TestQueryTimeRangeIsInclusive(t *testing.T) {
	svc, _ := newTestService(t)
	mustAppend(t, svc, "10.00", t0)
	mustAppend(t, svc, "10.50", t0.Add(24*time.Hour))
	mustAppend(t, svc, "11.00", t0.Add(48*time.Hour))

	points, err := svc.Query(context.Background(), testProduct, testStore, TimeRange{From: t0.Add(24 * time.Hour), To: t0.Add(48 * time.Hour)})
	require.NoError(t, err)
	require.Len(t, points, 2)
	require.True(t, points[0].Price.Equal(decimal.RequireFromString("10.5")))

	_, err = svc.Query(context.Background(), testProduct, testStore, TimeRange{From: t0.Add(time.Hour), To: t0})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestAppendPreservesPartitionOrder(t *testing.T) {
	svc, _ := newTestService(t)
	mustAppend(t, svc, "10.00", t0.Add(time.Hour))

	_, err := svc.Append(context.Background(), AppendInput{
		ProductID:  testProduct,
		StoreID:    testStore,
		Price:      decimal.RequireFromString("9.00"),
		CapturedAt: t0,
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	// other partitions are independent
	_, err = svc.Append(context.Background(), AppendInput{
		ProductID:  "0000000004011",
		StoreID:    testStore,
		Price:      decimal.RequireFromString("0.25"),
		CapturedAt: t0,
	})
	require.NoError(t, err)
}

func TestSeriesForProductsGroupsByProduct(t *testing.T) {
	svc, client := newTestService(t)
	mustAppend(t, svc, "10.00", t0)
	mustAppend(t, svc, "11.00", t0.Add(time.Hour))
	_, err := svc.Append(context.Background(), AppendInput{ProductID: "0000000004011", StoreID: testStore, Price: decimal.RequireFromString("0.25"), CapturedAt: t0})
	require.NoError(t, err)
	_, err = svc.Append(context.Background(), AppendInput{ProductID: testProduct, StoreID: "70100123", Price: decimal.RequireFromString("99"), CapturedAt: t0})
	require.NoError(t, err)

	series, err := NewRepository(client.DB()).SeriesForProducts(context.Background(), testStore, []string{testProduct, "0000000004011", "missing"})
	require.NoError(t, err)
	require.Len(t, series[testProduct], 2)
	require.Len(t, series["0000000004011"], 1)
	require.Empty(t, series["missing"])
}

func TestSplitOutOfOrderChecksEachPartition(t *testing.T) {
	svc, client := newTestService(t)
	mustAppend(t, svc, "2.00", t0)

	late := &models.PricePoint{ProductID: testProduct, StoreID: testStore, Price: decimal.RequireFromString("2.10"), CapturedAt: t0.Add(-time.Minute)}
	fresh := &models.PricePoint{ProductID: "0001111041701", StoreID: testStore, Price: decimal.RequireFromString("3.00"), CapturedAt: t0.Add(-time.Minute)}
	same := &models.PricePoint{ProductID: testProduct, StoreID: "01400944", Price: decimal.RequireFromString("1.50"), CapturedAt: t0.Add(-time.Minute)}

	ordered, stale, err := SplitOutOfOrder(context.Background(), NewRepository(client.DB()), []*models.PricePoint{late, fresh, same})
	require.NoError(t, err)
	require.Equal(t, []*models.PricePoint{fresh, same}, ordered)
	require.Equal(t, []*models.PricePoint{late}, stale)
}

package kroger

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUsablePrice(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		ok      bool
		regular string
		promo   string
	}{
		{name: "regular and promo", body: `{"items":[{"price":{"regular":3.49,"promo":2.99}}]}`, ok: true, regular: "3.49", promo: "2.99"},
		{name: "zero promo dropped", body: `{"items":[{"price":{"regular":3.49,"promo":0}}]}`, ok: true, regular: "3.49"},
		{name: "no items", body: `{"items":[]}`},
		{name: "no price", body: `{"items":[{"size":"1 lb"}]}`},
		{name: "missing regular", body: `{"items":[{"price":{"promo":1.00}}]}`},
		{name: "zero regular", body: `{"items":[{"price":{"regular":0}}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var rec PriceRecord
			require.NoError(t, json.Unmarshal([]byte(tc.body), &rec))
			regular, promo, ok := rec.UsablePrice()
			require.Equal(t, tc.ok, ok)
			if !tc.ok {
				return
			}
			require.Equal(t, tc.regular, regular.StringFixed(2))
			if tc.promo == "" {
				require.False(t, promo.Valid)
			} else {
				require.True(t, promo.Valid)
				require.Equal(t, tc.promo, promo.Decimal.StringFixed(2))
			}
		})
	}
}

func TestProductRecordImageURL(t *testing.T) {
	rec := ProductRecord{Images: []Image{
		{Perspective: "back", Sizes: []ImageSize{{Size: "large", URL: "http://img/back.jpg"}}},
		{Perspective: "front", Featured: true, Sizes: []ImageSize{{Size: "xlarge", URL: "http://img/front.jpg"}}},
	}}
	require.Equal(t, "http://img/front.jpg", rec.ImageURL())
	require.Equal(t, "", ProductRecord{}.ImageURL())
}

func TestDecodePriceData(t *testing.T) {
	rec, err := decodePriceData(json.RawMessage(`null`))
	require.NoError(t, err)
	require.Empty(t, rec.Items)

	rec, err = decodePriceData(json.RawMessage(`[]`))
	require.NoError(t, err)
	require.Empty(t, rec.Items)

	_, err = decodePriceData(json.RawMessage(`{"items":"nope"}`))
	require.Error(t, err)
}

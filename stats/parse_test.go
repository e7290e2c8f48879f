package stats

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validPayload = `[
  {
    "productId": "p-1",
    "productName": "Ao thun cotton basic",
    "totalPurchase": 300, "totalView": 40, "totalBuy": 3,
    "totalShipCod": 30, "totalUser": 2, "totalProduct": 3,
    "labels": ["2024-03-01", "2024-03-02"],
    "buckets": [
      {"totalPurchase": 100, "totalView": 15, "totalBuy": 1, "totalShipCod": 10, "totalUser": 1, "totalProduct": 1},
      {"totalPurchase": 200, "totalView": 25, "totalBuy": 2, "totalShipCod": 20, "totalUser": 1, "totalProduct": 2}
    ]
  },
  {
    "productId": "p-2",
    "productName": "Quan jean",
    "totalPurchase": 0, "totalView": 0, "totalBuy": 0,
    "totalShipCod": 0, "totalUser": 0, "totalProduct": 0,
    "labels": [],
    "buckets": []
  }
]`

func TestParseRecords(t *testing.T) {
	records, err := ParseRecords([]byte(validPayload))
	require.NoError(t, err)
	require.Len(t, records, 2)

	r := records[0]
	assert.Equal(t, "p-1", r.ProductID)
	assert.Equal(t, 300.0, r.Totals.Purchase)
	assert.Equal(t, []float64{15, 25}, ReshapeForSeries(r, TotalView).Values)
	assert.Equal(t, day(1), r.Buckets[0].Label)
	assert.Empty(t, records[1].Buckets)
}

func TestParseRecordsRejects(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		field   string
	}{
		{"not json", `{`, ""},
		{"not an array", `{"productId":"x"}`, ""},
		{"missing counter", `[{"productId":"x","productName":"x","totalView":1,"totalBuy":0,"totalShipCod":0,"totalUser":0,"totalProduct":0,"labels":[],"buckets":[]}]`, ""},
		{"negative counter", `[{"productId":"x","productName":"x","totalPurchase":-1,"totalView":0,"totalBuy":0,"totalShipCod":0,"totalUser":0,"totalProduct":0,"labels":[],"buckets":[]}]`, ""},
		{"bad label", `[{"productId":"x","productName":"x","totalPurchase":0,"totalView":0,"totalBuy":0,"totalShipCod":0,"totalUser":0,"totalProduct":0,"labels":["03/01/2024"],"buckets":[{}]}]`, ""},
		{"length mismatch", `[{"productId":"x","productName":"x","totalPurchase":0,"totalView":0,"totalBuy":0,"totalShipCod":0,"totalUser":0,"totalProduct":0,"labels":["2024-03-01"],"buckets":[]}]`, "buckets"},
		{"labels out of order", `[{"productId":"x","productName":"x","totalPurchase":0,"totalView":0,"totalBuy":0,"totalShipCod":0,"totalUser":0,"totalProduct":0,"labels":["2024-03-02","2024-03-01"],"buckets":[{},{}]}]`, "labels"},
		{"duplicate label", `[{"productId":"x","productName":"x","totalPurchase":0,"totalView":0,"totalBuy":0,"totalShipCod":0,"totalUser":0,"totalProduct":0,"labels":["2024-03-01","2024-03-01"],"buckets":[{},{}]}]`, "labels"},
		{"totals mismatch", `[{"productId":"x","productName":"x","totalPurchase":10,"totalView":0,"totalBuy":0,"totalShipCod":0,"totalUser":0,"totalProduct":0,"labels":["2024-03-01"],"buckets":[{"totalPurchase":4}]}]`, "totalPurchase"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRecords([]byte(tt.payload))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedPayload)

			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.field, perr.Field)
		})
	}
}

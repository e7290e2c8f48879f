package stats

import (
	"salepage/cms/utils"
)

const tabNameLength = 20

// Conversion is orders over views for a product or the whole catalogue.
type Conversion struct {
	Orders  float64 `json:"orders"`
	Views   float64 `json:"views"`
	Percent float64 `json:"percent"`
}

func conversion(orders, views float64) Conversion {
	return Conversion{Orders: orders, Views: views, Percent: RatioPercent(orders, views)}
}

type ProductSummary struct {
	ProductID   string     `json:"productId"`
	ProductName string     `json:"productName"`
	TabName     string     `json:"tabName"`
	Totals      Counters   `json:"totals"`
	Conversion  Conversion `json:"conversion"`
	Series      Series     `json:"series"`
}

// Summary is everything the dashboard screen renders for one range.
type Summary struct {
	Field         Field            `json:"field"`
	TotalPurchase float64          `json:"totalPurchase"`
	FieldTotal    float64          `json:"fieldTotal"`
	TopViewed     Top              `json:"topViewed"`
	Conversion    Conversion       `json:"conversion"`
	Comparison    Comparison       `json:"comparison"`
	Products      []ProductSummary `json:"products"`
}

// BuildSummary derives the dashboard figures from records. field selects
// the counter charted per product.
func BuildSummary(records []Record, field Field) Summary {
	s := Summary{
		Field:         field,
		TotalPurchase: GrandTotal(records, TotalPurchase),
		FieldTotal:    GrandTotal(records, field),
		TopViewed:     TopByField(records, TotalView),
		Conversion:    conversion(GrandTotal(records, TotalProduct), GrandTotal(records, TotalView)),
		Comparison:    CompareAdjacentPeriods(records, field),
		Products:      make([]ProductSummary, 0, len(records)),
	}
	for _, r := range records {
		s.Products = append(s.Products, ProductSummary{
			ProductID:   r.ProductID,
			ProductName: r.ProductName,
			TabName:     utils.TruncateName(r.ProductName, tabNameLength),
			Totals:      r.Totals,
			Conversion:  conversion(r.Totals.Product, r.Totals.View),
			Series:      ReshapeForSeries(r, field),
		})
	}
	return s
}

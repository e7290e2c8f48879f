// Package stats turns per-product statistic records into the figures the
// dashboard shows.
package stats

import (
	"errors"
	"fmt"
	"time"
)

var ErrUnknownField = errors.New("unknown statistic field")

// Field names one counter of a record.
type Field string

const (
	TotalPurchase Field = "totalPurchase"
	TotalView     Field = "totalView"
	TotalBuy      Field = "totalBuy"
	TotalShipCod  Field = "totalShipCod"
	TotalUser     Field = "totalUser"
	TotalProduct  Field = "totalProduct"
)

// Fields lists every counter in display order.
var Fields = []Field{TotalBuy, TotalUser, TotalProduct, TotalView, TotalPurchase, TotalShipCod}

func ParseField(s string) (Field, error) {
	switch f := Field(s); f {
	case TotalPurchase, TotalView, TotalBuy, TotalShipCod, TotalUser, TotalProduct:
		return f, nil
	case "totalShipperCod":
		return TotalShipCod, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, s)
}

// Counters carries the numeric counters of a record or of one day.
type Counters struct {
	Purchase float64 `json:"totalPurchase"`
	View     float64 `json:"totalView"`
	Buy      float64 `json:"totalBuy"`
	ShipCod  float64 `json:"totalShipCod"`
	User     float64 `json:"totalUser"`
	Product  float64 `json:"totalProduct"`
}

// Get returns the counter named by f, 0 for an unknown field.
func (c Counters) Get(f Field) float64 {
	switch f {
	case TotalPurchase:
		return c.Purchase
	case TotalView:
		return c.View
	case TotalBuy:
		return c.Buy
	case TotalShipCod:
		return c.ShipCod
	case TotalUser:
		return c.User
	case TotalProduct:
		return c.Product
	}
	return 0
}

func (c Counters) Add(o Counters) Counters {
	return Counters{
		Purchase: c.Purchase + o.Purchase,
		View:     c.View + o.View,
		Buy:      c.Buy + o.Buy,
		ShipCod:  c.ShipCod + o.ShipCod,
		User:     c.User + o.User,
		Product:  c.Product + o.Product,
	}
}

// Bucket is one day of a record.
type Bucket struct {
	Label time.Time
	Counters
}

// Record is one product's statistics over a date range. Buckets are ordered
// by strictly increasing Label and Totals is their sum.
type Record struct {
	ProductID   string
	ProductName string
	Totals      Counters
	Buckets     []Bucket
}

func (r Record) Labels() []time.Time {
	labels := make([]time.Time, len(r.Buckets))
	for i, b := range r.Buckets {
		labels[i] = b.Label
	}
	return labels
}

// ProductByID returns the record for the given product.
func ProductByID(records []Record, id string) (Record, bool) {
	for _, r := range records {
		if r.ProductID == id {
			return r, true
		}
	}
	return Record{}, false
}

// Range is a closed time interval.
type Range struct {
	Start time.Time
	End   time.Time
}

// DefaultRange covers the seven days up to now.
func DefaultRange(now time.Time) Range {
	return Range{Start: now.AddDate(0, 0, -7), End: now}
}

func (r Range) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return errors.New("range start and end are required")
	}
	if r.End.Before(r.Start) {
		return fmt.Errorf("range end %s is before start %s", r.End.Format(time.RFC3339), r.Start.Format(time.RFC3339))
	}
	return nil
}

// Days returns the calendar dates covered by the range, in UTC.
func (r Range) Days() []time.Time {
	start := truncateDay(r.Start)
	end := truncateDay(r.End)
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

package stats

import (
	"math"
	"time"
)

const ratioDecimals = 2

// GrandTotal sums field across all records.
func GrandTotal(records []Record, field Field) float64 {
	var total float64
	for _, r := range records {
		total += r.Totals.Get(field)
	}
	return total
}

// Top is the record holding the largest value of a field. Found is false on
// empty input.
type Top struct {
	ID    string  `json:"id,omitempty"`
	Name  string  `json:"name,omitempty"`
	Value float64 `json:"value"`
	Found bool    `json:"found"`
}

// TopByField returns the record with the maximum field value; the first one
// wins on ties.
func TopByField(records []Record, field Field) Top {
	var top Top
	for _, r := range records {
		v := r.Totals.Get(field)
		if !top.Found || v > top.Value {
			top = Top{ID: r.ProductID, Name: r.ProductName, Value: v, Found: true}
		}
	}
	return top
}

// RatioPercent returns numerator*100/denominator rounded to two decimals.
// A zero denominator yields 100.
func RatioPercent(numerator, denominator float64) float64 {
	if denominator == 0 {
		return 100
	}
	return round(numerator*100/denominator, ratioDecimals)
}

func round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

// Series is one counter of a record projected onto its day labels.
type Series struct {
	Labels []time.Time `json:"labels"`
	Values []float64   `json:"values"`
}

func ReshapeForSeries(record Record, field Field) Series {
	s := Series{
		Labels: make([]time.Time, len(record.Buckets)),
		Values: make([]float64, len(record.Buckets)),
	}
	for i, b := range record.Buckets {
		s.Labels[i] = b.Label
		s.Values[i] = b.Get(field)
	}
	return s
}

// Comparison holds the latest day against the day before it.
type Comparison struct {
	Current  float64 `json:"currentValue"`
	Previous float64 `json:"previousValue"`
}

// CompareAdjacentPeriods sums the last and second-to-last bucket of every
// record. Records with fewer buckets contribute 0 for the missing days.
func CompareAdjacentPeriods(records []Record, field Field) Comparison {
	var c Comparison
	for _, r := range records {
		n := len(r.Buckets)
		if n >= 1 {
			c.Current += r.Buckets[n-1].Get(field)
		}
		if n >= 2 {
			c.Previous += r.Buckets[n-2].Get(field)
		}
	}
	return c
}

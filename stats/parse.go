package stats

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const labelLayout = "2006-01-02"

var ErrMalformedPayload = errors.New("malformed statistics payload")

//go:embed schema/records.json
var recordsSchemaJSON string

var recordsSchema = jsonschema.MustCompileString("records.json", recordsSchemaJSON)

// ParseError reports why a statistics payload was rejected. Index is -1 when
// the payload as a whole is at fault.
type ParseError struct {
	Index  int
	Field  string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("statistics payload: %s", e.Reason)
	}
	if e.Field == "" {
		return fmt.Sprintf("statistics record %d: %s", e.Index, e.Reason)
	}
	return fmt.Sprintf("statistics record %d: %s: %s", e.Index, e.Field, e.Reason)
}

func (e *ParseError) Unwrap() error { return ErrMalformedPayload }

type wireRecord struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	Counters
	Labels  []string   `json:"labels"`
	Buckets []Counters `json:"buckets"`
}

// ParseRecords validates a statistics payload and decodes it into records.
// Label order and the totals-equal-bucket-sum invariant are checked here so
// aggregation never sees inconsistent data.
func ParseRecords(data []byte) ([]Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, &ParseError{Index: -1, Reason: fmt.Sprintf("invalid json: %v", err)}
	}
	if err := recordsSchema.Validate(raw); err != nil {
		return nil, &ParseError{Index: -1, Reason: schemaReason(err)}
	}

	var wire []wireRecord
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, &ParseError{Index: -1, Reason: fmt.Sprintf("decode: %v", err)}
	}

	records := make([]Record, 0, len(wire))
	for i, w := range wire {
		r, err := w.toRecord(i)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}

func (w wireRecord) toRecord(index int) (Record, error) {
	if len(w.Labels) != len(w.Buckets) {
		return Record{}, &ParseError{
			Index:  index,
			Field:  "buckets",
			Reason: fmt.Sprintf("%d buckets for %d labels", len(w.Buckets), len(w.Labels)),
		}
	}

	r := Record{
		ProductID:   w.ProductID,
		ProductName: w.ProductName,
		Totals:      w.Counters,
		Buckets:     make([]Bucket, len(w.Labels)),
	}
	var sum Counters
	for i, label := range w.Labels {
		day, err := time.Parse(labelLayout, label)
		if err != nil {
			return Record{}, &ParseError{Index: index, Field: "labels", Reason: fmt.Sprintf("invalid date %q", label)}
		}
		if i > 0 && !day.After(r.Buckets[i-1].Label) {
			return Record{}, &ParseError{Index: index, Field: "labels", Reason: fmt.Sprintf("%s is not after %s", label, w.Labels[i-1])}
		}
		r.Buckets[i] = Bucket{Label: day, Counters: w.Buckets[i]}
		sum = sum.Add(w.Buckets[i])
	}

	if len(w.Buckets) > 0 {
		for _, f := range Fields {
			if !closeEnough(sum.Get(f), w.Get(f)) {
				return Record{}, &ParseError{
					Index:  index,
					Field:  string(f),
					Reason: fmt.Sprintf("total %v does not match bucket sum %v", w.Get(f), sum.Get(f)),
				}
			}
		}
	}
	return r, nil
}

func closeEnough(a, b float64) bool {
	return math.Abs(a-b) <= 1e-6*math.Max(1, math.Abs(b))
}

func schemaReason(err error) string {
	var verr *jsonschema.ValidationError
	if errors.As(err, &verr) {
		leaf := verr
		for len(leaf.Causes) > 0 {
			leaf = leaf.Causes[0]
		}
		return fmt.Sprintf("%s: %s", leaf.InstanceLocation, leaf.Message)
	}
	return err.Error()
}

package carbon

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Markets exposed by the WattTime API. Staleness defaults depend on the
// market: real-time series go stale after one interval, hourly products
// tolerate an hour.
const (
	MarketRT5M = "RT5M" // real-time five-minute
	MarketRTHR = "RTHR" // real-time hourly
	MarketDAHR = "DAHR" // day-ahead hourly
)

// DefaultMarket applies when a query passes an empty market.
const DefaultMarket = MarketRT5M

// DefaultInterval is the grid spacing used when a range query does not name
// one. One RT5M interval.
const DefaultInterval = 5 * time.Minute

// RecordTimeLayout is the fixed UTC timestamp format of raw API records.
const RecordTimeLayout = "2006-01-02T15:04:05Z"

// Sample is a single observation with a concrete value. Null-valued source
// records are dropped before a Sample is formed, so every cached entry has a
// usable reading. Time is always UTC.
type Sample struct {
	Time  time.Time
	Value float64
}

// Point is one resolved query slot. Missing data is expressed as Valid=false
// rather than an error.
type Point struct {
	Time  time.Time
	Value float64
	Valid bool
}

// Record is a raw API record prior to normalization. The reading sits in a
// nested object that may be absent or null for timestamps the source lists
// without data.
type Record struct {
	Timestamp      string          `json:"timestamp"`
	MarginalCarbon *MarginalCarbon `json:"marginal_carbon"`
}

// MarginalCarbon is the nested value object of a raw record.
type MarginalCarbon struct {
	Units string   `json:"units"`
	Value *float64 `json:"value"`
}

// Value extracts the marginal carbon reading. ok is false when the nested
// field is missing or null.
func (r Record) Value() (float64, bool) {
	if r.MarginalCarbon == nil || r.MarginalCarbon.Value == nil {
		return 0, false
	}
	return *r.MarginalCarbon.Value, true
}

// Time parses the record timestamp.
func (r Record) Time() (time.Time, error) {
	ts, err := time.Parse(RecordTimeLayout, r.Timestamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("carbon: parse record timestamp %q: %w", r.Timestamp, err)
	}
	return ts, nil
}

// Fetcher retrieves raw records for a query window, following pagination
// until the source reports no further pages. Implementations must not retry
// failed requests; errors surface to the caller unmodified.
type Fetcher interface {
	FetchRaw(ctx context.Context, start, end time.Time, region, market string, extra map[string]string) ([]Record, error)
}

// normalizeRecords converts raw records into time-sorted samples. Records
// without a usable value or with an unparseable timestamp are dropped; they
// never abort the batch.
func normalizeRecords(records []Record) []Sample {
	samples := make([]Sample, 0, len(records))
	for _, r := range records {
		value, ok := r.Value()
		if !ok {
			continue
		}
		ts, err := r.Time()
		if err != nil {
			continue
		}
		samples = append(samples, Sample{Time: ts.UTC(), Value: value})
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i].Time.Before(samples[j].Time) })
	return samples
}

func normalizeRegion(region string) string {
	return strings.ToUpper(strings.TrimSpace(region))
}

func normalizeMarket(market string) string {
	m := strings.ToUpper(strings.TrimSpace(market))
	if m == "" {
		return DefaultMarket
	}
	return m
}

package carbon

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"watttime-api/pkg/cachestore"
)

// DayCache organizes samples into per-day buckets on top of a cachestore.
// Buckets accumulate monotonically: an insert merges into the stored mapping
// and never drops entries cached earlier. Lookups are same-bucket only; a
// query just after midnight does not consult the previous day's bucket even
// when that bucket holds the true best value. Callers compensate through the
// fetch fallback in Client.
type DayCache struct {
	store cachestore.Store
}

// NewDayCache wraps the given store. Keys are namespaced via BucketKey.
func NewDayCache(store cachestore.Store) *DayCache {
	return &DayCache{store: store}
}

// Bucket returns the mapping for ts's (region, market, UTC day) bucket. A
// missing bucket yields an empty, non-nil map; only store or codec failures
// produce an error.
func (d *DayCache) Bucket(ctx context.Context, ts time.Time, region, market string) (map[time.Time]float64, error) {
	raw, ok, err := d.store.Get(ctx, BucketKey(ts, region, market))
	if err != nil {
		return nil, fmt.Errorf("carbon: read bucket: %w", err)
	}
	if !ok {
		return make(map[time.Time]float64), nil
	}
	return decodeBucket(raw)
}

// Insert merges value at ts into its bucket and writes the whole bucket
// back. The store only supports whole-value get/set, so this is a
// read-modify-write of the full bucket, not a partial patch. Inserting an
// identical pair twice leaves the bucket unchanged.
func (d *DayCache) Insert(ctx context.Context, ts time.Time, region, market string, value float64) error {
	bucket, err := d.Bucket(ctx, ts, region, market)
	if err != nil {
		return err
	}
	bucket[normalizeTime(ts)] = value
	raw, err := encodeBucket(bucket)
	if err != nil {
		return err
	}
	if err := d.store.Set(ctx, BucketKey(ts, region, market), raw); err != nil {
		return fmt.Errorf("carbon: write bucket: %w", err)
	}
	return nil
}

// BestAtOrBefore scans ts's bucket in ascending time order and returns the
// last entry not after ts. ok is false when the bucket is empty or every
// entry is later than ts.
func (d *DayCache) BestAtOrBefore(ctx context.Context, ts time.Time, region, market string) (Sample, bool, error) {
	bucket, err := d.Bucket(ctx, ts, region, market)
	if err != nil {
		return Sample{}, false, err
	}
	query := ts.UTC()
	var best Sample
	found := false
	for _, t := range sortedTimes(bucket) {
		if t.After(query) {
			break
		}
		best = Sample{Time: t, Value: bucket[t]}
		found = true
	}
	return best, found, nil
}

// Latest returns the newest entry in ts's bucket, regardless of whether it
// precedes ts.
func (d *DayCache) Latest(ctx context.Context, ts time.Time, region, market string) (Sample, bool, error) {
	bucket, err := d.Bucket(ctx, ts, region, market)
	if err != nil {
		return Sample{}, false, err
	}
	times := sortedTimes(bucket)
	if len(times) == 0 {
		return Sample{}, false, nil
	}
	last := times[len(times)-1]
	return Sample{Time: last, Value: bucket[last]}, true, nil
}

// normalizeTime keys bucket entries in UTC at second precision, matching the
// API's timestamp resolution and the wire codec.
func normalizeTime(ts time.Time) time.Time {
	return ts.UTC().Truncate(time.Second)
}

func sortedTimes(bucket map[time.Time]float64) []time.Time {
	times := make([]time.Time, 0, len(bucket))
	for t := range bucket {
		times = append(times, t)
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	return times
}

// Buckets travel through stores as msgpack maps keyed by Unix seconds.
func encodeBucket(bucket map[time.Time]float64) ([]byte, error) {
	wire := make(map[int64]float64, len(bucket))
	for t, v := range bucket {
		wire[t.Unix()] = v
	}
	raw, err := msgpack.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("carbon: encode bucket: %w", err)
	}
	return raw, nil
}

func decodeBucket(raw []byte) (map[time.Time]float64, error) {
	wire := make(map[int64]float64)
	if err := msgpack.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("carbon: decode bucket: %w", err)
	}
	bucket := make(map[time.Time]float64, len(wire))
	for sec, v := range wire {
		bucket[time.Unix(sec, 0).UTC()] = v
	}
	return bucket, nil
}

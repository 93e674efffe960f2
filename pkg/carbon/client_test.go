package carbon

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fetchCall struct {
	start, end     time.Time
	region, market string
}

// scriptedFetcher replays canned records and logs every call.
type scriptedFetcher struct {
	records []Record
	err     error
	calls   []fetchCall
}

func (f *scriptedFetcher) FetchRaw(ctx context.Context, start, end time.Time, region, market string, extra map[string]string) ([]Record, error) {
	f.calls = append(f.calls, fetchCall{start: start, end: end, region: region, market: market})
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

// countingObserver tallies cache events while ignoring the rest.
type countingObserver struct {
	NopObserver
	hits   int
	misses int
}

func (o *countingObserver) CacheHit(string, string, time.Time, Sample) { o.hits++ }
func (o *countingObserver) CacheMiss(string, string, time.Time)       { o.misses++ }

func rec(ts string, v float64) Record {
	return Record{Timestamp: ts, MarginalCarbon: &MarginalCarbon{Units: "lb/MWh", Value: &v}}
}

func nullRec(ts string) Record {
	return Record{Timestamp: ts, MarginalCarbon: &MarginalCarbon{Units: "lb/MWh"}}
}

func mustClient(t *testing.T, fetcher Fetcher, opts ...Option) *Client {
	t.Helper()
	client, err := NewClient(fetcher, opts...)
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresFetcher(t *testing.T) {
	_, err := NewClient(nil)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestFetchNormalizesAndCaches(t *testing.T) {
	fetcher := &scriptedFetcher{records: []Record{
		rec("2025-01-15T12:10:00Z", 420),
		nullRec("2025-01-15T12:15:00Z"),
		rec("2025-01-15T12:00:00Z", 400),
		{Timestamp: "not a timestamp", MarginalCarbon: &MarginalCarbon{Value: new(float64)}},
		rec("2025-01-15T12:05:00Z", 410),
	}}
	client := mustClient(t, fetcher)
	ctx := context.Background()

	samples, err := client.Fetch(ctx,
		time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 15, 13, 0, 0, 0, time.UTC),
		"caiso_north", "rt5m", nil)
	require.NoError(t, err)

	// Nulls and malformed timestamps drop; the rest come back sorted.
	require.Len(t, samples, 3)
	assert.True(t, samples[0].Time.Before(samples[1].Time))
	assert.True(t, samples[1].Time.Before(samples[2].Time))
	assert.InDelta(t, 400, samples[0].Value, 1e-9)
	assert.InDelta(t, 420, samples[2].Value, 1e-9)

	// Region and market reach the fetcher upper-cased.
	require.Len(t, fetcher.calls, 1)
	assert.Equal(t, "CAISO_NORTH", fetcher.calls[0].region)
	assert.Equal(t, "RT5M", fetcher.calls[0].market)

	// Every sample is now cached.
	bucket, err := client.Buckets().Bucket(ctx, samples[0].Time, "CAISO_NORTH", "RT5M")
	require.NoError(t, err)
	assert.Len(t, bucket, 3)
}

func TestFetchErrorPropagatesUnmodified(t *testing.T) {
	sentinel := errors.New("connection refused")
	fetcher := &scriptedFetcher{err: sentinel}
	client := mustClient(t, fetcher)

	_, err := client.Fetch(context.Background(), time.Now(), time.Now(), "PJM", "RT5M", nil)
	require.ErrorIs(t, err, sentinel)

	// One attempt, no retry.
	assert.Len(t, fetcher.calls, 1)
}

func TestValueAtColdCacheFetchesWindow(t *testing.T) {
	fetcher := &scriptedFetcher{records: []Record{
		rec("2025-01-15T11:57:00Z", 430),
		rec("2025-01-15T12:05:00Z", 440),
	}}
	obs := &countingObserver{}
	client := mustClient(t, fetcher, WithObserver(obs))
	ctx := context.Background()
	ts := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)

	p, err := client.ValueAt(ctx, ts, "CAISO_NORTH", "RT5M")
	require.NoError(t, err)
	require.True(t, p.Valid)
	assert.InDelta(t, 430, p.Value, 1e-9)
	assert.True(t, p.Time.Equal(ts))

	// The fetch window is symmetric around the query instant.
	require.Len(t, fetcher.calls, 1)
	assert.True(t, fetcher.calls[0].start.Equal(ts.Add(-4*time.Hour)))
	assert.True(t, fetcher.calls[0].end.Equal(ts.Add(4*time.Hour)))
	assert.Equal(t, 1, obs.misses)

	// The same query now resolves from cache without another fetch.
	p, err = client.ValueAt(ctx, ts, "CAISO_NORTH", "RT5M")
	require.NoError(t, err)
	require.True(t, p.Valid)
	assert.InDelta(t, 430, p.Value, 1e-9)
	assert.Len(t, fetcher.calls, 1)
	assert.Equal(t, 1, obs.hits)
}

// A synthetic cache entry older than the staleness threshold must not be
// served; the query re-fetches and resolves from fresh data.
func TestValueAtStaleEntryForcesRefetch(t *testing.T) {
	fetcher := &scriptedFetcher{records: []Record{
		rec("2014-09-02T23:05:00Z", 310),
		rec("2014-09-02T23:10:00Z", 320),
	}}
	client := mustClient(t, fetcher)
	ctx := context.Background()

	// Plant a poisoned value ten minutes before the query; RT5M tolerates
	// five.
	planted := time.Date(2014, 9, 2, 23, 0, 0, 0, time.UTC)
	require.NoError(t, client.Buckets().Insert(ctx, planted, "PJM", "RT5M", -1000))

	p, err := client.ValueAt(ctx, planted.Add(10*time.Minute), "PJM", "RT5M")
	require.NoError(t, err)
	require.True(t, p.Valid)
	assert.InDelta(t, 320, p.Value, 1e-9)
	assert.Len(t, fetcher.calls, 1)

	// The merge kept the planted entry alongside the fetched ones.
	bucket, err := client.Buckets().Bucket(ctx, planted, "PJM", "RT5M")
	require.NoError(t, err)
	assert.Len(t, bucket, 3)
}

func TestValueAtFreshEntrySkipsFetch(t *testing.T) {
	fetcher := &scriptedFetcher{}
	obs := &countingObserver{}
	client := mustClient(t, fetcher, WithObserver(obs))
	ctx := context.Background()

	ts := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	require.NoError(t, client.Buckets().Insert(ctx, ts.Add(-3*time.Minute), "PJM", "RT5M", 365))

	p, err := client.ValueAt(ctx, ts, "PJM", "RT5M")
	require.NoError(t, err)
	require.True(t, p.Valid)
	assert.InDelta(t, 365, p.Value, 1e-9)
	assert.Empty(t, fetcher.calls)
	assert.Equal(t, 1, obs.hits)
}

// Age exactly equal to the threshold counts as stale: the rule is strictly
// less-than.
func TestValueAtStalenessBoundary(t *testing.T) {
	fetcher := &scriptedFetcher{}
	client := mustClient(t, fetcher)
	ctx := context.Background()

	ts := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	require.NoError(t, client.Buckets().Insert(ctx, ts.Add(-5*time.Minute), "PJM", "RT5M", 365))

	p, err := client.ValueAt(ctx, ts, "PJM", "RT5M")
	require.NoError(t, err)
	require.Len(t, fetcher.calls, 1)
	// Nothing fetched, so the resolved point is absent despite the cached
	// entry.
	assert.False(t, p.Valid)
}

func TestValueAtHonorsMarketStaleness(t *testing.T) {
	fetcher := &scriptedFetcher{}
	client := mustClient(t, fetcher)
	ctx := context.Background()

	// A 40-minute-old entry is stale for RT5M but fresh for DAHR.
	ts := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	require.NoError(t, client.Buckets().Insert(ctx, ts.Add(-40*time.Minute), "PJM", "DAHR", 290))

	p, err := client.ValueAt(ctx, ts, "PJM", "DAHR")
	require.NoError(t, err)
	require.True(t, p.Valid)
	assert.InDelta(t, 290, p.Value, 1e-9)
	assert.Empty(t, fetcher.calls)
}

func TestValueAtUsesConfiguredStaleness(t *testing.T) {
	fetcher := &scriptedFetcher{}
	client := mustClient(t, fetcher, WithStaleness(map[string]time.Duration{"RT5M": time.Hour}))
	ctx := context.Background()

	ts := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	require.NoError(t, client.Buckets().Insert(ctx, ts.Add(-40*time.Minute), "PJM", "RT5M", 312))

	p, err := client.ValueAt(ctx, ts, "PJM", "RT5M")
	require.NoError(t, err)
	require.True(t, p.Valid)
	assert.InDelta(t, 312, p.Value, 1e-9)
	assert.Empty(t, fetcher.calls)
}

// Unknown markets fall back to the default staleness threshold.
func TestValueAtUnknownMarketDefaultStaleness(t *testing.T) {
	fetcher := &scriptedFetcher{}
	client := mustClient(t, fetcher)
	ctx := context.Background()

	ts := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	require.NoError(t, client.Buckets().Insert(ctx, ts.Add(-40*time.Minute), "PJM", "MOER", 275))

	p, err := client.ValueAt(ctx, ts, "PJM", "MOER")
	require.NoError(t, err)
	require.True(t, p.Valid)
	assert.InDelta(t, 275, p.Value, 1e-9)
	assert.Empty(t, fetcher.calls)
}

// A query far earlier than any available data resolves to absent, not an
// error.
func TestValueAtBeforeAllHistory(t *testing.T) {
	fetcher := &scriptedFetcher{}
	client := mustClient(t, fetcher)

	p, err := client.ValueAt(context.Background(),
		time.Date(1914, 6, 28, 0, 0, 0, 0, time.UTC), "CAISO_NORTH", "RT5M")
	require.NoError(t, err)
	assert.False(t, p.Valid)
	assert.Len(t, fetcher.calls, 1)
}

func TestValueAtErrorPropagates(t *testing.T) {
	sentinel := errors.New("boom")
	fetcher := &scriptedFetcher{err: sentinel}
	client := mustClient(t, fetcher)

	_, err := client.ValueAt(context.Background(), time.Now(), "PJM", "RT5M")
	require.ErrorIs(t, err, sentinel)
	assert.Len(t, fetcher.calls, 1)
}

// Cached data beyond the day boundary is invisible to the bucket scan; the
// fetch fallback compensates by resolving from fetched samples directly.
func TestValueAtDayBoundaryFallsBackToFetch(t *testing.T) {
	fetcher := &scriptedFetcher{records: []Record{
		rec("2025-01-14T23:50:00Z", 388),
	}}
	client := mustClient(t, fetcher)
	ctx := context.Background()

	require.NoError(t, client.Buckets().Insert(ctx,
		time.Date(2025, 1, 14, 23, 50, 0, 0, time.UTC), "PJM", "RT5M", 388))

	p, err := client.ValueAt(ctx, time.Date(2025, 1, 15, 0, 2, 0, 0, time.UTC), "PJM", "RT5M")
	require.NoError(t, err)
	require.True(t, p.Valid)
	assert.InDelta(t, 388, p.Value, 1e-9)
	assert.Len(t, fetcher.calls, 1)
}

func TestValuesBetweenGridShape(t *testing.T) {
	fetcher := &scriptedFetcher{records: []Record{
		rec("2025-01-15T09:00:00Z", 400),
	}}
	client := mustClient(t, fetcher)

	start := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
	end := start.Add(3 * time.Hour)

	points, err := client.ValuesBetween(context.Background(), start, end, 5*time.Minute, "CAISO_NORTH", "RT5M", false)
	require.NoError(t, err)

	// Inclusive grid: 3h at 5m spacing is 37 slots.
	require.Len(t, points, 37)
	for i, p := range points {
		want := start.Add(time.Duration(i) * 5 * time.Minute)
		assert.True(t, p.Time.Equal(want), "slot %d got %s want %s", i, p.Time, want)
		assert.False(t, p.Time.Before(start))
		assert.False(t, p.Time.After(end))
	}
}

// An early fetch populates the cache, so later grid slots resolve without
// further network access.
func TestValuesBetweenReusesFetchedData(t *testing.T) {
	records := make([]Record, 0, 37)
	base := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 37; i++ {
		records = append(records, rec(base.Add(time.Duration(i)*5*time.Minute).Format(RecordTimeLayout), 400+float64(i)))
	}
	fetcher := &scriptedFetcher{records: records}
	client := mustClient(t, fetcher)

	points, err := client.ValuesBetween(context.Background(), base, base.Add(3*time.Hour), 5*time.Minute, "CAISO_NORTH", "RT5M", false)
	require.NoError(t, err)
	require.Len(t, points, 37)

	assert.Len(t, fetcher.calls, 1)
	for i, p := range points {
		require.True(t, p.Valid, "slot %d", i)
		assert.InDelta(t, 400+float64(i), p.Value, 1e-9)
	}
}

func TestValuesBetweenRejectsBadInterval(t *testing.T) {
	client := mustClient(t, &scriptedFetcher{})
	now := time.Now().UTC()

	_, err := client.ValuesBetween(context.Background(), now, now.Add(time.Hour), 0, "PJM", "RT5M", false)
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = client.ValuesBetween(context.Background(), now, now.Add(time.Hour), -5*time.Minute, "PJM", "RT5M", false)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestValuesBetweenReversedRangeIsEmpty(t *testing.T) {
	fetcher := &scriptedFetcher{}
	client := mustClient(t, fetcher)
	now := time.Now().UTC()

	points, err := client.ValuesBetween(context.Background(), now, now.Add(-time.Hour), 5*time.Minute, "PJM", "RT5M", false)
	require.NoError(t, err)
	assert.Empty(t, points)
	assert.Empty(t, fetcher.calls)
}

// With an empty source every slot stays absent, fill or not.
func TestValuesBetweenEmptySource(t *testing.T) {
	fetcher := &scriptedFetcher{}
	client := mustClient(t, fetcher)
	start := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)

	points, err := client.ValuesBetween(context.Background(), start, start.Add(30*time.Minute), 5*time.Minute, "PJM", "RT5M", false)
	require.NoError(t, err)
	require.Len(t, points, 7)
	for i, p := range points {
		assert.False(t, p.Valid, "slot %d", i)
	}

	points, err = client.ValuesBetween(context.Background(), start, start.Add(30*time.Minute), 5*time.Minute, "PJM", "RT5M", true)
	require.NoError(t, err)
	for i, p := range points {
		assert.False(t, p.Valid, "slot %d should stay absent after fill", i)
	}
}

func TestValuesBetweenForwardFill(t *testing.T) {
	fetcher := &scriptedFetcher{records: []Record{
		rec("2025-01-15T09:10:00Z", 410),
	}}
	client := mustClient(t, fetcher)
	start := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)

	points, err := client.ValuesBetween(context.Background(), start, start.Add(30*time.Minute), 5*time.Minute, "CAISO_NORTH", "RT5M", true)
	require.NoError(t, err)
	require.Len(t, points, 7)

	// Slots before the sole sample have nothing to fill from.
	assert.False(t, points[0].Valid)
	assert.False(t, points[1].Valid)
	// The 09:10 slot and everything after carry the sample's value.
	for i := 2; i < 7; i++ {
		require.True(t, points[i].Valid, "slot %d", i)
		assert.InDelta(t, 410, points[i].Value, 1e-9)
	}
}

func TestForwardFillLaw(t *testing.T) {
	points := []Point{
		{},
		{Value: 1, Valid: true},
		{},
		{},
		{Value: 2, Valid: true},
		{},
	}
	forwardFill(points)

	assert.False(t, points[0].Valid)
	assert.InDelta(t, 1, points[1].Value, 1e-9)
	require.True(t, points[2].Valid)
	assert.InDelta(t, 1, points[2].Value, 1e-9)
	require.True(t, points[3].Valid)
	assert.InDelta(t, 1, points[3].Value, 1e-9)
	assert.InDelta(t, 2, points[4].Value, 1e-9)
	require.True(t, points[5].Valid)
	assert.InDelta(t, 2, points[5].Value, 1e-9)
}

// Recorder failures are logged, never surfaced.
func TestFetchToleratesRecorderFailure(t *testing.T) {
	fetcher := &scriptedFetcher{records: []Record{rec("2025-01-15T12:00:00Z", 400)}}
	client := mustClient(t, fetcher, WithRecorder(failingRecorder{}))

	samples, err := client.Fetch(context.Background(),
		time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 15, 13, 0, 0, 0, time.UTC),
		"PJM", "RT5M", nil)
	require.NoError(t, err)
	assert.Len(t, samples, 1)
}

type failingRecorder struct{}

func (failingRecorder) RecordSamples(context.Context, string, string, []Sample) error {
	return errors.New("database is down")
}

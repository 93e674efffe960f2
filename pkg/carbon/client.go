// Package carbon implements a caching client for marginal carbon intensity
// data. Fetched samples are organized into day buckets keyed by (region,
// market, UTC day). Point queries resolve against the bucket cache under a
// market-dependent staleness rule and fall back to a windowed fetch; range
// queries materialize a regular time grid with optional forward-fill.
package carbon

import (
	"context"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"watttime-api/pkg/cachestore"
)

const (
	// defaultFetchPadding is the half-width of the window fetched around a
	// point query that cannot be served from cache.
	defaultFetchPadding = 4 * time.Hour

	// defaultStalenessFallback applies to markets absent from the staleness
	// table.
	defaultStalenessFallback = time.Hour
)

// defaultStaleness maps markets to the maximum acceptable age of a cached
// value relative to the query timestamp.
func defaultStaleness() map[string]time.Duration {
	return map[string]time.Duration{
		MarketRT5M: 5 * time.Minute,
		MarketRTHR: time.Hour,
		MarketDAHR: time.Hour,
	}
}

// Client answers temporal queries over marginal carbon data. It consults the
// day-bucket cache first and fetches from the remote source when cached
// values are missing or stale. Calls are synchronous and blocking; a fetch
// returns only once pagination is exhausted, and nothing is retried.
//
// A Client is not safe for concurrent use. The read-modify-write cycle on a
// bucket is not atomic even when the underlying store is.
type Client struct {
	fetcher  Fetcher
	store    cachestore.Store
	cache    *DayCache
	observer Observer
	recorder Recorder

	staleness        map[string]time.Duration
	defaultStaleness time.Duration
	padding          time.Duration
}

// Option configures a new Client.
type Option func(*Client)

// WithStore selects the cache backend. Defaults to an in-memory store.
func WithStore(store cachestore.Store) Option {
	return func(c *Client) {
		if store != nil {
			c.store = store
		}
	}
}

// WithStaleness overrides staleness thresholds per market. Markets not in
// the map keep their defaults.
func WithStaleness(thresholds map[string]time.Duration) Option {
	return func(c *Client) {
		for market, d := range thresholds {
			if d > 0 {
				c.staleness[normalizeMarket(market)] = d
			}
		}
	}
}

// WithDefaultStaleness sets the threshold for markets missing from the
// staleness table.
func WithDefaultStaleness(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.defaultStaleness = d
		}
	}
}

// WithFetchPadding sets the half-width of the fetch window around a point
// query.
func WithFetchPadding(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.padding = d
		}
	}
}

// WithObserver injects an event observer. Defaults to NopObserver.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithRecorder wires a best-effort persistence hook for fetched samples.
func WithRecorder(r Recorder) Option {
	return func(c *Client) {
		if r != nil {
			c.recorder = r
		}
	}
}

// NewClient constructs a Client around the given fetcher.
func NewClient(fetcher Fetcher, opts ...Option) (*Client, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("carbon: nil fetcher: %w", ErrInvalidConfig)
	}
	client := &Client{
		fetcher:          fetcher,
		observer:         NopObserver{},
		staleness:        defaultStaleness(),
		defaultStaleness: defaultStalenessFallback,
		padding:          defaultFetchPadding,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.store == nil {
		client.store = cachestore.NewMemory()
	}
	client.cache = NewDayCache(client.store)
	return client, nil
}

// Buckets exposes the day-bucket cache so callers can preload or inspect
// entries without issuing queries.
func (c *Client) Buckets() *DayCache { return c.cache }

func (c *Client) stalenessFor(market string) time.Duration {
	if d, ok := c.staleness[market]; ok {
		return d
	}
	return c.defaultStaleness
}

// Fetch retrieves the window [start, end] from the remote source, merges
// every usable sample into the cache, and returns the samples sorted by
// time. Records without a value are dropped. Fetch failures propagate
// unmodified.
func (c *Client) Fetch(ctx context.Context, start, end time.Time, region, market string, extra map[string]string) ([]Sample, error) {
	region, market = normalizeRegion(region), normalizeMarket(market)
	start, end = start.UTC(), end.UTC()

	c.observer.FetchStarted(region, market, start, end)
	records, err := c.fetcher.FetchRaw(ctx, start, end, region, market, extra)
	if err != nil {
		c.observer.FetchFailed(region, market, err)
		return nil, err
	}

	samples := normalizeRecords(records)
	for _, s := range samples {
		if err := c.cache.Insert(ctx, s.Time, region, market, s.Value); err != nil {
			return nil, err
		}
	}
	c.observer.FetchCompleted(region, market, len(samples))
	c.record(ctx, region, market, samples)
	return samples, nil
}

// record hands samples to the persistence hook and logs failures without
// blocking the data path.
func (c *Client) record(ctx context.Context, region, market string, samples []Sample) {
	if c.recorder == nil || len(samples) == 0 {
		return
	}
	if err := c.recorder.RecordSamples(ctx, region, market, samples); err != nil {
		logx.WithContext(ctx).Errorf("carbon: record samples region=%s market=%s err=%v", region, market, err)
	}
}

// ValueAt resolves the marginal carbon value in effect at ts. The cached
// best-at-or-before candidate is accepted when its age stays under the
// market's staleness threshold; otherwise a window of ±padding around ts is
// fetched and the answer is re-resolved from the fetched, time-sorted
// samples. An absent result (ts precedes all available data, or the source
// has nothing in the window) is Valid=false, not an error.
func (c *Client) ValueAt(ctx context.Context, ts time.Time, region, market string) (Point, error) {
	region, market = normalizeRegion(region), normalizeMarket(market)
	ts = ts.UTC()

	best, ok, err := c.cache.BestAtOrBefore(ctx, ts, region, market)
	if err != nil {
		return Point{}, err
	}
	if ok && ts.Sub(best.Time) < c.stalenessFor(market) {
		c.observer.CacheHit(region, market, ts, best)
		return Point{Time: ts, Value: best.Value, Valid: true}, nil
	}
	c.observer.CacheMiss(region, market, ts)

	samples, err := c.Fetch(ctx, ts.Add(-c.padding), ts.Add(c.padding), region, market, nil)
	if err != nil {
		return Point{}, err
	}
	for i := len(samples) - 1; i >= 0; i-- {
		if !samples[i].Time.After(ts) {
			return Point{Time: ts, Value: samples[i].Value, Valid: true}, nil
		}
	}
	return Point{Time: ts}, nil
}

// ValuesBetween materializes a regular grid of points spaced by interval,
// inclusive of both endpoints. Grid slots are first resolved with cheap
// cache-only lookups; slots that found nothing fall back to full point
// queries in grid order, so a fetch triggered by an early miss can satisfy
// later ones from cache. With fill set, remaining absent slots take the most
// recent earlier value; leading absent slots stay absent either way.
//
// start and end must already be UTC-normalized time.Time values; string
// boundaries go through UTCRange first. An end before start yields an empty
// grid.
func (c *Client) ValuesBetween(ctx context.Context, start, end time.Time, interval time.Duration, region, market string, fill bool) ([]Point, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("carbon: interval must be positive, got %s: %w", interval, ErrInvalidInput)
	}
	region, market = normalizeRegion(region), normalizeMarket(market)
	start, end = start.UTC(), end.UTC()
	if end.Before(start) {
		return []Point{}, nil
	}

	n := int(end.Sub(start)/interval) + 1
	points := make([]Point, n)
	misses := make([]int, 0)
	for i := 0; i < n; i++ {
		ts := start.Add(time.Duration(i) * interval)
		points[i] = Point{Time: ts}
		best, ok, err := c.cache.BestAtOrBefore(ctx, ts, region, market)
		if err != nil {
			return nil, err
		}
		if ok {
			points[i].Value, points[i].Valid = best.Value, true
			c.observer.CacheHit(region, market, ts, best)
		} else {
			misses = append(misses, i)
		}
	}

	for _, i := range misses {
		p, err := c.ValueAt(ctx, points[i].Time, region, market)
		if err != nil {
			return nil, err
		}
		points[i] = p
	}

	if fill {
		forwardFill(points)
	}
	return points, nil
}

// forwardFill propagates the last valid value into later absent slots.
func forwardFill(points []Point) {
	var last Point
	for i := range points {
		if points[i].Valid {
			last = points[i]
		} else if last.Valid {
			points[i].Value, points[i].Valid = last.Value, true
		}
	}
}

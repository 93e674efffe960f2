package carbon

import (
	"log"
	"time"
)

// Observer receives notifications for notable client events: fetch windows,
// page retrievals, cache hits and misses. Calls run inline on the query
// path, so implementations must be fast. The default is NopObserver.
type Observer interface {
	FetchStarted(region, market string, start, end time.Time)
	FetchPage(region, market string, page, records int)
	FetchCompleted(region, market string, records int)
	FetchFailed(region, market string, err error)
	CacheHit(region, market string, ts time.Time, hit Sample)
	CacheMiss(region, market string, ts time.Time)
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) FetchStarted(string, string, time.Time, time.Time) {}
func (NopObserver) FetchPage(string, string, int, int)                {}
func (NopObserver) FetchCompleted(string, string, int)                {}
func (NopObserver) FetchFailed(string, string, error)                 {}
func (NopObserver) CacheHit(string, string, time.Time, Sample)        {}
func (NopObserver) CacheMiss(string, string, time.Time)               {}

// LogObserver writes each event as one line to a standard library logger.
type LogObserver struct {
	logger *log.Logger
}

// NewLogObserver returns an observer backed by l, or log.Default() when nil.
func NewLogObserver(l *log.Logger) *LogObserver {
	if l == nil {
		l = log.Default()
	}
	return &LogObserver{logger: l}
}

func (o *LogObserver) FetchStarted(region, market string, start, end time.Time) {
	o.logger.Printf("carbon: fetch start region=%s market=%s window=%s..%s",
		region, market, start.Format(time.RFC3339), end.Format(time.RFC3339))
}

func (o *LogObserver) FetchPage(region, market string, page, records int) {
	o.logger.Printf("carbon: fetch page region=%s market=%s page=%d records=%d", region, market, page, records)
}

func (o *LogObserver) FetchCompleted(region, market string, records int) {
	o.logger.Printf("carbon: fetch done region=%s market=%s records=%d", region, market, records)
}

func (o *LogObserver) FetchFailed(region, market string, err error) {
	o.logger.Printf("carbon: fetch failed region=%s market=%s err=%v", region, market, err)
}

func (o *LogObserver) CacheHit(region, market string, ts time.Time, hit Sample) {
	o.logger.Printf("carbon: cache hit region=%s market=%s ts=%s age=%s",
		region, market, ts.Format(time.RFC3339), ts.Sub(hit.Time))
}

func (o *LogObserver) CacheMiss(region, market string, ts time.Time) {
	o.logger.Printf("carbon: cache miss region=%s market=%s ts=%s", region, market, ts.Format(time.RFC3339))
}

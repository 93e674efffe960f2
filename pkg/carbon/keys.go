package carbon

import (
	"strings"
	"time"
)

// Namespace prefixes every cache key written by this module, keeping shared
// stores such as Redis free of collisions with other tenants.
const Namespace = "watttime"

const dayLayout = "2006-01-02"

// BucketKey returns the cache key of the day bucket holding ts for the given
// region and market. Region and market are case-normalized; the day comes
// from the timestamp's UTC date. Two timestamps map to the same key iff they
// share region, market, and UTC calendar day.
func BucketKey(ts time.Time, region, market string) string {
	return formatKey(normalizeRegion(region), normalizeMarket(market), ts.UTC().Format(dayLayout))
}

func formatKey(parts ...string) string {
	values := make([]string, 0, len(parts)+1)
	values = append(values, Namespace)
	for _, part := range parts {
		clean := strings.TrimSpace(part)
		if clean == "" {
			continue
		}
		values = append(values, clean)
	}
	return strings.Join(values, ":")
}

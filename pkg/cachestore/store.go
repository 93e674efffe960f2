// Package cachestore defines the key-value capability behind the day-bucket
// cache and provides memory, LRU, and Redis backed implementations. The
// backend is chosen at construction time through explicit configuration.
package cachestore

import "context"

// Store is a minimal key-value capability. Values are opaque byte payloads.
// A missing key reports ok=false from Get, never an error; errors are
// reserved for transport and backend failures. Implementations are safe for
// concurrent use, which does not extend to clients layered on top of them.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Clear(ctx context.Context) error
}

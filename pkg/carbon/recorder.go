package carbon

import "context"

// Recorder hooks allow clients to persist fetched samples to external
// stores. Recording is best effort: the client logs failures and never lets
// them fail the originating query. Queries never read through a Recorder.
type Recorder interface {
	// RecordSamples persists one fetched batch for the given region/market.
	RecordSamples(ctx context.Context, region, market string, samples []Sample) error
}

package carbon

import (
	"errors"
	"fmt"
)

// Sentinel errors reported by this package. Callers should match them with
// errors.Is. Transport failures from fetchers are not wrapped by these
// sentinels; they surface exactly as the fetcher returned them.
var (
	// ErrMissingToken is returned when a source is constructed without an
	// API token.
	ErrMissingToken = errors.New("carbon: missing API token")

	// ErrInvalidConfig is returned for unusable construction-time
	// configuration, such as a nil fetcher.
	ErrInvalidConfig = errors.New("carbon: invalid configuration")

	// ErrInvalidInput is returned for malformed query inputs.
	ErrInvalidInput = errors.New("carbon: invalid input")
)

// ErrMixedTimezones is returned when one range boundary carries an explicit
// UTC offset and the other does not. It wraps ErrInvalidInput and is raised
// before any cache or network access.
var ErrMixedTimezones = fmt.Errorf("carbon: mixed naive and offset-aware bounds: %w", ErrInvalidInput)
